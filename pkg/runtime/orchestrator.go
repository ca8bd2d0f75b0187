package runtime

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// step is a planned JobsSerial element.
type step struct {
	key    string
	script schema.Script
	// path is set for steps that reference another script of the
	// document by path.
	path string
}

// RunJobs runs the jobs of js one after the other. Every element is looked
// up before the first one runs. Outputs of captured steps are appended to
// the engine's outputs; the last step streams when terminal is set.
func (e *Engine) RunJobs(ctx context.Context, key string, js *schema.JobsSerial, terminal bool) (string, error) {
	steps, err := e.planJobs(key, js.Jobs)
	if err != nil {
		return "", err
	}

	var last string
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("run %s before step %d: %w", key, i, err)
		}
		stepTerminal := terminal && i == len(steps)-1
		e.Logger.Debug("running step", "key", key, "index", i, "step", st.label(), "kind", st.script.Kind())

		out, err := e.runStep(ctx, st, stepTerminal)
		if err != nil {
			return "", fmt.Errorf("step %s of %s: %w", st.label(), key, err)
		}
		if captured(st.script, stepTerminal) {
			e.outputs = append(e.outputs, out)
		}
		last = out
	}
	return last, nil
}

// captured reports whether the value of s belongs in the outputs. Nested
// job lists record their own steps and streamed commands have no value.
func captured(s schema.Script, terminal bool) bool {
	switch s.(type) {
	case *schema.JobsSerial:
		return false
	case *schema.Command:
		return !terminal
	}
	return true
}

func (st step) label() string {
	if st.path != "" {
		return st.path
	}
	return st.key
}

// push records path as running and fails when it already is.
func (e *Engine) push(path string) (pop func(), err error) {
	if slices.Contains(e.stack, path) {
		return nil, errdefs.Wrap(errdefs.ErrCyclicReference, "%s is already running: %s", path, strings.Join(append(slices.Clone(e.stack), path), " -> "))
	}
	e.stack = append(e.stack, path)
	return func() { e.stack = e.stack[:len(e.stack)-1] }, nil
}

func (e *Engine) runStep(ctx context.Context, st step, terminal bool) (string, error) {
	if st.path != "" {
		pop, err := e.push(st.path)
		if err != nil {
			return "", err
		}
		defer pop()
	}

	nested, ok := st.script.(*schema.JobsSerial)
	if !ok {
		return e.resolve(ctx, st.key, st.script, mode{terminal: terminal})
	}

	// nested job lists see a copy of the store; only their resolved tier
	// flows back
	parent := e.Store
	e.Store = parent.Clone()
	out, err := e.resolve(ctx, st.key, nested, mode{terminal: terminal})
	child := e.Store
	e.Store = parent
	if err != nil {
		return "", err
	}
	parent.MergeResolved(child)
	return out, nil
}

// planJobs resolves every element to a script.
func (e *Engine) planJobs(key string, jobs []schema.Job) ([]step, error) {
	steps := make([]step, 0, len(jobs))
	for i, j := range jobs {
		label := key + "/" + j.Label(i)
		if j.Path == nil {
			if j.Inline == nil {
				return nil, errdefs.Wrap(errdefs.ErrNotExecutable, "%s: job element is not a script", label)
			}
			steps = append(steps, step{key: label, script: j.Inline})
			continue
		}

		s, resolved, err := schema.FindScript(e.Doc, j.Path)
		if err != nil {
			var nf *errdefs.NotFoundError
			if errors.As(err, &nf) && len(resolved) == len(j.Path) {
				// the path exists but names a group
				return nil, errdefs.Wrap(errdefs.ErrNotExecutable, "%s: %s is a group (children: %s)", key, strings.Join(resolved, "/"), strings.Join(nf.Candidates, ", "))
			}
			return nil, fmt.Errorf("job %d of %s: %w", i, key, err)
		}
		steps = append(steps, step{key: resolved[len(resolved)-1], script: s, path: strings.Join(resolved, "/")})
	}
	return steps, nil
}
