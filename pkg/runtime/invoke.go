package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/vars"
)

// Result describes a finished invocation.
type Result struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	// EnvNames are the full names of the applied groups.
	EnvNames   []string `json:"env_names"`
	ScriptPath []string `json:"script_path"`
	// EnvVars is the resolved tier at the end of the run. Secrets are
	// never included.
	EnvVars map[string]string `json:"env_vars"`
	// Outputs holds one captured output per executed step, with secret
	// values redacted.
	Outputs []string `json:"outputs"`
	// Answers replays the prompts of this run. Secret keys are dropped.
	Answers map[string]string `json:"answers,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Record renders the result as a single JSON line.
func (r *Result) Record() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return append(data, '\n'), nil
}

// CommandLine renders a shell command that re-runs the invocation with the
// same groups and answers.
func (r *Result) CommandLine(bin string) (string, error) {
	parts := []string{bin, "run"}
	for _, n := range r.EnvNames {
		q, err := syntax.Quote(n, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote env name: %w", err)
		}
		parts = append(parts, "-e", q)
	}
	q, err := syntax.Quote(strings.Join(r.ScriptPath, " "), syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("quote script path: %w", err)
	}
	parts = append(parts, q)
	if len(r.Answers) > 0 {
		data, err := json.Marshal(r.Answers)
		if err != nil {
			return "", fmt.Errorf("encode answers: %w", err)
		}
		q, err := syntax.Quote(string(data), syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote answers: %w", err)
		}
		parts = append(parts, "--answers", q)
	}
	return strings.Join(parts, " "), nil
}

// ResolveEnvironment merges the document's imports, then applies the named
// groups in order. It returns the populated store and the full group names.
func ResolveEnvironment(ctx context.Context, doc *schema.Document, groupNames []string, stdin map[string]string, host map[string]string, opts ...Option) (*vars.Store, []string, error) {
	e := New(doc, stdin, append(opts, WithHost(host))...)
	names, err := e.prepare(ctx, groupNames)
	if err != nil {
		return nil, names, err
	}
	return e.Store, names, nil
}

func (e *Engine) prepare(ctx context.Context, groupNames []string) ([]string, error) {
	if err := e.mergeImports(ctx); err != nil {
		return nil, fmt.Errorf("merge imports: %w", err)
	}
	return e.ResolveNamedGroups(ctx, groupNames)
}

// Invoke resolves the named groups and runs the script at scriptPath. When
// terminal is set the script's final effect streams to the engine's
// terminal. The returned Result is non-nil even when err is not; its
// Success flag and Error field reflect the failure.
func Invoke(ctx context.Context, doc *schema.Document, groupNames, scriptPath []string, stdin map[string]string, terminal bool, opts ...Option) (*Result, error) {
	e := New(doc, stdin, opts...)
	return e.Invoke(ctx, groupNames, scriptPath, terminal)
}

// Invoke is the method form of the package-level Invoke.
func (e *Engine) Invoke(ctx context.Context, groupNames, scriptPath []string, terminal bool) (*Result, error) {
	res := &Result{ID: uuid.NewString(), ScriptPath: scriptPath}
	defer e.Store.PurgeSecrets()

	err := e.invoke(ctx, res, groupNames, scriptPath, terminal)
	res.Timestamp = time.Now().UTC()
	res.EnvVars = e.Store.Resolved()
	res.Outputs = make([]string, len(e.outputs))
	for i, o := range e.outputs {
		res.Outputs[i] = e.Store.Redact(o)
	}
	res.Answers = make(map[string]string, len(e.Answers))
	for k, v := range e.Answers {
		if !vars.IsSecretKey(k) {
			res.Answers[k] = v
		}
	}
	if err != nil {
		res.Error = e.Store.Redact(err.Error())
		e.Logger.Debug("invocation failed", "id", res.ID, "err", err)
		return res, err
	}
	res.Success = true
	return res, nil
}

func (e *Engine) invoke(ctx context.Context, res *Result, groupNames, scriptPath []string, terminal bool) error {
	names, err := e.prepare(ctx, groupNames)
	res.EnvNames = names
	if err != nil {
		return err
	}

	script, resolved, err := schema.FindScript(e.Doc, scriptPath)
	if err != nil {
		return err
	}
	res.ScriptPath = resolved
	path := strings.Join(resolved, "/")
	pop, err := e.push(path)
	if err != nil {
		return err
	}
	defer pop()

	key := resolved[len(resolved)-1]
	e.Logger.Debug("invoking script", "path", path, "kind", script.Kind(), "envs", names)
	out, err := e.resolve(ctx, key, script, mode{terminal: terminal})
	if err != nil {
		return err
	}
	if captured(script, terminal) {
		e.outputs = append(e.outputs, out)
	}
	return nil
}

// Replay re-runs a recorded result non-interactively with its captured
// answers.
func Replay(ctx context.Context, doc *schema.Document, rec *Result, terminal bool, opts ...Option) (*Result, error) {
	opts = append(opts, WithBatch(true))
	return Invoke(ctx, doc, rec.EnvNames, rec.ScriptPath, maps.Clone(rec.Answers), terminal, opts...)
}
