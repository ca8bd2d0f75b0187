package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/envrun/pkg/choices"
	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

// mode carries the caller's intent through recursive resolution.
type mode struct {
	// persist writes Literal, Resolve and Command results under the key.
	persist bool
	// terminal streams the effect instead of capturing it.
	terminal bool
}

// Resolve evaluates script under key and returns its captured value. When
// persist is set the value is also written to the store's resolved tier.
func (e *Engine) Resolve(ctx context.Context, key string, s schema.Script, persist bool) (string, error) {
	return e.resolve(ctx, key, s, mode{persist: persist})
}

// Run evaluates script as the final step of an invocation: commands stream
// to the engine's terminal and nothing is persisted.
func (e *Engine) Run(ctx context.Context, key string, s schema.Script) (string, error) {
	return e.resolve(ctx, key, s, mode{terminal: true})
}

func (e *Engine) resolve(ctx context.Context, key string, s schema.Script, m mode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > MaxDepth {
		return "", errdefs.Wrap(errdefs.ErrCyclicReference, "resolving %q nested deeper than %d levels", key, MaxDepth)
	}

	if err := e.applyOverlays(ctx, key, s.Common()); err != nil {
		return "", err
	}

	switch s := s.(type) {
	case *schema.Literal:
		return e.interpolate(key, s.Value, m)
	case *schema.Resolve:
		return e.interpolate(key, s.Expr, m)
	case *schema.Command:
		text, err := e.Store.Resolve(s.Text, key)
		if err != nil {
			return "", err
		}
		return e.runCommand(ctx, key, s, text, m)
	case *schema.Ask:
		return e.ask(ctx, key, s)
	case *schema.WritePath:
		return e.writePath(ctx, key, s, m)
	case *schema.EnvRef:
		v, ok := e.Store.Lookup(s.Ref)
		if !ok {
			return "", errdefs.Wrap(errdefs.ErrUnknownReference, "%q refers to undefined key %q", key, s.Ref)
		}
		e.Store.PutResolved(key, v)
		return v, nil
	case *schema.JobsSerial:
		return e.RunJobs(ctx, key, s, m.terminal)
	case *schema.Internal:
		fn, ok := e.Callbacks[s.Handle]
		if !ok {
			return "", errdefs.Wrap(errdefs.ErrUnknownReference, "%q calls unregistered internal handle %q", key, s.Handle)
		}
		v, ok, err := fn(ctx, InternalCall{Key: key, Stdin: e.Answers, Store: e.Store})
		if err != nil {
			return "", fmt.Errorf("internal %s: %w", s.Handle, err)
		}
		if ok {
			e.Store.PutResolved(key, v)
		}
		return v, nil
	default:
		return "", errdefs.Wrap(errdefs.ErrNotExecutable, "%q has unsupported kind %s", key, s.Kind())
	}
}

// applyOverlays resolves a script's $env group, then its $envNames groups.
func (e *Engine) applyOverlays(ctx context.Context, key string, b *schema.Base) error {
	if b.Env != nil && b.Env.Len() > 0 {
		if err := e.ResolveGroup(ctx, key, b.Env, true); err != nil {
			return err
		}
	}
	if len(b.EnvNames) > 0 {
		if _, err := e.applyNamedGroups(ctx, b.EnvNames); err != nil {
			return fmt.Errorf("apply $envNames of %q: %w", key, err)
		}
	}
	return nil
}

func (e *Engine) interpolate(key, text string, m mode) (string, error) {
	v, err := e.Store.Resolve(text, key)
	if err != nil {
		return "", err
	}
	if m.persist {
		e.Store.PutResolved(key, v)
	}
	return v, nil
}

// runCommand executes already-interpolated text with cmd's routing.
func (e *Engine) runCommand(ctx context.Context, key string, cmd *schema.Command, text string, m mode) (string, error) {
	runner := e.Runners.Local
	inherit := true
	target := "local"
	switch {
	case cmd.IsContainer():
		if err := e.Runtime.ContainerReachable(ctx); err != nil {
			return "", err
		}
		runner, inherit, target = e.Runners.Container, false, cmd.Image
	case cmd.IsRemote():
		runner, inherit, target = e.Runners.Remote, false, cmd.Remote
	}
	if cmd.InheritEnv != nil {
		inherit = *cmd.InheritEnv
	}

	shell := cmd.Shell
	if shell == "" {
		shell = e.Shell
	}
	spec := providers.RunSpec{
		Key:        key,
		Script:     text,
		Shell:      shell,
		Env:        e.Store.Environ(inherit),
		InheritEnv: inherit,
		WorkDir:    cmd.WorkDir,
		Image:      cmd.Image,
		Remote:     cmd.Remote,
		Terminal:   m.terminal,
		Stdin:      e.Stdin,
		Stdout:     e.Stdout,
		Stderr:     e.Stderr,
	}

	e.Logger.Debug("running command", "key", key, "target", target, "terminal", m.terminal)
	out, err := runner.Run(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("run %q: %w", key, err)
	}
	e.Logger.Debug("command finished", "key", key, "exit", out.ExitCode, "duration", out.Duration)

	stdout := strings.TrimRight(string(out.Stdout), "\r\n")
	if out.ExitCode != 0 {
		return "", e.commandFailed(key, cmd, out, stdout)
	}
	if m.terminal {
		return "", nil
	}
	if m.persist {
		e.Store.PutResolved(key, stdout)
	}
	return stdout, nil
}

func (e *Engine) commandFailed(key string, cmd *schema.Command, out *providers.RunOutput, stdout string) error {
	failed := &errdefs.CommandFailedError{
		Key:      key,
		ExitCode: out.ExitCode,
		Stdout:   tui.Truncate(e.Store.Redact(stdout), maxOutputWidth),
		Stderr:   tui.Truncate(e.Store.Redact(strings.TrimRight(string(out.Stderr), "\r\n")), maxOutputWidth),
	}
	if cmd.ErrorMessage != "" {
		msg, err := e.Store.Resolve(cmd.ErrorMessage, key)
		if err != nil {
			msg = cmd.ErrorMessage
		}
		failed.Remediation = msg
		fmt.Fprintln(e.Stderr, tui.RenderMarkdown(msg, e.RenderWidth))
	}
	return failed
}

// ask answers an Ask script from stdin, then the store, then the prompter.
func (e *Engine) ask(ctx context.Context, key string, a *schema.Ask) (string, error) {
	var list []choices.Choice
	if a.Choices != nil {
		var err error
		list, err = choices.Normalize(ctx, a.Choices, choices.OptionsFor(a), e.previewFunc(key+".$choices"))
		if err != nil {
			return "", fmt.Errorf("choices of %q: %w", key, err)
		}
	}

	if answer, ok := e.Answers[key]; ok {
		v := choices.Lookup(list, answer)
		e.Store.PutResolved(key, v)
		return v, nil
	}
	// already mapped when it was stored
	if v, ok := e.Store.Lookup(key); ok {
		return v, nil
	}

	if e.Batch {
		prompt, err := e.Store.Resolve(a.Prompt, key)
		if err != nil {
			prompt = a.Prompt
		}
		return "", errdefs.Wrap(errdefs.ErrInteractionRequired, "%q needs an answer (%s) but batch mode is active", key, prompt)
	}
	prompt, err := e.Store.Resolve(a.Prompt, key)
	if err != nil {
		return "", err
	}
	def, err := e.askDefault(ctx, key, a.Default)
	if err != nil {
		return "", err
	}

	answer, err := e.Prompter.Ask(ctx, providers.PromptSpec{Key: key, Prompt: prompt, Default: def, Choices: list})
	if err != nil {
		return "", err
	}
	e.Answers[key] = answer
	v := choices.Lookup(list, answer)
	e.Store.PutResolved(key, v)
	return v, nil
}

func (e *Engine) askDefault(ctx context.Context, key string, def any) (string, error) {
	if def == nil {
		return "", nil
	}
	s, ok, err := schema.Classify(def)
	if err != nil {
		return "", fmt.Errorf("default of %q: %w", key, err)
	}
	if !ok {
		return "", errdefs.Wrap(errdefs.ErrInvalidShape, "default of %q is not a value", key)
	}
	v, err := e.resolve(ctx, key+".$default", s, mode{})
	if err != nil {
		// an unresolvable default leaves the prompt without one
		if errors.Is(err, errdefs.ErrMissingVariables) {
			e.Logger.Debug("default not resolvable", "key", key, "err", err)
			return "", nil
		}
		return "", err
	}
	return v, nil
}

// previewFunc resolves nested scripts without persisting their value.
func (e *Engine) previewFunc(key string) choices.ResolveFunc {
	return func(ctx context.Context, s schema.Script) (string, error) {
		return e.resolve(ctx, key, s, mode{})
	}
}
