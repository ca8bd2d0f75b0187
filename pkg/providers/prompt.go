package providers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

// InteractivePrompter asks on the terminal: a line editor for free text and
// a picker when choices are given. Answers are read from In, the process
// stdin when nil.
type InteractivePrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewInteractivePrompter creates a prompter reading in and writing to
// stderr.
func NewInteractivePrompter(in io.Reader) *InteractivePrompter {
	return &InteractivePrompter{In: in, Out: os.Stderr}
}

func (p *InteractivePrompter) Ask(ctx context.Context, spec PromptSpec) (string, error) {
	if len(spec.Choices) > 0 {
		return p.pick(ctx, spec)
	}

	prompt := spec.Prompt
	if spec.Default != "" {
		prompt += fmt.Sprintf(" [%s]", spec.Default)
	}
	cfg := &readline.Config{
		Prompt:          prompt + ": ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          p.Out,
	}
	if p.In != nil && p.In != os.Stdin {
		cfg.Stdin = io.NopCloser(p.In)
		if !IsTerminal(p.In) {
			// piped answers: leave the controlling terminal alone
			cfg.FuncIsTerminal = func() bool { return false }
			cfg.FuncMakeRaw = func() error { return nil }
			cfg.FuncExitRaw = func() error { return nil }
		}
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return "", fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()

	line, err := rl.Readline()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == readline.ErrInterrupt || err == io.EOF {
			return "", fmt.Errorf("prompt for %q interrupted: %w", spec.Key, context.Canceled)
		}
		return "", fmt.Errorf("read answer for %q: %w", spec.Key, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return spec.Default, nil
	}
	return line, nil
}

func (p *InteractivePrompter) pick(ctx context.Context, spec PromptSpec) (string, error) {
	items := make([]tui.Item, len(spec.Choices))
	initial := 0
	for i, c := range spec.Choices {
		items[i] = tui.Item{Title: c.Name}
		if c.Value != c.Name {
			items[i].Detail = c.Value
		}
		if spec.Default != "" && (c.Name == spec.Default || c.Value == spec.Default) {
			initial = i
		}
	}
	idx, err := tui.Pick(ctx, p.In, p.Out, spec.Prompt, items, initial)
	if err != nil {
		return "", fmt.Errorf("pick %q: %w", spec.Key, err)
	}
	return spec.Choices[idx].Name, nil
}

// BatchPrompter never prompts.
type BatchPrompter struct{}

func (BatchPrompter) Ask(_ context.Context, spec PromptSpec) (string, error) {
	return "", errdefs.Wrap(errdefs.ErrInteractionRequired, "%q needs an answer (%s) but batch mode is active; pass it with --answers", spec.Key, spec.Prompt)
}

// ScenarioPrompter returns pre-recorded answers keyed by variable name.
// Used in tests and by front-ends that collect answers up front.
type ScenarioPrompter struct {
	Answers map[string]string
	// Asked records every key that was requested, in order.
	Asked []string
}

// NewScenarioPrompter creates a prompter from recorded answers.
func NewScenarioPrompter(answers map[string]string) *ScenarioPrompter {
	return &ScenarioPrompter{Answers: answers}
}

func (sp *ScenarioPrompter) Ask(_ context.Context, spec PromptSpec) (string, error) {
	sp.Asked = append(sp.Asked, spec.Key)
	v, ok := sp.Answers[spec.Key]
	if !ok {
		return "", errdefs.Wrap(errdefs.ErrInteractionRequired, "scenario has no answer for %q", spec.Key)
	}
	return v, nil
}

// IsTerminal reports whether r is an interactive terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
