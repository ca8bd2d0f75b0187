// Package recorder keeps a transcript of the commands an invocation runs.
// Captured output passes through the store's redaction so secret values
// never reach the transcript.
package recorder

import (
	"context"
	"strings"
	"sync"

	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/runtime"
)

// Run records a single command execution.
type Run struct {
	Key string `json:"key"`
	// Target is "local", the container image or the ssh target.
	Target     string `json:"target"`
	Script     string `json:"script"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Streamed   bool   `json:"streamed,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Recorder collects Runs from the runners it wraps.
type Recorder struct {
	mu     sync.Mutex
	runs   []Run
	redact func(string) string
}

// New creates a recorder. redact is applied to every captured string; nil
// keeps them as is.
func New(redact func(string) string) *Recorder {
	if redact == nil {
		redact = func(s string) string { return s }
	}
	return &Recorder{redact: redact}
}

// Attach wraps every runner of e. Redaction follows e.Store at call time,
// so secrets added inside nested job lists are covered too.
func Attach(e *runtime.Engine) *Recorder {
	r := New(func(s string) string { return e.Store.Redact(s) })
	e.Runners = runtime.Runners{
		Local:     r.Wrap(e.Runners.Local),
		Container: r.Wrap(e.Runners.Container),
		Remote:    r.Wrap(e.Runners.Remote),
	}
	return r
}

// Wrap returns a runner that delegates to inner and records the result.
func (r *Recorder) Wrap(inner providers.Runner) providers.Runner {
	return &recordingRunner{rec: r, inner: inner}
}

// Runs returns a copy of the transcript.
func (r *Recorder) Runs() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Run(nil), r.runs...)
}

func (r *Recorder) add(run Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
}

type recordingRunner struct {
	rec   *Recorder
	inner providers.Runner
}

func (w *recordingRunner) Run(ctx context.Context, spec providers.RunSpec) (*providers.RunOutput, error) {
	out, err := w.inner.Run(ctx, spec)

	run := Run{
		Key:      spec.Key,
		Target:   target(spec),
		Script:   w.rec.redact(spec.Script),
		Streamed: spec.Terminal,
	}
	if err != nil {
		run.Error = w.rec.redact(err.Error())
		run.ExitCode = -1
	}
	if out != nil {
		run.ExitCode = out.ExitCode
		run.Stdout = w.rec.redact(strings.TrimRight(string(out.Stdout), "\r\n"))
		run.Stderr = w.rec.redact(strings.TrimRight(string(out.Stderr), "\r\n"))
		run.DurationMS = out.Duration.Milliseconds()
	}
	w.rec.add(run)
	return out, err
}

func target(spec providers.RunSpec) string {
	switch {
	case spec.Image != "":
		return spec.Image
	case spec.Remote != "":
		return spec.Remote
	}
	return "local"
}
