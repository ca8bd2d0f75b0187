// Package runtime drives an invocation: it merges environment groups into a
// variable store, resolves scripts of every kind and runs job sequences.
package runtime

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/vars"
)

// MaxDepth bounds nested script resolution (jobs inside jobs, $envNames
// pulling groups that reference scripts, ...).
const MaxDepth = 32

// maxOutputWidth is the display width kept from a failed command's output.
const maxOutputWidth = 4000

// InternalCall is passed to an InternalFunc.
type InternalCall struct {
	Key   string
	Stdin map[string]string
	Store *vars.Store
}

// InternalFunc backs a $internal script. When ok is true the returned value
// is stored under the script's key.
type InternalFunc func(ctx context.Context, call InternalCall) (value string, ok bool, err error)

// Runners groups the execution back-ends.
type Runners struct {
	Local     providers.Runner
	Container providers.Runner
	Remote    providers.Runner
}

// Engine resolves and runs scripts of one document against one Store.
// An Engine serves a single invocation and is not safe for concurrent use.
type Engine struct {
	Doc   *schema.Document
	Store *vars.Store
	// Answers holds the stdin answers. Prompted answers are added so the
	// invocation can be replayed.
	Answers map[string]string

	Prompter  providers.Prompter
	Runtime   *RuntimeContext
	Runners   Runners
	Callbacks map[string]InternalFunc
	Loader    schema.Loader
	Logger    *log.Logger

	// Batch forbids prompting.
	Batch bool
	// Shell overrides the default shell for commands without $shell.
	Shell string
	// RenderWidth wraps remediation messages.
	RenderWidth int

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	host        map[string]string
	literalKeys []string

	outputs []string
	stack   []string
	depth   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.Logger = l }
}

// WithPrompter sets the prompt collaborator.
func WithPrompter(p providers.Prompter) Option {
	return func(e *Engine) { e.Prompter = p }
}

// WithRuntimeContext shares memoized probes between invocations.
func WithRuntimeContext(rc *RuntimeContext) Option {
	return func(e *Engine) { e.Runtime = rc }
}

// WithRunners replaces the execution back-ends. Nil fields keep the default.
func WithRunners(r Runners) Option {
	return func(e *Engine) {
		if r.Local != nil {
			e.Runners.Local = r.Local
		}
		if r.Container != nil {
			e.Runners.Container = r.Container
		}
		if r.Remote != nil {
			e.Runners.Remote = r.Remote
		}
	}
}

// WithCallback registers the function behind $internal: name.
func WithCallback(name string, fn InternalFunc) Option {
	return func(e *Engine) {
		if e.Callbacks == nil {
			e.Callbacks = make(map[string]InternalFunc)
		}
		e.Callbacks[name] = fn
	}
}

// WithLoader sets the loader used for document imports.
func WithLoader(l schema.Loader) Option {
	return func(e *Engine) { e.Loader = l }
}

// WithIO sets the streams used by terminal steps and prompts.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(e *Engine) {
		e.Stdin, e.Stdout, e.Stderr = stdin, stdout, stderr
	}
}

// WithBatch disables interactive prompting.
func WithBatch(batch bool) Option {
	return func(e *Engine) { e.Batch = batch }
}

// WithShell sets the default shell.
func WithShell(shell string) Option {
	return func(e *Engine) { e.Shell = shell }
}

// WithLiteralKeys marks keys whose values are never interpolated.
func WithLiteralKeys(keys ...string) Option {
	return func(e *Engine) { e.literalKeys = append(e.literalKeys, keys...) }
}

// WithHost seeds the global tier. The default is the process environment.
func WithHost(host map[string]string) Option {
	return func(e *Engine) { e.host = host }
}

// New creates an engine for doc. stdin holds pre-recorded answers and is
// copied.
func New(doc *schema.Document, stdin map[string]string, opts ...Option) *Engine {
	e := &Engine{
		Doc:         doc,
		Answers:     make(map[string]string, len(stdin)),
		Logger:      log.New(io.Discard),
		RenderWidth: 80,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
	for k, v := range stdin {
		e.Answers[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.host == nil {
		e.host = HostEnv()
	}
	e.Store = vars.New(vars.WithGlobals(e.host), vars.WithDoNotResolve(e.literalKeys...))

	if e.Runtime == nil {
		e.Runtime = NewRuntimeContext(providers.NewContainerEngine(providers.EngineAuto))
	}
	if e.Runners.Local == nil {
		e.Runners.Local = &providers.LocalRunner{}
	}
	if e.Runners.Container == nil {
		e.Runners.Container = &providers.ContainerRunner{Engine: e.Runtime.Engine}
	}
	if e.Runners.Remote == nil {
		e.Runners.Remote = &providers.SSHRunner{}
	}
	if e.Prompter == nil {
		if e.Batch {
			e.Prompter = providers.BatchPrompter{}
		} else {
			e.Prompter = providers.NewInteractivePrompter(e.Stdin)
		}
	}
	if e.Loader == nil {
		e.Loader = schema.NewFileLoader(2, 30*time.Second)
	}
	return e
}

// Outputs returns the captured step outputs so far.
func (e *Engine) Outputs() []string { return e.outputs }

// HostEnv returns the process environment as a map.
func HostEnv() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}
