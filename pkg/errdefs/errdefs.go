// Package errdefs defines the error kinds shared by the envrun engine.
//
// Every kind has a sentinel that callers test with errors.Is. Kinds that carry
// structured detail (missing names, candidates, exit codes) also have a typed
// error whose Unwrap returns the sentinel.
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingVariables     = errors.New("missing variables")
	ErrEnvironmentNotFound  = errors.New("environment not found")
	ErrScriptNotFound       = errors.New("script not found")
	ErrAmbiguousReference   = errors.New("ambiguous reference")
	ErrCommandFailed        = errors.New("command failed")
	ErrRuntimeUnavailable   = errors.New("container runtime unavailable")
	ErrInteractionRequired  = errors.New("interaction required")
	ErrInvalidChoiceMapping = errors.New("invalid choice mapping")
	ErrInvalidChoiceShape   = errors.New("invalid choice shape")
	ErrUnknownReference     = errors.New("unknown reference")
	ErrNotExecutable        = errors.New("not executable")
	ErrCyclicReference      = errors.New("cyclic reference")
	ErrInvalidShape         = errors.New("invalid script shape")
)

// MissingVariablesError lists every unresolved ${name} reference of a text.
type MissingVariablesError struct {
	// Names is sorted ascending and free of duplicates.
	Names []string
	// Known is a sorted snapshot of the non-secret keys that were available.
	Known []string
	// Context is the key being resolved when the failure happened, if any.
	Context string
}

func (e *MissingVariablesError) Error() string {
	var b strings.Builder
	b.WriteString("missing variables: ")
	b.WriteString(strings.Join(e.Names, ", "))
	if e.Context != "" {
		fmt.Fprintf(&b, " (while resolving %q)", e.Context)
	}
	if len(e.Known) > 0 {
		fmt.Fprintf(&b, "; known: %s", strings.Join(e.Known, ", "))
	}
	return b.String()
}

func (e *MissingVariablesError) Unwrap() error { return ErrMissingVariables }

// NotFoundError is returned when an environment group or script path does not exist.
type NotFoundError struct {
	// Kind is ErrEnvironmentNotFound or ErrScriptNotFound.
	Kind       error
	Name       string
	Candidates []string
	// Suggestion is the closest candidate by fuzzy rank, if any.
	Suggestion string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %q", e.Kind, e.Name)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, ", did you mean %q?", e.Suggestion)
	}
	if len(e.Candidates) > 0 {
		fmt.Fprintf(&b, " (available: %s)", strings.Join(e.Candidates, ", "))
	}
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return e.Kind }

// AmbiguousError is returned when a prefix matches more than one candidate.
type AmbiguousError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous reference %q matches: %s", e.Name, strings.Join(e.Matches, ", "))
}

func (e *AmbiguousError) Unwrap() error { return ErrAmbiguousReference }

// CommandFailedError carries the exit code and truncated output of a failed command.
type CommandFailedError struct {
	Key      string
	ExitCode int
	Stdout   string
	Stderr   string
	// Remediation is the resolved user-authored message, if the script had one.
	Remediation string
}

func (e *CommandFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "command %q exited with code %d", e.Key, e.ExitCode)
	if e.Stdout != "" {
		fmt.Fprintf(&b, "\nstdout: %s", e.Stdout)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&b, "\nstderr: %s", e.Stderr)
	}
	return b.String()
}

func (e *CommandFailedError) Unwrap() error { return ErrCommandFailed }

// RuntimeUnavailableError is fatal: a containerized script was requested but
// no container engine answered.
type RuntimeUnavailableError struct {
	Engine      string
	Reason      string
	Suggestions []string
}

func (e *RuntimeUnavailableError) Error() string {
	return fmt.Sprintf("container engine %q is not available: %s", e.Engine, e.Reason)
}

func (e *RuntimeUnavailableError) Unwrap() error { return ErrRuntimeUnavailable }

// Format renders the error followed by its remediation suggestions.
func (e *RuntimeUnavailableError) Format() string {
	var b strings.Builder
	b.WriteString(e.Error())
	if len(e.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Wrap annotates a sentinel with a formatted message while keeping errors.Is working.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
