// Package providers defines the execution back-ends (local, container,
// remote) and the Prompter capability, with their shared types.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/envrun/pkg/choices"
)

// DefaultShell runs scripts when a Command does not name one.
const DefaultShell = "sh"

// RunSpec describes a single script execution.
type RunSpec struct {
	// Key is the variable or script name, for logs and errors.
	Key string
	// Script is the shell text, already resolved.
	Script string
	Shell  string
	// Env holds KEY=VALUE pairs from the variable store.
	Env []string
	// InheritEnv layers the host environment under Env.
	InheritEnv bool
	// WorkDir defaults to the current directory.
	WorkDir string
	Image   string
	// Remote is user@host[:port].
	Remote string

	// Terminal streams output to Stdout/Stderr and reads Stdin instead of
	// capturing.
	Terminal bool
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
}

func (s RunSpec) shell() string {
	if s.Shell != "" {
		return s.Shell
	}
	return DefaultShell
}

func (s RunSpec) workDir() (string, error) {
	if s.WorkDir != "" {
		return filepath.Abs(s.WorkDir)
	}
	return os.Getwd()
}

// RunOutput holds the result of one execution. A non-zero ExitCode is not
// an error at this level.
type RunOutput struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Runner executes a script on one back-end.
// Implementations: LocalRunner, ContainerRunner, SSHRunner.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (*RunOutput, error)
}

// PromptSpec is everything a Prompter needs to ask for one value.
type PromptSpec struct {
	Key     string
	Prompt  string
	Default string
	Choices []choices.Choice
}

// Prompter abstracts interactive vs pre-recorded answers.
// Implementations: InteractivePrompter, BatchPrompter, ScenarioPrompter.
//
// When Choices is non-empty the returned answer is a choice name.
type Prompter interface {
	Ask(ctx context.Context, spec PromptSpec) (string, error)
}

// writeScriptFile stores script in dir under a collision-free name and
// returns its path. The caller removes it.
func writeScriptFile(dir, script string) (string, error) {
	path := filepath.Join(dir, ".envrun-"+uuid.NewString()+".sh")
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		return "", fmt.Errorf("write script file: %w", err)
	}
	return path, nil
}

// exitCode extracts the exit status from a command error. ok is false when
// the command did not run at all.
func exitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}
