package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// LocalRunner runs scripts with a shell on the host.
type LocalRunner struct{}

// Run writes the script to a temp file in the working directory and runs it.
func (r *LocalRunner) Run(ctx context.Context, spec RunSpec) (*RunOutput, error) {
	dir, err := spec.workDir()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	file, err := writeScriptFile(dir, spec.Script)
	if err != nil {
		return nil, err
	}
	defer os.Remove(file)

	start := time.Now()
	cmd := exec.CommandContext(ctx, spec.shell(), file)
	cmd.Dir = dir
	// a nil Env would inherit the host environment
	cmd.Env = append([]string{}, spec.Env...)
	if spec.InheritEnv {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var stdout, stderr bytes.Buffer
	if spec.Terminal {
		cmd.Stdin = spec.Stdin
		cmd.Stdout = spec.Stdout
		cmd.Stderr = spec.Stderr
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err = cmd.Run()
	code, ran := exitCode(err)
	if !ran {
		return nil, fmt.Errorf("execute %q with %s: %w", spec.Key, spec.shell(), err)
	}
	return &RunOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: code,
		Duration: time.Since(start),
	}, nil
}
