package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ormasoftchile/envrun/pkg/errdefs"
)

// Container engine names accepted by NewContainerEngine.
const (
	EngineAuto   = "auto"
	EngineDocker = "docker"
	EnginePodman = "podman"
)

// ContainerEngine is a docker-compatible CLI.
type ContainerEngine struct {
	name   string
	binary string
}

// NewContainerEngine picks the engine binary. "auto" prefers docker and
// falls back to podman. An engine that is not installed still gets a value
// so that the availability probe can report it.
func NewContainerEngine(preferred string) *ContainerEngine {
	switch preferred {
	case EngineDocker, EnginePodman:
		path, _ := exec.LookPath(preferred)
		return &ContainerEngine{name: preferred, binary: path}
	}
	for _, name := range []string{EngineDocker, EnginePodman} {
		if path, err := exec.LookPath(name); err == nil {
			return &ContainerEngine{name: name, binary: path}
		}
	}
	return &ContainerEngine{name: EngineDocker}
}

// Name returns the engine name (docker or podman).
func (e *ContainerEngine) Name() string { return e.name }

// Available probes the engine with "<engine> version". The returned error is
// a *errdefs.RuntimeUnavailableError carrying remediation hints.
func (e *ContainerEngine) Available(ctx context.Context) error {
	if e.binary == "" {
		return &errdefs.RuntimeUnavailableError{
			Engine: e.name,
			Reason: "executable not found in PATH",
			Suggestions: []string{
				fmt.Sprintf("Install %s, or set container_engine to the engine you have", e.name),
				"Remove $image from the script to run it on the host",
			},
		}
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, "version")
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return &errdefs.RuntimeUnavailableError{
			Engine: e.name,
			Reason: reason,
			Suggestions: []string{
				fmt.Sprintf("Start the %s daemon (or machine) and retry", e.name),
				fmt.Sprintf("Check that your user may talk to %s without sudo", e.name),
			},
		}
	}
	return nil
}

// hostOnlyEnv are never forwarded into a container.
var hostOnlyEnv = map[string]bool{
	"PATH": true, "HOME": true, "PWD": true, "OLDPWD": true,
	"SHLVL": true, "HOSTNAME": true, "TMPDIR": true, "_": true,
}

// RunArgs builds the engine arguments for spec. scriptPath is the temp file,
// visible at the same path inside the container through a bind mount of dir.
func (e *ContainerEngine) RunArgs(spec RunSpec, dir, scriptPath string) []string {
	args := []string{"run", "--rm", "-i"}
	if spec.Terminal && IsTerminal(spec.Stdin) {
		args = append(args, "-t")
	}
	args = append(args, "-v", dir+":"+dir, "-w", dir)
	for _, name := range forwardedNames(spec) {
		// values travel through the engine's own environment so they never
		// show up on the command line
		args = append(args, "-e", name)
	}
	return append(args, spec.Image, spec.shell(), scriptPath)
}

func forwardedNames(spec RunSpec) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(kv string) {
		name, _, _ := strings.Cut(kv, "=")
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}
	if spec.InheritEnv {
		for _, kv := range os.Environ() {
			if name, _, _ := strings.Cut(kv, "="); !hostOnlyEnv[name] {
				add(kv)
			}
		}
	}
	for _, kv := range spec.Env {
		add(kv)
	}
	return names
}

// ContainerRunner runs scripts inside a container image.
type ContainerRunner struct {
	Engine *ContainerEngine
}

// Run implements Runner. Availability is checked by the caller.
func (r *ContainerRunner) Run(ctx context.Context, spec RunSpec) (*RunOutput, error) {
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
	cmd := exec.CommandContext(ctx, r.Engine.binary, r.Engine.RunArgs(spec, dir, file)...)
	cmd.Env = append(os.Environ(), spec.Env...)

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
		return nil, fmt.Errorf("run %q in %s via %s: %w", spec.Key, spec.Image, r.Engine.name, err)
	}
	return &RunOutput{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: code,
		Duration: time.Since(start),
	}, nil
}
