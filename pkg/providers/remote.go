package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"mvdan.cc/sh/v3/syntax"
)

// SSHRunner runs scripts on a remote host. The script is sent on the
// session's stdin, preceded by export lines for the environment.
type SSHRunner struct {
	// KnownHostsFile defaults to ~/.ssh/known_hosts.
	KnownHostsFile string
	// IdentityFile is an optional private key used besides ssh-agent.
	IdentityFile string
	// User is used when the target omits one.
	User        string
	DialTimeout time.Duration
}

// Target is a parsed user@host[:port] reference.
type Target struct {
	User string
	Host string
	Port string
}

// Addr returns host:port.
func (t Target) Addr() string { return net.JoinHostPort(t.Host, t.Port) }

// ParseTarget parses user@host[:port]. Port defaults to 22.
func ParseTarget(s, defaultUser string) (Target, error) {
	t := Target{User: defaultUser, Port: "22"}
	rest := s
	if u, h, ok := strings.Cut(s, "@"); ok {
		t.User, rest = u, h
	}
	if host, port, err := net.SplitHostPort(rest); err == nil {
		t.Host, t.Port = host, port
	} else {
		t.Host = rest
	}
	if t.Host == "" {
		return Target{}, fmt.Errorf("invalid remote %q: missing host", s)
	}
	if t.User == "" {
		if u, err := user.Current(); err == nil {
			t.User = u.Username
		}
	}
	return t, nil
}

// RemoteScript renders the text sent to the remote shell.
func RemoteScript(env []string, script string) (string, error) {
	var b strings.Builder
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		q, err := syntax.Quote(value, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %s: %w", name, err)
		}
		fmt.Fprintf(&b, "export %s=%s\n", name, q)
	}
	b.WriteString(script)
	if !strings.HasSuffix(script, "\n") {
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (r *SSHRunner) clientConfig(t Target) (*ssh.ClientConfig, func(), error) {
	khFile := r.KnownHostsFile
	if khFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("locate known_hosts: %w", err)
		}
		khFile = filepath.Join(home, ".ssh", "known_hosts")
	}
	hostKeys, err := knownhosts.New(khFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load known hosts: %w", err)
	}

	cleanup := func() {}
	var auth []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if conn, err := net.Dial("unix", sock); err == nil {
			auth = append(auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			cleanup = func() { conn.Close() }
		}
	}
	if r.IdentityFile != "" {
		key, err := os.ReadFile(r.IdentityFile)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("read identity file: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("parse identity file: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		cleanup()
		return nil, nil, errors.New("no ssh credentials: start ssh-agent or configure remote.identity_file")
	}

	timeout := r.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, cleanup, nil
}

// Run implements Runner. The host environment is never forwarded; Env is
// exported explicitly.
func (r *SSHRunner) Run(ctx context.Context, spec RunSpec) (*RunOutput, error) {
	target, err := ParseTarget(spec.Remote, r.User)
	if err != nil {
		return nil, err
	}
	env := spec.Env
	if spec.InheritEnv {
		env = append(os.Environ(), spec.Env...)
	}
	env = exportable(env)
	script, err := RemoteScript(env, spec.Script)
	if err != nil {
		return nil, err
	}
	cfg, cleanup, err := r.clientConfig(target)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	start := time.Now()
	client, err := ssh.Dial("tcp", target.Addr(), cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target.Addr(), err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session on %s: %w", target.Host, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdin = strings.NewReader(script)
	if spec.Terminal {
		session.Stdout = spec.Stdout
		session.Stderr = spec.Stderr
	} else {
		session.Stdout = &stdout
		session.Stderr = &stderr
	}

	cmd := spec.shell() + " -s"
	if spec.WorkDir != "" {
		q, err := syntax.Quote(spec.WorkDir, syntax.LangPOSIX)
		if err != nil {
			return nil, fmt.Errorf("quote workdir: %w", err)
		}
		cmd = "cd " + q + " && " + cmd
	}

	err = session.Run(cmd)
	out := &RunOutput{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Duration: time.Since(start)}
	if err != nil {
		var exitErr *ssh.ExitError
		switch {
		case errors.As(err, &exitErr):
			out.ExitCode = exitErr.ExitStatus()
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, io.EOF):
			return nil, fmt.Errorf("run %q on %s: connection closed", spec.Key, target.Host)
		default:
			return nil, fmt.Errorf("run %q on %s: %w", spec.Key, target.Host, err)
		}
	}
	return out, nil
}

// exportable drops entries whose names cannot be exported by a POSIX shell.
func exportable(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if name != "" && syntax.ValidName(name) && !hostOnlyEnv[name] {
			out = append(out, kv)
		}
	}
	return out
}
