package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ormasoftchile/envrun/pkg/config"
	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/runtime"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

// defaultDocuments are looked up in the working directory when --doc is
// not given.
var defaultDocuments = []string{"scripts.yaml", "scripts.yml", "scripts.json"}

const importTimeout = 30 * time.Second

func newLogger(w io.Writer, level string, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{Prefix: "envrun"})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.WarnLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	l.SetLevel(lvl)
	return l
}

// findDocument returns path, or the first default document in dir.
func findDocument(path, dir string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, name := range defaultDocuments {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no script document found (looked for %s); pass --doc", strings.Join(defaultDocuments, ", "))
}

func loadDocument() (*schema.Document, error) {
	path, err := findDocument(docPath, "")
	if err != nil {
		return nil, err
	}
	doc, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return doc, nil
}

// parseAnswers decodes --answers: a JSON object, or @file holding one.
// Non-string values are rendered with their JSON text.
func parseAnswers(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}
	data := []byte(s)
	if name, ok := strings.CutPrefix(s, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read answers: %w", err)
		}
		data = b
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse answers: expected a JSON object: %w", err)
	}
	answers := make(map[string]string, len(raw))
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			answers[k] = str
			continue
		}
		answers[k] = string(v)
	}
	return answers, nil
}

// batchMode is on when requested or when stdin cannot prompt.
func batchMode(flag bool, stdin io.Reader) bool {
	return flag || cfg.Batch || !providers.IsTerminal(stdin)
}

func newRuntimeContext(c *config.Config) *runtime.RuntimeContext {
	return runtime.NewRuntimeContext(
		providers.NewContainerEngine(c.ContainerEngine),
		runtime.WithCheckTimeout(c.CheckTimeout),
		runtime.WithVersionURL(c.VersionCheckURL),
	)
}

// engineOptions maps the configuration onto engine options.
func engineOptions(c *config.Config, l *log.Logger, rc *runtime.RuntimeContext, batch bool, stdin io.Reader, stdout, stderr io.Writer) []runtime.Option {
	return []runtime.Option{
		runtime.WithLogger(l),
		runtime.WithRuntimeContext(rc),
		runtime.WithRunners(runtime.Runners{
			Remote: &providers.SSHRunner{
				KnownHostsFile: c.Remote.KnownHosts,
				IdentityFile:   c.Remote.IdentityFile,
				User:           c.Remote.User,
				DialTimeout:    c.Remote.DialTimeout,
			},
		}),
		runtime.WithLoader(schema.NewFileLoader(c.ImportRetries, importTimeout)),
		runtime.WithShell(c.Shell),
		runtime.WithLiteralKeys(c.LiteralKeys...),
		runtime.WithBatch(batch),
		runtime.WithIO(stdin, stdout, stderr),
	}
}
