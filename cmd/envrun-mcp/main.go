// Package main provides the envrun-mcp binary: an MCP server for AI agents.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/envrun/pkg/config"
	emcp "github.com/ormasoftchile/envrun/pkg/ecosystem/mcp"
	"github.com/ormasoftchile/envrun/pkg/providers"
	"github.com/ormasoftchile/envrun/pkg/runtime"
	"github.com/ormasoftchile/envrun/pkg/schema"
)

var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("ENVRUN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the protocol
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "envrun-mcp"})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	rc := runtime.NewRuntimeContext(
		providers.NewContainerEngine(cfg.ContainerEngine),
		runtime.WithCheckTimeout(cfg.CheckTimeout),
	)
	s := emcp.NewServer(version,
		runtime.WithLogger(logger),
		runtime.WithRuntimeContext(rc),
		runtime.WithRunners(runtime.Runners{
			Remote: &providers.SSHRunner{
				KnownHostsFile: cfg.Remote.KnownHosts,
				IdentityFile:   cfg.Remote.IdentityFile,
				User:           cfg.Remote.User,
				DialTimeout:    cfg.Remote.DialTimeout,
			},
		}),
		runtime.WithLoader(schema.NewFileLoader(cfg.ImportRetries, 30*time.Second)),
		runtime.WithShell(cfg.Shell),
		runtime.WithLiteralKeys(cfg.LiteralKeys...),
	)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
