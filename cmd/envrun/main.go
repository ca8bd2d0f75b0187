// Package main provides the envrun binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/envrun/pkg/config"
	"github.com/ormasoftchile/envrun/pkg/errdefs"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Global flags and the state PersistentPreRunE builds from them.
var (
	configPath string
	docPath    string
	verbose    bool

	cfg    *config.Config
	logger *log.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// reportError prints err the way the user needs to see it. Runtime
// failures carry their own remediation.
func reportError(err error) {
	var unavailable *errdefs.RuntimeUnavailableError
	if errors.As(err, &unavailable) {
		fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("✗ ")+unavailable.Format())
		return
	}
	fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("✗ ")+err.Error())
}

var rootCmd = &cobra.Command{
	Use:           "envrun",
	Short:         "Run scripts against named environment groups",
	Long:          "envrun merges environment groups from a document into a variable store, asks for missing input and runs the requested script.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		logger = newLogger(cmd.ErrOrStderr(), cfg.LogLevel, verbose)
		if cfg.Path != "" {
			logger.Debug("loaded config", "path", cfg.Path)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "envrun %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./envrun.yaml, then $XDG_CONFIG_HOME/envrun/envrun.yaml)")
	rootCmd.PersistentFlags().StringVarP(&docPath, "doc", "f", "", "Script document (default: first of "+fmt.Sprint(defaultDocuments)+" in the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(versionCmd)
}
