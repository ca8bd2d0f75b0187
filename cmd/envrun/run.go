package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/envrun/pkg/runtime"
	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

var (
	runEnvs      []string
	runAnswers   string
	runBatch     bool
	runNoHistory bool
	runCapture   bool
)

var runCmd = &cobra.Command{
	Use:   "run [script path...]",
	Short: "Run a script with the given environment groups",
	Long: `Run resolves the requested environment groups in order, then runs the
script found at the given path. Path segments may be separated by spaces or
slashes and each segment may be a unique prefix.

Examples:
  envrun run -e base -e dev deploy web
  envrun run -e prod db/migrate --answers '{"REGION":"eu"}'
  envrun run -e dev build --batch < /dev/null`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument()
	if err != nil {
		return err
	}
	answers, err := parseAnswers(runAnswers)
	if err != nil {
		return err
	}

	stdin := cmd.InOrStdin()
	rc := newRuntimeContext(cfg)
	rc.CheckVersion(cmd.Context(), version, logger)

	opts := engineOptions(cfg, logger, rc, batchMode(runBatch, stdin), stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
	path := schema.SplitPath(strings.Join(args, " "))
	res, runErr := runtime.Invoke(cmd.Context(), doc, runEnvs, path, answers, !runCapture, opts...)
	return finish(cmd, res, runErr)
}

// finish prints the captured outputs, records the run and reports how to
// repeat it.
func finish(cmd *cobra.Command, res *runtime.Result, runErr error) error {
	out := cmd.OutOrStdout()
	for _, o := range res.Outputs {
		if o != "" {
			fmt.Fprintln(out, o)
		}
	}

	if !runNoHistory && cfg.HistoryFile != "" {
		if err := runtime.AppendHistory(cfg.HistoryFile, res); err != nil {
			logger.Warn("could not record history", "file", cfg.HistoryFile, "err", err)
		}
	}

	if runErr != nil {
		if line, err := res.CommandLine("envrun"); err == nil {
			printHint(cmd.ErrOrStderr(), "re-run with: "+line)
		}
		return runErr
	}
	logger.Debug("run finished", "id", res.ID, "envs", res.EnvNames, "script", strings.Join(res.ScriptPath, "/"))
	return nil
}

func printHint(w io.Writer, s string) {
	fmt.Fprintln(w, tui.DimStyle.Render(s))
}

func init() {
	runCmd.Flags().StringArrayVarP(&runEnvs, "env", "e", nil, "Environment group to apply, repeatable; later groups win")
	runCmd.Flags().StringVar(&runAnswers, "answers", "", "Answers to prompts as a JSON object, or @file")
	runCmd.Flags().BoolVar(&runBatch, "batch", false, "Never prompt; fail when input is missing")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history log")
	runCmd.Flags().BoolVar(&runCapture, "capture", false, "Capture the final command's output instead of streaming it")
	rootCmd.AddCommand(runCmd)
}

