package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/envrun/pkg/runtime"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := runtime.ReadHistory(cfg.HistoryFile)
		if err != nil {
			return err
		}
		var shown []*runtime.Result
		for i := len(records) - 1; i >= 0; i-- {
			if historyLimit > 0 && len(shown) == historyLimit {
				break
			}
			shown = append(shown, records[i])
		}
		if historyJSON {
			return writeJSON(cmd.OutOrStdout(), shown)
		}
		out := cmd.OutOrStdout()
		for i, r := range shown {
			fmt.Fprintln(out, historyLine(i, r))
		}
		return nil
	},
}

func historyLine(n int, r *runtime.Result) string {
	status := tui.SuccessStyle.Render(tui.GlyphSelected)
	if !r.Success {
		status = tui.ErrorStyle.Render(tui.GlyphFailed)
	}
	line := fmt.Sprintf("%3d %s %s  %s", n, status, r.Timestamp.Local().Format("2006-01-02 15:04:05"), strings.Join(r.ScriptPath, "/"))
	if len(r.EnvNames) > 0 {
		line += " " + tui.DimStyle.Render("["+strings.Join(r.EnvNames, ", ")+"]")
	}
	return line
}

var rerunCmd = &cobra.Command{
	Use:   "rerun [n]",
	Short: "Run a recorded invocation again with its captured answers",
	Long: `Rerun replays the n-th most recent run (0 is the latest) with the same
environment groups, script and answers. It never prompts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := 0
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid history index %q: %w", args[0], err)
			}
			n = v
		}
		records, err := runtime.ReadHistory(cfg.HistoryFile)
		if err != nil {
			return err
		}
		rec, err := runtime.Nth(records, n)
		if err != nil {
			return err
		}
		doc, err := loadDocument()
		if err != nil {
			return err
		}
		if line, err := rec.CommandLine("envrun"); err == nil {
			printHint(cmd.ErrOrStderr(), line)
		}

		opts := engineOptions(cfg, logger, newRuntimeContext(cfg), true, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		res, runErr := runtime.Replay(cmd.Context(), doc, rec, !runCapture, opts...)
		return finish(cmd, res, runErr)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most n runs (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	rerunCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history log")
	rerunCmd.Flags().BoolVar(&runCapture, "capture", false, "Capture the final command's output instead of streaming it")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rerunCmd)
}
