package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the scripts of the document",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument()
		if err != nil {
			return err
		}
		entries := doc.ListScripts()
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), entries)
		}
		printScripts(cmd.OutOrStdout(), entries)
		return nil
	},
}

var envsCmd = &cobra.Command{
	Use:   "envs",
	Short: "List the environment groups of the document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := loadDocument()
		if err != nil {
			return err
		}
		groups := doc.ListGroups()
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), groups)
		}
		printGroups(cmd.OutOrStdout(), groups)
		return nil
	},
}

func printScripts(w io.Writer, entries []schema.Entry) {
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Name()))
	}
	for _, e := range entries {
		line := fmt.Sprintf("%-*s  %-9s", width, e.Name(), e.Kind)
		if e.Description != "" {
			line += "  " + tui.DimStyle.Render(tui.Truncate(e.Description, 60))
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func printGroups(w io.Writer, groups []schema.GroupEntry) {
	for _, g := range groups {
		fmt.Fprintf(w, "%s (%d)", g.Name, len(g.Keys))
		if g.Description != "" {
			fmt.Fprint(w, "  "+tui.DimStyle.Render(g.Description))
		}
		fmt.Fprintln(w)
		if len(g.Keys) > 0 {
			fmt.Fprintln(w, tui.Indent(strings.Join(g.Keys, " "), "  "))
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	envsCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(envsCmd)
}
