package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/envrun/pkg/schema"
	"github.com/ormasoftchile/envrun/pkg/tui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [document]",
	Short: "Validate a script document against the schema",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := docPath
	if len(args) == 1 {
		path = args[0]
	}
	path, err := findDocument(path, "")
	if err != nil {
		return err
	}

	doc, errs := schema.ValidateFile(path)
	stderr := cmd.ErrOrStderr()
	var failures []*schema.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(stderr, "    at: %s\n", e.Path)
			}
			continue
		}
		failures = append(failures, e)
	}
	if len(failures) > 0 {
		fmt.Fprintf(stderr, "Validation failed: %d error(s)\n\n", len(failures))
		for i, e := range failures {
			fmt.Fprintf(stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(failures))
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.SuccessStyle.Render(tui.GlyphSelected)+
		fmt.Sprintf(" %s is valid (%d env groups, %d scripts)", path, len(doc.GroupNames()), len(doc.ListScripts())))
	return nil
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Export the document JSON Schema to stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := schema.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			formatted = data
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(formatted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
}
