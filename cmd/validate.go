package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/anchorplay/internal/errors"
)

var validateCmd = &cobra.Command{
	Use:   "validate [id...]",
	Short: "Check templates against the document schemas",
	Long: `Load every template in the store, or only the given ids, and report the
ones that fail. Exits non-zero when any template fails.

Examples:
  anchorplay validate                     # Whole store
  anchorplay validate counter escrow      # Selected templates
  anchorplay validate -o json             # Machine readable report`,
	RunE: runValidate,
}

var validateFlags *StandardFlags

func init() {
	rootCmd.AddCommand(validateCmd)

	validateFlags = AddStandardFlags(validateCmd, []string{"output"}, "text", "json", "yaml")
}

// ValidationReport is the outcome for one template.
type ValidationReport struct {
	ID      string `json:"id" yaml:"id"`
	Valid   bool   `json:"valid" yaml:"valid"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	ids := args
	if len(ids) == 0 {
		if ids, err = a.loader.ListTemplates(ctx); err != nil {
			return err
		}
	}

	reports := make([]ValidationReport, 0, len(ids))
	failed := 0
	for _, id := range ids {
		report := ValidationReport{ID: id, Valid: true}
		if _, err := a.loader.LoadTemplate(ctx, id); err != nil {
			failed++
			report.Valid = false
			report.Kind = string(errors.KindOf(err))
			report.Message = err.Error()
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if format := strings.ToLower(validateFlags.OutputFormat); format != "text" {
		if err := writeStructured(out, format, reports); err != nil {
			return err
		}
	} else {
		for _, report := range reports {
			switch {
			case !report.Valid:
				fmt.Fprintf(out, "FAIL  %s\n      %s\n", report.ID, report.Message)
			case !validateFlags.Quiet:
				fmt.Fprintf(out, "ok    %s\n", report.ID)
			}
		}
		if !validateFlags.Quiet {
			fmt.Fprintf(out, "\n%d templates checked, %d failed\n", len(reports), failed)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed validation", failed, len(reports))
	}
	return nil
}
