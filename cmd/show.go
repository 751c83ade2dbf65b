package cmd

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a loaded template",
	Long: `Load a template with full validation and print it.

Examples:
  anchorplay show hello-solana            # JSON
  anchorplay show hello-solana -o yaml    # YAML`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var showFlags *StandardFlags

func init() {
	rootCmd.AddCommand(showCmd)

	showFlags = AddStandardFlags(showCmd, []string{"output"}, "json", "yaml")
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tmpl, err := a.loader.LoadTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return writeStructured(cmd.OutOrStdout(), showFlags.OutputFormat, tmpl)
}
