package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/anchorplay/internal/server"
	"github.com/conneroisu/anchorplay/internal/types"
)

var explainCmd = &cobra.Command{
	Use:   "explain <id>",
	Short: "Show the stored explanations for source lines",
	Long: `Print source lines of a template together with their explanations.
Lines without an explanation are listed at the end.

Examples:
  anchorplay explain counter                  # Every line
  anchorplay explain counter --lines 3-7      # A range
  anchorplay explain counter --lines 1,4,9-11 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runExplain,
}

var (
	explainFlags *StandardFlags
	explainLines lineSelection
)

func init() {
	rootCmd.AddCommand(explainCmd)

	explainFlags = AddStandardFlags(explainCmd, []string{"output"}, "text", "json", "yaml")
	explainCmd.Flags().Var(&explainLines, "lines", `Lines to explain, e.g. "3-7" or "1,4,9" (default all)`)
}

func runExplain(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tmpl, err := a.loader.LoadTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	lines := explainLines.expand(tmpl.LineCount())

	response := server.ExplanationsResponse{
		Template:     tmpl.ID,
		Explanations: tmpl.ExplanationsFor(lines...),
		Uncovered:    tmpl.Uncovered(lines...),
		Context: server.ExplanationContext{
			Instructions: tmpl.ProgramMap.InstructionNames(),
			Accounts:     tmpl.ProgramMap.AccountNames(),
		},
	}

	out := cmd.OutOrStdout()
	if format := strings.ToLower(explainFlags.OutputFormat); format != "text" {
		return writeStructured(out, format, response)
	}

	writeExplanations(out, tmpl, response)
	return nil
}

func writeExplanations(out io.Writer, tmpl *types.Template, response server.ExplanationsResponse) {
	source := strings.Split(tmpl.Code, "\n")

	for _, explanation := range response.Explanations {
		text := ""
		if explanation.Line <= len(source) {
			text = strings.TrimSpace(source[explanation.Line-1])
		}

		fmt.Fprintf(out, "%4d | %s\n", explanation.Line, text)
		fmt.Fprintf(out, "     [%s] %s\n", explanation.Type, explanation.Summary)
		if explanation.Why != "" {
			fmt.Fprintf(out, "     why: %s\n", explanation.Why)
		}
		if explanation.Risk != "" {
			fmt.Fprintf(out, "     risk: %s\n", explanation.Risk)
		}
		if len(explanation.Concepts) > 0 {
			fmt.Fprintf(out, "     concepts: %s\n", strings.Join(explanation.Concepts, ", "))
		}
	}

	if len(response.Uncovered) > 0 && !explainFlags.Quiet {
		uncovered := make([]string, len(response.Uncovered))
		for i, line := range response.Uncovered {
			uncovered[i] = fmt.Sprint(line)
		}
		fmt.Fprintf(out, "\nNo explanation for lines: %s\n", strings.Join(uncovered, ", "))
	}
}
