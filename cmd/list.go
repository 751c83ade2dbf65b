package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/anchorplay/internal/errors"
	"github.com/conneroisu/anchorplay/internal/loader"
	"github.com/conneroisu/anchorplay/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l", "ls"},
	Short:   "List templates in the store",
	Long: `List the template ids in the store, sorted by name.

With --details every template is loaded and its metadata shown; templates
that fail to load are reported with their error kind.

Examples:
  anchorplay list                 # Ids only
  anchorplay list -d              # Name, difficulty and tags
  anchorplay list -d -o json      # Details as JSON`,
	RunE: runList,
}

var (
	listFlags   *StandardFlags
	listDetails bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, []string{"output"}, "table", "json", "yaml")
	listCmd.Flags().BoolVarP(&listDetails, "details", "d", false, "Load each template and include its metadata")
}

// TemplateSummary is one row of the detailed listing.
type TemplateSummary struct {
	ID         string           `json:"id" yaml:"id"`
	Name       string           `json:"name,omitempty" yaml:"name,omitempty"`
	Difficulty types.Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Tags       []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Lines      int              `json:"lines,omitempty" yaml:"lines,omitempty"`
	Explained  int              `json:"explained,omitempty" yaml:"explained,omitempty"`
	Scenarios  int              `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	ids, err := a.loader.ListTemplates(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	format := strings.ToLower(listFlags.OutputFormat)

	if !listDetails {
		if format == "table" {
			if len(ids) == 0 && !listFlags.Quiet {
				fmt.Fprintln(out, "No templates found.")
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		}
		return writeStructured(out, format, ids)
	}

	summaries := summarize(ctx, a.loader, ids)
	if format == "table" {
		return outputSummaryTable(out, summaries, listFlags.Quiet)
	}
	return writeStructured(out, format, summaries)
}

func summarize(ctx context.Context, l *loader.Loader, ids []string) []TemplateSummary {
	summaries := make([]TemplateSummary, 0, len(ids))

	for _, id := range ids {
		tmpl, err := l.LoadTemplate(ctx, id)
		if err != nil {
			summaries = append(summaries, TemplateSummary{ID: id, Error: string(errors.KindOf(err))})
			continue
		}

		explained := make(map[int]struct{}, len(tmpl.Explanations))
		for _, explanation := range tmpl.Explanations {
			explained[explanation.Line] = struct{}{}
		}

		summaries = append(summaries, TemplateSummary{
			ID:         id,
			Name:       tmpl.Metadata.Name,
			Difficulty: tmpl.Metadata.Difficulty,
			Tags:       tmpl.Metadata.Tags,
			Lines:      tmpl.LineCount(),
			Explained:  len(explained),
			Scenarios:  len(tmpl.PrecomputedState.Scenarios),
		})
	}

	return summaries
}

func outputSummaryTable(out io.Writer, summaries []TemplateSummary, quiet bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	title := cases.Title(language.English)

	fmt.Fprintln(w, "ID\tNAME\tDIFFICULTY\tCOVERAGE\tSCENARIOS\tTAGS")
	for _, summary := range summaries {
		if summary.Error != "" {
			fmt.Fprintf(w, "%s\t(error: %s)\t\t\t\t\n", summary.ID, summary.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			summary.ID,
			summary.Name,
			title.String(string(summary.Difficulty)),
			summary.Explained,
			summary.Lines,
			summary.Scenarios,
			strings.Join(summary.Tags, ", "),
		)
	}

	if !quiet {
		fmt.Fprintf(w, "\nTotal: %d templates\n", len(summaries))
	}

	return w.Flush()
}
