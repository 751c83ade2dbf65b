package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Server flags
	Port int
	Host string

	// Output flags
	OutputFormat string
	Quiet        bool
}

// AddStandardFlags adds standard flags to a command. outputFormats lists the
// formats the command accepts; the first is the default.
func AddStandardFlags(cmd *cobra.Command, flagTypes []string, outputFormats ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "server":
			addServerFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags, outputFormats)
		}
	}

	return flags
}

func addServerFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Port, "port", "p", 3000, "Port to serve on")
	cmd.Flags().StringVar(&flags.Host, "host", "localhost", "Host to bind to")
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags, formats []string) {
	if len(formats) == 0 {
		formats = []string{"table", "json", "yaml"}
	}
	usage := fmt.Sprintf("Output format (%s)", strings.Join(formats, "|"))
	cmd.Flags().StringVarP(&flags.OutputFormat, "output", "o", formats[0], usage)
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")

	previous := cmd.PreRunE
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if err := ValidateFormat(flags.OutputFormat, formats); err != nil {
			return err
		}
		if previous != nil {
			return previous(cmd, args)
		}
		return nil
	}
}

// ValidateFormat checks format against the allowed values, case-insensitively.
func ValidateFormat(format string, allowed []string) error {
	if slices.Contains(allowed, strings.ToLower(format)) {
		return nil
	}
	return fmt.Errorf("unsupported output format %q (supported: %s)", format, strings.Join(allowed, ", "))
}

// writeStructured encodes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported structured format: %s", format)
	}
}

// lineSelection is a pflag.Value accepting "7", "3-7" or "1,4,9-11". Ranges
// are kept as given and only expanded against a known line count.
type lineSelection struct {
	ranges []lineRange
	raw    string
}

type lineRange struct {
	start, end int
}

var _ pflag.Value = (*lineSelection)(nil)

func (l *lineSelection) String() string {
	return l.raw
}

func (l *lineSelection) Type() string {
	return "lines"
}

// Set parses value. An empty value clears the selection.
func (l *lineSelection) Set(value string) error {
	if value == "" {
		l.ranges, l.raw = nil, ""
		return nil
	}

	var ranges []lineRange

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("empty line selection in %q", value)
		}

		first, last, isRange := strings.Cut(part, "-")
		start, err := parseLineNumber(first)
		if err != nil {
			return err
		}
		end := start
		if isRange {
			if end, err = parseLineNumber(last); err != nil {
				return err
			}
			if end < start {
				return fmt.Errorf("line range %q ends before it starts", part)
			}
		}

		ranges = append(ranges, lineRange{start: start, end: end})
	}

	l.ranges = ranges
	l.raw = value
	return nil
}

func (l *lineSelection) isSet() bool {
	return len(l.ranges) > 0
}

// expand lists the selected lines in selection order, dropping lines past
// lineCount. An unset selection yields every line.
func (l *lineSelection) expand(lineCount int) []int {
	if !l.isSet() {
		return l.all(lineCount)
	}

	var lines []int
	for _, r := range l.ranges {
		for line := r.start; line <= min(r.end, lineCount); line++ {
			lines = append(lines, line)
		}
	}
	return lines
}

func (l *lineSelection) all(lineCount int) []int {
	lines := make([]int, 0, lineCount)
	for line := 1; line <= lineCount; line++ {
		lines = append(lines, line)
	}
	return lines
}

func parseLineNumber(value string) (int, error) {
	line, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid line number %q", value)
	}
	if line < 1 {
		return 0, fmt.Errorf("line numbers start at 1, got %d", line)
	}
	return line, nil
}
