// Package types provides the Template aggregate and the document types it is
// assembled from. These types are shared by the loader, the HTTP server and
// the CLI, and live here to avoid circular dependencies between packages.
package types

import (
	"slices"
	"strings"
)

// Template is the full bundle for one learning unit: program source, its
// descriptive metadata, line explanations, program structure, function specs
// and precomputed execution traces.
//
// A Template is built fresh by every load and must not be mutated afterwards.
type Template struct {
	// ID is the store directory name the template was loaded from
	ID string `json:"id" yaml:"id"`
	// Code is the raw program source
	Code string `json:"code" yaml:"code"`
	// Metadata describes the template for listings
	Metadata TemplateMetadata `json:"metadata" yaml:"metadata"`
	// Explanations holds line annotations in stored order
	Explanations []LineExplanation `json:"explanations" yaml:"explanations"`
	// ProgramMap names the program's instructions and accounts
	ProgramMap ProgramMap `json:"programMap" yaml:"programMap"`
	// FunctionSpecs is empty, never nil, when the store has none
	FunctionSpecs []FunctionSpec `json:"functionSpecs" yaml:"functionSpecs"`
	// PrecomputedState holds the captured execution scenarios
	PrecomputedState PrecomputedState `json:"precomputedState" yaml:"precomputedState"`
}

// Difficulty is the tier a template is aimed at.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// TemplateMetadata is the content of metadata.json.
type TemplateMetadata struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Framework   string     `json:"framework,omitempty" yaml:"framework,omitempty"`
	Version     string     `json:"version,omitempty" yaml:"version,omitempty"`
}

// ExplanationsFor returns the explanations attached to any of the given
// lines, in stored order. Duplicate line entries are all returned.
func (t *Template) ExplanationsFor(lines ...int) []LineExplanation {
	if len(lines) == 0 {
		return []LineExplanation{}
	}

	wanted := make(map[int]struct{}, len(lines))
	for _, line := range lines {
		wanted[line] = struct{}{}
	}

	result := make([]LineExplanation, 0, len(lines))
	for _, explanation := range t.Explanations {
		if _, ok := wanted[explanation.Line]; ok {
			result = append(result, explanation)
		}
	}

	return result
}

// ExplanationsInRange returns the explanations for lines start..end inclusive.
func (t *Template) ExplanationsInRange(start, end int) []LineExplanation {
	result := make([]LineExplanation, 0)
	for _, explanation := range t.Explanations {
		if explanation.Line >= start && explanation.Line <= end {
			result = append(result, explanation)
		}
	}

	return result
}

// UncoveredLines returns, in ascending order, the lines in start..end that
// have no explanation. Lines past the end of Code are not reported.
func (t *Template) UncoveredLines(start, end int) []int {
	end = min(end, t.LineCount())

	covered := make(map[int]struct{}, len(t.Explanations))
	for _, explanation := range t.Explanations {
		covered[explanation.Line] = struct{}{}
	}

	result := make([]int, 0)
	for line := start; line <= end; line++ {
		if _, ok := covered[line]; !ok {
			result = append(result, line)
		}
	}

	return result
}

// Uncovered returns the distinct lines among lines that have no explanation,
// sorted ascending.
func (t *Template) Uncovered(lines ...int) []int {
	covered := make(map[int]struct{}, len(t.Explanations))
	for _, explanation := range t.Explanations {
		covered[explanation.Line] = struct{}{}
	}

	result := make([]int, 0)
	for _, line := range lines {
		if _, ok := covered[line]; !ok {
			result = append(result, line)
		}
	}

	slices.Sort(result)
	return slices.Compact(result)
}

// LineCount returns the number of source lines in Code. A trailing newline
// does not start a new line.
func (t *Template) LineCount() int {
	if t.Code == "" {
		return 0
	}
	n := strings.Count(t.Code, "\n")
	if !strings.HasSuffix(t.Code, "\n") {
		n++
	}
	return n
}
