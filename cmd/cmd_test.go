package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/anchorplay/internal/loader"
	"github.com/conneroisu/anchorplay/internal/server"
	"github.com/conneroisu/anchorplay/internal/types"
)

const helloSource = `use anchor_lang::prelude::*;

declare_id!("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS");

#[program]
pub mod hello_solana {
}
`

var helloFiles = map[string]string{
	loader.CodeFile:             helloSource,
	loader.MetadataFile:         `{"name":"Hello Solana","description":"First program","difficulty":"beginner","tags":["intro","pda"]}`,
	loader.ExplanationsFile:     `[{"line":1,"type":"logic","summary":"Anchor prelude","concepts":["anchor"]},{"line":5,"type":"macro","summary":"Marks the program module","why":"Generates the dispatcher"}]`,
	loader.ProgramMapFile:       `{"instructions":[{"name":"initialize"}],"accounts":[]}`,
	loader.PrecomputedStateFile: `{"scenarios":[{"name":"init","description":"Run initialize","instruction":"initialize","accountsBefore":[],"accountsAfter":[],"logs":["Program log: hi"],"computeUnits":1500}]}`,
}

func writeStore(t *testing.T, templates map[string]map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for id, files := range templates {
		for name, content := range files {
			path := filepath.Join(root, id, filepath.FromSlash(name))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		}
	}
	return root
}

func withFile(files map[string]string, name, content string) map[string]string {
	copied := make(map[string]string, len(files))
	for k, v := range files {
		copied[k] = v
	}
	copied[name] = content
	return copied
}

// resetFlags restores every flag to its default so runs do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func executeCommand(t *testing.T, storeRoot string, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	viper.Set("store.root", storeRoot)
	viper.Set("log.level", "error")
	viper.Set("cache.watch", false)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestListCommand(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{
		"hello-solana": helloFiles,
		"counter":      helloFiles,
	})

	out, err := executeCommand(t, root, "list")
	require.NoError(t, err)
	assert.Equal(t, "counter\nhello-solana\n", out)

	out, err = executeCommand(t, root, "list", "-o", "json")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(out), &ids))
	assert.Equal(t, []string{"counter", "hello-solana"}, ids)
}

func TestListCommand_Details(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{
		"hello-solana": helloFiles,
		"broken":       withFile(helloFiles, loader.ProgramMapFile, `{"instructions":[]}`),
	})

	out, err := executeCommand(t, root, "list", "--details")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello Solana")
	assert.Contains(t, out, "Beginner")
	assert.Contains(t, out, "2/7")
	assert.Contains(t, out, "intro, pda")
	assert.Contains(t, out, "(error: invalid_program_map)")
	assert.Contains(t, out, "Total: 2 templates")

	out, err = executeCommand(t, root, "list", "-d", "-o", "yaml")
	require.NoError(t, err)
	var summaries []TemplateSummary
	require.NoError(t, yaml.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "broken", summaries[0].ID)
	assert.Equal(t, "invalid_program_map", summaries[0].Error)
	assert.Equal(t, 1, summaries[1].Scenarios)
}

func TestListCommand_EmptyStore(t *testing.T) {
	out, err := executeCommand(t, t.TempDir(), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No templates found.")
}

func TestListCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := executeCommand(t, t.TempDir(), "list", "-o", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestShowCommand(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{"hello-solana": helloFiles})

	out, err := executeCommand(t, root, "show", "hello-solana")
	require.NoError(t, err)

	var tmpl types.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	assert.Equal(t, "hello-solana", tmpl.ID)
	assert.Equal(t, helloSource, tmpl.Code)
	assert.Len(t, tmpl.Explanations, 2)
	assert.Equal(t, uint64(1500), tmpl.PrecomputedState.Scenarios[0].ComputeUnits)

	out, err = executeCommand(t, root, "show", "hello-solana", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "programMap:")
	assert.Contains(t, out, "computeUnits: 1500")
}

func TestShowCommand_Errors(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{"hello-solana": helloFiles})

	_, err := executeCommand(t, root, "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template_not_found")

	_, err = executeCommand(t, root, "show", "../hello-solana")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_identifier")

	_, err = executeCommand(t, root, "show")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{
		"hello-solana": helloFiles,
		"bad-lines":    withFile(helloFiles, loader.ExplanationsFile, `[{"line":0,"type":"logic","summary":"x"}]`),
	})

	out, err := executeCommand(t, root, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 templates failed validation")
	assert.Contains(t, out, "FAIL  bad-lines")
	assert.Contains(t, out, "ok    hello-solana")

	out, err = executeCommand(t, root, "validate", "hello-solana")
	require.NoError(t, err)
	assert.Contains(t, out, "1 templates checked, 0 failed")

	out, err = executeCommand(t, root, "validate", "-o", "json")
	require.Error(t, err)
	var reports []ValidationReport
	require.NoError(t, json.Unmarshal([]byte(out[:bytes.LastIndexByte([]byte(out), ']')+1]), &reports))
	require.Len(t, reports, 2)
	assert.False(t, reports[0].Valid)
	assert.Equal(t, "invalid_explanations", reports[0].Kind)
	assert.True(t, reports[1].Valid)
}

func TestExplainCommand(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{"hello-solana": helloFiles})

	out, err := executeCommand(t, root, "explain", "hello-solana", "--lines", "4-5")
	require.NoError(t, err)
	assert.Contains(t, out, "   5 | #[program]")
	assert.Contains(t, out, "[macro] Marks the program module")
	assert.Contains(t, out, "why: Generates the dispatcher")
	assert.Contains(t, out, "No explanation for lines: 4")
	assert.NotContains(t, out, "Anchor prelude")

	out, err = executeCommand(t, root, "explain", "hello-solana", "--lines", "1,3", "-o", "json")
	require.NoError(t, err)
	var response server.ExplanationsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	require.Len(t, response.Explanations, 1)
	assert.Equal(t, "Anchor prelude", response.Explanations[0].Summary)
	assert.Equal(t, []int{3}, response.Uncovered)
	assert.Equal(t, []string{"initialize"}, response.Context.Instructions)

	out, err = executeCommand(t, root, "explain", "hello-solana")
	require.NoError(t, err)
	assert.Contains(t, out, "No explanation for lines: 2, 3, 4, 6, 7")
}

func TestExplainCommand_BadLines(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{"hello-solana": helloFiles})

	for _, lines := range []string{"0", "5-3", "a", "1,,2"} {
		_, err := executeCommand(t, root, "explain", "hello-solana", "--lines", lines)
		assert.Error(t, err, lines)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "anchorplay ")

	out, err = executeCommand(t, t.TempDir(), "version", "-f", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")

	_, err = executeCommand(t, t.TempDir(), "version", "-f", "xml")
	assert.Error(t, err)
}

func TestValidateCommand_CommentsNeedOptIn(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{
		"hello-solana": withFile(helloFiles, loader.ProgramMapFile,
			`{"instructions":[{"name":"initialize"}],"accounts":[], /* none yet */}`),
	})

	out, err := executeCommand(t, root, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "invalid_program_map")

	t.Setenv("ANCHORPLAY_STORE_ALLOW_COMMENTS", "true")
	_, err = executeCommand(t, root, "validate")
	require.NoError(t, err)
}

func TestLineSelection(t *testing.T) {
	tests := []struct {
		value string
		want  []int
	}{
		{"7", []int{7}},
		{"3-5", []int{3, 4, 5}},
		{"1, 4,9-10", []int{1, 4, 9, 10}},
	}

	for _, tt := range tests {
		var selection lineSelection
		require.NoError(t, selection.Set(tt.value))
		assert.Equal(t, tt.want, selection.expand(20))
		assert.Equal(t, tt.value, selection.String())
		assert.True(t, selection.isSet())
	}

	var selection lineSelection
	require.NoError(t, selection.Set("2"))
	require.NoError(t, selection.Set(""))
	assert.False(t, selection.isSet())
	assert.Equal(t, []int{1, 2, 3}, selection.expand(3))
	assert.Equal(t, "lines", selection.Type())
}

func TestLineSelection_ExpandStopsAtLineCount(t *testing.T) {
	var selection lineSelection
	require.NoError(t, selection.Set("2,3-2000000000,9"))

	assert.Equal(t, []int{2, 3, 4, 5}, selection.expand(5))
	assert.Empty(t, selection.expand(0))
}

func TestExplainCommand_LargeRange(t *testing.T) {
	root := writeStore(t, map[string]map[string]string{"hello-solana": helloFiles})

	out, err := executeCommand(t, root, "explain", "hello-solana", "--lines", "6-2000000000", "-o", "json")
	require.NoError(t, err)

	var response server.ExplanationsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &response))
	assert.Equal(t, []int{6, 7}, response.Uncovered)
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("JSON", []string{"table", "json"}))
	assert.Error(t, ValidateFormat("csv", []string{"table", "json"}))
}

func TestValidateCommand_SampleStore(t *testing.T) {
	root, err := filepath.Abs(filepath.Join("..", "templates"))
	require.NoError(t, err)

	out, err := executeCommand(t, root, "validate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "ok    hello-solana")
}
