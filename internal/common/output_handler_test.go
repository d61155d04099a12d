package common

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atslite/internal/errors"
	"atslite/internal/types"
)

func testLogger() *errors.Logger {
	var buf bytes.Buffer
	return errors.NewWithWriter(&buf, slog.LevelError)
}

func TestOutputHandler_Stdout(t *testing.T) {
	var out bytes.Buffer
	oh := NewOutputHandler(&out, testLogger())

	report := types.ValidationReport{Source: "candidates.csv", Kind: "csv", Valid: true, Records: 3}
	require.NoError(t, oh.HandleOutput(report, CommandConfig{OutputFormat: "json"}))
	assert.Contains(t, out.String(), `"records": 3`)
}

func TestOutputHandler_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "report.txt")

	var out bytes.Buffer
	oh := NewOutputHandler(&out, testLogger())
	report := types.ValidationReport{Source: "plan.json", Kind: "plan", Valid: false, Problems: []string{"filter.include: bad"}}

	require.NoError(t, oh.HandleOutput(report, CommandConfig{OutputFile: path, OutputFormat: "text"}))
	assert.Empty(t, out.String())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "filter.include: bad")
}

func TestOutputHandler_UnknownFormat(t *testing.T) {
	oh := NewOutputHandler(&bytes.Buffer{}, testLogger())
	err := oh.HandleOutput(types.ValidationReport{}, CommandConfig{OutputFormat: "yaml"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))
}

func TestFileProcessor_ReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"filter":null}`), 0600))

	fp := NewFileProcessor(testLogger())

	t.Run("existing", func(t *testing.T) {
		content, err := fp.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, `{"filter":null}`, string(content))
	})

	t.Run("missing", func(t *testing.T) {
		_, err := fp.ReadFile(filepath.Join(dir, "nope.json"))
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeFileNotFound))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := fp.ReadFile(dir)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeFileNotReadable))
	})
}
