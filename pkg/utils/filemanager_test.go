package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/invoice-normalizer/internal/types"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscoverFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.csv"))
	touch(t, filepath.Join(dir, "A.CSV"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "data.dat"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	files, err := DiscoverFiles(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "A.CSV"), filepath.Join(dir, "b.csv")}, files)

	files, err = DiscoverFiles(dir, []string{"*.dat", "*.txt"})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = DiscoverFiles(dir, []string{"["})
	assert.Error(t, err)

	_, err = DiscoverFiles(filepath.Join(dir, "missing"), nil)
	assert.Error(t, err)
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.csv")
	touch(t, path)

	assert.True(t, IsRegularFile(path))
	assert.False(t, IsRegularFile(dir))
	assert.False(t, IsRegularFile(filepath.Join(dir, "nope")))
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2025, 2, 7, 14, 30, 22, 0, time.UTC)

	got := generateName("normalizado_{providers}_{timestamp}", map[string]string{"providers": "keller-monroe"}, now)
	assert.Equal(t, "normalizado_keller-monroe_20250207_143022.xlsx", got)

	got = generateName("{date}.XLSX", nil, now)
	assert.Equal(t, "20250207.XLSX", got)

	got = GenerateOutputFileName("{uuid}.xlsx", nil)
	assert.Len(t, strings.TrimSuffix(got, ".xlsx"), 36)
}

func TestSiblingPath(t *testing.T) {
	assert.Equal(t, "/out/run.csv", SiblingPath("/out/run.xlsx", ".csv"))
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 2, 7, 10, 0, 0, 0, time.UTC)
	summary := &types.RunSummary{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		OutputFile: "/out/x.xlsx",
		TotalRows:  7,
		Items: []types.ItemOutcome{
			{Index: 0, Path: "monroe.csv", Provider: "monroe", Rows: 7},
			{Index: 1, Path: "suizo.csv", Provider: "suizo", Err: errors.New("read: file unreadable")},
		},
		Warnings: []string{"header rows without a date"},
	}

	path, err := WriteSummaryLog(summary, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "resumen_20250207_100000.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "Run ID:         run-1")
	assert.Contains(t, out, "Successful:     1")
	assert.Contains(t, out, "Failed:         1")
	assert.Contains(t, out, "Error: read: file unreadable")
	assert.Contains(t, out, "- header rows without a date")
}
