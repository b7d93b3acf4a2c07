package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSyncCommand_EmptyDatabase(t *testing.T) {
	out := execute(t, "sync", "--db", ":memory:", "--log-level", "error", "--year", "2025", "--month", "3")

	assert.Equal(t, "2025-03: 0 created, 0 linked, 0 skipped\n", out)
}

func TestSummaryCommand_WritesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "march.xlsx")

	out := execute(t, "summary", "--db", ":memory:", "--log-level", "error", "--year", "2025", "--month", "3", "--xlsx", path)

	assert.Contains(t, out, "Wrote 0 summaries")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestSyncCommand_RejectsBadMonth(t *testing.T) {
	rootCmd.SetArgs([]string{"sync", "--db", ":memory:", "--year", "2025", "--month", "13"})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	assert.Error(t, rootCmd.Execute())
}
