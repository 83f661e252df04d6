package ics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.ics")

	require.NoError(t, Write(path, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", string(b))
}

func TestWriteReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.ics")
	require.NoError(t, os.WriteFile(path, []byte("a much longer previous document"), 0o644))

	require.NoError(t, Write(path, "short"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(b))
}

func TestWriteMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "schedule.ics")

	err := Write(path, "doc")
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteEmptyPath(t *testing.T) {
	assert.Error(t, Write("", "doc"))
}

func TestFileWriterLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	w := FileWriter{Perm: 0o600}

	require.NoError(t, w.WriteDocument(context.Background(), filepath.Join(dir, "a.ics"), []byte("doc")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.ics", entries[0].Name())

	info, err := entries[0].Info()
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileWriterCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := FileWriter{}.WriteDocument(ctx, filepath.Join(t.TempDir(), "a.ics"), []byte("doc"))
	assert.ErrorIs(t, err, context.Canceled)
}
