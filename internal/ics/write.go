package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DocumentWriter persists a serialized calendar document.
type DocumentWriter interface {
	WriteDocument(ctx context.Context, dest string, doc []byte) error
}

// FileWriter writes documents to the local filesystem.
type FileWriter struct {
	// Perm is the final file mode. Zero means 0o644.
	Perm os.FileMode
}

// WriteDocument implements DocumentWriter.
func (w FileWriter) WriteDocument(ctx context.Context, dest string, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	return writeAtomic(dest, doc, perm)
}

// Write persists doc at path in one shot: the document is written to a temp
// file in the same directory, then renamed over path. A failed write never
// leaves a partial file at path.
func Write(path, doc string) error {
	return writeAtomic(path, []byte(doc), 0o644)
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return errors.New("ics: output path is empty")
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".icalgen-*.tmp")
	if err != nil {
		return fmt.Errorf("ics: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ics: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ics: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ics: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("ics: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("ics: rename into %s: %w", path, err)
	}

	return nil
}
