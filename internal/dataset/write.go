package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"
)

// WriteError indicates a failure during the atomic replace. The original
// dataset file is left intact because replacement happens via rename.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return "dataset: write " + e.Path + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error { return e.Err }

// WriteAtomic writes the table to path through a temp file in the same
// directory followed by a rename, so an interrupted run never leaves the
// dataset truncated or with a mixed schema.
func (t *Table) WriteAtomic(path string) error {
	// CreateTemp creates 0600; carry the original's mode over so read-only
	// consumers keep access after the replace.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after successful rename

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Header); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			tmp.Close()
			return &WriteError{Path: path, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}
