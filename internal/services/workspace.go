package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ScratchWorkspace is the run-exclusive temporary directory holding pages
// that have been downloaded but not yet uploaded. One workspace belongs to
// exactly one pipeline run; a fresh path per run keeps concurrent runs
// disjoint.
type ScratchWorkspace struct {
	dir    string
	logger *slog.Logger
}

// NewScratchWorkspace creates the workspace directory. runID keeps the path
// unique across concurrent runs.
func NewScratchWorkspace(runID string, logger *slog.Logger) (*ScratchWorkspace, error) {
	dir, err := os.MkdirTemp("", "bookflow-"+runID+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch workspace: %w", err)
	}
	return &ScratchWorkspace{dir: dir, logger: logger}, nil
}

// Dir returns the workspace path.
func (w *ScratchWorkspace) Dir() string { return w.dir }

// PagePath returns the local download target for one page.
func (w *ScratchWorkspace) PagePath(pageNumber int) string {
	return filepath.Join(w.dir, fmt.Sprintf("page-%05d.png", pageNumber))
}

// Cleanup deletes every file in the workspace and removes the directory if
// it ends up empty. Runs on every exit path, success or failure. Deletion
// problems are logged, never escalated.
func (w *ScratchWorkspace) Cleanup() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Could not list scratch workspace for cleanup.", "dir", w.dir, "error", err)
		}
		return
	}
	for _, entry := range entries {
		path := filepath.Join(w.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			w.logger.Warn("Could not delete scratch file.", "path", path, "error", err)
		}
	}
	if err := os.Remove(w.dir); err != nil {
		// Non-empty or already gone; only the former is worth a warning.
		if !os.IsNotExist(err) {
			w.logger.Warn("Could not remove scratch workspace directory.", "dir", w.dir, "error", err)
		}
	}
}
