package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Options configures the library watcher.
type Options struct {
	// Targets are the file names that signal a library change.
	Targets     []string
	SettleDelay time.Duration
	// MaxDepth limits how far below a watched root directories are followed.
	MaxDepth     int
	IgnoreHidden bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.SettleDelay == 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.MaxDepth == 0 {
		o.MaxDepth = 2
	}

	// Calibre commits through a rollback journal or a WAL depending on version.
	if o.Targets == nil {
		o.Targets = []string{"metadata.db", "metadata.db-wal"}
		o.IgnoreHidden = true
	}
}

// isTarget reports whether path names a database file we care about.
func (o *Options) isTarget(path string) bool {
	return slices.Contains(o.Targets, filepath.Base(path))
}

// shouldIgnore checks if a path sits in a hidden directory or is itself hidden.
func (o *Options) shouldIgnore(path string) bool {
	if !o.IgnoreHidden {
		return false
	}
	for part := range strings.SplitSeq(filepath.Clean(path), string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
