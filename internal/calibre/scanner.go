package calibre

import (
	"cmp"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/biblioapp/biblio/internal/catalog"
)

// scanDepth is how deep below the root libraries are looked for.
const scanDepth = 2

// Scanner discovers Calibre libraries under a root directory.
type Scanner struct {
	root   string
	logger *slog.Logger
}

// NewScanner creates a scanner for root.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scanner{root: root, logger: logger}
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string {
	return s.root
}

// Scan returns every directory at most two levels below the root (the root included) that
// holds a metadata.db, sorted by name. Libraries whose database cannot be read are skipped.
func (s *Scanner) Scan(ctx context.Context) ([]catalog.Library, error) {
	if _, err := os.Stat(s.root); err != nil {
		return nil, err
	}

	var libraries []catalog.Library
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, the rest of the tree is still scanned.
			s.logger.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() && path != s.root {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() {
			return nil
		}

		if isLibrary(path) {
			lib, err := s.describe(ctx, path)
			if err != nil {
				s.logger.Warn("Skipping unreadable library", "path", path, "error", err)
			} else {
				libraries = append(libraries, lib)
			}
		}

		if depth(s.root, path) >= scanDepth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(libraries, func(a, b catalog.Library) int {
		return cmp.Compare(a.Name, b.Name)
	})

	s.logger.Debug("Library scan complete", "root", s.root, "libraries", len(libraries))
	return libraries, nil
}

func (s *Scanner) describe(ctx context.Context, path string) (catalog.Library, error) {
	db, err := OpenDB(path, s.logger)
	if err != nil {
		return catalog.Library{}, err
	}
	defer db.Close()

	count, err := db.CountBooks(ctx)
	if err != nil {
		return catalog.Library{}, err
	}

	return catalog.Library{
		ID:        LibraryID(path),
		Name:      LibraryName(path),
		Path:      path,
		BookCount: count,
	}, nil
}

// LibraryID derives a stable id from a library path.
func LibraryID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(path)).String()
}

// LibraryName is the directory name in NFC form. Filesystems such as APFS hand back
// decomposed names, which would otherwise sort and compare inconsistently.
func LibraryName(path string) string {
	return norm.NFC.String(filepath.Base(path))
}

func isLibrary(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, MetadataFile))
	return err == nil && info.Mode().IsRegular()
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}
