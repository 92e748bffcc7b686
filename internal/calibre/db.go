// Package calibre reads Calibre libraries: it discovers metadata.db files under a root
// directory and serves their books and facet tables as a catalog source.
package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/biblioapp/biblio/internal/errors"

	_ "modernc.org/sqlite"
)

// MetadataFile is the database file that marks a directory as a Calibre library.
const MetadataFile = "metadata.db"

// MaxBooks caps how many books are read from one library.
const MaxBooks = 10000

// ErrBookNotFound is returned when a book id does not exist in the library.
var ErrBookNotFound = errors.NotFound("book not found")

// DB is a read-only handle on one library's metadata.db.
type DB struct {
	db     *sql.DB
	root   string // library directory; book paths are relative to it
	logger *slog.Logger
}

// OpenDB opens the metadata.db inside libraryDir read-only.
func OpenDB(libraryDir string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	abs, err := filepath.Abs(filepath.Join(libraryDir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("resolve metadata path: %w", err)
	}

	db, err := sql.Open("sqlite", readOnlyDSN(abs))
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open metadata db %s: %w", abs, err)
	}

	return &DB{db: db, root: libraryDir, logger: logger}, nil
}

// readOnlyDSN builds a URI DSN so Calibre (which may be running) is never written to.
func readOnlyDSN(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "query_only(1)")
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: q.Encode()}
	return u.String()
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// CountBooks returns the number of books, capped at MaxBooks.
func (d *DB) CountBooks(ctx context.Context) (int, error) {
	var n int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM books").Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return min(n, MaxBooks), nil
}

// CoverPath returns the cover image of a book, or ErrBookNotFound when the book does not
// exist or has no cover.
func (d *DB) CoverPath(ctx context.Context, bookID int64) (string, error) {
	var (
		dir      string
		hasCover bool
	)
	err := d.db.QueryRowContext(ctx, "SELECT path, has_cover FROM books WHERE id = ?", bookID).Scan(&dir, &hasCover)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !hasCover) {
		return "", ErrBookNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get cover path: %w", err)
	}
	return d.resolve(dir, "cover.jpg")
}

// FormatPath returns the file holding one format of a book.
func (d *DB) FormatPath(ctx context.Context, bookID int64, format string) (string, error) {
	var dir, name, stored string
	err := d.db.QueryRowContext(ctx, `
		SELECT b.path, d.name, d.format
		FROM books b
		JOIN data d ON d.book = b.id
		WHERE b.id = ? AND UPPER(d.format) = UPPER(?)`,
		bookID, format,
	).Scan(&dir, &name, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.NotFoundf("format %s not found for book %d", strings.ToUpper(format), bookID)
	}
	if err != nil {
		return "", fmt.Errorf("get format path: %w", err)
	}
	return d.resolve(dir, name+"."+strings.ToLower(stored))
}

// resolve joins a book-relative path onto the library directory, refusing anything that
// would escape it.
func (d *DB) resolve(dir, file string) (string, error) {
	p := filepath.Join(d.root, filepath.FromSlash(dir), file)
	rel, err := filepath.Rel(d.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Validationf("book path %q is outside the library", dir)
	}
	return p, nil
}
