package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/biblioapp/biblio/internal/catalog"
)

const bookColumns = `b.id, b.title, b.sort, b.has_cover, b.series_index, b.pubdate`

// Books returns every book, most recently added first, capped at MaxBooks.
func (d *DB) Books(ctx context.Context) ([]*catalog.Record, error) {
	return d.load(ctx, 0)
}

// Book returns a single book. Calibre ids start at 1; anything lower is not found.
func (d *DB) Book(ctx context.Context, id int64) (*catalog.Record, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBookNotFound, id)
	}
	records, err := d.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrBookNotFound, id)
	}
	return records[0], nil
}

// load reads books and their linked metadata. bookID 0 loads all books.
func (d *DB) load(ctx context.Context, bookID int64) ([]*catalog.Record, error) {
	query := "SELECT " + bookColumns + " FROM books b"
	var args []any
	if bookID > 0 {
		query += " WHERE b.id = ?"
		args = append(args, bookID)
	}
	query += fmt.Sprintf(" ORDER BY b.timestamp DESC LIMIT %d", MaxBooks)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var (
		records     = []*catalog.Record{}
		byID        = make(map[int64]*catalog.Record)
		seriesIndex = make(map[int64]float64)
	)
	for rows.Next() {
		r, idx, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		records = append(records, r)
		byID[r.ID] = r
		seriesIndex[r.ID] = idx
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}

	if len(records) == 0 {
		return records, nil
	}

	links := []struct {
		name  string
		query string
		apply func(r *catalog.Record, value string)
	}{
		{"authors", `SELECT l.book, a.name FROM books_authors_link l JOIN authors a ON a.id = l.author %s ORDER BY l.id`,
			func(r *catalog.Record, v string) { r.Authors = append(r.Authors, v) }},
		{"tags", `SELECT l.book, t.name FROM books_tags_link l JOIN tags t ON t.id = l.tag %s ORDER BY t.name`,
			func(r *catalog.Record, v string) { r.Tags = append(r.Tags, v) }},
		{"series", `SELECT l.book, s.name FROM books_series_link l JOIN series s ON s.id = l.series %s`,
			func(r *catalog.Record, v string) { r.Series = v }},
		{"publishers", `SELECT l.book, p.name FROM books_publishers_link l JOIN publishers p ON p.id = l.publisher %s`,
			func(r *catalog.Record, v string) { r.Publisher = v }},
		{"formats", `SELECT l.book, l.format FROM data l %s ORDER BY l.format`,
			func(r *catalog.Record, v string) { r.Formats = append(r.Formats, v) }},
		{"comments", `SELECT l.book, l.text FROM comments l %s`,
			func(r *catalog.Record, v string) { r.Comments = v }},
	}

	for _, link := range links {
		err := d.eachLink(ctx, link.query, bookID, func(book int64, value string) {
			if r, ok := byID[book]; ok {
				link.apply(r, value)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", link.name, err)
		}
	}

	if err := d.loadRatings(ctx, bookID, byID); err != nil {
		return nil, err
	}

	for _, r := range records {
		if r.Series != "" {
			idx := seriesIndex[r.ID]
			r.SeriesIndex = &idx
		}
	}

	return records, nil
}

func scanBook(rows *sql.Rows) (*catalog.Record, float64, error) {
	var (
		r           catalog.Record
		sort        sql.NullString
		seriesIndex sql.NullFloat64
		pubdate     sql.NullString
	)
	if err := rows.Scan(&r.ID, &r.Title, &sort, &r.HasCover, &seriesIndex, &pubdate); err != nil {
		return nil, 0, err
	}
	if sort.Valid {
		r.Sort = sort.String
	}
	if pubdate.Valid {
		r.PubDate = parseCalibreTime(pubdate.String)
	}
	return &r, seriesIndex.Float64, nil
}

// eachLink runs a two-column (book, value) query, optionally restricted to one book.
func (d *DB) eachLink(ctx context.Context, query string, bookID int64, fn func(book int64, value string)) error {
	where := ""
	var args []any
	if bookID > 0 {
		where = "WHERE l.book = ?"
		args = append(args, bookID)
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(query, where), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			book  int64
			value sql.NullString
		)
		if err := rows.Scan(&book, &value); err != nil {
			return err
		}
		if value.Valid && value.String != "" {
			fn(book, value.String)
		}
	}
	return rows.Err()
}

func (d *DB) loadRatings(ctx context.Context, bookID int64, byID map[int64]*catalog.Record) error {
	query := `SELECT l.book, r.rating FROM books_ratings_link l JOIN ratings r ON r.id = l.rating`
	var args []any
	if bookID > 0 {
		query += " WHERE l.book = ?"
		args = append(args, bookID)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var book int64
		var rating sql.NullInt64
		if err := rows.Scan(&book, &rating); err != nil {
			return fmt.Errorf("scan rating: %w", err)
		}
		r, ok := byID[book]
		if !ok || !rating.Valid || rating.Int64 <= 0 {
			continue
		}
		v := int(min(rating.Int64, 10))
		r.Rating = &v
	}
	return rows.Err()
}

// Calibre writes timestamps in a few layouts depending on version.
var calibreTimeLayouts = []string{
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05.999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseCalibreTime parses a Calibre date. Calibre stores unknown dates as year 101,
// which is reported as no date.
func parseCalibreTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range calibreTimeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() <= 101 {
			return nil
		}
		t = t.UTC()
		return &t
	}
	return nil
}
