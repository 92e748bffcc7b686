package calibre

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/biblioapp/biblio/internal/catalog"
)

var facetQueries = map[catalog.FacetType]string{
	catalog.FacetAuthors: `
		SELECT a.id, a.name, a.sort, COUNT(l.book)
		FROM authors a
		LEFT JOIN books_authors_link l ON a.id = l.author
		GROUP BY a.id, a.name, a.sort
		ORDER BY a.sort`,
	catalog.FacetTags: `
		SELECT t.id, t.name, NULL, COUNT(l.book)
		FROM tags t
		LEFT JOIN books_tags_link l ON t.id = l.tag
		GROUP BY t.id, t.name
		ORDER BY t.name`,
	catalog.FacetSeries: `
		SELECT s.id, s.name, s.sort, COUNT(l.book)
		FROM series s
		LEFT JOIN books_series_link l ON s.id = l.series
		GROUP BY s.id, s.name, s.sort
		ORDER BY s.sort`,
}

// Facets returns a facet table with the number of books referencing each entry.
func (d *DB) Facets(ctx context.Context, t catalog.FacetType) ([]catalog.Facet, error) {
	query, ok := facetQueries[t]
	if !ok {
		return nil, fmt.Errorf("unknown facet type %q", t)
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t, err)
	}
	defer rows.Close()

	facets := []catalog.Facet{}
	for rows.Next() {
		var (
			f    catalog.Facet
			sort sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Name, &sort, &f.Count); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t, err)
		}
		if sort.Valid {
			f.Sort = sort.String
		}
		facets = append(facets, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t, err)
	}
	return facets, nil
}
