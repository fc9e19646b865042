package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// PgPrefix implements Searcher with a crude word-prefix match in Postgres.
// It is the fallback when Meilisearch is not configured or unreachable:
// no ranking, no typo tolerance, just ILIKE against titles and summaries.
type PgPrefix struct {
	db *sql.DB
}

// NewPgPrefix creates a Postgres prefix searcher.
func NewPgPrefix(db *sql.DB) *PgPrefix {
	return &PgPrefix{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgPrefix) Healthy() bool {
	return true
}

// Search runs a UNION ALL query over entries, cards, and albums matching
// terms at the start of the field or the start of any later word.
func (p *PgPrefix) Search(q Query) ([]Result, int, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	// $1 matches a leading prefix, $2 matches a word prefix anywhere later.
	args := []any{escapeLike(text) + "%", "% " + escapeLike(text) + "%"}
	argN := 3

	var extra string
	if q.FilterTagID != "" {
		extra += fmt.Sprintf(" AND filter_tags ? $%d", argN)
		args = append(args, q.FilterTagID)
		argN++
	}
	if q.PublicOnly {
		extra += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, "published")
		argN++
	}

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultEntry {
		subQueries = append(subQueries, `
			SELECT 'entry'::text AS type, id, title, subtitle AS snippet, status, updated_at
			FROM entries
			WHERE (title ILIKE $1 OR title ILIKE $2 OR subtitle ILIKE $1 OR subtitle ILIKE $2)`+extra)
	}
	if q.FilterType == "" || q.FilterType == ResultCard {
		subQueries = append(subQueries, `
			SELECT 'card'::text AS type, id, title, ''::text AS snippet, status, updated_at
			FROM cards
			WHERE (title ILIKE $1 OR title ILIKE $2)`+extra)
	}
	if q.FilterType == "" || q.FilterType == ResultAlbum {
		subQueries = append(subQueries, `
			SELECT 'album'::text AS type, id, title, description AS snippet, status, updated_at
			FROM albums
			WHERE (title ILIKE $1 OR title ILIKE $2 OR description ILIKE $1 OR description ILIKE $2)`+extra)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status
		FROM (%s) sub
		ORDER BY updated_at DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("prefix search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("prefix search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("prefix search scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgPrefix) LoadAllRecords(ctx context.Context) ([]EntryRecord, []CardRecord, []AlbumRecord, error) {
	entryRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, subtitle, status, occurred_on, inherited_tags
		FROM entries
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load entries: %w", err)
	}
	defer entryRows.Close()

	entries := make([]EntryRecord, 0)
	for entryRows.Next() {
		var e EntryRecord
		var inherited []byte
		if err := entryRows.Scan(&e.ID, &e.Title, &e.Subtitle, &e.Status, &e.OccurredOn, &inherited); err != nil {
			return nil, nil, nil, fmt.Errorf("scan entry: %w", err)
		}
		e.InheritedTags = decodeIDList(inherited)
		entries = append(entries, e)
	}
	if err := entryRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate entries: %w", err)
	}

	cardRows, err := p.db.QueryContext(ctx, `
		SELECT id, kind, title, status, inherited_tags
		FROM cards
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load cards: %w", err)
	}
	defer cardRows.Close()

	cards := make([]CardRecord, 0)
	for cardRows.Next() {
		var c CardRecord
		var inherited []byte
		if err := cardRows.Scan(&c.ID, &c.Kind, &c.Title, &c.Status, &inherited); err != nil {
			return nil, nil, nil, fmt.Errorf("scan card: %w", err)
		}
		c.InheritedTags = decodeIDList(inherited)
		cards = append(cards, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate cards: %w", err)
	}

	albumRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, status, inherited_tags
		FROM albums
	`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load albums: %w", err)
	}
	defer albumRows.Close()

	albums := make([]AlbumRecord, 0)
	for albumRows.Next() {
		var a AlbumRecord
		var inherited []byte
		if err := albumRows.Scan(&a.ID, &a.Title, &a.Description, &a.Status, &inherited); err != nil {
			return nil, nil, nil, fmt.Errorf("scan album: %w", err)
		}
		a.InheritedTags = decodeIDList(inherited)
		albums = append(albums, a)
	}
	if err := albumRows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("iterate albums: %w", err)
	}

	return entries, cards, albums, nil
}

func decodeIDList(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return []string{}
	}
	return ids
}
