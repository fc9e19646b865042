package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- tags ----

const tagColumns = `id, name, dimension, parent_id, sort_order, description, entry_count, album_count, created_at, updated_at`

func (s *PostgresStore) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+tagColumns+`
		FROM tags
		ORDER BY dimension, sort_order, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	items := make([]Tag, 0)
	for rows.Next() {
		item, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTag(ctx context.Context, tagID string) (Tag, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id=$1`, tagID)
	return scanTag(row)
}

func (s *PostgresStore) InsertTag(ctx context.Context, item Tag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, name, dimension, parent_id, sort_order, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.Name, item.Dimension, item.ParentID, item.SortOrder, item.Description)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTagInfo(ctx context.Context, tagID, name, description string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tags SET name=$2, description=$3, updated_at=NOW() WHERE id=$1
	`, tagID, name, description)
	if err != nil {
		return fmt.Errorf("update tag info: %w", err)
	}
	return nil
}

// MoveTag persists a reorder or reparent in one statement, so readers never
// see a half-applied move.
func (s *PostgresStore) MoveTag(ctx context.Context, tagID string, parentID *string, sortOrder float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tags SET parent_id=$2, sort_order=$3, updated_at=NOW() WHERE id=$1
	`, tagID, parentID, sortOrder)
	if err != nil {
		return fmt.Errorf("move tag: %w", err)
	}
	return nil
}

// DeleteTags removes a tag together with its subtree (the caller computes the
// full ID set) in a single transaction. Orphaned subtrees are worse than a
// wider delete for a content taxonomy, so deletion always cascades.
func (s *PostgresStore) DeleteTags(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id=$1`, tagID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete tag %s: %w", tagID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tags: %w", err)
	}
	return nil
}

// RefreshTagCounts recomputes the denormalized per-tag usage counters from
// the entities' filter maps. Best effort; callers run it after bulk changes.
func (s *PostgresStore) RefreshTagCounts(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tags t SET
			entry_count = (SELECT count(*) FROM entries e WHERE e.filter_tags ? t.id),
			album_count = (SELECT count(*) FROM albums a WHERE a.filter_tags ? t.id)
	`)
	if err != nil {
		return fmt.Errorf("refresh tag counts: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (Tag, error) {
	var item Tag
	err := row.Scan(
		&item.ID,
		&item.Name,
		&item.Dimension,
		&item.ParentID,
		&item.SortOrder,
		&item.Description,
		&item.EntryCount,
		&item.AlbumCount,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Tag{}, err
	}
	return item, nil
}

// ---- entries ----

const entryColumns = `id, title, subtitle, status, doc, tags, inherited_tags, filter_tags, occurred_on, updated_by_name, created_at, updated_at`

func (s *PostgresStore) ListEntries(ctx context.Context, status string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY occurred_on DESC, updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		item, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return items, nil
}

// ListEntriesByTag filters on the key-existence map, which covers the tag
// itself and every entity tagged somewhere underneath it.
func (s *PostgresStore) ListEntriesByTag(ctx context.Context, tagID, status string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE filter_tags ? $1`
	args := []any{tagID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY occurred_on DESC, updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries by tag: %w", err)
	}
	defer rows.Close()

	items := make([]Entry, 0)
	for rows.Next() {
		item, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries by tag: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, entryID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id=$1`, entryID)
	return scanEntry(row)
}

func (s *PostgresStore) InsertEntry(ctx context.Context, item Entry) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (id, title, subtitle, status, doc, tags, inherited_tags, filter_tags, occurred_on, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.Title, item.Subtitle, item.Status, rawOrNull(item.Doc), tagsJSON, inheritedJSON, filterJSON, item.OccurredOn, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// UpdateEntry writes content and the full derived-tag triple in one
// statement: there is no window where tags and inherited_tags disagree.
func (s *PostgresStore) UpdateEntry(ctx context.Context, item Entry) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE entries
		SET title=$2, subtitle=$3, status=$4, doc=$5, tags=$6, inherited_tags=$7, filter_tags=$8, occurred_on=$9, updated_by_name=$10, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Subtitle, item.Status, rawOrNull(item.Doc), tagsJSON, inheritedJSON, filterJSON, item.OccurredOn, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateEntryTags(ctx context.Context, entryID string, fields TagFields, updatedBy string) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE entries SET tags=$2, inherited_tags=$3, filter_tags=$4, updated_by_name=$5, updated_at=NOW()
		WHERE id=$1
	`, entryID, tagsJSON, inheritedJSON, filterJSON, updatedBy)
	if err != nil {
		return fmt.Errorf("update entry tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateEntryStatus(ctx context.Context, entryID, status, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE entries SET status=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
	`, entryID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, entryID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id=$1`, entryID)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func scanEntry(row rowScanner) (Entry, error) {
	var item Entry
	var doc, tagsJSON, inheritedJSON, filterJSON []byte
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Subtitle,
		&item.Status,
		&doc,
		&tagsJSON,
		&inheritedJSON,
		&filterJSON,
		&item.OccurredOn,
		&item.UpdatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	item.Doc = json.RawMessage(doc)
	item.TagFields, err = unmarshalTagFields(tagsJSON, inheritedJSON, filterJSON)
	if err != nil {
		return Entry{}, fmt.Errorf("decode entry %s tag fields: %w", item.ID, err)
	}
	return item, nil
}

// ---- cards ----

const cardColumns = `id, kind, title, body, status, tags, inherited_tags, filter_tags, updated_by_name, created_at, updated_at`

func (s *PostgresStore) ListCards(ctx context.Context, status string) ([]Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		item, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListCardsByTag(ctx context.Context, tagID, status string) ([]Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE filter_tags ? $1`
	args := []any{tagID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards by tag: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		item, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards by tag: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id=$1`, cardID)
	return scanCard(row)
}

func (s *PostgresStore) InsertCard(ctx context.Context, item Card) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cards (id, kind, title, body, status, tags, inherited_tags, filter_tags, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Kind, item.Title, rawOrNull(item.Body), item.Status, tagsJSON, inheritedJSON, filterJSON, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCard(ctx context.Context, item Card) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cards
		SET kind=$2, title=$3, body=$4, status=$5, tags=$6, inherited_tags=$7, filter_tags=$8, updated_by_name=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Kind, item.Title, rawOrNull(item.Body), item.Status, tagsJSON, inheritedJSON, filterJSON, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCardTags(ctx context.Context, cardID string, fields TagFields, updatedBy string) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE cards SET tags=$2, inherited_tags=$3, filter_tags=$4, updated_by_name=$5, updated_at=NOW()
		WHERE id=$1
	`, cardID, tagsJSON, inheritedJSON, filterJSON, updatedBy)
	if err != nil {
		return fmt.Errorf("update card tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCardStatus(ctx context.Context, cardID, status, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET status=$2, updated_by_name=$3, updated_at=NOW() WHERE id=$1
	`, cardID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update card status: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCard(ctx context.Context, cardID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cards WHERE id=$1`, cardID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func scanCard(row rowScanner) (Card, error) {
	var item Card
	var body, tagsJSON, inheritedJSON, filterJSON []byte
	err := row.Scan(
		&item.ID,
		&item.Kind,
		&item.Title,
		&body,
		&item.Status,
		&tagsJSON,
		&inheritedJSON,
		&filterJSON,
		&item.UpdatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Card{}, err
	}
	item.Body = json.RawMessage(body)
	item.TagFields, err = unmarshalTagFields(tagsJSON, inheritedJSON, filterJSON)
	if err != nil {
		return Card{}, fmt.Errorf("decode card %s tag fields: %w", item.ID, err)
	}
	return item, nil
}

// ---- albums ----

const albumColumns = `a.id, a.title, a.description, a.status, a.cover_photo_id, a.tags, a.inherited_tags, a.filter_tags, a.updated_by_name, a.created_at, a.updated_at,
	(SELECT count(*) FROM photos p WHERE p.album_id = a.id) AS photo_count`

func (s *PostgresStore) ListAlbums(ctx context.Context, status string) ([]Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums a`
	args := []any{}
	if status != "" {
		query += ` WHERE a.status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY a.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()

	items := make([]Album, 0)
	for rows.Next() {
		item, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAlbumsByTag(ctx context.Context, tagID, status string) ([]Album, error) {
	query := `SELECT ` + albumColumns + ` FROM albums a WHERE a.filter_tags ? $1`
	args := []any{tagID}
	if status != "" {
		query += ` AND a.status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY a.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list albums by tag: %w", err)
	}
	defer rows.Close()

	items := make([]Album, 0)
	for rows.Next() {
		item, err := scanAlbum(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums by tag: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAlbum(ctx context.Context, albumID string) (Album, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums a WHERE a.id=$1`, albumID)
	return scanAlbum(row)
}

func (s *PostgresStore) InsertAlbum(ctx context.Context, item Album) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO albums (id, title, description, status, cover_photo_id, tags, inherited_tags, filter_tags, updated_by_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, item.Title, item.Description, item.Status, item.CoverPhotoID, tagsJSON, inheritedJSON, filterJSON, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert album: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAlbum(ctx context.Context, item Album) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(item.TagFields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE albums
		SET title=$2, description=$3, status=$4, cover_photo_id=$5, tags=$6, inherited_tags=$7, filter_tags=$8, updated_by_name=$9, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Description, item.Status, item.CoverPhotoID, tagsJSON, inheritedJSON, filterJSON, item.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAlbumTags(ctx context.Context, albumID string, fields TagFields, updatedBy string) error {
	tagsJSON, inheritedJSON, filterJSON, err := marshalTagFields(fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE albums SET tags=$2, inherited_tags=$3, filter_tags=$4, updated_by_name=$5, updated_at=NOW()
		WHERE id=$1
	`, albumID, tagsJSON, inheritedJSON, filterJSON, updatedBy)
	if err != nil {
		return fmt.Errorf("update album tags: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAlbum(ctx context.Context, albumID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete album: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE album_id=$1`, albumID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete album photos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM albums WHERE id=$1`, albumID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete album: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete album: %w", err)
	}
	return nil
}

func scanAlbum(row rowScanner) (Album, error) {
	var item Album
	var tagsJSON, inheritedJSON, filterJSON []byte
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Description,
		&item.Status,
		&item.CoverPhotoID,
		&tagsJSON,
		&inheritedJSON,
		&filterJSON,
		&item.UpdatedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.PhotoCount,
	)
	if err != nil {
		return Album{}, err
	}
	item.TagFields, err = unmarshalTagFields(tagsJSON, inheritedJSON, filterJSON)
	if err != nil {
		return Album{}, fmt.Errorf("decode album %s tag fields: %w", item.ID, err)
	}
	return item, nil
}

// ---- photos ----

const photoColumns = `id, album_id, caption, source_url, taken_at, width, height, sort_order, created_at`

func (s *PostgresStore) ListPhotos(ctx context.Context, albumID string) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+photoColumns+` FROM photos WHERE album_id=$1 ORDER BY sort_order, created_at
	`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()

	items := make([]Photo, 0)
	for rows.Next() {
		var item Photo
		if err := rows.Scan(&item.ID, &item.AlbumID, &item.Caption, &item.SourceURL, &item.TakenAt, &item.Width, &item.Height, &item.SortOrder, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertPhoto(ctx context.Context, item Photo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO photos (id, album_id, caption, source_url, taken_at, width, height, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.AlbumID, item.Caption, item.SourceURL, item.TakenAt, item.Width, item.Height, item.SortOrder)
	if err != nil {
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdatePhoto(ctx context.Context, item Photo) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE photos SET caption=$2, source_url=$3, taken_at=$4, width=$5, height=$6, sort_order=$7 WHERE id=$1
	`, item.ID, item.Caption, item.SourceURL, item.TakenAt, item.Width, item.Height, item.SortOrder)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeletePhoto(ctx context.Context, photoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM photos WHERE id=$1`, photoID)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// ---- JSONB helpers ----

func marshalTagFields(fields TagFields) (tagsJSON, inheritedJSON, filterJSON []byte, err error) {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	inherited := fields.InheritedTags
	if inherited == nil {
		inherited = []string{}
	}
	filter := fields.FilterTags
	if filter == nil {
		filter = map[string]bool{}
	}
	if tagsJSON, err = json.Marshal(tags); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal tags: %w", err)
	}
	if inheritedJSON, err = json.Marshal(inherited); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal inherited tags: %w", err)
	}
	if filterJSON, err = json.Marshal(filter); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal filter tags: %w", err)
	}
	return tagsJSON, inheritedJSON, filterJSON, nil
}

func unmarshalTagFields(tagsJSON, inheritedJSON, filterJSON []byte) (TagFields, error) {
	fields := TagFields{Tags: []string{}, InheritedTags: []string{}, FilterTags: map[string]bool{}}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &fields.Tags); err != nil {
			return TagFields{}, err
		}
	}
	if len(inheritedJSON) > 0 {
		if err := json.Unmarshal(inheritedJSON, &fields.InheritedTags); err != nil {
			return TagFields{}, err
		}
	}
	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &fields.FilterTags); err != nil {
			return TagFields{}, err
		}
	}
	return fields, nil
}

func rawOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
