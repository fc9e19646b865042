package store

import (
	"encoding/json"
	"time"
)

// Tag is one node of the faceted taxonomy. SortOrder is a real number: moves
// insert midpoints between neighbours instead of renumbering siblings, so
// values are not contiguous. EntryCount/AlbumCount are best-effort
// denormalized counters refreshed out of band.
type Tag struct {
	ID          string
	Name        string
	Dimension   string
	ParentID    *string
	SortOrder   float64
	Description string
	EntryCount  int
	AlbumCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TagFields is the derived-tag triple every content entity carries. Tags is
// the author's direct selection; InheritedTags adds every ancestor of the
// selection; FilterTags is the same set shaped as a map for key-existence
// queries. The derived pair is recomputed and written in the same transaction
// as any Tags change.
type TagFields struct {
	Tags          []string
	InheritedTags []string
	FilterTags    map[string]bool
}

// Entry is one memoir entry. Doc holds the rich-text body as ProseMirror
// JSON; the editor lives client-side.
type Entry struct {
	ID       string
	Title    string
	Subtitle string
	Status   string
	Doc      json.RawMessage
	TagFields
	OccurredOn string
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Card is a generalized content block: a quote, a text fragment, a photo
// callout, anything placed on the reading surface.
type Card struct {
	ID     string
	Kind   string
	Title  string
	Body   json.RawMessage
	Status string
	TagFields
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Album groups photos under the same taxonomy as entries and cards.
type Album struct {
	ID           string
	Title        string
	Description  string
	Status       string
	CoverPhotoID *string
	TagFields
	PhotoCount int
	UpdatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Photo is a metadata record; the binary lives behind SourceURL with an
// external host.
type Photo struct {
	ID        string
	AlbumID   string
	Caption   string
	SourceURL string
	TakenAt   *time.Time
	Width     int
	Height    int
	SortOrder float64
	CreatedAt time.Time
}

// CommitInfo describes one revision of an entry's content history.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
	Added     int
	Removed   int
}

// Entity statuses. Draft content is admin-only; published content feeds the
// public reading view.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)
