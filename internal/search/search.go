package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultEntry ResultType = "entry"
	ResultCard  ResultType = "card"
	ResultAlbum ResultType = "album"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request. FilterTagID matches against the inherited
// tag set, so filtering on a parent tag also surfaces content tagged with any
// of its descendants. PublicOnly restricts hits to published content.
type Query struct {
	Text        string
	FilterType  ResultType // empty = all types
	FilterTagID string
	PublicOnly  bool
	Limit       int
	Offset      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a search query.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexEntry(e EntryRecord) error
	IndexCard(c CardRecord) error
	IndexAlbum(a AlbumRecord) error
	DeleteEntry(id string) error
	DeleteCard(id string) error
	DeleteAlbum(id string) error
}

// EntryRecord is the data we index for a memoir entry. Text is the plain-text
// flattening of the rich-text body.
type EntryRecord struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Text          string   `json:"text"`
	Status        string   `json:"status"`
	OccurredOn    string   `json:"occurredOn"`
	InheritedTags []string `json:"inheritedTags"`
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	Text          string   `json:"text"`
	Status        string   `json:"status"`
	InheritedTags []string `json:"inheritedTags"`
}

// AlbumRecord is the data we index for a photo album.
type AlbumRecord struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	InheritedTags []string `json:"inheritedTags"`
}
