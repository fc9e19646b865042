package taxonomy

import (
	"log"
	"sort"
)

// Tag is the snapshot's view of a single tag record. ParentID is a plain ID
// reference, never an embedded node; an empty ParentID means the tag is a
// root within its dimension.
type Tag struct {
	ID        string
	Name      string
	Dimension Dimension
	ParentID  string
	Order     float64
}

// Snapshot is an immutable, versioned view of the whole tag graph, held as a
// flat arena keyed by ID. All tree building, ancestor walks, and move
// computations operate on a snapshot, so staleness is explicit: callers
// compare versions instead of trusting a mutable shared cache.
type Snapshot struct {
	version int64
	tags    map[string]Tag
	ids     []string
}

// NewSnapshot copies tags into a fresh arena. Duplicate IDs keep the first
// occurrence and are logged as a data-integrity warning.
func NewSnapshot(version int64, tags []Tag) *Snapshot {
	arena := make(map[string]Tag, len(tags))
	ids := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, exists := arena[tag.ID]; exists {
			log.Printf("taxonomy: duplicate tag id %s in snapshot, keeping first", tag.ID)
			continue
		}
		arena[tag.ID] = tag
		ids = append(ids, tag.ID)
	}
	sort.Strings(ids)
	return &Snapshot{version: version, tags: arena, ids: ids}
}

// Version identifies which revision of the tag graph this snapshot reflects.
func (s *Snapshot) Version() int64 {
	return s.version
}

// Len reports the number of tags in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.tags)
}

// Get looks up a tag by ID.
func (s *Snapshot) Get(id string) (Tag, bool) {
	tag, ok := s.tags[id]
	return tag, ok
}

// Tags returns every tag, sorted by ID for deterministic iteration.
func (s *Snapshot) Tags() []Tag {
	out := make([]Tag, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.tags[id])
	}
	return out
}

// children returns the IDs of tags whose ParentID is parentID, or the roots
// of dim when parentID is empty, sorted by (order, name).
func (s *Snapshot) children(parentID string, dim Dimension) []Tag {
	var out []Tag
	for _, id := range s.ids {
		tag := s.tags[id]
		if parentID == "" {
			if tag.ParentID == "" && tag.Dimension == dim {
				out = append(out, tag)
			}
		} else if tag.ParentID == parentID {
			out = append(out, tag)
		}
	}
	sortSiblings(out)
	return out
}

func sortSiblings(siblings []Tag) {
	sort.SliceStable(siblings, func(i, j int) bool {
		if siblings[i].Order != siblings[j].Order {
			return siblings[i].Order < siblings[j].Order
		}
		return siblings[i].Name < siblings[j].Name
	})
}
