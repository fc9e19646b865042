package taxonomy

import "sort"

// Propagation is the pair of derived tag fields stored on every content
// entity. InheritedTags is what array-contains list queries filter on;
// FilterTags is the same set shaped as a map for key-existence queries.
type Propagation struct {
	InheritedTags []string
	FilterTags    map[string]bool
}

// BuildTagPathsMap marks each selected tag and every ID on its root-to-node
// path as present. The storage layer can only test map-key existence, not
// recursive tree membership, so "tag X or any of its descendants" filtering
// runs against this map.
func (s *Snapshot) BuildTagPathsMap(selected []string) map[string]bool {
	out := make(map[string]bool, len(selected))
	memo := make(map[string][]string)
	for _, id := range selected {
		out[id] = true
		for _, ancestor := range s.ancestorChain(id, memo) {
			out[ancestor] = true
		}
	}
	return out
}

// Propagate computes the derived tag fields for an entity's directly selected
// tags: the deduplicated union of the selection and all its ancestors, plus
// the matching filter map. Output is deterministic for a given snapshot and
// selection (selected IDs in input order, then ancestors sorted), so repeated
// propagation with unchanged inputs is byte-identical.
//
// Callers persist the result in the same transaction as the tags change;
// these fields are never hand-edited and must never drift from a fresh
// computation.
func (s *Snapshot) Propagate(selected []string) Propagation {
	inherited := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			continue
		}
		seen[id] = true
		inherited = append(inherited, id)
	}

	ancestors := s.ResolveAncestors(selected)
	extra := make([]string, 0, len(ancestors))
	for id := range ancestors {
		if !seen[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	inherited = append(inherited, extra...)

	return Propagation{
		InheritedTags: inherited,
		FilterTags:    s.BuildTagPathsMap(selected),
	}
}
