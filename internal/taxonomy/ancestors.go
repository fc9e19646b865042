package taxonomy

import "log"

// ResolveAncestors walks parent links upward for every input tag and returns
// the union of all visited parent IDs. Input IDs are not included unless they
// also appear as another input's ancestor. Chains are memoized within a single
// call so inputs sharing ancestors do not repeat lookups.
//
// Orphaned parents truncate that branch's inheritance; cycles truncate the
// walk at the first revisited node. Both are logged, never returned as errors:
// this runs synchronously on every content save and must tolerate dirty data.
func (s *Snapshot) ResolveAncestors(ids []string) map[string]bool {
	memo := make(map[string][]string)
	out := make(map[string]bool)
	for _, id := range ids {
		for _, ancestor := range s.ancestorChain(id, memo) {
			out[ancestor] = true
		}
	}
	return out
}

// AncestorChain returns the root-ward chain of parent IDs for a single tag,
// nearest parent first.
func (s *Snapshot) AncestorChain(id string) []string {
	return s.ancestorChain(id, make(map[string][]string))
}

func (s *Snapshot) ancestorChain(id string, memo map[string][]string) []string {
	if chain, ok := memo[id]; ok {
		return chain
	}

	current, ok := s.tags[id]
	if !ok {
		// A selected tag that no longer exists: nothing to inherit.
		memo[id] = nil
		return nil
	}

	visited := map[string]bool{id: true}
	var chain []string
	for current.ParentID != "" {
		parentID := current.ParentID
		if visited[parentID] {
			log.Printf("taxonomy: cycle detected walking ancestors of tag %s at %s, truncating", id, parentID)
			break
		}
		parent, ok := s.tags[parentID]
		if !ok {
			log.Printf("taxonomy: tag %s references missing parent %s, inheritance truncated", current.ID, parentID)
			break
		}
		chain = append(chain, parentID)
		visited[parentID] = true
		current = parent
	}
	memo[id] = chain
	return chain
}

// IsDescendant reports whether candidate sits somewhere below rootID, i.e.
// rootID appears in candidate's ancestor chain.
func (s *Snapshot) IsDescendant(candidate, rootID string) bool {
	for _, ancestor := range s.AncestorChain(candidate) {
		if ancestor == rootID {
			return true
		}
	}
	return false
}
