package taxonomy

import "sort"

// Node is a tag plus its ordered children, ready for tree rendering.
type Node struct {
	Tag
	Children []*Node `json:"children"`
}

// Forest holds the per-dimension tag trees.
type Forest map[Dimension][]*Node

// BuildForest converts the flat snapshot into nested trees keyed by
// dimension. Two passes: first a node wrapper per tag, then each node is
// attached to its parent's child list, or to its dimension's root list when
// the parent is unknown (orphans land there silently; Orphans reports them).
// Siblings at every level sort by (order asc, name asc). Every tag appears in
// exactly one place in the result, and the snapshot is never mutated.
func (s *Snapshot) BuildForest() Forest {
	nodes := make(map[string]*Node, len(s.tags))
	for _, id := range s.ids {
		tag := s.tags[id]
		nodes[id] = &Node{Tag: tag, Children: []*Node{}}
	}

	forest := make(Forest, len(Dimensions()))
	for _, dim := range Dimensions() {
		forest[dim] = []*Node{}
	}

	for _, id := range s.ids {
		node := nodes[id]
		if node.ParentID != "" {
			if parent, ok := nodes[node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		forest[node.Dimension] = append(forest[node.Dimension], node)
	}

	for _, roots := range forest {
		sortNodes(roots)
		for _, root := range roots {
			sortTreeChildren(root)
		}
	}
	return forest
}

// Orphans returns tags whose ParentID references a tag missing from the
// snapshot. They render as dimension roots but are flagged so the admin UI
// can surface the degraded state.
func (s *Snapshot) Orphans() []Tag {
	var out []Tag
	for _, id := range s.ids {
		tag := s.tags[id]
		if tag.ParentID == "" {
			continue
		}
		if _, ok := s.tags[tag.ParentID]; !ok {
			out = append(out, tag)
		}
	}
	return out
}

func sortTreeChildren(node *Node) {
	sortNodes(node.Children)
	for _, child := range node.Children {
		sortTreeChildren(child)
	}
}

func sortNodes(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].Name < nodes[j].Name
	})
}
