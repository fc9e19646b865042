package taxonomy

import "errors"

// Move-engine contract violations. These reject the operation; they are never
// thrown for dirty data.
var (
	ErrUnknownTag         = errors.New("taxonomy: unknown tag")
	ErrCrossParentMove    = errors.New("taxonomy: reorder requires both tags to share a parent")
	ErrSelfParent         = errors.New("taxonomy: tag cannot be its own parent")
	ErrDescendantParent   = errors.New("taxonomy: tag cannot be reparented under its own descendant")
	ErrCrossDimensionMove = errors.New("taxonomy: tag cannot move to a different dimension")
)

// Placement says which side of the drop target the dragged tag lands on.
type Placement string

const (
	PlaceBefore Placement = "before"
	PlaceAfter  Placement = "after"
)

// reparentGap is the order increment for appending under a new parent, large
// enough that many later before-the-end insertions need no renumbering.
const reparentGap = 10

// Reorder computes the fractional order value for dropping activeID before or
// after overID within the same sibling list. Only the moved tag's order
// changes: the new value is the arithmetic midpoint of its new neighbours,
// with 0 as the implicit lower bound and neighbour+2 as the implicit upper
// bound at the list edges. Tags under different parents are rejected with
// ErrCrossParentMove; reparenting is a separate operation.
func (s *Snapshot) Reorder(activeID, overID string, placement Placement) (float64, error) {
	active, ok := s.tags[activeID]
	if !ok {
		return 0, ErrUnknownTag
	}
	over, ok := s.tags[overID]
	if !ok {
		return 0, ErrUnknownTag
	}
	if activeID == overID {
		return active.Order, nil
	}
	if active.ParentID != over.ParentID {
		return 0, ErrCrossParentMove
	}

	siblings := s.children(active.ParentID, active.Dimension)
	remaining := make([]Tag, 0, len(siblings)-1)
	overIndex := -1
	for _, sibling := range siblings {
		if sibling.ID == activeID {
			continue
		}
		if sibling.ID == overID {
			overIndex = len(remaining)
		}
		remaining = append(remaining, sibling)
	}
	if overIndex < 0 {
		return 0, ErrUnknownTag
	}

	insertAt := overIndex
	if placement == PlaceAfter {
		insertAt++
	}

	lower := 0.0
	if insertAt > 0 {
		lower = remaining[insertAt-1].Order
	}
	upper := lower + 2
	if insertAt < len(remaining) {
		upper = remaining[insertAt].Order
	}
	return (lower + upper) / 2, nil
}

// ParentChange is the result of a reparent computation, applied optimistically
// by the caller and persisted in one write.
type ParentChange struct {
	ParentID string
	Order    float64
}

// Reparent moves activeID to become the last child of newParentID (empty =
// dimension root). The new order is the maximum existing sibling order plus a
// fixed gap, or the gap itself under an empty parent. Self-parenting and
// parenting under the tag's own descendant are rejected, since either would
// cut a cycle into the graph. Moving into another dimension's tree is also
// rejected; a subtree always shares its root's dimension.
func (s *Snapshot) Reparent(activeID, newParentID string) (ParentChange, error) {
	active, ok := s.tags[activeID]
	if !ok {
		return ParentChange{}, ErrUnknownTag
	}
	if newParentID == activeID {
		return ParentChange{}, ErrSelfParent
	}
	if newParentID != "" {
		parent, ok := s.tags[newParentID]
		if !ok {
			return ParentChange{}, ErrUnknownTag
		}
		if parent.Dimension != active.Dimension {
			return ParentChange{}, ErrCrossDimensionMove
		}
		if s.IsDescendant(newParentID, activeID) {
			return ParentChange{}, ErrDescendantParent
		}
	}

	maxOrder := 0.0
	for _, sibling := range s.children(newParentID, active.Dimension) {
		if sibling.ID == activeID {
			continue
		}
		if sibling.Order > maxOrder {
			maxOrder = sibling.Order
		}
	}
	return ParentChange{ParentID: newParentID, Order: maxOrder + reparentGap}, nil
}
