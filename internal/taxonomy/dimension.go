// Package taxonomy implements the tag hierarchy: per-dimension tag trees,
// ancestor resolution, inherited-tag propagation, and the fractional-order
// reorder/reparent engine behind the drag-and-drop tag admin.
//
// All computation runs against an immutable Snapshot of the tag graph, so
// the functions here are pure and safe to call repeatedly with the same
// inputs. Dirty data (orphaned parents, cycles) degrades gracefully and is
// logged; it never fails a content save.
package taxonomy

import "fmt"

// Dimension is one of the five facets a tag tree belongs to.
type Dimension string

const (
	DimensionWho        Dimension = "who"
	DimensionWhat       Dimension = "what"
	DimensionWhen       Dimension = "when"
	DimensionWhere      Dimension = "where"
	DimensionReflection Dimension = "reflection"
)

// Dimensions returns all facets in display order.
func Dimensions() []Dimension {
	return []Dimension{DimensionWho, DimensionWhat, DimensionWhen, DimensionWhere, DimensionReflection}
}

// ParseDimension validates a raw dimension string. The legacy "about" facet
// is folded into "reflection".
func ParseDimension(raw string) (Dimension, error) {
	switch Dimension(raw) {
	case DimensionWho, DimensionWhat, DimensionWhen, DimensionWhere, DimensionReflection:
		return Dimension(raw), nil
	}
	if raw == "about" {
		return DimensionReflection, nil
	}
	return "", fmt.Errorf("unknown dimension %q", raw)
}
