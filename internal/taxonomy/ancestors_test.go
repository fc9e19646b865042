package taxonomy

import (
	"reflect"
	"sort"
	"testing"
)

func snapshotFrom(tags ...Tag) *Snapshot {
	return NewSnapshot(1, tags)
}

func chainTags() []Tag {
	return []Tag{
		{ID: "a", Name: "Family", Dimension: DimensionWho, Order: 0},
		{ID: "b", Name: "Parents", Dimension: DimensionWho, ParentID: "a", Order: 0},
		{ID: "c", Name: "Mum", Dimension: DimensionWho, ParentID: "b", Order: 0},
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestResolveAncestorsChain(t *testing.T) {
	snap := snapshotFrom(chainTags()...)

	got := snap.ResolveAncestors([]string{"c"})
	if want := []string{"a", "b"}; !reflect.DeepEqual(sortedKeys(got), want) {
		t.Fatalf("ResolveAncestors({c}) = %v, want %v", sortedKeys(got), want)
	}
}

func TestResolveAncestorsSharedAncestorsNoDuplicates(t *testing.T) {
	snap := snapshotFrom(chainTags()...)

	got := snap.ResolveAncestors([]string{"b", "c"})
	if want := []string{"a", "b"}; !reflect.DeepEqual(sortedKeys(got), want) {
		t.Fatalf("ResolveAncestors({b,c}) = %v, want %v", sortedKeys(got), want)
	}
	// b is only present because it is c's ancestor, not its own.
	if got["c"] {
		t.Fatal("input tag c must not be reported as its own ancestor")
	}
}

func TestResolveAncestorsOrphanTruncates(t *testing.T) {
	snap := snapshotFrom(
		Tag{ID: "kid", Name: "Kid", Dimension: DimensionWho, ParentID: "gone"},
	)

	got := snap.ResolveAncestors([]string{"kid"})
	if len(got) != 0 {
		t.Fatalf("orphan branch should resolve to no ancestors, got %v", sortedKeys(got))
	}
}

func TestResolveAncestorsUnknownInput(t *testing.T) {
	snap := snapshotFrom(chainTags()...)

	got := snap.ResolveAncestors([]string{"missing"})
	if len(got) != 0 {
		t.Fatalf("unknown input should resolve to no ancestors, got %v", sortedKeys(got))
	}
}

func TestResolveAncestorsTerminatesOnCycle(t *testing.T) {
	snap := snapshotFrom(
		Tag{ID: "a", Name: "A", Dimension: DimensionWhat, ParentID: "b"},
		Tag{ID: "b", Name: "B", Dimension: DimensionWhat, ParentID: "a"},
	)

	got := snap.ResolveAncestors([]string{"a"})
	if len(got) > 2 {
		t.Fatalf("cycle walk must stay finite, got %v", sortedKeys(got))
	}
	// The walk from a reaches b, then sees a again and stops.
	if !got["b"] {
		t.Fatalf("expected b in truncated cycle walk, got %v", sortedKeys(got))
	}
}

func TestIsDescendant(t *testing.T) {
	snap := snapshotFrom(chainTags()...)

	if !snap.IsDescendant("c", "a") {
		t.Fatal("c should be a descendant of a")
	}
	if snap.IsDescendant("a", "c") {
		t.Fatal("a should not be a descendant of c")
	}
	if snap.IsDescendant("a", "a") {
		t.Fatal("a tag is not its own descendant")
	}
}
