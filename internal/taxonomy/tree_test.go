package taxonomy

import (
	"sort"
	"testing"
)

func flattenForest(forest Forest) []string {
	var ids []string
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, node := range nodes {
			ids = append(ids, node.ID)
			walk(node.Children)
		}
	}
	for _, dim := range Dimensions() {
		walk(forest[dim])
	}
	return ids
}

func TestBuildForestCompleteness(t *testing.T) {
	tags := []Tag{
		{ID: "who-root", Name: "People", Dimension: DimensionWho, Order: 0},
		{ID: "who-kid", Name: "Kids", Dimension: DimensionWho, ParentID: "who-root", Order: 0},
		{ID: "where-root", Name: "Places", Dimension: DimensionWhere, Order: 0},
		{ID: "orphan", Name: "Lost", Dimension: DimensionWhat, ParentID: "nope", Order: 3},
		{ID: "what-root", Name: "Things", Dimension: DimensionWhat, Order: 1},
	}
	snap := snapshotFrom(tags...)

	got := flattenForest(snap.BuildForest())
	if len(got) != len(tags) {
		t.Fatalf("forest flattened to %d tags, want %d: %v", len(got), len(tags), got)
	}
	want := make([]string, 0, len(tags))
	for _, tag := range tags {
		want = append(want, tag.ID)
	}
	sort.Strings(want)
	check := append([]string(nil), got...)
	sort.Strings(check)
	for i := range want {
		if check[i] != want[i] {
			t.Fatalf("forest IDs = %v, want %v", check, want)
		}
	}
}

func TestBuildForestSiblingOrdering(t *testing.T) {
	snap := snapshotFrom(
		Tag{ID: "c", Name: "Cider", Dimension: DimensionWhat, Order: 5},
		Tag{ID: "a", Name: "Apples", Dimension: DimensionWhat, Order: 5},
		Tag{ID: "z", Name: "Zest", Dimension: DimensionWhat, Order: 1},
	)

	roots := snap.BuildForest()[DimensionWhat]
	if len(roots) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(roots))
	}
	// Distinct order wins regardless of name; equal orders tie-break by name.
	if roots[0].ID != "z" || roots[1].ID != "a" || roots[2].ID != "c" {
		t.Fatalf("root order = [%s %s %s], want [z a c]", roots[0].ID, roots[1].ID, roots[2].ID)
	}
}

func TestBuildForestOrphanBecomesRoot(t *testing.T) {
	snap := snapshotFrom(
		Tag{ID: "orphan", Name: "Lost", Dimension: DimensionWhen, ParentID: "missing", Order: 0},
	)

	roots := snap.BuildForest()[DimensionWhen]
	if len(roots) != 1 || roots[0].ID != "orphan" {
		t.Fatalf("orphan should surface as dimension root, got %v", roots)
	}

	orphans := snap.Orphans()
	if len(orphans) != 1 || orphans[0].ID != "orphan" {
		t.Fatalf("Orphans() = %v, want the single orphan", orphans)
	}
}

func TestBuildForestNesting(t *testing.T) {
	snap := snapshotFrom(chainTags()...)

	roots := snap.BuildForest()[DimensionWho]
	if len(roots) != 1 || roots[0].ID != "a" {
		t.Fatalf("expected single who root a, got %v", roots)
	}
	if len(roots[0].Children) != 1 || roots[0].Children[0].ID != "b" {
		t.Fatalf("a's children wrong: %v", roots[0].Children)
	}
	if len(roots[0].Children[0].Children) != 1 || roots[0].Children[0].Children[0].ID != "c" {
		t.Fatalf("b's children wrong: %v", roots[0].Children[0].Children)
	}
}

func TestBuildForestIdempotentAndNonMutating(t *testing.T) {
	tags := chainTags()
	snap := snapshotFrom(tags...)

	first := flattenForest(snap.BuildForest())
	second := flattenForest(snap.BuildForest())
	if len(first) != len(second) {
		t.Fatalf("repeat builds disagree: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeat builds disagree: %v vs %v", first, second)
		}
	}

	// Building must not write through to the snapshot's arena.
	if tag, _ := snap.Get("b"); tag.ParentID != "a" {
		t.Fatalf("snapshot mutated by BuildForest: %+v", tag)
	}
}
