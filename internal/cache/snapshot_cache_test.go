package cache

import (
	"context"
	"testing"
	"time"

	"keepsake/api/internal/store"

	"github.com/alicebob/miniredis/v2"
)

func setupTestCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewSnapshotCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create snapshot cache: %v", err)
	}
	return c, s
}

func TestVersionColdCache(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	version, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 1 {
		t.Errorf("cold cache should report version 1, got %d", version)
	}
}

func TestPutAndGetSnapshot(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	tags := []store.Tag{
		{ID: "tag_people", Name: "People", Dimension: "who", SortOrder: 0},
		{ID: "tag_family", Name: "Family", Dimension: "who", SortOrder: 10},
	}

	if err := c.Put(ctx, 1, tags); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, hit, err := c.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if len(got) != 2 || got[0].ID != "tag_people" || got[1].Name != "Family" {
		t.Errorf("unexpected tags from cache: %+v", got)
	}
}

func TestGetMissIsNotAnError(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	_, hit, err := c.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("expected miss for unknown version")
	}
}

func TestInvalidateBumpsVersion(t *testing.T) {
	c, s := setupTestCache(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Put(ctx, 1, []store.Tag{{ID: "a", Name: "A", Dimension: "what"}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	v1, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	v2, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if v2 != v1+1 {
		t.Errorf("versions should increase by one: %d then %d", v1, v2)
	}

	// The old payload is still readable; readers who reloaded the version
	// will look up the new key and miss.
	_, hit, err := c.Get(ctx, v2)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("new version must not reuse the old payload")
	}
}

func TestSnapshotExpires(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	c, err := NewSnapshotCache("redis://"+s.Addr(), time.Second)
	if err != nil {
		t.Fatalf("failed to create snapshot cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Put(ctx, 1, []store.Tag{{ID: "a", Name: "A", Dimension: "when"}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Second)

	_, hit, err := c.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("snapshot should have expired")
	}
}
