package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sort"
	"sync"
	"testing"

	"keepsake/api/internal/config"
	"keepsake/api/internal/export"
	"keepsake/api/internal/store"
)

type fakeStore struct {
	listTagsFn          func(context.Context) ([]store.Tag, error)
	getTagFn            func(context.Context, string) (store.Tag, error)
	insertTagFn         func(context.Context, store.Tag) error
	updateTagInfoFn     func(context.Context, string, string, string) error
	moveTagFn           func(context.Context, string, *string, float64) error
	deleteTagsFn        func(context.Context, []string) error
	listEntriesFn       func(context.Context, string) ([]store.Entry, error)
	listEntriesByTagFn  func(context.Context, string, string) ([]store.Entry, error)
	getEntryFn          func(context.Context, string) (store.Entry, error)
	insertEntryFn       func(context.Context, store.Entry) error
	updateEntryFn       func(context.Context, store.Entry) error
	updateEntryTagsFn   func(context.Context, string, store.TagFields, string) error
	updateEntryStatusFn func(context.Context, string, string, string) error
	deleteEntryFn       func(context.Context, string) error
	listCardsByTagFn    func(context.Context, string, string) ([]store.Card, error)
	getCardFn           func(context.Context, string) (store.Card, error)
	insertCardFn        func(context.Context, store.Card) error
	updateCardTagsFn    func(context.Context, string, store.TagFields, string) error
	listAlbumsFn        func(context.Context, string) ([]store.Album, error)
	listAlbumsByTagFn   func(context.Context, string, string) ([]store.Album, error)
	getAlbumFn          func(context.Context, string) (store.Album, error)
	insertAlbumFn       func(context.Context, store.Album) error
	updateAlbumTagsFn   func(context.Context, string, store.TagFields, string) error
	listPhotosFn        func(context.Context, string) ([]store.Photo, error)
	insertPhotoFn       func(context.Context, store.Photo) error
	pingFn              func(context.Context) error
}

func (f *fakeStore) ListTags(ctx context.Context) ([]store.Tag, error) {
	if f.listTagsFn != nil {
		return f.listTagsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetTag(ctx context.Context, id string) (store.Tag, error) {
	if f.getTagFn != nil {
		return f.getTagFn(ctx, id)
	}
	return store.Tag{}, sql.ErrNoRows
}
func (f *fakeStore) InsertTag(ctx context.Context, tag store.Tag) error {
	if f.insertTagFn != nil {
		return f.insertTagFn(ctx, tag)
	}
	return nil
}
func (f *fakeStore) UpdateTagInfo(ctx context.Context, id, name, description string) error {
	if f.updateTagInfoFn != nil {
		return f.updateTagInfoFn(ctx, id, name, description)
	}
	return nil
}
func (f *fakeStore) MoveTag(ctx context.Context, id string, parentID *string, order float64) error {
	if f.moveTagFn != nil {
		return f.moveTagFn(ctx, id, parentID, order)
	}
	return nil
}
func (f *fakeStore) DeleteTags(ctx context.Context, ids []string) error {
	if f.deleteTagsFn != nil {
		return f.deleteTagsFn(ctx, ids)
	}
	return nil
}
func (f *fakeStore) RefreshTagCounts(context.Context) error { return nil }
func (f *fakeStore) ListEntries(ctx context.Context, status string) ([]store.Entry, error) {
	if f.listEntriesFn != nil {
		return f.listEntriesFn(ctx, status)
	}
	return nil, nil
}
func (f *fakeStore) ListEntriesByTag(ctx context.Context, tagID, status string) ([]store.Entry, error) {
	if f.listEntriesByTagFn != nil {
		return f.listEntriesByTagFn(ctx, tagID, status)
	}
	return nil, nil
}
func (f *fakeStore) GetEntry(ctx context.Context, id string) (store.Entry, error) {
	if f.getEntryFn != nil {
		return f.getEntryFn(ctx, id)
	}
	return store.Entry{}, sql.ErrNoRows
}
func (f *fakeStore) InsertEntry(ctx context.Context, entry store.Entry) error {
	if f.insertEntryFn != nil {
		return f.insertEntryFn(ctx, entry)
	}
	return nil
}
func (f *fakeStore) UpdateEntry(ctx context.Context, entry store.Entry) error {
	if f.updateEntryFn != nil {
		return f.updateEntryFn(ctx, entry)
	}
	return nil
}
func (f *fakeStore) UpdateEntryTags(ctx context.Context, id string, fields store.TagFields, updatedBy string) error {
	if f.updateEntryTagsFn != nil {
		return f.updateEntryTagsFn(ctx, id, fields, updatedBy)
	}
	return nil
}
func (f *fakeStore) UpdateEntryStatus(ctx context.Context, id, status, updatedBy string) error {
	if f.updateEntryStatusFn != nil {
		return f.updateEntryStatusFn(ctx, id, status, updatedBy)
	}
	return nil
}
func (f *fakeStore) DeleteEntry(ctx context.Context, id string) error {
	if f.deleteEntryFn != nil {
		return f.deleteEntryFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) ListCards(context.Context, string) ([]store.Card, error) { return nil, nil }
func (f *fakeStore) ListCardsByTag(ctx context.Context, tagID, status string) ([]store.Card, error) {
	if f.listCardsByTagFn != nil {
		return f.listCardsByTagFn(ctx, tagID, status)
	}
	return nil, nil
}
func (f *fakeStore) GetCard(ctx context.Context, id string) (store.Card, error) {
	if f.getCardFn != nil {
		return f.getCardFn(ctx, id)
	}
	return store.Card{}, sql.ErrNoRows
}
func (f *fakeStore) InsertCard(ctx context.Context, card store.Card) error {
	if f.insertCardFn != nil {
		return f.insertCardFn(ctx, card)
	}
	return nil
}
func (f *fakeStore) UpdateCard(context.Context, store.Card) error { return nil }
func (f *fakeStore) UpdateCardTags(ctx context.Context, id string, fields store.TagFields, updatedBy string) error {
	if f.updateCardTagsFn != nil {
		return f.updateCardTagsFn(ctx, id, fields, updatedBy)
	}
	return nil
}
func (f *fakeStore) UpdateCardStatus(context.Context, string, string, string) error { return nil }
func (f *fakeStore) DeleteCard(context.Context, string) error                       { return nil }
func (f *fakeStore) ListAlbums(ctx context.Context, status string) ([]store.Album, error) {
	if f.listAlbumsFn != nil {
		return f.listAlbumsFn(ctx, status)
	}
	return nil, nil
}
func (f *fakeStore) ListAlbumsByTag(ctx context.Context, tagID, status string) ([]store.Album, error) {
	if f.listAlbumsByTagFn != nil {
		return f.listAlbumsByTagFn(ctx, tagID, status)
	}
	return nil, nil
}
func (f *fakeStore) GetAlbum(ctx context.Context, id string) (store.Album, error) {
	if f.getAlbumFn != nil {
		return f.getAlbumFn(ctx, id)
	}
	return store.Album{}, sql.ErrNoRows
}
func (f *fakeStore) InsertAlbum(ctx context.Context, album store.Album) error {
	if f.insertAlbumFn != nil {
		return f.insertAlbumFn(ctx, album)
	}
	return nil
}
func (f *fakeStore) UpdateAlbum(context.Context, store.Album) error { return nil }
func (f *fakeStore) UpdateAlbumTags(ctx context.Context, id string, fields store.TagFields, updatedBy string) error {
	if f.updateAlbumTagsFn != nil {
		return f.updateAlbumTagsFn(ctx, id, fields, updatedBy)
	}
	return nil
}
func (f *fakeStore) DeleteAlbum(context.Context, string) error { return nil }
func (f *fakeStore) ListPhotos(ctx context.Context, albumID string) ([]store.Photo, error) {
	if f.listPhotosFn != nil {
		return f.listPhotosFn(ctx, albumID)
	}
	return nil, nil
}
func (f *fakeStore) InsertPhoto(ctx context.Context, photo store.Photo) error {
	if f.insertPhotoFn != nil {
		return f.insertPhotoFn(ctx, photo)
	}
	return nil
}
func (f *fakeStore) UpdatePhoto(context.Context, store.Photo) error { return nil }
func (f *fakeStore) DeletePhoto(context.Context, string) error      { return nil }
func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func newTestService(fs *fakeStore) *Service {
	svc := &Service{
		cfg:          config.Config{SiteAuthor: "Keeper"},
		store:        fs,
		localVersion: 1,
	}
	svc.exporter = export.NewService(&exportStore{svc: svc})
	return svc
}

// familyTags is a small who-dimension tree: family -> grandma, plus an
// unrelated sibling root.
func familyTags() []store.Tag {
	family := "tag_family"
	return []store.Tag{
		{ID: "tag_family", Name: "Family", Dimension: "who", SortOrder: 10},
		{ID: "tag_grandma", Name: "Grandma", Dimension: "who", ParentID: &family, SortOrder: 10},
		{ID: "tag_neighbors", Name: "Neighbors", Dimension: "who", SortOrder: 20},
	}
}

func staticTags(tags []store.Tag) func(context.Context) ([]store.Tag, error) {
	return func(context.Context) ([]store.Tag, error) { return tags, nil }
}

func TestBootstrapSeedsDimensionRoots(t *testing.T) {
	var inserted []store.Tag
	fs := &fakeStore{
		listTagsFn: staticTags(nil),
		insertTagFn: func(_ context.Context, tag store.Tag) error {
			inserted = append(inserted, tag)
			return nil
		},
	}
	svc := newTestService(fs)

	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if len(inserted) != 5 {
		t.Fatalf("expected 5 seed tags, got %d", len(inserted))
	}
	dims := make([]string, 0, len(inserted))
	for _, tag := range inserted {
		dims = append(dims, tag.Dimension)
		if tag.ParentID != nil {
			t.Errorf("seed tag %s should be a root", tag.ID)
		}
	}
	sort.Strings(dims)
	want := []string{"reflection", "what", "when", "where", "who"}
	for i, dim := range want {
		if dims[i] != dim {
			t.Fatalf("seed dimensions = %v, want %v", dims, want)
		}
	}
}

func TestBootstrapSkipsPopulatedTaxonomy(t *testing.T) {
	fs := &fakeStore{
		listTagsFn: staticTags(familyTags()),
		insertTagFn: func(context.Context, store.Tag) error {
			t.Fatal("Bootstrap must not insert into a populated taxonomy")
			return nil
		},
	}
	if err := newTestService(fs).Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
}

func TestCreateTagAppendsAfterSiblings(t *testing.T) {
	var inserted store.Tag
	fs := &fakeStore{
		listTagsFn: staticTags(familyTags()),
		insertTagFn: func(_ context.Context, tag store.Tag) error {
			inserted = tag
			return nil
		},
	}
	svc := newTestService(fs)

	tag, err := svc.CreateTag(context.Background(), TagInput{Name: "Friends", Dimension: "who"})
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	// Roots at 10 and 20 exist, so the new root lands at 30.
	if inserted.SortOrder != 30 {
		t.Errorf("sortOrder = %v, want 30", inserted.SortOrder)
	}
	if tag.Dimension != "who" || tag.Name != "Friends" {
		t.Errorf("unexpected view: %+v", tag)
	}
}

func TestCreateTagRejectsUnknownDimension(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(nil)})

	_, err := svc.CreateTag(context.Background(), TagInput{Name: "X", Dimension: "mood"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 DomainError, got %v", err)
	}
}

func TestCreateTagRejectsCrossDimensionParent(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(familyTags())})

	parent := "tag_family"
	_, err := svc.CreateTag(context.Background(), TagInput{Name: "1980s", Dimension: "when", ParentID: &parent})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 DomainError, got %v", err)
	}
}

func TestMoveTagReorderMidpoint(t *testing.T) {
	tags := []store.Tag{
		{ID: "tag_a", Name: "A", Dimension: "who", SortOrder: 10},
		{ID: "tag_b", Name: "B", Dimension: "who", SortOrder: 20},
		{ID: "tag_c", Name: "C", Dimension: "who", SortOrder: 30},
	}
	var movedOrder float64
	var movedParent *string
	fs := &fakeStore{
		listTagsFn: staticTags(tags),
		moveTagFn: func(_ context.Context, id string, parentID *string, order float64) error {
			movedParent = parentID
			movedOrder = order
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.MoveTag(context.Background(), "tag_c", MoveTagInput{Mode: "reorder", OverID: "tag_b", Placement: "before"})
	if err != nil {
		t.Fatalf("MoveTag: %v", err)
	}
	if movedOrder != 15 {
		t.Errorf("persisted order = %v, want midpoint 15", movedOrder)
	}
	if movedParent != nil {
		t.Errorf("reorder must keep the parent, got %v", *movedParent)
	}
	if payload["sortOrder"] != 15.0 {
		t.Errorf("payload sortOrder = %v", payload["sortOrder"])
	}
}

func TestMoveTagReparentRejectsDescendant(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(familyTags())})

	child := "tag_grandma"
	_, err := svc.MoveTag(context.Background(), "tag_family", MoveTagInput{Mode: "reparent", ParentID: &child})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_MOVE" {
		t.Fatalf("expected INVALID_MOVE, got %v", err)
	}
}

func TestMoveTagUnknownTagIs404(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(familyTags())})

	_, err := svc.MoveTag(context.Background(), "tag_ghost", MoveTagInput{Mode: "reorder", OverID: "tag_family", Placement: "after"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestCreateEntryPropagatesAncestors(t *testing.T) {
	var inserted store.Entry
	fs := &fakeStore{
		listTagsFn: staticTags(familyTags()),
		insertEntryFn: func(_ context.Context, entry store.Entry) error {
			inserted = entry
			return nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.CreateEntry(context.Background(), EntryInput{
		Title: "Sunday Dinners",
		Tags:  []string{"tag_grandma", "tag_grandma"},
	})
	if err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}
	if len(inserted.Tags) != 1 || inserted.Tags[0] != "tag_grandma" {
		t.Errorf("selected tags should be deduped, got %v", inserted.Tags)
	}
	wantInherited := []string{"tag_grandma", "tag_family"}
	if len(inserted.InheritedTags) != 2 || inserted.InheritedTags[0] != wantInherited[0] || inserted.InheritedTags[1] != wantInherited[1] {
		t.Errorf("inherited = %v, want %v", inserted.InheritedTags, wantInherited)
	}
	if !inserted.FilterTags["tag_family"] || !inserted.FilterTags["tag_grandma"] {
		t.Errorf("filter map missing path keys: %v", inserted.FilterTags)
	}
	if inserted.UpdatedBy != "Keeper" {
		t.Errorf("blank author should fall back to the site author, got %q", inserted.UpdatedBy)
	}
	if inserted.Status != store.StatusDraft {
		t.Errorf("new entries default to draft, got %q", inserted.Status)
	}
}

func TestCreateEntryRequiresTitle(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(nil)})

	_, err := svc.CreateEntry(context.Background(), EntryInput{Title: "   "})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestDeleteTagCascadesAndRepropagates(t *testing.T) {
	var deleted []string
	var retagged store.TagFields
	fs := &fakeStore{
		listTagsFn: staticTags(familyTags()),
		deleteTagsFn: func(_ context.Context, ids []string) error {
			deleted = ids
			return nil
		},
		listEntriesByTagFn: func(_ context.Context, tagID, status string) ([]store.Entry, error) {
			if tagID != "tag_family" {
				t.Errorf("affected lookup should use the subtree root, got %q", tagID)
			}
			return []store.Entry{{
				ID: "entry_1",
				TagFields: store.TagFields{
					Tags: []string{"tag_grandma", "tag_neighbors"},
				},
			}}, nil
		},
		updateEntryTagsFn: func(_ context.Context, entryID string, fields store.TagFields, _ string) error {
			retagged = fields
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.DeleteTag(context.Background(), "tag_family")
	if err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	sort.Strings(deleted)
	if len(deleted) != 2 || deleted[0] != "tag_family" || deleted[1] != "tag_grandma" {
		t.Fatalf("deleted subtree = %v", deleted)
	}
	if len(retagged.Tags) != 1 || retagged.Tags[0] != "tag_neighbors" {
		t.Errorf("surviving selection = %v, want [tag_neighbors]", retagged.Tags)
	}
	if retagged.FilterTags["tag_family"] || retagged.FilterTags["tag_grandma"] {
		t.Errorf("deleted tags must leave the filter map: %v", retagged.FilterTags)
	}
	if payload["deleted"] == nil {
		t.Error("payload should list deleted IDs")
	}
}

func TestDeleteTagUnknownIs404(t *testing.T) {
	svc := newTestService(&fakeStore{listTagsFn: staticTags(familyTags())})

	_, err := svc.DeleteTag(context.Background(), "tag_ghost")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestBulkTagEntriesCollectsFailures(t *testing.T) {
	var mu sync.Mutex
	updated := make(map[string]store.TagFields)
	fs := &fakeStore{
		listTagsFn: staticTags(familyTags()),
		getEntryFn: func(_ context.Context, id string) (store.Entry, error) {
			if id == "entry_gone" {
				return store.Entry{}, sql.ErrNoRows
			}
			return store.Entry{ID: id, TagFields: store.TagFields{Tags: []string{"tag_neighbors"}}}, nil
		},
		updateEntryTagsFn: func(_ context.Context, id string, fields store.TagFields, _ string) error {
			mu.Lock()
			defer mu.Unlock()
			updated[id] = fields
			return nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.BulkTagEntries(context.Background(), BulkTagInput{
		IDs:    []string{"entry_1", "entry_2", "entry_gone"},
		Add:    []string{"tag_grandma"},
		Remove: []string{"tag_neighbors"},
	})
	if err != nil {
		t.Fatalf("BulkTagEntries: %v", err)
	}
	failed := payload["failed"].([]string)
	if len(failed) != 1 || failed[0] != "entry_gone" {
		t.Fatalf("failed = %v", failed)
	}
	if payload["updated"] != 2 {
		t.Errorf("updated = %v, want 2", payload["updated"])
	}
	for id, fields := range updated {
		if len(fields.Tags) != 1 || fields.Tags[0] != "tag_grandma" {
			t.Errorf("%s selection = %v", id, fields.Tags)
		}
		if !fields.FilterTags["tag_family"] {
			t.Errorf("%s filter map missing ancestor", id)
		}
	}
}

func TestBulkSetEntryStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.BulkSetEntryStatus(context.Background(), BulkStatusInput{IDs: []string{"entry_1"}, Status: "archived"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestPublicEntryHidesDrafts(t *testing.T) {
	fs := &fakeStore{
		getEntryFn: func(_ context.Context, id string) (store.Entry, error) {
			return store.Entry{ID: id, Title: "Draft", Status: store.StatusDraft}, nil
		},
	}
	svc := newTestService(fs)

	_, err := svc.PublicEntry(context.Background(), "entry_1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusNotFound {
		t.Fatalf("drafts must 404 publicly, got %v", err)
	}
}

func TestTagTreeReportsOrphans(t *testing.T) {
	ghost := "tag_ghost"
	tags := append(familyTags(), store.Tag{ID: "tag_lost", Name: "Lost", Dimension: "who", ParentID: &ghost, SortOrder: 10})
	svc := newTestService(&fakeStore{listTagsFn: staticTags(tags)})

	payload, err := svc.TagTree(context.Background())
	if err != nil {
		t.Fatalf("TagTree: %v", err)
	}
	orphans := payload["orphans"].([]string)
	if len(orphans) != 1 || orphans[0] != "tag_lost" {
		t.Errorf("orphans = %v, want [tag_lost]", orphans)
	}
	tree := payload["tree"].(map[string][]*TreeNode)
	// The orphan still surfaces as a root so its subtree stays reachable.
	if len(tree["who"]) != 3 {
		t.Errorf("who roots = %d, want 3 (two real roots plus the orphan)", len(tree["who"]))
	}
}

func TestSnapshotReloadsAfterInvalidate(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		listTagsFn: func(context.Context) ([]store.Tag, error) {
			calls++
			return familyTags(), nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ListTags(context.Background()); err != nil {
		t.Fatalf("first ListTags: %v", err)
	}
	if _, err := svc.ListTags(context.Background()); err != nil {
		t.Fatalf("second ListTags: %v", err)
	}
	if calls != 1 {
		t.Fatalf("memoized snapshot should serve the second read, store hit %d times", calls)
	}

	svc.invalidateSnapshot(context.Background())
	if _, err := svc.ListTags(context.Background()); err != nil {
		t.Fatalf("ListTags after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("invalidate should force a reload, store hit %d times", calls)
	}
}
