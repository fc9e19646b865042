package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"keepsake/api/internal/cache"
	"keepsake/api/internal/config"
	"keepsake/api/internal/export"
	"keepsake/api/internal/gitrepo"
	"keepsake/api/internal/search"
	"keepsake/api/internal/store"
	"keepsake/api/internal/taxonomy"
	"keepsake/api/internal/util"
)

type TagInput struct {
	Name        string  `json:"name"`
	Dimension   string  `json:"dimension"`
	ParentID    *string `json:"parentId"`
	Description string  `json:"description"`
}

type MoveTagInput struct {
	Mode      string  `json:"mode"` // "reorder" or "reparent"
	OverID    string  `json:"overId"`
	Placement string  `json:"placement"` // "before" or "after"
	ParentID  *string `json:"parentId"`
}

type EntryInput struct {
	Title      string          `json:"title"`
	Subtitle   string          `json:"subtitle"`
	Status     string          `json:"status"`
	Doc        json.RawMessage `json:"doc"`
	OccurredOn string          `json:"occurredOn"`
	Tags       []string        `json:"tags"`
	Author     string          `json:"author"`
}

type CardInput struct {
	Kind   string          `json:"kind"`
	Title  string          `json:"title"`
	Body   json.RawMessage `json:"body"`
	Status string          `json:"status"`
	Tags   []string        `json:"tags"`
	Author string          `json:"author"`
}

type AlbumInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Status       string   `json:"status"`
	CoverPhotoID *string  `json:"coverPhotoId"`
	Tags         []string `json:"tags"`
	Author       string   `json:"author"`
}

type PhotoInput struct {
	Caption   string     `json:"caption"`
	SourceURL string     `json:"sourceUrl"`
	TakenAt   *time.Time `json:"takenAt"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	SortOrder float64    `json:"sortOrder"`
}

type BulkTagInput struct {
	IDs    []string `json:"ids"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
	Author string   `json:"author"`
}

type BulkStatusInput struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
	Author string   `json:"author"`
}

// TagView is the JSON shape of a tag in API responses.
type TagView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Dimension   string  `json:"dimension"`
	ParentID    *string `json:"parentId"`
	SortOrder   float64 `json:"sortOrder"`
	Description string  `json:"description"`
	EntryCount  int     `json:"entryCount"`
	AlbumCount  int     `json:"albumCount"`
}

// TreeNode is a tag with its ordered children, per dimension.
type TreeNode struct {
	TagView
	Children []*TreeNode `json:"children"`
}

type dataStore interface {
	ListTags(context.Context) ([]store.Tag, error)
	GetTag(context.Context, string) (store.Tag, error)
	InsertTag(context.Context, store.Tag) error
	UpdateTagInfo(context.Context, string, string, string) error
	MoveTag(context.Context, string, *string, float64) error
	DeleteTags(context.Context, []string) error
	RefreshTagCounts(context.Context) error
	ListEntries(context.Context, string) ([]store.Entry, error)
	ListEntriesByTag(context.Context, string, string) ([]store.Entry, error)
	GetEntry(context.Context, string) (store.Entry, error)
	InsertEntry(context.Context, store.Entry) error
	UpdateEntry(context.Context, store.Entry) error
	UpdateEntryTags(context.Context, string, store.TagFields, string) error
	UpdateEntryStatus(context.Context, string, string, string) error
	DeleteEntry(context.Context, string) error
	ListCards(context.Context, string) ([]store.Card, error)
	ListCardsByTag(context.Context, string, string) ([]store.Card, error)
	GetCard(context.Context, string) (store.Card, error)
	InsertCard(context.Context, store.Card) error
	UpdateCard(context.Context, store.Card) error
	UpdateCardTags(context.Context, string, store.TagFields, string) error
	UpdateCardStatus(context.Context, string, string, string) error
	DeleteCard(context.Context, string) error
	ListAlbums(context.Context, string) ([]store.Album, error)
	ListAlbumsByTag(context.Context, string, string) ([]store.Album, error)
	GetAlbum(context.Context, string) (store.Album, error)
	InsertAlbum(context.Context, store.Album) error
	UpdateAlbum(context.Context, store.Album) error
	UpdateAlbumTags(context.Context, string, store.TagFields, string) error
	DeleteAlbum(context.Context, string) error
	ListPhotos(context.Context, string) ([]store.Photo, error)
	InsertPhoto(context.Context, store.Photo) error
	UpdatePhoto(context.Context, store.Photo) error
	DeletePhoto(context.Context, string) error
	Ping(ctx context.Context) error
}

type snapshotCache interface {
	Version(context.Context) (int64, error)
	Get(context.Context, int64) ([]store.Tag, bool, error)
	Put(context.Context, int64, []store.Tag) error
	Invalidate(context.Context) (int64, error)
	Ping(context.Context) error
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexEntry(e search.EntryRecord)
	IndexCard(c search.CardRecord)
	IndexAlbum(a search.AlbumRecord)
	DeleteEntry(id string)
	DeleteCard(id string)
	DeleteAlbum(id string)
}

type gitService interface {
	EnsureEntryRepo(string, gitrepo.Content, string) error
	CommitRevision(string, gitrepo.Content, string, string) (store.CommitInfo, error)
	HeadContent(string) (gitrepo.Content, store.CommitInfo, error)
	GetRevision(string, string) (gitrepo.Content, error)
	History(string, int) ([]store.CommitInfo, error)
	DeleteEntryRepo(string) error
}

// snapshotState pairs the computational snapshot with the full store records,
// so tree and list responses can carry descriptions and counters without a
// second query.
type snapshotState struct {
	snap *taxonomy.Snapshot
	byID map[string]store.Tag
}

type Service struct {
	cfg       config.Config
	store     dataStore
	snapshots snapshotCache
	search    searcher
	git       gitService
	exporter  *export.Service

	// localVersion stands in for the Redis counter when no cache is wired.
	localVersion int64

	mu      sync.Mutex
	current *snapshotState
}

func New(cfg config.Config, dataStore *store.PostgresStore, snapshots *cache.SnapshotCache, searchSvc *search.Service, gitSvc *gitrepo.Service) *Service {
	svc := &Service{
		cfg:          cfg,
		store:        dataStore,
		localVersion: 1,
	}
	if snapshots != nil {
		svc.snapshots = snapshots
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	if gitSvc != nil {
		svc.git = gitSvc
	}
	svc.exporter = export.NewService(&exportStore{svc: svc})
	return svc
}

// Bootstrap seeds the five dimension root tags on an empty database.
func (s *Service) Bootstrap(ctx context.Context) error {
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(tags) > 0 {
		return nil
	}

	seeds := []struct {
		Name      string
		Dimension taxonomy.Dimension
	}{
		{Name: "People", Dimension: taxonomy.DimensionWho},
		{Name: "Things", Dimension: taxonomy.DimensionWhat},
		{Name: "Eras", Dimension: taxonomy.DimensionWhen},
		{Name: "Places", Dimension: taxonomy.DimensionWhere},
		{Name: "Reflections", Dimension: taxonomy.DimensionReflection},
	}
	for _, seed := range seeds {
		if err := s.store.InsertTag(ctx, store.Tag{
			ID:        util.NewID("tag"),
			Name:      seed.Name,
			Dimension: string(seed.Dimension),
			SortOrder: 10,
		}); err != nil {
			return err
		}
	}
	s.invalidateSnapshot(ctx)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CachePing reports snapshot cache reachability; nil when no cache is wired.
func (s *Service) CachePing(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Ping(ctx)
}

// snapshot returns the current taxonomy state, loading through the cache when
// one is wired and falling back to Postgres on any miss.
func (s *Service) snapshot(ctx context.Context) (*snapshotState, error) {
	version := atomic.LoadInt64(&s.localVersion)
	if s.snapshots != nil {
		v, err := s.snapshots.Version(ctx)
		if err != nil {
			log.Printf("app: snapshot version lookup failed, loading from store: %v", err)
		} else {
			version = v
		}
	}

	s.mu.Lock()
	if s.current != nil && s.current.snap.Version() == version {
		state := s.current
		s.mu.Unlock()
		return state, nil
	}
	s.mu.Unlock()

	var tags []store.Tag
	loaded := false
	if s.snapshots != nil {
		cached, hit, err := s.snapshots.Get(ctx, version)
		if err != nil {
			log.Printf("app: snapshot cache read failed: %v", err)
		} else if hit {
			tags = cached
			loaded = true
		}
	}
	if !loaded {
		var err error
		tags, err = s.store.ListTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("load tags: %w", err)
		}
		if s.snapshots != nil {
			if err := s.snapshots.Put(ctx, version, tags); err != nil {
				log.Printf("app: snapshot cache write failed: %v", err)
			}
		}
	}

	state := newSnapshotState(version, tags)
	s.mu.Lock()
	s.current = state
	s.mu.Unlock()
	return state, nil
}

// invalidateSnapshot bumps the version after any tag mutation. Readers pick
// up the new version and rebuild from Postgres.
func (s *Service) invalidateSnapshot(ctx context.Context) {
	if s.snapshots != nil {
		if _, err := s.snapshots.Invalidate(ctx); err != nil {
			log.Printf("app: snapshot invalidate failed: %v", err)
		}
	} else {
		atomic.AddInt64(&s.localVersion, 1)
	}
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

func newSnapshotState(version int64, tags []store.Tag) *snapshotState {
	byID := make(map[string]store.Tag, len(tags))
	taxTags := make([]taxonomy.Tag, 0, len(tags))
	for _, tag := range tags {
		byID[tag.ID] = tag
		dim, err := taxonomy.ParseDimension(tag.Dimension)
		if err != nil {
			log.Printf("app: tag %s carries unknown dimension %q", tag.ID, tag.Dimension)
			dim = taxonomy.Dimension(tag.Dimension)
		}
		parentID := ""
		if tag.ParentID != nil {
			parentID = *tag.ParentID
		}
		taxTags = append(taxTags, taxonomy.Tag{
			ID:        tag.ID,
			Name:      tag.Name,
			Dimension: dim,
			ParentID:  parentID,
			Order:     tag.SortOrder,
		})
	}
	return &snapshotState{snap: taxonomy.NewSnapshot(version, taxTags), byID: byID}
}

// ---- tags ----

func (s *Service) ListTags(ctx context.Context) (map[string]any, error) {
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]TagView, 0, len(state.byID))
	for _, tag := range state.snap.Tags() {
		views = append(views, tagView(state.byID[tag.ID]))
	}
	return map[string]any{"tags": views}, nil
}

// TagTree returns the per-dimension trees plus the IDs of orphaned tags so
// the admin UI can flag the degraded branches.
func (s *Service) TagTree(ctx context.Context) (map[string]any, error) {
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	forest := state.snap.BuildForest()
	tree := make(map[string][]*TreeNode, len(forest))
	for dim, roots := range forest {
		tree[string(dim)] = convertNodes(roots, state.byID)
	}

	orphans := make([]string, 0)
	for _, tag := range state.snap.Orphans() {
		orphans = append(orphans, tag.ID)
	}
	return map[string]any{"tree": tree, "orphans": orphans, "version": state.snap.Version()}, nil
}

func convertNodes(nodes []*taxonomy.Node, byID map[string]store.Tag) []*TreeNode {
	out := make([]*TreeNode, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, &TreeNode{
			TagView:  tagView(byID[node.ID]),
			Children: convertNodes(node.Children, byID),
		})
	}
	return out
}

func (s *Service) GetTag(ctx context.Context, tagID string) (TagView, error) {
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return TagView{}, err
	}
	return tagView(tag), nil
}

func (s *Service) CreateTag(ctx context.Context, input TagInput) (TagView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TagView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	dim, err := taxonomy.ParseDimension(input.Dimension)
	if err != nil {
		return TagView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown dimension", map[string]any{"dimension": input.Dimension})
	}

	state, err := s.snapshot(ctx)
	if err != nil {
		return TagView{}, err
	}

	parentID := ""
	if input.ParentID != nil {
		parentID = strings.TrimSpace(*input.ParentID)
	}
	if parentID != "" {
		parent, ok := state.snap.Get(parentID)
		if !ok {
			return TagView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent tag not found", map[string]any{"parentId": parentID})
		}
		if parent.Dimension != dim {
			return TagView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent belongs to a different dimension", nil)
		}
	}

	// New tags append after the last sibling, same rule as a reparent.
	maxOrder := 0.0
	for _, sibling := range state.snap.Tags() {
		if sibling.ParentID != parentID || sibling.Dimension != dim {
			continue
		}
		if sibling.Order > maxOrder {
			maxOrder = sibling.Order
		}
	}

	tag := store.Tag{
		ID:          util.NewID("tag"),
		Name:        name,
		Dimension:   string(dim),
		SortOrder:   maxOrder + 10,
		Description: strings.TrimSpace(input.Description),
	}
	if parentID != "" {
		tag.ParentID = &parentID
	}
	if err := s.store.InsertTag(ctx, tag); err != nil {
		return TagView{}, fmt.Errorf("insert tag: %w", err)
	}
	s.invalidateSnapshot(ctx)
	return tagView(tag), nil
}

func (s *Service) UpdateTag(ctx context.Context, tagID string, input TagInput) (TagView, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TagView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	state, err := s.snapshot(ctx)
	if err != nil {
		return TagView{}, err
	}
	existing, ok := state.byID[tagID]
	if !ok {
		return TagView{}, domainError(http.StatusNotFound, "TAG_NOT_FOUND", "Tag not found", nil)
	}

	if err := s.store.UpdateTagInfo(ctx, tagID, name, strings.TrimSpace(input.Description)); err != nil {
		return TagView{}, fmt.Errorf("update tag: %w", err)
	}
	s.invalidateSnapshot(ctx)

	existing.Name = name
	existing.Description = strings.TrimSpace(input.Description)
	return tagView(existing), nil
}

// MoveTag runs the move engine against the current snapshot and applies its
// output optimistically. If the write fails the snapshot is refreshed before
// the error surfaces, so the client retries against current state.
func (s *Service) MoveTag(ctx context.Context, tagID string, input MoveTagInput) (map[string]any, error) {
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	switch input.Mode {
	case "reorder":
		placement := taxonomy.Placement(input.Placement)
		if placement != taxonomy.PlaceBefore && placement != taxonomy.PlaceAfter {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "placement must be before or after", nil)
		}
		order, err := state.snap.Reorder(tagID, input.OverID, placement)
		if err != nil {
			return nil, taxonomyError(err)
		}
		current := state.byID[tagID]
		if err := s.store.MoveTag(ctx, tagID, current.ParentID, order); err != nil {
			s.invalidateSnapshot(ctx)
			return nil, fmt.Errorf("persist reorder: %w", err)
		}
		s.invalidateSnapshot(ctx)
		return map[string]any{"id": tagID, "parentId": current.ParentID, "sortOrder": order}, nil

	case "reparent":
		newParent := ""
		if input.ParentID != nil {
			newParent = strings.TrimSpace(*input.ParentID)
		}
		change, err := state.snap.Reparent(tagID, newParent)
		if err != nil {
			return nil, taxonomyError(err)
		}
		var parentID *string
		if change.ParentID != "" {
			parentID = &change.ParentID
		}
		if err := s.store.MoveTag(ctx, tagID, parentID, change.Order); err != nil {
			s.invalidateSnapshot(ctx)
			return nil, fmt.Errorf("persist reparent: %w", err)
		}
		s.invalidateSnapshot(ctx)
		return map[string]any{"id": tagID, "parentId": parentID, "sortOrder": change.Order}, nil

	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mode must be reorder or reparent", nil)
	}
}

// DeleteTag removes a tag and its whole subtree, then re-propagates derived
// tags for every entity that referenced any deleted tag.
func (s *Service) DeleteTag(ctx context.Context, tagID string) (map[string]any, error) {
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state.byID[tagID]; !ok {
		return nil, domainError(http.StatusNotFound, "TAG_NOT_FOUND", "Tag not found", nil)
	}

	deleted := []string{tagID}
	for _, tag := range state.snap.Tags() {
		if tag.ID != tagID && state.snap.IsDescendant(tag.ID, tagID) {
			deleted = append(deleted, tag.ID)
		}
	}

	// Entities tagged anywhere in the subtree carry the root in their filter
	// map, so one key-existence query per table finds everything affected.
	entries, err := s.store.ListEntriesByTag(ctx, tagID, "")
	if err != nil {
		return nil, fmt.Errorf("list affected entries: %w", err)
	}
	cards, err := s.store.ListCardsByTag(ctx, tagID, "")
	if err != nil {
		return nil, fmt.Errorf("list affected cards: %w", err)
	}
	albums, err := s.store.ListAlbumsByTag(ctx, tagID, "")
	if err != nil {
		return nil, fmt.Errorf("list affected albums: %w", err)
	}

	if err := s.store.DeleteTags(ctx, deleted); err != nil {
		return nil, fmt.Errorf("delete tag subtree: %w", err)
	}
	s.invalidateSnapshot(ctx)

	fresh, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	deletedSet := make(map[string]bool, len(deleted))
	for _, id := range deleted {
		deletedSet[id] = true
	}

	for _, entry := range entries {
		selected := withoutIDs(entry.Tags, deletedSet)
		if err := s.store.UpdateEntryTags(ctx, entry.ID, propagatedFields(fresh.snap, selected), entry.UpdatedBy); err != nil {
			log.Printf("app: re-propagate entry %s after tag delete: %v", entry.ID, err)
			continue
		}
		s.indexEntry(entryWithTags(entry, fresh.snap, selected))
	}
	for _, card := range cards {
		selected := withoutIDs(card.Tags, deletedSet)
		if err := s.store.UpdateCardTags(ctx, card.ID, propagatedFields(fresh.snap, selected), card.UpdatedBy); err != nil {
			log.Printf("app: re-propagate card %s after tag delete: %v", card.ID, err)
			continue
		}
		s.indexCard(cardWithTags(card, fresh.snap, selected))
	}
	for _, album := range albums {
		selected := withoutIDs(album.Tags, deletedSet)
		if err := s.store.UpdateAlbumTags(ctx, album.ID, propagatedFields(fresh.snap, selected), album.UpdatedBy); err != nil {
			log.Printf("app: re-propagate album %s after tag delete: %v", album.ID, err)
			continue
		}
		s.indexAlbum(albumWithTags(album, fresh.snap, selected))
	}

	if err := s.store.RefreshTagCounts(ctx); err != nil {
		log.Printf("app: refresh tag counts: %v", err)
	}
	return map[string]any{"deleted": deleted}, nil
}

func taxonomyError(err error) error {
	switch {
	case errors.Is(err, taxonomy.ErrUnknownTag):
		return domainError(http.StatusNotFound, "TAG_NOT_FOUND", "Tag not found", nil)
	case errors.Is(err, taxonomy.ErrCrossParentMove),
		errors.Is(err, taxonomy.ErrSelfParent),
		errors.Is(err, taxonomy.ErrDescendantParent),
		errors.Is(err, taxonomy.ErrCrossDimensionMove):
		return domainError(http.StatusUnprocessableEntity, "INVALID_MOVE", err.Error(), nil)
	}
	return err
}

func tagView(tag store.Tag) TagView {
	return TagView{
		ID:          tag.ID,
		Name:        tag.Name,
		Dimension:   tag.Dimension,
		ParentID:    tag.ParentID,
		SortOrder:   tag.SortOrder,
		Description: tag.Description,
		EntryCount:  tag.EntryCount,
		AlbumCount:  tag.AlbumCount,
	}
}

// ---- derived tag helpers ----

func propagatedFields(snap *taxonomy.Snapshot, selected []string) store.TagFields {
	deduped := dedupeIDs(selected)
	prop := snap.Propagate(deduped)
	return store.TagFields{
		Tags:          deduped,
		InheritedTags: prop.InheritedTags,
		FilterTags:    prop.FilterTags,
	}
}

func dedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func withoutIDs(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) tagNames(state *snapshotState, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if tag, ok := state.byID[id]; ok {
			names = append(names, tag.Name)
		}
	}
	return names
}

func entryWithTags(entry store.Entry, snap *taxonomy.Snapshot, selected []string) store.Entry {
	entry.TagFields = propagatedFields(snap, selected)
	return entry
}

func cardWithTags(card store.Card, snap *taxonomy.Snapshot, selected []string) store.Card {
	card.TagFields = propagatedFields(snap, selected)
	return card
}

func albumWithTags(album store.Album, snap *taxonomy.Snapshot, selected []string) store.Album {
	album.TagFields = propagatedFields(snap, selected)
	return album
}

// ---- search indexing ----

func (s *Service) indexEntry(entry store.Entry) {
	if s.search == nil {
		return
	}
	s.search.IndexEntry(search.EntryRecord{
		ID:            entry.ID,
		Title:         entry.Title,
		Subtitle:      entry.Subtitle,
		Text:          docText(entry.Doc),
		Status:        entry.Status,
		OccurredOn:    entry.OccurredOn,
		InheritedTags: entry.InheritedTags,
	})
}

func (s *Service) indexCard(card store.Card) {
	if s.search == nil {
		return
	}
	s.search.IndexCard(search.CardRecord{
		ID:            card.ID,
		Kind:          card.Kind,
		Title:         card.Title,
		Text:          docText(card.Body),
		Status:        card.Status,
		InheritedTags: card.InheritedTags,
	})
}

func (s *Service) indexAlbum(album store.Album) {
	if s.search == nil {
		return
	}
	s.search.IndexAlbum(search.AlbumRecord{
		ID:            album.ID,
		Title:         album.Title,
		Description:   album.Description,
		Status:        album.Status,
		InheritedTags: album.InheritedTags,
	})
}

// docText flattens ProseMirror JSON to plain text for indexing.
func docText(doc json.RawMessage) string {
	if len(doc) == 0 {
		return ""
	}
	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return ""
	}
	var builder strings.Builder
	collectText(parsed, &builder)
	return strings.TrimSpace(builder.String())
}

func collectText(node any, builder *strings.Builder) {
	switch v := node.(type) {
	case map[string]interface{}:
		if text, ok := v["text"].(string); ok {
			if builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			builder.WriteString(text)
		}
		collectText(v["content"], builder)
	case []interface{}:
		for _, item := range v {
			collectText(item, builder)
		}
	}
}

// ---- entries ----

func (s *Service) ListEntries(ctx context.Context, status, tagID string) (map[string]any, error) {
	var items []store.Entry
	var err error
	if tagID != "" {
		items, err = s.store.ListEntriesByTag(ctx, tagID, status)
	} else {
		items, err = s.store.ListEntries(ctx, status)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"entries": entryViews(items)}, nil
}

func (s *Service) GetEntry(ctx context.Context, entryID string) (map[string]any, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"entry": entryView(entry)}, nil
}

func (s *Service) CreateEntry(ctx context.Context, input EntryInput) (map[string]any, error) {
	if err := validateContentInput(input.Title, input.Status); err != nil {
		return nil, err
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entry := store.Entry{
		ID:         util.NewID("entry"),
		Title:      strings.TrimSpace(input.Title),
		Subtitle:   strings.TrimSpace(input.Subtitle),
		Status:     normalizeStatus(input.Status),
		Doc:        input.Doc,
		OccurredOn: strings.TrimSpace(input.OccurredOn),
		UpdatedBy:  s.author(input.Author),
		TagFields:  propagatedFields(state.snap, input.Tags),
	}
	if err := s.store.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if s.git != nil {
		if err := s.git.EnsureEntryRepo(entry.ID, entryContent(entry), entry.UpdatedBy); err != nil {
			log.Printf("app: init revision history for entry %s: %v", entry.ID, err)
		}
	}
	s.indexEntry(entry)
	s.refreshCounts(ctx)
	return map[string]any{"entry": entryView(entry)}, nil
}

func (s *Service) UpdateEntry(ctx context.Context, entryID string, input EntryInput) (map[string]any, error) {
	if err := validateContentInput(input.Title, input.Status); err != nil {
		return nil, err
	}
	existing, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	entry := existing
	entry.Title = strings.TrimSpace(input.Title)
	entry.Subtitle = strings.TrimSpace(input.Subtitle)
	entry.Status = normalizeStatus(input.Status)
	entry.Doc = input.Doc
	entry.OccurredOn = strings.TrimSpace(input.OccurredOn)
	entry.UpdatedBy = s.author(input.Author)
	entry.TagFields = propagatedFields(state.snap, input.Tags)

	if err := s.store.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	s.recordRevision(entry)
	s.indexEntry(entry)
	s.refreshCounts(ctx)
	return map[string]any{"entry": entryView(entry)}, nil
}

// recordRevision commits the entry's content if it changed since the last
// revision. History is best effort: a broken repo never blocks a save.
func (s *Service) recordRevision(entry store.Entry) {
	if s.git == nil {
		return
	}
	content := entryContent(entry)
	head, _, err := s.git.HeadContent(entry.ID)
	if err != nil {
		if err := s.git.EnsureEntryRepo(entry.ID, content, entry.UpdatedBy); err != nil {
			log.Printf("app: init revision history for entry %s: %v", entry.ID, err)
		}
		return
	}
	if !gitrepo.HasChanges(head, content) {
		return
	}
	if _, err := s.git.CommitRevision(entry.ID, content, entry.UpdatedBy, "Update entry"); err != nil {
		log.Printf("app: record revision for entry %s: %v", entry.ID, err)
	}
}

func entryContent(entry store.Entry) gitrepo.Content {
	return gitrepo.Content{
		Title:      entry.Title,
		Subtitle:   entry.Subtitle,
		OccurredOn: entry.OccurredOn,
		Tags:       entry.Tags,
		Doc:        entry.Doc,
	}
}

func (s *Service) SetEntryStatus(ctx context.Context, entryID, status, author string) (map[string]any, error) {
	if !validStatus(status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}
	if err := s.store.UpdateEntryStatus(ctx, entryID, status, s.author(author)); err != nil {
		return nil, err
	}
	if entry, err := s.store.GetEntry(ctx, entryID); err == nil {
		s.indexEntry(entry)
	}
	return map[string]any{"id": entryID, "status": status}, nil
}

func (s *Service) DeleteEntry(ctx context.Context, entryID string) error {
	if err := s.store.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	if s.git != nil {
		if err := s.git.DeleteEntryRepo(entryID); err != nil {
			log.Printf("app: delete revision history for entry %s: %v", entryID, err)
		}
	}
	if s.search != nil {
		s.search.DeleteEntry(entryID)
	}
	s.refreshCounts(ctx)
	return nil
}

// BulkTagEntries adds and removes tags across many entries, recomputing the
// derived fields per entry against one snapshot. Failures are collected, not
// fatal; counts are refreshed once at the end.
func (s *Service) BulkTagEntries(ctx context.Context, input BulkTagInput) (map[string]any, error) {
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	removeSet := make(map[string]bool, len(input.Remove))
	for _, id := range input.Remove {
		removeSet[id] = true
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := make([]string, 0)

	for _, entryID := range dedupeIDs(input.IDs) {
		wg.Add(1)
		go func(entryID string) {
			defer wg.Done()
			entry, err := s.store.GetEntry(ctx, entryID)
			if err == nil {
				selected := append(withoutIDs(entry.Tags, removeSet), input.Add...)
				err = s.store.UpdateEntryTags(ctx, entryID, propagatedFields(state.snap, selected), s.author(input.Author))
				if err == nil {
					s.indexEntry(entryWithTags(entry, state.snap, selected))
				}
			}
			if err != nil {
				log.Printf("app: bulk tag entry %s: %v", entryID, err)
				mu.Lock()
				failed = append(failed, entryID)
				mu.Unlock()
			}
		}(entryID)
	}
	wg.Wait()

	s.refreshCounts(ctx)
	sort.Strings(failed)
	return map[string]any{"failed": failed, "updated": len(dedupeIDs(input.IDs)) - len(failed)}, nil
}

// BulkSetEntryStatus publishes or unpublishes many entries at once.
func (s *Service) BulkSetEntryStatus(ctx context.Context, input BulkStatusInput) (map[string]any, error) {
	if !validStatus(input.Status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := make([]string, 0)

	for _, entryID := range dedupeIDs(input.IDs) {
		wg.Add(1)
		go func(entryID string) {
			defer wg.Done()
			err := s.store.UpdateEntryStatus(ctx, entryID, input.Status, s.author(input.Author))
			if err == nil {
				if entry, getErr := s.store.GetEntry(ctx, entryID); getErr == nil {
					s.indexEntry(entry)
				}
			}
			if err != nil {
				log.Printf("app: bulk status entry %s: %v", entryID, err)
				mu.Lock()
				failed = append(failed, entryID)
				mu.Unlock()
			}
		}(entryID)
	}
	wg.Wait()

	sort.Strings(failed)
	return map[string]any{"failed": failed, "updated": len(dedupeIDs(input.IDs)) - len(failed)}, nil
}

// ---- cards ----

func (s *Service) ListCards(ctx context.Context, status, tagID string) (map[string]any, error) {
	var items []store.Card
	var err error
	if tagID != "" {
		items, err = s.store.ListCardsByTag(ctx, tagID, status)
	} else {
		items, err = s.store.ListCards(ctx, status)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"cards": cardViews(items)}, nil
}

func (s *Service) GetCard(ctx context.Context, cardID string) (map[string]any, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"card": cardView(card)}, nil
}

func (s *Service) CreateCard(ctx context.Context, input CardInput) (map[string]any, error) {
	if strings.TrimSpace(input.Kind) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind is required", nil)
	}
	if input.Status != "" && !validStatus(input.Status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	card := store.Card{
		ID:        util.NewID("card"),
		Kind:      strings.TrimSpace(input.Kind),
		Title:     strings.TrimSpace(input.Title),
		Body:      input.Body,
		Status:    normalizeStatus(input.Status),
		UpdatedBy: s.author(input.Author),
		TagFields: propagatedFields(state.snap, input.Tags),
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		return nil, fmt.Errorf("insert card: %w", err)
	}
	s.indexCard(card)
	s.refreshCounts(ctx)
	return map[string]any{"card": cardView(card)}, nil
}

func (s *Service) UpdateCard(ctx context.Context, cardID string, input CardInput) (map[string]any, error) {
	if strings.TrimSpace(input.Kind) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind is required", nil)
	}
	if input.Status != "" && !validStatus(input.Status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}
	existing, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	card := existing
	card.Kind = strings.TrimSpace(input.Kind)
	card.Title = strings.TrimSpace(input.Title)
	card.Body = input.Body
	card.Status = normalizeStatus(input.Status)
	card.UpdatedBy = s.author(input.Author)
	card.TagFields = propagatedFields(state.snap, input.Tags)

	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, fmt.Errorf("update card: %w", err)
	}
	s.indexCard(card)
	s.refreshCounts(ctx)
	return map[string]any{"card": cardView(card)}, nil
}

func (s *Service) SetCardStatus(ctx context.Context, cardID, status, author string) (map[string]any, error) {
	if !validStatus(status) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}
	if err := s.store.UpdateCardStatus(ctx, cardID, status, s.author(author)); err != nil {
		return nil, err
	}
	if card, err := s.store.GetCard(ctx, cardID); err == nil {
		s.indexCard(card)
	}
	return map[string]any{"id": cardID, "status": status}, nil
}

func (s *Service) DeleteCard(ctx context.Context, cardID string) error {
	if err := s.store.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteCard(cardID)
	}
	s.refreshCounts(ctx)
	return nil
}

// ---- albums and photos ----

func (s *Service) ListAlbums(ctx context.Context, status, tagID string) (map[string]any, error) {
	var items []store.Album
	var err error
	if tagID != "" {
		items, err = s.store.ListAlbumsByTag(ctx, tagID, status)
	} else {
		items, err = s.store.ListAlbums(ctx, status)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"albums": albumViews(items)}, nil
}

func (s *Service) GetAlbum(ctx context.Context, albumID string) (map[string]any, error) {
	album, err := s.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.ListPhotos(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"album": albumView(album), "photos": photoViews(photos)}, nil
}

func (s *Service) CreateAlbum(ctx context.Context, input AlbumInput) (map[string]any, error) {
	if err := validateContentInput(input.Title, input.Status); err != nil {
		return nil, err
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	album := store.Album{
		ID:           util.NewID("album"),
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		Status:       normalizeStatus(input.Status),
		CoverPhotoID: input.CoverPhotoID,
		UpdatedBy:    s.author(input.Author),
		TagFields:    propagatedFields(state.snap, input.Tags),
	}
	if err := s.store.InsertAlbum(ctx, album); err != nil {
		return nil, fmt.Errorf("insert album: %w", err)
	}
	s.indexAlbum(album)
	s.refreshCounts(ctx)
	return map[string]any{"album": albumView(album)}, nil
}

func (s *Service) UpdateAlbum(ctx context.Context, albumID string, input AlbumInput) (map[string]any, error) {
	if err := validateContentInput(input.Title, input.Status); err != nil {
		return nil, err
	}
	existing, err := s.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	state, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	album := existing
	album.Title = strings.TrimSpace(input.Title)
	album.Description = strings.TrimSpace(input.Description)
	album.Status = normalizeStatus(input.Status)
	album.CoverPhotoID = input.CoverPhotoID
	album.UpdatedBy = s.author(input.Author)
	album.TagFields = propagatedFields(state.snap, input.Tags)

	if err := s.store.UpdateAlbum(ctx, album); err != nil {
		return nil, fmt.Errorf("update album: %w", err)
	}
	s.indexAlbum(album)
	s.refreshCounts(ctx)
	return map[string]any{"album": albumView(album)}, nil
}

func (s *Service) DeleteAlbum(ctx context.Context, albumID string) error {
	if err := s.store.DeleteAlbum(ctx, albumID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteAlbum(albumID)
	}
	s.refreshCounts(ctx)
	return nil
}

func (s *Service) AddPhoto(ctx context.Context, albumID string, input PhotoInput) (map[string]any, error) {
	if strings.TrimSpace(input.SourceURL) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceUrl is required", nil)
	}
	if _, err := s.store.GetAlbum(ctx, albumID); err != nil {
		return nil, err
	}

	photo := store.Photo{
		ID:        util.NewID("photo"),
		AlbumID:   albumID,
		Caption:   strings.TrimSpace(input.Caption),
		SourceURL: strings.TrimSpace(input.SourceURL),
		TakenAt:   input.TakenAt,
		Width:     input.Width,
		Height:    input.Height,
		SortOrder: input.SortOrder,
	}
	if err := s.store.InsertPhoto(ctx, photo); err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}
	return map[string]any{"photo": photoView(photo)}, nil
}

func (s *Service) UpdatePhoto(ctx context.Context, photoID string, input PhotoInput) (map[string]any, error) {
	if strings.TrimSpace(input.SourceURL) == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "sourceUrl is required", nil)
	}
	photo := store.Photo{
		ID:        photoID,
		Caption:   strings.TrimSpace(input.Caption),
		SourceURL: strings.TrimSpace(input.SourceURL),
		TakenAt:   input.TakenAt,
		Width:     input.Width,
		Height:    input.Height,
		SortOrder: input.SortOrder,
	}
	if err := s.store.UpdatePhoto(ctx, photo); err != nil {
		return nil, fmt.Errorf("update photo: %w", err)
	}
	return map[string]any{"photo": photoView(photo)}, nil
}

func (s *Service) DeletePhoto(ctx context.Context, photoID string) error {
	return s.store.DeletePhoto(ctx, photoID)
}

// ---- search ----

func (s *Service) Search(ctx context.Context, text, filterType, tagID string, publicOnly bool, limit, offset int) (search.Response, error) {
	switch search.ResultType(filterType) {
	case "", search.ResultEntry, search.ResultCard, search.ResultAlbum:
	default:
		return search.Response{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be entry, card, or album", nil)
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:        text,
		FilterType:  search.ResultType(filterType),
		FilterTagID: tagID,
		PublicOnly:  publicOnly,
		Limit:       limit,
		Offset:      offset,
	}), nil
}

// ---- export and history ----

func (s *Service) ExportEntry(ctx context.Context, entryID, format, version string) (*export.Result, error) {
	var fmtParsed export.Format
	switch format {
	case "pdf", "":
		fmtParsed = export.FormatPDF
	case "docx":
		fmtParsed = export.FormatDOCX
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be pdf or docx", nil)
	}
	if version == "" {
		version = "latest"
	}
	if s.cfg.ExportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExportTimeout)
		defer cancel()
	}
	result, err := s.exporter.Export(ctx, export.Request{EntryID: entryID, Version: version, Format: fmtParsed})
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export dependencies not installed", nil)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) EntryHistory(ctx context.Context, entryID string, limit int) (map[string]any, error) {
	if _, err := s.store.GetEntry(ctx, entryID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return map[string]any{"history": []CommitView{}}, nil
	}
	history, err := s.git.History(entryID, limit)
	if err != nil {
		return nil, fmt.Errorf("entry history: %w", err)
	}
	return map[string]any{"history": commitViews(history)}, nil
}

func (s *Service) EntryRevision(ctx context.Context, entryID, hash string) (map[string]any, error) {
	if _, err := s.store.GetEntry(ctx, entryID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return nil, domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "Revision history not enabled", nil)
	}
	content, err := s.git.GetRevision(entryID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "REVISION_NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{"revision": content}, nil
}

// ---- public reading view ----

func (s *Service) PublicEntries(ctx context.Context, tagID string) (map[string]any, error) {
	return s.ListEntries(ctx, store.StatusPublished, tagID)
}

func (s *Service) PublicEntry(ctx context.Context, entryID string) (map[string]any, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != store.StatusPublished {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	return map[string]any{"entry": entryView(entry)}, nil
}

func (s *Service) PublicAlbums(ctx context.Context, tagID string) (map[string]any, error) {
	return s.ListAlbums(ctx, store.StatusPublished, tagID)
}

func (s *Service) PublicAlbum(ctx context.Context, albumID string) (map[string]any, error) {
	album, err := s.store.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if album.Status != store.StatusPublished {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
	photos, err := s.store.ListPhotos(ctx, albumID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"album": albumView(album), "photos": photoViews(photos)}, nil
}

// ---- shared helpers ----

func (s *Service) author(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.cfg.SiteAuthor
	}
	return name
}

func (s *Service) refreshCounts(ctx context.Context) {
	if err := s.store.RefreshTagCounts(ctx); err != nil {
		log.Printf("app: refresh tag counts: %v", err)
	}
}

func validateContentInput(title, status string) error {
	if strings.TrimSpace(title) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if status != "" && !validStatus(status) {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be draft or published", nil)
	}
	return nil
}

func validStatus(status string) bool {
	return status == store.StatusDraft || status == store.StatusPublished
}

func normalizeStatus(status string) string {
	if status == "" {
		return store.StatusDraft
	}
	return status
}

// exportStore adapts the service to the exporter's data interface. "latest"
// reads the stored document; a revision hash reads from the entry's history.
type exportStore struct {
	svc *Service
}

func (e *exportStore) GetEntryInfo(ctx context.Context, entryID string) (export.EntryInfo, error) {
	entry, err := e.svc.store.GetEntry(ctx, entryID)
	if err != nil {
		return export.EntryInfo{}, err
	}
	var names []string
	if state, err := e.svc.snapshot(ctx); err == nil {
		names = e.svc.tagNames(state, entry.InheritedTags)
	}
	return export.EntryInfo{
		ID:         entry.ID,
		Title:      entry.Title,
		Subtitle:   entry.Subtitle,
		Author:     e.svc.author(entry.UpdatedBy),
		OccurredOn: entry.OccurredOn,
		UpdatedAt:  entry.UpdatedAt,
		TagNames:   names,
	}, nil
}

func (e *exportStore) GetEntryContent(ctx context.Context, entryID, version string) (interface{}, error) {
	var raw json.RawMessage
	if version == "" || version == "latest" {
		entry, err := e.svc.store.GetEntry(ctx, entryID)
		if err != nil {
			return nil, err
		}
		raw = entry.Doc
	} else {
		if e.svc.git == nil {
			return nil, export.ErrContentUnavailable
		}
		content, err := e.svc.git.GetRevision(entryID, version)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", export.ErrContentUnavailable, err)
		}
		raw = content.Doc
	}
	if len(raw) == 0 {
		return nil, export.ErrContentUnavailable
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, export.ErrContentUnavailable
	}
	return doc, nil
}
