package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres prefix matcher.
type Service struct {
	meili    *Meili
	pgprefix *PgPrefix
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgprefix *PgPrefix) *Service {
	return &Service{meili: meili, pgprefix: pgprefix}
}

// Search tries Meilisearch if healthy, otherwise falls back to the prefix matcher.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to prefix match: %v", err)
	}

	results, total, err := s.pgprefix.Search(q)
	if err != nil {
		log.Printf("search: prefix match error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexEntry indexes an entry (fire-and-forget to Meilisearch).
func (s *Service) IndexEntry(e EntryRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexEntry(e); err != nil {
			log.Printf("search: index entry %s: %v", e.ID, err)
		}
	}()
}

// IndexCard indexes a card (fire-and-forget to Meilisearch).
func (s *Service) IndexCard(c CardRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexCard(c); err != nil {
			log.Printf("search: index card %s: %v", c.ID, err)
		}
	}()
}

// IndexAlbum indexes an album (fire-and-forget to Meilisearch).
func (s *Service) IndexAlbum(a AlbumRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAlbum(a); err != nil {
			log.Printf("search: index album %s: %v", a.ID, err)
		}
	}()
}

// DeleteEntry removes an entry from the search index (fire-and-forget).
func (s *Service) DeleteEntry(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteEntry(id); err != nil {
			log.Printf("search: delete entry %s: %v", id, err)
		}
	}()
}

// DeleteCard removes a card from the search index (fire-and-forget).
func (s *Service) DeleteCard(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteCard(id); err != nil {
			log.Printf("search: delete card %s: %v", id, err)
		}
	}()
}

// DeleteAlbum removes an album from the search index (fire-and-forget).
func (s *Service) DeleteAlbum(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAlbum(id); err != nil {
			log.Printf("search: delete album %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(entries []EntryRecord, cards []CardRecord, albums []AlbumRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(entries) > 0 {
		if err := s.meili.IndexEntries(entries); err != nil {
			log.Printf("search: reindex entries: %v", err)
		}
	}
	if len(cards) > 0 {
		if err := s.meili.IndexCards(cards); err != nil {
			log.Printf("search: reindex cards: %v", err)
		}
	}
	if len(albums) > 0 {
		if err := s.meili.IndexAlbums(albums); err != nil {
			log.Printf("search: reindex albums: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgprefix == nil {
		return
	}
	entries, cards, albums, err := s.pgprefix.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(entries, cards, albums)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
