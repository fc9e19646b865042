package app

import (
	"encoding/json"
	"time"

	"keepsake/api/internal/store"
)

// View structs fix the JSON shape of API responses independently of the
// storage models.

type EntryView struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Subtitle      string          `json:"subtitle"`
	Status        string          `json:"status"`
	Doc           json.RawMessage `json:"doc"`
	Tags          []string        `json:"tags"`
	InheritedTags []string        `json:"inheritedTags"`
	OccurredOn    string          `json:"occurredOn"`
	UpdatedBy     string          `json:"updatedBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type CardView struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Title         string          `json:"title"`
	Body          json.RawMessage `json:"body"`
	Status        string          `json:"status"`
	Tags          []string        `json:"tags"`
	InheritedTags []string        `json:"inheritedTags"`
	UpdatedBy     string          `json:"updatedBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type AlbumView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CoverPhotoID  *string   `json:"coverPhotoId"`
	Tags          []string  `json:"tags"`
	InheritedTags []string  `json:"inheritedTags"`
	PhotoCount    int       `json:"photoCount"`
	UpdatedBy     string    `json:"updatedBy"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type PhotoView struct {
	ID        string     `json:"id"`
	AlbumID   string     `json:"albumId"`
	Caption   string     `json:"caption"`
	SourceURL string     `json:"sourceUrl"`
	TakenAt   *time.Time `json:"takenAt"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	SortOrder float64    `json:"sortOrder"`
	CreatedAt time.Time  `json:"createdAt"`
}

type CommitView struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Added     int       `json:"added"`
	Removed   int       `json:"removed"`
}

func entryView(entry store.Entry) EntryView {
	return EntryView{
		ID:            entry.ID,
		Title:         entry.Title,
		Subtitle:      entry.Subtitle,
		Status:        entry.Status,
		Doc:           entry.Doc,
		Tags:          nonNilIDs(entry.Tags),
		InheritedTags: nonNilIDs(entry.InheritedTags),
		OccurredOn:    entry.OccurredOn,
		UpdatedBy:     entry.UpdatedBy,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}

func entryViews(entries []store.Entry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entryView(entry))
	}
	return out
}

func cardView(card store.Card) CardView {
	return CardView{
		ID:            card.ID,
		Kind:          card.Kind,
		Title:         card.Title,
		Body:          card.Body,
		Status:        card.Status,
		Tags:          nonNilIDs(card.Tags),
		InheritedTags: nonNilIDs(card.InheritedTags),
		UpdatedBy:     card.UpdatedBy,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}
}

func cardViews(cards []store.Card) []CardView {
	out := make([]CardView, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardView(card))
	}
	return out
}

func albumView(album store.Album) AlbumView {
	return AlbumView{
		ID:            album.ID,
		Title:         album.Title,
		Description:   album.Description,
		Status:        album.Status,
		CoverPhotoID:  album.CoverPhotoID,
		Tags:          nonNilIDs(album.Tags),
		InheritedTags: nonNilIDs(album.InheritedTags),
		PhotoCount:    album.PhotoCount,
		UpdatedBy:     album.UpdatedBy,
		CreatedAt:     album.CreatedAt,
		UpdatedAt:     album.UpdatedAt,
	}
}

func albumViews(albums []store.Album) []AlbumView {
	out := make([]AlbumView, 0, len(albums))
	for _, album := range albums {
		out = append(out, albumView(album))
	}
	return out
}

func photoView(photo store.Photo) PhotoView {
	return PhotoView{
		ID:        photo.ID,
		AlbumID:   photo.AlbumID,
		Caption:   photo.Caption,
		SourceURL: photo.SourceURL,
		TakenAt:   photo.TakenAt,
		Width:     photo.Width,
		Height:    photo.Height,
		SortOrder: photo.SortOrder,
		CreatedAt: photo.CreatedAt,
	}
}

func photoViews(photos []store.Photo) []PhotoView {
	out := make([]PhotoView, 0, len(photos))
	for _, photo := range photos {
		out = append(out, photoView(photo))
	}
	return out
}

func commitView(commit store.CommitInfo) CommitView {
	return CommitView{
		Hash:      commit.Hash,
		Message:   commit.Message,
		Author:    commit.Author,
		CreatedAt: commit.CreatedAt,
		Added:     commit.Added,
		Removed:   commit.Removed,
	}
}

func commitViews(commits []store.CommitInfo) []CommitView {
	out := make([]CommitView, 0, len(commits))
	for _, commit := range commits {
		out = append(out, commitView(commit))
	}
	return out
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
