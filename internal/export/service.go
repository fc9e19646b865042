package export

import (
	"context"
	"fmt"
	"html/template"
	"time"
)

// DataStore defines the data access the exporter needs. Content for a named
// revision may come from a different backend than the latest draft, so the
// two lookups are separate.
type DataStore interface {
	GetEntryInfo(ctx context.Context, entryID string) (EntryInfo, error)
	GetEntryContent(ctx context.Context, entryID, version string) (interface{}, error)
}

// EntryInfo holds entry metadata plus the resolved display names of its tags.
type EntryInfo struct {
	ID         string
	Title      string
	Subtitle   string
	Author     string
	OccurredOn string
	UpdatedAt  time.Time
	TagNames   []string
}

// Service provides entry export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetEntryInfo(ctx, req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}

	content, err := s.store.GetEntryContent(ctx, req.EntryID, req.Version)
	if err != nil {
		return nil, fmt.Errorf("get entry content: %w", err)
	}

	contentHTML := ProseMirrorToHTML(content)

	data := TemplateData{
		Title:       info.Title,
		Subtitle:    info.Subtitle,
		ContentHTML: template.HTML(contentHTML),
		Author:      info.Author,
		OccurredOn:  info.OccurredOn,
		UpdatedAt:   info.UpdatedAt,
		TagNames:    info.TagNames,
	}

	html, err := RenderEntryHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(ctx, html, info.Title)
	case FormatDOCX:
		return exportDOCX(ctx, html, info.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
