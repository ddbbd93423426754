// Package tag manages named labels on quotes and orders. Assignments are
// set-synchronized: the stored set is diffed against the requested one.
package tag

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrResourceNotFound is returned when the referenced document is missing.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrInvalidResource is returned for an unknown resource type.
	ErrInvalidResource = errors.New("resource type must be quote or order")
	// ErrEmptyName is returned for a blank tag name.
	ErrEmptyName = errors.New("tag name must not be empty")
)

type tagStore interface {
	Upsert(ctx context.Context, name string) (store.TagRow, error)
	List(ctx context.Context) ([]store.TagRow, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]store.TagRow, error)
	SyncDocument(ctx context.Context, documentID uuid.UUID, names []string) ([]store.TagRow, error)
}

type documentStore interface {
	Get(ctx context.Context, id uuid.UUID, kind string) (store.DocumentRow, error)
}

// Service manages tags and their document assignments.
type Service struct {
	Tags      tagStore
	Documents documentStore
}

// Tag is the API-facing view of a tag.
type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Upsert creates a tag or returns the existing one.
func (s *Service) Upsert(ctx context.Context, name string) (Tag, error) {
	name, ok := normalizeName(name)
	if !ok {
		return Tag{}, ErrEmptyName
	}
	row, err := s.Tags.Upsert(ctx, name)
	if err != nil {
		return Tag{}, err
	}
	return toTag(row), nil
}

// List returns the tenant's tags.
func (s *Service) List(ctx context.Context) ([]Tag, error) {
	rows, err := s.Tags.List(ctx)
	if err != nil {
		return nil, err
	}
	return toTags(rows), nil
}

// ListByDocument returns the tags assigned to a quote or order.
func (s *Service) ListByDocument(ctx context.Context, resourceType string, documentID uuid.UUID) ([]Tag, error) {
	if err := s.checkResource(ctx, resourceType, documentID); err != nil {
		return nil, err
	}
	rows, err := s.Tags.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return toTags(rows), nil
}

// Sync makes the document's tag set match names exactly, attaching missing
// tags and detaching removed ones. Unknown names are created on the fly.
func (s *Service) Sync(ctx context.Context, resourceType string, documentID uuid.UUID, names []string) ([]Tag, error) {
	if err := s.checkResource(ctx, resourceType, documentID); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(names))
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		name, ok := normalizeName(name)
		if !ok {
			return nil, ErrEmptyName
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		cleaned = append(cleaned, name)
	}
	sort.Strings(cleaned)

	rows, err := s.Tags.SyncDocument(ctx, documentID, cleaned)
	if err != nil {
		return nil, err
	}
	return toTags(rows), nil
}

func (s *Service) checkResource(ctx context.Context, resourceType string, documentID uuid.UUID) error {
	if resourceType != document.KindQuote && resourceType != document.KindOrder {
		return ErrInvalidResource
	}
	if _, err := s.Documents.Get(ctx, documentID, resourceType); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResourceNotFound
		}
		return err
	}
	return nil
}

func normalizeName(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	return name, name != ""
}

func toTag(row store.TagRow) Tag {
	return Tag{ID: row.ID, Name: row.Name}
}

func toTags(rows []store.TagRow) []Tag {
	tags := make([]Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, toTag(row))
	}
	return tags
}
