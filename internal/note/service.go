// Package note manages free-form notes attached to quotes and orders.
package note

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice/internal/document"
	"github.com/noah-isme/backoffice/internal/store"
)

var (
	// ErrNotFound is returned when the note does not exist for the tenant.
	ErrNotFound = errors.New("note not found")
	// ErrResourceNotFound is returned when the referenced document is missing.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrInvalidResource is returned for an unknown resource type.
	ErrInvalidResource = errors.New("resource type must be quote or order")
	// ErrEmptyBody is returned for a blank note body.
	ErrEmptyBody = errors.New("note body must not be empty")
)

type noteStore interface {
	Insert(ctx context.Context, row store.NoteRow) (store.NoteRow, error)
	Get(ctx context.Context, id uuid.UUID) (store.NoteRow, error)
	ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int32) ([]store.NoteRow, error)
	UpdateBody(ctx context.Context, id uuid.UUID, body string) (store.NoteRow, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentStore interface {
	Get(ctx context.Context, id uuid.UUID, kind string) (store.DocumentRow, error)
}

// Service manages notes.
type Service struct {
	Notes     noteStore
	Documents documentStore
}

// Note is the API-facing view of one note.
type Note struct {
	ID           uuid.UUID `json:"id"`
	ResourceType string    `json:"resourceType"`
	ResourceID   uuid.UUID `json:"resourceId"`
	Author       string    `json:"author,omitempty"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Create attaches a note to a quote or order.
func (s *Service) Create(ctx context.Context, resourceType string, resourceID uuid.UUID, author, body string) (Note, error) {
	if resourceType != document.KindQuote && resourceType != document.KindOrder {
		return Note{}, ErrInvalidResource
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, ErrEmptyBody
	}
	if _, err := s.Documents.Get(ctx, resourceID, resourceType); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Note{}, ErrResourceNotFound
		}
		return Note{}, err
	}
	row, err := s.Notes.Insert(ctx, store.NoteRow{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Author:       author,
		Body:         body,
	})
	if err != nil {
		return Note{}, err
	}
	return toNote(row), nil
}

// ListByResource returns the document's notes.
func (s *Service) ListByResource(ctx context.Context, resourceType string, resourceID uuid.UUID, limit, offset int32) ([]Note, error) {
	if resourceType != document.KindQuote && resourceType != document.KindOrder {
		return nil, ErrInvalidResource
	}
	rows, err := s.Notes.ListByResource(ctx, resourceType, resourceID, limit, offset)
	if err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, toNote(row))
	}
	return notes, nil
}

// UpdateBody rewrites the note text.
func (s *Service) UpdateBody(ctx context.Context, id uuid.UUID, body string) (Note, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Note{}, ErrEmptyBody
	}
	row, err := s.Notes.UpdateBody(ctx, id, body)
	if err != nil {
		return Note{}, mapStoreErr(err)
	}
	return toNote(row), nil
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return mapStoreErr(s.Notes.Delete(ctx, id))
}

func toNote(row store.NoteRow) Note {
	return Note{
		ID:           row.ID,
		ResourceType: row.ResourceType,
		ResourceID:   row.ResourceID,
		Author:       row.Author,
		Body:         row.Body,
		CreatedAt:    row.CreatedAt,
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
