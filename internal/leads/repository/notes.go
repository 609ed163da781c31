package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Note types recorded against a lead. System notes carry a nil author.
const (
	NoteTypeGeneral      = "general"
	NoteTypeStatusChange = "status_change"
	NoteTypeAssignment   = "assignment"
	NoteTypeFollowUp     = "follow_up"
	NoteTypeSystem       = "system"
)

type LeadNote struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	AuthorID  *uuid.UUID
	Type      string
	Body      string
	CreatedAt time.Time
}

type CreateLeadNoteParams struct {
	LeadID   uuid.UUID
	AuthorID *uuid.UUID
	Type     string
	Body     string
}

func (r *Repository) CreateNote(ctx context.Context, params CreateLeadNoteParams) (LeadNote, error) {
	var note LeadNote
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_notes (lead_id, author_id, type, body)
		VALUES ($1, $2, $3, $4)
		RETURNING id, lead_id, author_id, type, body, created_at
	`, params.LeadID, params.AuthorID, params.Type, params.Body).Scan(
		&note.ID, &note.LeadID, &note.AuthorID, &note.Type, &note.Body, &note.CreatedAt,
	)
	return note, err
}

func (r *Repository) ListNotes(ctx context.Context, leadID uuid.UUID) ([]LeadNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, author_id, type, body, created_at
		FROM lead_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]LeadNote, 0)
	for rows.Next() {
		var note LeadNote
		if err := rows.Scan(&note.ID, &note.LeadID, &note.AuthorID, &note.Type, &note.Body, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
