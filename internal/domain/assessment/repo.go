package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResponseRepository is append-only: responses are created and read, never updated.
type ResponseRepository interface {
	Create(ctx context.Context, r *Response) error
	GetByID(ctx context.Context, id uuid.UUID) (*Response, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID, instrumentID string, limit, offset int) ([]*Response, int, error)
	// ListSince returns the subject's responses completed after since, oldest first.
	ListSince(ctx context.Context, subjectID uuid.UUID, since time.Time) ([]*Response, error)
}

type AssignmentRepository interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*Assignment, error)
	// Replace swaps the subject's whole assignment set.
	Replace(ctx context.Context, subjectID uuid.UUID, assignments []*Assignment) error
}
