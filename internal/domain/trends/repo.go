package trends

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/outcomes/internal/domain/assessment"
)

// SampleRepository is append-only.
type SampleRepository interface {
	Create(ctx context.Context, s *MetricSample) error
	// ListBySubject returns samples recorded after since, oldest first. An
	// empty metric returns every metric.
	ListBySubject(ctx context.Context, subjectID uuid.UUID, metric string, since time.Time) ([]*MetricSample, error)
}

// ResponseHistory is the slice of the assessment store trend analysis reads.
type ResponseHistory interface {
	ListSince(ctx context.Context, subjectID uuid.UUID, since time.Time) ([]*assessment.Response, error)
}
