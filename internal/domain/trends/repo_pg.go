package trends

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/outcomes/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type sampleRepoPG struct{ pool *pgxpool.Pool }

func NewSampleRepoPG(pool *pgxpool.Pool) SampleRepository {
	return &sampleRepoPG{pool: pool}
}

func (r *sampleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *sampleRepoPG) Create(ctx context.Context, s *MetricSample) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO metric_sample (id, subject_id, metric_name, value, recorded_at)
		VALUES ($1,$2,$3,$4,$5)`,
		s.ID, s.SubjectID, s.MetricName, s.Value, s.RecordedAt)
	return err
}

func (r *sampleRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID, metric string, since time.Time) ([]*MetricSample, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, subject_id, metric_name, value, recorded_at FROM metric_sample
		WHERE subject_id = $1 AND ($2 = '' OR metric_name = $2) AND recorded_at > $3
		ORDER BY recorded_at`,
		subjectID, metric, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MetricSample
	for rows.Next() {
		var s MetricSample
		if err := rows.Scan(&s.ID, &s.SubjectID, &s.MetricName, &s.Value, &s.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}
