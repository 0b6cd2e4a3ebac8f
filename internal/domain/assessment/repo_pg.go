package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/outcomes/internal/platform/db"
)

// ErrResponseNotFound is returned when no stored response has the requested id.
var ErrResponseNotFound = errors.New("response not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Response Repository ===========

type responseRepoPG struct{ pool *pgxpool.Pool }

func NewResponseRepoPG(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepoPG{pool: pool}
}

func (r *responseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const responseCols = `id, instrument_id, subject_id, answers, total_score, severity_label,
	interpretation, warning, completed_at`

func (r *responseRepoPG) scanResponse(row pgx.Row) (*Response, error) {
	var (
		resp    Response
		answers []byte
	)
	err := row.Scan(&resp.ID, &resp.InstrumentID, &resp.SubjectID, &answers, &resp.TotalScore,
		&resp.SeverityLabel, &resp.Interpretation, &resp.Warning, &resp.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &resp.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of response %s: %w", resp.ID, err)
	}
	return &resp, nil
}

func (r *responseRepoPG) Create(ctx context.Context, resp *Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	answers, err := json.Marshal(resp.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO assessment_response (id, instrument_id, subject_id, answers, total_score,
			severity_label, interpretation, warning, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		resp.ID, resp.InstrumentID, resp.SubjectID, answers, resp.TotalScore,
		resp.SeverityLabel, resp.Interpretation, resp.Warning, resp.CompletedAt)
	return err
}

func (r *responseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Response, error) {
	resp, err := r.scanResponse(r.conn(ctx).QueryRow(ctx, `SELECT `+responseCols+` FROM assessment_response WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	return resp, err
}

func (r *responseRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID, instrumentID string, limit, offset int) ([]*Response, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM assessment_response
		WHERE subject_id = $1 AND ($2 = '' OR instrument_id = $2)`,
		subjectID, instrumentID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+responseCols+` FROM assessment_response
		WHERE subject_id = $1 AND ($2 = '' OR instrument_id = $2)
		ORDER BY completed_at DESC LIMIT $3 OFFSET $4`,
		subjectID, instrumentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		resp, err := r.scanResponse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, resp)
	}
	return items, total, rows.Err()
}

func (r *responseRepoPG) ListSince(ctx context.Context, subjectID uuid.UUID, since time.Time) ([]*Response, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+responseCols+` FROM assessment_response
		WHERE subject_id = $1 AND completed_at > $2
		ORDER BY completed_at`,
		subjectID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		resp, err := r.scanResponse(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, resp)
	}
	return items, rows.Err()
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *assignmentRepoPG) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]*Assignment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT subject_id, instrument_id, assigned_by, assigned_at
		FROM instrument_assignment WHERE subject_id = $1 ORDER BY assigned_at, instrument_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.SubjectID, &a.InstrumentID, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}

func (r *assignmentRepoPG) Replace(ctx context.Context, subjectID uuid.UUID, assignments []*Assignment) error {
	if db.TxFromContext(ctx) == nil {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)
		if err := r.Replace(db.ContextWithTx(ctx, tx), subjectID, assignments); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM instrument_assignment WHERE subject_id = $1`, subjectID); err != nil {
		return err
	}
	for _, a := range assignments {
		if _, err := q.Exec(ctx, `
			INSERT INTO instrument_assignment (subject_id, instrument_id, assigned_by, assigned_at)
			VALUES ($1,$2,$3,$4)`,
			subjectID, a.InstrumentID, a.AssignedBy, a.AssignedAt); err != nil {
			return err
		}
	}
	return nil
}
