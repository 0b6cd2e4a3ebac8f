package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrInvalidInput marks a request the service rejects before touching storage.
var ErrInvalidInput = errors.New("invalid input")

// Recorder receives scoring outcomes for metrics. It may be nil.
type Recorder interface {
	ObserveScore(instrumentID, severity string, warned bool)
	ObserveRejected(instrumentID, reason string)
}

type Service struct {
	catalog     *Catalog
	responses   ResponseRepository
	assignments AssignmentRepository
	logger      zerolog.Logger
	recorder    Recorder
	now         func() time.Time
}

func NewService(catalog *Catalog, responses ResponseRepository, assignments AssignmentRepository, logger zerolog.Logger) *Service {
	return &Service{
		catalog:     catalog,
		responses:   responses,
		assignments: assignments,
		logger:      logger.With().Str("component", "assessment").Logger(),
		now:         time.Now,
	}
}

// SetRecorder attaches an optional metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetClock replaces the time source used to stamp responses.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Catalog returns the catalog the service scores against.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// -- Instruments --

func (s *Service) GetInstrument(id string) (*Instrument, error) {
	return s.catalog.Get(id)
}

// ListInstruments applies the assignment gate for the caller. subjectID may
// be uuid.Nil for clinicians browsing the catalog.
func (s *Service) ListInstruments(ctx context.Context, roles []string, subjectID uuid.UUID) ([]InstrumentSummary, error) {
	role := RoleFor(roles)
	if role == RoleClinician || subjectID == uuid.Nil {
		return s.catalog.ListVisible(role, nil), nil
	}
	ids, err := s.assignedIDs(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return s.catalog.ListVisible(role, ids), nil
}

// -- Scoring --

// Score evaluates answers without storing anything.
func (s *Service) Score(instrumentID string, answers map[string]int) (ScoreResult, error) {
	res, err := s.catalog.Evaluate(instrumentID, answers)
	if err != nil {
		s.observeRejected(instrumentID, err)
		return res, err
	}
	s.observeScore(instrumentID, res)
	return res, nil
}

// SubmitResponse scores the answers and stores them as a new response.
func (s *Service) SubmitResponse(ctx context.Context, subjectID uuid.UUID, instrumentID string, answers map[string]int) (*Response, error) {
	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject_id is required", ErrInvalidInput)
	}
	res, err := s.Score(instrumentID, answers)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]int, len(answers))
	for k, v := range answers {
		stored[k] = v
	}
	r := &Response{
		ID:             uuid.New(),
		InstrumentID:   instrumentID,
		SubjectID:      subjectID,
		Answers:        stored,
		TotalScore:     res.TotalScore,
		SeverityLabel:  res.SeverityLabel,
		Interpretation: res.Interpretation,
		Warning:        res.Warning,
		CompletedAt:    s.now().UTC(),
	}
	if err := s.responses.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("store response: %w", err)
	}
	s.logger.Info().
		Str("response_id", r.ID.String()).
		Str("instrument_id", instrumentID).
		Int("total_score", r.TotalScore).
		Str("severity", r.SeverityLabel).
		Msg("response recorded")
	return r, nil
}

func (s *Service) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	return s.responses.GetByID(ctx, id)
}

func (s *Service) ListResponses(ctx context.Context, subjectID uuid.UUID, instrumentID string, limit, offset int) ([]*Response, int, error) {
	if instrumentID != "" && !s.catalog.Has(instrumentID) {
		return nil, 0, fmt.Errorf("%w: %s", ErrInstrumentNotFound, instrumentID)
	}
	return s.responses.ListBySubject(ctx, subjectID, instrumentID, limit, offset)
}

// -- Assignments --

func (s *Service) GetAssignments(ctx context.Context, subjectID uuid.UUID) ([]*Assignment, error) {
	return s.assignments.ListBySubject(ctx, subjectID)
}

// SetAssignments replaces the subject's assignment set. Only clinicians may
// call it; an empty set restores the unrestricted catalog.
func (s *Service) SetAssignments(ctx context.Context, roles []string, actor string, subjectID uuid.UUID, instrumentIDs []string) ([]*Assignment, error) {
	if !CanManageAssignments(RoleFor(roles)) {
		return nil, ErrForbidden
	}
	if subjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject_id is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	seen := make(map[string]bool, len(instrumentIDs))
	out := make([]*Assignment, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		if !s.catalog.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, &Assignment{SubjectID: subjectID, InstrumentID: id, AssignedBy: actor, AssignedAt: now})
	}
	if err := s.assignments.Replace(ctx, subjectID, out); err != nil {
		return nil, fmt.Errorf("store assignments: %w", err)
	}
	s.logger.Info().
		Str("subject_id", subjectID.String()).
		Str("assigned_by", actor).
		Strs("instrument_ids", instrumentIDs).
		Msg("assignments replaced")
	return out, nil
}

func (s *Service) assignedIDs(ctx context.Context, subjectID uuid.UUID) ([]string, error) {
	items, err := s.assignments.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, a := range items {
		ids = append(ids, a.InstrumentID)
	}
	return ids, nil
}

func (s *Service) observeScore(instrumentID string, res ScoreResult) {
	if res.Warning != "" {
		s.logger.Warn().
			Str("instrument_id", instrumentID).
			Int("total_score", res.TotalScore).
			Str("warning", res.Warning).
			Msg("total outside all severity ranges, labeled with first range")
	}
	if s.recorder != nil {
		s.recorder.ObserveScore(instrumentID, res.SeverityLabel, res.Warning != "")
	}
}

func (s *Service) observeRejected(instrumentID string, err error) {
	if s.recorder == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, ErrIncompleteResponse):
		reason = "incomplete"
	case errors.Is(err, ErrInvalidAnswerValue):
		reason = "invalid_value"
	case errors.Is(err, ErrInstrumentNotFound):
		reason = "unknown_instrument"
	}
	s.recorder.ObserveRejected(instrumentID, reason)
}
