package trends

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidSample = errors.New("invalid metric sample")

// Recorder receives analysis outcomes for metrics.
type Recorder interface {
	ObserveAnalysis(d time.Duration)
	ObserveInsight(rule, category string)
}

type Service struct {
	registry      *Registry
	samples       SampleRepository
	responses     ResponseHistory
	defaultWindow int
	logger        zerolog.Logger
	recorder      Recorder
	now           func() time.Time
}

// NewService builds the trend service. defaultWindow is used when a caller
// does not ask for a window length.
func NewService(registry *Registry, samples SampleRepository, responses ResponseHistory, defaultWindow int, logger zerolog.Logger) *Service {
	if defaultWindow <= 0 {
		defaultWindow = 30
	}
	return &Service{
		registry:      registry,
		samples:       samples,
		responses:     responses,
		defaultWindow: defaultWindow,
		logger:        logger.With().Str("component", "trends").Logger(),
		now:           time.Now,
	}
}

func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Registry() *Registry {
	return s.registry
}

// -- Samples --

// RecordSample stores one observation of a registered metric. A zero
// RecordedAt is stamped with the current time.
func (s *Service) RecordSample(ctx context.Context, sample *MetricSample) error {
	if sample.SubjectID == uuid.Nil {
		return fmt.Errorf("%w: subject_id is required", ErrInvalidSample)
	}
	if !s.registry.Has(sample.MetricName) {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, sample.MetricName)
	}
	if math.IsNaN(sample.Value) || math.IsInf(sample.Value, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrInvalidSample)
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = s.now()
	}
	sample.RecordedAt = sample.RecordedAt.UTC()
	if sample.ID == uuid.Nil {
		sample.ID = uuid.New()
	}
	if err := s.samples.Create(ctx, sample); err != nil {
		return fmt.Errorf("store sample: %w", err)
	}
	return nil
}

func (s *Service) ListSamples(ctx context.Context, subjectID uuid.UUID, metric string, since time.Time) ([]*MetricSample, error) {
	if metric != "" && !s.registry.Has(metric) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	return s.samples.ListBySubject(ctx, subjectID, metric, since)
}

// -- Analysis --

// Analyze runs the analyzer over caller-supplied samples of a registered metric.
func (s *Service) Analyze(metric string, samples []MetricSample, windowDays int, now time.Time) (TrendResult, error) {
	def, err := s.registry.Get(metric)
	if err != nil {
		return TrendResult{}, err
	}
	return AnalyzeMetric(def, samples, s.window(windowDays), s.asOf(now)), nil
}

// Insights evaluates the rule set and records which rules fired.
func (s *Service) Insights(trends map[string]TrendResult) []Insight {
	insights := GenerateInsights(trends)
	if s.recorder != nil {
		for _, in := range insights {
			s.recorder.ObserveInsight(in.Rule, string(in.Category))
		}
	}
	return insights
}

// AnalyzeSubject loads the subject's samples and assessment totals for the
// two windows ending at asOf, analyzes every registered metric that has data
// and derives insights from the result.
func (s *Service) AnalyzeSubject(ctx context.Context, subjectID uuid.UUID, windowDays int, asOf time.Time) (*Analysis, error) {
	start := time.Now()
	windowDays = s.window(windowDays)
	asOf = s.asOf(asOf)
	since := asOf.Add(-2 * time.Duration(windowDays) * day)

	stored, err := s.samples.ListBySubject(ctx, subjectID, "", since)
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	responses, err := s.responses.ListSince(ctx, subjectID, since)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}

	all := SamplesFromResponses(s.registry, responses)
	for _, smp := range stored {
		all = append(all, *smp)
	}
	byMetric := GroupByMetric(all)

	trends := make(map[string]TrendResult)
	for _, def := range s.registry.List() {
		tr := AnalyzeMetric(def, byMetric[def.Name], windowDays, asOf)
		if tr.HasData() {
			trends[def.Name] = tr
		}
	}

	a := &Analysis{
		SubjectID:   subjectID,
		WindowDays:  windowDays,
		AsOf:        asOf,
		Trends:      trends,
		Insights:    s.Insights(trends),
		GeneratedAt: s.now().UTC(),
	}
	if s.recorder != nil {
		s.recorder.ObserveAnalysis(time.Since(start))
	}
	s.logger.Debug().
		Str("subject_id", subjectID.String()).
		Int("window_days", windowDays).
		Int("metrics", len(trends)).
		Int("insights", len(a.Insights)).
		Msg("trend analysis complete")
	return a, nil
}

func (s *Service) window(days int) int {
	if days <= 0 {
		return s.defaultWindow
	}
	return days
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t.UTC()
}
