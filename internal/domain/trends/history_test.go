package trends

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/outcomes/internal/domain/assessment"
)

func TestSamplesFromResponses(t *testing.T) {
	reg := mustRegistry(t)
	subject := uuid.New()
	completed := time.Date(2024, 6, 20, 8, 0, 0, 0, time.UTC)
	responses := []*assessment.Response{
		{ID: uuid.New(), InstrumentID: "phq9", SubjectID: subject, TotalScore: 14, CompletedAt: completed},
		{ID: uuid.New(), InstrumentID: "cesd", SubjectID: subject, TotalScore: 30, CompletedAt: completed},
		{ID: uuid.New(), InstrumentID: "gad7", SubjectID: subject, TotalScore: 6, CompletedAt: completed.Add(time.Hour)},
	}

	got := SamplesFromResponses(reg, responses)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, cesd feeds no metric; got %d", len(got))
	}
	if got[0].MetricName != MetricDepression || got[0].Value != 14 || got[0].ID != responses[0].ID {
		t.Errorf("unexpected first sample %+v", got[0])
	}
	if got[1].MetricName != MetricAnxiety || got[1].Value != 6 || !got[1].RecordedAt.Equal(completed.Add(time.Hour)) {
		t.Errorf("unexpected second sample %+v", got[1])
	}
	if got[1].SubjectID != subject {
		t.Errorf("expected subject %s, got %s", subject, got[1].SubjectID)
	}
}

func TestSamplesFromResponses_Empty(t *testing.T) {
	if got := SamplesFromResponses(mustRegistry(t), nil); len(got) != 0 {
		t.Errorf("expected no samples, got %v", got)
	}
}

func TestGroupByMetric(t *testing.T) {
	samples := []MetricSample{
		{MetricName: MetricPain, Value: 3},
		{MetricName: MetricSleep, Value: 7},
		{MetricName: MetricPain, Value: 5},
	}
	groups := GroupByMetric(samples)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	pain := groups[MetricPain]
	if len(pain) != 2 || pain[0].Value != 3 || pain[1].Value != 5 {
		t.Errorf("expected pain samples in input order, got %v", pain)
	}
}
