package trends

import (
	"github.com/ehr/outcomes/internal/domain/assessment"
)

// SamplesFromResponses turns assessment totals into samples of the metrics
// their instruments feed. Responses for instruments that feed no metric are
// skipped.
func SamplesFromResponses(reg *Registry, responses []*assessment.Response) []MetricSample {
	out := make([]MetricSample, 0, len(responses))
	for _, r := range responses {
		def, ok := reg.ForInstrument(r.InstrumentID)
		if !ok {
			continue
		}
		out = append(out, MetricSample{
			ID:         r.ID,
			SubjectID:  r.SubjectID,
			MetricName: def.Name,
			Value:      float64(r.TotalScore),
			RecordedAt: r.CompletedAt,
		})
	}
	return out
}

// GroupByMetric buckets samples by metric name.
func GroupByMetric(samples []MetricSample) map[string][]MetricSample {
	out := make(map[string][]MetricSample)
	for _, s := range samples {
		out[s.MetricName] = append(out[s.MetricName], s)
	}
	return out
}
