package trends

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the raw movement of a metric between two windows. It says
// nothing about whether the movement is good.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Polarity states whether rising values of a metric are an improvement.
type Polarity string

const (
	HigherIsBetter Polarity = "higher-is-better"
	LowerIsBetter  Polarity = "lower-is-better"
)

func (p Polarity) Valid() bool {
	return p == HigherIsBetter || p == LowerIsBetter
}

// Outcome is a direction read through a polarity.
type Outcome string

const (
	OutcomeImproving Outcome = "improving"
	OutcomeWorsening Outcome = "worsening"
	OutcomeUnchanged Outcome = "unchanged"
)

// MetricSample maps to the metric_sample table. Samples are append-only.
type MetricSample struct {
	ID         uuid.UUID `db:"id" json:"id"`
	SubjectID  uuid.UUID `db:"subject_id" json:"subject_id"`
	MetricName string    `db:"metric_name" json:"metric_name"`
	Value      float64   `db:"value" json:"value"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// TrendResult compares the current window of a metric with the one before it.
// Averages and percentages are kept at full precision.
type TrendResult struct {
	MetricName            string    `json:"metric_name"`
	CurrentWindowAverage  float64   `json:"current_window_average"`
	PreviousWindowAverage float64   `json:"previous_window_average"`
	AbsoluteChange        float64   `json:"absolute_change"`
	PercentChange         float64   `json:"percent_change"`
	Direction             Direction `json:"direction"`
	Polarity              Polarity  `json:"polarity,omitempty"`
	CurrentCount          int       `json:"current_count"`
	PreviousCount         int       `json:"previous_count"`
}

// Outcome combines the direction with the trend's polarity. A trend without
// a polarity is never labeled improving or worsening.
func (t TrendResult) Outcome() Outcome {
	if t.Direction == DirectionStable || !t.Polarity.Valid() {
		return OutcomeUnchanged
	}
	rising := t.Direction == DirectionUp
	if rising == (t.Polarity == HigherIsBetter) {
		return OutcomeImproving
	}
	return OutcomeWorsening
}

// HasData reports whether either window contained samples.
func (t TrendResult) HasData() bool {
	return t.CurrentCount > 0 || t.PreviousCount > 0
}

type Category string

const (
	CategoryPositive Category = "positive"
	CategoryWarning  Category = "warning"
	CategoryInfo     Category = "info"
)

// Insight is a rendered observation about one or more trends. Insights are
// derived on demand and never stored.
type Insight struct {
	Category Category `json:"category"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
}

// Analysis is the result of analyzing every tracked metric of a subject.
type Analysis struct {
	SubjectID   uuid.UUID              `json:"subject_id"`
	WindowDays  int                    `json:"window_days"`
	AsOf        time.Time              `json:"as_of"`
	Trends      map[string]TrendResult `json:"trends"`
	Insights    []Insight              `json:"insights"`
	GeneratedAt time.Time              `json:"generated_at"`
}
