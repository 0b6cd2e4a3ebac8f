package assessment

import (
	"time"

	"github.com/google/uuid"
)

// Option is one selectable answer of a question. Several options may share
// the same Value; each selection contributes its Value to the total as-is.
type Option struct {
	Value int    `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Question is a single scored item of an instrument.
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Text    string   `yaml:"text" json:"text"`
	Options []Option `yaml:"options" json:"options"`
}

// HasValue reports whether v is one of the question's option values.
func (q *Question) HasValue(v int) bool {
	for _, o := range q.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// valueBounds returns the smallest and largest option values.
func (q *Question) valueBounds() (lo, hi int) {
	for i, o := range q.Options {
		if i == 0 || o.Value < lo {
			lo = o.Value
		}
		if i == 0 || o.Value > hi {
			hi = o.Value
		}
	}
	return lo, hi
}

// Range is a severity band over the total score, inclusive on both ends.
type Range struct {
	Label          string `yaml:"label" json:"label"`
	Min            int    `yaml:"min" json:"min"`
	Max            int    `yaml:"max" json:"max"`
	Interpretation string `yaml:"interpretation" json:"interpretation"`
}

// Contains reports whether total falls inside the band.
func (r Range) Contains(total int) bool {
	return r.Min <= total && total <= r.Max
}

// ScoringSpec describes the score interval of an instrument and its bands
// in declared order.
type ScoringSpec struct {
	Min    int     `yaml:"min" json:"min"`
	Max    int     `yaml:"max" json:"max"`
	Ranges []Range `yaml:"ranges" json:"ranges"`
}

// Instrument is a standardized screening questionnaire definition.
type Instrument struct {
	ID          string      `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	Acronym     string      `yaml:"acronym" json:"acronym"`
	Description string      `yaml:"description" json:"description"`
	Category    string      `yaml:"category" json:"category"`
	Questions   []Question  `yaml:"questions" json:"questions"`
	Scoring     ScoringSpec `yaml:"scoring" json:"scoring"`
}

// Question returns the question with the given id, or nil.
func (i *Instrument) Question(id string) *Question {
	for k := range i.Questions {
		if i.Questions[k].ID == id {
			return &i.Questions[k]
		}
	}
	return nil
}

// clone returns a copy that shares no slices with i.
func (i *Instrument) clone() Instrument {
	out := *i
	out.Questions = make([]Question, len(i.Questions))
	for k, q := range i.Questions {
		q.Options = append([]Option(nil), q.Options...)
		out.Questions[k] = q
	}
	out.Scoring.Ranges = append([]Range(nil), i.Scoring.Ranges...)
	return out
}

// TotalBounds returns the lowest and highest totals the questions can produce.
func (i *Instrument) TotalBounds() (lo, hi int) {
	for k := range i.Questions {
		qlo, qhi := i.Questions[k].valueBounds()
		lo += qlo
		hi += qhi
	}
	return lo, hi
}

// Summary returns the catalog listing view of the instrument.
func (i *Instrument) Summary() InstrumentSummary {
	return InstrumentSummary{
		ID:            i.ID,
		Name:          i.Name,
		Acronym:       i.Acronym,
		Description:   i.Description,
		Category:      i.Category,
		QuestionCount: len(i.Questions),
	}
}

// InstrumentSummary is what listing endpoints expose.
type InstrumentSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Acronym       string `json:"acronym"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	QuestionCount int    `json:"question_count"`
}

// ScoreResult is the outcome of scoring one set of answers.
type ScoreResult struct {
	TotalScore     int    `json:"total_score"`
	SeverityLabel  string `json:"severity_label"`
	Interpretation string `json:"interpretation"`
	Warning        string `json:"warning,omitempty"`
}

// Response maps to the assessment_response table. Rows are never updated;
// a retake is a new row.
type Response struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	InstrumentID   string         `db:"instrument_id" json:"instrument_id"`
	SubjectID      uuid.UUID      `db:"subject_id" json:"subject_id"`
	Answers        map[string]int `db:"answers" json:"answers"`
	TotalScore     int            `db:"total_score" json:"total_score"`
	SeverityLabel  string         `db:"severity_label" json:"severity_label"`
	Interpretation string         `db:"interpretation" json:"interpretation"`
	Warning        string         `db:"warning" json:"warning,omitempty"`
	CompletedAt    time.Time      `db:"completed_at" json:"completed_at"`
}

// Assignment maps to the instrument_assignment table.
type Assignment struct {
	SubjectID    uuid.UUID `db:"subject_id" json:"subject_id"`
	InstrumentID string    `db:"instrument_id" json:"instrument_id"`
	AssignedBy   string    `db:"assigned_by" json:"assigned_by"`
	AssignedAt   time.Time `db:"assigned_at" json:"assigned_at"`
}
