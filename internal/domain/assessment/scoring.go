package assessment

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Scoring errors.
var (
	ErrIncompleteResponse = errors.New("incomplete response")
	ErrInvalidAnswerValue = errors.New("invalid answer value")
)

// WarningUnscorableTotal flags a result whose total matched no severity band
// and was labeled with the first band instead.
const WarningUnscorableTotal = "unscorable_total"

// IncompleteResponseError lists the required questions that were not answered.
type IncompleteResponseError struct {
	InstrumentID string
	Missing      []string
}

func (e *IncompleteResponseError) Error() string {
	return fmt.Sprintf("incomplete response for %s: missing %s", e.InstrumentID, strings.Join(e.Missing, ", "))
}

func (e *IncompleteResponseError) Unwrap() error { return ErrIncompleteResponse }

// InvalidAnswerError reports an answer that is not a defined option value,
// or an answer to a question the instrument does not have.
type InvalidAnswerError struct {
	InstrumentID string
	QuestionID   string
	Value        int
	Unknown      bool
}

func (e *InvalidAnswerError) Error() string {
	if e.Unknown {
		return fmt.Sprintf("invalid answer for %s: unknown question %s", e.InstrumentID, e.QuestionID)
	}
	return fmt.Sprintf("invalid answer for %s: question %s has no option with value %d", e.InstrumentID, e.QuestionID, e.Value)
}

func (e *InvalidAnswerError) Unwrap() error { return ErrInvalidAnswerValue }

// Score validates answers against inst and computes the total and severity
// band. The total is the plain sum of the selected option values.
func Score(inst *Instrument, answers map[string]int) (ScoreResult, error) {
	var missing []string
	for _, q := range inst.Questions {
		if _, ok := answers[q.ID]; !ok {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return ScoreResult{}, &IncompleteResponseError{InstrumentID: inst.ID, Missing: missing}
	}

	// Sorted so the reported offender does not depend on map iteration.
	ids := make([]string, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := 0
	for _, id := range ids {
		v := answers[id]
		q := inst.Question(id)
		if q == nil {
			return ScoreResult{}, &InvalidAnswerError{InstrumentID: inst.ID, QuestionID: id, Value: v, Unknown: true}
		}
		if !q.HasValue(v) {
			return ScoreResult{}, &InvalidAnswerError{InstrumentID: inst.ID, QuestionID: id, Value: v}
		}
		total += v
	}

	return classify(inst, total), nil
}

func classify(inst *Instrument, total int) ScoreResult {
	res := ScoreResult{TotalScore: total}
	for _, r := range inst.Scoring.Ranges {
		if r.Contains(total) {
			res.SeverityLabel = r.Label
			res.Interpretation = r.Interpretation
			return res
		}
	}
	res.Warning = WarningUnscorableTotal
	if len(inst.Scoring.Ranges) > 0 {
		res.SeverityLabel = inst.Scoring.Ranges[0].Label
		res.Interpretation = inst.Scoring.Ranges[0].Interpretation
	}
	return res
}
