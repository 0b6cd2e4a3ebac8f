package trends

import (
	"fmt"
	"math"
)

// Thresholds, in percent change, for the single-metric rules.
const (
	improvementThreshold    = 15
	worseningThreshold      = 20
	entryIncreaseThreshold  = 10
	entryDecreaseThreshold  = 25
	broadImprovementMinimum = 3
)

// Metrics counted by the broad-improvement rule, also the metrics with
// single-metric threshold rules, in rule order.
var symptomMetrics = []string{MetricAnxiety, MetricDepression, MetricStress, MetricPain, MetricSleep}

var metricLabels = map[string]string{
	MetricAnxiety:    "Anxiety",
	MetricDepression: "Depression",
	MetricStress:     "Stress",
	MetricPain:       "Pain",
	MetricSleep:      "Sleep quality",
}

// Polarity used when a trend arrives without one.
var defaultPolarity = map[string]Polarity{
	MetricAnxiety:        LowerIsBetter,
	MetricDepression:     LowerIsBetter,
	MetricStress:         LowerIsBetter,
	MetricPain:           LowerIsBetter,
	MetricSleep:          HigherIsBetter,
	MetricEntryFrequency: HigherIsBetter,
}

const stableMessage = "Your tracked metrics are stable. Keep tracking to build a clearer picture over time."

type rule struct {
	name  string
	apply func(trends map[string]TrendResult) (Insight, bool)
}

var rules = buildRules()

func buildRules() []rule {
	var rs []rule
	for _, m := range symptomMetrics {
		rs = append(rs, improvedRule(m), worsenedRule(m))
	}
	rs = append(rs,
		rule{name: "entry_frequency_improving", apply: func(tr map[string]TrendResult) (Insight, bool) {
			t, ok := lookup(tr, MetricEntryFrequency)
			if !ok || t.Outcome() != OutcomeImproving || magnitude(t) < entryIncreaseThreshold {
				return Insight{}, false
			}
			return Insight{CategoryPositive, "entry_frequency_improving",
				fmt.Sprintf("You have been checking in more often: entries are up %.0f%% on the previous period.", magnitude(t))}, true
		}},
		rule{name: "entry_frequency_worsening", apply: func(tr map[string]TrendResult) (Insight, bool) {
			t, ok := lookup(tr, MetricEntryFrequency)
			if !ok || t.Outcome() != OutcomeWorsening || magnitude(t) < entryDecreaseThreshold {
				return Insight{}, false
			}
			return Insight{CategoryInfo, "entry_frequency_worsening",
				fmt.Sprintf("Entries are down %.0f%% on the previous period. Regular check-ins make changes easier to spot.", magnitude(t))}, true
		}},
		correlationRule("stress_up_sleep_down", MetricStress, DirectionUp, MetricSleep, DirectionDown,
			"Stress is rising while sleep quality is falling. The two often affect each other."),
		correlationRule("anxiety_up_sleep_down", MetricAnxiety, DirectionUp, MetricSleep, DirectionDown,
			"Anxiety is rising while sleep quality is falling. Consider mentioning this at your next visit."),
		correlationRule("pain_up_stress_up", MetricPain, DirectionUp, MetricStress, DirectionUp,
			"Pain and stress are both rising. Changes in one can show up in the other."),
		rule{name: "broad_improvement", apply: func(tr map[string]TrendResult) (Insight, bool) {
			n := 0
			for _, m := range symptomMetrics {
				if t, ok := lookup(tr, m); ok && t.Outcome() == OutcomeImproving {
					n++
				}
			}
			if n < broadImprovementMinimum {
				return Insight{}, false
			}
			return Insight{CategoryPositive, "broad_improvement",
				fmt.Sprintf("%d of %d tracked areas are improving at the same time. Keep up what you are doing.", n, len(symptomMetrics))}, true
		}},
	)
	return rs
}

func improvedRule(metric string) rule {
	name := metric + "_improving"
	return rule{name: name, apply: func(tr map[string]TrendResult) (Insight, bool) {
		t, ok := lookup(tr, metric)
		if !ok || t.Outcome() != OutcomeImproving || magnitude(t) < improvementThreshold {
			return Insight{}, false
		}
		return Insight{CategoryPositive, name,
			fmt.Sprintf("%s has improved by %.0f%% compared with the previous period.", metricLabels[metric], magnitude(t))}, true
	}}
}

func worsenedRule(metric string) rule {
	name := metric + "_worsening"
	return rule{name: name, apply: func(tr map[string]TrendResult) (Insight, bool) {
		t, ok := lookup(tr, metric)
		if !ok || t.Outcome() != OutcomeWorsening || magnitude(t) < worseningThreshold {
			return Insight{}, false
		}
		return Insight{CategoryWarning, name,
			fmt.Sprintf("%s has worsened by %.0f%% compared with the previous period. Consider sharing this with your care team.", metricLabels[metric], magnitude(t))}, true
	}}
}

// correlationRule fires on directions alone; magnitude is not considered.
func correlationRule(name, a string, dirA Direction, b string, dirB Direction, message string) rule {
	return rule{name: name, apply: func(tr map[string]TrendResult) (Insight, bool) {
		ta, okA := tr[a]
		tb, okB := tr[b]
		if !okA || !okB || ta.Direction != dirA || tb.Direction != dirB {
			return Insight{}, false
		}
		return Insight{CategoryInfo, name, message}, true
	}}
}

// lookup returns the named trend with a polarity filled in for known metrics.
func lookup(tr map[string]TrendResult, name string) (TrendResult, bool) {
	t, ok := tr[name]
	if !ok {
		return t, false
	}
	if !t.Polarity.Valid() {
		t.Polarity = defaultPolarity[name]
	}
	return t, true
}

func magnitude(t TrendResult) float64 {
	return math.Abs(t.PercentChange)
}

// GenerateInsights evaluates the rules in their fixed order against the named
// trends and returns what fired, in rule order. When nothing fires the result
// is a single stable insight, so it is never empty.
func GenerateInsights(trends map[string]TrendResult) []Insight {
	var out []Insight
	for _, r := range rules {
		if in, ok := r.apply(trends); ok {
			out = append(out, in)
		}
	}
	if len(out) == 0 {
		out = append(out, Insight{Category: CategoryInfo, Rule: "stable", Message: stableMessage})
	}
	return out
}

// RuleNames lists the rules in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}
