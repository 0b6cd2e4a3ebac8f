package trends

import (
	"strings"
	"testing"
)

func trend(dir Direction, pct float64, pol Polarity) TrendResult {
	return TrendResult{Direction: dir, PercentChange: pct, Polarity: pol}
}

func rulesOf(insights []Insight) []string {
	out := make([]string, len(insights))
	for i, in := range insights {
		out[i] = in.Rule
	}
	return out
}

func TestGenerateInsights_NeverEmpty(t *testing.T) {
	inputs := []map[string]TrendResult{
		nil,
		{},
		{MetricAnxiety: trend(DirectionStable, 0, LowerIsBetter)},
		{"unknown": trend(DirectionUp, 80, HigherIsBetter)},
		{MetricPain: trend(DirectionDown, -5, LowerIsBetter)},
	}
	for i, in := range inputs {
		got := GenerateInsights(in)
		if len(got) == 0 {
			t.Fatalf("input %d: expected at least one insight", i)
		}
	}
}

func TestGenerateInsights_StableFallback(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricStress: trend(DirectionStable, 2, LowerIsBetter),
	})
	if len(got) != 1 {
		t.Fatalf("expected exactly one insight, got %v", rulesOf(got))
	}
	if got[0].Category != CategoryInfo || got[0].Rule != "stable" {
		t.Errorf("expected stable info insight, got %+v", got[0])
	}
	if !strings.Contains(got[0].Message, "Keep tracking") {
		t.Errorf("unexpected message %q", got[0].Message)
	}
}

func TestGenerateInsights_SingleMetricThresholds(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		trend    TrendResult
		wantRule string
		wantCat  Category
	}{
		{"anxiety improved", MetricAnxiety, trend(DirectionDown, -15, LowerIsBetter), "anxiety_improving", CategoryPositive},
		{"anxiety worsened", MetricAnxiety, trend(DirectionUp, 20, LowerIsBetter), "anxiety_worsening", CategoryWarning},
		{"depression improved", MetricDepression, trend(DirectionDown, -30, LowerIsBetter), "depression_improving", CategoryPositive},
		{"stress worsened", MetricStress, trend(DirectionUp, 45, LowerIsBetter), "stress_worsening", CategoryWarning},
		{"pain improved", MetricPain, trend(DirectionDown, -16, LowerIsBetter), "pain_improving", CategoryPositive},
		{"sleep improved", MetricSleep, trend(DirectionUp, 18, HigherIsBetter), "sleep_improving", CategoryPositive},
		{"sleep worsened", MetricSleep, trend(DirectionDown, -25, HigherIsBetter), "sleep_worsening", CategoryWarning},
		{"entries up", MetricEntryFrequency, trend(DirectionUp, 10, HigherIsBetter), "entry_frequency_improving", CategoryPositive},
		{"entries down", MetricEntryFrequency, trend(DirectionDown, -25, HigherIsBetter), "entry_frequency_worsening", CategoryInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateInsights(map[string]TrendResult{tt.metric: tt.trend})
			if len(got) != 1 || got[0].Rule != tt.wantRule || got[0].Category != tt.wantCat {
				t.Errorf("expected %s/%s, got %+v", tt.wantRule, tt.wantCat, got)
			}
		})
	}
}

func TestGenerateInsights_BelowThresholdsFallBack(t *testing.T) {
	tests := []struct {
		metric string
		trend  TrendResult
	}{
		{MetricAnxiety, trend(DirectionDown, -14.9, LowerIsBetter)},
		{MetricAnxiety, trend(DirectionUp, 19.9, LowerIsBetter)},
		{MetricEntryFrequency, trend(DirectionUp, 9.5, HigherIsBetter)},
		{MetricEntryFrequency, trend(DirectionDown, -24, HigherIsBetter)},
	}
	for _, tt := range tests {
		got := GenerateInsights(map[string]TrendResult{tt.metric: tt.trend})
		if len(got) != 1 || got[0].Rule != "stable" {
			t.Errorf("%s %v: expected only the stable insight, got %v", tt.metric, tt.trend.PercentChange, rulesOf(got))
		}
	}
}

func TestGenerateInsights_PolarityDecidesImprovement(t *testing.T) {
	// Rising anxiety scored as higher-is-better would be an improvement; the
	// trend's own polarity is what counts.
	got := GenerateInsights(map[string]TrendResult{
		MetricAnxiety: trend(DirectionUp, 30, HigherIsBetter),
	})
	if got[0].Rule != "anxiety_improving" {
		t.Errorf("expected polarity carried on the trend to be honored, got %v", rulesOf(got))
	}
}

func TestGenerateInsights_DefaultPolarity(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricSleep: trend(DirectionDown, -40, ""),
	})
	if got[0].Rule != "sleep_worsening" {
		t.Errorf("expected sleep default polarity higher-is-better, got %v", rulesOf(got))
	}
}

func TestGenerateInsights_CorrelationsIgnoreMagnitude(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricStress: trend(DirectionUp, 6, LowerIsBetter),
		MetricSleep:  trend(DirectionDown, -6, HigherIsBetter),
	})
	rules := rulesOf(got)
	if len(rules) != 1 || rules[0] != "stress_up_sleep_down" {
		t.Errorf("expected only stress_up_sleep_down, got %v", rules)
	}
	if got[0].Category != CategoryInfo {
		t.Errorf("expected info, got %s", got[0].Category)
	}
}

func TestGenerateInsights_RuleOrder(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricSleep:          trend(DirectionDown, -30, HigherIsBetter),
		MetricPain:           trend(DirectionUp, 25, LowerIsBetter),
		MetricStress:         trend(DirectionUp, 22, LowerIsBetter),
		MetricAnxiety:        trend(DirectionUp, 21, LowerIsBetter),
		MetricEntryFrequency: trend(DirectionDown, -50, HigherIsBetter),
	})
	want := []string{
		"anxiety_worsening",
		"stress_worsening",
		"pain_worsening",
		"sleep_worsening",
		"entry_frequency_worsening",
		"stress_up_sleep_down",
		"anxiety_up_sleep_down",
		"pain_up_stress_up",
	}
	rules := rulesOf(got)
	if len(rules) != len(want) {
		t.Fatalf("expected %v, got %v", want, rules)
	}
	for i := range want {
		if rules[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], rules[i])
		}
	}
}

func TestGenerateInsights_BroadImprovement(t *testing.T) {
	// Small improvements below the single-metric threshold still count.
	got := GenerateInsights(map[string]TrendResult{
		MetricAnxiety:    trend(DirectionDown, -6, LowerIsBetter),
		MetricDepression: trend(DirectionDown, -7, LowerIsBetter),
		MetricSleep:      trend(DirectionUp, 8, HigherIsBetter),
	})
	if len(got) != 1 || got[0].Rule != "broad_improvement" || got[0].Category != CategoryPositive {
		t.Fatalf("expected broad_improvement alone, got %v", rulesOf(got))
	}
	if !strings.HasPrefix(got[0].Message, "3 of 5") {
		t.Errorf("unexpected message %q", got[0].Message)
	}

	two := GenerateInsights(map[string]TrendResult{
		MetricAnxiety:    trend(DirectionDown, -6, LowerIsBetter),
		MetricDepression: trend(DirectionDown, -7, LowerIsBetter),
	})
	if two[0].Rule != "stable" {
		t.Errorf("two improving metrics should not trigger broad_improvement, got %v", rulesOf(two))
	}
}

func TestGenerateInsights_BroadImprovementComesLast(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricAnxiety:    trend(DirectionDown, -20, LowerIsBetter),
		MetricDepression: trend(DirectionDown, -20, LowerIsBetter),
		MetricStress:     trend(DirectionDown, -20, LowerIsBetter),
		MetricPain:       trend(DirectionDown, -20, LowerIsBetter),
		MetricSleep:      trend(DirectionUp, 20, HigherIsBetter),
	})
	rules := rulesOf(got)
	if len(rules) != 6 || rules[5] != "broad_improvement" {
		t.Fatalf("expected five single-metric insights then broad_improvement, got %v", rules)
	}
	if !strings.HasPrefix(got[5].Message, "5 of 5") {
		t.Errorf("unexpected message %q", got[5].Message)
	}
}

func TestGenerateInsights_MessageReportsMagnitude(t *testing.T) {
	got := GenerateInsights(map[string]TrendResult{
		MetricDepression: trend(DirectionDown, -23.4, LowerIsBetter),
	})
	if !strings.Contains(got[0].Message, "23%") {
		t.Errorf("expected rounded magnitude in %q", got[0].Message)
	}
}

func TestGenerateInsights_Deterministic(t *testing.T) {
	in := map[string]TrendResult{
		MetricStress: trend(DirectionUp, 30, LowerIsBetter),
		MetricPain:   trend(DirectionUp, 30, LowerIsBetter),
		MetricSleep:  trend(DirectionDown, -30, HigherIsBetter),
	}
	first := rulesOf(GenerateInsights(in))
	for i := 0; i < 10; i++ {
		again := rulesOf(GenerateInsights(in))
		if strings.Join(again, ",") != strings.Join(first, ",") {
			t.Fatalf("run %d: expected %v, got %v", i, first, again)
		}
	}
}

func TestRuleNames(t *testing.T) {
	names := RuleNames()
	if len(names) != 16 {
		t.Fatalf("expected 16 rules, got %d: %v", len(names), names)
	}
	if names[0] != "anxiety_improving" || names[15] != "broad_improvement" {
		t.Errorf("unexpected rule order %v", names)
	}
}
