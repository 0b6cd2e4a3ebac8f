package trends

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func mustRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("default registry: %v", err)
	}
	return r
}

func TestDefaultRegistry(t *testing.T) {
	r := mustRegistry(t)

	want := []string{MetricAnxiety, MetricDepression, MetricStress, MetricPain, MetricSleep, "insomnia", MetricEntryFrequency}
	defs := r.List()
	if len(defs) != len(want) {
		t.Fatalf("expected %d metrics, got %d", len(want), len(defs))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, defs[i].Name)
		}
	}

	sleep, err := r.Get(MetricSleep)
	if err != nil {
		t.Fatalf("get sleep: %v", err)
	}
	if sleep.Polarity != HigherIsBetter {
		t.Errorf("expected sleep to be higher-is-better, got %s", sleep.Polarity)
	}
	entries, _ := r.Get(MetricEntryFrequency)
	if entries.Aggregation != AggregateCount || entries.DeadbandPercent != 10 {
		t.Errorf("unexpected entry-frequency definition %+v", entries)
	}
	for _, m := range symptomMetrics {
		if !r.Has(m) {
			t.Errorf("default registry is missing %s", m)
		}
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	_, err := mustRegistry(t).Get("mood")
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("expected ErrUnknownMetric, got %v", err)
	}
}

func TestRegistry_ForInstrument(t *testing.T) {
	r := mustRegistry(t)
	tests := map[string]string{
		"phq9":  MetricDepression,
		"gad7":  MetricAnxiety,
		"pss10": MetricStress,
		"isi":   "insomnia",
	}
	for instrument, metric := range tests {
		def, ok := r.ForInstrument(instrument)
		if !ok || def.Name != metric {
			t.Errorf("%s: expected %s, got %+v (ok=%v)", instrument, metric, def, ok)
		}
	}
	if _, ok := r.ForInstrument("cesd"); ok {
		t.Error("cesd should not feed a metric")
	}
}

func TestRegistry_ListIsCopy(t *testing.T) {
	r := mustRegistry(t)
	defs := r.List()
	defs[0].Name = "changed"
	if !r.Has(MetricAnxiety) || r.List()[0].Name != MetricAnxiety {
		t.Error("mutating List result changed the registry")
	}
}

func TestNewRegistry_DefaultsAggregation(t *testing.T) {
	r, err := NewRegistry([]MetricDefinition{{Name: "mood", Polarity: HigherIsBetter}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def, _ := r.Get("mood")
	if def.Aggregation != AggregateMean {
		t.Errorf("expected mean, got %q", def.Aggregation)
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name string
		defs []MetricDefinition
		want string
	}{
		{"no name", []MetricDefinition{{Polarity: LowerIsBetter}}, "has no name"},
		{"duplicate", []MetricDefinition{
			{Name: "pain", Polarity: LowerIsBetter},
			{Name: "pain", Polarity: LowerIsBetter},
		}, "duplicate metric name"},
		{"bad polarity", []MetricDefinition{{Name: "pain", Polarity: "sideways"}}, "polarity"},
		{"missing polarity", []MetricDefinition{{Name: "pain"}}, "polarity"},
		{"negative deadband", []MetricDefinition{{Name: "pain", Polarity: LowerIsBetter, DeadbandPercent: -1}}, "negative deadband"},
		{"bad aggregation", []MetricDefinition{{Name: "pain", Polarity: LowerIsBetter, Aggregation: "median"}}, "unknown aggregation"},
		{"shared instrument", []MetricDefinition{
			{Name: "a", Polarity: LowerIsBetter, Instrument: "phq9"},
			{Name: "b", Polarity: LowerIsBetter, Instrument: "phq9"},
		}, "already feeds a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.defs)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestNewRegistry_ReportsAllProblems(t *testing.T) {
	_, err := NewRegistry([]MetricDefinition{
		{Name: "a", Polarity: "up"},
		{Name: "b", Polarity: LowerIsBetter, DeadbandPercent: -5},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "a: polarity") || !strings.Contains(err.Error(), "b: negative deadband") {
		t.Errorf("expected both problems reported, got %v", err)
	}
}

func TestParseRegistry(t *testing.T) {
	data := []byte(`
metrics:
  - name: mood
    label: Mood
    polarity: higher-is-better
    deadband_percent: 2.5
  - name: visits
    polarity: higher-is-better
    aggregation: count
`)
	r, err := ParseRegistry(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mood, _ := r.Get("mood")
	if mood.Label != "Mood" || mood.DeadbandPercent != 2.5 {
		t.Errorf("unexpected mood definition %+v", mood)
	}
	visits, _ := r.Get("visits")
	if visits.Aggregation != AggregateCount {
		t.Errorf("expected count aggregation, got %q", visits.Aggregation)
	}
}

func TestParseRegistry_BadYAML(t *testing.T) {
	if _, err := ParseRegistry([]byte("metrics: [")); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	if err != nil || !r.Has(MetricSleep) {
		t.Fatalf("expected embedded registry, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "metrics.yaml")
	if err := os.WriteFile(path, []byte("metrics:\n  - name: mood\n    polarity: higher-is-better\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err = LoadRegistry(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Has("mood") || r.Has(MetricSleep) {
		t.Errorf("expected only mood, got %v", r.List())
	}

	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
