package trends

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed metrics.yaml
var defaultMetrics []byte

// Metric names the insight rules look for.
const (
	MetricAnxiety        = "anxiety"
	MetricDepression     = "depression"
	MetricStress         = "stress"
	MetricPain           = "pain"
	MetricSleep          = "sleep"
	MetricEntryFrequency = "entry-frequency"
)

var ErrUnknownMetric = errors.New("unknown metric")

type Aggregation string

const (
	AggregateMean  Aggregation = "mean"
	AggregateCount Aggregation = "count"
)

// MetricDefinition declares how a metric is aggregated and labeled.
type MetricDefinition struct {
	Name            string      `yaml:"name" json:"name"`
	Label           string      `yaml:"label" json:"label"`
	Polarity        Polarity    `yaml:"polarity" json:"polarity"`
	DeadbandPercent float64     `yaml:"deadband_percent" json:"deadband_percent"`
	Aggregation     Aggregation `yaml:"aggregation" json:"aggregation"`
	Instrument      string      `yaml:"instrument,omitempty" json:"instrument,omitempty"`
}

type registryFile struct {
	Metrics []MetricDefinition `yaml:"metrics"`
}

// Registry is the immutable set of tracked metrics, in declared order.
type Registry struct {
	defs         []MetricDefinition
	byName       map[string]int
	byInstrument map[string]int
}

func DefaultRegistry() (*Registry, error) {
	return ParseRegistry(defaultMetrics)
}

// LoadRegistry reads metric definitions from path, or the embedded set when
// path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metrics %s: %w", path, err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return NewRegistry(f.Metrics)
}

// NewRegistry validates defs and builds a registry. An empty aggregation
// means mean.
func NewRegistry(defs []MetricDefinition) (*Registry, error) {
	r := &Registry{
		defs:         make([]MetricDefinition, len(defs)),
		byName:       make(map[string]int, len(defs)),
		byInstrument: make(map[string]int),
	}
	copy(r.defs, defs)

	var problems []string
	for i := range r.defs {
		d := &r.defs[i]
		if d.Aggregation == "" {
			d.Aggregation = AggregateMean
		}
		if d.Name == "" {
			problems = append(problems, fmt.Sprintf("metric #%d has no name", i+1))
			continue
		}
		if _, dup := r.byName[d.Name]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate metric name", d.Name))
		}
		r.byName[d.Name] = i
		if !d.Polarity.Valid() {
			problems = append(problems, fmt.Sprintf("%s: polarity %q is not %s or %s", d.Name, d.Polarity, HigherIsBetter, LowerIsBetter))
		}
		if d.DeadbandPercent < 0 {
			problems = append(problems, fmt.Sprintf("%s: negative deadband", d.Name))
		}
		if d.Aggregation != AggregateMean && d.Aggregation != AggregateCount {
			problems = append(problems, fmt.Sprintf("%s: unknown aggregation %q", d.Name, d.Aggregation))
		}
		if d.Instrument != "" {
			if prev, dup := r.byInstrument[d.Instrument]; dup {
				problems = append(problems, fmt.Sprintf("%s: instrument %s already feeds %s", d.Name, d.Instrument, r.defs[prev].Name))
			}
			r.byInstrument[d.Instrument] = i
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid metric definitions: %s", strings.Join(problems, "; "))
	}
	return r, nil
}

// Get returns the definition of name.
func (r *Registry) Get(name string) (MetricDefinition, error) {
	i, ok := r.byName[name]
	if !ok {
		return MetricDefinition{}, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return r.defs[i], nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ForInstrument returns the metric fed by an instrument's totals.
func (r *Registry) ForInstrument(instrumentID string) (MetricDefinition, bool) {
	i, ok := r.byInstrument[instrumentID]
	if !ok {
		return MetricDefinition{}, false
	}
	return r.defs[i], true
}

func (r *Registry) List() []MetricDefinition {
	out := make([]MetricDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}
