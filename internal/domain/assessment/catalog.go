package assessment

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed instruments.yaml
var defaultCatalog []byte

// ErrInstrumentNotFound is returned when the catalog has no instrument with the requested id.
var ErrInstrumentNotFound = errors.New("instrument not found")

// CatalogError collects every problem found while validating a catalog.
type CatalogError struct {
	Problems []string
}

func (e *CatalogError) Error() string {
	return "invalid instrument catalog: " + strings.Join(e.Problems, "; ")
}

func (e *CatalogError) add(format string, args ...interface{}) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

type catalogFile struct {
	Instruments []Instrument `yaml:"instruments"`
}

// Catalog is the read-only registry of instrument definitions. It is built
// once and never mutated, so concurrent reads need no locking.
type Catalog struct {
	instruments []Instrument
	byID        map[string]int
}

// DefaultCatalog loads the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a YAML catalog from path. An empty path loads the
// embedded catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewCatalog(f.Instruments)
}

// NewCatalog validates the given definitions and builds a catalog from them.
func NewCatalog(instruments []Instrument) (*Catalog, error) {
	if err := ValidateInstruments(instruments); err != nil {
		return nil, err
	}
	c := &Catalog{
		instruments: make([]Instrument, len(instruments)),
		byID:        make(map[string]int, len(instruments)),
	}
	copy(c.instruments, instruments)
	for i, inst := range c.instruments {
		c.byID[inst.ID] = i
	}
	return c, nil
}

// ValidateInstruments checks ids, questions and severity-band coverage of
// every instrument and returns a *CatalogError listing all violations.
func ValidateInstruments(instruments []Instrument) error {
	cerr := &CatalogError{}
	if len(instruments) == 0 {
		cerr.add("catalog has no instruments")
	}
	seen := make(map[string]bool, len(instruments))
	for i := range instruments {
		inst := &instruments[i]
		if inst.ID == "" {
			cerr.add("instrument #%d has no id", i+1)
			continue
		}
		if seen[inst.ID] {
			cerr.add("%s: duplicate instrument id", inst.ID)
		}
		seen[inst.ID] = true
		validateInstrument(inst, cerr)
	}
	if len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

func validateInstrument(inst *Instrument, cerr *CatalogError) {
	if inst.Name == "" {
		cerr.add("%s: name is required", inst.ID)
	}
	if len(inst.Questions) == 0 {
		cerr.add("%s: no questions", inst.ID)
	}
	qids := make(map[string]bool, len(inst.Questions))
	for _, q := range inst.Questions {
		if q.ID == "" {
			cerr.add("%s: question without id", inst.ID)
			continue
		}
		if qids[q.ID] {
			cerr.add("%s: duplicate question id %s", inst.ID, q.ID)
		}
		qids[q.ID] = true
		if len(q.Options) == 0 {
			cerr.add("%s: question %s has no options", inst.ID, q.ID)
		}
	}

	spec := inst.Scoring
	if spec.Min > spec.Max {
		cerr.add("%s: scoring min %d exceeds max %d", inst.ID, spec.Min, spec.Max)
		return
	}
	if len(spec.Ranges) == 0 {
		cerr.add("%s: no severity ranges", inst.ID)
		return
	}

	ranges := make([]Range, len(spec.Ranges))
	copy(ranges, spec.Ranges)
	sort.SliceStable(ranges, func(a, b int) bool { return ranges[a].Min < ranges[b].Min })

	next := spec.Min
	for _, r := range ranges {
		if r.Min > r.Max {
			cerr.add("%s: range %q has min %d above max %d", inst.ID, r.Label, r.Min, r.Max)
			continue
		}
		switch {
		case r.Min > next:
			cerr.add("%s: totals %d..%d are not covered by any range", inst.ID, next, r.Min-1)
		case r.Min < next:
			cerr.add("%s: range %q overlaps a previous range at %d", inst.ID, r.Label, r.Min)
		}
		if r.Max+1 > next {
			next = r.Max + 1
		}
	}
	if next-1 < spec.Max {
		cerr.add("%s: totals %d..%d are not covered by any range", inst.ID, next, spec.Max)
	}
	if next-1 > spec.Max {
		cerr.add("%s: ranges extend to %d beyond scoring max %d", inst.ID, next-1, spec.Max)
	}

	if len(inst.Questions) > 0 {
		lo, hi := inst.TotalBounds()
		if lo < spec.Min || hi > spec.Max {
			cerr.add("%s: achievable totals %d..%d fall outside scoring interval %d..%d",
				inst.ID, lo, hi, spec.Min, spec.Max)
		}
	}
}

// Get returns the instrument with the given id.
func (c *Catalog) Get(id string) (*Instrument, error) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}
	inst := c.instruments[idx].clone()
	return &inst, nil
}

// Has reports whether the catalog defines id.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// List returns every instrument in declared order.
func (c *Catalog) List() []Instrument {
	out := make([]Instrument, len(c.instruments))
	for i := range c.instruments {
		out[i] = c.instruments[i].clone()
	}
	return out
}

// Evaluate scores answers against the instrument with the given id.
func (c *Catalog) Evaluate(instrumentID string, answers map[string]int) (ScoreResult, error) {
	idx, ok := c.byID[instrumentID]
	if !ok {
		return ScoreResult{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, instrumentID)
	}
	return Score(&c.instruments[idx], answers)
}
