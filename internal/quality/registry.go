// Package quality runs data quality checks over the observation corpus and
// records their findings as flags.
package quality

import (
	"github.com/rotisserie/eris"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// Snapshot is the corpus state a sweep runs against.
type Snapshot struct {
	Observations []model.Observation
	// CountryNames maps iso3 to display name.
	CountryNames map[string]string
}

// Check is one named data quality check. Run must not modify the snapshot.
type Check interface {
	Name() string
	Description() string
	Run(snap *Snapshot) ([]model.Flag, error)
}

// Registry maps check names to their implementations.
type Registry struct {
	checks map[string]Check
	order  []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with the built-in checks.
func NewRegistry(rules methodology.QualityRules) *Registry {
	r := &Registry{checks: make(map[string]Check)}

	r.Register(&outlierCheck{ranges: rules.ExpectedRanges})
	r.Register(&yoyCheck{rules: rules.YoY})
	r.Register(&crossSourceCheck{rules: rules.CrossSource})
	r.Register(&methodologyCheck{ceilings: rules.MethodologyCeilings})
	r.Register(&sampleSizeCheck{rules: rules.SampleSize})
	r.Register(&coverageCheck{rules: rules.Coverage})

	return r
}

// Register adds a check, replacing any check of the same name in place.
func (r *Registry) Register(c Check) {
	name := c.Name()
	if _, ok := r.checks[name]; !ok {
		r.order = append(r.order, name)
	}
	r.checks[name] = c
}

// Get returns a check by name.
func (r *Registry) Get(name string) (Check, error) {
	c, ok := r.checks[name]
	if !ok {
		return nil, eris.Errorf("quality: unknown check %q", name)
	}
	return c, nil
}

// All returns every check in registration order.
func (r *Registry) All() []Check {
	out := make([]Check, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.checks[name])
	}
	return out
}

// Names lists the registered check names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns the named checks in the order requested, or every check
// when names is empty. Names not in the registry are returned as unknown.
func (r *Registry) Select(names []string) (selected []Check, unknown []string) {
	if len(names) == 0 {
		return r.All(), nil
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		c, ok := r.checks[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, c)
	}
	return selected, unknown
}
