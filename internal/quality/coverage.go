package quality

import (
	"fmt"
	"slices"
	"sort"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

// coverageCheck reports corpus-level gaps. Its flags carry the coverage
// sentinel instead of an observation id.
type coverageCheck struct {
	rules methodology.CoverageRules
}

type sourceCoverage struct {
	source    string
	countries map[string]bool
	minYear   int
	maxYear   int
}

func (c *coverageCheck) Name() string        { return "coverage_gaps" }
func (c *coverageCheck) Description() string { return "Sources with few countries, sparse data" }

func (c *coverageCheck) Run(snap *Snapshot) ([]model.Flag, error) {
	flags := c.sparseSources(snap)
	return append(flags, c.singleObservationCountries(snap)...), nil
}

func (c *coverageCheck) sparseSources(snap *Snapshot) []model.Flag {
	bySource := make(map[string]*sourceCoverage)
	for _, o := range snap.Observations {
		if !slices.Contains(c.rules.TrustTypes, o.TrustType) {
			continue
		}
		sc, ok := bySource[o.Source]
		if !ok {
			sc = &sourceCoverage{source: o.Source, countries: make(map[string]bool), minYear: o.Year, maxYear: o.Year}
			bySource[o.Source] = sc
		}
		sc.countries[o.ISO3] = true
		sc.minYear = min(sc.minYear, o.Year)
		sc.maxYear = max(sc.maxYear, o.Year)
	}

	var sparse []*sourceCoverage
	for _, sc := range bySource {
		if len(sc.countries) < c.rules.MinCountries {
			sparse = append(sparse, sc)
		}
	}
	sort.Slice(sparse, func(i, j int) bool {
		if len(sparse[i].countries) != len(sparse[j].countries) {
			return len(sparse[i].countries) < len(sparse[j].countries)
		}
		return sparse[i].source < sparse[j].source
	})

	flags := make([]model.Flag, 0, len(sparse))
	for _, sc := range sparse {
		n := len(sc.countries)
		flags = append(flags, coverageFlag(map[string]any{
			"source":        sc.source,
			"country_count": n,
			"year_range":    fmt.Sprintf("%d-%d", sc.minYear, sc.maxYear),
			"reason":        fmt.Sprintf("Source %s has only %d countries - possible ETL issue", sc.source, n),
		}))
	}
	return flags
}

// singleObservationCountries reports named countries with exactly one
// observation in the whole corpus.
func (c *coverageCheck) singleObservationCountries(snap *Snapshot) []model.Flag {
	counts := make(map[string]int)
	sources := make(map[string]string)
	for _, o := range snap.Observations {
		counts[o.ISO3]++
		sources[o.ISO3] = o.Source
	}

	type single struct{ iso3, name string }
	var singles []single
	for iso3, n := range counts {
		name, ok := snap.CountryNames[iso3]
		if n == 1 && ok {
			singles = append(singles, single{iso3: iso3, name: name})
		}
	}
	sort.Slice(singles, func(i, j int) bool {
		if singles[i].name != singles[j].name {
			return singles[i].name < singles[j].name
		}
		return singles[i].iso3 < singles[j].iso3
	})
	if c.rules.SingleObservationLimit > 0 && len(singles) > c.rules.SingleObservationLimit {
		singles = singles[:c.rules.SingleObservationLimit]
	}

	flags := make([]model.Flag, 0, len(singles))
	for _, s := range singles {
		flags = append(flags, coverageFlag(map[string]any{
			"iso3":              s.iso3,
			"country_name":      s.name,
			"observation_count": 1,
			"sources":           sources[s.iso3],
			"reason":            fmt.Sprintf("%s (%s) has only 1 observation", s.name, s.iso3),
		}))
	}
	return flags
}

func coverageFlag(details map[string]any) model.Flag {
	return model.Flag{
		ObservationID: model.CoverageObservationID,
		FlagType:      model.FlagCoverageGap,
		Severity:      model.SeverityWarning,
		Details:       details,
	}
}
