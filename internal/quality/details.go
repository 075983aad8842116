package quality

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/trust-atlas/atlas-cli/internal/model"
)

// printer formats counts with thousands separators in flag reasons.
var printer = message.NewPrinter(language.English)

// observationDetails returns the identifying fields every observation-level
// flag carries.
func observationDetails(o model.Observation) map[string]any {
	d := map[string]any{
		"iso3":       o.ISO3,
		"year":       o.Year,
		"source":     o.Source,
		"trust_type": string(o.TrustType),
		"score":      o.Score,
	}
	if o.Methodology != model.MethodologyNone {
		d["methodology"] = string(o.Methodology)
	}
	return d
}

func newFlag(o model.Observation, flagType string, sev model.Severity, details map[string]any) model.Flag {
	return model.Flag{ObservationID: o.ID, FlagType: flagType, Severity: sev, Details: details}
}

// byScoreDesc orders observations by descending score, then id.
func byScoreDesc(obs []model.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].Score != obs[j].Score {
			return obs[i].Score > obs[j].Score
		}
		return obs[i].ID < obs[j].ID
	})
}

func severityAbove(delta, errorDelta float64) model.Severity {
	if delta > errorDelta {
		return model.SeverityError
	}
	return model.SeverityWarning
}
