package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

func TestSurveyTier(t *testing.T) {
	rules := methodology.Default().Tiers
	tests := []struct {
		name     string
		priority int
		age      int
		want     model.Tier
	}{
		{"gold fresh", 1, 0, model.TierA},
		{"gold at A limit", 3, 3, model.TierA},
		{"gold aging", 2, 4, model.TierB},
		{"gold at B limit", 1, 5, model.TierB},
		{"gold old", 1, 6, model.TierC},
		{"barometer fresh", 4, 1, model.TierB},
		{"barometer at limit", 5, 3, model.TierB},
		{"barometer old", 4, 4, model.TierC},
		{"low authority fresh", 6, 0, model.TierC},
		{"unranked", 10, 0, model.TierC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SurveyTier(tt.priority, tt.age, rules))
		})
	}
}

func TestSurveyTier_MonotonicInAge(t *testing.T) {
	rules := methodology.Default().Tiers
	for priority := 1; priority <= 10; priority++ {
		prev := SurveyTier(priority, 0, rules)
		for age := 1; age <= 15; age++ {
			cur := SurveyTier(priority, age, rules)
			assert.GreaterOrEqual(t, cur.Rank(), prev.Rank(), "priority %d age %d", priority, age)
			prev = cur
		}
	}
}

func TestSurveyTier_MonotonicInPriority(t *testing.T) {
	rules := methodology.Default().Tiers
	for age := 0; age <= 10; age++ {
		prev := SurveyTier(1, age, rules)
		for priority := 2; priority <= 10; priority++ {
			cur := SurveyTier(priority, age, rules)
			assert.GreaterOrEqual(t, cur.Rank(), prev.Rank(), "priority %d age %d", priority, age)
			prev = cur
		}
	}
}

func TestMediaTier(t *testing.T) {
	tables := methodology.Default()
	tests := []struct {
		name    string
		sources []string
		age     int
		want    model.Tier
	}{
		{"annual current", []string{"Reuters_DNR"}, 0, model.TierA},
		{"annual last year", []string{"Eurobarometer"}, 1, model.TierA},
		{"annual two years", []string{"Reuters_DNR"}, 2, model.TierB},
		{"annual old", []string{"Reuters_DNR"}, 3, model.TierC},
		{"periodic only", []string{"WVS"}, 0, model.TierB},
		{"periodic at limit", []string{"WVS"}, 3, model.TierB},
		{"periodic old", []string{"WVS"}, 4, model.TierC},
		{"mixed fresh", []string{"Reuters_DNR", "WVS"}, 1, model.TierA},
		{"mixed old annual", []string{"Reuters_DNR", "WVS"}, 3, model.TierB},
		{"unknown", []string{"Gallup"}, 0, model.TierC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaTier(tt.sources, tt.age, tables))
		})
	}
}

func TestInterval_Containment(t *testing.T) {
	margins := methodology.Default().Margins
	for _, tier := range model.Tiers {
		for s := 0.0; s <= 100.0; s += 0.5 {
			lo, hi := Interval(s, tier, margins)
			assert.GreaterOrEqual(t, lo, 0.0)
			assert.LessOrEqual(t, lo, s)
			assert.GreaterOrEqual(t, hi, s)
			assert.LessOrEqual(t, hi, 100.0)
		}
	}
}

func TestInterval_Margins(t *testing.T) {
	margins := methodology.Default().Margins
	lo, hi := Interval(50, model.TierA, margins)
	assert.Equal(t, 45.0, lo)
	assert.Equal(t, 55.0, hi)

	lo, hi = Interval(3, model.TierC, margins)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 18.0, hi)

	lo, hi = Interval(95, model.TierB, margins)
	assert.Equal(t, 85.0, lo)
	assert.Equal(t, 100.0, hi)
}

func TestRound1(t *testing.T) {
	assert.Equal(t, 70.0, round1(69.99999))
	assert.Equal(t, 33.3, round1(100.0/3))
	assert.Equal(t, 66.7, round1(200.0/3))
}
