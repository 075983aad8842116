package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trust-atlas/atlas-cli/internal/methodology"
	"github.com/trust-atlas/atlas-cli/internal/model"
)

func ptrInt(n int) *int { return &n }

func obs(id int64, iso3 string, year int, source string, tt model.TrustType, score float64) model.Observation {
	return model.Observation{ID: id, ISO3: iso3, Year: year, Source: source, TrustType: tt, Score: score, SampleN: ptrInt(1000)}
}

func runCheck(t *testing.T, name string, snap *Snapshot) []model.Flag {
	t.Helper()
	c, err := NewRegistry(methodology.DefaultQuality()).Get(name)
	require.NoError(t, err)
	flags, err := c.Run(snap)
	require.NoError(t, err)
	return flags
}

func flagIDs(flags []model.Flag) []int64 {
	ids := make([]int64, 0, len(flags))
	for _, f := range flags {
		ids = append(ids, f.ObservationID)
	}
	return ids
}

func TestCrossSource_FlagsHigherScore(t *testing.T) {
	snap := &Snapshot{Observations: []model.Observation{
		obs(1, "KEN", 2019, "Afrobarometer", model.TrustInstitutional, 20),
		obs(2, "KEN", 2019, "WVS", model.TrustInstitutional, 55),
	}}

	flags := runCheck(t, "cross_source", snap)
	require.Len(t, flags, 1)

	f := flags[0]
	assert.Equal(t, int64(2), f.ObservationID)
	assert.Equal(t, model.FlagCrossSource, f.FlagType)
	assert.Equal(t, model.SeverityWarning, f.Severity)
	assert.Equal(t, "Afrobarometer", f.Details["source_a"])
	assert.Equal(t, "WVS", f.Details["source_b"])
	assert.Equal(t, 35.0, f.Details["difference"])
	assert.Equal(t, "Afrobarometer (20.0) vs WVS (55.0) differ by 35.0 points", f.Reason())
}

func TestCrossSource_Thresholds(t *testing.T) {
	tests := []struct {
		name     string
		tt       model.TrustType
		a, b     float64
		wantLen  int
		severity model.Severity
	}{
		{"at threshold", model.TrustInterpersonal, 20, 50, 0, ""},
		{"error above 40", model.TrustInterpersonal, 10, 55, 1, model.SeverityError},
		{"media wider threshold", model.TrustMedia, 30, 63, 0, ""},
		{"media above 35", model.TrustMedia, 20, 56, 1, model.SeverityWarning},
		{"governance excluded", model.TrustGovernance, 10, 90, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &Snapshot{Observations: []model.Observation{
				obs(1, "BRA", 2020, "A", tt.tt, tt.a),
				obs(2, "BRA", 2020, "B", tt.tt, tt.b),
			}}
			flags := runCheck(t, "cross_source", snap)
			require.Len(t, flags, tt.wantLen)
			if tt.wantLen > 0 {
				assert.Equal(t, tt.severity, flags[0].Severity)
			}
		})
	}
}

func TestCrossSource_EachObservationFlaggedOnce(t *testing.T) {
	// 90 conflicts with both 10 and 30; it is flagged once, on the largest gap.
	snap := &Snapshot{Observations: []model.Observation{
		obs(1, "IND", 2021, "A", model.TrustInstitutional, 10),
		obs(2, "IND", 2021, "B", model.TrustInstitutional, 30),
		obs(3, "IND", 2021, "C", model.TrustInstitutional, 90),
	}}
	flags := runCheck(t, "cross_source", snap)
	require.Len(t, flags, 1)
	assert.Equal(t, int64(3), flags[0].ObservationID)
	assert.Equal(t, 80.0, flags[0].Details["difference"])
	assert.Equal(t, model.SeverityError, flags[0].Severity)
}

func TestCrossSource_Policy(t *testing.T) {
	snap := &Snapshot{Observations: []model.Observation{
		obs(1, "IND", 2021, "A", model.TrustInstitutional, 10),
		obs(2, "IND", 2021, "B", model.TrustInstitutional, 50),
	}}

	for policy, want := range map[methodology.CrossSourcePolicy][]int64{
		methodology.FlagHigher: {2},
		methodology.FlagLower:  {1},
		methodology.FlagBoth:   {2, 1},
	} {
		rules := methodology.DefaultQuality()
		rules.CrossSource.Policy = policy
		c, err := NewRegistry(rules).Get("cross_source")
		require.NoError(t, err)
		flags, err := c.Run(snap)
		require.NoError(t, err)
		assert.Equal(t, want, flagIDs(flags), "policy %s", policy)
	}
}

func TestYoY_FlagsLaterObservation(t *testing.T) {
	snap := &Snapshot{Observations: []model.Observation{
		obs(10, "CHL", 2015, "LAPOP", model.TrustInterpersonal, 70),
		obs(11, "CHL", 2018, "LAPOP", model.TrustInterpersonal, 40),
	}}

	flags := runCheck(t, "yoy_anomalies", snap)
	require.Len(t, flags, 1)

	f := flags[0]
	assert.Equal(t, int64(11), f.ObservationID)
	assert.Equal(t, model.FlagYoYAnomaly, f.FlagType)
	assert.Equal(t, model.SeverityWarning, f.Severity)
	assert.Equal(t, 2015, f.Details["prev_year"])
	assert.Equal(t, int64(10), f.Details["prev_observation_id"])
	assert.Equal(t, -30.0, f.Details["change"])
	assert.Equal(t, "Score changed -30.0 points from 2015 to 2018", f.Reason())
}

func TestYoY_ComparesOnlyPredecessor(t *testing.T) {
	// 2010->2012 and 2012->2014 each move 20 points; 2010->2014 would be 40.
	snap := &Snapshot{Observations: []model.Observation{
		obs(3, "PER", 2014, "LAPOP", model.TrustInterpersonal, 60),
		obs(1, "PER", 2010, "LAPOP", model.TrustInterpersonal, 20),
		obs(2, "PER", 2012, "LAPOP", model.TrustInterpersonal, 40),
	}}
	assert.Empty(t, runCheck(t, "yoy_anomalies", snap))
}

func TestYoY_GapAndSeverity(t *testing.T) {
	snap := &Snapshot{Observations: []model.Observation{
		// gap 6 is ignored
		obs(1, "ARG", 2000, "WVS", model.TrustInterpersonal, 10),
		obs(2, "ARG", 2006, "WVS", model.TrustInterpersonal, 60),
		// separate series per source
		obs(3, "ARG", 2006, "LAPOP", model.TrustInterpersonal, 15),
		obs(4, "ARG", 2008, "LAPOP", model.TrustInterpersonal, 60),
		obs(5, "ARG", 2009, "LAPOP", model.TrustInterpersonal, 30),
	}}
	flags := runCheck(t, "yoy_anomalies", snap)
	require.Len(t, flags, 2)
	// ordered by absolute change
	assert.Equal(t, int64(4), flags[0].ObservationID)
	assert.Equal(t, model.SeverityError, flags[0].Severity)
	assert.Equal(t, int64(5), flags[1].ObservationID)
	assert.Equal(t, model.SeverityWarning, flags[1].Severity)
}

func TestSampleSize(t *testing.T) {
	small := obs(1, "NZL", 2020, "WVS", model.TrustInterpersonal, 50)
	small.SampleN = ptrInt(40)
	low := obs(2, "NZL", 2020, "EVS", model.TrustInstitutional, 50)
	low.SampleN = ptrInt(80)
	huge := obs(3, "NZL", 2020, "CPI_Index", model.TrustCPI, 50)
	huge.SampleN = ptrInt(250000)
	missing := obs(4, "NZL", 2019, "GSS", model.TrustMedia, 50)
	missing.SampleN = nil
	exempt := obs(5, "NZL", 2019, "Eurobarometer", model.TrustMedia, 50)
	exempt.SampleN = nil
	governance := obs(6, "NZL", 2019, "WGI", model.TrustGovernance, 50)
	governance.SampleN = nil
	smallGovernance := obs(7, "NZL", 2019, "WGI", model.TrustGovernance, 50)
	smallGovernance.SampleN = ptrInt(10)

	snap := &Snapshot{Observations: []model.Observation{small, low, huge, missing, exempt, governance, smallGovernance}}
	flags := runCheck(t, "sample_size", snap)
	require.Len(t, flags, 4)

	assert.Equal(t, []int64{1, 2, 3, 4}, flagIDs(flags))
	assert.Equal(t, model.SeverityError, flags[0].Severity)
	assert.Equal(t, "Sample size of 40 is below minimum threshold of 100", flags[0].Reason())
	assert.Equal(t, model.SeverityWarning, flags[1].Severity)
	assert.Equal(t, "Sample size of 250,000 is unusually large - possible aggregation error", flags[2].Reason())
	assert.Equal(t, "Survey data missing sample size", flags[3].Reason())
	for _, f := range flags {
		assert.Equal(t, model.FlagSampleSize, f.FlagType)
	}
}

func TestSampleSize_MissingLimit(t *testing.T) {
	var corpus []model.Observation
	for i := 0; i < 5; i++ {
		o := obs(int64(i+1), "NZL", 2010+i, "GSS", model.TrustInterpersonal, 50)
		o.SampleN = nil
		corpus = append(corpus, o)
	}

	rules := methodology.DefaultQuality()
	rules.SampleSize.MissingLimit = 2
	c, err := NewRegistry(rules).Get("sample_size")
	require.NoError(t, err)
	flags, err := c.Run(&Snapshot{Observations: corpus})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, flagIDs(flags))

	rules.SampleSize.MissingLimit = 0
	c, _ = NewRegistry(rules).Get("sample_size")
	flags, err = c.Run(&Snapshot{Observations: corpus})
	require.NoError(t, err)
	assert.Len(t, flags, 5)
}

func TestStatisticalOutliers(t *testing.T) {
	binary := func(id int64, score float64) model.Observation {
		o := obs(id, "JPN", 2020, "WVS", model.TrustInterpersonal, score)
		o.Methodology = model.MethodologyBinary
		return o
	}
	fourPoint := obs(4, "JPN", 2020, "EVS", model.TrustInterpersonal, 85)
	fourPoint.Methodology = model.MethodologyFour

	snap := &Snapshot{Observations: []model.Observation{
		binary(1, 65),
		binary(2, 72),
		binary(3, 40),
		fourPoint,
		obs(5, "JPN", 2020, "WVS", model.TrustInstitutional, 2),
		obs(6, "JPN", 2020, "WGI", model.TrustGovernance, 97),
		obs(7, "JPN", 2020, "Reuters_DNR", model.TrustMedia, 12),
		obs(8, "JPN", 2020, "Reuters_DNR", model.TrustMedia, 50),
	}}

	flags := runCheck(t, "statistical_outliers", snap)
	assert.Equal(t, []int64{2, 1, 4, 5, 6, 7}, flagIDs(flags))

	sev := make(map[int64]model.Severity)
	for _, f := range flags {
		sev[f.ObservationID] = f.Severity
		assert.Equal(t, model.FlagStatisticalOutlier, f.FlagType)
		assert.NotEmpty(t, f.Details["expected_range"])
	}
	assert.Equal(t, model.SeverityError, sev[2])
	assert.Equal(t, model.SeverityWarning, sev[1])
	assert.Equal(t, model.SeverityWarning, sev[4])
	assert.Equal(t, model.SeverityError, sev[5])
	assert.Equal(t, model.SeverityWarning, sev[6])
	assert.Equal(t, model.SeverityWarning, sev[7])
}

func TestMethodologyMismatch(t *testing.T) {
	binary := obs(1, "NOR", 2020, "WVS", model.TrustInterpersonal, 58)
	binary.Methodology = model.MethodologyBinary
	zeroTen := obs(2, "NOR", 2020, "ESS", model.TrustInterpersonal, 72)
	zeroTen.Methodology = model.MethodologyZeroTen
	fine := obs(3, "NOR", 2020, "ESS", model.TrustInterpersonal, 65)
	fine.Methodology = model.MethodologyZeroTen
	untagged := obs(4, "NOR", 2020, "GSS", model.TrustInterpersonal, 80)

	flags := runCheck(t, "methodology_mismatch", &Snapshot{Observations: []model.Observation{binary, zeroTen, fine, untagged}})
	require.Len(t, flags, 2)
	assert.Equal(t, []int64{1, 2}, flagIDs(flags))
	assert.Equal(t, "binary interpersonal trust of 58.0% exceeds typical max of 55%", flags[0].Reason())
	assert.Equal(t, 70.0, flags[1].Details["expected_max"])
	for _, f := range flags {
		assert.Equal(t, model.SeverityWarning, f.Severity)
	}
}

func TestCoverageGaps(t *testing.T) {
	corpus := []model.Observation{
		obs(1, "AAA", 2020, "Tiny", model.TrustInterpersonal, 40),
		obs(2, "BBB", 2021, "Tiny", model.TrustInterpersonal, 40),
		obs(3, "ISL", 2020, "WVS", model.TrustMedia, 40),
	}
	for i, iso3 := range []string{"AAA", "BBB", "CCC", "DDD", "EEE"} {
		corpus = append(corpus, obs(int64(10+i), iso3, 2020, "WVS", model.TrustInterpersonal, 40))
	}
	snap := &Snapshot{
		Observations: corpus,
		CountryNames: map[string]string{"ISL": "Iceland", "AAA": "Aland"},
	}

	flags := runCheck(t, "coverage_gaps", snap)
	require.Len(t, flags, 2)

	src := flags[0]
	assert.True(t, src.IsCoverage())
	assert.Equal(t, model.FlagCoverageGap, src.FlagType)
	assert.Equal(t, "Tiny", src.Details["source"])
	assert.Equal(t, 2, src.Details["country_count"])
	assert.Equal(t, "2020-2021", src.Details["year_range"])

	single := flags[1]
	assert.True(t, single.IsCoverage())
	assert.Equal(t, "ISL", single.Details["iso3"])
	assert.Equal(t, "Iceland (ISL) has only 1 observation", single.Reason())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(methodology.DefaultQuality())
	assert.Equal(t, []string{
		"statistical_outliers", "yoy_anomalies", "cross_source",
		"methodology_mismatch", "sample_size", "coverage_gaps",
	}, reg.Names())

	_, err := reg.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown check "nope"`)

	selected, unknown := reg.Select([]string{"cross_source", "nope", "yoy_anomalies", "cross_source"})
	require.Len(t, selected, 2)
	assert.Equal(t, "cross_source", selected[0].Name())
	assert.Equal(t, "yoy_anomalies", selected[1].Name())
	assert.Equal(t, []string{"nope"}, unknown)

	all, unknown := reg.Select(nil)
	assert.Len(t, all, 6)
	assert.Empty(t, unknown)

	for _, c := range all {
		assert.NotEmpty(t, c.Description(), c.Name())
	}
}
