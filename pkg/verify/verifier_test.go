package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-ai/conclave/pkg/models"
)

func fixedHorizon(months int) func(models.Intent) int {
	return func(models.Intent) int { return months }
}

func newTestVerifier(horizonMonths int, now time.Time) *Verifier {
	v := New(fixedHorizon(horizonMonths))
	v.now = func() time.Time { return now }
	return v
}

func numFacts(values ...float64) *models.PrefetchResult {
	r := &models.PrefetchResult{}
	for _, v := range values {
		r.Facts = append(r.Facts, models.PrefetchFact{
			Metric: "m", Value: models.NumberValue(v), SourceID: "s", Confidence: 0.9,
		})
	}
	return r
}

var testNow = time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

func TestVerifier_CitedAndBackedClaimPasses(t *testing.T) {
	v := newTestVerifier(24, testNow)
	reports := []models.AgentReport{{
		AgentID:    "labor",
		Narrative:  "Unemployment stands at 0.1% according to indicator-store data.",
		Confidence: 0.9,
		Citations:  []models.Citation{{Quote: "unemployment rate 0.1%", SourceID: "indicator-store"}},
	}}

	result := v.Run(reports, numFacts(0.1), models.IntentDiagnostic)

	assert.Equal(t, 0, result.FabricatedNumbers)
	assert.Equal(t, 0, result.UncitedClaims)
	assert.Empty(t, result.Violations)
}

func TestVerifier_UnbackedNumberIsFabricated(t *testing.T) {
	v := newTestVerifier(24, testNow)
	reports := []models.AgentReport{{
		AgentID:    "macro",
		Narrative:  "GDP will certainly grow by 9.7% under this plan.",
		Confidence: 0.9,
	}}

	result := v.Run(reports, numFacts(2.4), models.IntentPolicy)

	assert.Equal(t, 1, result.FabricatedNumbers)
	assert.Equal(t, 1, result.UncitedClaims)
	require.Len(t, result.Violations, 2)
	assert.Equal(t, "9.7%", result.Violations[0].Claim)
}

func TestVerifier_FactBackedButUncited(t *testing.T) {
	// A number matching a prefetched fact is not fabricated, but with no
	// citation reference nearby it is still an uncited claim.
	v := newTestVerifier(24, testNow)
	reports := []models.AgentReport{{
		AgentID:    "labor",
		Narrative:  "The rate is 0.1% which supports gradual policy.",
		Confidence: 0.9,
	}}

	result := v.Run(reports, numFacts(0.1), models.IntentDiagnostic)

	assert.Equal(t, 0, result.FabricatedNumbers)
	assert.Equal(t, 1, result.UncitedClaims)
}

func TestVerifier_MetadataBacksNumbers(t *testing.T) {
	v := newTestVerifier(24, testNow)
	reports := []models.AgentReport{{
		AgentID:    "macro",
		Narrative:  "Growth of 2.5 is plausible.",
		Confidence: 0.9,
		Metadata:   map[string]string{"metric:gdp_growth": "2.5"},
	}}

	result := v.Run(reports, nil, models.IntentPolicy)

	assert.Equal(t, 0, result.FabricatedNumbers)
}

func TestVerifier_CitationWindow(t *testing.T) {
	cite := []models.Citation{{Quote: "official statistics bulletin", SourceID: "psa"}}

	t.Run("within window", func(t *testing.T) {
		v := newTestVerifier(24, testNow)
		reports := []models.AgentReport{{
			AgentID:    "a",
			Narrative:  "Per psa figures, inflation reached 3.1% last quarter.",
			Confidence: 0.9,
			Citations:  cite,
		}}

		result := v.Run(reports, nil, models.IntentDiagnostic)
		assert.Equal(t, 0, result.UncitedClaims)
	})

	t.Run("outside window", func(t *testing.T) {
		v := newTestVerifier(24, testNow)
		padding := "The broader analytical context considered here spans many dimensions of the labor market. "
		reports := []models.AgentReport{{
			AgentID:    "a",
			Narrative:  "psa bulletin. " + padding + "Inflation reached 3.1% last quarter.",
			Confidence: 0.9,
			Citations:  cite,
		}}

		result := v.Run(reports, nil, models.IntentDiagnostic)
		assert.Equal(t, 1, result.UncitedClaims)
	})
}

func TestVerifier_Freshness(t *testing.T) {
	t.Run("stale year flagged", func(t *testing.T) {
		v := newTestVerifier(12, testNow)
		reports := []models.AgentReport{{
			AgentID:    "a",
			Narrative:  "Based on the 2022 census the workforce grew.",
			Confidence: 0.9,
		}}

		result := v.Run(reports, nil, models.IntentTrend)

		assert.Equal(t, 1, result.StaleClaims)
		require.Len(t, result.Violations, 1)
		assert.Equal(t, models.ViolationStaleClaim, result.Violations[0].Kind)
		assert.Equal(t, "2022", result.Violations[0].Claim)
	})

	t.Run("recent year passes", func(t *testing.T) {
		v := newTestVerifier(24, testNow)
		reports := []models.AgentReport{{
			AgentID:    "a",
			Narrative:  "The 2025 survey shows improvement.",
			Confidence: 0.9,
		}}

		result := v.Run(reports, nil, models.IntentPolicy)
		assert.Equal(t, 0, result.StaleClaims)
	})

	t.Run("future years are targets not claims", func(t *testing.T) {
		v := newTestVerifier(12, testNow)
		reports := []models.AgentReport{{
			AgentID:    "a",
			Narrative:  "Self-sufficiency should reach its target by 2030.",
			Confidence: 0.9,
		}}

		result := v.Run(reports, nil, models.IntentForecast)
		assert.Equal(t, 0, result.StaleClaims)
	})
}

func TestVerifier_SkipsEmptyReports(t *testing.T) {
	v := newTestVerifier(24, testNow)
	reports := []models.AgentReport{models.EmptyReport("gone", "timed out")}

	result := v.Run(reports, nil, models.IntentPolicy)

	assert.Empty(t, result.Violations)
}
