package debate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/conclave-ai/conclave/pkg/models"
)

// metricMetadataPrefix is the convention agents use to publish their
// quantitative positions: a metadata entry "metric:<name>" whose value parses
// as a float. Contradiction detection, resolution, and the verifier all read
// this convention.
const metricMetadataPrefix = "metric:"

// Severity buckets on the relative difference between two values.
const (
	severityHighRelDiff   = 0.50
	severityMediumRelDiff = 0.20
)

// metricClaim is one agent's numeric position on a named metric.
type metricClaim struct {
	agentID    string
	value      float64
	confidence float64
	citation   *models.Citation
}

// metricClaims extracts the metric claims from a report, sorted by metric
// name for deterministic iteration.
func metricClaims(r *models.AgentReport) map[string]metricClaim {
	claims := make(map[string]metricClaim)
	for key, raw := range r.Metadata {
		metric, ok := strings.CutPrefix(key, metricMetadataPrefix)
		if !ok {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		claims[metric] = metricClaim{
			agentID:    r.AgentID,
			value:      value,
			confidence: r.Confidence,
			citation:   citationFor(r, metric),
		}
	}
	return claims
}

// citationFor finds a citation whose quote mentions the metric name, if any.
func citationFor(r *models.AgentReport, metric string) *models.Citation {
	needle := strings.ReplaceAll(metric, "_", " ")
	for i := range r.Citations {
		quote := strings.ToLower(r.Citations[i].Quote)
		if strings.Contains(quote, needle) || strings.Contains(quote, metric) {
			return &r.Citations[i]
		}
	}
	return nil
}

// detectContradictions compares every pair of reports metric by metric and
// flags pairs whose values differ by more than the relative tolerance.
// Severity follows the relative difference. Results are ordered by
// (metric, first agent, second agent).
func detectContradictions(reports []models.AgentReport, tolerance float64) []models.Contradiction {
	byMetric := make(map[string][]metricClaim)
	for i := range reports {
		for metric, claim := range metricClaims(&reports[i]) {
			byMetric[metric] = append(byMetric[metric], claim)
		}
	}

	metrics := make([]string, 0, len(byMetric))
	for m := range byMetric {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	var out []models.Contradiction
	for _, metric := range metrics {
		claims := byMetric[metric]
		sort.Slice(claims, func(i, j int) bool { return claims[i].agentID < claims[j].agentID })
		for i := 0; i < len(claims); i++ {
			for j := i + 1; j < len(claims); j++ {
				relDiff := relativeDifference(claims[i].value, claims[j].value)
				if relDiff <= tolerance {
					continue
				}
				out = append(out, models.Contradiction{
					Metric:   metric,
					First:    side(claims[i]),
					Second:   side(claims[j]),
					Severity: severityFor(relDiff),
				})
			}
		}
	}
	return out
}

func side(c metricClaim) models.ContradictionSide {
	return models.ContradictionSide{
		AgentID:    c.agentID,
		Value:      c.value,
		Citation:   c.citation,
		Confidence: c.confidence,
	}
}

// relativeDifference is |a-b| over the larger magnitude; both zero means no
// difference.
func relativeDifference(a, b float64) float64 {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return 0
	}
	return math.Abs(a-b) / denom
}

func severityFor(relDiff float64) models.ContradictionSeverity {
	switch {
	case relDiff >= severityHighRelDiff:
		return models.SeverityHigh
	case relDiff >= severityMediumRelDiff:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// resolveContradiction proposes a resolution from source rank and confidence:
// a cited side beats an uncited one, otherwise the clearly more confident
// side wins, otherwise both positions stand flagged for review.
func resolveContradiction(c models.Contradiction) models.Resolution {
	firstCited := c.First.Citation != nil
	secondCited := c.Second.Citation != nil

	switch {
	case firstCited && !secondCited:
		return resolutionFor(c, true, "only one side cites a source")
	case secondCited && !firstCited:
		return resolutionFor(c, false, "only one side cites a source")
	}

	confGap := c.First.Confidence - c.Second.Confidence
	switch {
	case confGap >= 0.2:
		return resolutionFor(c, true, "materially higher confidence")
	case confGap <= -0.2:
		return resolutionFor(c, false, "materially higher confidence")
	}

	return models.Resolution{
		Kind: models.ResolutionBothValid,
		Explanation: fmt.Sprintf("%s: %s and %s disagree (%g vs %g) with comparable support; carrying both",
			c.Metric, c.First.AgentID, c.Second.AgentID, c.First.Value, c.Second.Value),
		Confidence: 0.3,
		Action:     models.ActionFlagForReview,
	}
}

func resolutionFor(c models.Contradiction, first bool, why string) models.Resolution {
	winner := c.First
	kind := models.ResolutionFirstCorrect
	action := models.ActionUseFirst
	if !first {
		winner = c.Second
		kind = models.ResolutionSecondCorrect
		action = models.ActionUseSecond
	}
	value := winner.Value
	return models.Resolution{
		Kind: kind,
		Explanation: fmt.Sprintf("%s: preferring %s's value %g (%s)",
			c.Metric, winner.AgentID, winner.Value, why),
		RecommendedValue: &value,
		RecommendedCite:  winner.Citation,
		Confidence:       winner.Confidence,
		Action:           action,
	}
}

// metricRange bounds a recognized metric for the data-quality validator.
type metricRange struct {
	min, max float64
}

// recognizedRanges covers the metrics the validator knows how to sanity-check.
// Values are percentages except where noted.
var recognizedRanges = map[string]metricRange{
	"unemployment_rate":  {0, 100},
	"participation_rate": {0, 100},
	"gdp_growth":         {-50, 50},
	"inflation_rate":     {-25, 100},
	"fdi_share":          {0, 100},
	"self_sufficiency":   {0, 100},
	"interest_rate":      {-5, 100},
}

// validateDataQuality runs once at the end of the opening phase: out-of-range
// values on recognized metrics produce warnings attached to the offending
// report's agent. Warnings flow into the final synthesis.
func validateDataQuality(reports []models.AgentReport) []models.DataQualityWarning {
	var warnings []models.DataQualityWarning
	for i := range reports {
		claims := metricClaims(&reports[i])
		metrics := make([]string, 0, len(claims))
		for m := range claims {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, metric := range metrics {
			bounds, recognized := recognizedRanges[metric]
			if !recognized {
				continue
			}
			v := claims[metric].value
			if v < bounds.min || v > bounds.max {
				warnings = append(warnings, models.DataQualityWarning{
					AgentID: reports[i].AgentID,
					Metric:  metric,
					Value:   v,
					Reason: fmt.Sprintf("value %g outside plausible range [%g, %g]",
						v, bounds.min, bounds.max),
				})
			}
		}
	}
	return warnings
}
