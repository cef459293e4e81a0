package prefetch

import "github.com/conclave-ai/conclave/pkg/models"

// defaultFactConfidence applies when a source reports no confidence of its
// own. Connector data is treated as reasonably reliable but not certain.
const defaultFactConfidence = 0.8

// extractFacts converts a source's raw records into PrefetchFacts, preserving
// record order. Records without a metric name are dropped; confidence is
// clamped into [0,1] and defaulted when absent.
func extractFacts(sourceID string, result *SourceResult) []models.PrefetchFact {
	if result == nil {
		return nil
	}
	facts := make([]models.PrefetchFact, 0, len(result.Records))
	for _, rec := range result.Records {
		if rec.Metric == "" {
			continue
		}
		conf := rec.Confidence
		if conf == 0 {
			conf = defaultFactConfidence
		}
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		value := rec.Value
		if value.Kind == models.FactValueString {
			// Re-apply the bounded-string rule in case the connector built the
			// FactValue directly.
			value = models.StringValue(value.Str)
		}
		facts = append(facts, models.PrefetchFact{
			Metric:     rec.Metric,
			Value:      value,
			SourceID:   sourceID,
			Confidence: conf,
			Snippet:    rec.Snippet,
		})
	}
	return facts
}
