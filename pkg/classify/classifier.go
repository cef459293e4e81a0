// Package classify turns a natural-language question into a Classification.
// The classifier is deterministic and local: a lexicon-driven scorer over an
// intent catalog plus entity extraction and a time-horizon miner. It never
// calls out and never fails — below-threshold confidence downgrades to
// intent=generic, complexity=standard instead.
package classify

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// Scoring weights. Confidence is a bounded additive score: a keyword base
// plus a small bonus per extracted entity kind.
const (
	baseScore      = 0.40
	keywordWeight  = 0.15
	entityWeight   = 0.05
	maxConfidence  = 0.95
	strategicYears = 3
)

var (
	// Money amounts like "$15B", "$3.5 billion", "QAR 200m".
	moneyAmountRe = regexp.MustCompile(`(?i)(\$|usd|qar|eur)\s?\d+(\.\d+)?\s?(b|bn|billion|m|mn|million|tn|trillion)\b`)
	// Four-digit years in the 2000s.
	yearRe = regexp.MustCompile(`\b(20\d{2})\b`)
	// Relative horizons like "next 5 years", "over 10 years", "10-year".
	relHorizonRe = regexp.MustCompile(`(?i)\b(?:next|over|within)\s+(\d{1,2})\s+years?\b|\b(\d{1,2})-year\b`)
)

// Classifier assigns intent, complexity, and entities to a question.
type Classifier struct {
	minConfidence float64
	now           func() time.Time
}

// New creates a classifier with the given minimum-confidence threshold.
func New(minConfidence float64) *Classifier {
	return &Classifier{minConfidence: minConfidence, now: time.Now}
}

// Classify interprets the question. Pure with respect to its input: the same
// question always yields the same Classification within a process run.
func (c *Classifier) Classify(question string) *models.Classification {
	q := strings.ToLower(question)

	intent, floor, keywordHits := c.scoreIntent(q)
	entities := c.extractEntities(q)
	horizonYears := c.mineHorizon(q)
	if horizonYears > 0 {
		entities[models.EntityKindTimeWindow] = append(entities[models.EntityKindTimeWindow],
			strconv.Itoa(horizonYears)+"y")
	}

	confidence := baseScore + keywordWeight*float64(keywordHits) + entityWeight*float64(len(entities))
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	if confidence < c.minConfidence {
		// Downgrade rather than fail: the pipeline proceeds with a generic
		// standard-complexity classification.
		return &models.Classification{
			Intent:     models.IntentGeneric,
			Complexity: models.ComplexityStandard,
			Confidence: confidence,
			Entities:   nilIfEmpty(entities),
			Routing:    models.RoutingLLMAgents,
		}
	}

	complexity := floor
	complexity = complexity.Max(entityComplexity(entities))
	complexity = complexity.Max(horizonComplexity(horizonYears))
	if c.hasStrategicSignal(q, horizonYears) {
		complexity = models.ComplexityComplex
	}

	return &models.Classification{
		Intent:     intent,
		Complexity: complexity,
		Confidence: confidence,
		Entities:   nilIfEmpty(entities),
		Routing:    routingFor(q),
	}
}

// scoreIntent picks the catalog entry with the most keyword hits. Ties go to
// the earlier catalog entry so scoring stays deterministic.
func (c *Classifier) scoreIntent(q string) (models.Intent, models.Complexity, int) {
	bestIntent := models.IntentGeneric
	bestFloor := models.ComplexityStandard
	bestHits := 0
	for _, entry := range intentCatalog {
		hits := 0
		for _, kw := range entry.Keywords {
			if containsWord(q, kw) {
				hits++
			}
		}
		if hits > bestHits {
			bestIntent = entry.Intent
			bestFloor = entry.ComplexityFloor
			bestHits = hits
		}
	}
	return bestIntent, bestFloor, bestHits
}

// extractEntities scans the sector, metric, and country lexicons. Values are
// normalized, deduplicated, and sorted for deterministic output.
func (c *Classifier) extractEntities(q string) map[string][]string {
	entities := make(map[string][]string)
	scan := func(kind string, lexicon map[string]string) {
		seen := make(map[string]bool)
		for surface, normalized := range lexicon {
			if containsWord(q, surface) && !seen[normalized] {
				seen[normalized] = true
				entities[kind] = append(entities[kind], normalized)
			}
		}
		sort.Strings(entities[kind])
	}
	scan(models.EntityKindSector, sectorLexicon)
	scan(models.EntityKindMetric, metricLexicon)
	scan(models.EntityKindCountry, countryLexicon)
	for kind, vals := range entities {
		if len(vals) == 0 {
			delete(entities, kind)
		}
	}
	return entities
}

// mineHorizon extracts a time horizon in years: the farthest future year
// mentioned, or an explicit relative horizon. Returns 0 when none is found.
func (c *Classifier) mineHorizon(q string) int {
	currentYear := c.now().UTC().Year()
	horizon := 0
	for _, m := range yearRe.FindAllStringSubmatch(q, -1) {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if delta := year - currentYear; delta > horizon {
			horizon = delta
		}
	}
	for _, m := range relHorizonRe.FindAllStringSubmatch(q, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if years, err := strconv.Atoi(raw); err == nil && years > horizon {
			horizon = years
		}
	}
	return horizon
}

// hasStrategicSignal reports whether the question carries a strategic-keyword
// override: investment amounts, national-strategy terms, or a horizon beyond
// three years. Any hit forces complexity=complex.
func (c *Classifier) hasStrategicSignal(q string, horizonYears int) bool {
	if moneyAmountRe.MatchString(q) {
		return true
	}
	if horizonYears > strategicYears {
		return true
	}
	for _, kw := range strategicKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// routingFor picks the short deterministic path only for pure definitional
// lookups; everything else takes the full analytical path.
func routingFor(q string) models.Routing {
	if strings.HasPrefix(q, "define ") || strings.Contains(q, "what does") && strings.Contains(q, "mean") {
		return models.RoutingDeterministic
	}
	return models.RoutingLLMAgents
}

// entityComplexity buckets entity multiplicity: five or more extracted
// entities suggest a multi-dimensional question.
func entityComplexity(entities map[string][]string) models.Complexity {
	total := 0
	for _, vals := range entities {
		total += len(vals)
	}
	switch {
	case total >= 5:
		return models.ComplexityComplex
	case total >= 3:
		return models.ComplexityStandard
	default:
		return models.ComplexitySimple
	}
}

// horizonComplexity buckets the mined time horizon.
func horizonComplexity(years int) models.Complexity {
	switch {
	case years > strategicYears:
		return models.ComplexityComplex
	case years >= 1:
		return models.ComplexityStandard
	default:
		return models.ComplexitySimple
	}
}

// containsWord reports whether q contains the phrase at a word boundary.
// Plain substring match would turn "gas" into a hit inside "gastronomy".
func containsWord(q, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(q[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordByte(q[start-1])
		afterOK := end == len(q) || !isWordByte(q[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func nilIfEmpty(m map[string][]string) map[string][]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
