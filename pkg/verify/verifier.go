// Package verify runs structural checks over the agent reports: citation
// proximity for quantitative claims, numeric-fabrication cross-referencing
// against prefetched facts, and claim freshness against per-intent horizons.
// The verifier never fails the request; violations flow into the synthesis
// as warnings.
package verify

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conclave-ai/conclave/pkg/models"
)

// citationWindow is the character distance within which a numeric claim must
// sit from a citation reference to count as cited.
const citationWindow = 40

var (
	// Numeric claims: integers, decimals, optional percent sign.
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?%?`)
	// Year mentions feed the freshness check and are excluded from the
	// citation and fabrication checks.
	yearRe = regexp.MustCompile(`^(19|20)\d{2}$`)
)

// Verifier checks reports against the prefetched facts.
type Verifier struct {
	horizonMonths func(models.Intent) int
	now           func() time.Time
}

// New creates a verifier. horizonMonths maps an intent to its freshness
// horizon in months.
func New(horizonMonths func(models.Intent) int) *Verifier {
	return &Verifier{horizonMonths: horizonMonths, now: time.Now}
}

// Run verifies every report and returns the per-category counts plus the
// violation list.
func (v *Verifier) Run(reports []models.AgentReport, prefetch *models.PrefetchResult, intent models.Intent) *models.Verification {
	out := &models.Verification{}
	facts := factIndex(prefetch)
	horizon := v.horizonMonths(intent)
	currentYear := v.now().UTC().Year()
	currentMonth := int(v.now().UTC().Month())

	for i := range reports {
		r := &reports[i]
		if r.IsEmpty() {
			continue
		}
		v.checkNumbers(out, r, facts)
		v.checkFreshness(out, r, horizon, currentYear, currentMonth)
	}
	return out
}

// checkNumbers runs the citation and fabrication checks over every numeric
// token in the narrative.
func (v *Verifier) checkNumbers(out *models.Verification, r *models.AgentReport, facts []float64) {
	narrative := r.Narrative
	metaClaims := metadataValues(r)

	for _, loc := range numberRe.FindAllStringIndex(narrative, -1) {
		token := narrative[loc[0]:loc[1]]
		if yearRe.MatchString(token) {
			continue
		}

		cited := citedNearby(narrative, loc[0], loc[1], r.Citations)
		backed := cited ||
			matchesFact(token, facts) ||
			matchesFact(token, metaClaims) ||
			inAnyCitation(token, r.Citations)

		if !cited {
			out.UncitedClaims++
			out.Violations = append(out.Violations, models.Violation{
				Kind:    models.ViolationUncitedClaim,
				AgentID: r.AgentID,
				Claim:   token,
				Detail:  "no citation reference within the claim window",
			})
		}
		if !backed {
			out.FabricatedNumbers++
			out.Violations = append(out.Violations, models.Violation{
				Kind:    models.ViolationFabricatedNumber,
				AgentID: r.AgentID,
				Claim:   token,
				Detail:  "no prefetched fact or citation backs this number",
			})
		}
	}
}

// checkFreshness flags year mentions older than the intent's horizon.
// A year mention is aged from its December, the most charitable reading.
func (v *Verifier) checkFreshness(out *models.Verification, r *models.AgentReport, horizonMonths, currentYear, currentMonth int) {
	for _, token := range numberRe.FindAllString(r.Narrative, -1) {
		if !yearRe.MatchString(token) {
			continue
		}
		year, err := strconv.Atoi(token)
		if err != nil || year > currentYear {
			// Future years are targets, not claims.
			continue
		}
		ageMonths := (currentYear-year-1)*12 + currentMonth
		if ageMonths > horizonMonths {
			out.StaleClaims++
			out.Violations = append(out.Violations, models.Violation{
				Kind:    models.ViolationStaleClaim,
				AgentID: r.AgentID,
				Claim:   token,
				Detail:  "claim references data older than the intent's freshness horizon",
			})
		}
	}
}

// citedNearby reports whether any citation reference appears within the
// window around a numeric token: either the token sits inside an occurrence
// of a citation quote, or a citation's source id is mentioned nearby.
func citedNearby(narrative string, start, end int, citations []models.Citation) bool {
	lo := start - citationWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + citationWindow
	if hi > len(narrative) {
		hi = len(narrative)
	}
	window := strings.ToLower(narrative[lo:hi])

	for _, c := range citations {
		if c.SourceID != "" && strings.Contains(window, strings.ToLower(c.SourceID)) {
			return true
		}
		if c.Quote != "" && strings.Contains(window, strings.ToLower(firstFragment(c.Quote))) {
			return true
		}
	}
	return false
}

// firstFragment keeps quote matching cheap: the first few words identify an
// inline quotation without requiring the full quote verbatim.
func firstFragment(quote string) string {
	words := strings.Fields(quote)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Join(words, " ")
}

func inAnyCitation(token string, citations []models.Citation) bool {
	for _, c := range citations {
		if strings.Contains(c.Quote, token) {
			return true
		}
	}
	return false
}

// factIndex flattens the numeric prefetch facts.
func factIndex(prefetch *models.PrefetchResult) []float64 {
	if prefetch == nil {
		return nil
	}
	var out []float64
	for _, f := range prefetch.Facts {
		if f.Value.Kind == models.FactValueNumber {
			out = append(out, f.Value.Number)
		}
	}
	return out
}

// metadataValues extracts the numeric metric claims a report publishes in its
// metadata ("metric:<name>" entries).
func metadataValues(r *models.AgentReport) []float64 {
	var out []float64
	for key, raw := range r.Metadata {
		if !strings.HasPrefix(key, "metric:") {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// matchesFact parses the token (stripping a trailing %) and compares against
// the known values with a small relative epsilon.
func matchesFact(token string, values []float64) bool {
	v, err := strconv.ParseFloat(strings.TrimSuffix(token, "%"), 64)
	if err != nil {
		return false
	}
	for _, known := range values {
		if nearlyEqual(v, known) {
			return true
		}
	}
	return false
}

func nearlyEqual(a, b float64) bool {
	if a == b {
		return true
	}
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return false
	}
	return math.Abs(a-b)/denom < 0.001
}
