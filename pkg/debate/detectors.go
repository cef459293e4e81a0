package debate

import "strings"

// Detector window sizes and thresholds. Both detectors are incremental
// sliding-window state machines: each turn is scored once on arrival and the
// window counters are adjusted as old turns fall out.
const (
	metaWindowSize      = 10
	metaPhrasesPerTurn  = 2 // phrases in one turn to flag it
	metaFlaggedTurns    = 7 // flagged turns in the window to fire
	metaMinTotalTurns   = 30
	substantiveWindow   = 8
	agreementThreshold  = 6
	repetitionThreshold = 3
)

// metaDetector watches for the degenerate regime where agents argue about the
// shape of the argument instead of the question. It fires at most the caller's
// discretion; the detector itself only reports the condition.
type metaDetector struct {
	vocabulary []string

	window  []bool // flagged status of the last metaWindowSize turns
	flagged int    // count of true entries in window
}

func newMetaDetector(vocabulary []string) *metaDetector {
	return &metaDetector{vocabulary: vocabulary}
}

// observe scores one new turn and reports whether the meta-debate condition
// holds: the current turn carries two or more meta phrases, at least seven of
// the windowed turns are flagged, and the debate is past turn 30.
func (d *metaDetector) observe(utterance string, totalTurns int) bool {
	lower := strings.ToLower(utterance)
	hits := 0
	for _, phrase := range d.vocabulary {
		if strings.Contains(lower, phrase) {
			hits++
			if hits >= metaPhrasesPerTurn {
				break
			}
		}
	}
	turnFlagged := hits >= metaPhrasesPerTurn

	d.window = append(d.window, turnFlagged)
	if turnFlagged {
		d.flagged++
	}
	if len(d.window) > metaWindowSize {
		if d.window[0] {
			d.flagged--
		}
		d.window = d.window[1:]
	}

	return turnFlagged && d.flagged >= metaFlaggedTurns && totalTurns >= metaMinTotalTurns
}

// Agreement and repetition phrase lists for the substantive-completion
// detector. Matching is case-insensitive substring.
var (
	agreementPhrases = []string{
		"i agree",
		"we agree",
		"agreed",
		"consensus",
		"aligned on",
		"i concur",
		"no objection",
		"same conclusion",
		"converging on",
	}
	repetitionPhrases = []string{
		"as i said",
		"as i stated",
		"as mentioned",
		"already stated",
		"already covered",
		"reiterating",
		"as noted before",
		"repeating my",
	}
)

// substantiveDetector watches the last eight turns for explicit agreement or
// repetition. A hit on either threshold means further turns would add
// nothing; the orchestrator ends the debate at the next phase boundary.
type substantiveDetector struct {
	window      []turnScore
	agreements  int
	repetitions int
}

type turnScore struct {
	agreements  int
	repetitions int
}

func newSubstantiveDetector() *substantiveDetector {
	return &substantiveDetector{}
}

// observe scores one new turn and reports whether the completion condition
// holds over the window.
func (d *substantiveDetector) observe(utterance string) bool {
	lower := strings.ToLower(utterance)
	score := turnScore{}
	for _, phrase := range agreementPhrases {
		if strings.Contains(lower, phrase) {
			score.agreements++
		}
	}
	for _, phrase := range repetitionPhrases {
		if strings.Contains(lower, phrase) {
			score.repetitions++
		}
	}

	d.window = append(d.window, score)
	d.agreements += score.agreements
	d.repetitions += score.repetitions
	if len(d.window) > substantiveWindow {
		old := d.window[0]
		d.agreements -= old.agreements
		d.repetitions -= old.repetitions
		d.window = d.window[1:]
	}

	return d.agreements >= agreementThreshold || d.repetitions >= repetitionThreshold
}

// similarity is the [0,1] lexical similarity used for the convergence check
// between successive consensus statements: Jaccard overlap over lowercase
// token sets.
func similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?()\"'")
		if len(tok) > 2 {
			set[tok] = true
		}
	}
	return set
}
