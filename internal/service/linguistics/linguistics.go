// Package linguistics extracts clarity and coherence features from plain
// transcript text. Every function here is pure.
package linguistics

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"speech-coach-service/internal/models"
)

// DefaultFillers is the filler lexicon used by the package-level helpers.
// Multi-word entries are matched as fixed phrases.
var DefaultFillers = []string{
	"um", "uh", "er", "ah",
	"like", "you know", "basically", "actually", "literally",
	"sort of", "kind of", "i mean",
}

// Articulation and coherence constants.
const (
	fillerPenalty  = 5
	slowRateWPM    = 80
	slowPenalty    = 10
	fastRateWPM    = 200
	fastPenalty    = 15
	optimalLowWPM  = 120
	optimalHighWPM = 160
	optimalBonus   = 5

	coherenceBase    = 70
	markerBonus      = 10
	lengthBonus      = 10
	shortPenalty     = 20
	completeMinWords = 30
	completeMaxWords = 200
	shortAnswerWords = 20
)

var (
	connectiveMarkers = []string{"because", "therefore", "however"}
	exemplarMarkers   = []string{"for example", "specifically", "such as"}
)

// Detector matches a fixed filler lexicon against transcripts.
type Detector struct {
	lexicon  []string
	patterns []*regexp.Regexp
}

// NewDetector compiles a case-insensitive whole-word matcher per lexicon
// entry. Empty entries are skipped.
func NewDetector(lexicon []string) *Detector {
	d := &Detector{}
	for _, word := range lexicon {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		parts := strings.Fields(word)
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		d.lexicon = append(d.lexicon, word)
		d.patterns = append(d.patterns, regexp.MustCompile(`(?i)\b`+strings.Join(parts, `\s+`)+`\b`))
	}
	return d
}

var defaultDetector = NewDetector(DefaultFillers)

type match struct {
	pos   int
	entry int
}

// Detect returns every filler occurrence in transcript order. Each occurrence
// counts once; overlapping phrases are not de-duplicated. Tokens are
// returned in their lexicon (lowercase) form.
func (d *Detector) Detect(transcript string) []string {
	if transcript == "" {
		return []string{}
	}
	var matches []match
	for i, re := range d.patterns {
		for _, loc := range re.FindAllStringIndex(transcript, -1) {
			matches = append(matches, match{pos: loc[0], entry: i})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].pos != matches[b].pos {
			return matches[a].pos < matches[b].pos
		}
		return matches[a].entry < matches[b].entry
	})
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = d.lexicon[m.entry]
	}
	return out
}

// DetectFillerWords runs the default lexicon against transcript.
func DetectFillerWords(transcript string) []string {
	return defaultDetector.Detect(transcript)
}

// CountWords counts whitespace-separated tokens.
func CountWords(transcript string) int {
	return len(strings.Fields(transcript))
}

// SpeechRate returns words per minute rounded to the nearest integer. A
// non-positive duration yields 0.
func SpeechRate(wordCount int, durationSeconds float64) int {
	if durationSeconds <= 0 || wordCount <= 0 {
		return 0
	}
	return int(math.Round(float64(wordCount) / (durationSeconds / 60)))
}

// Articulation scores delivery from filler count and speech rate.
func Articulation(fillerCount, speechRate int) int {
	score := 100 - fillerPenalty*fillerCount
	switch {
	case speechRate < slowRateWPM:
		score -= slowPenalty
	case speechRate > fastRateWPM:
		score -= fastPenalty
	case speechRate >= optimalLowWPM && speechRate <= optimalHighWPM:
		score += optimalBonus
	}
	return Clamp(score)
}

// Coherence applies the lexical structure and completeness heuristics.
// Markers match case-sensitively, so a capitalized "Because" opening a
// sentence earns no bonus. Relevance stays at the base score; there is no
// semantic model behind it.
func Coherence(transcript string, wordCount int) models.CoherenceStats {
	relevance, structure, completeness := coherenceBase, coherenceBase, coherenceBase

	if containsAny(transcript, connectiveMarkers) {
		structure += markerBonus
	}
	if containsAny(transcript, exemplarMarkers) {
		completeness += markerBonus
	}
	switch {
	case wordCount >= completeMinWords && wordCount <= completeMaxWords:
		completeness += lengthBonus
	case wordCount < shortAnswerWords:
		completeness -= shortPenalty
	}

	return models.CoherenceStats{
		RelevanceScore:    Clamp(relevance),
		StructureScore:    Clamp(structure),
		CompletenessScore: Clamp(completeness),
	}
}

// Clarity bundles filler detection, rate and articulation.
func (d *Detector) Clarity(transcript string, wordCount int, durationSeconds float64) models.ClarityStats {
	fillers := d.Detect(transcript)
	rate := SpeechRate(wordCount, durationSeconds)
	return models.ClarityStats{
		FillerWords:     fillers,
		FillerWordCount: len(fillers),
		SpeechRate:      rate,
		Articulation:    Articulation(len(fillers), rate),
	}
}

// Clamp bounds a score to [0,100].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
