// Package feedback turns SpeechAnalysis snapshots into prioritized feedback
// items, either once per session (final) or on a running cadence (live).
package feedback

import (
	"sort"
	"strings"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/service/linguistics"
)

// Final thresholds.
const (
	erraticConsistency  = 40
	unsteadyConsistency = 70
	maxFillerWords      = 5
	maxFinalRateWPM     = 200
	minRelevance        = 80
	minStructure        = 70
	excellentOverall    = 85
)

// Live thresholds.
const (
	minLiveTranscriptLen = 10
	liveFastWPM          = 180
	liveSlowWPM          = 150
	structureHintWords   = 50
)

var structureMarkers = []string{"first", "second", "finally"}

// Generator renders feedback with a fixed style.
type Generator struct {
	style Style
}

// NewGenerator returns a generator for style. Unknown styles fall back to
// the standard message set.
func NewGenerator(style Style) *Generator {
	if _, ok := templates[style]; !ok {
		style = StyleStandard
	}
	return &Generator{style: style}
}

// Style returns the generator's message set.
func (g *Generator) Style() Style {
	return g.style
}

// Final runs the full threshold table. Items are returned in evaluation
// order, not sorted by priority.
func (g *Generator) Final(a models.SpeechAnalysis) []models.FeedbackItem {
	items := []models.FeedbackItem{}

	switch {
	case a.Volume.Consistency < erraticConsistency:
		items = append(items, g.style.render(RuleVolumeErratic))
	case a.Volume.Consistency < unsteadyConsistency:
		items = append(items, g.style.render(RuleVolumeUnsteady))
	}
	if a.Clarity.FillerWordCount > maxFillerWords {
		items = append(items, g.style.render(RuleFillerOverflow, a.Clarity.FillerWordCount))
	}
	if a.Clarity.SpeechRate > maxFinalRateWPM {
		items = append(items, g.style.render(RuleTooFast))
	}
	if a.Coherence.RelevanceScore < minRelevance {
		items = append(items, g.style.render(RuleOffTopic))
	}
	if a.Coherence.StructureScore < minStructure {
		items = append(items, g.style.render(RuleUnstructured))
	}
	if a.OverallScore > excellentOverall {
		items = append(items, g.style.render(RuleExcellent))
	}
	return items
}

type rateBand int

const (
	bandNormal rateBand = iota
	bandFast
	bandSlow
)

// LiveTracker emits live feedback when a signal crosses a threshold since
// the previous observation. It is owned by a single session and is not safe
// for concurrent use.
type LiveTracker struct {
	gen             *Generator
	fillerCount     int
	band            rateBand
	structureHinted bool
}

// NewLiveTracker returns a tracker in its initial state.
func (g *Generator) NewLiveTracker() *LiveTracker {
	return &LiveTracker{gen: g}
}

// Observe compares a fresh analysis of the transcript so far against the
// previous observation and returns the new items, possibly none.
func (t *LiveTracker) Observe(transcript string, a models.SpeechAnalysis) []models.FeedbackItem {
	if len(strings.TrimSpace(transcript)) < minLiveTranscriptLen {
		return nil
	}
	style := t.gen.style
	var items []models.FeedbackItem

	if n := a.Clarity.FillerWordCount; n > t.fillerCount {
		newest := ""
		if len(a.Clarity.FillerWords) > 0 {
			newest = a.Clarity.FillerWords[len(a.Clarity.FillerWords)-1]
		}
		items = append(items, style.render(RuleLiveFiller, newest))
		t.fillerCount = n
	}

	band := bandNormal
	switch rate := a.Clarity.SpeechRate; {
	case rate > liveFastWPM:
		band = bandFast
	case rate < liveSlowWPM:
		band = bandSlow
	}
	if band != t.band {
		switch band {
		case bandFast:
			items = append(items, style.render(RuleLiveFast))
		case bandSlow:
			items = append(items, style.render(RuleLiveSlow))
		}
		t.band = band
	}

	if !t.structureHinted && linguistics.CountWords(transcript) > structureHintWords &&
		!containsAny(strings.ToLower(transcript), structureMarkers) {
		items = append(items, style.render(RuleLiveStructure))
		t.structureHinted = true
	}
	return items
}

// Reset returns the tracker to its initial state.
func (t *LiveTracker) Reset() {
	t.fillerCount = 0
	t.band = bandNormal
	t.structureHinted = false
}

// ByPriority returns a copy of items sorted from high to low priority,
// keeping the original order within a priority.
func ByPriority(items []models.FeedbackItem) []models.FeedbackItem {
	out := append([]models.FeedbackItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() > out[j].Priority.Rank()
	})
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
