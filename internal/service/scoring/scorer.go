// Package scoring combines volume statistics and linguistic features into a
// single SpeechAnalysis.
package scoring

import (
	"math"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/service/linguistics"
)

// Weights of the three sub-domains in the overall score.
type Weights struct {
	Consistency  float64
	Articulation float64
	Relevance    float64
}

// DefaultWeights favour content, then clarity, then steadiness.
var DefaultWeights = Weights{
	Consistency:  0.25,
	Articulation: 0.35,
	Relevance:    0.40,
}

// VolumeStats computes average, min, max and consistency over a volume
// history. An empty history yields all zeros.
func VolumeStats(history []float64) models.VolumeStats {
	if len(history) == 0 {
		return models.VolumeStats{}
	}

	minV, maxV, sum := history[0], history[0], 0.0
	for _, v := range history {
		sum += v
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	mean := sum / float64(len(history))

	variance := 0.0
	for _, v := range history {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(history))

	return models.VolumeStats{
		Average:     mean,
		Min:         minV,
		Max:         maxV,
		Consistency: math.Min(100, math.Max(0, 100-variance/100)),
	}
}

// OverallScore is the weighted, rounded and clamped combination of the
// sub-domain scores.
func (w Weights) OverallScore(consistency float64, articulation, relevance int) int {
	raw := consistency*w.Consistency + float64(articulation)*w.Articulation + float64(relevance)*w.Relevance
	return linguistics.Clamp(int(math.Round(raw)))
}

// Scorer produces SpeechAnalysis snapshots. It holds no per-session state.
type Scorer struct {
	detector *linguistics.Detector
	weights  Weights
}

// NewScorer returns a scorer using the given filler detector and weights. A
// nil detector selects the default lexicon.
func NewScorer(detector *linguistics.Detector, weights Weights) *Scorer {
	if detector == nil {
		detector = linguistics.NewDetector(linguistics.DefaultFillers)
	}
	return &Scorer{detector: detector, weights: weights}
}

// Default returns a scorer with the default lexicon and weights.
func Default() *Scorer {
	return NewScorer(nil, DefaultWeights)
}

// Analyze is deterministic in its three inputs.
func (s *Scorer) Analyze(transcript string, durationSeconds float64, history []float64) models.SpeechAnalysis {
	words := linguistics.CountWords(transcript)
	volume := VolumeStats(history)
	clarity := s.detector.Clarity(transcript, words, durationSeconds)
	coherence := linguistics.Coherence(transcript, words)

	return models.SpeechAnalysis{
		Volume:       volume,
		Clarity:      clarity,
		Coherence:    coherence,
		OverallScore: s.weights.OverallScore(volume.Consistency, clarity.Articulation, coherence.RelevanceScore),
	}
}

// Fallback is the analysis reported when a session could not be scored.
func Fallback() models.SpeechAnalysis {
	return models.SpeechAnalysis{
		Clarity: models.ClarityStats{FillerWords: []string{}},
	}
}

// VolumeSource exposes the volume history of the active recording span.
type VolumeSource interface {
	History() []float64
}

// Analyzer binds a scorer to the sampler of one session.
type Analyzer struct {
	scorer *Scorer
	source VolumeSource
}

// NewAnalyzer returns an analyzer reading history from source.
func NewAnalyzer(scorer *Scorer, source VolumeSource) *Analyzer {
	return &Analyzer{scorer: scorer, source: source}
}

// AnalyzeSpeech scores transcript against the source's current history.
// Callers must make sure the source belongs to the session being analyzed.
func (a *Analyzer) AnalyzeSpeech(transcript string, durationSeconds float64) models.SpeechAnalysis {
	var history []float64
	if a.source != nil {
		history = a.source.History()
	}
	return a.scorer.Analyze(transcript, durationSeconds, history)
}
