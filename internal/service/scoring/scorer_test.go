package scoring

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"speech-coach-service/internal/models"
)

func TestVolumeStats(t *testing.T) {
	tests := []struct {
		name     string
		history  []float64
		expected models.VolumeStats
	}{
		{"empty", nil, models.VolumeStats{}},
		{"constant", []float64{50, 50, 50, 50}, models.VolumeStats{Average: 50, Min: 50, Max: 50, Consistency: 100}},
		{"alternating", []float64{0, 100, 0, 100}, models.VolumeStats{Average: 50, Min: 0, Max: 100, Consistency: 75}},
		{"very noisy clamps at zero", []float64{0, 255, 0, 255}, models.VolumeStats{Average: 127.5, Min: 0, Max: 255, Consistency: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VolumeStats(tt.history)
			if got != tt.expected {
				t.Errorf("VolumeStats(%v) = %+v, want %+v", tt.history, got, tt.expected)
			}
		})
	}
}

func TestVolumeStats_ConsistencyFallsWithVariance(t *testing.T) {
	prev := math.Inf(1)
	for spread := 0.0; spread <= 120; spread += 5 {
		history := []float64{50 - spread, 50 + spread, 50 - spread, 50 + spread}
		got := VolumeStats(history).Consistency
		if got > prev {
			t.Fatalf("consistency rose from %v to %v at spread %v", prev, got, spread)
		}
		prev = got
	}
}

func TestOverallScore(t *testing.T) {
	w := DefaultWeights
	if got := w.OverallScore(100, 75, 70); got != 79 {
		t.Errorf("OverallScore = %d, want 79", got)
	}
	if got := w.OverallScore(100, 100, 100); got != 100 {
		t.Errorf("OverallScore = %d, want 100", got)
	}
	if got := w.OverallScore(0, 0, 0); got != 0 {
		t.Errorf("OverallScore = %d, want 0", got)
	}
	heavy := Weights{Consistency: 1, Articulation: 1, Relevance: 1}
	if got := heavy.OverallScore(100, 100, 100); got != 100 {
		t.Errorf("expected clamp to 100, got %d", got)
	}
}

func TestAnalyze_CoachingSentence(t *testing.T) {
	s := Default()
	transcript := "So, um, I think that, uh, this is basically a great idea"

	got := s.Analyze(transcript, 30, []float64{50, 50, 50, 50})

	if got.Clarity.FillerWordCount != 3 {
		t.Errorf("filler count = %d, want 3", got.Clarity.FillerWordCount)
	}
	if !reflect.DeepEqual(got.Clarity.FillerWords, []string{"um", "uh", "basically"}) {
		t.Errorf("fillers = %v", got.Clarity.FillerWords)
	}
	if got.Clarity.SpeechRate != 24 {
		t.Errorf("speech rate = %d, want 24", got.Clarity.SpeechRate)
	}
	if got.Clarity.Articulation != 75 {
		t.Errorf("articulation = %d, want 75", got.Clarity.Articulation)
	}
	if got.Volume.Consistency != 100 {
		t.Errorf("consistency = %v, want 100", got.Volume.Consistency)
	}
	if got.OverallScore != 79 {
		t.Errorf("overall = %d, want 79", got.OverallScore)
	}
}

func TestAnalyze_EmptyTranscript(t *testing.T) {
	got := Default().Analyze("", 5, nil)

	if got.Clarity.SpeechRate != 0 {
		t.Errorf("speech rate = %d, want 0", got.Clarity.SpeechRate)
	}
	if got.Clarity.FillerWordCount != 0 {
		t.Errorf("filler count = %d, want 0", got.Clarity.FillerWordCount)
	}
	if got.Coherence.CompletenessScore > 50 {
		t.Errorf("completeness = %d, want <= 50", got.Coherence.CompletenessScore)
	}
	if got.OverallScore < 50 || got.OverallScore > 65 {
		t.Errorf("overall = %d, want a low score around 60", got.OverallScore)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	s := Default()
	transcript := "Well, like, I mean, because of this, for example, we sort of won"
	history := []float64{10, 80, 33, 47, 120}

	a := s.Analyze(transcript, 12.5, history)
	b := s.Analyze(transcript, 12.5, history)

	if !reflect.DeepEqual(a, b) {
		t.Errorf("analysis differs between calls:\n%+v\n%+v", a, b)
	}
}

func TestAnalyze_ScoresStayInRange(t *testing.T) {
	s := Default()
	transcripts := []string{
		"",
		"um",
		strings.Repeat("um uh like you know ", 60),
		strings.Repeat("because therefore however for example specifically such as ", 40),
		strings.Repeat("word ", 500),
	}
	durations := []float64{0, 0.5, 5, 30, 600}
	histories := [][]float64{nil, {0}, {255, 0, 255}, {50, 50}}

	for _, tr := range transcripts {
		for _, d := range durations {
			for _, h := range histories {
				a := s.Analyze(tr, d, h)
				for name, v := range map[string]float64{
					"consistency":  a.Volume.Consistency,
					"articulation": float64(a.Clarity.Articulation),
					"relevance":    float64(a.Coherence.RelevanceScore),
					"structure":    float64(a.Coherence.StructureScore),
					"completeness": float64(a.Coherence.CompletenessScore),
					"overall":      float64(a.OverallScore),
				} {
					if v < 0 || v > 100 || math.IsNaN(v) {
						t.Fatalf("%s out of range: %v (duration %v)", name, v, d)
					}
				}
				if a.Clarity.SpeechRate < 0 {
					t.Fatalf("negative speech rate %d", a.Clarity.SpeechRate)
				}
			}
		}
	}
}

type staticSource []float64

func (s staticSource) History() []float64 { return s }

func TestAnalyzer_ReadsSourceHistory(t *testing.T) {
	a := NewAnalyzer(Default(), staticSource{0, 100, 0, 100})

	got := a.AnalyzeSpeech("hello there", 10)
	if got.Volume.Consistency != 75 {
		t.Errorf("consistency = %v, want 75", got.Volume.Consistency)
	}

	noSource := NewAnalyzer(Default(), nil)
	if got := noSource.AnalyzeSpeech("hello there", 10); got.Volume != (models.VolumeStats{}) {
		t.Errorf("expected zero volume stats, got %+v", got.Volume)
	}
}
