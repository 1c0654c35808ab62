package models

// VolumeStats summarises the volume history of one recording span.
// Consistency is in [0,100]; the other fields are in sample units (0..255).
type VolumeStats struct {
	Average     float64 `json:"average"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Consistency float64 `json:"consistency"`
}

// ClarityStats holds the filler-word and pacing features of a transcript.
type ClarityStats struct {
	FillerWords     []string `json:"fillerWords"`
	FillerWordCount int      `json:"fillerWordCount"`
	SpeechRate      int      `json:"speechRate"` // words per minute
	Articulation    int      `json:"articulation"`
}

// CoherenceStats holds the lexical structure heuristics. Each score is in [0,100].
type CoherenceStats struct {
	RelevanceScore    int `json:"relevanceScore"`
	StructureScore    int `json:"structureScore"`
	CompletenessScore int `json:"completenessScore"`
}

// SpeechAnalysis is a snapshot of a session's scores. It is a pure function of
// the transcript, the volume history and the elapsed duration.
type SpeechAnalysis struct {
	Volume       VolumeStats    `json:"volume"`
	Clarity      ClarityStats   `json:"clarity"`
	Coherence    CoherenceStats `json:"coherence"`
	OverallScore int            `json:"overallScore"`
}
