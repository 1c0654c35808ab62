// Package models defines the data structures shared by the analysis engine,
// its collaborators and the event stream.
package models

// Category groups speaking prompts by subject.
type Category string

const (
	CategoryBusiness      Category = "business"
	CategoryPersonal      Category = "personal"
	CategoryAcademic      Category = "academic"
	CategoryCreative      Category = "creative"
	CategoryCurrentEvents Category = "current-events"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryBusiness, CategoryPersonal, CategoryAcademic, CategoryCreative, CategoryCurrentEvents:
		return true
	}
	return false
}

// Difficulty ranks how demanding a prompt is.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// SpeakingQuestion is an immutable prompt from the question catalog.
type SpeakingQuestion struct {
	ID               string     `json:"id" yaml:"id"`
	Category         Category   `json:"category" yaml:"category"`
	Difficulty       Difficulty `json:"difficulty" yaml:"difficulty"`
	Question         string     `json:"question" yaml:"question"`
	Context          string     `json:"context,omitempty" yaml:"context,omitempty"`
	TimeLimitSeconds int        `json:"timeLimit" yaml:"time_limit"`
	Tips             []string   `json:"tips,omitempty" yaml:"tips,omitempty"`
}
