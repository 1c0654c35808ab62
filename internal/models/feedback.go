package models

// FeedbackType is the tone of a feedback item.
type FeedbackType string

const (
	FeedbackPositive    FeedbackType = "positive"
	FeedbackImprovement FeedbackType = "improvement"
	FeedbackCritical    FeedbackType = "critical"
)

// FeedbackCategory is the area a feedback item talks about. The last four are
// used by the executive coaching message set.
type FeedbackCategory string

const (
	CategoryVolume     FeedbackCategory = "volume"
	CategoryClarity    FeedbackCategory = "clarity"
	CategoryCoherence  FeedbackCategory = "coherence"
	CategoryGeneral    FeedbackCategory = "general"
	CategoryConfidence FeedbackCategory = "confidence"
	CategoryAccent     FeedbackCategory = "accent"
	CategoryPresence   FeedbackCategory = "presence"
	CategoryExecutive  FeedbackCategory = "executive"
)

// Priority orders feedback items for presentation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns a sortable weight for the priority; unknown priorities rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

// FeedbackItem is a single piece of actionable feedback. Items are produced
// and never mutated.
type FeedbackItem struct {
	Type       FeedbackType     `json:"type"`
	Category   FeedbackCategory `json:"category"`
	Message    string           `json:"message"`
	Suggestion string           `json:"suggestion,omitempty"`
	Priority   Priority         `json:"priority"`
}
