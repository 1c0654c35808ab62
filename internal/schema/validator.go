// Package schema validates events before they leave the service.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"speech-coach-service/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

// Validator checks published payloads against the event contract.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks a SessionResult or LiveFeedbackEvent (value or pointer).
// Other types are rejected.
func (v *Validator) Validate(event any) error {
	var problems []string
	switch e := event.(type) {
	case models.SessionResult:
		problems = validateResult(&e)
	case *models.SessionResult:
		if e == nil {
			return fmt.Errorf("%w: nil result", ErrInvalidEvent)
		}
		problems = validateResult(e)
	case models.LiveFeedbackEvent:
		problems = validateLive(&e)
	case *models.LiveFeedbackEvent:
		if e == nil {
			return fmt.Errorf("%w: nil live feedback", ErrInvalidEvent)
		}
		problems = validateLive(e)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidEvent, event)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, strings.Join(problems, "; "))
	}
	return nil
}

func validateResult(r *models.SessionResult) []string {
	var p []string
	if r.EventType != models.EventTypeSessionResult {
		p = append(p, fmt.Sprintf("eventType must be %q", models.EventTypeSessionResult))
	}
	if r.SessionID == "" {
		p = append(p, "sessionId is required")
	}
	if r.Category != "" && !r.Category.Valid() {
		p = append(p, fmt.Sprintf("unknown category %q", r.Category))
	}
	if r.DurationSeconds < 0 {
		p = append(p, "durationSeconds must not be negative")
	}
	if !inRange(r.Analysis.OverallScore) {
		p = append(p, "analysis.overallScore out of range")
	}
	if r.Analysis.Volume.Consistency < 0 || r.Analysis.Volume.Consistency > 100 {
		p = append(p, "analysis.volume.consistency out of range")
	}
	c := r.Analysis.Coherence
	if !inRange(c.RelevanceScore) || !inRange(c.StructureScore) || !inRange(c.CompletenessScore) {
		p = append(p, "analysis.coherence out of range")
	}
	for i, item := range r.Feedback {
		for _, msg := range validateItem(item) {
			p = append(p, fmt.Sprintf("feedback[%d]: %s", i, msg))
		}
	}
	for i, item := range r.LiveFeedback {
		for _, msg := range validateItem(item) {
			p = append(p, fmt.Sprintf("liveFeedback[%d]: %s", i, msg))
		}
	}
	if r.Timestamp <= 0 {
		p = append(p, "timestamp is required")
	}
	return p
}

func validateLive(e *models.LiveFeedbackEvent) []string {
	var p []string
	if e.EventType != models.EventTypeLiveFeedback {
		p = append(p, fmt.Sprintf("eventType must be %q", models.EventTypeLiveFeedback))
	}
	if e.SessionID == "" {
		p = append(p, "sessionId is required")
	}
	if e.ElapsedSeconds < 0 {
		p = append(p, "elapsedSeconds must not be negative")
	}
	for _, msg := range validateItem(e.Item) {
		p = append(p, "item: "+msg)
	}
	if e.Timestamp <= 0 {
		p = append(p, "timestamp is required")
	}
	return p
}

func validateItem(item models.FeedbackItem) []string {
	var p []string
	switch item.Type {
	case models.FeedbackPositive, models.FeedbackImprovement, models.FeedbackCritical:
	default:
		p = append(p, fmt.Sprintf("unknown type %q", item.Type))
	}
	switch item.Category {
	case models.CategoryVolume, models.CategoryClarity, models.CategoryCoherence, models.CategoryGeneral,
		models.CategoryConfidence, models.CategoryAccent, models.CategoryPresence, models.CategoryExecutive:
	default:
		p = append(p, fmt.Sprintf("unknown category %q", item.Category))
	}
	if item.Priority.Rank() == 0 {
		p = append(p, fmt.Sprintf("unknown priority %q", item.Priority))
	}
	if item.Message == "" {
		p = append(p, "message is required")
	}
	return p
}

func inRange(score int) bool {
	return score >= 0 && score <= 100
}
