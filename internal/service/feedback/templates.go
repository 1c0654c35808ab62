package feedback

import (
	"fmt"
	"strings"

	"speech-coach-service/internal/models"
)

// Rule identifies one feedback check.
type Rule int

const (
	RuleVolumeErratic Rule = iota
	RuleVolumeUnsteady
	RuleFillerOverflow
	RuleTooFast
	RuleOffTopic
	RuleUnstructured
	RuleExcellent

	RuleLiveFiller
	RuleLiveFast
	RuleLiveSlow
	RuleLiveStructure
)

// Style selects the message set used to render feedback. Rules, thresholds
// and priorities do not depend on the style.
type Style string

const (
	StyleStandard  Style = "standard"
	StyleExecutive Style = "executive"
)

// ParseStyle accepts a style name case-insensitively. Empty selects standard.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleStandard:
		return StyleStandard, nil
	case StyleExecutive:
		return StyleExecutive, nil
	}
	return "", fmt.Errorf("unknown feedback style %q", s)
}

type template struct {
	category   models.FeedbackCategory
	message    string
	suggestion string
}

// Fixed per rule, independent of style.
var ruleKinds = map[Rule]struct {
	typ      models.FeedbackType
	priority models.Priority
}{
	RuleVolumeErratic:  {models.FeedbackImprovement, models.PriorityHigh},
	RuleVolumeUnsteady: {models.FeedbackImprovement, models.PriorityMedium},
	RuleFillerOverflow: {models.FeedbackCritical, models.PriorityHigh},
	RuleTooFast:        {models.FeedbackImprovement, models.PriorityMedium},
	RuleOffTopic:       {models.FeedbackImprovement, models.PriorityMedium},
	RuleUnstructured:   {models.FeedbackImprovement, models.PriorityMedium},
	RuleExcellent:      {models.FeedbackPositive, models.PriorityLow},
	RuleLiveFiller:     {models.FeedbackImprovement, models.PriorityMedium},
	RuleLiveFast:       {models.FeedbackImprovement, models.PriorityMedium},
	RuleLiveSlow:       {models.FeedbackImprovement, models.PriorityLow},
	RuleLiveStructure:  {models.FeedbackImprovement, models.PriorityMedium},
}

var templates = map[Style]map[Rule]template{
	StyleStandard: {
		RuleVolumeErratic: {models.CategoryVolume,
			"Your volume varies significantly throughout your speech",
			"Keep a steady distance from the microphone and support your voice with slow, deep breaths."},
		RuleVolumeUnsteady: {models.CategoryVolume,
			"Volume consistency needs improvement",
			"Try to maintain a steady volume throughout your speech. Practice breathing exercises."},
		RuleFillerOverflow: {models.CategoryClarity,
			"Too many filler words detected (%d)",
			`Practice pausing instead of using "um", "uh", "like". Record yourself and identify patterns.`},
		RuleTooFast: {models.CategoryClarity,
			"Speaking rate is too fast",
			"Slow down to 150-180 words per minute. Use pauses for emphasis."},
		RuleOffTopic: {models.CategoryCoherence,
			"Stay more focused on the question",
			"Keep your response directly related to the question asked. Use the STAR method: Situation, Task, Action, Result."},
		RuleUnstructured: {models.CategoryCoherence,
			"Improve response structure",
			`Organize your thoughts with clear transitions: "First...", "Next...", "Finally...".`},
		RuleExcellent: {models.CategoryGeneral,
			"Excellent speaking performance!",
			"Keep up the great work! Your clarity and structure are impressive."},
		RuleLiveFiller: {models.CategoryClarity,
			`Filler word detected: "%s"`,
			"Try pausing instead of using filler words. Take a breath and continue."},
		RuleLiveFast: {models.CategoryClarity,
			"Speaking too fast",
			"Slow down your pace. Aim for 150-180 words per minute for clarity."},
		RuleLiveSlow: {models.CategoryClarity,
			"Speaking too slowly",
			"Pick up your pace slightly. Aim for 150-180 words per minute."},
		RuleLiveStructure: {models.CategoryCoherence,
			"Consider adding structure to your response",
			`Use phrases like "First...", "Second...", "Finally..." to organize your thoughts.`},
	},
	StyleExecutive: {
		RuleVolumeErratic: {models.CategoryPresence,
			"Your vocal presence drops in and out",
			"Project from the diaphragm and hold the same energy from your opening line to your close."},
		RuleVolumeUnsteady: {models.CategoryPresence,
			"Hold a steadier vocal presence",
			"Command the room with a consistent volume. Breathe before each key point."},
		RuleFillerOverflow: {models.CategoryConfidence,
			"Filler words are undercutting your authority (%d)",
			"Replace fillers with a deliberate pause. Silence reads as confidence."},
		RuleTooFast: {models.CategoryAccent,
			"Your pace is racing ahead of your audience",
			"Clear communication beats a perfect accent. Slow down and let each word land."},
		RuleOffTopic: {models.CategoryCoherence,
			"Anchor your answer to the question",
			"Lead with your conclusion, then support it. Executives answer first and explain second."},
		RuleUnstructured: {models.CategoryCoherence,
			"Frame your message like a leader",
			`Signal structure out loud: "First...", "Second...", "Finally...".`},
		RuleExcellent: {models.CategoryExecutive,
			"Strong executive delivery!",
			"Your accent is your leadership signature. Keep projecting it with authority."},
		RuleLiveFiller: {models.CategoryConfidence,
			`Filler word detected: "%s"`,
			"Pause with intent instead. A confident silence beats a filler."},
		RuleLiveFast: {models.CategoryAccent,
			"Ease off the pace",
			"Slower delivery keeps your accent clear. Aim for 150-180 words per minute."},
		RuleLiveSlow: {models.CategoryConfidence,
			"Bring more energy to your pace",
			"Speak with conviction. Aim for 150-180 words per minute."},
		RuleLiveStructure: {models.CategoryCoherence,
			"Give your audience a roadmap",
			`Use "First...", "Second...", "Finally..." to sound prepared.`},
	},
}

func (s Style) render(rule Rule, args ...any) models.FeedbackItem {
	set, ok := templates[s]
	if !ok {
		set = templates[StyleStandard]
	}
	tpl := set[rule]
	kind := ruleKinds[rule]

	msg := tpl.message
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return models.FeedbackItem{
		Type:       kind.typ,
		Category:   tpl.category,
		Message:    msg,
		Suggestion: tpl.suggestion,
		Priority:   kind.priority,
	}
}
