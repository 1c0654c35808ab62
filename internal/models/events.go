package models

import "time"

// Event types carried in the eventType field of published payloads.
const (
	EventTypeLiveFeedback  = "speech.session.feedback.live"
	EventTypeSessionResult = "speech.session.result"
)

// LiveFeedbackEvent is emitted for each live feedback item produced while a
// session is recording.
type LiveFeedbackEvent struct {
	EventType      string       `json:"eventType"`
	SessionID      string       `json:"sessionId"`
	UserID         string       `json:"userId"`
	Item           FeedbackItem `json:"item"`
	ElapsedSeconds float64      `json:"elapsedSeconds"`
	Timestamp      int64        `json:"timestamp"`
}

// SessionResult is the hand-off record produced once a session reaches results.
type SessionResult struct {
	EventType       string         `json:"eventType"`
	SessionID       string         `json:"sessionId"`
	UserID          string         `json:"userId"`
	QuestionID      string         `json:"questionId"`
	Category        Category       `json:"category"`
	Transcript      string         `json:"transcript"`
	DurationSeconds float64        `json:"durationSeconds"`
	Analysis        SpeechAnalysis `json:"analysis"`
	Feedback        []FeedbackItem `json:"feedback"`
	LiveFeedback    []FeedbackItem `json:"liveFeedback"`
	Progress        ProgressUpdate `json:"progress"`
	Degraded        bool           `json:"degraded"`
	Timestamp       int64          `json:"timestamp"`
}

// ProgressUpdate is the delta a finished session contributes to a user's
// progress record.
type ProgressUpdate struct {
	UserID             string    `json:"userId"`
	Category           Category  `json:"category"`
	TotalSessionsDelta int       `json:"totalSessionsDelta"`
	OverallScore       int       `json:"overallScore"`
	StreakDelta        int       `json:"streakDelta"`
	CompletedAt        time.Time `json:"completedAt"`
}

// CategoryProgress aggregates sessions for one question category.
type CategoryProgress struct {
	Sessions     int     `json:"sessions"`
	AverageScore float64 `json:"averageScore"`
	Improvement  float64 `json:"improvement"`
	FirstScore   int     `json:"firstScore"`
}

// UserProgress is the aggregate practice record of a user.
type UserProgress struct {
	TotalSessions  int                         `json:"totalSessions"`
	AverageScore   float64                     `json:"averageScore"`
	BestScore      int                         `json:"bestScore"`
	Categories     map[string]CategoryProgress `json:"categories"`
	Streak         int                         `json:"streak"`
	LastSessionDay string                      `json:"lastSessionDay,omitempty"`
}
