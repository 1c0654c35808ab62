// Package progress aggregates finished sessions into per-user practice
// records and persists them.
package progress

import (
	"math"
	"time"

	"speech-coach-service/internal/models"
)

const dayLayout = "2006-01-02"

// Tracker folds finished sessions into a user's progress record.
type Tracker struct {
	loc *time.Location
}

// NewTracker returns a tracker that counts streak days in loc. A nil loc
// means UTC.
func NewTracker(loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{loc: loc}
}

// Apply returns prev updated with one finished session. prev is not
// modified.
//
// The streak counts consecutive practice days: another session on the same
// day keeps it, a session on the following day extends it and any longer gap
// starts over at one.
func (t *Tracker) Apply(prev models.UserProgress, u models.ProgressUpdate, now time.Time) models.UserProgress {
	delta := u.TotalSessionsDelta
	if delta <= 0 {
		delta = 1
	}
	score := u.OverallScore

	next := prev
	next.TotalSessions = prev.TotalSessions + delta
	next.AverageScore = round1((prev.AverageScore*float64(prev.TotalSessions) + float64(score*delta)) / float64(next.TotalSessions))
	if score > prev.BestScore {
		next.BestScore = score
	}

	next.Categories = make(map[string]models.CategoryProgress, len(prev.Categories)+1)
	for k, v := range prev.Categories {
		next.Categories[k] = v
	}
	if u.Category != "" {
		c := next.Categories[string(u.Category)]
		if c.Sessions == 0 {
			c.FirstScore = score
		}
		c.AverageScore = round1((c.AverageScore*float64(c.Sessions) + float64(score)) / float64(c.Sessions+1))
		c.Sessions++
		c.Improvement = float64(score - c.FirstScore)
		next.Categories[string(u.Category)] = c
	}

	today := now.In(t.loc).Format(dayLayout)
	streakDelta := u.StreakDelta
	if streakDelta <= 0 {
		streakDelta = 1
	}
	switch {
	case prev.LastSessionDay == "":
		next.Streak = streakDelta
	case prev.LastSessionDay == today:
		if next.Streak == 0 {
			next.Streak = streakDelta
		}
	case t.nextDay(prev.LastSessionDay) == today:
		next.Streak = prev.Streak + streakDelta
	default:
		next.Streak = streakDelta
	}
	if prev.LastSessionDay == "" || today > prev.LastSessionDay {
		next.LastSessionDay = today
	}
	return next
}

func (t *Tracker) nextDay(day string) string {
	d, err := time.ParseInLocation(dayLayout, day, t.loc)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, 1).Format(dayLayout)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Achievement is a milestone unlocked by a progress record.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	unlocked func(models.UserProgress) bool
}

var achievements = []Achievement{
	{ID: "first-session", Title: "First Steps", Description: "Complete your first speaking session",
		unlocked: func(p models.UserProgress) bool { return p.TotalSessions >= 1 }},
	{ID: "consistency", Title: "Consistency King", Description: "Complete 5 speaking sessions",
		unlocked: func(p models.UserProgress) bool { return p.TotalSessions >= 5 }},
	{ID: "dedication", Title: "Dedicated Speaker", Description: "Complete 10 speaking sessions",
		unlocked: func(p models.UserProgress) bool { return p.TotalSessions >= 10 }},
	{ID: "excellence", Title: "Excellence", Description: "Score 90 or higher in a session",
		unlocked: func(p models.UserProgress) bool { return p.BestScore >= 90 }},
	{ID: "streak-3", Title: "Getting Started", Description: "Maintain a 3-day streak",
		unlocked: func(p models.UserProgress) bool { return p.Streak >= 3 }},
	{ID: "streak-7", Title: "Week Warrior", Description: "Maintain a 7-day streak",
		unlocked: func(p models.UserProgress) bool { return p.Streak >= 7 }},
	{ID: "streak-30", Title: "Monthly Master", Description: "Maintain a 30-day streak",
		unlocked: func(p models.UserProgress) bool { return p.Streak >= 30 }},
	{ID: "improvement", Title: "Continuous Improvement", Description: "Reach an average score of 70",
		unlocked: func(p models.UserProgress) bool { return p.AverageScore >= 70 }},
}

// Unlocked returns the achievements p has earned, in a fixed order.
func Unlocked(p models.UserProgress) []Achievement {
	out := []Achievement{}
	for _, a := range achievements {
		if a.unlocked(p) {
			out = append(out, a)
		}
	}
	return out
}

// NewlyUnlocked returns the achievements next has that prev did not.
func NewlyUnlocked(prev, next models.UserProgress) []Achievement {
	var out []Achievement
	for _, a := range achievements {
		if a.unlocked(next) && !a.unlocked(prev) {
			out = append(out, a)
		}
	}
	return out
}
