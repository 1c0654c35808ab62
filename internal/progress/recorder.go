package progress

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
)

// Recorder applies finished sessions to the store. It is a session result
// sink.
type Recorder struct {
	store   Store
	tracker *Tracker
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewRecorder returns a recorder writing to store. A nil tracker counts
// streak days in UTC.
func NewRecorder(store Store, tracker *Tracker) *Recorder {
	if tracker == nil {
		tracker = NewTracker(nil)
	}
	return &Recorder{
		store:   store,
		tracker: tracker,
		log:     logging.WithComponent("progress"),
		metrics: metrics.DefaultMetrics,
	}
}

// HandleResult folds result into its user's progress. Results without a
// user are not recorded.
func (r *Recorder) HandleResult(ctx context.Context, result models.SessionResult) error {
	u := result.Progress
	if u.UserID == "" {
		u.UserID = result.UserID
	}
	if u.UserID == "" {
		r.log.Debug().Str("sessionId", result.SessionID).Msg("Anonymous session, progress not recorded")
		return nil
	}
	if u.Category == "" {
		u.Category = result.Category
	}
	now := u.CompletedAt
	if now.IsZero() {
		now = time.Now()
	}

	var prev models.UserProgress
	next, err := r.store.Update(ctx, u.UserID, func(p models.UserProgress) models.UserProgress {
		prev = p
		return r.tracker.Apply(p, u, now)
	})
	r.metrics.RecordProgressUpdate(r.store.Name(), err)
	if err != nil {
		return err
	}

	ev := r.log.Info().
		Str("sessionId", result.SessionID).
		Str("userId", u.UserID).
		Int("totalSessions", next.TotalSessions).
		Float64("averageScore", next.AverageScore).
		Int("streak", next.Streak)
	for _, a := range NewlyUnlocked(prev, next) {
		ev = ev.Str("achievement", a.ID)
	}
	ev.Msg("Progress updated")
	return nil
}

// Progress returns the stored record of userID.
func (r *Recorder) Progress(ctx context.Context, userID string) (models.UserProgress, error) {
	return r.store.Get(ctx, userID)
}
