package session

import (
	"context"
	"errors"
	"io"

	"speech-coach-service/internal/models"
)

// VolumeSampler is the audio input of one session. *audio.Sampler
// implements it.
type VolumeSampler interface {
	Initialize(ctx context.Context) error
	StartRecording() error
	Sample() (float64, bool)
	StopRecording()
	History() []float64
	Cleanup() error
}

// TranscriptFeed is the speech recognition of one session.
// *transcript.Feed implements it.
type TranscriptFeed interface {
	StartListening(ctx context.Context) error
	StopListening() error
	Transcript() string
	Err() error
	// Close releases the recognizer whether or not it was started.
	Close() error
}

// Resources are acquired when a session starts and released together when
// it ends.
type Resources struct {
	Sampler VolumeSampler
	Feed    TranscriptFeed
	// Input receives caller-supplied PCM for the session. Nil when the
	// device produces its own audio.
	Input io.Writer
}

// Release frees the recognizer and the audio input. Both are attempted
// even when one fails.
func (r *Resources) Release() error {
	return errors.Join(r.Feed.Close(), r.Sampler.Cleanup())
}

// ResourceFactory creates the resources of a new session.
type ResourceFactory interface {
	Acquire(ctx context.Context, sessionID string) (*Resources, error)
}

// FactoryFunc adapts a function to ResourceFactory.
type FactoryFunc func(ctx context.Context, sessionID string) (*Resources, error)

// Acquire calls f.
func (f FactoryFunc) Acquire(ctx context.Context, sessionID string) (*Resources, error) {
	return f(ctx, sessionID)
}

// Scorer computes a SpeechAnalysis. *scoring.Scorer implements it.
type Scorer interface {
	Analyze(transcript string, durationSeconds float64, history []float64) models.SpeechAnalysis
}

// ResultSink receives the result of every finished session. Sinks run on
// their own goroutine.
type ResultSink interface {
	HandleResult(ctx context.Context, result models.SessionResult) error
}

// StateChange describes one transition of the machine.
type StateChange struct {
	SessionID string `json:"sessionId"`
	From      State  `json:"from"`
	To        State  `json:"to"`
	Timestamp int64  `json:"timestamp"`
}

// Listener observes the running session. It is called from the
// orchestrator goroutine and must not block.
type Listener interface {
	OnStateChange(change StateChange)
	OnLiveFeedback(event models.LiveFeedbackEvent)
}
