package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/session"
)

const defaultForwardBuffer = 64

// LivePublisher publishes one live feedback event.
type LivePublisher interface {
	PublishLiveFeedback(ctx context.Context, event models.LiveFeedbackEvent) error
}

// LiveForwarder is a session listener that hands live feedback to a
// publisher on its own goroutine. Events that arrive while the buffer is
// full are dropped.
type LiveForwarder struct {
	pub     LivePublisher
	timeout time.Duration
	queue   chan models.LiveFeedbackEvent
	log     zerolog.Logger

	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewLiveForwarder starts a forwarder. A non-positive buffer uses the default.
func NewLiveForwarder(pub LivePublisher, buffer int) *LiveForwarder {
	if buffer <= 0 {
		buffer = defaultForwardBuffer
	}
	f := &LiveForwarder{
		pub:     pub,
		timeout: 5 * time.Second,
		queue:   make(chan models.LiveFeedbackEvent, buffer),
		log:     logging.WithComponent("live-forwarder"),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// OnStateChange implements session.Listener.
func (f *LiveForwarder) OnStateChange(change session.StateChange) {
	f.log.Debug().
		Str("sessionId", change.SessionID).
		Str("from", change.From.String()).
		Str("to", change.To.String()).
		Msg("Session state changed")
}

// OnLiveFeedback implements session.Listener. It never blocks. Events
// after Close are dropped.
func (f *LiveForwarder) OnLiveFeedback(event models.LiveFeedbackEvent) {
	f.mu.Lock()
	queued := false
	if !f.closed {
		select {
		case f.queue <- event:
			queued = true
		default:
		}
	}
	if !queued {
		f.dropped++
	}
	closed := f.closed
	f.mu.Unlock()

	if !queued {
		f.log.Warn().
			Str("sessionId", event.SessionID).
			Bool("closed", closed).
			Msg("Live feedback not forwarded, dropping event")
	}
}

// Dropped returns how many events were discarded.
func (f *LiveForwarder) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops accepting events and waits until the queued ones are
// published. It is safe to call more than once.
func (f *LiveForwarder) Close() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *LiveForwarder) run() {
	defer close(f.done)
	for event := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := f.pub.PublishLiveFeedback(ctx, event); err != nil {
			f.log.Warn().Err(err).Str("sessionId", event.SessionID).Msg("Failed to publish live feedback")
		}
		cancel()
	}
}
