package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"speech-coach-service/internal/models"
	"speech-coach-service/internal/schema"
	"speech-coach-service/internal/service/session"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *Config
		wantEnabled bool
	}{
		{"nil config", nil, false},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}, TopicLive: "test.live", TopicResult: "test.result"}, false},
		{"no brokers", &Config{Enabled: true, TopicLive: "test.live", TopicResult: "test.result"}, false},
		{"enabled", &Config{Enabled: true, Brokers: []string{"localhost:9092"}, TopicLive: "test.live", TopicResult: "test.result"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			defer p.Close()

			if p.Enabled() != tt.wantEnabled {
				t.Fatalf("Enabled() = %v, want %v", p.Enabled(), tt.wantEnabled)
			}
			if (p.live.w != nil) != tt.wantEnabled {
				t.Error("live writer should exist only when enabled")
			}
			if tt.cfg == nil {
				return
			}
			if p.live.name != "test.live" || p.result.name != "test.result" {
				t.Errorf("unexpected topics %q, %q", p.live.name, p.result.name)
			}
			if tt.wantEnabled && (p.live.w.Topic != "test.live" || p.result.w.RequiredAcks != kafka.RequireAll) {
				t.Errorf("unexpected writers %s acks=%v", p.live.w.Topic, p.result.w.RequiredAcks)
			}
		})
	}
}

func sampleResult() models.SessionResult {
	return models.SessionResult{
		EventType: models.EventTypeSessionResult,
		SessionID: "sess-1",
		UserID:    "user-1",
		Category:  models.CategoryBusiness,
		Analysis:  models.SpeechAnalysis{OverallScore: 70},
		Timestamp: time.Now().UnixMilli(),
	}
}

func sampleLive() models.LiveFeedbackEvent {
	return models.LiveFeedbackEvent{
		EventType: models.EventTypeLiveFeedback,
		SessionID: "sess-1",
		Item: models.FeedbackItem{
			Type:     models.FeedbackImprovement,
			Category: models.CategoryClarity,
			Message:  "Try to reduce filler words",
			Priority: models.PriorityMedium,
		},
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestPublisher_PublishResult_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishResult(context.Background(), sampleResult()); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
	if err := p.HandleResult(context.Background(), sampleResult()); err != nil {
		t.Errorf("expected no error from HandleResult, got %v", err)
	}
}

func TestPublisher_PublishLiveFeedback_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.PublishLiveFeedback(context.Background(), sampleLive()); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_RejectsInvalidEvents(t *testing.T) {
	p := New(&Config{Enabled: false})

	r := sampleResult()
	r.SessionID = ""
	if err := p.PublishResult(context.Background(), r); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}

	l := sampleLive()
	l.Item.Priority = ""
	if err := p.PublishLiveFeedback(context.Background(), l); !errors.Is(err, schema.ErrInvalidEvent) {
		t.Errorf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Channels cannot be marshalled.
	err := p.publish(context.Background(), topic{name: "test", kind: "live"}, "key", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilWriters(t *testing.T) {
	p := &Publisher{}

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []models.LiveFeedbackEvent
	block   chan struct{}
	err     error
	started chan struct{}
}

func (r *recordingPublisher) PublishLiveFeedback(ctx context.Context, event models.LiveFeedbackEvent) error {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

var _ session.Listener = (*LiveForwarder)(nil)

func TestLiveForwarder_Publishes(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	f := NewLiveForwarder(pub, 4)

	f.OnStateChange(session.StateChange{SessionID: "sess-1", From: session.StateIdle, To: session.StatePreparing})
	for i := 0; i < 3; i++ {
		f.OnLiveFeedback(sampleLive())
	}
	f.Close()

	if pub.count() != 3 {
		t.Errorf("expected 3 published events, got %d", pub.count())
	}
	if f.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", f.Dropped())
	}
}

func TestLiveForwarder_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{}), started: make(chan struct{}, 1)}
	f := NewLiveForwarder(pub, 1)

	f.OnLiveFeedback(sampleLive())
	<-pub.started // worker holds the first event

	f.OnLiveFeedback(sampleLive()) // buffered
	f.OnLiveFeedback(sampleLive()) // dropped

	if f.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", f.Dropped())
	}

	close(pub.block)
	f.Close()

	if pub.count() != 2 {
		t.Errorf("expected 2 published events, got %d", pub.count())
	}
}

func TestLiveForwarder_CloseDuringSends(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewLiveForwarder(pub, 8)

	const senders, perSender = 4, 50
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				f.OnLiveFeedback(sampleLive())
			}
		}()
	}
	f.Close()
	wg.Wait()

	if got := pub.count() + f.Dropped(); got != senders*perSender {
		t.Errorf("published %d + dropped %d, want %d in total", pub.count(), f.Dropped(), senders*perSender)
	}
}

func TestLiveForwarder_AfterClose(t *testing.T) {
	f := NewLiveForwarder(&recordingPublisher{}, 1)
	f.Close()
	f.Close()

	f.OnLiveFeedback(sampleLive())
	if f.Dropped() != 1 {
		t.Errorf("expected event after close to be dropped, got %d", f.Dropped())
	}
}
