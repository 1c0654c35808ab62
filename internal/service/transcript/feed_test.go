package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"

	"speech-coach-service/internal/service/stt"
	"speech-coach-service/internal/service/stt/mock"
)

// testAdapter implements stt.Adapter for testing. onClose runs inside Close
// so tests can simulate results delivered while the stream drains.
type testAdapter struct {
	mu       sync.Mutex
	started  bool
	closes   int
	audio    [][]byte
	cb       stt.Callback
	startErr error
	onClose  func(cb stt.Callback)
}

func (a *testAdapter) Start(ctx context.Context, cb stt.Callback) error {
	if a.startErr != nil {
		return a.startErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.started = true
	a.cb = cb
	return nil
}

func (a *testAdapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.audio = append(a.audio, audio)
	return nil
}

func (a *testAdapter) Close() error {
	a.mu.Lock()
	a.closes++
	cb, fn := a.cb, a.onClose
	a.mu.Unlock()
	if fn != nil {
		fn(cb)
	}
	return nil
}

func startedFeed(t *testing.T, adapter stt.Adapter) *Feed {
	t.Helper()
	f := NewFeed(adapter, "sess-1", "test")
	if err := f.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	return f
}

func TestFeed_PartialsAndFinals(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	f.OnPartial("So")
	f.OnPartial("So um I")
	if got := f.Transcript(); got != "So um I" {
		t.Errorf("expected interim text, got %q", got)
	}

	f.OnFinal("So, um, I think we should expand", 0.9)
	f.OnEndOfUtterance()
	f.OnPartial("First")

	want := "So, um, I think we should expand First"
	if got := f.Transcript(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if f.Utterances() != 1 {
		t.Errorf("expected 1 utterance, got %d", f.Utterances())
	}
	if f.UtteranceID() != "sess-1-utt-2" {
		t.Errorf("expected sess-1-utt-2, got %s", f.UtteranceID())
	}
}

func TestFeed_OneFinalPerUtterance(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	f.OnFinal("first answer", 0.9)
	f.OnFinal("duplicate answer", 0.9)
	f.OnPartial("late partial")

	if got := f.Transcript(); got != "first answer" {
		t.Errorf("expected only the first final, got %q", got)
	}
}

func TestFeed_TranscriptNeverShrinks(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	f.OnPartial("we should basically expand")
	f.OnPartial("we should")

	if got := f.Transcript(); got != "we should basically expand" {
		t.Errorf("transcript shrank to %q", got)
	}

	f.OnFinal("we should basically expand now", 0.9)
	if got := f.Transcript(); got != "we should basically expand now" {
		t.Errorf("expected final text, got %q", got)
	}
}

func TestFeed_StopKeepsShorterFinal(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	f.OnPartial("so um I think um that this is like basically good")
	f.OnFinal("so I think that this is good", 0.9)
	f.OnEndOfUtterance()

	if got := f.Transcript(); got != "so um I think um that this is like basically good" {
		t.Errorf("live transcript shrank to %q", got)
	}
	if err := f.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if got := f.Transcript(); got != "so I think that this is good" {
		t.Errorf("transcript after stop = %q, want the final text", got)
	}
}

func TestFeed_CloseReleasesAdapterOnce(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(f *Feed)
	}{
		{"never started", func(f *Feed) {}},
		{"listening", func(f *Feed) { f.StartListening(context.Background()) }},
		{"stopped", func(f *Feed) {
			f.StartListening(context.Background())
			f.StopListening()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &testAdapter{}
			f := NewFeed(adapter, "sess-1", "test")
			tt.prepare(f)

			if err := f.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			if err := f.Close(); err != nil {
				t.Fatalf("second Close failed: %v", err)
			}
			if adapter.closes != 1 {
				t.Errorf("adapter closed %d times, want 1", adapter.closes)
			}
			if err := f.StartListening(context.Background()); !errors.Is(err, ErrFeedStopped) {
				t.Errorf("expected ErrFeedStopped after Close, got %v", err)
			}
		})
	}
}

func TestFeed_CloseAfterStartError(t *testing.T) {
	adapter := &testAdapter{startErr: errors.New("no credentials")}
	f := NewFeed(adapter, "sess-1", "test")

	if err := f.StartListening(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if adapter.closes != 1 {
		t.Errorf("adapter closed %d times, want 1", adapter.closes)
	}
}

func TestFeed_StopPromotesInterim(t *testing.T) {
	adapter := &testAdapter{}
	f := startedFeed(t, adapter)

	f.OnFinal("Thank you", 0.9)
	f.OnEndOfUtterance()
	f.OnPartial("and goodbye")

	if err := f.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if adapter.closes != 1 {
		t.Errorf("adapter closed %d times, want 1", adapter.closes)
	}
	if got := f.Transcript(); got != "Thank you and goodbye" {
		t.Errorf("expected interim promoted, got %q", got)
	}

	f.OnFinal("late", 0.9)
	f.OnPartial("later")
	if got := f.Transcript(); got != "Thank you and goodbye" {
		t.Errorf("results after stop must be ignored, got %q", got)
	}
}

func TestFeed_FinalDuringDrainIsKept(t *testing.T) {
	adapter := &testAdapter{
		onClose: func(cb stt.Callback) {
			cb.OnFinal("our market share will double", 0.95)
		},
	}
	f := startedFeed(t, adapter)
	f.OnPartial("our market")

	if err := f.StopListening(); err != nil {
		t.Fatalf("StopListening failed: %v", err)
	}
	if got := f.Transcript(); got != "our market share will double" {
		t.Errorf("expected drained final, got %q", got)
	}
}

func TestFeed_StopIsIdempotent(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	if err := f.StopListening(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := f.StopListening(); err != nil {
		t.Errorf("second stop should be a no-op, got %v", err)
	}
	if err := f.StartListening(context.Background()); !errors.Is(err, ErrFeedStopped) {
		t.Errorf("expected ErrFeedStopped, got %v", err)
	}
}

func TestFeed_StartError(t *testing.T) {
	f := NewFeed(&testAdapter{startErr: errors.New("no credentials")}, "sess-1", "test")

	if err := f.StartListening(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if err := f.SendAudio(context.Background(), []byte{1, 2}); !errors.Is(err, ErrNotListening) {
		t.Errorf("expected ErrNotListening, got %v", err)
	}
}

func TestFeed_ErrorKeepsPartialText(t *testing.T) {
	f := startedFeed(t, &testAdapter{})

	f.OnFinal("First, demand is growing", 0.9)
	f.OnEndOfUtterance()
	f.OnPartial("Second we")

	streamErr := errors.New("stream reset")
	f.OnError(streamErr)

	if !errors.Is(f.Err(), streamErr) {
		t.Errorf("expected recorded error, got %v", f.Err())
	}
	if got := f.Transcript(); got != "First, demand is growing Second we" {
		t.Errorf("expected partial transcript kept, got %q", got)
	}

	f.OnFinal("Second, we have a product", 0.9)
	if got := f.Transcript(); got != "First, demand is growing Second we" {
		t.Errorf("final after error must be ignored, got %q", got)
	}
}

func TestFeed_MaxAudioBytesLimit(t *testing.T) {
	adapter := &testAdapter{}
	f := startedFeed(t, adapter)
	f.WithLimits(Limits{MaxAudioBytes: 100})
	ctx := context.Background()

	if err := f.SendAudio(ctx, make([]byte, 50)); err != nil {
		t.Fatalf("first send should succeed: %v", err)
	}
	if err := f.SendAudio(ctx, make([]byte, 60)); !errors.Is(err, ErrAudioLimit) {
		t.Fatalf("expected ErrAudioLimit, got %v", err)
	}
	if len(adapter.audio) != 1 {
		t.Errorf("expected 1 forwarded chunk, got %d", len(adapter.audio))
	}

	f.OnEndOfUtterance()
	if err := f.SendAudio(ctx, make([]byte, 60)); err != nil {
		t.Errorf("limit should reset on a new utterance, got %v", err)
	}
}

func TestFeed_MaxPartialsLimit(t *testing.T) {
	f := startedFeed(t, &testAdapter{})
	f.WithLimits(Limits{MaxPartials: 2})

	f.OnPartial("one")
	f.OnPartial("one two")
	f.OnPartial("one two three")

	if got := f.Transcript(); got != "one two" {
		t.Errorf("expected partials beyond the limit ignored, got %q", got)
	}

	f.OnFinal("one two three four", 0.9)
	if got := f.Transcript(); got != "one two three four" {
		t.Errorf("final must still be accepted, got %q", got)
	}
}

func TestFeed_Observer(t *testing.T) {
	var updates []Update
	f := NewFeed(&testAdapter{}, "sess-1", "test").WithObserver(func(u Update) {
		updates = append(updates, u)
	})
	if err := f.StartListening(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.OnPartial("hello")
	f.OnFinal("hello there", 0.9)

	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	if updates[0].IsFinal || updates[0].Text != "hello" {
		t.Errorf("unexpected first update %+v", updates[0])
	}
	if !updates[1].IsFinal || updates[1].Text != "hello there" {
		t.Errorf("unexpected second update %+v", updates[1])
	}
}

func TestFeed_WithMockRecognizer(t *testing.T) {
	script := []mock.Utterance{
		{Partials: []string{"um", "um okay"}, Final: "Um, okay, first point.", Confidence: 0.9},
		{Partials: []string{"second"}, Final: "Second point.", Confidence: 0.9},
	}
	adapter := mock.NewWithScript(script, mock.Options{FramesPerStep: 1})
	f := startedFeed(t, adapter)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := f.SendAudio(ctx, make([]byte, 320)); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	if got := f.Transcript(); got != "Um, okay, first point. second" {
		t.Errorf("unexpected running transcript %q", got)
	}

	if err := f.StopListening(); err != nil {
		t.Fatalf("StopListening: %v", err)
	}
	if got := f.Transcript(); got != "Um, okay, first point. Second point." {
		t.Errorf("expected final from close, got %q", got)
	}
	if f.Utterances() != 1 {
		t.Errorf("expected 1 completed utterance, got %d", f.Utterances())
	}
}
