// Package transcript turns the callbacks of a speech recognizer into the
// running transcript of a session.
//
// A Feed listens once: it is started when the speaking phase begins and
// stopped when it ends. Committed finals are joined in arrival order and the
// current interim result is appended to them. Live reads never shrink; once
// stopped, Transcript() returns exactly the committed text.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
	"speech-coach-service/internal/service/stt"
)

// Errors returned by Feed.
var (
	ErrNotListening  = errors.New("transcript feed is not listening")
	ErrFeedStopped   = errors.New("transcript feed already stopped")
	ErrAudioLimit    = errors.New("utterance audio limit exceeded")
	errPartialsLimit = errors.New("utterance partial limit exceeded")
)

// Limits bound the resources one utterance may consume.
type Limits struct {
	MaxAudioBytes int64 // audio forwarded to the recognizer per utterance
	MaxPartials   int   // partial results accepted per utterance
}

// DefaultLimits returns the limits used by the service.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 5 * 1024 * 1024, // ~160 seconds at 16kHz 16-bit mono
		MaxPartials:   500,
	}
}

// Update is delivered to the observer whenever the transcript changes.
type Update struct {
	Text    string
	IsFinal bool
}

type feedState int

const (
	feedIdle feedState = iota
	feedListening
	feedStopping
	feedStopped
)

// Feed implements stt.Callback and accumulates the session transcript.
type Feed struct {
	adapter   stt.Adapter
	sessionID string
	provider  string
	limits    Limits
	observer  func(Update)
	ids       IDGenerator
	utterance *Utterance

	log     zerolog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	state        feedState
	finals       []string
	interim      string
	highWater    string
	audioBytes   int64
	partialCount int
	limitHit     bool
	utterances   int
	err          error
	released     bool
}

// NewFeed creates a feed reading from adapter.
func NewFeed(adapter stt.Adapter, sessionID, provider string) *Feed {
	f := &Feed{
		adapter:   adapter,
		sessionID: sessionID,
		provider:  provider,
		limits:    DefaultLimits(),
		log:       logging.WithRecognizer(sessionID, provider),
		metrics:   metrics.DefaultMetrics,
	}
	f.utterance = NewUtterance(f.ids.Next(sessionID))
	return f
}

// WithObserver registers fn to receive transcript updates. fn is called
// without any feed lock held, from the recognizer's goroutine.
func (f *Feed) WithObserver(fn func(Update)) *Feed {
	f.observer = fn
	return f
}

// WithLimits replaces the default limits. Zero fields disable a limit.
func (f *Feed) WithLimits(l Limits) *Feed {
	f.limits = l
	return f
}

// StartListening opens the recognition stream. Calling it while listening
// is a no-op.
func (f *Feed) StartListening(ctx context.Context) error {
	f.mu.Lock()
	switch f.state {
	case feedListening:
		f.mu.Unlock()
		return nil
	case feedStopping, feedStopped:
		f.mu.Unlock()
		return ErrFeedStopped
	}
	f.state = feedListening
	f.mu.Unlock()

	if err := f.adapter.Start(ctx, f); err != nil {
		f.mu.Lock()
		f.state = feedIdle
		f.mu.Unlock()
		f.metrics.RecordSTTError(f.provider, "start")
		return fmt.Errorf("failed to start recognition: %w", err)
	}

	f.log.Info().Str("utteranceId", f.utterance.ID()).Msg("Transcript feed listening")
	return nil
}

// StopListening closes the recognition stream. Results delivered while the
// stream drains are kept; any interim text left over is promoted into the
// transcript. Results arriving afterwards are ignored.
func (f *Feed) StopListening() error {
	f.mu.Lock()
	if f.state != feedListening {
		f.mu.Unlock()
		return nil
	}
	f.state = feedStopping
	f.released = true
	f.mu.Unlock()

	err := f.adapter.Close()

	f.mu.Lock()
	f.promoteInterim()
	f.state = feedStopped
	text := f.transcriptLocked()
	utterances := f.utterances
	f.mu.Unlock()

	f.utterance.Close()

	f.log.Info().
		Int("utterances", utterances).
		Int("transcriptLength", len(text)).
		Msg("Transcript feed stopped")

	if err != nil {
		return fmt.Errorf("failed to close recognition: %w", err)
	}
	return nil
}

// Close releases the recognizer in any state, stopping it first when the
// feed is listening. The adapter is closed once.
func (f *Feed) Close() error {
	stopErr := f.StopListening()

	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return stopErr
	}
	f.released = true
	f.state = feedStopped
	f.mu.Unlock()

	if err := f.adapter.Close(); err != nil {
		return fmt.Errorf("failed to close recognition: %w", err)
	}
	return stopErr
}

// SendAudio forwards PCM audio to the recognizer. Once the current
// utterance exceeds its audio limit further audio is dropped until the
// recognizer reports the end of the utterance.
func (f *Feed) SendAudio(ctx context.Context, audio []byte) error {
	f.mu.Lock()
	if f.state != feedListening {
		f.mu.Unlock()
		return ErrNotListening
	}
	f.audioBytes += int64(len(audio))
	if f.limits.MaxAudioBytes > 0 && f.audioBytes > f.limits.MaxAudioBytes {
		first := !f.limitHit
		f.limitHit = true
		current := f.audioBytes
		f.mu.Unlock()

		if first {
			f.metrics.RecordSTTError(f.provider, "audio_limit")
			f.log.Warn().
				Str("utteranceId", f.utterance.ID()).
				Int64("audioBytes", current).
				Int64("maxAudioBytes", f.limits.MaxAudioBytes).
				Msg("Utterance audio limit exceeded, dropping audio")
		}
		return ErrAudioLimit
	}
	f.mu.Unlock()

	return f.adapter.SendAudio(ctx, audio)
}

// Transcript returns the committed text followed by the current interim
// result. While listening the returned text never gets shorter, even when
// the recognizer revises an interim into a shorter final. After
// StopListening it is the committed text alone.
func (f *Feed) Transcript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcriptLocked()
}

// Err returns the last recognition error, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Utterances returns the number of completed utterances.
func (f *Feed) Utterances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.utterances
}

// UtteranceID returns the ID of the current utterance.
func (f *Feed) UtteranceID() string {
	return f.utterance.ID()
}

// --- stt.Callback implementation ---

// OnPartial replaces the interim text of the current utterance.
func (f *Feed) OnPartial(text string) {
	if err := f.utterance.Partial(); err != nil {
		f.log.Debug().
			Str("utteranceId", f.utterance.ID()).
			Str("state", f.utterance.State().String()).
			Err(err).
			Msg("Partial ignored")
		return
	}

	f.mu.Lock()
	if !f.accepting() {
		f.mu.Unlock()
		return
	}
	f.partialCount++
	if f.limits.MaxPartials > 0 && f.partialCount > f.limits.MaxPartials {
		count := f.partialCount
		f.mu.Unlock()
		if count == f.limits.MaxPartials+1 {
			f.log.Warn().
				Str("utteranceId", f.utterance.ID()).
				Err(errPartialsLimit).
				Msg("Ignoring further partials")
		}
		return
	}
	f.interim = strings.TrimSpace(text)
	current := f.transcriptLocked()
	f.mu.Unlock()

	f.metrics.RecordTranscript(false)
	f.notify(Update{Text: current})
}

// OnFinal commits the final text of the current utterance.
func (f *Feed) OnFinal(text string, confidence float64) {
	f.mu.Lock()
	accepting := f.accepting()
	f.mu.Unlock()
	if !accepting {
		return
	}

	if err := f.utterance.Commit(); err != nil {
		f.log.Debug().
			Str("utteranceId", f.utterance.ID()).
			Str("state", f.utterance.State().String()).
			Err(err).
			Msg("Final ignored")
		return
	}

	f.mu.Lock()
	f.interim = ""
	if t := strings.TrimSpace(text); t != "" {
		f.finals = append(f.finals, t)
	}
	current := f.transcriptLocked()
	f.mu.Unlock()

	f.log.Debug().
		Str("utteranceId", f.utterance.ID()).
		Float64("confidence", confidence).
		Msg("Final transcript committed")

	f.metrics.RecordTranscript(true)
	f.notify(Update{Text: current, IsFinal: true})
}

// OnEndOfUtterance closes the current utterance and opens the next one.
func (f *Feed) OnEndOfUtterance() {
	f.mu.Lock()
	if f.state != feedListening {
		f.mu.Unlock()
		return
	}
	f.utterances++
	count := f.utterances
	bytes, partials := f.audioBytes, f.partialCount
	f.audioBytes = 0
	f.partialCount = 0
	f.limitHit = false
	f.mu.Unlock()

	oldID := f.utterance.ID()
	f.utterance.Close()
	newID := f.ids.Next(f.sessionID)
	f.utterance.Reset(newID)

	f.metrics.RecordUtterance()
	f.log.Debug().
		Str("oldUtterance", oldID).
		Str("newUtterance", newID).
		Int("utterance", count).
		Int64("audioBytes", bytes).
		Int("partials", partials).
		Msg("End of utterance")
}

// OnError discards the current utterance. Interim text already seen is kept
// so the session can still be scored on a partial transcript.
func (f *Feed) OnError(err error) {
	f.mu.Lock()
	f.err = err
	f.promoteInterim()
	f.mu.Unlock()

	dropped := f.utterance.Discard()
	f.metrics.RecordSTTError(f.provider, "recognition")
	f.log.Warn().
		Err(err).
		Str("utteranceId", f.utterance.ID()).
		Bool("discarded", dropped).
		Msg("Recognition error")
}

// accepting reports whether results may still change the transcript.
// Callers hold mu.
func (f *Feed) accepting() bool {
	return f.state == feedListening || f.state == feedStopping
}

// promoteInterim moves the interim text into the committed text. Callers
// hold mu.
func (f *Feed) promoteInterim() {
	if f.interim != "" {
		f.finals = append(f.finals, f.interim)
		f.interim = ""
	}
}

// transcriptLocked builds the transcript. Live reads are held at the
// high-water mark. Callers hold mu.
func (f *Feed) transcriptLocked() string {
	parts := f.finals
	if f.interim != "" {
		parts = append(parts[:len(parts):len(parts)], f.interim)
	}
	text := strings.Join(parts, " ")
	if !f.accepting() {
		return text
	}
	if len(text) < len(f.highWater) {
		return f.highWater
	}
	f.highWater = text
	return text
}

func (f *Feed) notify(u Update) {
	if f.observer != nil {
		f.observer(u)
	}
}
