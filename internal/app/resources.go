package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"speech-coach-service/internal/config"
	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/audio"
	"speech-coach-service/internal/service/linguistics"
	"speech-coach-service/internal/service/session"
	"speech-coach-service/internal/service/stt"
	"speech-coach-service/internal/service/stt/google"
	"speech-coach-service/internal/service/stt/mock"
	"speech-coach-service/internal/service/transcript"
)

// AdapterFunc creates the recognizer of one session.
type AdapterFunc func(ctx context.Context) (stt.Adapter, error)

// NewAdapterFunc returns the recognizer constructor for the configured
// provider.
func NewAdapterFunc(cfg config.STTConfig) (AdapterFunc, error) {
	switch cfg.Provider {
	case stt.ProviderMock:
		return func(context.Context) (stt.Adapter, error) { return mock.New(), nil }, nil
	case stt.ProviderGoogle:
		gcfg := google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   int32(cfg.SampleRateHz),
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
			Phrases:        linguistics.DefaultFillers,
		}
		return func(ctx context.Context) (stt.Adapter, error) { return google.New(ctx, gcfg) }, nil
	}
	return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
}

// tappable is a device whose raw PCM can be observed.
type tappable interface {
	audio.Device
	SetTap(fn func([]byte))
}

// ResourceFactory builds the audio input and transcript feed of each
// session. Stream sources accept PCM through the session's input writer;
// file sources replay a recording.
type ResourceFactory struct {
	audio      config.AudioConfig
	provider   string
	limits     transcript.Limits
	newAdapter AdapterFunc
	clock      clockwork.Clock
}

// NewResourceFactory returns a factory for cfg. A nil clock uses real time.
func NewResourceFactory(cfg *config.Config, newAdapter AdapterFunc, clock clockwork.Clock) *ResourceFactory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ResourceFactory{
		audio:    cfg.Audio,
		provider: cfg.STT.Provider,
		limits: transcript.Limits{
			MaxAudioBytes: cfg.Transcript.MaxAudioBytes,
			MaxPartials:   cfg.Transcript.MaxPartials,
		},
		newAdapter: newAdapter,
		clock:      clock,
	}
}

// Acquire implements session.ResourceFactory.
func (f *ResourceFactory) Acquire(ctx context.Context, sessionID string) (*session.Resources, error) {
	var (
		dev   tappable
		input io.Writer
	)
	switch f.audio.Source {
	case "file":
		dev = audio.NewFileDevice(audio.FileConfig{
			Path:         f.audio.FilePath,
			SampleRateHz: f.audio.SampleRateHz,
			WindowSize:   f.audio.WindowSize,
		}, f.clock)
	default:
		sd := audio.NewStreamDevice(f.audio.WindowSize)
		dev, input = sd, sd
	}

	adapter, err := f.newAdapter(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stt.ErrUnavailable, err)
	}

	log := logging.WithRecognizer(sessionID, f.provider)
	feed := transcript.NewFeed(adapter, sessionID, f.provider).WithLimits(f.limits)
	dev.SetTap(audioTap(feed, log))

	sampler := audio.NewSampler(dev, nil).WithLogger(logging.WithSession(sessionID, ""))
	return &session.Resources{Sampler: sampler, Feed: feed, Input: input}, nil
}

// audioTap forwards device PCM to the feed. Audio outside the listening span
// and over the utterance limit is dropped; the feed logs the limit itself.
func audioTap(feed *transcript.Feed, log zerolog.Logger) func([]byte) {
	return func(b []byte) {
		err := feed.SendAudio(context.Background(), b)
		switch {
		case err == nil,
			errors.Is(err, transcript.ErrNotListening),
			errors.Is(err, transcript.ErrFeedStopped),
			errors.Is(err, transcript.ErrAudioLimit):
		default:
			log.Warn().Err(err).Msg("Failed to forward audio to recognizer")
		}
	}
}
