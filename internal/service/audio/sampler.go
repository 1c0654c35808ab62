package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/observability/metrics"
)

type samplerState int

const (
	samplerNew samplerState = iota
	samplerReady
	samplerRecording
	samplerStopped
	samplerReleased
)

// Sampler holds the audio input of one session and accumulates the volume
// history of its current recording span.
type Sampler struct {
	mu       sync.Mutex
	device   Device
	analyser *Analyser
	frame    []float64
	history  []float64
	state    samplerState

	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewSampler wraps device. A nil analyser selects the default configuration.
func NewSampler(device Device, analyser *Analyser) *Sampler {
	if analyser == nil {
		analyser = NewAnalyser(DefaultAnalyserConfig())
	}
	return &Sampler{
		device:   device,
		analyser: analyser,
		frame:    make([]float64, analyser.Size()),
		log:      logging.WithComponent("sampler"),
		metrics:  metrics.DefaultMetrics,
	}
}

// WithLogger replaces the sampler's logger.
func (s *Sampler) WithLogger(l zerolog.Logger) *Sampler {
	s.log = l
	return s
}

// Initialize acquires the device. Calling it again while initialized is a
// no-op; after Cleanup it reacquires the device.
func (s *Sampler) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != samplerNew && s.state != samplerReleased {
		return nil
	}
	if s.device == nil {
		return ErrDeviceUnavailable
	}
	if err := s.device.Open(ctx); err != nil {
		return fmt.Errorf("failed to open audio input: %w", err)
	}
	s.state = samplerReady
	return nil
}

// StartRecording clears the history and starts accepting samples.
func (s *Sampler) StartRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case samplerNew, samplerReleased:
		return ErrNotInitialized
	}
	s.history = s.history[:0]
	s.analyser.Reset()
	s.state = samplerRecording
	return nil
}

// Sample takes one energy reading and appends it to the history. Read
// errors are logged and contribute nothing.
func (s *Sampler) Sample() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != samplerRecording {
		return 0, false
	}
	if _, err := s.device.Read(s.frame); err != nil {
		s.log.Warn().Err(err).Msg("Audio read failed, skipping sample")
		s.metrics.RecordVolumeSample(false)
		return 0, false
	}
	v := s.analyser.Energy(s.frame)
	s.history = append(s.history, v)
	s.metrics.RecordVolumeSample(true)
	return v, true
}

// StopRecording halts sampling. The history stays readable.
func (s *Sampler) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == samplerRecording {
		s.state = samplerStopped
	}
}

// Recording reports whether samples are being accepted.
func (s *Sampler) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == samplerRecording
}

// History returns a copy of the current volume history.
func (s *Sampler) History() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.history...)
}

// Cleanup releases the device. It is safe to call more than once.
func (s *Sampler) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == samplerNew || s.state == samplerReleased {
		return nil
	}
	s.state = samplerReleased
	if err := s.device.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close audio input")
		return err
	}
	return nil
}

// HistoryFromPCM builds a volume history offline by running the analyser over
// samples at one reading per frameInterval of audio.
func HistoryFromPCM(samples []float64, sampleRate int, frameInterval time.Duration, analyser *Analyser) []float64 {
	if analyser == nil {
		analyser = NewAnalyser(DefaultAnalyserConfig())
	}
	if sampleRate <= 0 || frameInterval <= 0 || len(samples) == 0 {
		return nil
	}
	step := int(math.Round(float64(sampleRate) * frameInterval.Seconds()))
	if step < 1 {
		step = 1
	}

	var history []float64
	for end := step; end <= len(samples); end += step {
		history = append(history, analyser.Energy(samples[:end]))
	}
	return history
}
