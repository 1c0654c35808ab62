// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"

	"speech-coach-service/internal/observability/logging"
	"speech-coach-service/internal/service/stt"
)

// Config holds recognition settings sent with the first streaming request.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	// Model selects a recognition model; empty uses the provider default.
	Model string
	// Phrases are boosted so disfluencies survive transcription.
	Phrases []string
}

// phraseBoost is the speech adaptation boost applied to Phrases.
const phraseBoost = 15

// DefaultConfig returns settings for 16 kHz LINEAR16 en-US answers with
// interim results.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config
	log    zerolog.Logger

	mu     sync.Mutex
	stream speechpb.Speech_StreamingRecognizeClient
	cb     stt.Callback
	done   chan struct{}
	closed bool
}

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &Adapter{
		client: c,
		cfg:    cfg,
		log:    logging.WithComponent("stt-google"),
	}, nil
}

// Start opens a streaming recognition session, sends the config and starts
// delivering results to cb.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	stream, err := a.client.StreamingRecognize(ctx)
	if err != nil {
		return fmt.Errorf("failed to open recognition stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: streamingConfig(a.cfg),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	done := make(chan struct{})
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		_ = stream.CloseSend()
		return errors.New("adapter closed")
	}
	a.stream = stream
	a.cb = cb
	a.done = done
	a.mu.Unlock()

	go a.listen(stream, cb, done)
	return nil
}

// SendAudio sends audio bytes to Google Speech-to-Text.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	stream := a.stream
	a.mu.Unlock()
	if stream == nil {
		return errors.New("recognition stream not started")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close half-closes the stream, waits for the remaining results and
// releases the client. It is idempotent.
func (a *Adapter) Close() error {
	a.mu.Lock()
	stream, done, closed := a.stream, a.done, a.closed
	a.stream = nil
	a.closed = true
	a.mu.Unlock()

	if closed {
		return nil
	}
	var err error
	if stream != nil {
		err = stream.CloseSend()
		<-done
	}
	if a.client != nil {
		if cerr := a.client.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (a *Adapter) listen(stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback, done chan struct{}) {
	defer close(done)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			cb.OnError(err)
			return
		}
		if e := a.log.Debug(); e.Enabled() {
			e.Str("response", protojson.Format(resp)).Msg("Recognition response")
		}
		deliver(resp, cb)
	}
}

// deliver maps one streaming response onto the callback. Only the top
// alternative of each result is used; a final result also ends the utterance.
func deliver(resp *speechpb.StreamingRecognizeResponse, cb stt.Callback) {
	if st := resp.GetError(); st != nil {
		cb.OnError(fmt.Errorf("recognition error %d: %s", st.GetCode(), st.GetMessage()))
		return
	}
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if r.GetIsFinal() {
			cb.OnFinal(alts[0].GetTranscript(), float64(alts[0].GetConfidence()))
			cb.OnEndOfUtterance()
		} else {
			cb.OnPartial(alts[0].GetTranscript())
		}
	}
}

func streamingConfig(cfg Config) *speechpb.StreamingRecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(cfg.AudioEncoding),
		SampleRateHertz:            cfg.SampleRateHz,
		LanguageCode:               cfg.LanguageCode,
		EnableAutomaticPunctuation: true,
		Model:                      cfg.Model,
	}
	if len(cfg.Phrases) > 0 {
		rc.SpeechContexts = []*speechpb.SpeechContext{{
			Phrases: append([]string(nil), cfg.Phrases...),
			Boost:   phraseBoost,
		}}
	}
	return &speechpb.StreamingRecognitionConfig{
		Config:         rc,
		InterimResults: cfg.InterimResults,
	}
}

// parseAudioEncoding accepts the enum names of RecognitionConfig in any
// case. Unknown names fall back to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[strings.ToUpper(strings.TrimSpace(s))]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}
