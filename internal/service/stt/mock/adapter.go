// Package mock provides a mock STT adapter for running sessions without
// cloud credentials. It simulates progressive partial transcripts, exactly
// one final transcript per utterance and utterance boundary detection.
package mock

import (
	"context"
	"sync"
	"time"

	"speech-coach-service/internal/service/stt"
)

// Utterance is one scripted recognition: the interim hypotheses in order,
// then the final text and its confidence.
type Utterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances is a short practice answer with a few fillers in it.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"So", "So um", "So um I think"},
		Final:      "So, um, I think our team should expand into the European market",
		Confidence: 0.93,
	},
	{
		Partials:   []string{"First", "First because", "First because demand"},
		Final:      "First, because demand there has grown for three straight years",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"Second", "Second for example"},
		Final:      "Second, for example, our two largest competitors already sell there",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"Finally", "Finally uh", "Finally uh we"},
		Final:      "Finally, uh, we basically have the product ready to launch",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you",
		Confidence: 0.98,
	},
}

// Options tune the simulation.
type Options struct {
	// Delay before callbacks fire. Zero delivers callbacks synchronously
	// from SendAudio and Close.
	Delay time.Duration
	// FramesPerStep is the number of audio frames consumed per partial.
	FramesPerStep int
}

// DefaultOptions matches the pacing of a live recognizer fed small frames.
func DefaultOptions() Options {
	return Options{Delay: 50 * time.Millisecond, FramesPerStep: 1}
}

// Adapter implements stt.Adapter by playing a script of utterances, one
// step per FramesPerStep audio frames.
type Adapter struct {
	script []Utterance
	opts   Options

	mu      sync.Mutex
	cb      stt.Callback
	frames  int // frames counted since Start
	index   int // position in script
	current Utterance
	partial int  // next partial of current
	final   bool // final of current already delivered
	closed  bool
}

// utteranceCounter rotates the starting utterance across adapters.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter that starts at the next default utterance and
// plays the rest of the default script after it.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	script := append(append([]Utterance(nil), DefaultUtterances[idx:]...), DefaultUtterances[:idx]...)
	return NewWithScript(script, DefaultOptions())
}

// NewWithScript creates a mock adapter that plays script once, in order.
func NewWithScript(script []Utterance, opts Options) *Adapter {
	if opts.FramesPerStep <= 0 {
		opts.FramesPerStep = 1
	}
	a := &Adapter{script: script, opts: opts}
	if len(script) > 0 {
		a.current = script[0]
	} else {
		a.final = true
	}
	return a
}

// Start begins a mock transcription session.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the simulation by one frame. Every FramesPerStep
// frames the next partial is delivered; once the partials of an utterance
// are exhausted its final and end-of-utterance follow, and the script moves
// on to the next utterance.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}

	a.frames++
	if a.frames%a.opts.FramesPerStep != 0 {
		a.mu.Unlock()
		return nil
	}

	var deliver func(cb stt.Callback)
	switch utt := a.current; {
	case a.partial < len(utt.Partials):
		text := utt.Partials[a.partial]
		a.partial++
		deliver = func(cb stt.Callback) { cb.OnPartial(text) }
	case !a.final:
		a.final = true
		a.advance()
		deliver = func(cb stt.Callback) {
			cb.OnFinal(utt.Final, utt.Confidence)
			cb.OnEndOfUtterance()
		}
	}
	a.mu.Unlock()

	if deliver != nil {
		a.dispatch(deliver)
	}
	return nil
}

// advance moves to the next scripted utterance. Callers hold mu.
func (a *Adapter) advance() {
	a.index++
	if a.index >= len(a.script) {
		return
	}
	a.current = a.script[a.index]
	a.partial = 0
	a.final = false
}

// dispatch runs fn now or after the configured delay. Delayed callbacks are
// skipped if the adapter was closed meanwhile.
func (a *Adapter) dispatch(fn func(cb stt.Callback)) {
	a.mu.Lock()
	cb := a.cb
	a.mu.Unlock()

	if a.opts.Delay <= 0 {
		fn(cb)
		return
	}
	go func() {
		time.Sleep(a.opts.Delay)
		a.mu.Lock()
		closed := a.closed
		a.mu.Unlock()
		if !closed {
			fn(cb)
		}
	}()
}

// Close ends the mock session. If the current utterance never produced a
// final, it is sent now.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	sendFinal := !a.final && a.cb != nil
	a.final = true
	cb := a.cb
	utt := a.current
	delay := a.opts.Delay
	a.mu.Unlock()

	if !sendFinal {
		return nil
	}
	if delay <= 0 {
		cb.OnFinal(utt.Final, utt.Confidence)
		return nil
	}
	go func() {
		time.Sleep(2 * delay)
		cb.OnFinal(utt.Final, utt.Confidence)
	}()
	return nil
}
