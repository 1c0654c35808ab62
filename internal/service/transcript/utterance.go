package transcript

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// UtteranceState is the lifecycle state of one recognized utterance.
type UtteranceState int

const (
	// UtteranceOpen accepts partial results and one final.
	UtteranceOpen UtteranceState = iota
	// UtteranceCommitted has its final text in the transcript.
	UtteranceCommitted
	// UtteranceClosed ended normally.
	UtteranceClosed
	// UtteranceDiscarded ended on a recognition error; no final follows.
	UtteranceDiscarded
)

// String returns the string representation of the state.
func (s UtteranceState) String() string {
	switch s {
	case UtteranceOpen:
		return "OPEN"
	case UtteranceCommitted:
		return "COMMITTED"
	case UtteranceClosed:
		return "CLOSED"
	case UtteranceDiscarded:
		return "DISCARDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED and DISCARDED.
func (s UtteranceState) IsTerminal() bool {
	return s == UtteranceClosed || s == UtteranceDiscarded
}

// Errors for invalid utterance transitions.
var (
	ErrUtteranceClosed    = errors.New("utterance is closed")
	ErrAlreadyCommitted   = errors.New("final already committed for this utterance")
	ErrPartialAfterCommit = errors.New("cannot accept partial after final")
)

// Utterance guards the result ordering of a single utterance.
//
//	OPEN → COMMITTED → CLOSED
//	  │
//	  └── Discard() ──→ DISCARDED
type Utterance struct {
	mu    sync.RWMutex
	id    string
	state UtteranceState
}

// NewUtterance creates an utterance in OPEN state.
func NewUtterance(id string) *Utterance {
	return &Utterance{id: id, state: UtteranceOpen}
}

// ID returns the utterance ID.
func (u *Utterance) ID() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.id
}

// State returns the current state.
func (u *Utterance) State() UtteranceState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// Partial validates a partial result.
func (u *Utterance) Partial() error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	switch u.state {
	case UtteranceOpen:
		return nil
	case UtteranceCommitted:
		return ErrPartialAfterCommit
	default:
		return ErrUtteranceClosed
	}
}

// Commit validates a final result and moves to COMMITTED.
func (u *Utterance) Commit() error {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch u.state {
	case UtteranceOpen:
		u.state = UtteranceCommitted
		return nil
	case UtteranceCommitted:
		return ErrAlreadyCommitted
	default:
		return ErrUtteranceClosed
	}
}

// Close moves to CLOSED unless already discarded. Idempotent.
func (u *Utterance) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state != UtteranceDiscarded {
		u.state = UtteranceClosed
	}
}

// Discard abandons the utterance. Returns false if it had already ended.
func (u *Utterance) Discard() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.state.IsTerminal() {
		return false
	}
	u.state = UtteranceDiscarded
	return true
}

// Reset reopens the utterance under a new ID.
func (u *Utterance) Reset(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.id = id
	u.state = UtteranceOpen
}

// IDGenerator hands out utterance IDs scoped to a session.
type IDGenerator struct {
	counter uint64
}

// Next returns "<sessionID>-utt-<n>".
func (g *IDGenerator) Next(sessionID string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-utt-%d", sessionID, n)
}
