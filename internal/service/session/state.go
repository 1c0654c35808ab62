// Package session runs the practice session state machine.
//
// State transitions:
//
//	IDLE → PREPARING → SPEAKING → ANALYZING → RESULTS
//	         │  ▲                                │
//	         │  └──────── start (again) ─────────┤
//	         └── stop ──→ IDLE ◀──── reset ───────┘
//
// Reset returns to IDLE from any state.
package session

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of the current session.
type State int

const (
	// StateIdle has no session; only Start is accepted.
	StateIdle State = iota
	// StatePreparing shows the question while the preparation countdown runs.
	StatePreparing
	// StateSpeaking records audio and transcript.
	StateSpeaking
	// StateAnalyzing waits for the pending analysis.
	StateAnalyzing
	// StateResults holds the final analysis and feedback.
	StateResults
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateSpeaking:
		return "speaking"
	case StateAnalyzing:
		return "analyzing"
	case StateResults:
		return "results"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseState returns the state named s.
func ParseState(s string) (State, error) {
	for st := StateIdle; st <= StateResults; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown session state %q", s)
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Active reports whether a session occupies the engine.
func (s State) Active() bool {
	return s == StatePreparing || s == StateSpeaking || s == StateAnalyzing
}

// Errors returned by the orchestrator.
var (
	ErrSessionActive     = errors.New("a session is already in progress")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrClosed            = errors.New("orchestrator is closed")
	ErrNoAudioInput      = errors.New("no session is accepting audio")
)

var transitions = map[State][]State{
	StateIdle:      {StatePreparing},
	StatePreparing: {StateSpeaking, StateIdle},
	StateSpeaking:  {StateAnalyzing, StateIdle},
	StateAnalyzing: {StateResults, StateIdle},
	StateResults:   {StatePreparing, StateIdle},
}

// ValidTransition reports whether the machine may move from one state to
// another.
func ValidTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
