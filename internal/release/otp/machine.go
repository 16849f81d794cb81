// Package otp drives OTP-gated publish attempts.
//
// The retry policy lives in a pure state machine: Step maps a Machine and an
// Event to the next Machine and performs no I/O. Loop supplies the events by
// reading codes from the operator and running the publish command.
//
//	AwaitingOTP --malformed--> AwaitingOTP
//	AwaitingOTP --well-formed--> Publishing
//	Publishing --accepted--> Succeeded
//	Publishing --rejected-retryable|rejected-opaque--> Failed (attempts+1)
//	Failed --settle--> AwaitingOTP (attempts < max) | Exhausted
package otp

import "fmt"

// State is a publish loop state.
type State int

const (
	AwaitingOTP State = iota
	Publishing
	Succeeded
	Failed
	Exhausted
)

func (s State) String() string {
	switch s {
	case AwaitingOTP:
		return "awaiting_otp"
	case Publishing:
		return "publishing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool {
	return s == Succeeded || s == Exhausted
}

// Event is an input to the state machine.
type Event int

const (
	EventMalformed Event = iota
	EventWellFormed
	EventAccepted
	EventRejectedRetryable
	EventRejectedOpaque
	EventSettle
)

func (e Event) String() string {
	switch e {
	case EventMalformed:
		return "malformed"
	case EventWellFormed:
		return "well-formed"
	case EventAccepted:
		return "accepted"
	case EventRejectedRetryable:
		return "rejected-retryable"
	case EventRejectedOpaque:
		return "rejected-opaque"
	case EventSettle:
		return "settle"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// DefaultMaxRetries is the number of rejected attempts before giving up.
const DefaultMaxRetries = 3

// Machine is the publish loop state. It is a value; Step returns a new one.
type Machine struct {
	State State
	// Attempts counts rejected publishes. It never exceeds MaxRetries.
	Attempts   int
	MaxRetries int
}

// NewMachine returns a Machine awaiting its first code.
func NewMachine(maxRetries int) Machine {
	if maxRetries < 1 {
		maxRetries = DefaultMaxRetries
	}
	return Machine{State: AwaitingOTP, MaxRetries: maxRetries}
}

// Remaining returns how many rejected attempts are still allowed.
func (m Machine) Remaining() int {
	return m.MaxRetries - m.Attempts
}

// TransitionError reports an event that is not valid in the current state.
type TransitionError struct {
	From  State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s on %s", e.Event, e.From)
}

// Step applies e to m. An invalid event returns m unchanged with a
// *TransitionError.
func Step(m Machine, e Event) (Machine, error) {
	switch m.State {
	case AwaitingOTP:
		switch e {
		case EventMalformed:
			return m, nil
		case EventWellFormed:
			m.State = Publishing
			return m, nil
		}
	case Publishing:
		switch e {
		case EventAccepted:
			m.State = Succeeded
			return m, nil
		case EventRejectedRetryable, EventRejectedOpaque:
			m.State = Failed
			m.Attempts++
			return m, nil
		}
	case Failed:
		if e == EventSettle {
			if m.Attempts < m.MaxRetries {
				m.State = AwaitingOTP
			} else {
				m.State = Exhausted
			}
			return m, nil
		}
	}
	return m, &TransitionError{From: m.State, Event: e}
}
