package otp

import (
	"strings"

	"github.com/Iron-Ham/relpub/internal/runner"
)

// CodeLength is the number of digits in a one-time code.
const CodeLength = 6

// Outcome classifies one publish attempt.
type Outcome int

const (
	OutcomeMalformed Outcome = iota
	OutcomeRejectedRetryable
	OutcomeRejectedOpaque
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeRejectedRetryable:
		return "rejected-retryable"
	case OutcomeRejectedOpaque:
		return "rejected-opaque"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Event returns the state machine event for o.
func (o Outcome) Event() Event {
	switch o {
	case OutcomeAccepted:
		return EventAccepted
	case OutcomeRejectedRetryable:
		return EventRejectedRetryable
	case OutcomeRejectedOpaque:
		return EventRejectedOpaque
	default:
		return EventMalformed
	}
}

// Attempt is one iteration of the loop. It is discarded once classified.
type Attempt struct {
	Code    string
	Index   int
	Outcome Outcome
	// Detail is the publish tool's output for rejected attempts.
	Detail string
}

// WellFormed reports whether code is exactly six ASCII digits.
func WellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// Classify maps a publish result to an outcome. A nonzero exit whose output
// mentions "invalid" or "expired", in any case, is retryable; any other
// failure is opaque.
func Classify(res runner.Result) Outcome {
	if res.Success() {
		return OutcomeAccepted
	}
	return ClassifyText(res.Output())
}

// ClassifyText classifies failure text.
func ClassifyText(text string) Outcome {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "invalid") || strings.Contains(lower, "expired") {
		return OutcomeRejectedRetryable
	}
	return OutcomeRejectedOpaque
}
