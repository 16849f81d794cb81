package otp

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/relpub/internal/errors"
	"github.com/Iron-Ham/relpub/internal/logging"
	"github.com/Iron-Ham/relpub/internal/prompt"
	"github.com/Iron-Ham/relpub/internal/release/session"
	"github.com/Iron-Ham/relpub/internal/runner"
	"github.com/Iron-Ham/relpub/internal/ui"
)

// Publisher runs one OTP-authenticated publish.
type Publisher interface {
	Publish(ctx context.Context, bump, code string) (runner.Result, error)
	DisplayCommand(bump string) string
}

// streamer is implemented by publishers that echo tool output as it runs.
type streamer interface {
	Streaming() bool
}

// Loop reads codes and publishes until the machine reaches a terminal state.
type Loop struct {
	publisher  Publisher
	prompter   *prompt.Prompter
	out        *ui.Printer
	logger     *logging.Logger
	maxRetries int
}

// NewLoop creates a Loop allowing maxRetries rejected attempts.
func NewLoop(publisher Publisher, p *prompt.Prompter, out *ui.Printer, logger *logging.Logger, maxRetries int) *Loop {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Loop{
		publisher:  publisher,
		prompter:   p,
		out:        out,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Run drives the publish loop for sess, passing bump to every publish.
// sess.Attempts tracks the rejected attempt count as the loop runs.
//
// It returns nil once a publish is accepted, a *errors.PublishExhaustedError
// once the budget is spent, or the error that stopped it from reading a code
// or starting the publish tool.
func (l *Loop) Run(ctx context.Context, sess *session.Session, bump string) error {
	m := NewMachine(l.maxRetries)
	var last Attempt

	for !m.State.Terminal() {
		var event Event

		switch m.State {
		case AwaitingOTP:
			l.out.Info("OTP attempt %d/%d", m.Attempts+1, m.MaxRetries)
			code, err := l.prompter.Secret("Enter your 2FA code (6 digits):")
			if err != nil {
				return errors.Wrap(err, "failed to read OTP")
			}
			if !WellFormed(code) {
				l.out.Error("OTP must be %d digits", CodeLength)
				l.logger.Debug("malformed otp rejected", "attempt", m.Attempts+1)
				event = EventMalformed
			} else {
				last = Attempt{Code: code, Index: m.Attempts + 1}
				event = EventWellFormed
			}

		case Publishing:
			outcome, err := l.publish(ctx, bump, &last)
			if err != nil {
				return err
			}
			event = outcome.Event()

		case Failed:
			event = EventSettle
		}

		next, err := Step(m, event)
		if err != nil {
			return err
		}
		if next.State == Failed {
			l.reportRejection(last, next)
		}
		m = next
		sess.Attempts = m.Attempts
	}

	if m.State == Exhausted {
		l.out.Error("Maximum OTP attempts reached. Publish failed.")
		l.logger.Error("publish attempts exhausted", "attempts", m.Attempts)
		var cause error
		if last.Detail != "" {
			cause = errors.New(lastLine(last.Detail))
		}
		return errors.NewPublishExhaustedError(sess.BranchName(), m.Attempts, cause)
	}

	l.out.Success("Package published successfully!")
	l.logger.Info("publish accepted", "attempt", last.Index)
	return nil
}

// publish runs one attempt and classifies it. A failure to start the
// publish tool counts as an opaque rejection unless ctx was cancelled.
func (l *Loop) publish(ctx context.Context, bump string, a *Attempt) (Outcome, error) {
	l.out.Info("Running: %s", l.publisher.DisplayCommand(bump))

	res, err := l.publisher.Publish(ctx, bump, a.Code)
	a.Code = ""
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeRejectedOpaque, ctx.Err()
		}
		a.Outcome = OutcomeRejectedOpaque
		a.Detail = err.Error()
		return a.Outcome, nil
	}

	a.Outcome = Classify(res)
	if a.Outcome != OutcomeAccepted {
		a.Detail = strings.TrimSpace(res.Output())
	}
	return a.Outcome, nil
}

func (l *Loop) reportRejection(a Attempt, m Machine) {
	l.logger.Warn("publish rejected",
		"attempt", a.Index,
		"outcome", a.Outcome.String(),
		"remaining", m.Remaining(),
	)

	switch a.Outcome {
	case OutcomeRejectedRetryable:
		l.out.Error("Publish rejected: OTP invalid or expired. %s", remainingText(m.Remaining()))
	default:
		l.out.Error("Publish failed. %s", remainingText(m.Remaining()))
		if a.Detail != "" && !l.streamed() {
			fmt.Fprintln(l.out.Writer(), a.Detail)
		}
	}
}

// streamed reports whether the operator already saw the tool's output live.
func (l *Loop) streamed() bool {
	s, ok := l.publisher.(streamer)
	return ok && s.Streaming()
}

func remainingText(n int) string {
	switch n {
	case 0:
		return "No attempts remaining."
	case 1:
		return "1 attempt remaining."
	default:
		return fmt.Sprintf("%d attempts remaining.", n)
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
