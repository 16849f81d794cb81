package otp

import (
	"errors"
	"testing"

	"github.com/Iron-Ham/relpub/internal/runner"
)

func TestStep(t *testing.T) {
	tests := []struct {
		name         string
		from         Machine
		event        Event
		wantState    State
		wantAttempts int
	}{
		{"malformed stays", Machine{State: AwaitingOTP, Attempts: 1, MaxRetries: 3}, EventMalformed, AwaitingOTP, 1},
		{"well-formed publishes", Machine{State: AwaitingOTP, MaxRetries: 3}, EventWellFormed, Publishing, 0},
		{"accepted", Machine{State: Publishing, Attempts: 2, MaxRetries: 3}, EventAccepted, Succeeded, 2},
		{"retryable rejection", Machine{State: Publishing, MaxRetries: 3}, EventRejectedRetryable, Failed, 1},
		{"opaque rejection", Machine{State: Publishing, Attempts: 1, MaxRetries: 3}, EventRejectedOpaque, Failed, 2},
		{"settle with budget", Machine{State: Failed, Attempts: 2, MaxRetries: 3}, EventSettle, AwaitingOTP, 2},
		{"settle exhausted", Machine{State: Failed, Attempts: 3, MaxRetries: 3}, EventSettle, Exhausted, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Step(tt.from, tt.event)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if got.State != tt.wantState || got.Attempts != tt.wantAttempts {
				t.Errorf("Step() = %s/%d, want %s/%d", got.State, got.Attempts, tt.wantState, tt.wantAttempts)
			}
			if got.MaxRetries != tt.from.MaxRetries {
				t.Error("MaxRetries must not change")
			}
		})
	}
}

func TestStep_InvalidTransitions(t *testing.T) {
	invalid := []struct {
		state State
		event Event
	}{
		{AwaitingOTP, EventAccepted},
		{AwaitingOTP, EventSettle},
		{Publishing, EventMalformed},
		{Publishing, EventSettle},
		{Failed, EventWellFormed},
		{Succeeded, EventWellFormed},
		{Exhausted, EventSettle},
	}
	for _, tt := range invalid {
		from := Machine{State: tt.state, Attempts: 1, MaxRetries: 3}
		got, err := Step(from, tt.event)
		var terr *TransitionError
		if !errors.As(err, &terr) {
			t.Errorf("Step(%s, %s) error = %v, want TransitionError", tt.state, tt.event, err)
		}
		if got != from {
			t.Errorf("Step(%s, %s) changed machine to %+v", tt.state, tt.event, got)
		}
	}
}

func TestStep_MalformedNeverConsumesBudget(t *testing.T) {
	m := NewMachine(3)
	for i := 0; i < 100; i++ {
		var err error
		if m, err = Step(m, EventMalformed); err != nil {
			t.Fatal(err)
		}
	}
	if m.State != AwaitingOTP || m.Attempts != 0 {
		t.Errorf("after malformed codes: %s/%d", m.State, m.Attempts)
	}
}

func TestStep_ExhaustsAfterMaxRejections(t *testing.T) {
	for _, max := range []int{1, 3, 5} {
		m := NewMachine(max)
		publishes := 0
		for !m.State.Terminal() {
			var err error
			switch m.State {
			case AwaitingOTP:
				m, err = Step(m, EventWellFormed)
			case Publishing:
				publishes++
				m, err = Step(m, EventRejectedRetryable)
			case Failed:
				m, err = Step(m, EventSettle)
			}
			if err != nil {
				t.Fatal(err)
			}
			if m.Attempts > max {
				t.Fatalf("attempts %d exceeded max %d", m.Attempts, max)
			}
		}
		if m.State != Exhausted || publishes != max {
			t.Errorf("max=%d: state %s after %d publishes", max, m.State, publishes)
		}
	}
}

func TestNewMachine(t *testing.T) {
	if m := NewMachine(0); m.MaxRetries != DefaultMaxRetries || m.State != AwaitingOTP {
		t.Errorf("NewMachine(0) = %+v", m)
	}
	if m := NewMachine(5); m.Remaining() != 5 {
		t.Errorf("Remaining() = %d", m.Remaining())
	}
}

func TestWellFormed(t *testing.T) {
	good := []string{"123456", "000000"}
	bad := []string{"", "12345", "1234567", "12345a", "12 345", "１２３４５６", "-12345", "12345\n"}
	for _, c := range good {
		if !WellFormed(c) {
			t.Errorf("WellFormed(%q) = false", c)
		}
	}
	for _, c := range bad {
		if WellFormed(c) {
			t.Errorf("WellFormed(%q) = true", c)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		res  runner.Result
		want Outcome
	}{
		{"success", runner.Result{Stdout: "lerna success published"}, OutcomeAccepted},
		{"invalid otp", runner.Result{ExitCode: 1, Stderr: "npm ERR! code EOTP\nnpm ERR! Invalid OTP"}, OutcomeRejectedRetryable},
		{"expired upper", runner.Result{ExitCode: 1, Stderr: "OTP EXPIRED"}, OutcomeRejectedRetryable},
		{"in stdout", runner.Result{ExitCode: 1, Stdout: "the token is invalid"}, OutcomeRejectedRetryable},
		{"opaque", runner.Result{ExitCode: 1, Stderr: "npm ERR! 403 Forbidden"}, OutcomeRejectedOpaque},
		{"empty failure", runner.Result{ExitCode: 2}, OutcomeRejectedOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.res)
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
			if tt.want != OutcomeAccepted && got.Event() == EventAccepted {
				t.Error("rejection mapped to accepted event")
			}
		})
	}
}
