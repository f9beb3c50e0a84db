package pipeline

import (
	"errors"
	"testing"
)

func TestRunState_HappyPath(t *testing.T) {
	rs := NewRunState()
	if rs.State() != StateInit {
		t.Fatalf("initial state = %s, want INIT", rs.State())
	}

	for _, next := range []State{StateResolved, StateExtracted, StateTranscribed, StateWritten} {
		if err := rs.Advance(next); err != nil {
			t.Fatalf("Advance(%s) unexpected error: %v", next, err)
		}
	}

	if !rs.State().Terminal() {
		t.Error("WRITTEN should be terminal")
	}
	if rs.Err() != nil {
		t.Errorf("Err() = %v, want nil", rs.Err())
	}
}

func TestRunState_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []State
		to    State
	}{
		{"skip resolution", nil, StateExtracted},
		{"skip transcription", []State{StateResolved, StateExtracted}, StateWritten},
		{"backwards", []State{StateResolved, StateExtracted}, StateResolved},
		{"past written", []State{StateResolved, StateExtracted, StateTranscribed, StateWritten}, StateWritten},
		{"advance to failed", []State{StateResolved}, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewRunState()
			for _, s := range tt.setup {
				if err := rs.Advance(s); err != nil {
					t.Fatalf("setup Advance(%s): %v", s, err)
				}
			}
			before := rs.State()
			if err := rs.Advance(tt.to); err == nil {
				t.Errorf("Advance(%s) from %s expected error", tt.to, before)
			}
			if rs.State() != before {
				t.Errorf("state changed to %s after rejected transition", rs.State())
			}
		})
	}
}

func TestRunState_Fail(t *testing.T) {
	cause := errors.New("boom")

	for _, from := range []State{StateResolved, StateExtracted, StateTranscribed} {
		t.Run(string(from), func(t *testing.T) {
			rs := NewRunState()
			for _, s := range []State{StateResolved, StateExtracted, StateTranscribed} {
				if err := rs.Advance(s); err != nil {
					t.Fatal(err)
				}
				if s == from {
					break
				}
			}
			if err := rs.Fail(cause); err != nil {
				t.Fatalf("Fail() unexpected error: %v", err)
			}
			if rs.State() != StateFailed || !errors.Is(rs.Err(), cause) {
				t.Errorf("state = %s err = %v, want FAILED with cause", rs.State(), rs.Err())
			}
		})
	}

	t.Run("from init", func(t *testing.T) {
		if err := NewRunState().Fail(cause); err == nil {
			t.Error("Fail() from INIT expected error")
		}
	})

	t.Run("from written", func(t *testing.T) {
		rs := NewRunState()
		for _, s := range []State{StateResolved, StateExtracted, StateTranscribed, StateWritten} {
			_ = rs.Advance(s)
		}
		if err := rs.Fail(cause); err == nil {
			t.Error("Fail() from WRITTEN expected error")
		}
	})

	t.Run("nil cause still recorded", func(t *testing.T) {
		rs := NewRunState()
		_ = rs.Advance(StateResolved)
		_ = rs.Fail(nil)
		if rs.Err() == nil {
			t.Error("Err() = nil, want a placeholder error")
		}
	})
}
