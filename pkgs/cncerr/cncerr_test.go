package cncerr

import (
	"errors"
	"testing"
)

func TestFileTransferErrorRecoverable(t *testing.T) {
	cases := []struct {
		kind        FileTransferKind
		recoverable bool
	}{
		{FTTimeout, true},
		{FTChecksumMismatch, true},
		{FTMD5Mismatch, true},
		{FTTransportError, true},
		{FTLocalCancelled, false},
		{FTPeerCancelled, false},
	}
	for _, c := range cases {
		e := &FileTransferError{Kind: c.kind}
		if got := e.Recoverable(); got != c.recoverable {
			t.Errorf("Recoverable() for %v = %v, want %v", c.kind, got, c.recoverable)
		}
	}
}

func TestFileTransferErrorUnwrap(t *testing.T) {
	inner := errors.New("broken pipe")
	e := &FileTransferError{Kind: FTTransportError, Err: inner}
	if !errors.Is(e, inner) {
		t.Fatalf("errors.Is did not see through FileTransferError.Unwrap")
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("eof")
	e := &TransportError{Kind: TransportTimeout, Err: inner}
	if !errors.Is(e, inner) {
		t.Fatalf("errors.Is did not see through TransportError.Unwrap")
	}
}

func TestCommandErrorMessage(t *testing.T) {
	e := &CommandError{Code: "5", Message: "unsupported command", Alarm: false}
	if got := e.Error(); got != "command error 5: unsupported command" {
		t.Errorf("Error() = %q", got)
	}
	alarm := &CommandError{Code: "9", Message: "homing fail", Alarm: true}
	if got := alarm.Error(); got != "command alarm 9: homing fail" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStateErrorMessage(t *testing.T) {
	e := &StateError{Op: "send", State: "disconnected"}
	want := `operation "send" invalid in state "disconnected"`
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
