package session

import (
	"sync"
	"testing"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
	"github.com/mcowger/carvera-controller-core/pkgs/gcode"
)

// recordingTransport counts writes without any real I/O, for prober tests
// that must not depend on network or serial hardware.
type recordingTransport struct {
	mu     sync.Mutex
	writes [][]byte
}

func (t *recordingTransport) ReadAvailable(maxBytes int, deadline time.Time) ([]byte, error) {
	return nil, nil
}

func (t *recordingTransport) WriteAll(data []byte, deadline time.Time) error {
	t.mu.Lock()
	cp := append([]byte(nil), data...)
	t.writes = append(t.writes, cp)
	t.mu.Unlock()
	return nil
}

func (t *recordingTransport) SetTimeout(time.Duration) {}
func (t *recordingTransport) Close() error              { return nil }

func (t *recordingTransport) queryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, w := range t.writes {
		if len(w) == 1 && w[0] == '?' {
			n++
		}
	}
	return n
}

// newIdleSession builds a Session already in the idle state over tr, bypassing
// Connect's real transport.Open dial so the prober can be exercised directly.
func newIdleSession(tr *recordingTransport) *Session {
	state := cncstate.New()
	s := &Session{
		status:      Idle,
		state:       state,
		parser:      gcode.NewParser(state),
		tr:          tr,
		lastReadAt:  time.Now(),
		probeStop:   make(chan struct{}),
		probeDone:   make(chan struct{}),
	}
	go s.proberLoop(s.probeStop, s.probeDone)
	return s
}

func TestProberSendsStatusQueryWithinBounds(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	time.Sleep(1 * time.Second)

	n := tr.queryCount()
	if n < 4 || n > 6 {
		t.Fatalf("'?' written %d times in 1s, want between 4 and 6 (200ms interval)", n)
	}
}

func TestProberSuppressedWhileRunning(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	s.SetRunning(true)
	time.Sleep(500 * time.Millisecond)

	if n := tr.queryCount(); n != 0 {
		t.Fatalf("'?' written %d times while running=true, want 0", n)
	}
}

func TestProberEscalatesOnSilence(t *testing.T) {
	tr := &recordingTransport{}
	state := cncstate.New()
	disconnected := make(chan error, 1)
	s := &Session{
		status:      Idle,
		state:       state,
		parser:      gcode.NewParser(state),
		tr:          tr,
		lastReadAt:  time.Now().Add(-probeFaultAfter),
		probeStop:   make(chan struct{}),
		probeDone:   make(chan struct{}),
		OnDisconnect: func(reason error) { disconnected <- reason },
	}
	go s.proberLoop(s.probeStop, s.probeDone)
	defer func() {
		if s.probeStop != nil {
			close(s.probeStop)
		}
	}()

	select {
	case err := <-disconnected:
		if err == nil {
			t.Fatal("OnDisconnect fired with a nil reason")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("OnDisconnect did not fire after prolonged firmware silence")
	}

	if got := s.Status(); got != ErrorStatus {
		t.Fatalf("status after silence timeout = %v, want error", got)
	}
}

func TestBeginEndTransferStateTransitions(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	if err := s.BeginTransfer(); err != nil {
		t.Fatalf("BeginTransfer() from idle: %v", err)
	}
	if got := s.Status(); got != FileTransfer {
		t.Fatalf("status after BeginTransfer = %v, want file-transfer", got)
	}

	if _, err := s.RawTransport(); err != nil {
		t.Fatalf("RawTransport() during file-transfer: %v", err)
	}

	s.EndTransfer(nil)
	if got := s.Status(); got != Idle {
		t.Fatalf("status after EndTransfer(nil) = %v, want idle", got)
	}

	if _, err := s.RawTransport(); err == nil {
		t.Fatal("RawTransport() outside file-transfer should error")
	}
}

func TestHandleLineSurfacesCommandErrors(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	s.ReceiveLines([]byte("error:20\n"))
	pending := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("Pending() after error: line = %d entries, want 1", len(pending))
	}
	cmdErr, ok := pending[0].(*cncerr.CommandError)
	if !ok {
		t.Fatalf("Pending()[0] = %T, want *cncerr.CommandError", pending[0])
	}
	if cmdErr.Alarm {
		t.Error("error: reply should not set Alarm")
	}
	if cmdErr.Code != "20" {
		t.Errorf("Code = %q, want \"20\"", cmdErr.Code)
	}
	if s.Status() != ErrorStatus {
		t.Errorf("status after error: line = %v, want error", s.Status())
	}
}

func TestHandleLineSurfacesAlarms(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	s.ReceiveLines([]byte("ALARM:9\n"))
	pending := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("Pending() after ALARM: line = %d entries, want 1", len(pending))
	}
	cmdErr, ok := pending[0].(*cncerr.CommandError)
	if !ok {
		t.Fatalf("Pending()[0] = %T, want *cncerr.CommandError", pending[0])
	}
	if !cmdErr.Alarm {
		t.Error("ALARM: reply should set Alarm")
	}
	if cmdErr.Code != "9" {
		t.Errorf("Code = %q, want \"9\"", cmdErr.Code)
	}
	if !s.State().Halted {
		t.Error("ALARM: line should set state.Halted")
	}
}

func TestBeginTransferRejectedWhenNotIdle(t *testing.T) {
	tr := &recordingTransport{}
	s := newIdleSession(tr)
	defer close(s.probeStop)

	s.mu.Lock()
	s.status = Busy
	s.mu.Unlock()

	if err := s.BeginTransfer(); err == nil {
		t.Fatal("BeginTransfer() from busy should error")
	}
}
