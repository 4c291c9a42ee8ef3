// Package session implements the protocol state machine layered over a
// transport (§4.F): command submission, reply demultiplexing, the 5-second
// firmware watchdog via background probes, and rate-limited queries.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/cncstate"
	"github.com/mcowger/carvera-controller-core/pkgs/gcode"
	"github.com/mcowger/carvera-controller-core/pkgs/transport"
	"github.com/sirupsen/logrus"
)

// LinkStatus is the session's high-level connection state (§3 Session state).
type LinkStatus string

const (
	Disconnected LinkStatus = "disconnected"
	Connecting   LinkStatus = "connecting"
	Idle         LinkStatus = "idle"
	Busy         LinkStatus = "busy"
	FileTransfer LinkStatus = "file-transfer"
	ErrorStatus  LinkStatus = "error"
)

// Prober timing constants (§4.F).
const (
	probeInterval     = 200 * time.Millisecond
	probeForceAfter   = 4500 * time.Millisecond
	probeFaultAfter   = 7000 * time.Millisecond
)

// Session is the protocol state machine over one logical transport. A
// single background probe task runs per active Session.
type Session struct {
	mu sync.Mutex

	// writeMu serialises every byte written to tr — the command writer,
	// the realtime-override writer, and the background prober all call
	// WriteAll independently of mu, but must not interleave bytes on the
	// wire (§5).
	writeMu sync.Mutex

	tr     transport.Transport
	kind   transport.Kind
	status LinkStatus

	state *cncstate.CncState
	parser *gcode.Parser

	pending      []any // plain text lines, or *cncerr.CommandError for error:/ALARM: replies
	running      bool
	lastReadAt   time.Time
	lastProbeAt  time.Time

	probeStop chan struct{}
	probeDone chan struct{}

	firmwareVersion string
	machineID       string

	// OnDisconnect, if set, is invoked (outside the lock) when the prober
	// detects firmware silence and transitions the link to error.
	OnDisconnect func(reason error)
}

// New returns a disconnected Session with a fresh CncState.
func New() *Session {
	state := cncstate.New()
	return &Session{
		status: Disconnected,
		state:  state,
		parser: gcode.NewParser(state),
	}
}

// State returns the CncState this session's parser and status handler
// share; callers must treat it as read-only outside the mutex this package
// serialises writes through.
func (s *Session) State() *cncstate.CncState {
	return s.state
}

// Status returns the current link status.
func (s *Session) Status() LinkStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect opens the transport, transitions disconnected -> connecting ->
// idle, and starts the background probe task. A failed connect leaves the
// session disconnected.
func (s *Session) Connect(address string, kind transport.Kind) error {
	s.mu.Lock()
	if s.status != Disconnected {
		s.mu.Unlock()
		return &cncerr.StateError{Op: "connect", State: string(s.status)}
	}
	s.status = Connecting
	s.mu.Unlock()

	logrus.Debugf("session: connecting to %s (%s)", address, kind)
	tr, err := transport.Open(address, kind)
	if err != nil {
		s.mu.Lock()
		s.status = Disconnected
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.tr = tr
	s.kind = kind
	s.status = Idle
	s.lastReadAt = time.Now()
	s.probeStop = make(chan struct{})
	s.probeDone = make(chan struct{})
	s.mu.Unlock()

	go s.proberLoop(s.probeStop, s.probeDone)
	return nil
}

// Disconnect cancels the prober cooperatively, drains pending writes, and
// closes the transport.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.status == Disconnected {
		s.mu.Unlock()
		return nil
	}
	stop := s.probeStop
	done := s.probeDone
	tr := s.tr
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if done != nil {
		<-done
	}

	var err error
	if tr != nil {
		// Holding writeMu waits for any in-flight write to finish first.
		s.writeMu.Lock()
		err = tr.Close()
		s.writeMu.Unlock()
	}

	s.mu.Lock()
	s.status = Disconnected
	s.tr = nil
	s.probeStop = nil
	s.probeDone = nil
	s.mu.Unlock()
	return err
}

// SetRunning marks the start/end of a caller-declared long-running
// operation. While true, the background prober does not send '?' (§5,
// §8 keep-alive invariant).
func (s *Session) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}

// Send appends CR-LF and writes the line synchronously.
func (s *Session) Send(line string) error {
	s.mu.Lock()
	tr := s.tr
	status := s.status
	s.mu.Unlock()

	if tr == nil || status == Disconnected {
		return &cncerr.StateError{Op: "send", State: string(status)}
	}
	if status == FileTransfer {
		return &cncerr.StateError{Op: "send", State: string(status)}
	}

	payload := []byte(line + "\r\n")
	logrus.Debugf("session: send %q", line)
	s.writeMu.Lock()
	err := tr.WriteAll(payload, time.Now().Add(2*time.Second))
	s.writeMu.Unlock()
	if err != nil {
		return err
	}
	return nil
}

// ExecuteGCode sends line and additionally feeds it to the local parser to
// keep the local CncState synchronised.
func (s *Session) ExecuteGCode(line string, lineNo int) (*gcode.ParsedLine, error) {
	s.mu.Lock()
	parsed, perr := s.parser.ParseLine(line, lineNo)
	s.mu.Unlock()
	if perr != nil {
		return nil, perr
	}
	if err := s.Send(line); err != nil {
		return parsed, err
	}
	return parsed, nil
}

// ReceiveLines feeds raw bytes read from the transport into the line
// demultiplexer. Callers that drive their own read loop (rather than
// relying on the prober alone) call this with whatever ReadAvailable
// returns.
func (s *Session) ReceiveLines(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	s.lastReadAt = time.Now()
	s.mu.Unlock()

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		s.handleLine(line)
	}
}

// handleLine demultiplexes one reply line by its leading character (§4.F,
// §6 Status line format).
func (s *Session) handleLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case strings.HasPrefix(line, "<"):
		applyStatusLine(s.state, line)
		s.state.LastStatusAt = time.Now()
	case strings.HasPrefix(line, "["):
		applyInfoLine(s, line)
	case line == "ok":
		// Completes the pending command; callers awaiting replies consume
		// via Pending().
		s.pending = append(s.pending, line)
	case strings.HasPrefix(line, "error:"):
		s.status = ErrorStatus
		s.pending = append(s.pending, &cncerr.CommandError{
			Code:    strings.TrimPrefix(line, "error:"),
			Message: line,
		})
	case strings.HasPrefix(line, "ALARM:"):
		s.state.Halted = true
		s.status = ErrorStatus
		s.pending = append(s.pending, &cncerr.CommandError{
			Code:    strings.TrimPrefix(line, "ALARM:"),
			Message: line,
			Alarm:   true,
		})
	default:
		s.pending = append(s.pending, line)
	}
}

// Pending drains and returns the queue of received replies awaiting
// consumption: plain text lines, or a *cncerr.CommandError for each
// error:/ALARM: reply the firmware sent (§4.F, §7).
func (s *Session) Pending() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// SoftReset clears the error/halted latch, allowing further commands.
func (s *Session) SoftReset() error {
	s.mu.Lock()
	s.state.Halted = false
	if s.status == ErrorStatus {
		s.status = Idle
	}
	s.mu.Unlock()
	return s.writeRealtime(byteSoftReset)
}

func applyInfoLine(s *Session, line string) {
	trimmed := strings.Trim(line, "[]")
	switch {
	case strings.HasPrefix(trimmed, "VER:"):
		s.firmwareVersion = strings.TrimPrefix(trimmed, "VER:")
	case strings.HasPrefix(trimmed, "ID:"):
		s.machineID = strings.TrimPrefix(trimmed, "ID:")
	}
}

// proberLoop is the session's single background task (§5): every 200ms it
// sends '?' while idle and not running and feeds whatever the machine
// replied to ReceiveLines; after 4500ms of silence it sends an
// unconditional extra '?'; after 7000ms of silence it marks the link error
// and fires OnDisconnect.
func (s *Session) proberLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			status := s.status
			running := s.running
			silentFor := time.Since(s.lastReadAt)
			tr := s.tr
			s.mu.Unlock()

			if status != Idle || running || tr == nil {
				continue
			}

			if silentFor >= probeFaultAfter {
				s.mu.Lock()
				s.status = ErrorStatus
				s.mu.Unlock()
				if s.OnDisconnect != nil {
					s.OnDisconnect(fmt.Errorf("firmware silent for %s", silentFor))
				}
				return
			}

			s.writeMu.Lock()
			_ = tr.WriteAll([]byte("?"), time.Now().Add(500*time.Millisecond))
			s.writeMu.Unlock()
			s.mu.Lock()
			s.lastProbeAt = time.Now()
			s.mu.Unlock()

			if silentFor >= probeForceAfter {
				s.writeMu.Lock()
				_ = tr.WriteAll([]byte("?"), time.Now().Add(500*time.Millisecond))
				s.writeMu.Unlock()
			}

			// ReceiveLines also refreshes lastReadAt, which the silence
			// checks above measure from.
			if data, err := tr.ReadAvailable(4096, time.Now().Add(50*time.Millisecond)); err == nil {
				s.ReceiveLines(data)
			}
		}
	}
}
