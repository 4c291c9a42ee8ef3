package session

import (
	"fmt"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/transport"
	"github.com/sirupsen/logrus"
)

// Home sends the firmware's homing cycle command.
func (s *Session) Home() error {
	return s.Send("$H")
}

// Jog issues a relative jog of (dx,dy,dz,da) at the given feed rate.
func (s *Session) Jog(dx, dy, dz, da, speed float64) error {
	line := fmt.Sprintf("$J=G91 G21 X%g Y%g Z%g A%g F%g", dx, dy, dz, da, speed)
	return s.Send(line)
}

// XYZProbe runs the XYZ corner-probe routine for a block of known
// geometry (height x diameter).
func (s *Session) XYZProbe(height, diameter float64) error {
	line := fmt.Sprintf("M495.1 H%g D%g", height, diameter)
	return s.Send(line)
}

// AutoCommand emits the Carvera-specific M495 auto-leveling/zprobe
// sequence (§4.F). Parameter encoding: I/J select the starting grid cell,
// margin sets the safety margin in mm, zprobe/leveling/gotoOrigin are
// boolean sub-operations encoded as 0/1 flags per the documented table.
func (s *Session) AutoCommand(margin float64, zprobe, leveling bool, i, j int, gotoOrigin bool) error {
	toFlag := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	line := fmt.Sprintf("M495 X%g Z%d L%d I%d J%d G%d",
		margin, toFlag(zprobe), toFlag(leveling), i, j, toFlag(gotoOrigin))
	return s.Send(line)
}

// FeedHold* and Resume are defined in overrides.go (real-time bytes).

// BeginTransfer and EndTransfer bracket a file-transfer protocol run driven
// by pkgs/filetransfer. Session owns only the link-state transition around
// the transfer (§4.F state machine); the transfer engine owns the wire
// protocol itself.
func (s *Session) BeginTransfer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Idle {
		return &cncerr.StateError{Op: "start-transfer", State: string(s.status)}
	}
	s.status = FileTransfer
	return nil
}

// EndTransfer returns the session to idle, or to the error state if
// transferErr is non-nil and unrecoverable. Recoverable transport hiccups
// still leave the link idle so the caller can retry (§7).
func (s *Session) EndTransfer(transferErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fte, ok := transferErr.(*cncerr.FileTransferError); ok && !fte.Recoverable() {
		logrus.WithError(transferErr).Warn("session: file transfer ended unrecoverably")
		s.status = ErrorStatus
		return
	}
	if transferErr != nil {
		logrus.WithError(transferErr).Debug("session: file transfer ended with a recoverable error")
	}
	s.status = Idle
}

// RawTransport lends the underlying transport to the file-transfer engine.
// It is only available while the link is in the file-transfer state, so the
// prober and command queue cannot race with the transfer's own reads/writes.
func (s *Session) RawTransport() (transport.Transport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != FileTransfer || s.tr == nil {
		return nil, &cncerr.StateError{Op: "raw-transport", State: string(s.status)}
	}
	return s.tr, nil
}
