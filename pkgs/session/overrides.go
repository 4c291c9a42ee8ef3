package session

import (
	"math"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

// Real-time single-byte protocol bytes (§6). These bypass the line
// protocol and the command queue entirely — always safe to send.
const (
	byteStatusQuery byte = '?'
	byteFeedHold    byte = '!'
	byteResume      byte = '~'
	byteSoftReset   byte = 0x18
)

// Override byte ranges (§6, §9 Open Question (a)): the exact encoding
// differs between firmware versions; this fixes the numerical range per
// the documented table and must be checked against the target firmware.
const (
	feedOverrideDecrement  byte = 0x90
	feedOverrideIncrement  byte = 0x91
	feedOverrideReset      byte = 0x92
	spindleOverrideDecrement byte = 0x9A
	spindleOverrideIncrement byte = 0x9B
	spindleOverrideReset     byte = 0x9C
)

func (s *Session) writeRealtime(b byte) error {
	s.mu.Lock()
	tr := s.tr
	status := s.status
	s.mu.Unlock()
	if tr == nil || status == Disconnected {
		return &cncerr.StateError{Op: "realtime", State: string(status)}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return tr.WriteAll([]byte{b}, time.Now().Add(500*time.Millisecond))
}

// FeedHold sends the real-time feed-hold byte.
func (s *Session) FeedHold() error { return s.writeRealtime(byteFeedHold) }

// Resume sends the real-time cycle-resume byte.
func (s *Session) Resume() error { return s.writeRealtime(byteResume) }

// overrideStepPct is the percentage each increment/decrement real-time byte
// moves an override by (§9(a)): the firmware exposes no direct "set to N%"
// byte, only reset-to-100 plus coarse +/-10% steps, so a target percentage
// is reached by resetting then stepping and rounds to the nearest 10%.
const overrideStepPct = 10

// stepOverride resets the override to 100% then writes inc/dec enough times
// to approach pct, returning the percentage actually reached.
func (s *Session) stepOverride(pct int, reset, inc, dec byte) (int, error) {
	if err := s.writeRealtime(reset); err != nil {
		return 0, err
	}
	steps := int(math.Round(float64(pct-100) / overrideStepPct))
	b := inc
	if steps < 0 {
		b = dec
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		if err := s.writeRealtime(b); err != nil {
			return 0, err
		}
	}
	if b == dec {
		steps = -steps
	}
	return 100 + steps*overrideStepPct, nil
}

// SetFeedScale sets the feed override percentage (1-300), rounded to the
// nearest 10% the real-time protocol can express. Encoded as real-time
// bytes, out of band from the command queue (§4.F Overrides).
func (s *Session) SetFeedScale(pct int) error {
	if pct < 1 || pct > 300 {
		return &cncerr.StateError{Op: "set_feed_scale", State: "invalid percentage"}
	}
	reached, err := s.stepOverride(pct, feedOverrideReset, feedOverrideIncrement, feedOverrideDecrement)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Feed.FeedOverridePct = float64(reached)
	s.mu.Unlock()
	return nil
}

// SetSpindleScale sets the spindle override percentage (1-200), rounded to
// the nearest 10% the real-time protocol can express.
func (s *Session) SetSpindleScale(pct int) error {
	if pct < 1 || pct > 200 {
		return &cncerr.StateError{Op: "set_spindle_scale", State: "invalid percentage"}
	}
	reached, err := s.stepOverride(pct, spindleOverrideReset, spindleOverrideIncrement, spindleOverrideDecrement)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Feed.SpindleOverridePct = float64(reached)
	s.mu.Unlock()
	return nil
}
