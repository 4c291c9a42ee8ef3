// Package transport provides a byte-stream abstraction over serial and TCP
// links (§4.A). Reads are non-greedy and writes block until the deadline
// passes or the whole buffer is handed to the OS.
package transport

import (
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

// Kind selects which concrete transport Open constructs.
type Kind string

const (
	Serial Kind = "serial"
	TCP    Kind = "tcp"
)

// DefaultBaud is the firmware's expected serial rate: 115200 8-N-1, no flow control.
const DefaultBaud = 115200

// Transport is the minimal byte-stream contract shared by serial and TCP links.
type Transport interface {
	// ReadAvailable returns whatever arrived before deadline, possibly empty.
	ReadAvailable(maxBytes int, deadline time.Time) ([]byte, error)
	// WriteAll blocks until the full buffer is handed to the OS or deadline passes.
	WriteAll(data []byte, deadline time.Time) error
	SetTimeout(d time.Duration)
	Close() error
}

// Open dials or opens the given address per kind. Address is "host:port" for
// TCP, an OS device path for serial.
func Open(address string, kind Kind) (Transport, error) {
	switch kind {
	case TCP:
		return openTCP(address)
	case Serial:
		return openSerial(address)
	default:
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: errUnknownKind(kind)}
	}
}

type errUnknownKind Kind

func (e errUnknownKind) Error() string { return "unknown transport kind: " + string(e) }
