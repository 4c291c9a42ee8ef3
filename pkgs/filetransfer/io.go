package filetransfer

import (
	"fmt"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/transport"
)

// readExact accumulates ReadAvailable calls until n bytes arrive or the
// deadline passes; the transport is non-greedy (§4.A) so a single call is
// rarely enough for a full block.
func readExact(tr transport.Transport, n int, deadline time.Time) ([]byte, error) {
	buf := make([]byte, 0, n)
	for len(buf) < n {
		if time.Now().After(deadline) {
			return buf, &cncerr.FileTransferError{Kind: cncerr.FTTimeout, Err: fmt.Errorf("short read: want %d got %d", n, len(buf))}
		}
		chunk, err := tr.ReadAvailable(n-len(buf), deadline)
		if err != nil {
			return buf, &cncerr.FileTransferError{Kind: cncerr.FTTransportError, Err: err}
		}
		buf = append(buf, chunk...)
	}
	return buf, nil
}

// readByte waits for exactly one control byte.
func readByte(tr transport.Transport, deadline time.Time) (byte, error) {
	b, err := readExact(tr, 1, deadline)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func writeBytes(tr transport.Transport, data []byte, deadline time.Time) error {
	if err := tr.WriteAll(data, deadline); err != nil {
		return &cncerr.FileTransferError{Kind: cncerr.FTTransportError, Err: err}
	}
	return nil
}
