//go:build !linux

package transport

import (
	"fmt"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

func openSerial(path string) (Transport, error) {
	return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: fmt.Errorf("serial transport not implemented on this platform")}
}
