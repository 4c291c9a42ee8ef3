package transport

import (
	"net"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/sirupsen/logrus"
)

type tcpTransport struct {
	conn    net.Conn
	timeout time.Duration
}

func openTCP(address string) (Transport, error) {
	logrus.Debugf("transport: dialing tcp %s", address)
	conn, err := net.DialTimeout("tcp", address, 10*time.Second)
	if err != nil {
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}
	return &tcpTransport{conn: conn, timeout: 5 * time.Second}, nil
}

func (t *tcpTransport) SetTimeout(d time.Duration) { t.timeout = d }

func (t *tcpTransport) ReadAvailable(maxBytes int, deadline time.Time) ([]byte, error) {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}
	buf := make([]byte, maxBytes)
	n, err := t.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			// Non-greedy read: a timeout with zero bytes is not an error.
			return buf[:n], nil
		}
		return buf[:n], &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}
	return buf[:n], nil
}

func (t *tcpTransport) WriteAll(data []byte, deadline time.Time) error {
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}
	written := 0
	for written < len(data) {
		n, err := t.conn.Write(data[written:])
		written += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return &cncerr.TransportError{Kind: cncerr.TransportTimeout, Err: err}
			}
			return &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
		}
	}
	return nil
}

func (t *tcpTransport) Close() error {
	logrus.Debug("transport: closing tcp connection")
	if err := t.conn.Close(); err != nil {
		return &cncerr.TransportError{Kind: cncerr.TransportClosed, Err: err}
	}
	return nil
}
