//go:build linux

package transport

import (
	"sync/atomic"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// serialTransport opens a termios raw-mode device the way goserial does:
// O_NOCTTY, 8-N-1, no flow control, default 115200 baud.
type serialTransport struct {
	fd      int
	closed  atomic.Bool
	timeout time.Duration
}

func openSerial(path string) (Transport, error) {
	logrus.Debugf("transport: opening serial device %s", path)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}

	t := &serialTermios{}
	if err := t.get(fd); err != nil {
		_ = unix.Close(fd)
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}
	t.makeRaw()
	t.setSpeed(unix.B115200)
	if err := t.set(fd); err != nil {
		_ = unix.Close(fd)
		return nil, &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
	}

	return &serialTransport{fd: fd, timeout: 5 * time.Second}, nil
}

type serialTermios struct {
	raw unix.Termios
}

func (t *serialTermios) get(fd int) error {
	raw, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return err
	}
	t.raw = *raw
	return nil
}

func (t *serialTermios) set(fd int) error {
	return unix.IoctlSetTermios(fd, ioctlSetTermios, &t.raw)
}

// makeRaw mirrors goserial's Termios.MakeRaw: disable canonical/echo/signal
// processing and select 8 data bits, no parity.
func (t *serialTermios) makeRaw() {
	t.raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.raw.Oflag &^= unix.OPOST
	t.raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.raw.Cflag &^= unix.CSIZE | unix.PARENB
	t.raw.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.raw.Cc[unix.VMIN] = 0
	t.raw.Cc[unix.VTIME] = 0
}

func (t *serialTermios) setSpeed(speed uint32) {
	t.raw.Cflag &^= unix.CBAUD
	t.raw.Cflag |= speed
	t.raw.Ispeed = speed
	t.raw.Ospeed = speed
}

func (t *serialTransport) SetTimeout(d time.Duration) { t.timeout = d }

func (t *serialTransport) ReadAvailable(maxBytes int, deadline time.Time) ([]byte, error) {
	if t.closed.Load() {
		return nil, &cncerr.TransportError{Kind: cncerr.TransportClosed}
	}
	buf := make([]byte, maxBytes)
	total := 0
	for {
		fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf[:total], nil
		}
		n, err := unix.Poll(fds, int(remaining.Milliseconds()))
		if err != nil {
			return buf[:total], &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
		}
		if n == 0 {
			// Non-greedy: timeout with nothing read is not an error.
			return buf[:total], nil
		}
		got, err := unix.Read(t.fd, buf[total:])
		if err != nil {
			return buf[:total], &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
		}
		total += got
		if total >= maxBytes || got == 0 {
			return buf[:total], nil
		}
	}
}

func (t *serialTransport) WriteAll(data []byte, deadline time.Time) error {
	if t.closed.Load() {
		return &cncerr.TransportError{Kind: cncerr.TransportClosed}
	}
	written := 0
	for written < len(data) {
		if time.Now().After(deadline) {
			return &cncerr.TransportError{Kind: cncerr.TransportTimeout}
		}
		n, err := unix.Write(t.fd, data[written:])
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return &cncerr.TransportError{Kind: cncerr.TransportIO, Err: err}
		}
		written += n
	}
	return nil
}

func (t *serialTransport) Close() error {
	if !t.closed.Swap(true) {
		return unix.Close(t.fd)
	}
	return &cncerr.TransportError{Kind: cncerr.TransportClosed}
}
