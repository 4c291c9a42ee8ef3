package filetransfer

import (
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport adapts a net.Conn (from net.Pipe) to transport.Transport for
// tests, mirroring pkgs/transport's tcpTransport semantics without opening a
// real network connection.
type pipeTransport struct {
	conn net.Conn
	mu   sync.Mutex
	drop float64 // fraction of ACK bytes turned into NAK, for fault injection
	rng  *rand.Rand
}

func (p *pipeTransport) SetTimeout(time.Duration) {}

func (p *pipeTransport) ReadAvailable(maxBytes int, deadline time.Time) ([]byte, error) {
	_ = p.conn.SetReadDeadline(deadline)
	buf := make([]byte, maxBytes)
	n, err := p.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return buf[:n], nil
		}
		return buf[:n], err
	}
	return buf[:n], nil
}

func (p *pipeTransport) WriteAll(data []byte, deadline time.Time) error {
	_ = p.conn.SetWriteDeadline(deadline)
	p.mu.Lock()
	if p.drop > 0 && len(data) == 1 && data[0] == ack && p.rng.Float64() < p.drop {
		data = []byte{nak}
	}
	p.mu.Unlock()
	_, err := p.conn.Write(data)
	return err
}

func (p *pipeTransport) Close() error { return p.conn.Close() }

var _ transport.Transport = (*pipeTransport)(nil)

func newPipe() (transport.Transport, transport.Transport) {
	a, b := net.Pipe()
	return &pipeTransport{conn: a}, &pipeTransport{conn: b}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	senderSide, receiverSide := newPipe()

	payload := make([]byte, 50_000)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	var result *Result
	var uploadErr, downloadErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		uploadErr = Upload(senderSide, "part.gcode", payload, Options{}, nil, nil)
	}()
	go func() {
		defer wg.Done()
		result, downloadErr = Download(receiverSide, nil, nil)
	}()
	wg.Wait()

	require.NoError(t, uploadErr)
	require.NoError(t, downloadErr)
	assert.Equal(t, "part.gcode", result.Name)
	assert.Equal(t, payload, result.Data)
}

func TestUploadDownloadRoundTrip_TailSpillsAcrossBlocks(t *testing.T) {
	senderSide, receiverSide := newPipe()

	// An exact multiple of the block size forces the final chunk's
	// remainder to be a full 1024 bytes, so the appended MD5 digest can't
	// fit in that block and must spill into an extra one.
	payload := make([]byte, 2*longBlockPayload)
	for i := range payload {
		payload[i] = byte(i % 229)
	}

	var result *Result
	var uploadErr, downloadErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		uploadErr = Upload(senderSide, "exact.gcode", payload, Options{}, nil, nil)
	}()
	go func() {
		defer wg.Done()
		result, downloadErr = Download(receiverSide, nil, nil)
	}()
	wg.Wait()

	require.NoError(t, uploadErr)
	require.NoError(t, downloadErr)
	assert.Equal(t, payload, result.Data)
}

func TestUploadDownloadRoundTrip_Compressed(t *testing.T) {
	senderSide, receiverSide := newPipe()

	payload := make([]byte, 20_000)
	for i := range payload {
		payload[i] = byte(i % 7) // highly compressible
	}

	var result *Result
	var uploadErr, downloadErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		uploadErr = Upload(senderSide, "part.gcode.lz", payload, Options{Compress: true}, nil, nil)
	}()
	go func() {
		defer wg.Done()
		result, downloadErr = Download(receiverSide, nil, nil)
	}()
	wg.Wait()

	require.NoError(t, uploadErr)
	require.NoError(t, downloadErr)
	assert.Equal(t, payload, result.Data)
}

func TestUploadDownloadRoundTrip_WithDroppedAcks(t *testing.T) {
	senderSide, receiverSide := newPipe()
	// Corrupt 10% of the receiver's ACKs into NAKs, forcing the sender to
	// retry those blocks (§8 File-transfer invariant).
	receiverSide.(*pipeTransport).drop = 0.10
	receiverSide.(*pipeTransport).rng = rand.New(rand.NewSource(1))

	payload := make([]byte, 30_000)
	for i := range payload {
		payload[i] = byte(i % 199)
	}

	var result *Result
	var uploadErr, downloadErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		uploadErr = Upload(senderSide, "noisy.gcode", payload, Options{}, nil, nil)
	}()
	go func() {
		defer wg.Done()
		result, downloadErr = Download(receiverSide, nil, nil)
	}()
	wg.Wait()

	require.NoError(t, uploadErr)
	require.NoError(t, downloadErr)
	assert.Equal(t, payload, result.Data)
}

func TestUploadCancelled(t *testing.T) {
	senderSide, receiverSide := newPipe()
	cancel := make(chan struct{})

	// Cancel shortly after the transfer starts rather than pinning an exact
	// block count: the synchronous in-memory pipe used here has no
	// meaningful per-block latency for a throttled progress callback to
	// count against.
	time.AfterFunc(5*time.Millisecond, func() { close(cancel) })

	payload := make([]byte, 500*1024)

	var downloadErr error
	done := make(chan struct{})
	go func() {
		_, downloadErr = Download(receiverSide, nil, nil)
		close(done)
	}()

	uploadErr := Upload(senderSide, "big.gcode", payload, Options{}, nil, cancel)
	senderSide.Close()
	<-done

	require.Error(t, uploadErr)
	assert.Contains(t, uploadErr.Error(), "local_cancelled")
	require.Error(t, downloadErr)
}

func TestChecksumModes(t *testing.T) {
	payload := []byte("hello world")

	crc := computeChecksum(ChecksumCRC16, payload)
	assert.Len(t, crc, 2)
	assert.True(t, checksumMatches(ChecksumCRC16, payload, crc))
	assert.False(t, checksumMatches(ChecksumCRC16, append(payload, 'x'), crc))

	sum := computeChecksum(ChecksumSum8, payload)
	assert.Len(t, sum, 1)
	assert.True(t, checksumMatches(ChecksumSum8, payload, sum))
}

func TestHeaderBlockRoundTrip(t *testing.T) {
	block := buildHeaderBlock("job.gcode", 12345)
	name, length, err := parseHeaderBlock(block)
	require.NoError(t, err)
	assert.Equal(t, "job.gcode", name)
	assert.Equal(t, 12345, length)
}
