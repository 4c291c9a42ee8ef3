package filetransfer

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
	"github.com/mcowger/carvera-controller-core/pkgs/transport"
	"github.com/pierrec/lz4/v3"
)

// Upload drives the sender side of the protocol: negotiate checksum mode,
// send the filename header block, stream the (optionally compressed)
// payload in 1024-byte blocks with an MD5 footer on the last one, then EOT
// (§4.C Protocol loop).
func Upload(tr transport.Transport, name string, data []byte, opts Options, progress ProgressFunc, cancel <-chan struct{}) error {
	uncompressedLen := len(data)
	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])

	wire := data
	if opts.Compress || strings.HasSuffix(name, ".lz") {
		compressed, err := compressLZ4(data)
		if err != nil {
			return &cncerr.FileTransferError{Kind: cncerr.FTTransportError, Err: err}
		}
		wire = compressed
	}

	mode, err := negotiateSenderMode(tr, cancel)
	if err != nil {
		return err
	}

	if err := sendBlockWithRetry(tr, soh, 1, mode, buildHeaderBlock(name, uncompressedLen), cancel); err != nil {
		return err
	}

	thr := &throttle{}
	total := int64(len(wire))
	var done int64
	seq := byte(2)

	for offset := 0; offset < len(wire); offset += longBlockPayload {
		if err := checkCancel(tr, cancel); err != nil {
			return err
		}

		end := offset + longBlockPayload
		last := end >= len(wire)
		if !last {
			if err := sendBlockWithRetry(tr, stx, seq, mode, wire[offset:end], cancel); err != nil {
				return err
			}
			done = int64(end)
			if progress != nil && thr.ready(time.Now()) {
				progress(done, total, KindUpload)
			}
			seq++ // wraps naturally at byte overflow (§4.C: "wrap at 256")
			continue
		}

		// The final chunk carries the MD5 footer appended to the remaining
		// payload bytes. That combined tail may exceed one 1024-byte block
		// (e.g. a remainder over 992 bytes), so it is split across as many
		// blocks as needed; only the very last of those is padded, so
		// padding bytes never land in the middle of real data (§9(b)).
		tail := append(append([]byte(nil), wire[offset:]...), []byte(digest)...)
		for i := 0; i < len(tail); i += longBlockPayload {
			tailEnd := i + longBlockPayload
			var chunk []byte
			if tailEnd >= len(tail) {
				chunk = padBlock(tail[i:], longBlockPayload)
			} else {
				chunk = tail[i:tailEnd]
			}
			if err := sendBlockWithRetry(tr, stx, seq, mode, chunk, cancel); err != nil {
				return err
			}
			seq++
		}

		done = total
		if progress != nil {
			progress(done, total, KindUpload)
		}
		break
	}

	return finishSender(tr)
}

// negotiateSenderMode waits for the receiver's opening byte: byteC requests
// CRC-16, nak requests the 8-bit sum fallback (§4.C Control bytes).
func negotiateSenderMode(tr transport.Transport, cancel <-chan struct{}) (ChecksumMode, error) {
	deadline := time.Now().Add(blockTimeout)
	for {
		if err := checkCancel(tr, cancel); err != nil {
			return 0, err
		}
		b, err := readByte(tr, deadline)
		if err != nil {
			return 0, err
		}
		switch b {
		case byteC:
			return ChecksumCRC16, nil
		case nak:
			return ChecksumSum8, nil
		case can:
			return 0, &cncerr.FileTransferError{Kind: cncerr.FTPeerCancelled}
		}
	}
}

func sendBlockWithRetry(tr transport.Transport, blockType byte, seq byte, mode ChecksumMode, payload []byte, cancel <-chan struct{}) error {
	frame := append(blockHeader(blockType, seq), payload...)
	frame = append(frame, computeChecksum(mode, payload)...)

	consecutiveCancels := 0
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := checkCancel(tr, cancel); err != nil {
			return err
		}
		if err := writeBytes(tr, frame, time.Now().Add(blockTimeout)); err != nil {
			return err
		}

		reply, err := readByte(tr, time.Now().Add(blockTimeout))
		if err != nil {
			if fte, ok := err.(*cncerr.FileTransferError); ok && fte.Kind == cncerr.FTTimeout {
				continue // retry on timeout
			}
			return err
		}

		switch reply {
		case ack:
			return nil
		case nak:
			continue
		case can:
			consecutiveCancels++
			if consecutiveCancels >= cancelBytes {
				return &cncerr.FileTransferError{Kind: cncerr.FTPeerCancelled}
			}
		default:
			consecutiveCancels = 0
		}
	}
	return &cncerr.FileTransferError{Kind: cncerr.FTTimeout, Err: fmt.Errorf("block %d exceeded %d retries", seq, maxRetries)}
}

func finishSender(tr transport.Transport) error {
	if err := writeBytes(tr, []byte{eot}, time.Now().Add(blockTimeout)); err != nil {
		return err
	}
	reply, err := readByte(tr, time.Now().Add(blockTimeout))
	if err != nil {
		return err
	}
	if reply != ack {
		return &cncerr.FileTransferError{Kind: cncerr.FTMD5Mismatch, Err: fmt.Errorf("receiver rejected final MD5 check")}
	}
	return nil
}

// checkCancel sends the two-CAN abort sequence and drains the transport
// briefly when the caller's cancel flag has fired (§4.C Cancellation).
func checkCancel(tr transport.Transport, cancel <-chan struct{}) error {
	if cancel == nil {
		return nil
	}
	select {
	case <-cancel:
		_ = writeBytes(tr, []byte{can, can}, time.Now().Add(time.Second))
		_, _ = tr.ReadAvailable(64, time.Now().Add(200*time.Millisecond))
		return &cncerr.FileTransferError{Kind: cncerr.FTLocalCancelled}
	default:
		return nil
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
