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

// Result is what Download returns on success.
type Result struct {
	Name string
	Data []byte
}

// Download drives the receiver side: negotiate CRC-16, read the filename
// header block, accumulate data blocks until EOT, then verify the MD5
// footer before acking the transfer complete (§4.C Protocol loop).
func Download(tr transport.Transport, progress ProgressFunc, cancel <-chan struct{}) (*Result, error) {
	mode := ChecksumCRC16

	name, uncompressedLen, err := receiveHeaderBlock(tr, mode, cancel)
	if err != nil {
		return nil, err
	}

	wire, err := receiveDataBlocks(tr, mode, progress, cancel)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimRight(wire, string([]byte{paddingByte}))
	if len(trimmed) < md5HexLen {
		_ = writeBytes(tr, []byte{can}, time.Now().Add(time.Second))
		return nil, &cncerr.FileTransferError{Kind: cncerr.FTMD5Mismatch, Err: fmt.Errorf("transfer too short to carry an MD5 footer")}
	}
	wantDigest := string(trimmed[len(trimmed)-md5HexLen:])
	payload := trimmed[:len(trimmed)-md5HexLen]

	data := payload
	if strings.HasSuffix(name, ".lz") {
		decompressed, derr := decompressLZ4(payload)
		if derr != nil {
			_ = writeBytes(tr, []byte{can}, time.Now().Add(time.Second))
			return nil, &cncerr.FileTransferError{Kind: cncerr.FTChecksumMismatch, Err: derr}
		}
		data = decompressed
	}

	sum := md5.Sum(data)
	gotDigest := hex.EncodeToString(sum[:])
	if gotDigest != wantDigest || len(data) != uncompressedLen {
		_ = writeBytes(tr, []byte{can}, time.Now().Add(time.Second))
		return nil, &cncerr.FileTransferError{Kind: cncerr.FTMD5Mismatch}
	}

	if err := writeBytes(tr, []byte{ack}, time.Now().Add(blockTimeout)); err != nil {
		return nil, err
	}

	return &Result{Name: name, Data: data}, nil
}

func receiveHeaderBlock(tr transport.Transport, mode ChecksumMode, cancel <-chan struct{}) (string, int, error) {
	deadline := time.Now().Add(blockTimeout)
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := checkCancel(tr, cancel); err != nil {
			return "", 0, err
		}
		if err := writeBytes(tr, []byte{byteC}, deadline); err != nil {
			return "", 0, err
		}

		blockType, err := readByte(tr, deadline)
		if err != nil {
			continue // no header arrived yet, re-send the handshake byte
		}
		if blockType == can {
			return "", 0, &cncerr.FileTransferError{Kind: cncerr.FTPeerCancelled}
		}
		if blockType != soh {
			continue
		}

		payload, ok, err := readBlockBody(tr, blockType, mode, deadline)
		if err != nil {
			return "", 0, err
		}
		if !ok {
			_ = writeBytes(tr, []byte{nak}, deadline)
			continue
		}

		name, uncompressedLen, perr := parseHeaderBlock(payload)
		if perr != nil {
			_ = writeBytes(tr, []byte{nak}, deadline)
			continue
		}
		if err := writeBytes(tr, []byte{ack}, deadline); err != nil {
			return "", 0, err
		}
		return name, uncompressedLen, nil
	}
	return "", 0, &cncerr.FileTransferError{Kind: cncerr.FTTimeout, Err: fmt.Errorf("header block never arrived")}
}

// readBlockBody reads [seq][255-seq][payload][checksum] once the leading
// block-type byte has already been consumed, and reports whether the
// sequence complement and checksum are both valid.
func readBlockBody(tr transport.Transport, blockType byte, mode ChecksumMode, deadline time.Time) (payload []byte, ok bool, err error) {
	_, payload, ok, err = readNumberedBlockBody(tr, blockType, mode, deadline)
	return payload, ok, err
}

func readNumberedBlockBody(tr transport.Transport, blockType byte, mode ChecksumMode, deadline time.Time) (seq byte, payload []byte, ok bool, err error) {
	seqBytes, err := readExact(tr, 2, deadline)
	if err != nil {
		return 0, nil, false, err
	}
	size := blockPayloadSize(blockType)
	payload, err = readExact(tr, size, deadline)
	if err != nil {
		return 0, nil, false, err
	}
	sum, err := readExact(tr, mode.checksumLen(), deadline)
	if err != nil {
		return 0, nil, false, err
	}
	if seqBytes[0] != 255-seqBytes[1] {
		return seqBytes[0], payload, false, nil
	}
	if !checksumMatches(mode, payload, sum) {
		return seqBytes[0], payload, false, nil
	}
	return seqBytes[0], payload, true, nil
}

func receiveDataBlocks(tr transport.Transport, mode ChecksumMode, progress ProgressFunc, cancel <-chan struct{}) ([]byte, error) {
	var buf bytes.Buffer
	thr := &throttle{}
	expected := byte(2)
	consecutiveCancels := 0

	for {
		if err := checkCancel(tr, cancel); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(blockTimeout)
		blockType, err := readByte(tr, deadline)
		if err != nil {
			return nil, err
		}

		switch blockType {
		case eot:
			// EOT is answered once, by Download, after the MD5 check: ack on
			// success, can on failure.
			return buf.Bytes(), nil
		case can:
			consecutiveCancels++
			if consecutiveCancels >= cancelBytes {
				return nil, &cncerr.FileTransferError{Kind: cncerr.FTPeerCancelled}
			}
			continue
		case soh, stx:
			consecutiveCancels = 0
		default:
			continue
		}

		seq, payload, valid, err := readNumberedBlockBody(tr, blockType, mode, deadline)
		if err != nil {
			return nil, err
		}
		if !valid {
			_ = writeBytes(tr, []byte{nak}, deadline)
			continue
		}

		if seq == expected {
			buf.Write(payload)
			expected++
		}
		// A duplicate of the last accepted block (sender retried after a
		// lost ack) is acked again without being appended twice.
		if err := writeBytes(tr, []byte{ack}, deadline); err != nil {
			return nil, err
		}

		if progress != nil && thr.ready(time.Now()) {
			progress(int64(buf.Len()), int64(buf.Len()), KindDownload)
		}
	}
}

func decompressLZ4(compressed []byte) ([]byte, error) {
	var out bytes.Buffer
	r := lz4.NewReader(bytes.NewReader(compressed))
	if _, err := out.ReadFrom(r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
