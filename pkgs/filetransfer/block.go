package filetransfer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mcowger/carvera-controller-core/pkgs/cncerr"
)

// buildHeaderBlock encodes the first block: "name\0<decimal-length>\0" in a
// 128-byte SOH payload, padded with zero bytes (§4.C Filename header block).
func buildHeaderBlock(name string, uncompressedLen int) []byte {
	payload := make([]byte, shortBlockPayload)
	header := fmt.Sprintf("%s\x00%d\x00", name, uncompressedLen)
	copy(payload, header)
	return payload
}

func parseHeaderBlock(payload []byte) (name string, uncompressedLen int, err error) {
	parts := strings.SplitN(string(payload), "\x00", 3)
	if len(parts) < 2 {
		return "", 0, &cncerr.FileTransferError{Kind: cncerr.FTChecksumMismatch, Err: fmt.Errorf("malformed header block")}
	}
	n, convErr := strconv.Atoi(parts[1])
	if convErr != nil {
		return "", 0, &cncerr.FileTransferError{Kind: cncerr.FTChecksumMismatch, Err: fmt.Errorf("malformed header length: %w", convErr)}
	}
	return parts[0], n, nil
}

// padBlock pads payload to size with paddingByte (0x1A), used for the final
// data block that carries the MD5 footer (§4.C).
func padBlock(payload []byte, size int) []byte {
	if len(payload) >= size {
		return payload[:size]
	}
	out := make([]byte, size)
	copy(out, payload)
	for i := len(payload); i < size; i++ {
		out[i] = paddingByte
	}
	return out
}

// blockHeader returns the 3-byte [type|seq|255-seq] prefix (§4.C Block layout).
func blockHeader(blockType byte, seq byte) []byte {
	return []byte{blockType, seq, 255 - seq}
}

func blockPayloadSize(blockType byte) int {
	if blockType == soh {
		return shortBlockPayload
	}
	return longBlockPayload
}
