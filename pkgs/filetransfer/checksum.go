package filetransfer

import "github.com/snksoft/crc"

// computeChecksum returns the checksum bytes for payload under mode,
// matching the wire layout [payload][checksum] (§4.C Block layout).
func computeChecksum(mode ChecksumMode, payload []byte) []byte {
	if mode == ChecksumCRC16 {
		sum := crc.CalculateCRC(crc.XMODEM, payload)
		return []byte{byte(sum >> 8), byte(sum)}
	}
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return []byte{sum}
}

func checksumMatches(mode ChecksumMode, payload, wire []byte) bool {
	want := computeChecksum(mode, payload)
	if len(want) != len(wire) {
		return false
	}
	for i := range want {
		if want[i] != wire[i] {
			return false
		}
	}
	return true
}
