package bridge

import "hash/adler32"

// maxStoredBlock is the largest DEFLATE stored block
const maxStoredBlock = 0xFFFF

// storedZlib wraps data in a zlib stream of uncompressed DEFLATE blocks.
// Any zlib reader inflates it; the firmware never needs a real compressor.
func storedZlib(data []byte) []byte {
	blocks := len(data)/maxStoredBlock + 1
	out := make([]byte, 0, 2+5*blocks+len(data)+4)
	out = append(out, 0x78, 0x01)

	rest := data
	for {
		n := min(len(rest), maxStoredBlock)
		final := byte(0)
		if n == len(rest) {
			final = 1
		}
		length := uint16(n)
		out = append(out, final,
			byte(length), byte(length>>8),
			byte(^length), byte(^length>>8))
		out = append(out, rest[:n]...)
		rest = rest[n:]
		if final == 1 {
			break
		}
	}

	sum := adler32.Checksum(data)
	return append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
}
