package protocol

import "errors"

var (
	ErrInvalidVLQ = errors.New("protocol: invalid vlq encoding")
	ErrShortData  = errors.New("protocol: data ends inside a field")
)

// maxVLQLen is the longest encoding of a 32-bit value
const maxVLQLen = 5

// AppendInt appends v in the Klipper variable length encoding: seven bits per
// byte, most significant group first, high bit set on every byte but the last.
// Small negative values stay short because bits 5 and 6 of the first byte
// carry the sign.
func AppendInt(dst []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		dst = append(dst, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		dst = append(dst, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		dst = append(dst, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		dst = append(dst, byte((v>>7)&0x7F)|0x80)
	}
	return append(dst, byte(v&0x7F))
}

// AppendUint appends v using the same encoding as AppendInt
func AppendUint(dst []byte, v uint32) []byte {
	return AppendInt(dst, int32(v))
}

// ReadInt decodes one value from the front of *data and advances it
func ReadInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrShortData
	}
	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	n := 1
	for c&0x80 != 0 {
		if n >= len(buf) {
			return 0, ErrShortData
		}
		if n >= maxVLQLen {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[n])
		n++
		v = v<<7 | c&0x7F
	}
	*data = buf[n:]
	return int32(v), nil
}

// ReadUint decodes one unsigned value
func ReadUint(data *[]byte) (uint32, error) {
	v, err := ReadInt(data)
	return uint32(v), err
}

// AppendBytes appends a length-prefixed byte string
func AppendBytes(dst, b []byte) []byte {
	dst = AppendUint(dst, uint32(len(b)))
	return append(dst, b...)
}

// ReadBytes decodes a length-prefixed byte string. The result aliases data.
func ReadBytes(data *[]byte) ([]byte, error) {
	rest := *data
	n, err := ReadUint(&rest)
	if err != nil {
		return nil, err
	}
	if uint32(len(rest)) < n {
		return nil, ErrShortData
	}
	*data = rest[n:]
	return rest[:n], nil
}
