// Package protocol implements the framed serial link between the host and
// the IO bridge firmware: VLQ-encoded messages inside length/sequence/CRC
// frames terminated by a sync byte.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame layout: len seq payload... crc_hi crc_lo sync
const (
	HeaderSize  = 2
	TrailerSize = 3
	FrameMin    = HeaderSize + TrailerSize
	FrameMax    = 64
	PayloadMax  = FrameMax - FrameMin

	SyncByte = 0x7E

	// SeqDest marks the high nibble of every sequence byte
	SeqDest = 0x10
	SeqMask = 0x0F
)

var ErrFrameTooLong = errors.New("protocol: frame payload too long")

// Frame is one decoded message block
type Frame struct {
	Seq     uint8
	Payload []byte
}

// IsAck reports whether the frame is an empty acknowledgement
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// NextSeq returns the sequence that follows seq
func NextSeq(seq uint8) uint8 {
	return (seq+1)&SeqMask | SeqDest
}

// EncodeFrame wraps payload in a complete frame with sequence seq
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(payload))
	}
	n := FrameMin + len(payload)
	buf := make([]byte, 0, n)
	buf = append(buf, byte(n), seq&SeqMask|SeqDest)
	buf = append(buf, payload...)
	buf = appendCRC(buf, buf)
	return append(buf, SyncByte), nil
}

// Decoder splits a byte stream into frames. Corrupt input is skipped up to
// the next sync byte.
type Decoder struct {
	buf      []byte
	unsynced bool
	dropped  int
}

// Write buffers stream data; it never fails
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Dropped returns how many times the decoder lost sync
func (d *Decoder) Dropped() int {
	return d.dropped
}

// Next returns the next complete valid frame, or false when more input is
// needed. The returned payload is a copy.
func (d *Decoder) Next() (Frame, bool) {
	for {
		if d.unsynced {
			i := bytes.IndexByte(d.buf, SyncByte)
			if i < 0 {
				d.buf = d.buf[:0]
				return Frame{}, false
			}
			d.buf = d.buf[i+1:]
			d.unsynced = false
		}
		for len(d.buf) > 0 && d.buf[0] == SyncByte {
			d.buf = d.buf[1:]
		}
		if len(d.buf) < FrameMin {
			d.compact()
			return Frame{}, false
		}

		n := int(d.buf[0])
		seq := d.buf[1]
		if n < FrameMin || n > FrameMax || seq&^SeqMask != SeqDest {
			d.lose()
			continue
		}
		if len(d.buf) < n {
			d.compact()
			return Frame{}, false
		}
		if d.buf[n-1] != SyncByte {
			d.lose()
			continue
		}
		crc := uint16(d.buf[n-3])<<8 | uint16(d.buf[n-2])
		if crc != CRC16(d.buf[:n-TrailerSize]) {
			d.lose()
			continue
		}

		f := Frame{Seq: seq, Payload: append([]byte(nil), d.buf[HeaderSize:n-TrailerSize]...)}
		d.buf = d.buf[n:]
		return f, true
	}
}

func (d *Decoder) lose() {
	d.unsynced = true
	d.dropped++
}

// compact moves pending bytes to the front so the buffer does not grow
// without bound on a long-lived stream
func (d *Decoder) compact() {
	if cap(d.buf) > 4*FrameMax && len(d.buf) < FrameMax {
		d.buf = append([]byte(nil), d.buf...)
	}
}
