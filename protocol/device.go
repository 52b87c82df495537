package protocol

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Handler executes one command on the device and returns the responses to
// send back. Rejected commands answer with a *Fault.
type Handler func(m Message) []Message

// Device is the firmware side of the link. It accepts command frames in
// sequence, runs them through a Handler, then sends the responses followed by
// an acknowledgement carrying the next expected sequence. Out-of-order frames
// are not executed; the acknowledgement then acts as a NAK.
type Device struct {
	mu      sync.Mutex
	w       io.Writer
	dec     Decoder
	expect  uint8
	handle  Handler
	onReset func()
}

// NewDevice creates a device writing its replies to w
func NewDevice(w io.Writer, h Handler) *Device {
	return &Device{w: w, handle: h, expect: SeqDest}
}

// SetResetCallback sets a function called when the host restarts its
// sequence numbering
func (d *Device) SetResetCallback(fn func()) {
	d.mu.Lock()
	d.onReset = fn
	d.mu.Unlock()
}

// Receive consumes stream bytes from the host. It returns the first error
// hit while writing replies.
func (d *Device) Receive(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, _ = d.dec.Write(p)
	for {
		f, ok := d.dec.Next()
		if !ok {
			return nil
		}
		if f.Seq == SeqDest && d.expect != SeqDest {
			d.expect = SeqDest
			if d.onReset != nil {
				d.onReset()
			}
		}

		var replies []Message
		if f.Seq == d.expect {
			d.expect = NextSeq(d.expect)
			replies = d.execute(f.Payload)
		}
		if err := d.reply(replies); err != nil {
			return err
		}
	}
}

// Serve reads from r until it fails or ctx is done. The ctx check happens
// between reads.
func (d *Device) Serve(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if werr := d.Receive(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *Device) execute(payload []byte) []Message {
	msgs, err := ParseMessages(payload)
	var out []Message
	for _, m := range msgs {
		out = append(out, d.handle(m)...)
	}
	if err != nil {
		out = append(out, &Fault{Reason: err.Error()})
	}
	return out
}

// reply packs replies into as few frames as fit, then acknowledges
func (d *Device) reply(replies []Message) error {
	var payload []byte
	for _, m := range replies {
		enc := AppendMessages(nil, m)
		if len(payload)+len(enc) > PayloadMax && len(payload) > 0 {
			if err := d.send(payload); err != nil {
				return err
			}
			payload = nil
		}
		payload = append(payload, enc...)
	}
	if len(payload) > 0 {
		if err := d.send(payload); err != nil {
			return err
		}
	}
	return d.send(nil)
}

func (d *Device) send(payload []byte) error {
	frame, err := EncodeFrame(d.expect, payload)
	if err != nil {
		return err
	}
	_, err = d.w.Write(frame)
	return err
}
