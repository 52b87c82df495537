package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrNoAck  = errors.New("protocol: command not acknowledged")
	ErrClosed = errors.New("protocol: link closed")
)

const (
	sendAttempts = 3
	closeWait    = time.Second
)

// Host is the host side of the link. Send writes one command frame and waits
// for its acknowledgement; responses the device sent before the
// acknowledgement are returned with it.
type Host struct {
	port io.ReadWriteCloser

	sendMu sync.Mutex
	seq    uint8

	acks      chan uint8
	responses chan Message

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	readErr   error
}

// NewHost starts reading from port
func NewHost(port io.ReadWriteCloser) *Host {
	h := &Host{
		port:      port,
		seq:       SeqDest,
		acks:      make(chan uint8, 4),
		responses: make(chan Message, 32),
		done:      make(chan struct{}),
	}
	go h.readLoop()
	return h
}

// Send transmits msgs in one frame and waits for the acknowledgement until
// ctx is done. A NAK is answered by retransmitting with the sequence the
// device expects. If a response is a *Fault it is returned as the error.
func (h *Host) Send(ctx context.Context, msgs ...Message) ([]Message, error) {
	payload := AppendMessages(nil, msgs...)

	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	h.drain()

	for attempt := 0; attempt < sendAttempts; attempt++ {
		frame, err := EncodeFrame(h.seq, payload)
		if err != nil {
			return nil, err
		}
		if _, err := h.port.Write(frame); err != nil {
			return nil, fmt.Errorf("protocol: write: %w", err)
		}

		select {
		case ack := <-h.acks:
			if ack == NextSeq(h.seq) {
				h.seq = ack
				return h.collect()
			}
			h.seq = ack
		case <-ctx.Done():
			// the device may have run the command; the next send resyncs via NAK
			h.seq = NextSeq(h.seq)
			return nil, fmt.Errorf("%w: %w", ErrNoAck, ctx.Err())
		case <-h.done:
			return nil, h.closedErr()
		}
	}
	return nil, fmt.Errorf("%w: %d attempts", ErrNoAck, sendAttempts)
}

// Close closes the port and stops the reader
func (h *Host) Close() error {
	var err error
	h.closeOnce.Do(func() {
		err = h.port.Close()
		select {
		case <-h.done:
		case <-time.After(closeWait):
		}
	})
	return err
}

// Done is closed when the reader stops
func (h *Host) Done() <-chan struct{} {
	return h.done
}

func (h *Host) closedErr() error {
	h.errMu.Lock()
	defer h.errMu.Unlock()
	if h.readErr != nil && !errors.Is(h.readErr, io.EOF) {
		return fmt.Errorf("%w: %w", ErrClosed, h.readErr)
	}
	return ErrClosed
}

// drain discards replies left over from an earlier timed-out send
func (h *Host) drain() {
	for {
		select {
		case <-h.acks:
		case <-h.responses:
		default:
			return
		}
	}
}

func (h *Host) collect() ([]Message, error) {
	var out []Message
	var fault error
	for {
		select {
		case m := <-h.responses:
			if f, ok := m.(*Fault); ok && fault == nil {
				fault = f
			}
			out = append(out, m)
		default:
			return out, fault
		}
	}
}

func (h *Host) readLoop() {
	defer close(h.done)
	var dec Decoder
	buf := make([]byte, 256)
	for {
		n, err := h.port.Read(buf)
		if n > 0 {
			_, _ = dec.Write(buf[:n])
			for f, ok := dec.Next(); ok; f, ok = dec.Next() {
				h.dispatch(f)
			}
		}
		if err != nil {
			h.errMu.Lock()
			h.readErr = err
			h.errMu.Unlock()
			return
		}
	}
}

func (h *Host) dispatch(f Frame) {
	if f.IsAck() {
		select {
		case h.acks <- f.Seq:
		default:
		}
		return
	}
	msgs, _ := ParseMessages(f.Payload)
	for _, m := range msgs {
		select {
		case h.responses <- m:
		default:
			// full: drop the oldest
			select {
			case <-h.responses:
			default:
			}
			h.responses <- m
		}
	}
}
