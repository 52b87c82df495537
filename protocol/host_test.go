package protocol

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler answers queries with the last value set on the same oid
type echoHandler struct {
	levels map[uint8]bool
	calls  atomic.Int32
}

func (e *echoHandler) handle(m Message) []Message {
	e.calls.Add(1)
	switch m := m.(type) {
	case *SetLine:
		e.levels[m.OID] = m.Value
	case *QueryLine:
		v, ok := e.levels[m.OID]
		if !ok {
			return []Message{&Fault{Command: CmdQueryLine, OID: m.OID, Reason: "unknown oid"}}
		}
		return []Message{&LineState{OID: m.OID, Value: v}}
	case *Identify:
		return []Message{&IdentifyResponse{Version: "test", MaxLines: 16}}
	}
	return nil
}

func newPair(t *testing.T) (*Host, *Device, *echoHandler) {
	t.Helper()
	hostEnd, devEnd := net.Pipe()
	e := &echoHandler{levels: map[uint8]bool{}}
	dev := NewDevice(devEnd, e.handle)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = dev.Serve(ctx, devEnd) }()

	h := NewHost(hostEnd)
	t.Cleanup(func() {
		cancel()
		_ = h.Close()
		_ = devEnd.Close()
	})
	return h, dev, e
}

func sendCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestHostSendAndQuery(t *testing.T) {
	h, _, _ := newPair(t)

	resp, err := h.Send(sendCtx(t), &Identify{})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, &IdentifyResponse{Version: "test", MaxLines: 16}, resp[0])

	resp, err = h.Send(sendCtx(t), &SetLine{OID: 2, Value: true})
	require.NoError(t, err)
	assert.Empty(t, resp)

	resp, err = h.Send(sendCtx(t), &QueryLine{OID: 2})
	require.NoError(t, err)
	assert.Equal(t, []Message{&LineState{OID: 2, Value: true}}, resp)
}

func TestHostSequenceWraps(t *testing.T) {
	h, _, e := newPair(t)
	for i := 0; i < 40; i++ {
		_, err := h.Send(sendCtx(t), &SetLine{OID: 1, Value: i%2 == 0})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 40, e.calls.Load(), "every command runs exactly once")
}

func TestHostFault(t *testing.T) {
	h, _, _ := newPair(t)
	_, err := h.Send(sendCtx(t), &QueryLine{OID: 9})

	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.EqualValues(t, 9, fault.OID)
}

func TestHostRetransmitsAfterNak(t *testing.T) {
	h, _, e := newPair(t)
	h.seq = 0x13 // out of step with the device

	_, err := h.Send(sendCtx(t), &SetLine{OID: 5, Value: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.calls.Load())
	assert.EqualValues(t, 0x11, h.seq)
}

func TestDeviceResetsOnNewHost(t *testing.T) {
	h, dev, _ := newPair(t)
	var resets atomic.Int32
	dev.SetResetCallback(func() { resets.Add(1) })

	for i := 0; i < 3; i++ {
		_, err := h.Send(sendCtx(t), &AllOff{})
		require.NoError(t, err)
	}
	h.seq = SeqDest // a restarted host starts over

	_, err := h.Send(sendCtx(t), &AllOff{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resets.Load())
}

func TestHostSendAfterClose(t *testing.T) {
	h, _, _ := newPair(t)
	require.NoError(t, h.Close())

	_, err := h.Send(sendCtx(t), &AllOff{})
	assert.Error(t, err)
}
