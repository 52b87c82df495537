package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessagesSequence(t *testing.T) {
	in := []Message{
		&ConfigLine{OID: 3, Pin: "GP15", Mode: ModeInputPullUp, MaxDurationMS: 0},
		&ConfigLine{OID: 4, Pin: "GP2", Mode: ModeOutput, Default: false, MaxDurationMS: 2000},
		&SetLine{OID: 4, Value: true},
		&QueryLine{OID: 3},
		&SetStatus{R: 0, G: 200, B: 255},
		&AllOff{},
	}
	payload := AppendMessages(nil, in...)

	out, err := ParseMessages(payload)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseMessagesUnknownCommand(t *testing.T) {
	payload := AppendMessages(nil, &AllOff{})
	payload = AppendUint(payload, 0x3F)

	out, err := ParseMessages(payload)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Len(t, out, 1, "messages before the bad id are kept")
}

func TestParseMessagesTruncatedArgs(t *testing.T) {
	payload := AppendMessages(nil, &SetLine{OID: 1, Value: true})
	_, err := ParseMessages(payload[:len(payload)-1])
	assert.ErrorIs(t, err, ErrShortData)
}

func TestFaultIsError(t *testing.T) {
	var err error = &Fault{Command: CmdSetLine, OID: 9, Reason: "unknown oid"}
	assert.Contains(t, err.Error(), "unknown oid")
}

func TestDictionaryChunkFitsFrame(t *testing.T) {
	chunk := &DictionaryChunk{Offset: 1 << 16, Data: make([]byte, DictionaryChunkMax)}
	payload := AppendMessages(nil, chunk)
	_, err := EncodeFrame(0, payload)
	require.NoError(t, err)

	out, err := ParseMessages(AppendMessages(nil, &GetDictionary{Offset: 300, Count: 40}))
	require.NoError(t, err)
	assert.Equal(t, []Message{&GetDictionary{Offset: 300, Count: 40}}, out)
}
