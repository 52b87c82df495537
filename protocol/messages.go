package protocol

import (
	"errors"
	"fmt"
)

// Command ids of the IO bridge message set
const (
	CmdIdentify uint16 = iota + 1
	CmdConfigLine
	CmdSetLine
	CmdQueryLine
	CmdAllOff
	CmdSetStatus
	CmdGetDictionary
)

// Response ids sent by the bridge
const (
	RespIdentify uint16 = iota + 0x40
	RespLineState
	RespFault
	RespDictionary
)

// DictionaryChunkMax is the most dictionary bytes one response carries
const DictionaryChunkMax = 40

var ErrUnknownCommand = errors.New("protocol: unknown command id")

// Line modes carried by ConfigLine
const (
	ModeOutput uint8 = iota
	ModeInputPullUp
	ModeInputPullDown
	ModeInputFloat
)

// Message is one command or response inside a frame payload
type Message interface {
	ID() uint16
	appendArgs(dst []byte) []byte
	readArgs(data *[]byte) error
}

// Identify asks the bridge for its version
type Identify struct{}

// IdentifyResponse answers Identify
type IdentifyResponse struct {
	Version  string
	MaxLines uint32
}

// ConfigLine binds object id OID to a physical pin. Outputs with a non-zero
// MaxDurationMS revert to Default unless refreshed within that time.
type ConfigLine struct {
	OID           uint8
	Pin           string
	Mode          uint8
	Default       bool
	MaxDurationMS uint32
}

// SetLine drives an output
type SetLine struct {
	OID   uint8
	Value bool
}

// QueryLine asks for the current level of a line
type QueryLine struct {
	OID uint8
}

// LineState answers QueryLine
type LineState struct {
	OID   uint8
	Value bool
}

// AllOff returns every output to its default level
type AllOff struct{}

// SetStatus sets the cabinet light
type SetStatus struct {
	R, G, B uint8
}

// GetDictionary asks for Count bytes of the compressed command dictionary
// starting at Offset
type GetDictionary struct {
	Offset uint32
	Count  uint8
}

// DictionaryChunk answers GetDictionary. A chunk shorter than requested is
// the last one.
type DictionaryChunk struct {
	Offset uint32
	Data   []byte
}

// Fault reports a command the bridge rejected
type Fault struct {
	Command uint16
	OID     uint8
	Reason  string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("bridge fault: command %d oid %d: %s", f.Command, f.OID, f.Reason)
}

func (*Identify) ID() uint16         { return CmdIdentify }
func (*IdentifyResponse) ID() uint16 { return RespIdentify }
func (*ConfigLine) ID() uint16       { return CmdConfigLine }
func (*SetLine) ID() uint16          { return CmdSetLine }
func (*QueryLine) ID() uint16        { return CmdQueryLine }
func (*LineState) ID() uint16        { return RespLineState }
func (*AllOff) ID() uint16           { return CmdAllOff }
func (*SetStatus) ID() uint16        { return CmdSetStatus }
func (*Fault) ID() uint16            { return RespFault }
func (*GetDictionary) ID() uint16    { return CmdGetDictionary }
func (*DictionaryChunk) ID() uint16  { return RespDictionary }

func (*Identify) appendArgs(dst []byte) []byte { return dst }
func (*Identify) readArgs(*[]byte) error       { return nil }
func (*AllOff) appendArgs(dst []byte) []byte   { return dst }
func (*AllOff) readArgs(*[]byte) error         { return nil }

func (m *IdentifyResponse) appendArgs(dst []byte) []byte {
	dst = AppendBytes(dst, []byte(m.Version))
	return AppendUint(dst, m.MaxLines)
}

func (m *IdentifyResponse) readArgs(data *[]byte) error {
	v, err := ReadBytes(data)
	if err != nil {
		return err
	}
	m.Version = string(v)
	m.MaxLines, err = ReadUint(data)
	return err
}

func (m *ConfigLine) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, uint32(m.OID))
	dst = AppendBytes(dst, []byte(m.Pin))
	dst = AppendUint(dst, uint32(m.Mode))
	dst = AppendUint(dst, boolArg(m.Default))
	return AppendUint(dst, m.MaxDurationMS)
}

func (m *ConfigLine) readArgs(data *[]byte) error {
	var r argReader
	m.OID = uint8(r.uint(data))
	m.Pin = string(r.bytes(data))
	m.Mode = uint8(r.uint(data))
	m.Default = r.uint(data) != 0
	m.MaxDurationMS = r.uint(data)
	return r.err
}

func (m *SetLine) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, uint32(m.OID))
	return AppendUint(dst, boolArg(m.Value))
}

func (m *SetLine) readArgs(data *[]byte) error {
	var r argReader
	m.OID = uint8(r.uint(data))
	m.Value = r.uint(data) != 0
	return r.err
}

func (m *QueryLine) appendArgs(dst []byte) []byte {
	return AppendUint(dst, uint32(m.OID))
}

func (m *QueryLine) readArgs(data *[]byte) error {
	var r argReader
	m.OID = uint8(r.uint(data))
	return r.err
}

func (m *LineState) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, uint32(m.OID))
	return AppendUint(dst, boolArg(m.Value))
}

func (m *LineState) readArgs(data *[]byte) error {
	var r argReader
	m.OID = uint8(r.uint(data))
	m.Value = r.uint(data) != 0
	return r.err
}

func (m *SetStatus) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, uint32(m.R))
	dst = AppendUint(dst, uint32(m.G))
	return AppendUint(dst, uint32(m.B))
}

func (m *SetStatus) readArgs(data *[]byte) error {
	var r argReader
	m.R = uint8(r.uint(data))
	m.G = uint8(r.uint(data))
	m.B = uint8(r.uint(data))
	return r.err
}

func (m *Fault) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, uint32(m.Command))
	dst = AppendUint(dst, uint32(m.OID))
	return AppendBytes(dst, []byte(m.Reason))
}

func (m *Fault) readArgs(data *[]byte) error {
	var r argReader
	m.Command = uint16(r.uint(data))
	m.OID = uint8(r.uint(data))
	m.Reason = string(r.bytes(data))
	return r.err
}

func (m *GetDictionary) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, m.Offset)
	return AppendUint(dst, uint32(m.Count))
}

func (m *GetDictionary) readArgs(data *[]byte) error {
	var r argReader
	m.Offset = r.uint(data)
	m.Count = uint8(r.uint(data))
	return r.err
}

func (m *DictionaryChunk) appendArgs(dst []byte) []byte {
	dst = AppendUint(dst, m.Offset)
	return AppendBytes(dst, m.Data)
}

func (m *DictionaryChunk) readArgs(data *[]byte) error {
	var r argReader
	m.Offset = r.uint(data)
	m.Data = r.bytes(data)
	return r.err
}

func boolArg(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// argReader keeps the first decode error so readArgs stays linear
type argReader struct {
	err error
}

func (r *argReader) uint(data *[]byte) uint32 {
	if r.err != nil {
		return 0
	}
	v, err := ReadUint(data)
	r.err = err
	return v
}

func (r *argReader) bytes(data *[]byte) []byte {
	if r.err != nil {
		return nil
	}
	v, err := ReadBytes(data)
	r.err = err
	return v
}

func newMessage(id uint16) (Message, error) {
	switch id {
	case CmdIdentify:
		return &Identify{}, nil
	case RespIdentify:
		return &IdentifyResponse{}, nil
	case CmdConfigLine:
		return &ConfigLine{}, nil
	case CmdSetLine:
		return &SetLine{}, nil
	case CmdQueryLine:
		return &QueryLine{}, nil
	case RespLineState:
		return &LineState{}, nil
	case CmdAllOff:
		return &AllOff{}, nil
	case CmdSetStatus:
		return &SetStatus{}, nil
	case RespFault:
		return &Fault{}, nil
	case CmdGetDictionary:
		return &GetDictionary{}, nil
	case RespDictionary:
		return &DictionaryChunk{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownCommand, id)
}

// AppendMessages appends the encoding of msgs to dst
func AppendMessages(dst []byte, msgs ...Message) []byte {
	for _, m := range msgs {
		dst = AppendUint(dst, uint32(m.ID()))
		dst = m.appendArgs(dst)
	}
	return dst
}

// ParseMessages decodes every message in a frame payload
func ParseMessages(payload []byte) ([]Message, error) {
	var out []Message
	for len(payload) > 0 {
		id, err := ReadUint(&payload)
		if err != nil {
			return out, err
		}
		m, err := newMessage(uint16(id))
		if err != nil {
			return out, err
		}
		if err := m.readArgs(&payload); err != nil {
			return out, fmt.Errorf("decode command %d: %w", id, err)
		}
		out = append(out, m)
	}
	return out, nil
}
