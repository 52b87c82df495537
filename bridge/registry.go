package bridge

import (
	"sort"
	"strings"

	"clawgate/protocol"
)

// commandHandler runs one decoded command
type commandHandler func(m protocol.Message) ([]protocol.Message, error)

type command struct {
	ID      uint16
	Name    string
	Format  string // argument list, e.g. "oid=%c value=%c"
	Handler commandHandler
}

// registry maps command ids to handlers
type registry struct {
	commands map[uint16]*command
}

func newRegistry() *registry {
	return &registry{commands: make(map[uint16]*command)}
}

func (r *registry) register(id uint16, name, format string, h commandHandler) {
	r.commands[id] = &command{ID: id, Name: name, Format: format, Handler: h}
}

func (r *registry) lookup(id uint16) (*command, bool) {
	c, ok := r.commands[id]
	return c, ok
}

// dictionary lists every command as "id name format", one per line
func (r *registry) dictionary() string {
	ids := make([]int, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	var sb strings.Builder
	for _, id := range ids {
		c := r.commands[uint16(id)]
		sb.WriteString(itoa(id))
		sb.WriteByte(' ')
		sb.WriteString(c.Name)
		if c.Format != "" {
			sb.WriteByte(' ')
			sb.WriteString(c.Format)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// itoa avoids strconv so the firmware build stays small
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
