// Package link drives the machine lines through an IO bridge over the
// serial protocol. A Link implements core.DigitalIO and core.StatusLight.
package link

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"clawgate/core"
	"clawgate/protocol"
)

// DefaultCommandTimeout bounds every command round trip
const DefaultCommandTimeout = 500 * time.Millisecond

var (
	ErrUnknownLine = errors.New("link: line not configured")
	ErrNoResponse  = errors.New("link: bridge sent no line state")
	ErrTooMany     = errors.New("link: more lines than the bridge supports")
	ErrDictionary  = errors.New("link: bad dictionary chunk")
)

// maxDictionary bounds the compressed dictionary a bridge may send
const maxDictionary = 16 << 10

// Config describes the lines to configure on the bridge
type Config struct {
	Lines []core.LineSpec

	// MaxDuration makes the bridge drop an output that stays asserted longer
	// than the given time, so a lost host cannot leave a motor running
	MaxDuration map[core.LineID]time.Duration

	CommandTimeout time.Duration
}

// Link is an open bridge connection
type Link struct {
	host    *protocol.Host
	oids    map[core.LineID]uint8
	timeout time.Duration
	version string
	dict    string
	log     *slog.Logger
}

// Open identifies the bridge on port and configures every line. Outputs
// start low. The port is closed if configuration fails.
func Open(ctx context.Context, port io.ReadWriteCloser, cfg Config, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	l := &Link{
		host:    protocol.NewHost(port),
		oids:    make(map[core.LineID]uint8, len(cfg.Lines)),
		timeout: cfg.CommandTimeout,
		log:     log.With("component", "link"),
	}
	if l.timeout <= 0 {
		l.timeout = DefaultCommandTimeout
	}
	if err := l.configure(ctx, cfg); err != nil {
		_ = l.host.Close()
		return nil, err
	}
	if dict, err := l.fetchDictionary(ctx); err != nil {
		l.log.Warn("bridge dictionary unavailable", "error", err)
	} else {
		l.dict = dict
		l.log.Debug("bridge dictionary", "commands", strings.Count(dict, "\n"))
	}
	l.log.Info("bridge ready", "version", l.version, "lines", len(l.oids))
	return l, nil
}

func (l *Link) configure(ctx context.Context, cfg Config) error {
	resp, err := l.send(ctx, &protocol.Identify{})
	if err != nil {
		return fmt.Errorf("link: identify: %w", err)
	}
	var maxLines uint32
	for _, m := range resp {
		if id, ok := m.(*protocol.IdentifyResponse); ok {
			l.version, maxLines = id.Version, id.MaxLines
		}
	}
	if maxLines > 0 && len(cfg.Lines) > int(maxLines) {
		return fmt.Errorf("%w: %d > %d", ErrTooMany, len(cfg.Lines), maxLines)
	}

	for i, spec := range cfg.Lines {
		oid := uint8(i)
		msg := &protocol.ConfigLine{
			OID:           oid,
			Pin:           spec.Pin,
			Mode:          wireMode(spec.Mode),
			MaxDurationMS: uint32(cfg.MaxDuration[spec.ID] / time.Millisecond),
		}
		if _, err := l.send(ctx, msg); err != nil {
			return fmt.Errorf("link: configure %s on %s: %w", spec.ID, spec.Pin, err)
		}
		l.oids[spec.ID] = oid
		l.log.Debug("line configured", "line", spec.ID, "pin", spec.Pin, "mode", spec.Mode, "oid", oid)
	}
	return nil
}

func wireMode(m core.LineMode) uint8 {
	switch m {
	case core.LineInputPullUp:
		return protocol.ModeInputPullUp
	case core.LineInputPullDown:
		return protocol.ModeInputPullDown
	case core.LineInputFloat:
		return protocol.ModeInputFloat
	default:
		return protocol.ModeOutput
	}
}

// Version is the bridge firmware version
func (l *Link) Version() string {
	return l.version
}

// Dictionary is the command list the bridge reported, one "id name format"
// line per command. It is empty if the bridge could not send it.
func (l *Link) Dictionary() string {
	return l.dict
}

// fetchDictionary pulls the zlib-wrapped dictionary in chunks and inflates it
func (l *Link) fetchDictionary(ctx context.Context) (string, error) {
	var raw []byte
	for len(raw) < maxDictionary {
		resp, err := l.send(ctx, &protocol.GetDictionary{Offset: uint32(len(raw)), Count: protocol.DictionaryChunkMax})
		if err != nil {
			return "", err
		}
		var chunk *protocol.DictionaryChunk
		for _, m := range resp {
			if c, ok := m.(*protocol.DictionaryChunk); ok {
				chunk = c
			}
		}
		if chunk == nil || int(chunk.Offset) != len(raw) {
			return "", fmt.Errorf("%w at offset %d", ErrDictionary, len(raw))
		}
		raw = append(raw, chunk.Data...)
		if len(chunk.Data) < protocol.DictionaryChunkMax {
			break
		}
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("link: dictionary: %w", err)
	}
	defer zr.Close()
	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("link: dictionary: %w", err)
	}
	return string(text), nil
}

// ReadLine queries the current level of line
func (l *Link) ReadLine(line core.LineID) (bool, error) {
	oid, ok := l.oids[line]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	resp, err := l.sendTimeout(&protocol.QueryLine{OID: oid})
	if err != nil {
		return false, err
	}
	for _, m := range resp {
		if st, ok := m.(*protocol.LineState); ok && st.OID == oid {
			return st.Value, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrNoResponse, line)
}

// WriteLine drives an output line
func (l *Link) WriteLine(line core.LineID, level bool) error {
	oid, ok := l.oids[line]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLine, line)
	}
	_, err := l.sendTimeout(&protocol.SetLine{OID: oid, Value: level})
	return err
}

// SetStatus sets the cabinet light on the bridge
func (l *Link) SetStatus(r, g, b uint8) error {
	_, err := l.sendTimeout(&protocol.SetStatus{R: r, G: g, B: b})
	return err
}

// Close returns every output to its default level and closes the port
func (l *Link) Close() error {
	_, offErr := l.sendTimeout(&protocol.AllOff{})
	if offErr != nil {
		l.log.Error("all_off failed", "error", offErr)
	}
	return errors.Join(offErr, l.host.Close())
}

func (l *Link) sendTimeout(msgs ...protocol.Message) ([]protocol.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	return l.send(ctx, msgs...)
}

func (l *Link) send(ctx context.Context, msgs ...protocol.Message) ([]protocol.Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.host.Send(ctx, msgs...)
}
