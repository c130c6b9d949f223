package client

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/topology"
)

// Target is where a send or blast goes.
type Target uint8

const (
	ToServer  Target = iota
	ToChannel        // the selected channel
	ToPeer           // the selected peer
)

func (t Target) String() string {
	switch t {
	case ToServer:
		return "Server"
	case ToChannel:
		return "Channel"
	case ToPeer:
		return "Peer"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// opError carries a caller-facing message while still matching its cause
// with errors.Is.
type opError struct {
	msg string
	err error
}

func (e *opError) Error() string { return e.msg }
func (e *opError) Unwrap() error { return e.err }

func opErrorf(cause error, format string, args ...any) error {
	return &opError{msg: fmt.Sprintf(format, args...), err: cause}
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// request sends a request packet on the live connection.
func (s *Session) request(what string, q *protocol.Request) error {
	s.lock.Lock()
	c, err := s.connected()
	s.lock.Unlock()
	if err != nil {
		return s.fail(fmt.Errorf("could not %s: %w", what, err))
	}
	c.tr.Send(q.Packet())
	return nil
}

// SetName asks the server for a new client name. The outcome arrives as
// OnNameSet or OnNameDenied.
func (s *Session) SetName(name string) error {
	if name == "" {
		return s.fail(fmt.Errorf("could not set name: %w", topology.ErrBlankName))
	}
	return s.request("set name", &protocol.Request{Type: protocol.RequestSetName, Name: name})
}

// Join asks to join or create a channel. A client name must be set first.
// The outcome arrives as OnChannelJoin or OnChannelJoinDenied.
func (s *Session) Join(name string, hidden, autoClose bool) error {
	if name == "" {
		return s.fail(opErrorf(topology.ErrBlankName, "Join Channel was called with a blank channel name"))
	}

	s.lock.Lock()
	if s.name == "" {
		s.lock.Unlock()
		return s.fail(opErrorf(ErrNoClientName, "Join Channel was called before a client name was set"))
	}
	c, err := s.connected()
	if err != nil {
		s.lock.Unlock()
		return s.fail(fmt.Errorf("could not join channel %q: %w", name, err))
	}
	s.pending[strings.ToLower(name)] = joinFlags{hidden: hidden, autoClose: autoClose}
	s.lock.Unlock()

	c.tr.Send((&protocol.Request{
		Type:      protocol.RequestJoinChannel,
		Name:      name,
		Hidden:    hidden,
		AutoClose: autoClose,
	}).Packet())
	return nil
}

// Leave asks to leave the selected channel. The outcome arrives as
// OnChannelLeave or OnChannelLeaveDenied.
func (s *Session) Leave() error {
	s.lock.Lock()
	ch, err := s.topo.SelectedChannel()
	if err != nil {
		s.lock.Unlock()
		return s.fail(selectionError("Leave Channel", err))
	}
	id := ch.ID
	s.lock.Unlock()
	return s.request("leave channel", &protocol.Request{Type: protocol.RequestLeaveChannel, ChannelID: id})
}

// RequestChannelList asks for the server's public channels. The list
// arrives as OnChannelListReceived.
func (s *Session) RequestChannelList() error {
	return s.request("request channel list", &protocol.Request{Type: protocol.RequestChannelList})
}

// ---------------------------------------------------------------------------
// Send and blast
// ---------------------------------------------------------------------------

var variantTitle = [...]string{
	protocol.VariantText:   "Text",
	protocol.VariantNumber: "Number",
	protocol.VariantBinary: "Binary",
}

func selectionError(op string, err error) error {
	switch {
	case errors.Is(err, topology.ErrNoChannelSelected):
		return opErrorf(err, "%s was called without a channel being selected", op)
	case errors.Is(err, topology.ErrChannelClosed):
		return opErrorf(err, "%s was called with a closed channel", op)
	case errors.Is(err, topology.ErrNoPeerSelected):
		return opErrorf(err, "%s was called without a peer being selected", op)
	case errors.Is(err, topology.ErrPeerClosed):
		return opErrorf(err, "%s was called with a closed peer", op)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// transmit validates and sends one data message. Sends are ordered; blasts
// may arrive out of order or not at all.
func (s *Session) transmit(blast bool, target Target, subchannel int, variant protocol.Variant, data []byte) error {
	verb := "Send"
	if blast {
		verb = "Blast"
	}
	op := fmt.Sprintf("%s %s to %s", verb, variantTitle[variant], target)

	if subchannel < 0 || subchannel > 255 {
		return s.fail(opErrorf(ErrBadSubchannel, "%s was called with subchannel %d, it must be between 0 and 255", op, subchannel))
	}

	s.lock.Lock()
	c, err := s.connected()
	if err != nil {
		s.lock.Unlock()
		return s.fail(opErrorf(err, "%s was called while not connected", op))
	}

	env := &protocol.Envelope{Subchannel: uint8(subchannel), Data: data}
	var kind protocol.Kind
	switch target {
	case ToServer:
		kind = protocol.KindServerMessage
	case ToChannel:
		ch, err := s.topo.SelectedChannel()
		if err != nil {
			s.lock.Unlock()
			return s.fail(selectionError(op, err))
		}
		kind = protocol.KindChannelMessage
		env.ChannelID = ch.ID
	case ToPeer:
		ch, err := s.topo.SelectedChannel()
		if err != nil {
			s.lock.Unlock()
			return s.fail(selectionError(op, err))
		}
		p, err := s.topo.SelectedPeer()
		if err != nil {
			s.lock.Unlock()
			return s.fail(selectionError(op, err))
		}
		kind = protocol.KindPeerMessage
		env.ChannelID, env.PeerID = ch.ID, p.ID
	default:
		s.lock.Unlock()
		return s.fail(fmt.Errorf("%s: %w", op, ErrUnknownTarget))
	}
	id, udpReady := s.id, c.udpReady
	s.lock.Unlock()

	s.emit(c, id, udpReady, protocol.NewDataPacket(kind, variant, blast, env))
	return nil
}

func textPayload(text string) ([]byte, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	data := make([]byte, len(text)+1)
	copy(data, text)
	return data, nil
}

func (s *Session) sendText(blast bool, target Target, subchannel int, text string) error {
	data, err := textPayload(text)
	if err != nil {
		verb := "Send"
		if blast {
			verb = "Blast"
		}
		return s.fail(fmt.Errorf("%s Text to %s: %w", verb, target, err))
	}
	return s.transmit(blast, target, subchannel, protocol.VariantText, data)
}

func numberPayload(n int32) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), uint32(n))
}

// sendBinary sends the binary builder's content. With AutomaticClear the
// builder is emptied afterwards, whether or not the send succeeded.
func (s *Session) sendBinary(blast bool, target Target, subchannel int) error {
	s.lock.Lock()
	data := append([]byte(nil), s.send.Bytes()...)
	s.lock.Unlock()

	err := s.transmit(blast, target, subchannel, protocol.VariantBinary, data)

	if s.cfg.AutomaticClear {
		s.lock.Lock()
		s.send.Clear()
		s.lock.Unlock()
	}
	return err
}

// SendText sends text with its null terminator.
func (s *Session) SendText(target Target, subchannel int, text string) error {
	return s.sendText(false, target, subchannel, text)
}

// BlastText blasts text with its null terminator.
func (s *Session) BlastText(target Target, subchannel int, text string) error {
	return s.sendText(true, target, subchannel, text)
}

// SendNumber sends n as 4 bytes.
func (s *Session) SendNumber(target Target, subchannel int, n int32) error {
	return s.transmit(false, target, subchannel, protocol.VariantNumber, numberPayload(n))
}

// BlastNumber blasts n as 4 bytes.
func (s *Session) BlastNumber(target Target, subchannel int, n int32) error {
	return s.transmit(true, target, subchannel, protocol.VariantNumber, numberPayload(n))
}

// SendBinary sends the binary built with Compose.
func (s *Session) SendBinary(target Target, subchannel int) error {
	return s.sendBinary(false, target, subchannel)
}

// BlastBinary blasts the binary built with Compose.
func (s *Session) BlastBinary(target Target, subchannel int) error {
	return s.sendBinary(true, target, subchannel)
}
