// Package message describes a received relay message.
package message

import (
	"errors"
	"fmt"

	"github.com/1ureka/bluewing/internal/payload"
	"github.com/1ureka/bluewing/internal/protocol"
)

// AnySubchannel matches every subchannel in Matches.
const AnySubchannel = -1

var ErrWrongVariant = errors.New("message: content is not of the requested variant")

// Class is the delivery class of a message.
type Class uint8

const (
	Sent    Class = iota // ordered, reliable
	Blasted              // unordered, may be lost
)

func (c Class) String() string {
	if c == Blasted {
		return "blasted"
	}
	return "sent"
}

// Source says who a message came from.
type Source uint8

const (
	FromServer        Source = iota // the server, to this client only
	FromChannel                     // a peer, to the whole channel
	FromPeer                        // a peer, to this client only
	FromServerChannel               // the server, to the whole channel
)

func (s Source) String() string {
	switch s {
	case FromServer:
		return "server"
	case FromChannel:
		return "channel"
	case FromPeer:
		return "peer"
	case FromServerChannel:
		return "server-channel"
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

// SourceOf maps a data frame kind to its message source.
func SourceOf(k protocol.Kind) (Source, bool) {
	switch k {
	case protocol.KindServerMessage:
		return FromServer, true
	case protocol.KindChannelMessage:
		return FromChannel, true
	case protocol.KindPeerMessage:
		return FromPeer, true
	case protocol.KindServerChannelMessage:
		return FromServerChannel, true
	}
	return 0, false
}

// Message is one received message. Content is shared by every copy and alias
// of the message, including its read cursor.
type Message struct {
	Subchannel uint8
	Variant    protocol.Variant
	Class      Class
	Source     Source
	ChannelID  uint16 // channel and peer messages
	PeerID     uint16 // sending peer, for channel and peer messages
	Content    *payload.Buffer
}

// New builds a message around data, which it takes ownership of.
func New(env *protocol.Envelope, variant protocol.Variant, class Class, src Source) *Message {
	return &Message{
		Subchannel: env.Subchannel,
		Variant:    variant,
		Class:      class,
		Source:     src,
		ChannelID:  env.ChannelID,
		PeerID:     env.PeerID,
		Content:    payload.NewBuffer(env.Data),
	}
}

// Matches reports whether the message arrived on subchannel, or on any
// subchannel when given AnySubchannel.
func (m *Message) Matches(subchannel int) bool {
	return subchannel == AnySubchannel || subchannel == int(m.Subchannel)
}

// Alias returns a second handle to the message that shares its content.
func (m *Message) Alias() *Message {
	cp := *m
	return &cp
}

// Text returns text content without its null terminator.
func (m *Message) Text() (string, error) {
	if m.Variant != protocol.VariantText {
		return "", fmt.Errorf("%w: message is %s", ErrWrongVariant, m.Variant)
	}
	if m.Content.Len() == 0 {
		return "", nil
	}
	return m.Content.TerminatedString(0)
}

// Number returns number content.
func (m *Message) Number() (int32, error) {
	if m.Variant != protocol.VariantNumber {
		return 0, fmt.Errorf("%w: message is %s", ErrWrongVariant, m.Variant)
	}
	return m.Content.SignedInt(0)
}

// Size returns the content length in bytes.
func (m *Message) Size() int { return m.Content.Len() }
