// Package protocol defines the frame format and message bodies spoken between
// relay clients and the relay server.
package protocol

import "fmt"

// Kind identifies what a frame carries. It occupies the high nibble of the tag byte.
type Kind uint8

const (
	KindRequest              Kind = iota // client → server request
	KindResponse                         // server → client reply to a request
	KindServerMessage                    // client ↔ server data message
	KindChannelMessage                   // data relayed to every peer of a channel
	KindPeerMessage                      // data relayed to a single peer
	KindServerChannelMessage             // data sent by the server to a whole channel
	KindPeerUpdate                       // a peer joined, left, or changed name/flags
	KindUDPHello                         // client binds its UDP address (datagram)
	KindUDPWelcome                       // server acknowledges the UDP binding
	KindPing                             // server liveness probe
	KindPong                             // client liveness reply
)

var kindNames = [...]string{
	"request", "response", "server-message", "channel-message", "peer-message",
	"server-channel-message", "peer-update", "udp-hello", "udp-welcome", "ping", "pong",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsData reports whether frames of this kind carry an application payload.
func (k Kind) IsData() bool {
	switch k {
	case KindServerMessage, KindChannelMessage, KindPeerMessage, KindServerChannelMessage:
		return true
	}
	return false
}

// Variant is the payload type of a data frame.
type Variant uint8

const (
	VariantText   Variant = 0 // UTF-8, NUL-terminated
	VariantNumber Variant = 1 // 4-byte little-endian signed integer
	VariantBinary Variant = 2 // raw bytes
)

func (v Variant) String() string {
	switch v {
	case VariantText:
		return "text"
	case VariantNumber:
		return "number"
	case VariantBinary:
		return "binary"
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// Tag byte layout.
const (
	variantMask = 0x03
	blastedBit  = 0x08
	kindShift   = 4
)

// Packet is one protocol frame: its tag fields plus the raw body.
type Packet struct {
	Kind    Kind
	Variant Variant // meaningful for data kinds only
	Blasted bool    // unordered delivery class
	Body    []byte
}

func (p *Packet) tag() byte {
	t := byte(p.Kind)<<kindShift | byte(p.Variant)&variantMask
	if p.Blasted {
		t |= blastedBit
	}
	return t
}

func parseTag(t byte) (Kind, Variant, bool, error) {
	k := Kind(t >> kindShift)
	v := Variant(t & variantMask)
	if k > KindPong {
		return 0, 0, false, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
	}
	if v > VariantBinary {
		return 0, 0, false, fmt.Errorf("%w: %d", ErrBadVariant, uint8(v))
	}
	return k, v, t&blastedBit != 0, nil
}
