package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxBodySize bounds the body length accepted from the network.
const MaxBodySize = 16 << 20

// DatagramHeaderSize is the fixed datagram header: Tag(1) + SenderID(2).
const DatagramHeaderSize = 3

// Size prefix markers. Lengths below sizeWide16 fit in the first byte.
const (
	sizeWide16 = 254
	sizeWide32 = 255
)

var (
	ErrShortFrame    = errors.New("protocol: frame too short")
	ErrTrailingData  = errors.New("protocol: trailing data after frame")
	ErrFrameTooLarge = errors.New("protocol: frame body too large")
	ErrUnknownKind   = errors.New("protocol: unknown frame kind")
	ErrBadVariant    = errors.New("protocol: unknown payload variant")
)

// Encode serializes a Packet into a stream frame.
func Encode(pkt *Packet) []byte {
	n := len(pkt.Body)
	buf := make([]byte, 0, 1+sizePrefixLen(n)+n)
	buf = append(buf, pkt.tag())
	buf = appendSize(buf, n)
	return append(buf, pkt.Body...)
}

// Decode deserializes exactly one stream frame.
func Decode(data []byte) (*Packet, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}

	kind, variant, blasted, err := parseTag(data[0])
	if err != nil {
		return nil, err
	}

	n, used, err := readSize(data[1:])
	if err != nil {
		return nil, err
	}

	rest := data[1+used:]
	switch {
	case len(rest) < n:
		return nil, fmt.Errorf("%w: body needs %d bytes, have %d", ErrShortFrame, n, len(rest))
	case len(rest) > n:
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(rest)-n)
	}

	pkt := &Packet{Kind: kind, Variant: variant, Blasted: blasted}
	if n > 0 {
		pkt.Body = make([]byte, n)
		copy(pkt.Body, rest)
	}
	return pkt, nil
}

// ReadPacket reads one stream frame from r.
func ReadPacket(r io.Reader) (*Packet, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return nil, err
	}

	kind, variant, blasted, err := parseTag(hdr[0])
	if err != nil {
		return nil, err
	}

	var n int
	switch hdr[1] {
	case sizeWide16:
		if _, err := io.ReadFull(r, hdr[2:4]); err != nil {
			return nil, err
		}
		n = int(binary.LittleEndian.Uint16(hdr[2:4]))
	case sizeWide32:
		if _, err := io.ReadFull(r, hdr[1:5]); err != nil {
			return nil, err
		}
		n = int(binary.LittleEndian.Uint32(hdr[1:5]))
	default:
		n = int(hdr[1])
	}
	if n > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	pkt := &Packet{Kind: kind, Variant: variant, Blasted: blasted}
	if n > 0 {
		pkt.Body = make([]byte, n)
		if _, err := io.ReadFull(r, pkt.Body); err != nil {
			return nil, err
		}
	}
	return pkt, nil
}

// EncodeDatagram serializes a Packet for UDP, stamping the sender's client ID.
// Datagrams are always blasted.
func EncodeDatagram(pkt *Packet, sender uint16) []byte {
	buf := make([]byte, DatagramHeaderSize+len(pkt.Body))
	p := *pkt
	p.Blasted = true
	buf[0] = p.tag()
	binary.LittleEndian.PutUint16(buf[1:3], sender)
	copy(buf[DatagramHeaderSize:], pkt.Body)
	return buf
}

// DecodeDatagram deserializes a UDP datagram into its packet and sender ID.
func DecodeDatagram(data []byte) (*Packet, uint16, error) {
	if len(data) < DatagramHeaderSize {
		return nil, 0, fmt.Errorf("%w: datagram of %d bytes (need at least %d)", ErrShortFrame, len(data), DatagramHeaderSize)
	}
	kind, variant, _, err := parseTag(data[0])
	if err != nil {
		return nil, 0, err
	}
	pkt := &Packet{Kind: kind, Variant: variant, Blasted: true}
	if len(data) > DatagramHeaderSize {
		pkt.Body = make([]byte, len(data)-DatagramHeaderSize)
		copy(pkt.Body, data[DatagramHeaderSize:])
	}
	return pkt, binary.LittleEndian.Uint16(data[1:3]), nil
}

// FrameSize is the encoded length of a stream frame with an n-byte body.
func FrameSize(n int) int { return 1 + sizePrefixLen(n) + n }

func sizePrefixLen(n int) int {
	switch {
	case n < sizeWide16:
		return 1
	case n <= 0xFFFF:
		return 3
	default:
		return 5
	}
}

func appendSize(buf []byte, n int) []byte {
	switch {
	case n < sizeWide16:
		return append(buf, byte(n))
	case n <= 0xFFFF:
		buf = append(buf, sizeWide16)
		return binary.LittleEndian.AppendUint16(buf, uint16(n))
	default:
		buf = append(buf, sizeWide32)
		return binary.LittleEndian.AppendUint32(buf, uint32(n))
	}
}

// readSize parses a size prefix, returning the size and the prefix length.
func readSize(b []byte) (int, int, error) {
	switch b[0] {
	case sizeWide16:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("%w: truncated 16-bit size", ErrShortFrame)
		}
		return int(binary.LittleEndian.Uint16(b[1:3])), 3, nil
	case sizeWide32:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("%w: truncated 32-bit size", ErrShortFrame)
		}
		n := int(binary.LittleEndian.Uint32(b[1:5]))
		if n > MaxBodySize {
			return 0, 0, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
		}
		return n, 5, nil
	default:
		return int(b[0]), 1, nil
	}
}
