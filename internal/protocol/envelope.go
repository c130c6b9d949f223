package protocol

import "fmt"

// Envelope is the addressed body of a data frame.
//
//	server message:          subchannel, data
//	channel message:         subchannel, channel id, peer id, data
//	peer message:            subchannel, channel id, peer id, data
//	server-channel message:  subchannel, channel id, data
//
// In a channel message sent by a client the peer id is ignored; the server
// fills in the sender before relaying. In a peer message it names the
// recipient on the way in and the sender on the way out.
type Envelope struct {
	Subchannel uint8
	ChannelID  uint16
	PeerID     uint16
	Data       []byte
}

func hasChannel(k Kind) bool {
	return k == KindChannelMessage || k == KindPeerMessage || k == KindServerChannelMessage
}

func hasPeer(k Kind) bool {
	return k == KindChannelMessage || k == KindPeerMessage
}

// NewDataPacket builds a data frame of the given kind around e.
func NewDataPacket(kind Kind, variant Variant, blasted bool, e *Envelope) *Packet {
	var w bodyWriter
	w.buf = make([]byte, 0, 5+len(e.Data))
	w.u8(e.Subchannel)
	if hasChannel(kind) {
		w.u16(e.ChannelID)
	}
	if hasPeer(kind) {
		w.u16(e.PeerID)
	}
	w.bytes(e.Data)
	return &Packet{Kind: kind, Variant: variant, Blasted: blasted, Body: w.buf}
}

// ParseEnvelope decodes the body of a data frame.
func ParseEnvelope(pkt *Packet) (*Envelope, error) {
	if !pkt.Kind.IsData() {
		return nil, fmt.Errorf("%w: %s frame carries no envelope", ErrMalformedBody, pkt.Kind)
	}
	r := bodyReader{b: pkt.Body}
	e := &Envelope{Subchannel: r.u8("subchannel")}
	if hasChannel(pkt.Kind) {
		e.ChannelID = r.u16("channel id")
	}
	if hasPeer(pkt.Kind) {
		e.PeerID = r.u16("peer id")
	}
	e.Data = r.rest()
	if err := r.done(); err != nil {
		return nil, err
	}
	return e, nil
}

// PeerUpdate announces a change to one peer of a channel. An empty Name
// means the peer left.
type PeerUpdate struct {
	ChannelID uint16
	Peer      PeerInfo
}

// Left reports whether the update announces a departure.
func (u *PeerUpdate) Left() bool { return u.Peer.Name == "" }

// Packet encodes the update as a KindPeerUpdate frame.
func (u *PeerUpdate) Packet() *Packet {
	var w bodyWriter
	w.u16(u.ChannelID)
	w.u16(u.Peer.ID)
	w.flag(u.Peer.Master)
	w.str(u.Peer.Name)
	return &Packet{Kind: KindPeerUpdate, Body: w.buf}
}

// ParsePeerUpdate decodes the body of a KindPeerUpdate frame.
func ParsePeerUpdate(body []byte) (*PeerUpdate, error) {
	r := bodyReader{b: body}
	u := &PeerUpdate{ChannelID: r.u16("channel id")}
	u.Peer.ID = r.u16("peer id")
	u.Peer.Master = r.flag("peer flags")
	u.Peer.Name = r.str("peer name")
	if err := r.done(); err != nil {
		return nil, err
	}
	return u, nil
}
