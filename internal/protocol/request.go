package protocol

import "fmt"

// Version is the protocol revision a client announces in its connect request.
const Version uint8 = 1

// RequestType identifies a client request and the response that answers it.
type RequestType uint8

const (
	RequestConnect RequestType = iota
	RequestSetName
	RequestJoinChannel
	RequestLeaveChannel
	RequestChannelList
)

func (t RequestType) String() string {
	switch t {
	case RequestConnect:
		return "connect"
	case RequestSetName:
		return "set-name"
	case RequestJoinChannel:
		return "join-channel"
	case RequestLeaveChannel:
		return "leave-channel"
	case RequestChannelList:
		return "channel-list"
	}
	return fmt.Sprintf("request(%d)", uint8(t))
}

// Join flags.
const (
	joinHidden    = 1 << 0
	joinAutoClose = 1 << 1
)

// Request is a decoded client request. Only the fields of its Type are set.
type Request struct {
	Type      RequestType
	Version   uint8  // connect
	Name      string // set-name, join-channel
	Hidden    bool   // join-channel
	AutoClose bool   // join-channel
	ChannelID uint16 // leave-channel
}

// Packet encodes the request as a KindRequest frame.
func (q *Request) Packet() *Packet {
	var w bodyWriter
	w.u8(uint8(q.Type))
	switch q.Type {
	case RequestConnect:
		w.u8(q.Version)
	case RequestSetName:
		w.str(q.Name)
	case RequestJoinChannel:
		var flags uint8
		if q.Hidden {
			flags |= joinHidden
		}
		if q.AutoClose {
			flags |= joinAutoClose
		}
		w.u8(flags)
		w.str(q.Name)
	case RequestLeaveChannel:
		w.u16(q.ChannelID)
	}
	return &Packet{Kind: KindRequest, Body: w.buf}
}

// ParseRequest decodes the body of a KindRequest frame.
func ParseRequest(body []byte) (*Request, error) {
	r := bodyReader{b: body}
	q := &Request{Type: RequestType(r.u8("request type"))}
	switch q.Type {
	case RequestConnect:
		q.Version = r.u8("version")
	case RequestSetName:
		q.Name = r.str("name")
	case RequestJoinChannel:
		flags := r.u8("join flags")
		q.Hidden = flags&joinHidden != 0
		q.AutoClose = flags&joinAutoClose != 0
		q.Name = r.str("channel name")
	case RequestLeaveChannel:
		q.ChannelID = r.u16("channel id")
	case RequestChannelList:
	default:
		if r.err == nil {
			return nil, fmt.Errorf("%w: unknown request type %d", ErrMalformedBody, uint8(q.Type))
		}
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return q, nil
}

// PeerInfo describes a peer in a join response or a peer update.
type PeerInfo struct {
	ID     uint16
	Name   string
	Master bool
}

// ChannelInfo describes one public channel in a channel-list response.
type ChannelInfo struct {
	Name      string
	PeerCount uint16
}

// Response is a decoded server reply. Only the fields of its Type and outcome are set.
type Response struct {
	Type       RequestType
	OK         bool
	DenyReason string // !OK

	ClientID uint16 // connect
	Welcome  string // connect

	Name      string        // set-name, join-channel (also echoed on denial)
	ChannelID uint16        // join-channel, leave-channel (also echoed on denial)
	Master    bool          // join-channel: the joiner is the channel master
	Peers     []PeerInfo    // join-channel: peers already present
	Channels  []ChannelInfo // channel-list
}

// Packet encodes the response as a KindResponse frame.
func (s *Response) Packet() *Packet {
	var w bodyWriter
	w.u8(uint8(s.Type))
	w.flag(s.OK)

	if !s.OK {
		w.str(s.DenyReason)
		switch s.Type {
		case RequestSetName, RequestJoinChannel:
			w.str(s.Name)
		case RequestLeaveChannel:
			w.u16(s.ChannelID)
		}
		return &Packet{Kind: KindResponse, Body: w.buf}
	}

	switch s.Type {
	case RequestConnect:
		w.u16(s.ClientID)
		w.str(s.Welcome)
	case RequestSetName:
		w.str(s.Name)
	case RequestJoinChannel:
		w.u16(s.ChannelID)
		w.flag(s.Master)
		w.str(s.Name)
		w.u16(uint16(len(s.Peers)))
		for _, p := range s.Peers {
			w.u16(p.ID)
			w.flag(p.Master)
			w.str(p.Name)
		}
	case RequestLeaveChannel:
		w.u16(s.ChannelID)
	case RequestChannelList:
		w.u16(uint16(len(s.Channels)))
		for _, c := range s.Channels {
			w.u16(c.PeerCount)
			w.str(c.Name)
		}
	}
	return &Packet{Kind: KindResponse, Body: w.buf}
}

// ParseResponse decodes the body of a KindResponse frame.
func ParseResponse(body []byte) (*Response, error) {
	r := bodyReader{b: body}
	s := &Response{
		Type: RequestType(r.u8("request type")),
		OK:   r.flag("success"),
	}
	if s.Type > RequestChannelList && r.err == nil {
		return nil, fmt.Errorf("%w: unknown response type %d", ErrMalformedBody, uint8(s.Type))
	}

	if !s.OK {
		s.DenyReason = r.str("deny reason")
		switch s.Type {
		case RequestSetName, RequestJoinChannel:
			s.Name = r.str("name")
		case RequestLeaveChannel:
			s.ChannelID = r.u16("channel id")
		}
		if err := r.done(); err != nil {
			return nil, err
		}
		return s, nil
	}

	switch s.Type {
	case RequestConnect:
		s.ClientID = r.u16("client id")
		s.Welcome = r.str("welcome")
	case RequestSetName:
		s.Name = r.str("name")
	case RequestJoinChannel:
		s.ChannelID = r.u16("channel id")
		s.Master = r.flag("master")
		s.Name = r.str("channel name")
		n := int(r.u16("peer count"))
		for i := 0; i < n && r.err == nil; i++ {
			s.Peers = append(s.Peers, PeerInfo{
				ID:     r.u16("peer id"),
				Master: r.flag("peer flags"),
				Name:   r.str("peer name"),
			})
		}
	case RequestLeaveChannel:
		s.ChannelID = r.u16("channel id")
	case RequestChannelList:
		n := int(r.u16("channel count"))
		for i := 0; i < n && r.err == nil; i++ {
			s.Channels = append(s.Channels, ChannelInfo{
				PeerCount: r.u16("peer count"),
				Name:      r.str("channel name"),
			})
		}
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return s, nil
}
