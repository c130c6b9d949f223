package client

import (
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/topology"
)

// ChannelEvent identifies the channel an event is about.
type ChannelEvent struct {
	ID   uint16
	Name string
}

// PeerEvent identifies the peer an event is about.
type PeerEvent struct {
	Channel ChannelEvent
	ID      uint16
	Name    string
	OldName string // set on rename only
	Master  bool
}

// LoopKind says what a loop iterates over.
type LoopKind uint8

const (
	LoopChannels LoopKind = iota
	LoopPeers
	LoopListedChannels
)

func (k LoopKind) String() string {
	switch k {
	case LoopChannels:
		return "channels"
	case LoopPeers:
		return "peers"
	case LoopListedChannels:
		return "listed channels"
	}
	return "unknown loop"
}

// LoopEvent is one step of a loop. Every loop ends with exactly one event
// whose Finished field is set.
type LoopEvent struct {
	Kind     LoopKind
	Name     string // empty for unnamed loops
	Finished bool

	Channel ChannelEvent     // LoopChannels, LoopPeers
	Peer    PeerEvent        // LoopPeers
	Listing topology.Listing // LoopListedChannels
}

// Handler receives session events. Events are delivered on the session's
// network goroutine with the session unlocked, so a handler may call back
// into the session. Loop events are delivered on the goroutine running the
// loop.
type Handler interface {
	OnConnect(welcome string)
	OnConnectDenied(reason string)
	OnDisconnect()
	OnError(err error)

	OnNameSet(name string)
	OnNameDenied(name, reason string)

	OnChannelJoin(c ChannelEvent)
	OnChannelJoinDenied(name, reason string)
	OnChannelLeave(c ChannelEvent)
	OnChannelLeaveDenied(c ChannelEvent, reason string)
	OnChannelListReceived(listings []topology.Listing)

	OnPeerConnect(p PeerEvent)
	OnPeerDisconnect(p PeerEvent)
	OnPeerChangeName(p PeerEvent)

	// OnMessage is called with the sending channel and peer selected.
	OnMessage(m *message.Message)

	OnLoop(e LoopEvent)
}

// NopHandler ignores every event. Embed it to implement only some of Handler.
type NopHandler struct{}

func (NopHandler) OnConnect(string)                          {}
func (NopHandler) OnConnectDenied(string)                    {}
func (NopHandler) OnDisconnect()                             {}
func (NopHandler) OnError(error)                             {}
func (NopHandler) OnNameSet(string)                          {}
func (NopHandler) OnNameDenied(string, string)               {}
func (NopHandler) OnChannelJoin(ChannelEvent)                {}
func (NopHandler) OnChannelJoinDenied(string, string)        {}
func (NopHandler) OnChannelLeave(ChannelEvent)               {}
func (NopHandler) OnChannelLeaveDenied(ChannelEvent, string) {}
func (NopHandler) OnChannelListReceived([]topology.Listing)  {}
func (NopHandler) OnPeerConnect(PeerEvent)                   {}
func (NopHandler) OnPeerDisconnect(PeerEvent)                {}
func (NopHandler) OnPeerChangeName(PeerEvent)                {}
func (NopHandler) OnMessage(*message.Message)                {}
func (NopHandler) OnLoop(LoopEvent)                          {}

func channelEvent(c *topology.Channel) ChannelEvent {
	return ChannelEvent{ID: c.ID, Name: c.Name}
}

func peerEvent(p *topology.Peer) PeerEvent {
	return PeerEvent{Channel: channelEvent(p.Channel()), ID: p.ID, Name: p.Name, Master: p.Master}
}
