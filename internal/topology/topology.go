// Package topology models the channels and peers a relay client is joined to,
// along with its current channel and peer selection.
//
// A Topology is not safe for concurrent use; the owning session serializes
// access.
package topology

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBlankName         = errors.New("name is blank")
	ErrNegativeID        = errors.New("ID is below 0")
	ErrNoChannelSelected = errors.New("no channel selected")
	ErrChannelClosed     = errors.New("channel is closed")
	ErrNoPeerSelected    = errors.New("no peer selected")
	ErrPeerClosed        = errors.New("peer is closed")
	ErrChannelNotFound   = errors.New("channel not found")
	ErrPeerNotFound      = errors.New("peer not found")
)

// LocalData is a small per-entity key/value store owned by the application.
type LocalData map[string]string

// Channel is a channel this client joined. Once closed it stays addressable
// through existing handles but must be treated as inert.
type Channel struct {
	ID        uint16
	Name      string
	Hidden    bool
	AutoClose bool
	IsMaster  bool // this client is the channel master
	Local     LocalData

	closed bool
	gen    uint64
	peers  []*Peer
}

func (c *Channel) Closed() bool { return c.closed }

// Ref returns a handle to the channel.
func (c *Channel) Ref() ChannelRef { return ChannelRef{id: c.ID, gen: c.gen} }

// Peers returns every peer in join order, closed ones included.
func (c *Channel) Peers() []*Peer {
	out := make([]*Peer, len(c.peers))
	copy(out, c.peers)
	return out
}

// PeerCount counts the live peers on the channel.
func (c *Channel) PeerCount() int {
	n := 0
	for _, p := range c.peers {
		if !p.closed {
			n++
		}
	}
	return n
}

// Peer returns the live peer with the given ID, or nil.
func (c *Channel) Peer(id uint16) *Peer {
	for _, p := range c.peers {
		if p.ID == id && !p.closed {
			return p
		}
	}
	return nil
}

// PeerByName returns the live peer with the given name, or nil.
func (c *Channel) PeerByName(name string) *Peer {
	for _, p := range c.peers {
		if !p.closed && strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// Peer is another client on a joined channel.
type Peer struct {
	ID     uint16
	Name   string
	Master bool
	Local  LocalData

	closed  bool
	gen     uint64
	channel *Channel
}

func (p *Peer) Closed() bool { return p.closed }

// Channel returns the channel the peer belongs to.
func (p *Peer) Channel() *Channel { return p.channel }

// Ref returns a handle to the peer.
func (p *Peer) Ref() PeerRef {
	return PeerRef{channel: p.channel.Ref(), id: p.ID, gen: p.gen}
}

// ChannelRef is a stable handle to a Channel. The zero value refers to nothing.
type ChannelRef struct {
	id  uint16
	gen uint64
}

func (r ChannelRef) IsZero() bool { return r.gen == 0 }

// PeerRef is a stable handle to a Peer. The zero value refers to nothing.
type PeerRef struct {
	channel ChannelRef
	id      uint16
	gen     uint64
}

func (r PeerRef) IsZero() bool { return r.gen == 0 }

// Listing is one entry of the server's public channel list.
type Listing struct {
	Name      string
	PeerCount int
}

// Topology holds the joined channels, the last channel list and the selection.
type Topology struct {
	channels []*Channel
	listings []Listing
	gen      uint64

	selChannel ChannelRef
	selPeer    PeerRef
}

func New() *Topology {
	return &Topology{}
}

func (t *Topology) nextGen() uint64 {
	t.gen++
	return t.gen
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// AddChannel records a newly joined channel.
func (t *Topology) AddChannel(id uint16, name string, hidden, autoClose, isMaster bool) *Channel {
	c := &Channel{
		ID:        id,
		Name:      name,
		Hidden:    hidden,
		AutoClose: autoClose,
		IsMaster:  isMaster,
		Local:     LocalData{},
		gen:       t.nextGen(),
	}
	t.channels = append(t.channels, c)
	return c
}

// AddPeer records a peer on c.
func (t *Topology) AddPeer(c *Channel, id uint16, name string, master bool) *Peer {
	p := &Peer{
		ID:      id,
		Name:    name,
		Master:  master,
		Local:   LocalData{},
		gen:     t.nextGen(),
		channel: c,
	}
	if master {
		t.SetMaster(c, id)
	}
	c.peers = append(c.peers, p)
	return p
}

// SetMaster marks the peer with the given ID as the only master of c.
func (t *Topology) SetMaster(c *Channel, id uint16) {
	for _, p := range c.peers {
		p.Master = p.ID == id && !p.closed
	}
}

// RenamePeer changes a live peer's name and returns the previous one.
func (t *Topology) RenamePeer(c *Channel, id uint16, name string) (string, error) {
	p := c.Peer(id)
	if p == nil {
		return "", fmt.Errorf("%w: ID %d on channel %s", ErrPeerNotFound, id, c.Name)
	}
	old := p.Name
	p.Name = name
	return old, nil
}

// ClosePeer marks a live peer closed and returns it.
func (t *Topology) ClosePeer(c *Channel, id uint16) (*Peer, error) {
	p := c.Peer(id)
	if p == nil {
		return nil, fmt.Errorf("%w: ID %d on channel %s", ErrPeerNotFound, id, c.Name)
	}
	p.closed = true
	p.Master = false
	return p, nil
}

// CloseChannel marks a live channel and all its peers closed and returns it.
func (t *Topology) CloseChannel(id uint16) (*Channel, error) {
	c := t.Channel(id)
	if c == nil {
		return nil, fmt.Errorf("%w: ID %d", ErrChannelNotFound, id)
	}
	c.closed = true
	for _, p := range c.peers {
		p.closed = true
	}
	return c, nil
}

// Prune drops closed channels and peers. Handles to them stop resolving.
func (t *Topology) Prune() {
	live := t.channels[:0]
	for _, c := range t.channels {
		if c.closed {
			continue
		}
		peers := c.peers[:0]
		for _, p := range c.peers {
			if !p.closed {
				peers = append(peers, p)
			}
		}
		clear(c.peers[len(peers):])
		c.peers = peers
		live = append(live, c)
	}
	clear(t.channels[len(live):])
	t.channels = live
}

// Reset closes and forgets everything, as after a disconnect.
func (t *Topology) Reset() {
	for _, c := range t.channels {
		c.closed = true
		for _, p := range c.peers {
			p.closed = true
		}
	}
	t.channels = nil
	t.listings = nil
	t.selChannel = ChannelRef{}
	t.selPeer = PeerRef{}
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Channel returns the live channel with the given ID, or nil.
func (t *Topology) Channel(id uint16) *Channel {
	for _, c := range t.channels {
		if c.ID == id && !c.closed {
			return c
		}
	}
	return nil
}

// ChannelByName returns the live channel with the given name, or nil.
func (t *Topology) ChannelByName(name string) *Channel {
	for _, c := range t.channels {
		if !c.closed && strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Channels returns every channel in join order, closed ones included.
func (t *Topology) Channels() []*Channel {
	out := make([]*Channel, len(t.channels))
	copy(out, t.channels)
	return out
}

// ResolveChannel returns the channel behind r, closed or not. It returns nil
// once the channel has been pruned.
func (t *Topology) ResolveChannel(r ChannelRef) *Channel {
	if r.IsZero() {
		return nil
	}
	for _, c := range t.channels {
		if c.gen == r.gen {
			return c
		}
	}
	return nil
}

// ResolvePeer returns the peer behind r, closed or not. It returns nil once
// the peer has been pruned.
func (t *Topology) ResolvePeer(r PeerRef) *Peer {
	c := t.ResolveChannel(r.channel)
	if c == nil || r.IsZero() {
		return nil
	}
	for _, p := range c.peers {
		if p.gen == r.gen {
			return p
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// SetListings replaces the channel list with a fresh server snapshot.
func (t *Topology) SetListings(l []Listing) {
	t.listings = append(t.listings[:0:0], l...)
}

// Listings returns the last channel list received.
func (t *Topology) Listings() []Listing {
	out := make([]Listing, len(t.listings))
	copy(out, t.listings)
	return out
}
