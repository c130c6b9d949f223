package topology

import (
	"fmt"
	"strings"
)

// SelectedChannel returns the selected channel if it is still live.
func (t *Topology) SelectedChannel() (*Channel, error) {
	if t.selChannel.IsZero() {
		return nil, ErrNoChannelSelected
	}
	c := t.ResolveChannel(t.selChannel)
	if c == nil || c.closed {
		return nil, ErrChannelClosed
	}
	return c, nil
}

// SelectedPeer returns the selected peer if it is still live.
func (t *Topology) SelectedPeer() (*Peer, error) {
	if t.selPeer.IsZero() {
		return nil, ErrNoPeerSelected
	}
	p := t.ResolvePeer(t.selPeer)
	if p == nil || p.closed {
		return nil, ErrPeerClosed
	}
	return p, nil
}

// Selection returns the raw selection handles, live or not.
func (t *Topology) Selection() (ChannelRef, PeerRef) {
	return t.selChannel, t.selPeer
}

// Restore puts back a selection previously returned by Selection.
func (t *Topology) Restore(c ChannelRef, p PeerRef) {
	t.selChannel = c
	t.selPeer = p
}

// SelectChannel selects c. A selected peer from another channel is dropped.
func (t *Topology) SelectChannel(c *Channel) {
	t.selChannel = c.Ref()
	if !t.selPeer.IsZero() && t.selPeer.channel != t.selChannel {
		t.selPeer = PeerRef{}
	}
}

// SelectPeer selects p and its channel.
func (t *Topology) SelectPeer(p *Peer) {
	t.selChannel = p.channel.Ref()
	t.selPeer = p.Ref()
}

// SelectChannelByName selects the live channel called name. On failure the
// selection is left unchanged.
func (t *Topology) SelectChannelByName(name string) error {
	if name == "" {
		return fmt.Errorf("could not select channel: %w", ErrBlankName)
	}
	c := t.ChannelByName(name)
	if c == nil {
		return fmt.Errorf("could not select channel, %w: %q", ErrChannelNotFound, name)
	}
	t.SelectChannel(c)
	return nil
}

// SelectPeerByName selects the live peer called name on the selected channel.
func (t *Topology) SelectPeerByName(name string) error {
	if name == "" {
		return fmt.Errorf("could not select peer: %w", ErrBlankName)
	}
	c, err := t.SelectedChannel()
	if err != nil {
		return fmt.Errorf("could not select peer %q: %w", name, err)
	}
	p := c.PeerByName(name)
	if p == nil {
		return fmt.Errorf("could not select peer, %w: %q on channel %q", ErrPeerNotFound, name, c.Name)
	}
	t.SelectPeer(p)
	return nil
}

// SelectPeerByID selects the live peer with the given ID on the selected channel.
func (t *Topology) SelectPeerByID(id int) error {
	if id < 0 {
		return fmt.Errorf("could not select peer: %w", ErrNegativeID)
	}
	c, err := t.SelectedChannel()
	if err != nil {
		return fmt.Errorf("could not select peer %d: %w", id, err)
	}
	var p *Peer
	if id <= 0xFFFF {
		p = c.Peer(uint16(id))
	}
	if p == nil {
		return fmt.Errorf("could not select peer, %w: ID %d on channel %q", ErrPeerNotFound, id, c.Name)
	}
	t.SelectPeer(p)
	return nil
}

// SelectChannelMaster selects the master of the selected channel. When the
// channel has no master, or its master is closed, the previous peer selection
// is kept and no error is reported.
func (t *Topology) SelectChannelMaster() error {
	c, err := t.SelectedChannel()
	if err != nil {
		return fmt.Errorf("could not select channel master: %w", err)
	}
	stored := t.selPeer
	for _, p := range c.peers {
		if !p.Master {
			continue
		}
		if p.closed {
			t.selPeer = stored
			return nil
		}
		t.SelectPeer(p)
		return nil
	}
	t.selPeer = stored
	return nil
}

// ---------------------------------------------------------------------------
// Membership
// ---------------------------------------------------------------------------

// IsChannelJoined reports whether a live channel called name exists.
func (t *Topology) IsChannelJoined(name string) (bool, error) {
	if name == "" {
		return false, fmt.Errorf("could not check channel membership: %w", ErrBlankName)
	}
	return t.ChannelByName(name) != nil, nil
}

// scope resolves the channel a membership query runs against: the named
// channel when channelName is set, else the selected one.
func (t *Topology) scope(channelName string) (*Channel, error) {
	if channelName != "" {
		c := t.ChannelByName(channelName)
		if c == nil {
			return nil, fmt.Errorf("%w: not connected to channel %q", ErrChannelNotFound, channelName)
		}
		return c, nil
	}
	c, err := t.SelectedChannel()
	if err != nil {
		return nil, fmt.Errorf("no channel name supplied and %w", err)
	}
	return c, nil
}

// IsPeerOnChannelByName reports whether a live peer called peerName is on
// the channel called channelName, or on the selected channel when
// channelName is empty.
func (t *Topology) IsPeerOnChannelByName(peerName, channelName string) (bool, error) {
	if peerName == "" {
		return false, fmt.Errorf("could not check peer membership: %w", ErrBlankName)
	}
	c, err := t.scope(channelName)
	if err != nil {
		return false, fmt.Errorf("could not check peer membership: %w", err)
	}
	return c.PeerByName(peerName) != nil, nil
}

// IsPeerOnChannelByID is IsPeerOnChannelByName keyed on the peer ID.
func (t *Topology) IsPeerOnChannelByID(id int, channelName string) (bool, error) {
	c, err := t.scope(channelName)
	if err != nil {
		return false, fmt.Errorf("could not check peer membership: %w", err)
	}
	if id < 0 || id > 0xFFFF {
		return false, nil
	}
	return c.Peer(uint16(id)) != nil, nil
}

// ---------------------------------------------------------------------------
// Loop sequences
// ---------------------------------------------------------------------------

// LiveChannels returns handles to every live channel in join order.
func (t *Topology) LiveChannels() []ChannelRef {
	var out []ChannelRef
	for _, c := range t.channels {
		if !c.closed {
			out = append(out, c.Ref())
		}
	}
	return out
}

// LivePeers returns handles to every live peer on c in join order.
func (t *Topology) LivePeers(c *Channel) []PeerRef {
	var out []PeerRef
	for _, p := range c.peers {
		if !p.closed {
			out = append(out, p.Ref())
		}
	}
	return out
}

// EqualName compares two relay names the way every lookup does.
func EqualName(a, b string) bool { return strings.EqualFold(a, b) }
