package client

import (
	"fmt"
	"time"

	"github.com/1ureka/bluewing/internal/topology"
)

// locked runs fn under the session lock and reports its error.
func (s *Session) locked(fn func() error) error {
	s.lock.lockFrom(2)
	err := fn()
	s.lock.unlockFrom(2)
	if err != nil {
		return s.fail(err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

func (s *Session) SelectChannelByName(name string) error {
	return s.locked(func() error { return s.topo.SelectChannelByName(name) })
}

func (s *Session) SelectPeerByName(name string) error {
	return s.locked(func() error { return s.topo.SelectPeerByName(name) })
}

func (s *Session) SelectPeerByID(id int) error {
	return s.locked(func() error { return s.topo.SelectPeerByID(id) })
}

// SelectChannelMaster selects the master of the selected channel, keeping
// the current peer when there is no live master.
func (s *Session) SelectChannelMaster() error {
	return s.locked(s.topo.SelectChannelMaster)
}

func (s *Session) IsChannelJoined(name string) (bool, error) {
	var ok bool
	err := s.locked(func() (err error) {
		ok, err = s.topo.IsChannelJoined(name)
		return err
	})
	return ok, err
}

// IsPeerOnChannelByName checks the channel called channelName, or the
// selected channel when channelName is empty.
func (s *Session) IsPeerOnChannelByName(peerName, channelName string) (bool, error) {
	var ok bool
	err := s.locked(func() (err error) {
		ok, err = s.topo.IsPeerOnChannelByName(peerName, channelName)
		return err
	})
	return ok, err
}

func (s *Session) IsPeerOnChannelByID(id int, channelName string) (bool, error) {
	var ok bool
	err := s.locked(func() (err error) {
		ok, err = s.topo.IsPeerOnChannelByID(id, channelName)
		return err
	})
	return ok, err
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Name returns the client name, or "" before one is accepted.
func (s *Session) Name() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.name
}

// ClientHasAName reports whether the server accepted a client name.
func (s *Session) ClientHasAName() bool {
	return s.Name() != ""
}

func (s *Session) ID() (uint16, error) {
	var id uint16
	err := s.locked(func() error {
		if _, err := s.connected(); err != nil {
			return fmt.Errorf("no client ID: %w", err)
		}
		id = s.id
		return nil
	})
	return id, err
}

func (s *Session) ConnectTime() (time.Time, error) {
	var t time.Time
	err := s.locked(func() error {
		if _, err := s.connected(); err != nil {
			return fmt.Errorf("no connect time: %w", err)
		}
		t = s.since
		return nil
	})
	return t, err
}

// Address returns the server address as it was given to Connect.
func (s *Session) Address() (string, error) {
	var addr string
	err := s.locked(func() error {
		if s.conn == nil {
			return fmt.Errorf("no server address: %w", ErrNotConnected)
		}
		addr = s.conn.addr.String()
		return nil
	})
	return addr, err
}

func (s *Session) Welcome() (string, error) {
	var w string
	err := s.locked(func() error {
		if _, err := s.connected(); err != nil {
			return fmt.Errorf("no welcome message: %w", err)
		}
		w = s.welcome
		return nil
	})
	return w, err
}

// withChannel runs fn on the selected live channel.
func (s *Session) withChannel(what string, fn func(*topology.Channel)) error {
	return s.locked(func() error {
		ch, err := s.topo.SelectedChannel()
		if err != nil {
			return fmt.Errorf("could not read %s: %w", what, err)
		}
		fn(ch)
		return nil
	})
}

// withPeer runs fn on the selected live peer.
func (s *Session) withPeer(what string, fn func(*topology.Peer)) error {
	return s.locked(func() error {
		p, err := s.topo.SelectedPeer()
		if err != nil {
			return fmt.Errorf("could not read %s: %w", what, err)
		}
		fn(p)
		return nil
	})
}

func (s *Session) SelectedChannelName() (name string, err error) {
	err = s.withChannel("channel name", func(c *topology.Channel) { name = c.Name })
	return name, err
}

func (s *Session) SelectedChannelID() (id uint16, err error) {
	err = s.withChannel("channel ID", func(c *topology.Channel) { id = c.ID })
	return id, err
}

// SelectedChannelPeerCount counts the live peers on the selected channel.
func (s *Session) SelectedChannelPeerCount() (n int, err error) {
	err = s.withChannel("channel peer count", func(c *topology.Channel) { n = c.PeerCount() })
	return n, err
}

// YouAreChannelMaster reports whether this client is master of the
// selected channel.
func (s *Session) YouAreChannelMaster() (ok bool, err error) {
	err = s.withChannel("channel master flag", func(c *topology.Channel) { ok = c.IsMaster })
	return ok, err
}

func (s *Session) SelectedPeerName() (name string, err error) {
	err = s.withPeer("peer name", func(p *topology.Peer) { name = p.Name })
	return name, err
}

func (s *Session) SelectedPeerID() (id uint16, err error) {
	err = s.withPeer("peer ID", func(p *topology.Peer) { id = p.ID })
	return id, err
}

func (s *Session) SelectedPeerIsChannelMaster() (ok bool, err error) {
	err = s.withPeer("peer master flag", func(p *topology.Peer) { ok = p.Master })
	return ok, err
}

// ChannelCount counts the live channels joined.
func (s *Session) ChannelCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.topo.LiveChannels())
}

// Listings returns the last channel list received.
func (s *Session) Listings() []topology.Listing {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.topo.Listings()
}

// ---------------------------------------------------------------------------
// Local data
// ---------------------------------------------------------------------------

func (s *Session) SetLocalData(key, value string) {
	s.lock.Lock()
	s.local[key] = value
	s.lock.Unlock()
}

func (s *Session) LocalData(key string) string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.local[key]
}

func (s *Session) SetChannelLocalData(key, value string) error {
	return s.withChannel("channel local data", func(c *topology.Channel) { c.Local[key] = value })
}

func (s *Session) ChannelLocalData(key string) (v string, err error) {
	err = s.withChannel("channel local data", func(c *topology.Channel) { v = c.Local[key] })
	return v, err
}

func (s *Session) SetPeerLocalData(key, value string) error {
	return s.withPeer("peer local data", func(p *topology.Peer) { p.Local[key] = value })
}

func (s *Session) PeerLocalData(key string) (v string, err error) {
	err = s.withPeer("peer local data", func(p *topology.Peer) { v = p.Local[key] })
	return v, err
}
