package server

import (
	"fmt"
	"net"
	"slices"

	"golang.org/x/time/rate"

	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/topology"
	"github.com/1ureka/bluewing/internal/transport"
	"github.com/1ureka/bluewing/internal/util"
)

type client struct {
	id       uint16
	admitted bool
	name     string
	remote   string
	tr       *transport.Transport
	udpAddr  *net.UDPAddr
	channels []*channel
	limiter  *rate.Limiter
	pinged   bool // a ping is waiting for its pong
	log      util.Scope
}

func (c *client) channel(id uint16) *channel {
	for _, ch := range c.channels {
		if ch.id == id {
			return ch
		}
	}
	return nil
}

type channel struct {
	id        uint16
	name      string
	hidden    bool
	autoClose bool
	master    *client
	peers     []*client // join order
}

func (ch *channel) peer(id uint16) *client {
	for _, p := range ch.peers {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (ch *channel) peerByName(name string) *client {
	for _, p := range ch.peers {
		if topology.EqualName(p.name, name) {
			return p
		}
	}
	return nil
}

func (ch *channel) info(p *client) protocol.PeerInfo {
	return protocol.PeerInfo{ID: p.id, Name: p.name, Master: ch.master == p}
}

// delivery is a packet bound for one client, captured under the registry
// lock and sent after it is released.
type delivery struct {
	tr  *transport.Transport
	udp *net.UDPAddr
	pkt *protocol.Packet
}

func to(c *client, pkt *protocol.Packet) delivery {
	return delivery{tr: c.tr, udp: c.udpAddr, pkt: pkt}
}

// deliver sends each packet, blasts over UDP where the client bound it.
func (s *Server) deliver(out []delivery) {
	for _, d := range out {
		if d.pkt.Blasted && d.udp != nil {
			if err := s.udp.Write(d.pkt, 0, d.udp); err == nil {
				continue
			}
		}
		d.tr.Send(d.pkt)
	}
}

// broadcast queues pkt for every peer of ch except skip.
func broadcast(out []delivery, ch *channel, skip *client, pkt *protocol.Packet) []delivery {
	for _, p := range ch.peers {
		if p != skip {
			out = append(out, to(p, pkt))
		}
	}
	return out
}

func (s *Server) channelByName(name string) *channel {
	for _, ch := range s.channels {
		if topology.EqualName(ch.name, name) {
			return ch
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

func (s *Server) handleRequest(c *client, q *protocol.Request) error {
	s.mu.Lock()
	out, err := s.request(c, q)
	s.mu.Unlock()
	s.deliver(out)
	return err
}

func (s *Server) deny(c *client, res *protocol.Response, format string, args ...any) []delivery {
	res.OK = false
	res.DenyReason = fmt.Sprintf(format, args...)
	s.metrics.denied.WithLabelValues(res.Type.String()).Inc()
	c.log.Debug("%s denied: %s", res.Type, res.DenyReason)
	return []delivery{to(c, res.Packet())}
}

// request applies q and returns what to send. Callers hold s.mu.
func (s *Server) request(c *client, q *protocol.Request) ([]delivery, error) {
	if q.Type != protocol.RequestConnect && !c.admitted {
		return nil, fmt.Errorf("%s request before connecting", q.Type)
	}

	res := &protocol.Response{Type: q.Type, OK: true}
	switch q.Type {
	case protocol.RequestConnect:
		if c.admitted {
			return nil, fmt.Errorf("second connect request")
		}
		if q.Version != protocol.Version {
			return s.deny(c, res, "unsupported protocol version %d, server speaks %d", q.Version, protocol.Version), nil
		}
		if s.cfg.MaxClients > 0 && len(s.clients) >= s.cfg.MaxClients {
			return s.deny(c, res, "server is full"), nil
		}
		c.id = s.clientIDs.Borrow()
		c.admitted = true
		c.log = c.log.With("client", c.id)
		s.clients[c.id] = c
		s.metrics.clients.Set(float64(len(s.clients)))
		c.log.Info("client connected")
		res.ClientID = c.id
		res.Welcome = s.cfg.Welcome
		return []delivery{to(c, res.Packet())}, nil

	case protocol.RequestSetName:
		res.Name = q.Name
		if q.Name == "" {
			return s.deny(c, res, "name is blank"), nil
		}
		for _, ch := range c.channels {
			if p := ch.peerByName(q.Name); p != nil && p != c {
				return s.deny(c, res, "name %q is already taken on channel %q", q.Name, ch.name), nil
			}
		}
		c.log.Info("name set to %q (was %q)", q.Name, c.name)
		c.name = q.Name
		out := []delivery{to(c, res.Packet())}
		for _, ch := range c.channels {
			out = broadcast(out, ch, c, (&protocol.PeerUpdate{ChannelID: ch.id, Peer: ch.info(c)}).Packet())
		}
		return out, nil

	case protocol.RequestJoinChannel:
		return s.join(c, q, res), nil

	case protocol.RequestLeaveChannel:
		res.ChannelID = q.ChannelID
		ch := c.channel(q.ChannelID)
		if ch == nil {
			return s.deny(c, res, "not on channel %d", q.ChannelID), nil
		}
		out := []delivery{to(c, res.Packet())}
		return s.leave(out, c, ch), nil

	case protocol.RequestChannelList:
		for _, ch := range s.channels {
			if !ch.hidden {
				res.Channels = append(res.Channels, protocol.ChannelInfo{Name: ch.name, PeerCount: uint16(len(ch.peers))})
			}
		}
		return []delivery{to(c, res.Packet())}, nil
	}
	return nil, fmt.Errorf("unknown request type %d", q.Type)
}

func (s *Server) join(c *client, q *protocol.Request, res *protocol.Response) []delivery {
	res.Name = q.Name
	if c.name == "" {
		return s.deny(c, res, "set a name before joining a channel")
	}
	if q.Name == "" {
		return s.deny(c, res, "channel name is blank")
	}

	ch := s.channelByName(q.Name)
	if ch == nil {
		ch = &channel{
			id:        s.channelIDs.Borrow(),
			name:      q.Name,
			hidden:    q.Hidden,
			autoClose: q.AutoClose,
			master:    c,
		}
		s.channels = append(s.channels, ch)
		s.metrics.channels.Set(float64(len(s.channels)))
		c.log.Info("opened channel %q (%d)", ch.name, ch.id)
	} else {
		if slices.Contains(ch.peers, c) {
			return s.deny(c, res, "already on channel %q", ch.name)
		}
		if ch.peerByName(c.name) != nil {
			return s.deny(c, res, "name %q is already taken on channel %q", c.name, ch.name)
		}
	}

	res.ChannelID = ch.id
	res.Name = ch.name
	res.Master = ch.master == c
	for _, p := range ch.peers {
		res.Peers = append(res.Peers, ch.info(p))
	}
	ch.peers = append(ch.peers, c)
	c.channels = append(c.channels, ch)
	c.log.Debug("joined channel %q", ch.name)

	out := []delivery{to(c, res.Packet())}
	return broadcast(out, ch, c, (&protocol.PeerUpdate{ChannelID: ch.id, Peer: ch.info(c)}).Packet())
}

// leave takes c off ch. When the master of an auto-close channel leaves, the
// channel closes and everyone left is told they left it. An empty channel
// closes. Callers hold s.mu.
func (s *Server) leave(out []delivery, c *client, ch *channel) []delivery {
	ch.peers = slices.DeleteFunc(ch.peers, func(p *client) bool { return p == c })
	c.channels = slices.DeleteFunc(c.channels, func(x *channel) bool { return x == ch })
	c.log.Debug("left channel %q", ch.name)

	wasMaster := ch.master == c
	if wasMaster {
		ch.master = nil
	}

	if wasMaster && ch.autoClose {
		closed := &protocol.Response{Type: protocol.RequestLeaveChannel, OK: true, ChannelID: ch.id}
		for _, p := range ch.peers {
			p.channels = slices.DeleteFunc(p.channels, func(x *channel) bool { return x == ch })
			out = append(out, to(p, closed.Packet()))
		}
		ch.peers = nil
	} else {
		left := &protocol.PeerUpdate{ChannelID: ch.id, Peer: protocol.PeerInfo{ID: c.id}}
		out = broadcast(out, ch, nil, left.Packet())
	}

	if len(ch.peers) == 0 {
		s.channels = slices.DeleteFunc(s.channels, func(x *channel) bool { return x == ch })
		s.channelIDs.Release(ch.id)
		s.metrics.channels.Set(float64(len(s.channels)))
		s.log.Info("closed channel %q (%d)", ch.name, ch.id)
	}
	return out
}

// drop removes c from the registry after its link is gone.
func (s *Server) drop(c *client) {
	s.mu.Lock()
	if !c.admitted {
		s.mu.Unlock()
		return
	}
	var out []delivery
	for _, ch := range slices.Clone(c.channels) {
		out = s.leave(out, c, ch)
	}
	delete(s.clients, c.id)
	s.clientIDs.Release(c.id)
	c.admitted = false
	s.metrics.clients.Set(float64(len(s.clients)))
	s.mu.Unlock()

	c.log.Info("client disconnected")
	s.deliver(out)
}
