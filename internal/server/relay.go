package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/protocol"
)

// handlePacket processes one stream frame. A non-nil error drops the client.
func (s *Server) handlePacket(c *client, pkt *protocol.Packet) error {
	switch {
	case pkt.Kind == protocol.KindRequest:
		q, err := protocol.ParseRequest(pkt.Body)
		if err != nil {
			return err
		}
		return s.handleRequest(c, q)

	case pkt.Kind.IsData():
		return s.handleData(c, pkt)

	case pkt.Kind == protocol.KindPong:
		s.mu.Lock()
		c.pinged = false
		s.mu.Unlock()
		return nil
	}
	return fmt.Errorf("unexpected %s frame", pkt.Kind)
}

// handleData relays a data frame from c. Frames that cannot be relayed are
// counted and discarded; only a malformed stream frame is an error.
func (s *Server) handleData(c *client, pkt *protocol.Packet) error {
	s.mu.Lock()
	admitted := c.admitted
	s.mu.Unlock()
	if !admitted {
		return fmt.Errorf("%s before connecting", pkt.Kind)
	}

	if c.limiter != nil && !c.limiter.Allow() {
		s.metrics.dropped.WithLabelValues(dropFlood).Inc()
		return nil
	}
	env, err := protocol.ParseEnvelope(pkt)
	if err != nil {
		s.metrics.dropped.WithLabelValues(dropMalformed).Inc()
		return err
	}
	if len(env.Data) > s.cfg.MaxMessageSize {
		s.metrics.dropped.WithLabelValues(dropTooLarge).Inc()
		c.log.Debug("dropping %s of %d bytes", pkt.Kind, len(env.Data))
		return nil
	}

	class := message.Sent
	if pkt.Blasted {
		class = message.Blasted
	}
	s.metrics.relayed.WithLabelValues(pkt.Kind.String(), class.String()).Inc()
	s.metrics.bytes.Add(float64(len(env.Data)))

	switch pkt.Kind {
	case protocol.KindServerMessage:
		if s.onMessage != nil {
			s.mu.Lock()
			from := Peer{ID: c.id, Name: c.name, Addr: c.remote}
			s.mu.Unlock()
			s.onMessage(from, message.New(env, pkt.Variant, class, message.FromServer))
		}
		return nil

	case protocol.KindChannelMessage, protocol.KindPeerMessage:
		s.mu.Lock()
		out, reason := s.route(c, pkt, env)
		s.mu.Unlock()
		if reason != "" {
			s.metrics.dropped.WithLabelValues(reason).Inc()
			c.log.Debug("dropping %s: %s", pkt.Kind, reason)
			return nil
		}
		s.deliver(out)
		return nil
	}

	s.metrics.dropped.WithLabelValues(dropUnexpected).Inc()
	return nil
}

// route addresses a channel or peer message. The relayed copy names c as the
// sender. Callers hold s.mu.
func (s *Server) route(c *client, pkt *protocol.Packet, env *protocol.Envelope) ([]delivery, string) {
	ch := c.channel(env.ChannelID)
	if ch == nil {
		return nil, dropNoChannel
	}
	target := env.PeerID
	relayed := protocol.NewDataPacket(pkt.Kind, pkt.Variant, pkt.Blasted, &protocol.Envelope{
		Subchannel: env.Subchannel,
		ChannelID:  ch.id,
		PeerID:     c.id,
		Data:       env.Data,
	})

	if pkt.Kind == protocol.KindChannelMessage {
		return broadcast(nil, ch, c, relayed), ""
	}
	p := ch.peer(target)
	if p == nil || p == c {
		return nil, dropNoPeer
	}
	return []delivery{to(p, relayed)}, ""
}

// ---------------------------------------------------------------------------
// UDP
// ---------------------------------------------------------------------------

func sameAddr(a, b *net.UDPAddr) bool {
	return a != nil && b != nil && a.Port == b.Port && a.IP.Equal(b.IP)
}

// udpLoop binds clients' datagram addresses on hello and relays blasts
// arriving from bound addresses.
func (s *Server) udpLoop(ctx context.Context) error {
	for {
		pkt, sender, from, err := s.udp.Read()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			if from != nil {
				s.metrics.dropped.WithLabelValues(dropMalformed).Inc()
			}
			s.log.Debug("UDP read: %v", err)
			continue
		}

		s.mu.Lock()
		c := s.clients[sender]
		if c == nil {
			s.mu.Unlock()
			continue
		}
		if pkt.Kind == protocol.KindUDPHello {
			c.udpAddr = from
			tr := c.tr
			s.mu.Unlock()
			c.log.Debug("UDP bound to %s", from)
			tr.Send(&protocol.Packet{Kind: protocol.KindUDPWelcome})
			continue
		}
		bound := sameAddr(c.udpAddr, from)
		s.mu.Unlock()

		if !bound || !pkt.Kind.IsData() {
			s.metrics.dropped.WithLabelValues(dropUnexpected).Inc()
			continue
		}
		if err := s.handleData(c, pkt); err != nil {
			c.log.Debug("bad datagram: %v", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Liveness
// ---------------------------------------------------------------------------

// pingLoop pings every client each interval and drops those that did not
// answer the previous ping.
func (s *Server) pingLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	ping := &protocol.Packet{Kind: protocol.KindPing}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		var out []delivery
		var dead []*client
		s.mu.Lock()
		for _, c := range s.clients {
			if c.pinged {
				dead = append(dead, c)
				continue
			}
			c.pinged = true
			out = append(out, delivery{tr: c.tr, pkt: ping})
		}
		s.mu.Unlock()

		for _, c := range dead {
			c.log.Warning("no reply to ping, dropping client")
			c.tr.Close()
		}
		s.deliver(out)
	}
}

// ---------------------------------------------------------------------------
// Server-originated messages
// ---------------------------------------------------------------------------

// SendToClient sends a server message to one client.
func (s *Server) SendToClient(id uint16, subchannel uint8, variant protocol.Variant, data []byte, blast bool) error {
	s.mu.Lock()
	c := s.clients[id]
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownClient, id)
	}
	d := to(c, protocol.NewDataPacket(protocol.KindServerMessage, variant, blast, &protocol.Envelope{
		Subchannel: subchannel,
		Data:       data,
	}))
	s.mu.Unlock()

	s.deliver([]delivery{d})
	return nil
}

// SendToChannel sends a server message to every peer of the named channel.
func (s *Server) SendToChannel(name string, subchannel uint8, variant protocol.Variant, data []byte, blast bool) error {
	s.mu.Lock()
	ch := s.channelByName(name)
	if ch == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	pkt := protocol.NewDataPacket(protocol.KindServerChannelMessage, variant, blast, &protocol.Envelope{
		Subchannel: subchannel,
		ChannelID:  ch.id,
		Data:       data,
	})
	out := broadcast(nil, ch, nil, pkt)
	s.mu.Unlock()

	s.deliver(out)
	return nil
}
