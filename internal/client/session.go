// Package client implements a relay client session: the connection to a
// relay server, the channels and peers it has joined, its selection, and the
// send and receive payloads.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/payload"
	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/topology"
	"github.com/1ureka/bluewing/internal/transport"
	"github.com/1ureka/bluewing/internal/util"
)

var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected or connecting")
	ErrNoClientName     = errors.New("client name is not set")
	ErrBadSubchannel    = errors.New("subchannel is not between 0 and 255")
	ErrInvalidText      = errors.New("text is not valid UTF-8")
	ErrNoMessage        = errors.New("no message has been received")
	ErrUnknownTarget    = errors.New("unknown send target")
)

type connState uint8

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
)

// datagramBacklog is how many datagrams may wait for the inbound loop.
const datagramBacklog = 64

// conn is one connection attempt. A Disconnect or a dropped link retires it;
// late events from a retired conn are ignored.
type conn struct {
	ctx    context.Context
	cancel context.CancelFunc
	addr   config.Address

	tr        *transport.Transport
	udp       *transport.Datagrams
	udpReady  bool
	datagrams chan *protocol.Packet // drained by readLoop only
}

func newConn(addr config.Address) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		ctx:       ctx,
		cancel:    cancel,
		addr:      addr,
		datagrams: make(chan *protocol.Packet, datagramBacklog),
	}
}

type joinFlags struct {
	hidden    bool
	autoClose bool
}

// Session is one relay client. All methods are safe for concurrent use.
type Session struct {
	cfg     config.Client
	handler Handler
	log     util.Scope

	lock sessionLock

	state   connState
	conn    *conn
	id      uint16
	name    string
	welcome string
	since   time.Time
	local   topology.LocalData

	topo     *topology.Topology
	pending  map[string]joinFlags // join flags by lowercased channel name
	send     *payload.Builder
	received *message.Message
}

// New creates a disconnected session. A nil handler discards events.
func New(cfg config.Client, h Handler) *Session {
	if h == nil {
		h = NopHandler{}
	}
	log := util.Scope{"component", "client"}
	return &Session{
		cfg:     cfg,
		handler: h,
		log:     log,
		lock:    sessionLock{trace: cfg.DebugLocks, log: log.With("lock", "session")},
		local:   topology.LocalData{},
		topo:    topology.New(),
		pending: map[string]joinFlags{},
		send:    payload.NewBuilder(cfg.MaxMessageSize),
	}
}

// fail reports err to the handler and returns it.
func (s *Session) fail(err error) error {
	s.log.Debug("%v", err)
	s.handler.OnError(err)
	return err
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Connect starts connecting to host, which is "name", "name:port" or a
// ws:// or wss:// URL. It returns once the attempt is under way; the outcome
// arrives as OnConnect, OnConnectDenied or OnError.
func (s *Session) Connect(host string) error {
	addr, err := config.ParseAddress(host)
	if err != nil {
		return s.fail(fmt.Errorf("could not connect: %w", err))
	}

	s.lock.Lock()
	if s.state != stateIdle {
		s.lock.Unlock()
		return s.fail(fmt.Errorf("could not connect to %s: %w", addr, ErrAlreadyConnected))
	}
	c := newConn(addr)
	s.conn = c
	s.state = stateConnecting
	s.lock.Unlock()

	go s.dial(c)
	return nil
}

func (s *Session) dial(c *conn) {
	var (
		link transport.Link
		err  error
	)
	if c.addr.WebSocket() {
		link, err = transport.DialWS(c.ctx, c.addr.URL)
	} else {
		link, err = transport.DialTCP(c.ctx, c.addr.HostPort())
	}
	if err != nil {
		s.lock.Lock()
		current := s.retire(c)
		s.lock.Unlock()
		if current {
			s.handler.OnError(fmt.Errorf("could not connect to %s: %w", c.addr, err))
		}
		return
	}
	s.attach(c, link)
}

// attach runs the connection over an established link until it drops.
func (s *Session) attach(c *conn, link transport.Link) {
	tr := transport.New(c.ctx, link)

	s.lock.Lock()
	if s.conn != c {
		s.lock.Unlock()
		tr.Close()
		return
	}
	c.tr = tr
	s.lock.Unlock()

	s.log.Info("connected to %s, handshaking", c.addr)
	tr.Send((&protocol.Request{Type: protocol.RequestConnect, Version: protocol.Version}).Packet())
	s.readLoop(c)
}

// readLoop is the only goroutine that handles inbound packets. Stream frames
// and datagrams are both funnelled into it, so handlers never overlap.
func (s *Session) readLoop(c *conn) {
	stream := make(chan *protocol.Packet)
	lost := make(chan error, 1)
	go func() {
		for {
			pkt, err := c.tr.Receive()
			if err != nil {
				lost <- err
				return
			}
			select {
			case stream <- pkt:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case pkt := <-stream:
			s.dispatch(s.handle(c, pkt))
		case pkt := <-c.datagrams:
			s.dispatch(s.handle(c, pkt))
		case err := <-lost:
			s.lock.Lock()
			current := s.retire(c)
			s.lock.Unlock()
			if current {
				s.log.Warning("connection to %s lost: %v", c.addr, err)
				s.handler.OnDisconnect()
			}
			return
		case <-c.ctx.Done():
			return
		}
	}
}

// retire tears down c if it is still the active connection. Callers hold
// the lock.
func (s *Session) retire(c *conn) bool {
	if s.conn != c {
		return false
	}
	c.cancel()
	if c.tr != nil {
		c.tr.Close()
	}
	if c.udp != nil {
		c.udp.Close()
	}
	s.conn = nil
	s.state = stateIdle
	s.id = 0
	s.name = ""
	s.welcome = ""
	s.since = time.Time{}
	s.topo.Reset()
	clear(s.pending)
	return true
}

// Disconnect closes the connection. OnDisconnect fires before it returns.
func (s *Session) Disconnect() error {
	s.lock.Lock()
	c := s.conn
	if c == nil {
		s.lock.Unlock()
		return s.fail(fmt.Errorf("could not disconnect: %w", ErrNotConnected))
	}
	s.retire(c)
	s.lock.Unlock()

	s.log.Info("disconnected from %s", c.addr)
	s.handler.OnDisconnect()
	return nil
}

// Connected reports whether the server accepted the connection.
func (s *Session) Connected() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state == stateConnected
}

// connected returns the active connection once the handshake completed.
// Callers hold the lock.
func (s *Session) connected() (*conn, error) {
	if s.state != stateConnected {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// emit sends pkt on c. Blasted packets use UDP once the server confirmed
// the datagram binding.
func (s *Session) emit(c *conn, id uint16, udpReady bool, pkt *protocol.Packet) {
	if pkt.Blasted && udpReady {
		err := c.udp.Write(pkt, id, nil)
		if err == nil {
			return
		}
		s.log.Debug("datagram send failed, using the stream: %v", err)
	}
	c.tr.Send(pkt)
}

// ---------------------------------------------------------------------------
// UDP
// ---------------------------------------------------------------------------

// startUDP binds a datagram socket to the server and says hello until the
// server welcomes it or the attempts run out. Blasts travel over the stream
// until then.
func (s *Session) startUDP(c *conn, id uint16) {
	if c.addr.WebSocket() || s.cfg.UDPAttempts == 0 {
		return
	}
	udp, err := transport.DialUDP(c.addr.HostPort())
	if err != nil {
		s.log.Warning("UDP unavailable, blasts will use the stream: %v", err)
		return
	}

	s.lock.Lock()
	if s.conn != c {
		s.lock.Unlock()
		udp.Close()
		return
	}
	c.udp = udp
	s.lock.Unlock()

	go s.udpReadLoop(c, udp)
	go s.udpHello(c, udp, id)
}

func (s *Session) udpHello(c *conn, udp *transport.Datagrams, id uint16) {
	hello := &protocol.Packet{Kind: protocol.KindUDPHello}
	retry := s.cfg.UDPRetry
	if retry <= 0 {
		retry = config.DefaultClient().UDPRetry
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()

	for i := 0; i < s.cfg.UDPAttempts; i++ {
		s.lock.Lock()
		ready := c.udpReady
		s.lock.Unlock()
		if ready {
			return
		}
		if err := udp.Write(hello, id, nil); err != nil {
			s.log.Debug("UDP hello failed: %v", err)
		}
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
		}
	}
	s.log.Warning("server never acknowledged UDP, blasts will use the stream")
}

// udpReadLoop hands datagrams to readLoop.
func (s *Session) udpReadLoop(c *conn, udp *transport.Datagrams) {
	for {
		pkt, _, from, err := udp.Read()
		switch {
		case err == nil:
			select {
			case c.datagrams <- pkt:
			case <-c.ctx.Done():
				return
			}
		case c.ctx.Err() != nil || errors.Is(err, net.ErrClosed):
			return
		case from != nil:
			s.log.Debug("dropping malformed datagram: %v", err)
		default:
			s.log.Debug("UDP read: %v", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Inbound packets
// ---------------------------------------------------------------------------

// dispatch fires queued events with the session unlocked.
func (s *Session) dispatch(events []func()) {
	for _, fire := range events {
		fire()
	}
}

// handle applies pkt to the session state and returns the events it raised.
func (s *Session) handle(c *conn, pkt *protocol.Packet) []func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conn != c {
		return nil
	}

	switch {
	case pkt.Kind == protocol.KindResponse:
		res, err := protocol.ParseResponse(pkt.Body)
		if err != nil {
			return s.protocolError(err)
		}
		return s.handleResponse(c, res)

	case pkt.Kind == protocol.KindPeerUpdate:
		u, err := protocol.ParsePeerUpdate(pkt.Body)
		if err != nil {
			return s.protocolError(err)
		}
		return s.handlePeerUpdate(u)

	case pkt.Kind.IsData():
		return s.handleData(pkt)

	case pkt.Kind == protocol.KindPing:
		return []func(){func() { c.tr.Send(&protocol.Packet{Kind: protocol.KindPong}) }}

	case pkt.Kind == protocol.KindUDPWelcome:
		if c.udp != nil && !c.udpReady {
			c.udpReady = true
			s.log.Debug("UDP binding confirmed")
		}

	default:
		s.log.Debug("ignoring unexpected %s frame", pkt.Kind)
	}
	return nil
}

func (s *Session) protocolError(err error) []func() {
	err = fmt.Errorf("malformed frame from server: %w", err)
	return []func(){func() { s.fail(err) }}
}

func (s *Session) handleResponse(c *conn, res *protocol.Response) []func() {
	h := s.handler

	switch res.Type {
	case protocol.RequestConnect:
		if !res.OK {
			s.log.Warning("server denied connection: %s", res.DenyReason)
			s.retire(c)
			return []func(){func() { h.OnConnectDenied(res.DenyReason) }}
		}
		s.state = stateConnected
		s.id = res.ClientID
		s.welcome = res.Welcome
		s.since = time.Now()
		s.log.Info("connected as client %d", res.ClientID)
		go s.startUDP(c, res.ClientID)
		return []func(){func() { h.OnConnect(res.Welcome) }}

	case protocol.RequestSetName:
		if !res.OK {
			return []func(){func() { h.OnNameDenied(res.Name, res.DenyReason) }}
		}
		s.name = res.Name
		return []func(){func() { h.OnNameSet(res.Name) }}

	case protocol.RequestJoinChannel:
		key := strings.ToLower(res.Name)
		flags := s.pending[key]
		delete(s.pending, key)
		if !res.OK {
			return []func(){func() { h.OnChannelJoinDenied(res.Name, res.DenyReason) }}
		}
		ch := s.topo.AddChannel(res.ChannelID, res.Name, flags.hidden, flags.autoClose, res.Master)
		for _, p := range res.Peers {
			s.topo.AddPeer(ch, p.ID, p.Name, p.Master)
		}
		s.topo.SelectChannel(ch)
		ev := channelEvent(ch)
		return []func(){func() { h.OnChannelJoin(ev) }}

	case protocol.RequestLeaveChannel:
		ch := s.topo.Channel(res.ChannelID)
		if ch == nil {
			s.log.Debug("leave response for unknown channel %d", res.ChannelID)
			return nil
		}
		ev := channelEvent(ch)
		if !res.OK {
			return []func(){func() { h.OnChannelLeaveDenied(ev, res.DenyReason) }}
		}
		s.topo.CloseChannel(res.ChannelID)
		s.topo.Prune()
		return []func(){func() { h.OnChannelLeave(ev) }}

	case protocol.RequestChannelList:
		if !res.OK {
			err := fmt.Errorf("channel list denied: %s", res.DenyReason)
			return []func(){func() { s.fail(err) }}
		}
		listings := make([]topology.Listing, len(res.Channels))
		for i, ch := range res.Channels {
			listings[i] = topology.Listing{Name: ch.Name, PeerCount: int(ch.PeerCount)}
		}
		s.topo.SetListings(listings)
		return []func(){func() { h.OnChannelListReceived(listings) }}
	}
	return nil
}

func (s *Session) handlePeerUpdate(u *protocol.PeerUpdate) []func() {
	h := s.handler
	ch := s.topo.Channel(u.ChannelID)
	if ch == nil {
		s.log.Debug("peer update for unknown channel %d", u.ChannelID)
		return nil
	}

	if u.Left() {
		p, err := s.topo.ClosePeer(ch, u.Peer.ID)
		if err != nil {
			s.log.Debug("peer update: %v", err)
			return nil
		}
		ev := peerEvent(p)
		s.topo.Prune()
		return []func(){func() { h.OnPeerDisconnect(ev) }}
	}

	existing := ch.Peer(u.Peer.ID)
	if existing == nil {
		p := s.topo.AddPeer(ch, u.Peer.ID, u.Peer.Name, u.Peer.Master)
		ev := peerEvent(p)
		return []func(){func() { h.OnPeerConnect(ev) }}
	}

	if u.Peer.Master && !existing.Master {
		s.topo.SetMaster(ch, existing.ID)
	}
	if existing.Name == u.Peer.Name {
		return nil
	}
	old, _ := s.topo.RenamePeer(ch, existing.ID, u.Peer.Name)
	ev := peerEvent(existing)
	ev.OldName = old
	return []func(){func() { h.OnPeerChangeName(ev) }}
}

func (s *Session) handleData(pkt *protocol.Packet) []func() {
	env, err := protocol.ParseEnvelope(pkt)
	if err != nil {
		return s.protocolError(err)
	}
	src, _ := message.SourceOf(pkt.Kind)
	class := message.Sent
	if pkt.Blasted {
		class = message.Blasted
	}

	var (
		ch   *topology.Channel
		peer *topology.Peer
	)
	switch src {
	case message.FromChannel, message.FromPeer, message.FromServerChannel:
		if ch = s.topo.Channel(env.ChannelID); ch == nil {
			s.log.Debug("dropping %s for unknown channel %d", pkt.Kind, env.ChannelID)
			return nil
		}
		if src != message.FromServerChannel {
			if peer = ch.Peer(env.PeerID); peer == nil {
				s.log.Debug("dropping %s from unknown peer %d", pkt.Kind, env.PeerID)
				return nil
			}
		}
	}

	m := message.New(env, pkt.Variant, class, src)
	s.received = m

	var chRef topology.ChannelRef
	var peerRef topology.PeerRef
	if ch != nil {
		chRef = ch.Ref()
	}
	if peer != nil {
		peerRef = peer.Ref()
	}
	return []func(){func() {
		s.withSelection(chRef, peerRef, func() { s.handler.OnMessage(m) })
	}}
}

// withSelection runs fn with the given channel and peer selected, then puts
// the previous selection back. Zero handles leave that part unchanged.
func (s *Session) withSelection(ch topology.ChannelRef, peer topology.PeerRef, fn func()) {
	s.lock.Lock()
	prevCh, prevPeer := s.topo.Selection()
	nextCh, nextPeer := prevCh, prevPeer
	if !ch.IsZero() {
		nextCh, nextPeer = ch, topology.PeerRef{}
	}
	if !peer.IsZero() {
		nextPeer = peer
	}
	s.topo.Restore(nextCh, nextPeer)
	s.lock.Unlock()

	fn()

	s.lock.Lock()
	s.topo.Restore(prevCh, prevPeer)
	s.lock.Unlock()
}
