package client

import (
	"context"
	"net"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/bluewing/internal/compress"
	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/payload"
	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/topology"
	"github.com/1ureka/bluewing/internal/transport"
)

// recorder collects handler events as short strings.
type recorder struct {
	NopHandler

	mu        sync.Mutex
	events    []string
	loops     []LoopEvent
	errs      []error
	onMessage func(*message.Message)
	onLoop    func(LoopEvent)
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) has(e string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Contains(r.events, e)
}

func (r *recorder) lastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func (r *recorder) OnConnect(w string)                       { r.add("connect:" + w) }
func (r *recorder) OnConnectDenied(reason string)            { r.add("denied:" + reason) }
func (r *recorder) OnDisconnect()                            { r.add("disconnect") }
func (r *recorder) OnNameSet(n string)                       { r.add("name:" + n) }
func (r *recorder) OnNameDenied(n, reason string)            { r.add("name-denied:" + n) }
func (r *recorder) OnChannelJoin(c ChannelEvent)             { r.add("join:" + c.Name) }
func (r *recorder) OnChannelJoinDenied(n, reason string)     { r.add("join-denied:" + n) }
func (r *recorder) OnChannelLeave(c ChannelEvent)            { r.add("leave:" + c.Name) }
func (r *recorder) OnChannelListReceived([]topology.Listing) { r.add("list") }
func (r *recorder) OnPeerConnect(p PeerEvent)                { r.add("peer+:" + p.Name) }
func (r *recorder) OnPeerDisconnect(p PeerEvent)             { r.add("peer-:" + p.Name) }
func (r *recorder) OnPeerChangeName(p PeerEvent)             { r.add("rename:" + p.OldName + ">" + p.Name) }

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) OnMessage(m *message.Message) {
	r.mu.Lock()
	fn := r.onMessage
	r.mu.Unlock()
	if fn != nil {
		fn(m)
	}
	r.add("message")
}

func (r *recorder) OnLoop(e LoopEvent) {
	r.mu.Lock()
	r.loops = append(r.loops, e)
	fn := r.onLoop
	r.mu.Unlock()
	if fn != nil {
		fn(e)
	}
}

func waitFor(t *testing.T, r *recorder, event string) {
	t.Helper()
	require.Eventually(t, func() bool { return r.has(event) }, 2*time.Second, 5*time.Millisecond,
		"event %q never arrived", event)
}

// fakeServer plays the relay side of a piped connection.
type fakeServer struct {
	t  *testing.T
	tr *transport.Transport
}

func (f *fakeServer) next() *protocol.Packet {
	f.t.Helper()
	ch := make(chan *protocol.Packet, 1)
	go func() {
		pkt, err := f.tr.Receive()
		if err != nil {
			close(ch)
			return
		}
		ch <- pkt
	}()
	select {
	case pkt, ok := <-ch:
		require.True(f.t, ok, "client closed the link")
		return pkt
	case <-time.After(2 * time.Second):
		f.t.Fatal("client sent nothing")
	}
	return nil
}

func (f *fakeServer) request(want protocol.RequestType) *protocol.Request {
	f.t.Helper()
	pkt := f.next()
	require.Equal(f.t, protocol.KindRequest, pkt.Kind)
	q, err := protocol.ParseRequest(pkt.Body)
	require.NoError(f.t, err)
	require.Equal(f.t, want, q.Type)
	return q
}

func (f *fakeServer) respond(res *protocol.Response) { f.tr.Send(res.Packet()) }

func newTestSession(t *testing.T, cfg config.Client) (*Session, *recorder, *fakeServer) {
	t.Helper()
	cfg.UDPAttempts = 0
	rec := &recorder{}
	s := New(cfg, rec)

	a, b := net.Pipe()
	c := newConn(config.Address{Host: "relay.test", Port: config.DefaultPort})
	s.lock.Lock()
	s.conn = c
	s.state = stateConnecting
	s.lock.Unlock()
	go s.attach(c, transport.NewTCPLink(a))

	srvCtx, srvCancel := context.WithCancel(context.Background())
	srv := &fakeServer{t: t, tr: transport.New(srvCtx, transport.NewTCPLink(b))}
	t.Cleanup(func() {
		srvCancel()
		srv.tr.Close()
		c.cancel()
	})

	q := srv.request(protocol.RequestConnect)
	require.Equal(t, protocol.Version, q.Version)
	srv.respond(&protocol.Response{Type: protocol.RequestConnect, OK: true, ClientID: 4, Welcome: "hello"})
	waitFor(t, rec, "connect:hello")
	return s, rec, srv
}

// joinLobby names the client "me" and joins Lobby (ID 1) with alice(10,
// master), bob(11) and carol(12) already there.
func joinLobby(t *testing.T, s *Session, rec *recorder, srv *fakeServer) {
	t.Helper()
	require.NoError(t, s.SetName("me"))
	q := srv.request(protocol.RequestSetName)
	srv.respond(&protocol.Response{Type: protocol.RequestSetName, OK: true, Name: q.Name})
	waitFor(t, rec, "name:me")

	require.NoError(t, s.Join("Lobby", false, true))
	q = srv.request(protocol.RequestJoinChannel)
	assert.True(t, q.AutoClose)
	srv.respond(&protocol.Response{
		Type: protocol.RequestJoinChannel, OK: true, Name: "Lobby", ChannelID: 1,
		Peers: []protocol.PeerInfo{
			{ID: 10, Name: "alice", Master: true},
			{ID: 11, Name: "bob"},
			{ID: 12, Name: "carol"},
		},
	})
	waitFor(t, rec, "join:Lobby")
}

func TestConnectHandshake(t *testing.T) {
	s, _, _ := newTestSession(t, config.DefaultClient())

	assert.True(t, s.Connected())
	id, err := s.ID()
	require.NoError(t, err)
	assert.Equal(t, uint16(4), id)

	w, err := s.Welcome()
	require.NoError(t, err)
	assert.Equal(t, "hello", w)

	addr, err := s.Address()
	require.NoError(t, err)
	assert.Equal(t, "relay.test:6121", addr)

	since, err := s.ConnectTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), since, 5*time.Second)
	assert.False(t, s.ClientHasAName())
}

func TestConnectValidation(t *testing.T) {
	rec := &recorder{}
	s := New(config.DefaultClient(), rec)

	for _, host := range []string{"", "relay.test:70000", "relay.test:-1", "relay.test:port"} {
		err := s.Connect(host)
		assert.ErrorIs(t, err, config.ErrInvalidAddress, host)
	}
	assert.Equal(t, 4, len(rec.errs), "every failure reaches the handler")
	assert.False(t, s.Connected())

	_, err := s.ID()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, s.Disconnect(), ErrNotConnected)
}

func TestJoinWithoutNameIssuesNoRequest(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())

	err := s.Join("Lobby", false, false)
	require.ErrorIs(t, err, ErrNoClientName)
	assert.Same(t, err, rec.lastError())

	assert.ErrorIs(t, s.Join("", false, false), topology.ErrBlankName)

	// The next thing on the wire is the list request, not a join.
	require.NoError(t, s.RequestChannelList())
	srv.request(protocol.RequestChannelList)
}

func TestJoinAndPeerUpdates(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	name, err := s.SelectedChannelName()
	require.NoError(t, err)
	assert.Equal(t, "Lobby", name, "joining selects the channel")

	n, _ := s.SelectedChannelPeerCount()
	assert.Equal(t, 3, n)
	master, _ := s.YouAreChannelMaster()
	assert.False(t, master)

	srv.tr.Send((&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 13, Name: "dave"}}).Packet())
	waitFor(t, rec, "peer+:dave")
	srv.tr.Send((&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 12, Name: "caroline"}}).Packet())
	waitFor(t, rec, "rename:carol>caroline")
	srv.tr.Send((&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 13}}).Packet())
	waitFor(t, rec, "peer-:dave")

	ok, err := s.IsPeerOnChannelByName("dave", "")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = s.IsPeerOnChannelByID(12, "lobby")
	assert.True(t, ok)

	require.NoError(t, s.SelectPeerByName("caroline"))
	require.NoError(t, s.SelectChannelMaster())
	pn, _ := s.SelectedPeerName()
	assert.Equal(t, "alice", pn)
	isMaster, _ := s.SelectedPeerIsChannelMaster()
	assert.True(t, isMaster)
}

func TestPeerLoopSkipsClosedAndRestores(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	srv.tr.Send((&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 11}}).Packet())
	waitFor(t, rec, "peer-:bob")

	require.NoError(t, s.SelectPeerByID(12))
	require.NoError(t, s.ForEachPeer("roll call"))

	require.Len(t, rec.loops, 3)
	assert.Equal(t, "alice", rec.loops[0].Peer.Name)
	assert.Equal(t, "carol", rec.loops[1].Peer.Name)
	assert.True(t, rec.loops[2].Finished)
	for _, e := range rec.loops {
		assert.Equal(t, "roll call", e.Name)
		assert.Equal(t, LoopPeers, e.Kind)
	}

	pn, err := s.SelectedPeerName()
	require.NoError(t, err)
	assert.Equal(t, "carol", pn, "selection before the loop is restored")
}

func TestDepartedPeersAreForgotten(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	joined := (&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 20, Name: "dave"}}).Packet()
	left := (&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 20}}).Packet()

	srv.tr.Send(joined)
	waitFor(t, rec, "peer+:dave")
	require.NoError(t, s.SelectPeerByName("dave"))
	srv.tr.Send(left)
	waitFor(t, rec, "peer-:dave")

	_, err := s.SelectedPeerName()
	assert.ErrorIs(t, err, topology.ErrPeerClosed, "a departed selection stays closed")

	for range 500 {
		srv.tr.Send(joined)
		srv.tr.Send(left)
	}
	srv.tr.Send((&protocol.PeerUpdate{ChannelID: 1, Peer: protocol.PeerInfo{ID: 30, Name: "erin"}}).Packet())
	waitFor(t, rec, "peer+:erin")

	s.lock.Lock()
	lobby := s.topo.Channel(1)
	stored, live := len(lobby.Peers()), lobby.PeerCount()
	s.lock.Unlock()
	assert.Equal(t, 4, live)
	assert.Equal(t, live, stored)

	assert.ErrorIs(t, s.SelectPeerByID(20), topology.ErrPeerNotFound)
	require.NoError(t, s.SelectPeerByName("erin"))
}

func TestLeftChannelIsForgotten(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	require.NoError(t, s.Leave())
	srv.request(protocol.RequestLeaveChannel)
	srv.respond(&protocol.Response{Type: protocol.RequestLeaveChannel, OK: true, ChannelID: 1})
	waitFor(t, rec, "leave:Lobby")

	s.lock.Lock()
	stored := len(s.topo.Channels())
	s.lock.Unlock()
	assert.Zero(t, stored)

	_, err := s.SelectedChannelName()
	assert.ErrorIs(t, err, topology.ErrChannelClosed)
}

func TestLoopSelectsEachElement(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	var seen []string
	rec.mu.Lock()
	rec.onLoop = func(e LoopEvent) {
		switch {
		case e.Finished:
			seen = append(seen, "finished")
		case e.Kind == LoopListedChannels:
			seen = append(seen, e.Listing.Name)
		default:
			name, _ := s.SelectedChannelName()
			seen = append(seen, name)
		}
	}
	rec.mu.Unlock()

	s.ForEachChannel("")
	assert.Equal(t, []string{"Lobby", "finished"}, seen)

	srv.respond(&protocol.Response{Type: protocol.RequestChannelList, OK: true,
		Channels: []protocol.ChannelInfo{{Name: "Lobby", PeerCount: 4}, {Name: "Arena", PeerCount: 1}}})
	waitFor(t, rec, "list")

	seen = nil
	s.ForEachListedChannel("list")
	assert.Equal(t, []string{"Lobby", "Arena", "finished"}, seen)
}

func TestSendValidation(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())

	err := s.SendText(ToServer, 256, "x")
	assert.ErrorIs(t, err, ErrBadSubchannel)
	assert.ErrorIs(t, s.BlastNumber(ToServer, -1, 1), ErrBadSubchannel)

	err = s.SendText(ToChannel, 0, "x")
	require.ErrorIs(t, err, topology.ErrNoChannelSelected)
	assert.Equal(t, "Send Text to Channel was called without a channel being selected", err.Error())

	err = s.BlastBinary(ToPeer, 0)
	assert.ErrorIs(t, err, topology.ErrNoChannelSelected)

	err = s.SendText(ToServer, 0, "\xff")
	assert.ErrorIs(t, err, ErrInvalidText)
	assert.Same(t, rec.lastError(), err, "handler saw the failure")

	// nothing was sent for any of the above
	require.NoError(t, s.RequestChannelList())
	srv.request(protocol.RequestChannelList)
}

func TestSendWireFormat(t *testing.T) {
	cfg := config.DefaultClient()
	cfg.AutomaticClear = true
	s, rec, srv := newTestSession(t, cfg)
	joinLobby(t, s, rec, srv)

	require.NoError(t, s.SendText(ToChannel, 3, "hi"))
	pkt := srv.next()
	assert.Equal(t, protocol.KindChannelMessage, pkt.Kind)
	assert.False(t, pkt.Blasted)
	env, err := protocol.ParseEnvelope(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), env.Subchannel)
	assert.Equal(t, uint16(1), env.ChannelID)
	assert.Equal(t, []byte("hi\x00"), env.Data, "text carries its terminator")

	require.NoError(t, s.BlastNumber(ToServer, 9, -2))
	pkt = srv.next()
	assert.Equal(t, protocol.KindServerMessage, pkt.Kind)
	assert.True(t, pkt.Blasted, "blasts without UDP are flagged on the stream")
	env, _ = protocol.ParseEnvelope(pkt)
	assert.Equal(t, []byte{0xFE, 0xFF, 0xFF, 0xFF}, env.Data)

	require.NoError(t, s.SelectPeerByName("carol"))
	require.NoError(t, s.Compose(func(b *payload.Builder) error {
		if err := b.AddShort(513); err != nil {
			return err
		}
		return b.AddStringWithoutNull("ok")
	}))
	assert.Equal(t, 4, s.SendBinarySize())
	require.NoError(t, s.SendBinary(ToPeer, 0))
	pkt = srv.next()
	assert.Equal(t, protocol.KindPeerMessage, pkt.Kind)
	assert.Equal(t, protocol.VariantBinary, pkt.Variant)
	env, _ = protocol.ParseEnvelope(pkt)
	assert.Equal(t, uint16(12), env.PeerID)
	assert.Equal(t, []byte{0x01, 0x02, 'o', 'k'}, env.Data)
	assert.Zero(t, s.SendBinarySize(), "automatic clear empties the binary")

	// Cleared even when the send fails.
	require.NoError(t, s.ResizeBinaryToSend(8))
	assert.Error(t, s.SendBinary(ToServer, 300))
	assert.Zero(t, s.SendBinarySize())
}

func TestReceiveSelectsSender(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)
	require.NoError(t, s.SelectPeerByName("carol"))

	var during string
	rec.mu.Lock()
	rec.onMessage = func(m *message.Message) { during, _ = s.SelectedPeerName() }
	rec.mu.Unlock()

	srv.tr.Send(protocol.NewDataPacket(protocol.KindChannelMessage, protocol.VariantNumber, true,
		&protocol.Envelope{Subchannel: 2, ChannelID: 1, PeerID: 10, Data: []byte{7, 0, 0, 0}}))
	waitFor(t, rec, "message")

	assert.Equal(t, "alice", during)
	require.Eventually(t, func() bool {
		after, _ := s.SelectedPeerName()
		return after == "carol"
	}, 2*time.Second, 5*time.Millisecond, "selection is restored after the event")

	m, err := s.Received()
	require.NoError(t, err)
	assert.Equal(t, message.FromChannel, m.Source)
	assert.Equal(t, message.Blasted, m.Class)
	assert.True(t, m.Matches(2))
	assert.True(t, m.Matches(message.AnySubchannel))
	n, err := m.Number()
	require.NoError(t, err)
	assert.Equal(t, int32(7), n)
}

func TestStreamAndDatagramHandlersDoNotOverlap(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)
	require.NoError(t, s.SelectPeerByName("carol"))

	relay, err := transport.ListenUDP("127.0.0.1:0")
	require.NoError(t, err)
	defer relay.Close()
	udp, err := transport.DialUDP(relay.LocalAddr().String())
	require.NoError(t, err)

	s.lock.Lock()
	c := s.conn
	c.udp = udp
	s.lock.Unlock()
	go s.udpReadLoop(c, udp)

	type seen struct {
		selected string
		latest   bool
	}
	var (
		mu     sync.Mutex
		byPeer = map[uint16]seen{}
	)
	rec.mu.Lock()
	rec.onMessage = func(m *message.Message) {
		name, _ := s.SelectedPeerName()
		time.Sleep(30 * time.Millisecond)
		latest, _ := s.Received()
		mu.Lock()
		byPeer[m.PeerID] = seen{selected: name, latest: latest == m}
		mu.Unlock()
	}
	rec.mu.Unlock()

	msg := func(from uint16, blasted bool) *protocol.Packet {
		return protocol.NewDataPacket(protocol.KindChannelMessage, protocol.VariantNumber, blasted,
			&protocol.Envelope{ChannelID: 1, PeerID: from, Data: []byte{byte(from), 0, 0, 0}})
	}
	srv.tr.Send(msg(10, false))
	require.NoError(t, relay.Write(msg(11, true), 0, udp.LocalAddr().(*net.UDPAddr)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(byPeer) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen{selected: "alice", latest: true}, byPeer[10])
	assert.Equal(t, seen{selected: "bob", latest: true}, byPeer[11])
	require.Eventually(t, func() bool {
		after, _ := s.SelectedPeerName()
		return after == "carol"
	}, 2*time.Second, 5*time.Millisecond, "selection is restored after both events")
}

func TestDecompressReceivedUpdatesAliases(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())

	plain := []byte(strings.Repeat("bluewing ", 200))
	packed, err := compress.Compress(plain)
	require.NoError(t, err)

	srv.tr.Send(protocol.NewDataPacket(protocol.KindServerMessage, protocol.VariantBinary, false,
		&protocol.Envelope{Data: packed}))
	waitFor(t, rec, "message")

	m, err := s.Received()
	require.NoError(t, err)
	kept := m.Alias()
	require.NoError(t, s.MoveCursor(3))

	require.NoError(t, s.DecompressReceivedBinary())
	assert.Equal(t, plain, kept.Content.Bytes())
	assert.Zero(t, kept.Content.Cursor(), "cursor rewinds")
	size, _ := s.ReceivedSize()
	assert.Equal(t, len(plain), size)

	// Inflating plain text fails and leaves the content alone.
	assert.Error(t, s.DecompressReceivedBinary())
	assert.Equal(t, plain, kept.Content.Bytes())
}

func TestCompressSendBinary(t *testing.T) {
	s, _, _ := newTestSession(t, config.DefaultClient())

	assert.Error(t, s.CompressSendBinary(), "empty binary")

	plain := []byte(strings.Repeat("a", 4096))
	require.NoError(t, s.Compose(func(b *payload.Builder) error { return b.AddBinary(plain) }))
	require.NoError(t, s.CompressSendBinary())
	assert.Less(t, s.SendBinarySize(), len(plain))
}

func TestLeaveAndDisconnect(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	joinLobby(t, s, rec, srv)

	require.NoError(t, s.SetChannelLocalData("score", "12"))
	v, err := s.ChannelLocalData("score")
	require.NoError(t, err)
	assert.Equal(t, "12", v)

	require.NoError(t, s.Leave())
	q := srv.request(protocol.RequestLeaveChannel)
	assert.Equal(t, uint16(1), q.ChannelID)
	srv.respond(&protocol.Response{Type: protocol.RequestLeaveChannel, OK: true, ChannelID: 1})
	waitFor(t, rec, "leave:Lobby")

	_, err = s.SelectedChannelName()
	assert.ErrorIs(t, err, topology.ErrChannelClosed)
	assert.ErrorIs(t, s.Leave(), topology.ErrChannelClosed)
	assert.Zero(t, s.ChannelCount())

	require.NoError(t, s.Disconnect())
	assert.True(t, rec.has("disconnect"))
	assert.False(t, s.Connected())
	assert.Empty(t, s.Name())

	// The dropped link must not raise a second disconnect.
	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	n := 0
	for _, e := range rec.events {
		if e == "disconnect" {
			n++
		}
	}
	rec.mu.Unlock()
	assert.Equal(t, 1, n)
}

func TestServerDropRaisesDisconnect(t *testing.T) {
	s, rec, srv := newTestSession(t, config.DefaultClient())
	srv.tr.Close()
	waitFor(t, rec, "disconnect")
	assert.False(t, s.Connected())
}

func TestConnectDenied(t *testing.T) {
	rec := &recorder{}
	cfg := config.DefaultClient()
	cfg.UDPAttempts = 0
	s := New(cfg, rec)

	a, b := net.Pipe()
	c := newConn(config.Address{Host: "relay.test", Port: 1})
	defer c.cancel()
	s.conn, s.state = c, stateConnecting
	go s.attach(c, transport.NewTCPLink(a))

	srvCtx, srvCancel := context.WithCancel(context.Background())
	defer srvCancel()
	srv := &fakeServer{t: t, tr: transport.New(srvCtx, transport.NewTCPLink(b))}
	defer srv.tr.Close()

	srv.request(protocol.RequestConnect)
	srv.respond(&protocol.Response{Type: protocol.RequestConnect, DenyReason: "full"})
	waitFor(t, rec, "denied:full")
	assert.False(t, s.Connected())
	time.Sleep(50 * time.Millisecond)
	assert.False(t, rec.has("disconnect"))
}
