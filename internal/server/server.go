// Package server implements the relay server: it admits clients, keeps the
// authoritative channel registry and relays data between peers.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/idpool"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/transport"
	"github.com/1ureka/bluewing/internal/util"
)

var (
	ErrUnknownClient  = errors.New("no client with that ID")
	ErrUnknownChannel = errors.New("no channel with that name")
)

// Peer identifies the client a server message came from.
type Peer struct {
	ID   uint16
	Name string
	Addr string
}

// MessageFunc handles a message a client sent to the server itself.
type MessageFunc func(from Peer, m *message.Message)

// Server is a relay server. Create it with New and run it with Serve.
type Server struct {
	cfg      config.Server
	log      util.Scope
	registry *prometheus.Registry
	metrics  *metrics

	onMessage MessageFunc

	mu         sync.Mutex
	clients    map[uint16]*client
	channels   []*channel // creation order
	clientIDs  *idpool.Pool
	channelIDs *idpool.Pool

	udp    *transport.Datagrams
	addr   net.Addr
	wsAddr net.Addr
	ready  chan struct{}
	conns  sync.WaitGroup
}

// New validates cfg and prepares a server.
func New(cfg config.Server) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	reg := prometheus.NewRegistry()
	return &Server{
		cfg:        cfg,
		log:        util.Scope{"component", "server"},
		registry:   reg,
		metrics:    newMetrics(reg),
		clients:    map[uint16]*client{},
		clientIDs:  idpool.New(),
		channelIDs: idpool.New(),
		ready:      make(chan struct{}),
	}, nil
}

// OnMessage installs fn for messages sent to the server. Call it before Serve.
func (s *Server) OnMessage(fn MessageFunc) { s.onMessage = fn }

// Ready is closed once every listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the TCP address clients connect to. The UDP socket shares its
// port. Valid once Ready is closed.
func (s *Server) Addr() net.Addr { return s.addr }

// WSAddr returns the WebSocket listen address, or nil when disabled.
func (s *Server) WSAddr() net.Addr { return s.wsAddr }

// MetricsHandler serves the server's Prometheus metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Serve runs the server until ctx is cancelled or a listener fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	host, _, _ := net.SplitHostPort(s.cfg.Addr)
	port := ln.Addr().(*net.TCPAddr).Port
	udp, err := transport.ListenUDP(net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		ln.Close()
		return err
	}
	s.udp = udp
	s.addr = ln.Addr()

	g, gctx := errgroup.WithContext(ctx)
	var servers []*http.Server

	if s.cfg.WSAddr != "" {
		wsLn, err := net.Listen("tcp", s.cfg.WSAddr)
		if err != nil {
			ln.Close()
			udp.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.WSAddr, err)
		}
		s.wsAddr = wsLn.Addr()
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) { s.handleWS(gctx, w, r) })
		srv := &http.Server{Handler: mux}
		servers = append(servers, srv)
		g.Go(func() error { return serveHTTP(srv, wsLn) })
		s.log.Info("WebSocket endpoint on ws://%s/ws", wsLn.Addr())
	}

	if s.cfg.MetricsAddr != "" {
		mLn, err := net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			ln.Close()
			udp.Close()
			for _, srv := range servers {
				srv.Close()
			}
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.MetricsAddr, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.MetricsHandler())
		srv := &http.Server{Handler: mux}
		servers = append(servers, srv)
		g.Go(func() error { return serveHTTP(srv, mLn) })
		s.log.Info("metrics on http://%s/metrics", mLn.Addr())
	}

	close(s.ready)
	s.log.Info("relay listening on %s (TCP and UDP)", s.addr)

	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		udp.Close()
		for _, srv := range servers {
			srv.Close()
		}
		return nil
	})
	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	g.Go(func() error { return s.udpLoop(gctx) })
	if s.cfg.PingInterval > 0 {
		g.Go(func() error { return s.pingLoop(gctx) })
	}

	err = g.Wait()
	s.conns.Wait()
	s.log.Info("relay stopped")
	return err
}

func serveHTTP(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(ctx, transport.NewTCPLink(conn))
		}()
	}
}

func (s *Server) handleWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()
	s.handleConn(ctx, transport.NewWSLink(conn))
}

// handleConn serves one client until its link drops.
func (s *Server) handleConn(ctx context.Context, link transport.Link) {
	tr := transport.New(ctx, link)
	defer tr.Close()
	util.Stats.AddConn()
	defer util.Stats.RemoveConn()

	c := &client{
		tr:     tr,
		remote: link.RemoteAddr().String(),
		log:    s.log.With("remote", link.RemoteAddr().String()),
	}
	if s.cfg.FloodRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.FloodRate), s.cfg.FloodBurst)
	}
	c.log.Debug("connection opened")
	defer s.drop(c)

	for {
		pkt, err := tr.Receive()
		if err != nil {
			c.log.Debug("connection closed: %v", err)
			return
		}
		if err := s.handlePacket(c, pkt); err != nil {
			c.log.Warning("dropping client: %v", err)
			return
		}
	}
}

// ClientCount returns the number of admitted clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ChannelCount returns the number of open channels.
func (s *Server) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}
