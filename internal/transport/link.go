package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/util"
	"github.com/gorilla/websocket"
)

// Link is a framed, ordered connection to one relay endpoint. ReadPacket and
// WritePacket may be called concurrently with each other, but each from at
// most one goroutine.
type Link interface {
	ReadPacket() (*protocol.Packet, error)
	WritePacket(pkt *protocol.Packet) error
	Close() error
	RemoteAddr() net.Addr
}

const dialTimeout = 10 * time.Second

// ---------------------------------------------------------------------------
// TCP
// ---------------------------------------------------------------------------

type tcpLink struct {
	conn net.Conn
	r    *bufio.Reader
}

// NewTCPLink frames packets over an established stream connection.
func NewTCPLink(conn net.Conn) Link {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return &tcpLink{conn: conn, r: bufio.NewReader(conn)}
}

// DialTCP connects to a relay server's stream port.
func DialTCP(ctx context.Context, addr string) (Link, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewTCPLink(conn), nil
}

func (l *tcpLink) ReadPacket() (*protocol.Packet, error) {
	pkt, err := protocol.ReadPacket(l.r)
	if err != nil {
		return nil, err
	}
	util.Stats.AddRecv(protocol.FrameSize(len(pkt.Body)))
	return pkt, nil
}

func (l *tcpLink) WritePacket(pkt *protocol.Packet) error {
	data := protocol.Encode(pkt)
	if _, err := l.conn.Write(data); err != nil {
		return err
	}
	util.Stats.AddSent(len(data))
	return nil
}

func (l *tcpLink) Close() error         { return l.conn.Close() }
func (l *tcpLink) RemoteAddr() net.Addr { return l.conn.RemoteAddr() }

// ---------------------------------------------------------------------------
// WebSocket
// ---------------------------------------------------------------------------

// Upgrader accepts browser and native WebSocket clients from any origin.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsLink struct {
	conn *websocket.Conn
}

// NewWSLink frames packets as binary WebSocket messages, one frame per message.
func NewWSLink(conn *websocket.Conn) Link {
	return &wsLink{conn: conn}
}

// DialWS connects to a relay server's WebSocket endpoint.
func DialWS(ctx context.Context, url string) (Link, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to WS server: %w", err)
	}
	return NewWSLink(conn), nil
}

func (l *wsLink) ReadPacket() (*protocol.Packet, error) {
	for {
		mt, data, err := l.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		pkt, err := protocol.Decode(data)
		if err != nil {
			return nil, err
		}
		util.Stats.AddRecv(len(data))
		return pkt, nil
	}
}

func (l *wsLink) WritePacket(pkt *protocol.Packet) error {
	data := protocol.Encode(pkt)
	if err := l.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return err
	}
	util.Stats.AddSent(len(data))
	return nil
}

func (l *wsLink) Close() error {
	l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return l.conn.Close()
}

func (l *wsLink) RemoteAddr() net.Addr { return l.conn.RemoteAddr() }
