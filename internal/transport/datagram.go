package transport

import (
	"fmt"
	"net"

	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/util"
)

// MaxDatagramSize is the largest UDP payload a blasted frame may occupy.
const MaxDatagramSize = 65507

// Datagrams carries blasted frames over a UDP socket. A server listens on an
// unconnected socket and addresses each write; a client dials a connected one.
type Datagrams struct {
	conn      *net.UDPConn
	connected bool
	buf       []byte
}

// ListenUDP opens the server-side datagram socket.
func ListenUDP(addr string) (*Datagrams, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", addr, err)
	}
	return &Datagrams{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

// DialUDP opens a client-side datagram socket bound to the server at addr.
func DialUDP(addr string) (*Datagrams, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, ua)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP %s: %w", addr, err)
	}
	return &Datagrams{conn: conn, connected: true, buf: make([]byte, MaxDatagramSize)}, nil
}

// Write sends pkt stamped with the sender's client ID. to is ignored on a
// connected socket.
func (d *Datagrams) Write(pkt *protocol.Packet, sender uint16, to *net.UDPAddr) error {
	data := protocol.EncodeDatagram(pkt, sender)
	if len(data) > MaxDatagramSize {
		util.Stats.DropBlast()
		return fmt.Errorf("datagram of %d bytes exceeds %d", len(data), MaxDatagramSize)
	}

	var err error
	if d.connected {
		_, err = d.conn.Write(data)
	} else {
		_, err = d.conn.WriteToUDP(data, to)
	}
	if err != nil {
		util.Stats.DropBlast()
		return err
	}
	util.Stats.AddSent(len(data))
	return nil
}

// Read blocks for the next datagram. A malformed datagram is reported with a
// nil packet and a non-nil error alongside its source address; the socket
// stays usable. Only one goroutine may call Read.
func (d *Datagrams) Read() (*protocol.Packet, uint16, *net.UDPAddr, error) {
	n, from, err := d.conn.ReadFromUDP(d.buf)
	if err != nil {
		return nil, 0, nil, err
	}
	util.Stats.AddRecv(n)
	pkt, sender, err := protocol.DecodeDatagram(d.buf[:n])
	if err != nil {
		return nil, 0, from, err
	}
	return pkt, sender, from, nil
}

func (d *Datagrams) LocalAddr() net.Addr { return d.conn.LocalAddr() }

func (d *Datagrams) Close() error { return d.conn.Close() }
