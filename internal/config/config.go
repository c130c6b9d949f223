// Package config holds the relay server and client configuration types.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Role represents the process role chosen on the command line.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// DefaultPort is the relay port used when an address carries none.
const DefaultPort = 6121

var ErrInvalidAddress = errors.New("invalid relay address")

// Server stores every parameter of a relay server.
type Server struct {
	Addr           string        // TCP and UDP listen address
	WSAddr         string        // WebSocket listen address, empty to disable
	MetricsAddr    string        // Prometheus /metrics listen address, empty to disable
	Welcome        string        // sent to every client on connect
	MaxClients     int           // 0 for no limit
	MaxMessageSize int           // largest data payload relayed, in bytes
	PingInterval   time.Duration // 0 disables liveness pings
	FloodRate      float64       // sustained data messages per second per client, 0 for no limit
	FloodBurst     int
}

// DefaultServer returns the configuration used when no flags are given.
func DefaultServer() Server {
	return Server{
		Addr:           fmt.Sprintf(":%d", DefaultPort),
		Welcome:        "Welcome to the Bluewing relay.",
		MaxMessageSize: 1 << 20,
		PingInterval:   10 * time.Second,
		FloodRate:      200,
		FloodBurst:     400,
	}
}

func (s *Server) Validate() error {
	if s.Addr == "" {
		return fmt.Errorf("%w: listen address is empty", ErrInvalidAddress)
	}
	if s.MaxClients < 0 {
		return fmt.Errorf("max clients must not be negative, got %d", s.MaxClients)
	}
	if s.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive, got %d", s.MaxMessageSize)
	}
	if s.PingInterval < 0 {
		return fmt.Errorf("ping interval must not be negative, got %s", s.PingInterval)
	}
	if s.FloodRate < 0 || s.FloodBurst < 0 {
		return fmt.Errorf("flood limits must not be negative")
	}
	if s.FloodRate > 0 && s.FloodBurst == 0 {
		return fmt.Errorf("flood burst must be positive when a flood rate is set")
	}
	return nil
}

// Client stores every parameter of a relay client session.
type Client struct {
	AutomaticClear bool          // clear the binary builder after each binary send
	MaxMessageSize int           // builder and decompression limit, 0 for no limit
	DebugLocks     bool          // log every session lock acquisition and release
	UDPRetry       time.Duration // interval between UDP hello attempts
	UDPAttempts    int           // hello attempts before falling back to stream blasts
}

func DefaultClient() Client {
	return Client{
		MaxMessageSize: 16 << 20,
		UDPRetry:       500 * time.Millisecond,
		UDPAttempts:    10,
	}
}

func (c *Client) Validate() error {
	if c.MaxMessageSize < 0 {
		return fmt.Errorf("max message size must not be negative, got %d", c.MaxMessageSize)
	}
	if c.UDPAttempts < 0 || c.UDPRetry < 0 {
		return fmt.Errorf("UDP retry settings must not be negative")
	}
	return nil
}

// Address is a parsed relay host.
type Address struct {
	Host string
	Port int
	URL  string // set for WebSocket hosts
}

// WebSocket reports whether the address is a ws:// or wss:// URL.
func (a Address) WebSocket() bool { return a.URL != "" }

// HostPort returns the dialable host:port pair.
func (a Address) HostPort() string { return net.JoinHostPort(a.Host, strconv.Itoa(a.Port)) }

func (a Address) String() string {
	if a.URL != "" {
		return a.URL
	}
	return a.HostPort()
}

// ParseAddress splits host into a hostname and port. A missing port means
// DefaultPort. ws:// and wss:// URLs are kept whole and default to path /ws.
func ParseAddress(host string) (Address, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Address{}, fmt.Errorf("%w: hostname is empty", ErrInvalidAddress)
	}
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return parseWSAddress(host)
	}

	addr, hasPort, err := splitHost(host)
	if err != nil {
		return Address{}, err
	}
	if !hasPort {
		addr.Port = DefaultPort
	}
	return addr, nil
}

// splitHost parses "name", "name:port", "[v6]" or "[v6]:port". A bare IPv6
// literal with several colons is taken as a hostname without a port.
func splitHost(host string) (Address, bool, error) {
	if strings.Count(host, ":") != 1 && !strings.HasPrefix(host, "[") {
		return Address{Host: host}, false, nil
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return Address{Host: host[1 : len(host)-1]}, false, nil
	}

	name, portStr, err := net.SplitHostPort(host)
	if err != nil {
		return Address{}, false, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if name == "" {
		return Address{}, false, fmt.Errorf("%w: %q has no hostname", ErrInvalidAddress, host)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return Address{}, false, fmt.Errorf("%w: port %q is not a number", ErrInvalidAddress, portStr)
	}
	if p < 0 || p > 0xFFFF {
		return Address{}, false, fmt.Errorf("%w: port %d is not between 0 and 65535", ErrInvalidAddress, p)
	}
	return Address{Host: name, Port: p}, true, nil
}

func parseWSAddress(raw string) (Address, error) {
	scheme, rest, _ := strings.Cut(raw, "://")
	hostPort, path, _ := strings.Cut(rest, "/")
	if path == "" {
		path = "ws"
	}
	if hostPort == "" {
		return Address{}, fmt.Errorf("%w: %q has no hostname", ErrInvalidAddress, raw)
	}

	addr, hasPort, err := splitHost(hostPort)
	if err != nil {
		return Address{}, err
	}
	if !hasPort {
		addr.Port = 80
		if scheme == "wss" {
			addr.Port = 443
		}
	}
	addr.URL = scheme + "://" + hostPort + "/" + path
	return addr, nil
}
