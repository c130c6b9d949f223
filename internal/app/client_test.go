package app

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/bluewing/internal/client"
	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/server"
)

// syncBuffer is a bytes.Buffer safe for the session goroutines that print
// into it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startRelay(t *testing.T) string {
	t.Helper()
	cfg := config.DefaultServer()
	cfg.Addr = "127.0.0.1:0"
	cfg.PingInterval = 0
	srv, err := server.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-srv.Ready()
	return srv.Addr().String()
}

func newConsole(t *testing.T) (*Console, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	cfg := config.DefaultClient()
	cfg.UDPAttempts = 0
	c := NewConsole(cfg, out)
	t.Cleanup(func() {
		if c.Session.Connected() {
			c.Session.Disconnect()
		}
	})
	return c, out
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 5*time.Millisecond, msg)
}

func TestConsoleParsing(t *testing.T) {
	c, _ := newConsole(t)

	tests := []struct {
		name string
		line string
		err  string
	}{
		{"blank", "   ", ""},
		{"comment", "# hello", ""},
		{"unknown", "fly away", `unknown command "fly"`},
		{"missing args", "send channel", "usage: send"},
		{"bad target", "send everyone 0 hi", `unknown target "everyone"`},
		{"bad subchannel", "send channel x hi", `bad subchannel "x"`},
		{"bad number", "number peer 1 lots", `bad number "lots"`},
		{"bad select", "select table 1", `cannot select "table"`},
		{"bin usage", "bin int", "usage: bin"},
		{"bad short", "bin short s", `bad short "s"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Exec(tt.line)
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}

	assert.ErrorIs(t, c.Exec("QUIT"), ErrQuit)
}

func TestParseTarget(t *testing.T) {
	for s, want := range map[string]client.Target{
		"server":  client.ToServer,
		"Channel": client.ToChannel,
		"PEER":    client.ToPeer,
	} {
		got, err := parseTarget(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestConsoleBinaryBuilder(t *testing.T) {
	c, out := newConsole(t)

	require.NoError(t, c.Exec("bin byte 7"))
	require.NoError(t, c.Exec("bin byte A"))
	require.NoError(t, c.Exec("bin short 513"))
	require.NoError(t, c.Exec("bin string hi there"))
	assert.Equal(t, 1+1+2+len("hi there")+1, c.Session.SendBinarySize())

	require.NoError(t, c.Exec("bin size"))
	assert.Contains(t, out.String(), "13 bytes")

	require.NoError(t, c.Exec("bin clear"))
	assert.Zero(t, c.Session.SendBinarySize())
}

func TestConsoleSession(t *testing.T) {
	host := startRelay(t)
	alice, aliceOut := newConsole(t)
	bob, bobOut := newConsole(t)

	for _, c := range []*Console{alice, bob} {
		require.NoError(t, c.Exec("connect "+host))
		eventually(t, c.Session.Connected, "console did not connect")
	}

	require.NoError(t, alice.Exec("name alice"))
	require.NoError(t, bob.Exec("name bob"))
	eventually(t, func() bool { return alice.Session.ClientHasAName() && bob.Session.ClientHasAName() }, "names not set")

	require.NoError(t, alice.Exec("join Lobby"))
	eventually(t, func() bool { return alice.Session.ChannelCount() == 1 }, "alice did not join")
	require.NoError(t, bob.Exec("join lobby"))
	eventually(t, func() bool { return bob.Session.ChannelCount() == 1 }, "bob did not join")

	require.NoError(t, bob.Exec("send channel 3 good morning"))
	eventually(t, func() bool { return strings.Contains(aliceOut.String(), `"good morning"`) }, "message not printed")

	require.NoError(t, bob.Exec("select master"))
	require.NoError(t, bob.Exec("number peer 0 99"))
	eventually(t, func() bool { return strings.Contains(aliceOut.String(), "] 99") }, "number not printed")

	require.NoError(t, alice.Exec("received"))
	assert.Contains(t, aliceOut.String(), "sent number on subchannel 0")

	require.NoError(t, bob.Exec("peers"))
	assert.Contains(t, bobOut.String(), "(master)")

	require.NoError(t, bob.Exec("list"))
	eventually(t, func() bool { return len(bob.Session.Listings()) == 1 }, "no channel list")
	require.NoError(t, bob.Exec("listed"))
	assert.Contains(t, bobOut.String(), "2 peer(s)")

	require.NoError(t, bob.Exec("status"))
	assert.Contains(t, bobOut.String(), `channel "Lobby", 1 peer(s), master: false`)

	require.NoError(t, bob.Exec("leave"))
	eventually(t, func() bool { return bob.Session.ChannelCount() == 0 }, "bob did not leave")
}

func TestRunClientStopsOnQuit(t *testing.T) {
	host := startRelay(t)
	out := &syncBuffer{}
	cfg := config.DefaultClient()
	cfg.UDPAttempts = 0

	in := strings.NewReader("help\nstatus\nquit\nname never\n")
	err := RunClient(context.Background(), cfg, host, in, out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "join or create a channel")
	assert.NotContains(t, out.String(), `name set to "never"`)
}
