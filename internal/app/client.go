package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/1ureka/bluewing/internal/client"
	"github.com/1ureka/bluewing/internal/config"
	"github.com/1ureka/bluewing/internal/payload"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	args  int // minimum argument count
	run   func(c *Console, args []string) error
}

// Console drives a client session from text commands, one per line.
type Console struct {
	Session *client.Session
	p       printers
	cmds    map[string]command
}

// NewConsole creates a console whose session and command output go to out.
func NewConsole(cfg config.Client, out io.Writer) *Console {
	p := newPrinters(out)
	return &Console{
		Session: client.New(cfg, consoleHandler{p: p}),
		p:       p,
		cmds:    commands(),
	}
}

// RunClient reads commands from in until it is exhausted, ctx is cancelled or
// the quit command is given. When host is set the console connects first.
func RunClient(ctx context.Context, cfg config.Client, host string, in io.Reader, out io.Writer) error {
	c := NewConsole(cfg, out)
	defer func() {
		if c.Session.Connected() {
			c.Session.Disconnect()
		}
	}()

	if host != "" {
		if err := c.Exec("connect " + host); err != nil {
			return err
		}
	}
	c.p.info.Println("type 'help' for a list of commands")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.Exec(line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				c.p.warning.Println(err.Error())
			}
		}
	}
}

// Exec runs one command line. Blank lines and lines starting with '#' are
// ignored.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	cmd, ok := c.cmds[name]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help'", name)
	}
	if len(args) < cmd.args {
		return fmt.Errorf("usage: %s %s", name, cmd.usage)
	}
	return cmd.run(c, args)
}

func commands() map[string]command {
	send := func(blast bool) func(c *Console, args []string) error {
		return func(c *Console, args []string) error {
			target, sub, err := targetArgs(args)
			if err != nil {
				return err
			}
			text := strings.Join(args[2:], " ")
			if blast {
				return c.Session.BlastText(target, sub, text)
			}
			return c.Session.SendText(target, sub, text)
		}
	}
	number := func(blast bool) func(c *Console, args []string) error {
		return func(c *Console, args []string) error {
			target, sub, err := targetArgs(args)
			if err != nil {
				return err
			}
			n, err := strconv.ParseInt(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("bad number %q", args[2])
			}
			if blast {
				return c.Session.BlastNumber(target, sub, int32(n))
			}
			return c.Session.SendNumber(target, sub, int32(n))
		}
	}
	binary := func(blast bool) func(c *Console, args []string) error {
		return func(c *Console, args []string) error {
			target, sub, err := targetArgs(args)
			if err != nil {
				return err
			}
			if blast {
				return c.Session.BlastBinary(target, sub)
			}
			return c.Session.SendBinary(target, sub)
		}
	}

	return map[string]command{
		"help": {help: "list commands", run: (*Console).help},
		"quit": {help: "leave the console", run: func(*Console, []string) error { return ErrQuit }},

		"connect": {usage: "<host[:port] | ws://url>", help: "connect to a relay", args: 1,
			run: func(c *Console, args []string) error { return c.Session.Connect(args[0]) }},
		"disconnect": {help: "close the connection",
			run: func(c *Console, _ []string) error { return c.Session.Disconnect() }},
		"name": {usage: "<name>", help: "set the client name", args: 1,
			run: func(c *Console, args []string) error { return c.Session.SetName(strings.Join(args, " ")) }},
		"join": {usage: "<channel> [hidden] [autoclose]", help: "join or create a channel", args: 1,
			run: func(c *Console, args []string) error {
				flags := args[1:]
				return c.Session.Join(args[0], slices.Contains(flags, "hidden"), slices.Contains(flags, "autoclose"))
			}},
		"leave": {usage: "[channel]", help: "leave the selected or named channel",
			run: func(c *Console, args []string) error {
				if len(args) > 0 {
					if err := c.Session.SelectChannelByName(args[0]); err != nil {
						return err
					}
				}
				return c.Session.Leave()
			}},
		"list": {help: "ask the relay for its public channels",
			run: func(c *Console, _ []string) error { return c.Session.RequestChannelList() }},
		"listed": {help: "show the last channel list received",
			run: func(c *Console, _ []string) error { c.Session.ForEachListedChannel("listed"); return nil }},
		"channels": {help: "show joined channels",
			run: func(c *Console, _ []string) error { c.Session.ForEachChannel("channels"); return nil }},
		"peers": {help: "show peers of the selected channel",
			run: func(c *Console, _ []string) error { return c.Session.ForEachPeer("peers") }},
		"select": {usage: "channel <name> | peer <name> | id <id> | master", help: "change the selection", args: 1,
			run: (*Console).selectCmd},
		"status": {help: "show the session state", run: (*Console).status},

		"send":        {usage: "<server|channel|peer> <subchannel> <text>", help: "send text", args: 3, run: send(false)},
		"blast":       {usage: "<server|channel|peer> <subchannel> <text>", help: "blast text", args: 3, run: send(true)},
		"number":      {usage: "<server|channel|peer> <subchannel> <n>", help: "send a number", args: 3, run: number(false)},
		"blastnumber": {usage: "<server|channel|peer> <subchannel> <n>", help: "blast a number", args: 3, run: number(true)},
		"sendbin":     {usage: "<server|channel|peer> <subchannel>", help: "send the binary being built", args: 2, run: binary(false)},
		"blastbin":    {usage: "<server|channel|peer> <subchannel>", help: "blast the binary being built", args: 2, run: binary(true)},

		"bin": {usage: "byte|short|int|float|string|file <value> | compress | clear | size",
			help: "build the binary to send", args: 1, run: (*Console).bin},

		"received": {help: "show the last message received", run: (*Console).received},

		"dump": {usage: "<format> [index]", help: "dump the last message received, e.g. 'dump c2+h3i'", args: 1,
			run: (*Console).dump},
		"cursor": {usage: "<position>", help: "move the read cursor of the last message", args: 1,
			run: func(c *Console, args []string) error {
				pos, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("bad position %q", args[0])
				}
				return c.Session.MoveCursor(pos)
			}},
		"decompress": {help: "inflate the last message received",
			run: func(c *Console, _ []string) error { return c.Session.DecompressReceivedBinary() }},
	}
}

func (c *Console) help(_ []string) error {
	names := make([]string, 0, len(c.cmds))
	for n := range c.cmds {
		names = append(names, n)
	}
	slices.Sort(names)
	for _, n := range names {
		cmd := c.cmds[n]
		c.p.line("  %-30s %s", strings.TrimSpace(n+" "+cmd.usage), cmd.help)
	}
	return nil
}

func parseTarget(s string) (client.Target, error) {
	for _, t := range []client.Target{client.ToServer, client.ToChannel, client.ToPeer} {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown target %q, want server, channel or peer", s)
}

func targetArgs(args []string) (client.Target, int, error) {
	t, err := parseTarget(args[0])
	if err != nil {
		return 0, 0, err
	}
	sub, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad subchannel %q", args[1])
	}
	return t, sub, nil
}

func (c *Console) selectCmd(args []string) error {
	what := strings.ToLower(args[0])
	if what == "master" {
		return c.Session.SelectChannelMaster()
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: select %s", c.cmds["select"].usage)
	}
	switch what {
	case "channel":
		return c.Session.SelectChannelByName(args[1])
	case "peer":
		return c.Session.SelectPeerByName(args[1])
	case "id":
		id, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad peer ID %q", args[1])
		}
		return c.Session.SelectPeerByID(id)
	}
	return fmt.Errorf("cannot select %q", args[0])
}

func (c *Console) status(_ []string) error {
	s := c.Session
	if !s.Connected() {
		c.p.line("not connected")
		return nil
	}
	id, _ := s.ID()
	addr, _ := s.Address()
	c.p.line("client %d %q on %s, %d channel(s)", id, s.Name(), addr, s.ChannelCount())
	if name, err := s.SelectedChannelName(); err == nil {
		n, _ := s.SelectedChannelPeerCount()
		master, _ := s.YouAreChannelMaster()
		c.p.line("channel %q, %d peer(s), master: %t", name, n, master)
	}
	if name, err := s.SelectedPeerName(); err == nil {
		id, _ := s.SelectedPeerID()
		c.p.line("peer %q (%d)", name, id)
	}
	return nil
}

func (c *Console) bin(args []string) error {
	op := strings.ToLower(args[0])
	switch op {
	case "clear":
		c.Session.ClearBinaryToSend()
		return nil
	case "compress":
		return c.Session.CompressSendBinary()
	case "size":
		c.p.line("%d bytes", c.Session.SendBinarySize())
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: bin %s", c.cmds["bin"].usage)
	}
	value := strings.Join(args[1:], " ")

	return c.Session.Compose(func(b *payload.Builder) error {
		switch op {
		case "byte":
			n, err := strconv.Atoi(value)
			if err != nil {
				return b.AddByteText(value)
			}
			return b.AddByte(n)
		case "short":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("bad short %q", value)
			}
			return b.AddShort(n)
		case "int":
			n, err := strconv.ParseInt(value, 10, 32)
			if err != nil {
				return fmt.Errorf("bad int %q", value)
			}
			return b.AddInt(int32(n))
		case "float":
			f, err := strconv.ParseFloat(value, 32)
			if err != nil {
				return fmt.Errorf("bad float %q", value)
			}
			return b.AddFloat(float32(f))
		case "string":
			return b.AddString(value)
		case "file":
			return b.AddFile(value)
		}
		return fmt.Errorf("cannot add %q to the binary", op)
	})
}

func (c *Console) received(_ []string) error {
	m, err := c.Session.Received()
	if err != nil {
		return err
	}
	c.p.line("%s %s on subchannel %d, %s, cursor at %d: %s",
		m.Class, m.Variant, m.Subchannel, m.Source, m.Content.Cursor(), describe(m))
	return nil
}

func (c *Console) dump(args []string) error {
	m, err := c.Session.Received()
	if err != nil {
		return err
	}
	index := 0
	if len(args) > 1 {
		if index, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("bad index %q", args[1])
		}
	}
	out, err := m.Content.Dump(index, args[0])
	if err != nil {
		return err
	}
	c.p.line("%s", out)
	return nil
}
