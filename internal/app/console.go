package app

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/1ureka/bluewing/internal/client"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/topology"
)

// printers writes console output to one writer.
type printers struct {
	info    *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
	plain   io.Writer
}

func newPrinters(w io.Writer) printers {
	return printers{
		info:    pterm.Info.WithWriter(w),
		success: pterm.Success.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
		failure: pterm.Error.WithWriter(w),
		plain:   w,
	}
}

func (p printers) line(format string, args ...any) {
	fmt.Fprintf(p.plain, format+"\n", args...)
}

// describe renders a message's content on one line.
func describe(m *message.Message) string {
	switch m.Variant {
	case protocol.VariantText:
		if s, err := m.Text(); err == nil {
			return fmt.Sprintf("%q", s)
		}
	case protocol.VariantNumber:
		if n, err := m.Number(); err == nil {
			return fmt.Sprint(n)
		}
	}
	data := m.Content.Bytes()
	const preview = 16
	if len(data) > preview {
		return fmt.Sprintf("%d bytes [% x ...]", len(data), data[:preview])
	}
	return fmt.Sprintf("%d bytes [% x]", len(data), data)
}

// consoleHandler prints session events.
type consoleHandler struct {
	p printers
}

func (h consoleHandler) OnConnect(welcome string) {
	h.p.success.Printfln("connected: %s", welcome)
}

func (h consoleHandler) OnConnectDenied(reason string) {
	h.p.failure.Printfln("connection denied: %s", reason)
}

func (h consoleHandler) OnDisconnect()     { h.p.warning.Println("disconnected") }
func (h consoleHandler) OnError(err error) { h.p.failure.Println(err.Error()) }

func (h consoleHandler) OnNameSet(name string) { h.p.success.Printfln("name set to %q", name) }
func (h consoleHandler) OnNameDenied(name, reason string) {
	h.p.failure.Printfln("name %q denied: %s", name, reason)
}

func (h consoleHandler) OnChannelJoin(c client.ChannelEvent) {
	h.p.success.Printfln("joined channel %q (%d)", c.Name, c.ID)
}

func (h consoleHandler) OnChannelJoinDenied(name, reason string) {
	h.p.failure.Printfln("join %q denied: %s", name, reason)
}

func (h consoleHandler) OnChannelLeave(c client.ChannelEvent) {
	h.p.info.Printfln("left channel %q", c.Name)
}

func (h consoleHandler) OnChannelLeaveDenied(c client.ChannelEvent, reason string) {
	h.p.failure.Printfln("leave %q denied: %s", c.Name, reason)
}

func (h consoleHandler) OnChannelListReceived(l []topology.Listing) {
	h.p.info.Printfln("%d channel(s) listed, use 'listed' to show them", len(l))
}

func (h consoleHandler) OnPeerConnect(p client.PeerEvent) {
	h.p.info.Printfln("%s joined %s", p.Name, p.Channel.Name)
}

func (h consoleHandler) OnPeerDisconnect(p client.PeerEvent) {
	h.p.info.Printfln("%s left %s", p.Name, p.Channel.Name)
}

func (h consoleHandler) OnPeerChangeName(p client.PeerEvent) {
	h.p.info.Printfln("%s is now known as %s on %s", p.OldName, p.Name, p.Channel.Name)
}

func (h consoleHandler) OnMessage(m *message.Message) {
	from := m.Source.String()
	if m.Source == message.FromChannel || m.Source == message.FromPeer {
		from = fmt.Sprintf("%s %d", from, m.PeerID)
	}
	h.p.line("[%s/%s #%d] %s", from, m.Class, m.Subchannel, describe(m))
}

func (h consoleHandler) OnLoop(e client.LoopEvent) {
	if e.Finished {
		return
	}
	switch e.Kind {
	case client.LoopChannels:
		h.p.line("  %-20s id %d", e.Channel.Name, e.Channel.ID)
	case client.LoopPeers:
		master := ""
		if e.Peer.Master {
			master = " (master)"
		}
		h.p.line("  %-20s id %d%s", e.Peer.Name, e.Peer.ID, master)
	case client.LoopListedChannels:
		h.p.line("  %-20s %d peer(s)", e.Listing.Name, e.Listing.PeerCount)
	}
}
