package transport

import (
	"context"

	"github.com/1ureka/bluewing/internal/protocol"
	"github.com/1ureka/bluewing/internal/util"
)

const sendBufferSize = 256 // outgoing packet channel capacity

// sender is a goroutine-based packet writer that serializes all writes to a
// single Link.
type sender struct {
	inbox chan *protocol.Packet
}

// newSender creates a sender and starts the background loop. The loop exits
// when ctx is cancelled or a write fails, calling fail in the latter case.
func newSender(ctx context.Context, link Link, fail func(error)) *sender {
	s := &sender{
		inbox: make(chan *protocol.Packet, sendBufferSize),
	}

	go s.loop(ctx, link, fail)

	return s
}

// loop is the single-writer goroutine.
func (s *sender) loop(ctx context.Context, link Link, fail func(error)) {
	for {
		select {
		case pkt := <-s.inbox:
			if err := link.WritePacket(pkt); err != nil {
				util.LogDebug("failed to send %s frame to %s: %v", pkt.Kind, link.RemoteAddr(), err)
				fail(err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// send enqueues a packet for transmission. It blocks if the internal buffer
// is full and returns silently when ctx is already cancelled.
func (s *sender) send(ctx context.Context, pkt *protocol.Packet) {
	select {
	case s.inbox <- pkt:
	case <-ctx.Done():
	}
}
