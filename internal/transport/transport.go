// Package transport carries relay frames over stream links and datagrams.
package transport

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/1ureka/bluewing/internal/protocol"
)

// Transport wraps a single Link, providing fire-and-forget packet sending
// through a dedicated writer goroutine and blocking packet receiving for the
// owner's read loop.
//
// Its lifecycle is governed by the Link and the context passed at
// construction time: a failed write, a failed read, or cancellation of ctx
// shuts it down.
type Transport struct {
	link   Link
	sender *sender

	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
	closeErr  error
}

// New creates a Transport over link and starts its writer goroutine.
func New(ctx context.Context, link Link) *Transport {
	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		link:   link,
		ctx:    tCtx,
		cancel: tCancel,
	}
	t.sender = newSender(tCtx, link, t.fail)

	// Unblock the reader once the transport is shut down from anywhere.
	go func() {
		<-tCtx.Done()
		t.Close()
	}()

	return t
}

func (t *Transport) fail(err error) {
	t.mu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.mu.Unlock()
	t.cancel()
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Done returns a channel that is closed when the Transport is shut down.
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Err returns the first I/O error that shut the transport down, if any.
func (t *Transport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close shuts down the writer goroutine and the underlying link.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.closeErr = t.link.Close()
	})
	return t.closeErr
}

func (t *Transport) RemoteAddr() net.Addr { return t.link.RemoteAddr() }

// ---------------------------------------------------------------------------
// Data
// ---------------------------------------------------------------------------

// Send enqueues pkt for the writer goroutine. It never reports I/O errors;
// those surface through Done and Err.
func (t *Transport) Send(pkt *protocol.Packet) {
	t.sender.send(t.ctx, pkt)
}

// Receive blocks for the next inbound packet. Only one goroutine may call it.
func (t *Transport) Receive() (*protocol.Packet, error) {
	pkt, err := t.link.ReadPacket()
	if err != nil {
		if t.ctx.Err() == nil {
			t.fail(err)
		}
		return nil, errors.Join(err, t.Err())
	}
	return pkt, nil
}
