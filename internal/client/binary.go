package client

import (
	"fmt"

	"github.com/1ureka/bluewing/internal/compress"
	"github.com/1ureka/bluewing/internal/message"
	"github.com/1ureka/bluewing/internal/payload"
)

// Compose runs fn against the outgoing binary under the session lock.
//
//	s.Compose(func(b *payload.Builder) error {
//		if err := b.AddShort(7); err != nil {
//			return err
//		}
//		return b.AddString("hello")
//	})
func (s *Session) Compose(fn func(b *payload.Builder) error) error {
	return s.locked(func() error {
		if err := fn(s.send); err != nil {
			return fmt.Errorf("could not build binary: %w", err)
		}
		return nil
	})
}

// SendBinarySize returns the outgoing binary length.
func (s *Session) SendBinarySize() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.send.Len()
}

// ResizeBinaryToSend sets the outgoing binary to exactly n bytes,
// zero-filling any growth.
func (s *Session) ResizeBinaryToSend(n int) error {
	return s.locked(func() error {
		if err := s.send.Resize(n); err != nil {
			return fmt.Errorf("could not resize binary to %d bytes: %w", n, err)
		}
		return nil
	})
}

func (s *Session) ClearBinaryToSend() {
	s.lock.Lock()
	s.send.Clear()
	s.lock.Unlock()
}

// CompressSendBinary deflates the outgoing binary in place. On failure the
// binary is left as it was.
func (s *Session) CompressSendBinary() error {
	return s.locked(func() error {
		packed, err := compress.Compress(s.send.Bytes())
		if err != nil {
			return fmt.Errorf("could not compress binary to send: %w", err)
		}
		s.send.Replace(packed)
		return nil
	})
}

// Received returns the last message received.
func (s *Session) Received() (*message.Message, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.received == nil {
		return nil, ErrNoMessage
	}
	return s.received, nil
}

// receivedContent returns the last message's content. Callers hold the lock.
func (s *Session) receivedContent(op string) (*payload.Buffer, error) {
	if s.received == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoMessage)
	}
	return s.received.Content, nil
}

// ReceivedSize returns the length of the last message received.
func (s *Session) ReceivedSize() (n int, err error) {
	err = s.locked(func() error {
		buf, err := s.receivedContent("could not read message size")
		if err != nil {
			return err
		}
		n = buf.Len()
		return nil
	})
	return n, err
}

// MoveCursor places the read cursor of the last message received.
func (s *Session) MoveCursor(pos int) error {
	return s.locked(func() error {
		buf, err := s.receivedContent("could not move cursor")
		if err != nil {
			return err
		}
		if err := buf.Seek(pos); err != nil {
			return fmt.Errorf("could not move cursor: %w", err)
		}
		return nil
	})
}

// DecompressReceivedBinary inflates the last message received in place and
// rewinds its cursor. Every handle to the message sees the new content. On
// failure the content is left as it was.
func (s *Session) DecompressReceivedBinary() error {
	return s.locked(func() error {
		buf, err := s.receivedContent("could not decompress received binary")
		if err != nil {
			return err
		}
		plain, err := compress.Decompress(buf.Bytes(), s.cfg.MaxMessageSize)
		if err != nil {
			return fmt.Errorf("could not decompress received binary: %w", err)
		}
		buf.Replace(plain)
		return nil
	})
}
