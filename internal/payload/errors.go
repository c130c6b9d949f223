// Package payload composes outgoing message content and decodes received content.
package payload

import "errors"

var (
	ErrNegativeIndex = errors.New("payload: negative index")
	ErrOutOfBounds   = errors.New("payload: amount of message remaining is smaller than variable to be read")
	ErrInvalidUTF8   = errors.New("payload: text is not valid UTF-8")
	ErrNoTerminator  = errors.New("payload: text has no null terminator")
	ErrNotASCII      = errors.New("payload: byte is not an ANSI character")
	ErrUnprintable   = errors.New("payload: byte is not a printable character")
	ErrOutOfRange    = errors.New("payload: value out of range")
	ErrTooLarge      = errors.New("payload: message would exceed the size limit")
	ErrBadFormat     = errors.New("payload: invalid dump format")
)
