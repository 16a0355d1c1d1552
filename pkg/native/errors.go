package native

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelOpen is returned when the generator cannot be launched.
	ErrChannelOpen = errors.New("native channel could not be opened")

	// ErrTimeout is returned when a request gets no answer in time.
	ErrTimeout = errors.New("generator did not respond in time")

	// ErrDisconnected is returned when the generator goes away while a
	// request is outstanding.
	ErrDisconnected = errors.New("generator disconnected")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("native channel closed")

	// ErrFrameTooLarge is a transport error for frames above MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrUnknownMessage is returned by Decode for payloads that match no
	// known message shape.
	ErrUnknownMessage = errors.New("unrecognized generator message")
)

// GeneratorError carries the text of an {"error": ...} reply.
type GeneratorError struct {
	Message string
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("generator error: %s", e.Message)
}
