package websocket

import (
	"context"
	"errors"

	"hiring-chat-be/internal/entity"
)

var (
	ErrSinkClosed      = errors.New("connection closed")
	ErrSendBufferFull  = errors.New("connection send buffer full")
	errMissingIdentity = errors.New("connection has no identity")
)

// Sink is one live connection as seen by the Hub and the dispatcher.
// Push never blocks.
type Sink interface {
	ID() string
	Identity() entity.Identity
	Push(frame []byte) error
	Close()
}

// EventHandler receives a connection's lifecycle and its inbound frames.
// Handle is called from the connection's read pump, one frame at a time.
type EventHandler interface {
	Connect(ctx context.Context, sink Sink) error
	Handle(ctx context.Context, sink Sink, frame []byte)
	Disconnect(sink Sink)
}
