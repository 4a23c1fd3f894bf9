package signaling

import (
	"context"
	"errors"

	"github.com/tphan267/huddle/pkg/protocol"
)

var (
	ErrNotConnected = errors.New("not connected to signaling server")
	ErrQueueFull    = errors.New("outbound queue is full")
)

// Handler receives everything the server sends, one message at a time and in
// arrival order.
type Handler interface {
	HandleMessage(ctx context.Context, msg protocol.Message) error
	// HandleDisconnect is called once when the connection drops without Close
	HandleDisconnect(err error)
}

// HandlerFuncs adapts plain functions to Handler
type HandlerFuncs struct {
	OnMessage    func(ctx context.Context, msg protocol.Message) error
	OnDisconnect func(err error)
}

func (h HandlerFuncs) HandleMessage(ctx context.Context, msg protocol.Message) error {
	if h.OnMessage == nil {
		return nil
	}
	return h.OnMessage(ctx, msg)
}

func (h HandlerFuncs) HandleDisconnect(err error) {
	if h.OnDisconnect != nil {
		h.OnDisconnect(err)
	}
}
