// Package peer drives one negotiation per remote participant and tracks the
// resulting connectivity.
package peer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tphan267/huddle/pkg/protocol"
)

var (
	ErrLinkClosed         = errors.New("link is closed")
	ErrHubClosed          = errors.New("session is shutting down")
	ErrRoleMismatch       = errors.New("operation not allowed for this role")
	ErrNoLocalDescription = errors.New("no local description was produced")
)

// Role is fixed when a link is created
type Role int

const (
	Initiator Role = iota
	Responder
)

func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

// State mirrors the connectivity the transport reports
type State int

const (
	StateNew State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transport is one platform peer connection. Description calls may block
// while the platform works; callbacks may arrive on any goroutine.
type Transport interface {
	CreateOffer(ctx context.Context) (protocol.SessionDescription, error)
	CreateAnswer(ctx context.Context) (protocol.SessionDescription, error)
	SetLocalDescription(ctx context.Context, sdp protocol.SessionDescription) error
	SetRemoteDescription(ctx context.Context, sdp protocol.SessionDescription) error
	AddICECandidate(c protocol.ICECandidate) error
	OnICECandidate(fn func(c protocol.ICECandidate))
	OnStateChange(fn func(s State))
	Close() error
}

// TransportFactory builds a transport for a remote participant
type TransportFactory interface {
	NewTransport(peerID string) (Transport, error)
}

// Sender delivers outgoing negotiation messages to the signaling server
type Sender interface {
	Send(msg protocol.Message) error
}

// NegotiationError reports a failed negotiation step for one peer
type NegotiationError struct {
	Op     string
	PeerID string
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s failed at %s: %v", e.PeerID, e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}
