// Package relay forwards negotiation messages between members of one room.
package relay

import (
	"sync/atomic"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
)

// Outcome reports what happened to one relayed message
type Outcome int

const (
	OutcomeForwarded Outcome = iota
	// OutcomeDropped means the target is gone or lives in another room
	OutcomeDropped
	// OutcomeBackpressure means the target is live but its queue is full
	OutcomeBackpressure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeDropped:
		return "dropped"
	case OutcomeBackpressure:
		return "backpressure"
	default:
		return "unknown"
	}
}

// Router delivers a message to a target in the sender's room. The lookup
// and the send must be one step with respect to the target leaving.
type Router interface {
	Deliver(from, target string, msg protocol.Message) (found, queued bool)
}

// Stats are cumulative relay counters
type Stats struct {
	Forwarded    uint64 `json:"forwarded"`
	Dropped      uint64 `json:"dropped"`
	Backpressure uint64 `json:"backpressure"`
}

// Relay holds no routing state of its own; every lookup goes to the Router.
type Relay struct {
	router Router
	log    *logger.Logger

	forwarded, dropped, backpressure atomic.Uint64
}

func New(router Router, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	return &Relay{router: router, log: log.Named("Relay")}
}

// Relay forwards msg to its target with From set to the sender. A missing
// target is not an error: the message is stale and is dropped without telling
// the sender.
func (r *Relay) Relay(from string, msg protocol.Routed) Outcome {
	target := msg.TargetID()

	found, queued := r.router.Deliver(from, target, msg.WithFrom(from))
	if !found {
		r.dropped.Add(1)
		r.log.Debug("dropped %s from %s: target %q not in room", msg.Kind(), from, target)
		return OutcomeDropped
	}

	if !queued {
		r.backpressure.Add(1)
		r.log.Warn("dropped %s from %s: queue for %s is full", msg.Kind(), from, target)
		return OutcomeBackpressure
	}

	r.forwarded.Add(1)
	return OutcomeForwarded
}

func (r *Relay) Stats() Stats {
	return Stats{
		Forwarded:    r.forwarded.Load(),
		Dropped:      r.dropped.Load(),
		Backpressure: r.backpressure.Load(),
	}
}
