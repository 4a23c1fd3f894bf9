package peer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tphan267/huddle/pkg/logger"
)

// Status is the summary shown to the user
type Status struct {
	Connected int
}

func (s Status) IsConnected() bool { return s.Connected > 0 }

func (s Status) String() string {
	if s.Connected > 0 {
		return fmt.Sprintf("Connected (%d)", s.Connected)
	}
	return "Connecting..."
}

// Listener receives per-peer and overall connectivity updates
type Listener interface {
	PeerStateChanged(peerID string, state State)
	StatusChanged(status Status)
}

// Hub owns the set of links of one session. At most one link exists per
// remote participant.
//
// Lock order is hub then link: a link never calls back into the hub while
// holding its own lock.
type Hub struct {
	factory  TransportFactory
	out      Sender
	listener Listener
	log      *logger.Logger

	mu     sync.Mutex
	links  map[string]*Link
	closed bool
}

func NewHub(factory TransportFactory, out Sender, listener Listener, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	return &Hub{
		factory:  factory,
		out:      out,
		listener: listener,
		log:      log.Named("Peers"),
		links:    make(map[string]*Link),
	}
}

// Open returns the link for peerID, creating it with the given role when
// there is none. The bool reports whether a new link was created. An existing
// link keeps its original role. After CloseAll it fails with ErrHubClosed.
func (h *Hub) Open(peerID string, role Role) (*Link, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, false, ErrHubClosed
	}

	if l, ok := h.links[peerID]; ok {
		return l, false, nil
	}

	tr, err := h.factory.NewTransport(peerID)
	if err != nil {
		h.log.Error("no link for %s: %v", peerID, err)
		return nil, false, &NegotiationError{Op: "new-transport", PeerID: peerID, Err: err}
	}

	l := newLink(peerID, role, tr, h.out, h.log, h.onLinkState)
	h.links[peerID] = l
	h.log.Info("opened %s link to %s", role, peerID)
	return l, true, nil
}

func (h *Hub) Get(peerID string) (*Link, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.links[peerID]
	return l, ok
}

// Close closes and forgets the link to peerID
func (h *Hub) Close(peerID string) bool {
	h.mu.Lock()
	l, ok := h.links[peerID]
	if ok {
		delete(h.links, peerID)
	}
	h.mu.Unlock()

	if !ok {
		return false
	}
	if err := l.Close(); err != nil {
		h.log.Warn("closing link to %s: %v", peerID, err)
	}
	return true
}

// CloseAll closes every link and refuses new ones. A failing link does not
// stop the others.
func (h *Hub) CloseAll() error {
	h.mu.Lock()
	h.closed = true
	links := make([]*Link, 0, len(h.links))
	for _, l := range h.links {
		links = append(links, l)
	}
	h.links = make(map[string]*Link)
	h.mu.Unlock()

	var errs []error
	for _, l := range links {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.PeerID(), err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		h.log.Warn("teardown finished with errors: %v", err)
	}
	return err
}

// Links returns the current links ordered by peer id
func (h *Hub) Links() []*Link {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*Link, 0, len(h.links))
	for _, l := range h.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].peerID < out[j].peerID })
	return out
}

func (h *Hub) OverallStatus() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

func (h *Hub) statusLocked() Status {
	n := 0
	for _, l := range h.links {
		if l.State() == StateConnected {
			n++
		}
	}
	return Status{Connected: n}
}

func (h *Hub) onLinkState(l *Link, s State) {
	if h.listener != nil {
		h.listener.PeerStateChanged(l.peerID, s)
	}

	// no automatic reconnect: a failed or closed link is given up on
	if s == StateFailed || s == StateClosed {
		h.mu.Lock()
		if cur, ok := h.links[l.peerID]; ok && cur == l {
			delete(h.links, l.peerID)
		}
		h.mu.Unlock()

		if s == StateFailed {
			h.log.Warn("link to %s failed, closing it", l.peerID)
			// Close notifies StateClosed, which lands back here
			_ = l.Close()
			return
		}
		// the transport may close on its own; release what is left
		_ = l.Close()
	}

	status := h.OverallStatus()
	if h.listener != nil {
		h.listener.StatusChanged(status)
	}
}
