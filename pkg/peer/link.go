package peer

import (
	"context"
	"sync"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
)

// Link negotiates with one remote participant.
//
// Negotiation steps are serialized by opMu and may block on the transport.
// Transport callbacks only take mu, so they never wait on a negotiation step.
// Remote candidates that arrive before the remote description is applied are
// buffered and replayed in arrival order right after it is applied. Local
// candidates gathered before the local description has been sent are held
// back so the peer always sees the offer or answer first.
type Link struct {
	peerID string
	role   Role
	tr     Transport
	out    Sender
	log    *logger.Logger
	notify func(l *Link, s State)

	opMu sync.Mutex

	mu            sync.Mutex
	state         State
	closed        bool
	localSent     bool
	remoteSet     bool
	pendingRemote []protocol.ICECandidate
	pendingLocal  []protocol.ICECandidate
}

func newLink(peerID string, role Role, tr Transport, out Sender, log *logger.Logger, notify func(*Link, State)) *Link {
	l := &Link{
		peerID: peerID,
		role:   role,
		tr:     tr,
		out:    out,
		log:    log,
		notify: notify,
		state:  StateNew,
	}
	tr.OnICECandidate(l.onLocalCandidate)
	tr.OnStateChange(l.onTransportState)
	return l
}

func (l *Link) PeerID() string { return l.peerID }
func (l *Link) Role() Role     { return l.role }

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Initiate creates the offer, commits it locally and sends it
func (l *Link) Initiate(ctx context.Context) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	if err := l.check(Initiator); err != nil {
		return err
	}

	offer, err := l.tr.CreateOffer(ctx)
	if err != nil {
		return l.fail("create-offer", err)
	}
	if offer.SDP == "" {
		return l.fail("create-offer", ErrNoLocalDescription)
	}
	if err := l.tr.SetLocalDescription(ctx, offer); err != nil {
		return l.fail("set-local-description", err)
	}

	return l.sendLocal(protocol.Offer{SDP: offer, Target: l.peerID})
}

// HandleOffer applies a remote offer and answers it
func (l *Link) HandleOffer(ctx context.Context, sdp protocol.SessionDescription) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	if err := l.check(Responder); err != nil {
		return err
	}

	if err := l.applyRemote(ctx, sdp); err != nil {
		return err
	}

	answer, err := l.tr.CreateAnswer(ctx)
	if err != nil {
		return l.fail("create-answer", err)
	}
	if answer.SDP == "" {
		return l.fail("create-answer", ErrNoLocalDescription)
	}
	if err := l.tr.SetLocalDescription(ctx, answer); err != nil {
		return l.fail("set-local-description", err)
	}

	return l.sendLocal(protocol.Answer{SDP: answer, Target: l.peerID})
}

// HandleAnswer applies the remote answer to our offer
func (l *Link) HandleAnswer(ctx context.Context, sdp protocol.SessionDescription) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	if err := l.check(Initiator); err != nil {
		return err
	}
	return l.applyRemote(ctx, sdp)
}

// AddRemoteCandidate applies a candidate, or buffers it until the remote
// description is in place.
func (l *Link) AddRemoteCandidate(c protocol.ICECandidate) error {
	l.opMu.Lock()
	defer l.opMu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	if !l.remoteSet {
		l.pendingRemote = append(l.pendingRemote, c)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.tr.AddICECandidate(c); err != nil {
		return l.fail("add-candidate", err)
	}
	return nil
}

// Close releases the transport. It is safe to call more than once; later
// calls do nothing.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	prev := l.state
	l.state = StateClosed
	l.pendingRemote = nil
	l.pendingLocal = nil
	l.mu.Unlock()

	err := l.tr.Close()
	if prev != StateClosed && l.notify != nil {
		l.notify(l, StateClosed)
	}
	return err
}

func (l *Link) check(role Role) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}
	if l.role != role {
		return &NegotiationError{Op: "role", PeerID: l.peerID, Err: ErrRoleMismatch}
	}
	return nil
}

func (l *Link) applyRemote(ctx context.Context, sdp protocol.SessionDescription) error {
	if err := l.tr.SetRemoteDescription(ctx, sdp); err != nil {
		return l.fail("set-remote-description", err)
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLinkClosed
	}
	l.remoteSet = true
	pending := l.pendingRemote
	l.pendingRemote = nil
	l.mu.Unlock()

	// opMu is held, so nothing new can jump ahead of the replay
	for _, c := range pending {
		if err := l.tr.AddICECandidate(c); err != nil {
			l.log.Warn("buffered candidate for %s rejected: %v", l.peerID, err)
		}
	}
	if len(pending) > 0 {
		l.log.Debug("replayed %d buffered candidates for %s", len(pending), l.peerID)
	}
	return nil
}

// sendLocal sends the committed description followed by any candidates
// gathered while it was being committed.
func (l *Link) sendLocal(msg protocol.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLinkClosed
	}
	if err := l.out.Send(msg); err != nil {
		return &NegotiationError{Op: "send-" + string(msg.Kind()), PeerID: l.peerID, Err: err}
	}
	for _, c := range l.pendingLocal {
		l.sendCandidateLocked(c)
	}
	l.pendingLocal = nil
	l.localSent = true
	return nil
}

func (l *Link) onLocalCandidate(c protocol.ICECandidate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if !l.localSent {
		l.pendingLocal = append(l.pendingLocal, c)
		return
	}
	l.sendCandidateLocked(c)
}

func (l *Link) sendCandidateLocked(c protocol.ICECandidate) {
	if err := l.out.Send(protocol.IceCandidate{Candidate: c, Target: l.peerID}); err != nil {
		l.log.Warn("failed to send candidate to %s: %v", l.peerID, err)
	}
}

func (l *Link) onTransportState(s State) {
	l.mu.Lock()
	if l.closed || l.state == s {
		l.mu.Unlock()
		return
	}
	l.state = s
	l.mu.Unlock()

	l.log.Debug("link %s (%s) is %s", l.peerID, l.role, s)
	if l.notify != nil {
		l.notify(l, s)
	}
}

// fail wraps a negotiation error. The link keeps its current state.
func (l *Link) fail(op string, err error) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrLinkClosed
	}
	return &NegotiationError{Op: op, PeerID: l.peerID, Err: err}
}
