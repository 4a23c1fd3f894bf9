package peer

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/protocol"
)

var errRejected = errors.New("rejected")

type fakeTransport struct {
	mu          sync.Mutex
	calls       []string
	candidates  []protocol.ICECandidate
	onCandidate func(protocol.ICECandidate)
	onState     func(State)
	closed      int

	failRemote bool
	// emitOnLocal simulates candidates gathered while the description commits
	emitOnLocal []protocol.ICECandidate
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeTransport) CreateOffer(ctx context.Context) (protocol.SessionDescription, error) {
	f.record("create-offer")
	return protocol.SessionDescription{Type: "offer", SDP: "v=0 offer"}, nil
}

func (f *fakeTransport) CreateAnswer(ctx context.Context) (protocol.SessionDescription, error) {
	f.record("create-answer")
	return protocol.SessionDescription{Type: "answer", SDP: "v=0 answer"}, nil
}

func (f *fakeTransport) SetLocalDescription(ctx context.Context, sdp protocol.SessionDescription) error {
	f.record("set-local")
	for _, c := range f.emitOnLocal {
		f.onCandidate(c)
	}
	return nil
}

func (f *fakeTransport) SetRemoteDescription(ctx context.Context, sdp protocol.SessionDescription) error {
	f.record("set-remote")
	if f.failRemote {
		return errRejected
	}
	return nil
}

func (f *fakeTransport) AddICECandidate(c protocol.ICECandidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "add-candidate:"+c.Candidate)
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakeTransport) OnICECandidate(fn func(protocol.ICECandidate)) { f.onCandidate = fn }
func (f *fakeTransport) OnStateChange(fn func(State))                   { f.onState = fn }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeFactory struct {
	mu         sync.Mutex
	transports map[string]*fakeTransport
	fail       bool
}

func (f *fakeFactory) NewTransport(peerID string) (Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("out of sockets")
	}
	if f.transports == nil {
		f.transports = make(map[string]*fakeTransport)
	}
	tr := &fakeTransport{}
	f.transports[peerID] = tr
	return tr, nil
}

func (f *fakeFactory) get(peerID string) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transports[peerID]
}

type outbox struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (o *outbox) Send(msg protocol.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) kinds() []protocol.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]protocol.Kind, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.Kind())
	}
	return out
}

type statusLog struct {
	mu       sync.Mutex
	peers    []string
	statuses []Status
}

func (s *statusLog) PeerStateChanged(peerID string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers = append(s.peers, peerID+":"+state.String())
}

func (s *statusLog) StatusChanged(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusLog) last() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return Status{}
	}
	return s.statuses[len(s.statuses)-1]
}

func quietLogger() *logger.Logger {
	return logger.New(io.Discard, "TEST", logger.ErrorLevel)
}

func candidate(s string) protocol.ICECandidate {
	return protocol.ICECandidate{Candidate: s}
}
