package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/peer"
	"github.com/tphan267/huddle/pkg/protocol"
)

// events is shared by all fakes so teardown order can be checked
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type fakeSignaler struct {
	ev   *events
	mu   sync.Mutex
	sent []protocol.Message
}

func (f *fakeSignaler) Send(msg protocol.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	f.ev.add("send:" + string(msg.Kind()))
	return nil
}

func (f *fakeSignaler) Close() error {
	f.ev.add("close-signaling")
	return nil
}

func (f *fakeSignaler) ofKind(kind protocol.Kind) []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.Message
	for _, m := range f.sent {
		if m.Kind() == kind {
			out = append(out, m)
		}
	}
	return out
}

type fakeTransport struct {
	id      string
	ev      *events
	onState func(peer.State)
}

func (f *fakeTransport) CreateOffer(context.Context) (protocol.SessionDescription, error) {
	return protocol.SessionDescription{Type: "offer", SDP: "v=0"}, nil
}

func (f *fakeTransport) CreateAnswer(context.Context) (protocol.SessionDescription, error) {
	return protocol.SessionDescription{Type: "answer", SDP: "v=0"}, nil
}

func (f *fakeTransport) SetLocalDescription(context.Context, protocol.SessionDescription) error {
	return nil
}

func (f *fakeTransport) SetRemoteDescription(context.Context, protocol.SessionDescription) error {
	return nil
}

func (f *fakeTransport) AddICECandidate(protocol.ICECandidate) error { return nil }
func (f *fakeTransport) OnICECandidate(func(protocol.ICECandidate)) {}
func (f *fakeTransport) OnStateChange(fn func(peer.State))          { f.onState = fn }

func (f *fakeTransport) Close() error {
	f.ev.add("close-link:" + f.id)
	if f.id == "broken" {
		return errors.New("already torn down")
	}
	return nil
}

type fakeFactory struct {
	ev         *events
	mu         sync.Mutex
	transports map[string]*fakeTransport
}

func (f *fakeFactory) NewTransport(peerID string) (peer.Transport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr := &fakeTransport{id: peerID, ev: f.ev}
	f.transports[peerID] = tr
	return tr, nil
}

type fakeMic struct {
	ev      *events
	enabled bool
}

func (m *fakeMic) Enabled() bool     { return m.enabled }
func (m *fakeMic) SetEnabled(v bool) { m.enabled = v }
func (m *fakeMic) Stop()             { m.ev.add("stop-media") }

type recordingObserver struct {
	nopObserver
	mu           sync.Mutex
	participants []protocol.Participant
	notices      []string
	disconnects  []error
	statuses     []peer.Status
	mic          []bool
}

func (o *recordingObserver) ParticipantsChanged(p []protocol.Participant) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.participants = p
}

func (o *recordingObserver) StatusChanged(s peer.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, s)
}

func (o *recordingObserver) MicChanged(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mic = append(o.mic, active)
}

func (o *recordingObserver) Notice(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, text)
}

func (o *recordingObserver) Disconnected(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.disconnects = append(o.disconnects, err)
}

type fixture struct {
	ev       *events
	sig      *fakeSignaler
	factory  *fakeFactory
	mic      *fakeMic
	observer *recordingObserver
	session  *Session
}

func newFixture(withMic bool) *fixture {
	ev := &events{}
	f := &fixture{
		ev:       ev,
		sig:      &fakeSignaler{ev: ev},
		factory:  &fakeFactory{ev: ev, transports: map[string]*fakeTransport{}},
		observer: &recordingObserver{},
	}
	opts := Options{
		Name:     "me",
		Signaler: f.sig,
		Factory:  f.factory,
		Observer: f.observer,
		Logger:   logger.New(io.Discard, "TEST", logger.ErrorLevel),
	}
	if withMic {
		f.mic = &fakeMic{ev: ev, enabled: true}
		opts.Mic = f.mic
	}
	f.session = New(opts)
	return f
}

func p(id string) protocol.Participant {
	return protocol.Participant{ID: id, Name: strings.ToUpper(id)}
}

func TestUserListNeverOffers(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserList{Users: []protocol.Participant{p("a"), p("b")}}))

	assert.Empty(t, f.sig.ofKind(protocol.KindOffer))
	assert.Empty(t, f.session.Hub().Links())
	assert.Equal(t, []protocol.Participant{p("a"), p("b")}, f.observer.participants)
}

func TestUserJoinedMakesExactlyOneOffer(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("c")}))
	// a repeated announcement must not produce a second offer
	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("c")}))

	offers := f.sig.ofKind(protocol.KindOffer)
	require.Len(t, offers, 1)
	assert.Equal(t, "c", offers[0].(protocol.Offer).Target)

	l, ok := f.session.Hub().Get("c")
	require.True(t, ok)
	assert.Equal(t, peer.Initiator, l.Role())
	assert.Len(t, f.session.Roster(), 1)
}

func TestUnsolicitedOfferCreatesResponder(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()

	offer := protocol.Offer{SDP: protocol.SessionDescription{Type: "offer", SDP: "v=0"}, From: "a"}
	require.NoError(t, f.session.HandleMessage(ctx, offer))

	l, ok := f.session.Hub().Get("a")
	require.True(t, ok)
	assert.Equal(t, peer.Responder, l.Role())

	answers := f.sig.ofKind(protocol.KindAnswer)
	require.Len(t, answers, 1)
	assert.Equal(t, "a", answers[0].(protocol.Answer).Target)
	assert.Empty(t, f.sig.ofKind(protocol.KindOffer))
}

func TestMessagesForUnknownPeersAreDropped(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	assert.NoError(t, f.session.HandleMessage(ctx, protocol.Answer{From: "ghost"}))
	assert.NoError(t, f.session.HandleMessage(ctx, protocol.IceCandidate{Candidate: protocol.ICECandidate{Candidate: "c"}, From: "ghost"}))
	assert.Empty(t, f.session.Hub().Links())
}

func TestUserLeftClosesLink(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("a")}))
	l, _ := f.session.Hub().Get("a")

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserLeft{ID: "a"}))

	_, ok := f.session.Hub().Get("a")
	assert.False(t, ok)
	assert.Equal(t, peer.StateClosed, l.State())
	assert.Empty(t, f.session.Roster())
	assert.Contains(t, f.ev.all(), "close-link:a")
}

func TestToggleMicLeavesLinksAlone(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("a")}))
	f.factory.transports["a"].onState(peer.StateConnected)
	statuses := len(f.observer.statuses)

	active, err := f.session.ToggleMic()
	require.NoError(t, err)

	assert.False(t, active)
	assert.False(t, f.mic.Enabled())
	toggles := f.sig.ofKind(protocol.KindMicToggle)
	require.Len(t, toggles, 1)
	assert.Equal(t, protocol.MicToggle{Active: false}, toggles[0])
	assert.Equal(t, []bool{false}, f.observer.mic)

	l, _ := f.session.Hub().Get("a")
	assert.Equal(t, peer.StateConnected, l.State())
	assert.Len(t, f.observer.statuses, statuses)
}

func TestToggleWithoutMicIsNoop(t *testing.T) {
	f := newFixture(false)

	active, err := f.session.ToggleMic()
	require.NoError(t, err)
	assert.False(t, active)
	assert.Empty(t, f.sig.ofKind(protocol.KindMicToggle))
}

func TestLeaveOrder(t *testing.T) {
	f := newFixture(true)
	ctx := context.Background()

	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("a")}))
	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("broken")}))
	before := len(f.ev.all())

	err := f.session.Leave()
	assert.Error(t, err, "a failing link is reported")
	assert.NoError(t, f.session.Leave())

	teardown := f.ev.all()[before:]
	require.Len(t, teardown, 5)
	assert.ElementsMatch(t, []string{"close-link:a", "close-link:broken"}, teardown[:2])
	assert.Equal(t, []string{"stop-media", "send:leave-room", "close-signaling"}, teardown[2:])

	assert.Empty(t, f.session.Hub().Links())

	// nothing is acted on after leaving
	require.NoError(t, f.session.HandleMessage(ctx, protocol.UserJoined{User: p("z")}))
	assert.Empty(t, f.session.Hub().Links())
}

func TestDisconnectAndServerErrors(t *testing.T) {
	f := newFixture(true)

	err := f.session.HandleMessage(context.Background(), protocol.Error{Reason: "connection already joined a room"})
	assert.Error(t, err)
	assert.Equal(t, []string{"connection already joined a room"}, f.observer.notices)

	f.session.HandleDisconnect(errors.New("reset by peer"))
	require.Len(t, f.observer.disconnects, 1)

	require.NoError(t, f.session.Leave())
	f.session.HandleDisconnect(errors.New("closed"))
	assert.Len(t, f.observer.disconnects, 1, "disconnect after leave is expected")
}

func TestJoinSendsNameAndRoom(t *testing.T) {
	f := newFixture(true)
	f.session.room = "standup"

	require.NoError(t, f.session.Join())
	joins := f.sig.ofKind(protocol.KindJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, protocol.Join{Name: "me", Room: "standup"}, joins[0])
}

// leavesOnRoster hangs up as soon as the roster changes, which lands between
// the left check and the link being opened.
type leavesOnRoster struct {
	nopObserver
	session *Session
}

func (o *leavesOnRoster) ParticipantsChanged([]protocol.Participant) {
	_ = o.session.Leave()
}

func TestLeaveDuringUserJoinedOpensNoLink(t *testing.T) {
	f := newFixture(true)
	f.session.observer = &leavesOnRoster{session: f.session}

	require.NoError(t, f.session.HandleMessage(context.Background(), protocol.UserJoined{User: p("x")}))

	assert.Empty(t, f.session.Hub().Links())
	assert.Empty(t, f.sig.ofKind(protocol.KindOffer))
	assert.Nil(t, f.factory.transports["x"])
	assert.Equal(t, []string{"stop-media", "send:leave-room", "close-signaling"}, f.ev.all())
}

func TestOfferAfterLeaveIsIgnored(t *testing.T) {
	f := newFixture(false)
	require.NoError(t, f.session.hub.CloseAll())

	offer := protocol.Offer{SDP: protocol.SessionDescription{Type: "offer", SDP: "v=0"}, From: "a"}
	require.NoError(t, f.session.HandleMessage(context.Background(), offer))
	assert.Empty(t, f.sig.ofKind(protocol.KindAnswer))
	assert.Empty(t, f.session.Hub().Links())
}
