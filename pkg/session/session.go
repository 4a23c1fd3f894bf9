// Package session runs one participant's side of a room: it turns signaling
// messages into peer link operations and owns the teardown order.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/peer"
	"github.com/tphan267/huddle/pkg/protocol"
)

// Signaler is the session's connection to the server
type Signaler interface {
	Send(msg protocol.Message) error
	Close() error
}

// Microphone is the shared local capture handle. One toggle mutes every link.
type Microphone interface {
	Enabled() bool
	SetEnabled(enabled bool)
	Stop()
}

// Observer receives the events a user interface renders
type Observer interface {
	ParticipantsChanged(participants []protocol.Participant)
	PeerStateChanged(peerID string, state peer.State)
	StatusChanged(status peer.Status)
	MicChanged(active bool)
	// Notice is a transient message, such as a refused join
	Notice(text string)
	// Disconnected is persistent: the session will not reconnect
	Disconnected(err error)
}

type Options struct {
	Name     string
	Room     string
	Signaler Signaler
	Factory  peer.TransportFactory
	// Mic may be nil when audio capture is unavailable; the session still
	// joins and receives audio.
	Mic      Microphone
	Observer Observer
	Logger   *logger.Logger
}

type Session struct {
	name     string
	room     string
	out      Signaler
	hub      *peer.Hub
	mic      Microphone
	observer Observer
	log      *logger.Logger

	mu     sync.Mutex
	roster []protocol.Participant
	left   bool
}

func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("HUDDLE")
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	s := &Session{
		name:     opts.Name,
		room:     opts.Room,
		out:      opts.Signaler,
		mic:      opts.Mic,
		observer: observer,
		log:      log.Named("Session"),
	}
	s.hub = peer.NewHub(opts.Factory, opts.Signaler, s, log)
	return s
}

// Join asks the server to admit us
func (s *Session) Join() error {
	return s.out.Send(protocol.Join{Name: s.name, Room: s.room})
}

func (s *Session) Hub() *peer.Hub {
	return s.hub
}

// Roster returns the other participants currently known
func (s *Session) Roster() []protocol.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Participant(nil), s.roster...)
}

// HandleMessage applies one server message. Only a user-joined event makes
// this side offer: the member already present always initiates, and an offer
// from an unknown peer always creates a responder link.
func (s *Session) HandleMessage(ctx context.Context, msg protocol.Message) error {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return nil
	}

	switch m := msg.(type) {
	case protocol.UserList:
		s.setRoster(m.Users)
		return nil

	case protocol.UserJoined:
		s.addParticipant(m.User)
		l, created, err := s.hub.Open(m.User.ID, peer.Initiator)
		if errors.Is(err, peer.ErrHubClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if !created {
			s.log.Warn("link to %s already exists, not offering again", m.User.ID)
			return nil
		}
		return l.Initiate(ctx)

	case protocol.UserLeft:
		s.removeParticipant(m.ID)
		s.hub.Close(m.ID)
		return nil

	case protocol.Offer:
		l, _, err := s.hub.Open(m.From, peer.Responder)
		if errors.Is(err, peer.ErrHubClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		return l.HandleOffer(ctx, m.SDP)

	case protocol.Answer:
		l, ok := s.hub.Get(m.From)
		if !ok {
			s.log.Debug("dropping answer from %s: no link", m.From)
			return nil
		}
		return l.HandleAnswer(ctx, m.SDP)

	case protocol.IceCandidate:
		l, ok := s.hub.Get(m.From)
		if !ok {
			s.log.Debug("dropping candidate from %s: no link", m.From)
			return nil
		}
		return l.AddRemoteCandidate(m.Candidate)

	case protocol.Error:
		s.observer.Notice(m.Reason)
		return fmt.Errorf("server refused request: %s", m.Reason)

	case protocol.Join, protocol.MicToggle, protocol.Leave:
		s.log.Warn("unexpected %s from server", msg.Kind())
		return nil

	default:
		return fmt.Errorf("%w: %T", protocol.ErrUnknownType, msg)
	}
}

// HandleDisconnect reports a lost server connection. Existing peer links are
// left alone; nothing is retried.
func (s *Session) HandleDisconnect(err error) {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return
	}
	s.log.Error("lost connection to server: %v", err)
	s.observer.Disconnected(err)
}

// ToggleMic flips the shared microphone and tells the room. Peer links are
// not touched. Without a microphone it does nothing.
func (s *Session) ToggleMic() (bool, error) {
	if s.mic == nil {
		s.log.Info("no microphone, toggle ignored")
		return false, nil
	}

	active := !s.mic.Enabled()
	s.mic.SetEnabled(active)
	s.observer.MicChanged(active)

	if err := s.out.Send(protocol.MicToggle{Active: active}); err != nil {
		return active, fmt.Errorf("failed to announce mic state: %w", err)
	}
	return active, nil
}

// Leave tears the session down: every link is closed, then local capture is
// stopped, then the server is told and the connection closed. Each step runs
// even if an earlier one failed. Later calls do nothing. A message handled
// concurrently cannot open a link once the hub is closed.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	s.mu.Unlock()

	var errs []error
	if err := s.hub.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	if s.mic != nil {
		s.mic.Stop()
	}
	if err := s.out.Send(protocol.Leave{}); err != nil {
		errs = append(errs, fmt.Errorf("failed to send leave: %w", err))
	}
	if err := s.out.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close signaling: %w", err))
	}

	s.log.Info("left room")
	return errors.Join(errs...)
}

// PeerStateChanged and StatusChanged forward hub events to the observer.
func (s *Session) PeerStateChanged(peerID string, state peer.State) {
	s.observer.PeerStateChanged(peerID, state)
}

func (s *Session) StatusChanged(status peer.Status) {
	s.observer.StatusChanged(status)
}

func (s *Session) setRoster(users []protocol.Participant) {
	s.mu.Lock()
	s.roster = append([]protocol.Participant(nil), users...)
	snapshot := append([]protocol.Participant(nil), s.roster...)
	s.mu.Unlock()
	s.observer.ParticipantsChanged(snapshot)
}

func (s *Session) addParticipant(p protocol.Participant) {
	s.mu.Lock()
	for _, existing := range s.roster {
		if existing.ID == p.ID {
			s.mu.Unlock()
			return
		}
	}
	s.roster = append(s.roster, p)
	snapshot := append([]protocol.Participant(nil), s.roster...)
	s.mu.Unlock()
	s.observer.ParticipantsChanged(snapshot)
}

func (s *Session) removeParticipant(id string) {
	s.mu.Lock()
	for i, p := range s.roster {
		if p.ID == id {
			s.roster = append(s.roster[:i], s.roster[i+1:]...)
			break
		}
	}
	snapshot := append([]protocol.Participant(nil), s.roster...)
	s.mu.Unlock()
	s.observer.ParticipantsChanged(snapshot)
}

type nopObserver struct{}

func (nopObserver) ParticipantsChanged([]protocol.Participant) {}
func (nopObserver) PeerStateChanged(string, peer.State)       {}
func (nopObserver) StatusChanged(peer.Status)                 {}
func (nopObserver) MicChanged(bool)                           {}
func (nopObserver) Notice(string)                             {}
func (nopObserver) Disconnected(error)                        {}
