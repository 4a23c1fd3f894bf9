package rooms

import (
	"context"
	"fmt"

	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/presence"
	"github.com/tphan267/huddle/pkg/providers"
)

// Service exposes room occupancy and the ICE servers clients should use
type Service struct {
	presence   *presence.Registry
	iceServers []config.ICEServer
}

// NewService creates a new rooms service
func NewService() *Service {
	return &Service{}
}

// Name returns the service name
func (s *Service) Name() string {
	return "rooms"
}

// Initialize requires an attached presence registry
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	sig := registry.Signaling()
	if sig == nil || sig.Presence == nil {
		return fmt.Errorf("rooms service requires a presence registry")
	}
	s.presence = sig.Presence

	if cfg := registry.Config(); cfg != nil {
		s.iceServers = append([]config.ICEServer(nil), cfg.ICEServers...)
	}
	if len(s.iceServers) == 0 {
		s.iceServers = []config.ICEServer{{URLs: []string{config.DefaultSTUN}}}
	}
	return nil
}

func (s *Service) IsRunnable() bool {
	return false
}

func (s *Service) Start(ctx context.Context) error {
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return nil
}

// Rooms lists occupied rooms
func (s *Service) Rooms() []presence.RoomInfo {
	return s.presence.Rooms()
}

// Participants lists the members of roomID in join order
func (s *Service) Participants(roomID string) []presence.Member {
	return s.presence.Snapshot(roomID)
}

// ICEServers returns the STUN/TURN servers handed to clients
func (s *Service) ICEServers() []config.ICEServer {
	return s.iceServers
}

var _ providers.Service = (*Service)(nil)
var _ providers.RoomsProvider = (*Service)(nil)
