package rooms

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/tphan267/huddle/pkg/api"
	"github.com/tphan267/huddle/pkg/presence"
)

// ParticipantResponse is one member of a room
type ParticipantResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Muted    bool   `json:"muted"`
	JoinedAt string `json:"joined_at"`
}

// RegisterAPIRoutes registers the room and ICE server routes
func (s *Service) RegisterAPIRoutes(app interface{}) error {
	fiberApp, ok := app.(*fiber.App)
	if !ok {
		return fmt.Errorf("expected *fiber.App, got %T", app)
	}
	s.RegisterRoutes(fiberApp)
	return nil
}

// RegisterRoutes registers all room-related API routes
func (s *Service) RegisterRoutes(app *fiber.App) {
	app.Get("/api/ice-servers", s.handleGetICEServers)

	roomsAPI := app.Group("/api/rooms")
	roomsAPI.Get("/", s.handleGetRooms)
	roomsAPI.Get("/:id/participants", s.handleGetParticipants)
}

// handleGetRooms handles GET /api/rooms
func (s *Service) handleGetRooms(c *fiber.Ctx) error {
	rooms := s.Rooms()
	return api.SuccessResp(c, rooms, api.ApiResponseMeta{Total: len(rooms)})
}

// handleGetParticipants handles GET /api/rooms/:id/participants
func (s *Service) handleGetParticipants(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if roomID == "" {
		return api.ErrorBadRequestResp(c, "Room ID is required")
	}

	members := s.Participants(roomID)
	if len(members) == 0 {
		return api.ErrorNotFoundResp(c, "Room not found")
	}

	return api.SuccessResp(c, toParticipantResponses(members), api.ApiResponseMeta{Total: len(members)})
}

// handleGetICEServers handles GET /api/ice-servers
func (s *Service) handleGetICEServers(c *fiber.Ctx) error {
	return api.SuccessResp(c, s.ICEServers())
}

func toParticipantResponses(members []presence.Member) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(members))
	for _, m := range members {
		out = append(out, ParticipantResponse{
			ID:       m.ID,
			Name:     m.Name,
			Muted:    m.Muted,
			JoinedAt: m.JoinedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out
}
