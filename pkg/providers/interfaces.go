package providers

import (
	"context"
	"time"

	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/presence"
)

// AuthProvider admits users by shared secret
type AuthProvider interface {
	// Login returns the display name registered for secret
	Login(ctx context.Context, secret string) (string, error)
}

// AnalyticsProvider defines analytics operations
type AnalyticsProvider interface {
	// Track records an analytics event
	Track(ctx context.Context, event Event) error
	// GetMetrics retrieves metrics for a given query
	GetMetrics(ctx context.Context, query MetricsQuery) (*MetricsResult, error)
}

// RoomsProvider exposes read-only views of the presence registry
type RoomsProvider interface {
	Rooms() []presence.RoomInfo
	Participants(roomID string) []presence.Member
	ICEServers() []config.ICEServer
}

// Event represents an analytics event
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// MetricsQuery defines parameters for metrics retrieval. Zero times are open
// bounds.
type MetricsQuery struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []string
}

// MetricsResult contains aggregated metrics
type MetricsResult struct {
	Data  map[string]interface{} `json:"data"`
	Count int64                  `json:"count"`
}
