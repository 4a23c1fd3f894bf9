package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/providers"
)

const (
	maxEvents      = 1000
	reportInterval = time.Minute
)

// Service keeps recent events in memory and reports on the signaling plane
type Service struct {
	events    []providers.Event
	mu        sync.RWMutex
	signaling *providers.Signaling
	logger    *logger.Logger
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
}

// NewService creates a new analytics service
func NewService() *Service {
	return &Service{
		events:   make([]providers.Event, 0),
		interval: reportInterval,
		done:     make(chan struct{}),
	}
}

// Name returns the service name
func (s *Service) Name() string {
	return "analytics"
}

// Initialize sets up the service
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	s.signaling = registry.Signaling()
	s.logger = registry.Logger().Named("Analytics")
	return nil
}

// IsRunnable is true: the service logs a periodic occupancy summary
func (s *Service) IsRunnable() bool {
	return true
}

// Start logs occupancy every interval until ctx ends or Stop is called
func (s *Service) Start(ctx context.Context) error {
	if s.signaling == nil || s.signaling.Presence == nil {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case <-ticker.C:
			n := s.signaling.Presence.Count()
			if n != last {
				s.logger.Info("%d participants in %d rooms", n, len(s.signaling.Presence.Rooms()))
				last = n
			}
		}
	}
}

// Stop ends the report loop and drops recorded events
func (s *Service) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}

// RegisterAPIRoutes is a no-op: metrics are served by the API server
func (s *Service) RegisterAPIRoutes(app interface{}) error {
	return nil
}

// Track records an analytics event. Only the most recent events are kept.
func (s *Service) Track(ctx context.Context, event providers.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.events = append(s.events, event)
	if len(s.events) > maxEvents {
		s.events = append(s.events[:0:0], s.events[len(s.events)-maxEvents:]...)
	}
	s.mu.Unlock()
	return nil
}

// GetMetrics counts matching events by type and adds the live counters of the
// signaling plane when one is attached.
func (s *Service) GetMetrics(ctx context.Context, query providers.MetricsQuery) (*providers.MetricsResult, error) {
	typeFilter := make(map[string]bool)
	for _, t := range query.EventTypes {
		typeFilter[t] = true
	}

	byType := make(map[string]int64)
	count := int64(0)

	s.mu.RLock()
	for _, event := range s.events {
		if len(typeFilter) > 0 && !typeFilter[event.Type] {
			continue
		}
		if !query.StartTime.IsZero() && event.Timestamp.Before(query.StartTime) {
			continue
		}
		if !query.EndTime.IsZero() && event.Timestamp.After(query.EndTime) {
			continue
		}
		byType[event.Type]++
		count++
	}
	s.mu.RUnlock()

	data := map[string]interface{}{
		"total_events": count,
		"events":       byType,
	}

	if sig := s.signaling; sig != nil {
		if sig.Presence != nil {
			data["presence"] = sig.Presence.Stats()
			data["participants"] = sig.Presence.Count()
			data["rooms"] = len(sig.Presence.Rooms())
		}
		if sig.Relay != nil {
			data["relay"] = sig.Relay.Stats()
		}
		if sig.Gateway != nil {
			data["gateway"] = sig.Gateway.Stats()
		}
	}

	return &providers.MetricsResult{
		Data:  data,
		Count: count,
	}, nil
}

// Verify that Service implements both Service and AnalyticsProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.AnalyticsProvider = (*Service)(nil)
