package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/providers"
)

var ErrSecretRequired = errors.New("secret is required")

// MainApp is the main application implementation
type MainApp struct {
	providers *providers.Registry
}

// NewMainApp creates a new main application instance
func NewMainApp(p *providers.Registry) *MainApp {
	return &MainApp{
		providers: p,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Secret string `json:"secret"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Name        string             `json:"name"`
	DefaultRoom string             `json:"default_room,omitempty"`
	ICEServers  []config.ICEServer `json:"ice_servers,omitempty"`
}

// Login authenticates a secret. Failed attempts are tracked too.
func (a *MainApp) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if req.Secret == "" {
		return nil, ErrSecretRequired
	}

	auth, err := a.providers.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth provider: %w", err)
	}

	analytics, _ := a.providers.GetAnalytics()

	name, err := auth.Login(ctx, req.Secret)
	if err != nil {
		if analytics != nil {
			_ = analytics.Track(ctx, providers.Event{Type: "login_failed"})
		}
		return nil, err
	}

	if analytics != nil {
		_ = analytics.Track(ctx, providers.Event{
			Type:   "login",
			UserID: name,
		})
	}

	resp := &LoginResponse{Name: name}
	if cfg := a.providers.Config(); cfg != nil {
		resp.DefaultRoom = cfg.DefaultRoom
	}
	if rooms, err := a.providers.GetRooms(); err == nil {
		resp.ICEServers = rooms.ICEServers()
	}
	return resp, nil
}

// GetMetrics retrieves analytics metrics
func (a *MainApp) GetMetrics(ctx context.Context, query providers.MetricsQuery) (*providers.MetricsResult, error) {
	analytics, err := a.providers.GetAnalytics()
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics provider: %w", err)
	}

	result, err := analytics.GetMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}

	return result, nil
}

// Verify that MainApp implements App interface
var _ App = (*MainApp)(nil)
