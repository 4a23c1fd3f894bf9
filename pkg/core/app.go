package core

import (
	"context"

	"github.com/tphan267/huddle/pkg/providers"
)

// App defines the core application business logic interface
type App interface {
	// Login resolves a secret to a display name and the settings a client
	// needs to join
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)

	// GetMetrics retrieves analytics metrics
	GetMetrics(ctx context.Context, query providers.MetricsQuery) (*providers.MetricsResult, error)
}
