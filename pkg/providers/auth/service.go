package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tphan267/huddle/pkg/providers"
	"github.com/tphan267/huddle/pkg/storage/repositories"
	"github.com/tphan267/huddle/pkg/utils"
)

// ErrInvalidCredentials is returned for an unknown or empty secret
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service admits users by the secret configured for them. Secrets from the
// config file are seeded into the credential table on Initialize.
type Service struct {
	repo *repositories.CredentialRepository
	cost int
}

// NewService creates a new auth service
func NewService() *Service {
	return &Service{}
}

// WithCost overrides the bcrypt cost used when seeding
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Name returns the service name
func (s *Service) Name() string {
	return "auth"
}

// Initialize seeds the configured users
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	if registry.DB() == nil {
		return fmt.Errorf("auth service requires storage")
	}
	s.repo = registry.DB().CredentialRepo()
	if s.cost > 0 {
		s.repo.WithCost(s.cost)
	}

	cfg := registry.Config()
	if cfg == nil || len(cfg.Users) == 0 {
		registry.Logger().Warn("No users configured, nobody will be able to log in")
		return nil
	}

	secrets := make([]string, 0, len(cfg.Users))
	for secret := range cfg.Users {
		secrets = append(secrets, secret)
	}
	sort.Strings(secrets)

	for _, secret := range secrets {
		name := cfg.Users[secret]
		if _, err := s.repo.Upsert(name, secret); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", name, err)
		}
		registry.Logger().Debug("Seeded user %s (secret %s)", name, utils.MaskSecret(secret))
	}

	registry.Logger().Info("Auth service ready with %d users", len(secrets))
	return nil
}

// IsRunnable returns false as auth service doesn't need background processing
func (s *Service) IsRunnable() bool {
	return false
}

func (s *Service) Start(ctx context.Context) error {
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return nil
}

// RegisterAPIRoutes is a no-op: login is served by the API server
func (s *Service) RegisterAPIRoutes(app interface{}) error {
	return nil
}

// Login returns the display name for secret
func (s *Service) Login(ctx context.Context, secret string) (string, error) {
	if s.repo == nil {
		return "", fmt.Errorf("auth service not initialized")
	}

	cred, err := s.repo.Authenticate(secret)
	if errors.Is(err, repositories.ErrNoMatch) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("credential lookup failed: %w", err)
	}
	return cred.Name, nil
}

// Verify that Service implements both Service and AuthProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.AuthProvider = (*Service)(nil)
