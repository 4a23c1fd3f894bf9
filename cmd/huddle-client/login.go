package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tphan267/huddle/pkg/api"
	"github.com/tphan267/huddle/pkg/core"
)

const loginTimeout = 10 * time.Second

var errLoginRejected = errors.New("login rejected")

type loginEnvelope struct {
	Success bool               `json:"success"`
	Data    core.LoginResponse `json:"data"`
	Error   *api.ApiError      `json:"error"`
}

// login exchanges a secret for a display name and the room settings
func login(server, secret string) (*core.LoginResponse, error) {
	agent := fiber.Post(strings.TrimRight(server, "/") + "/api/login").
		JSON(core.LoginRequest{Secret: secret}).
		Timeout(loginTimeout)

	var resp loginEnvelope
	code, _, errs := agent.Struct(&resp)
	if len(errs) > 0 {
		return nil, fmt.Errorf("login request failed: %w", errors.Join(errs...))
	}

	if !resp.Success {
		msg := fmt.Sprintf("status %d", code)
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", errLoginRejected, msg)
	}
	return &resp.Data, nil
}
