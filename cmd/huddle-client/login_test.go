package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphan267/huddle/pkg/api"
	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/core"
)

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req core.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/login" || req.Secret != "1234" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(api.ApiResponse{Error: &api.ApiError{Code: 401, Message: "invalid credentials"}})
			return
		}
		json.NewEncoder(w).Encode(api.ApiResponse{Success: true, Data: core.LoginResponse{
			Name:        "Ahmet",
			DefaultRoom: "main",
			ICEServers:  []config.ICEServer{{URLs: []string{config.DefaultSTUN}}},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginSuccess(t *testing.T) {
	srv := loginServer(t)

	resp, err := login(srv.URL+"/", "1234")
	require.NoError(t, err)
	assert.Equal(t, "Ahmet", resp.Name)
	assert.Equal(t, "main", resp.DefaultRoom)
	assert.Len(t, resp.ICEServers, 1)
}

func TestLoginRejected(t *testing.T) {
	srv := loginServer(t)

	_, err := login(srv.URL, "0000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errLoginRejected))
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestLoginUnreachable(t *testing.T) {
	_, err := login("http://127.0.0.1:1", "1234")
	require.Error(t, err)
	assert.False(t, errors.Is(err, errLoginRejected))
}
