package apis

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphan267/huddle/pkg/api"
	"github.com/tphan267/huddle/pkg/config"
	"github.com/tphan267/huddle/pkg/gateway"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/presence"
	"github.com/tphan267/huddle/pkg/protocol"
	"github.com/tphan267/huddle/pkg/providers"
	"github.com/tphan267/huddle/pkg/providers/analytics"
	"github.com/tphan267/huddle/pkg/providers/auth"
	"github.com/tphan267/huddle/pkg/providers/rooms"
	"github.com/tphan267/huddle/pkg/relay"
	"github.com/tphan267/huddle/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

func setupServer(t *testing.T) *ApiServer {
	t.Helper()
	log := logger.New(io.Discard, "TEST", logger.ErrorLevel)

	store, err := storage.NewSQLiteStorage(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		DefaultRoom: "main",
		Users:       map[string]string{"1234": "Ahmet", "5678": "Ayşe"},
		ICEServers:  []config.ICEServer{{URLs: []string{config.DefaultSTUN}}},
		Version:     "test",
	}

	reg := presence.NewRegistry(cfg.DefaultRoom, log)
	rl := relay.New(reg, log)
	gw := gateway.New(reg, rl, 16, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	})

	registry := providers.NewRegistry(store, log, cfg, &providers.Signaling{Presence: reg, Relay: rl, Gateway: gw})
	registry.MustRegister(auth.NewService().WithCost(bcrypt.MinCost))
	registry.MustRegister(analytics.NewService())
	registry.MustRegister(rooms.NewService())
	require.NoError(t, registry.InitializeAll(context.Background()))

	srv := New(registry, gw)
	require.NoError(t, srv.RegisterRoutes())
	return srv
}

func login(t *testing.T, app *fiber.App, secret string) (*http.Response, api.ApiResponse) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"secret": secret})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var parsed api.ApiResponse
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &parsed), string(raw))
	return resp, parsed
}

func TestLoginSuccess(t *testing.T) {
	srv := setupServer(t)

	resp, parsed := login(t, srv.App(), "1234")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, parsed.Success)

	data := parsed.Data.(map[string]any)
	assert.Equal(t, "Ahmet", data["name"])
	assert.Equal(t, "main", data["default_room"])
	assert.Len(t, data["ice_servers"], 1)
}

func TestLoginFailures(t *testing.T) {
	srv := setupServer(t)

	resp, parsed := login(t, srv.App(), "0000")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.False(t, parsed.Success)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "invalid credentials", parsed.Error.Message)

	resp, _ = login(t, srv.App(), "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMetricsCountLogins(t *testing.T) {
	srv := setupServer(t)
	login(t, srv.App(), "1234")
	login(t, srv.App(), "bad")

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/api/metrics?types=login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var parsed struct {
		Data providers.MetricsResult `json:"data"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &parsed))
	assert.EqualValues(t, 1, parsed.Data.Count)
	assert.Contains(t, parsed.Data.Data, "presence")
	assert.Contains(t, parsed.Data.Data, "gateway")

	resp, err = srv.App().Test(httptest.NewRequest("GET", "/api/metrics?since=yesterday", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndStaticClient(t *testing.T) {
	srv := setupServer(t)

	resp, err := srv.App().Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = srv.App().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), "join-room")

	resp, err = srv.App().Test(httptest.NewRequest("GET", "/api/nothing-here", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// The websocket and the REST API share one listener
func TestCombinedHandler(t *testing.T) {
	srv := setupServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	data, _ := protocol.JSON.Encode(protocol.Join{Name: "Ahmet", Room: "standup"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.JSON.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.UserList{}, msg)

	resp, err := http.Get(ts.URL + "/api/rooms/standup/participants")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "Ahmet")
}
