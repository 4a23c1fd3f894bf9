package apis

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tphan267/huddle/pkg/api"
	"github.com/tphan267/huddle/pkg/core"
	"github.com/tphan267/huddle/pkg/providers"
	"github.com/tphan267/huddle/pkg/providers/auth"
	"github.com/tphan267/huddle/web"
)

// ApiServer serves the REST API and the static client through Fiber, and the
// signaling websocket through net/http. Both share one listener.
type ApiServer struct {
	app        *fiber.App
	coreApp    core.App
	providers  *providers.Registry
	ws         http.Handler
	httpServer *http.Server
}

// New creates a new HTTP server with the given service registry. ws serves
// /ws and may be nil.
func New(p *providers.Registry, ws http.Handler) *ApiServer {
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	s := &ApiServer{
		app:       app,
		coreApp:   core.NewMainApp(p),
		providers: p,
		ws:        ws,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *ApiServer) setupMiddleware() {
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))
}

func (s *ApiServer) setupRoutes() {
	apiGroup := s.app.Group("/api")

	apiGroup.Post("/login", s.handleLogin)
	apiGroup.Get("/metrics", s.handleGetMetrics)

	s.app.Get("/health", s.handleHealth)
}

// RegisterRoutes adds the provider routes and then the static client, which
// must come last because it answers every remaining path.
func (s *ApiServer) RegisterRoutes() error {
	if err := s.providers.RegisterAllRoutes(s.app); err != nil {
		return err
	}
	s.setupUIRoutes()
	return nil
}

// setupUIRoutes serves the embedded browser client
func (s *ApiServer) setupUIRoutes() {
	s.app.Use("/", filesystem.New(filesystem.Config{
		Root:         http.FS(web.FS),
		Index:        "index.html",
		NotFoundFile: "index.html",
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/")
		},
	}))
}

// App returns the underlying Fiber app for route registration
func (s *ApiServer) App() *fiber.App {
	return s.app
}

// Handler returns the combined handler: /ws goes to the gateway, everything
// else to Fiber.
func (s *ApiServer) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.ws != nil {
		mux.Handle("/ws", s.ws)
	}
	mux.Handle("/", adaptor.FiberApp(s.app))
	return mux
}

// Start serves on addr until Shutdown
func (s *ApiServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.providers.Logger().Info("Starting server on %s", addr)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are not
// tracked by net/http and must be closed by the gateway.
func (s *ApiServer) Shutdown(ctx context.Context) error {
	s.providers.Logger().Info("Server shutdown requested")
	var errs []error
	if s.httpServer != nil {
		errs = append(errs, s.httpServer.Shutdown(ctx))
	}
	errs = append(errs, s.app.ShutdownWithContext(ctx))
	return errors.Join(errs...)
}

// handleLogin handles POST /api/login
func (s *ApiServer) handleLogin(c *fiber.Ctx) error {
	var req core.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return api.ErrorBadRequestResp(c, "Invalid request body")
	}

	resp, err := s.coreApp.Login(c.Context(), req)
	switch {
	case err == nil:
		return api.SuccessResp(c, resp)
	case errors.Is(err, core.ErrSecretRequired):
		return api.ErrorBadRequestResp(c, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.ErrorUnauthorizedResp(c, err.Error())
	default:
		s.providers.Logger().Error("Login failed: %v", err)
		return api.ErrorInternalServerErrorResp(c, "Login failed")
	}
}

// handleGetMetrics handles GET /api/metrics?types=a,b&since=RFC3339&until=RFC3339
func (s *ApiServer) handleGetMetrics(c *fiber.Ctx) error {
	var query providers.MetricsQuery

	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			if t = strings.TrimSpace(t); t != "" {
				query.EventTypes = append(query.EventTypes, t)
			}
		}
	}

	var err error
	if since := c.Query("since"); since != "" {
		if query.StartTime, err = time.Parse(time.RFC3339, since); err != nil {
			return api.ErrorBadRequestResp(c, "Invalid since parameter")
		}
	}
	if until := c.Query("until"); until != "" {
		if query.EndTime, err = time.Parse(time.RFC3339, until); err != nil {
			return api.ErrorBadRequestResp(c, "Invalid until parameter")
		}
	}

	result, err := s.coreApp.GetMetrics(c.Context(), query)
	if err != nil {
		return api.ErrorServiceUnavailableResp(c, err.Error())
	}

	return api.SuccessResp(c, result)
}

// handleHealth handles health checks
func (s *ApiServer) handleHealth(c *fiber.Ctx) error {
	data := fiber.Map{"status": "healthy"}
	if cfg := s.providers.Config(); cfg != nil && cfg.Version != "" {
		data["version"] = cfg.Version
	}
	return api.SuccessResp(c, data)
}

// customErrorHandler renders unhandled errors in the API envelope
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(api.ApiResponse{
		Success: false,
		Error: &api.ApiError{
			Code:    code,
			Message: err.Error(),
		},
	})
}
