// Package web serves the loopback dashboard: a JSON control API, live
// websocket status and camera feeds, and the prometheus endpoint.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/posture-police/pkg/camera"
	"github.com/teslashibe/posture-police/pkg/hub"
	"github.com/teslashibe/posture-police/pkg/metrics"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/posture"
)

//go:embed static
var staticFS embed.FS

// Controller is the monitor surface the dashboard drives.
type Controller interface {
	Settings() monitor.Settings
	UpdateSettings(fn func(*monitor.Settings)) monitor.Settings
	Last() (monitor.TickResult, bool)
	Calibrate(ctx context.Context) (posture.Baseline, error)
	SetCamera(ctx context.Context, enabled bool) error
}

// Config holds the listen address.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DefaultConfig listens on loopback only.
func DefaultConfig() Config {
	return Config{Host: "127.0.0.1", Port: 8080}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// Server is the dashboard server. It implements monitor.Publisher.
type Server struct {
	app     *fiber.App
	cfg     Config
	ctl     Controller
	cameras *camera.Manager
	metrics *metrics.Metrics
	logger  *slog.Logger

	statusHub *hub.Hub
	cameraHub *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves mt on /metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = mt }
}

// WithCameraManager exposes the camera config routes.
func WithCameraManager(m *camera.Manager) Option {
	return func(s *Server) { s.cameras = m }
}

// NewServer builds the routes. Hubs start with Serve.
func NewServer(cfg Config, ctl Controller, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		ctl:    ctl,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.statusHub = hub.New("status", s.logger)
	s.cameraHub = hub.New("camera", s.logger)

	app := fiber.New(fiber.Config{
		AppName:               "Posture Police",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: fmt.Sprintf("http://127.0.0.1:%d, http://localhost:%d", cfg.Port, cfg.Port),
	}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/settings", s.handleGetSettings)
	api.Put("/settings", s.handlePutSettings)
	api.Post("/calibrate", s.handleCalibrate)
	api.Post("/camera", s.handleCamera)
	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Put("/camera/config", s.handlePutCameraConfig)

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleWS(s.statusHub)))
	app.Get("/ws/camera", websocket.New(s.handleWS(s.cameraHub)))

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(staticFS),
		PathPrefix: "static",
		Index:      "index.html",
	}))

	s.app = app
	return s
}

// App returns the fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Publish broadcasts a tick to the websocket feeds. It never blocks.
func (s *Server) Publish(result monitor.TickResult, frame []byte) {
	if err := s.statusHub.BroadcastJSON(NewStatus(result)); err != nil {
		s.logger.Debug("encode status failed", "error", err)
	}
	if frame != nil {
		s.cameraHub.BroadcastBinary(frame)
	}
}

// ListenAndServe listens on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.statusHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("web shutdown failed", "error", err)
		}
	}()

	s.logger.Info("web dashboard listening", "url", "http://"+ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) handleWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			return
		}
		client.Run()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
