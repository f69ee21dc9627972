package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twin/internal/config"
	"twin/internal/constants"
	"twin/internal/db"
	"twin/internal/logger"
	"twin/internal/operations"
	"twin/internal/types"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Config holds the server configuration
type Config struct {
	// Server settings
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	// CORS settings
	AllowOrigins []string `toml:"allow_origins"`
	AllowHeaders []string `toml:"allow_headers"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:            constants.DefaultServerHost,
		Port:            constants.DefaultServerPort,
		ReadTimeout:     constants.DefaultServerReadTimeout,
		WriteTimeout:    constants.DefaultServerWriteTimeout,
		ShutdownTimeout: constants.DefaultServerShutdownTimeout,
		AllowOrigins:    []string{"http://localhost", "http://127.0.0.1"},
		AllowHeaders:    []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}
}

// ConfigFromSettings returns the default configuration bound to the
// [server] section of the settings
func ConfigFromSettings(s *config.Settings) *Config {
	cfg := DefaultConfig()
	if s == nil {
		return cfg
	}
	if s.Server.Host != "" {
		cfg.Host = s.Server.Host
	}
	if s.Server.Port != 0 {
		cfg.Port = s.Server.Port
	}
	return cfg
}

// EnvironmentService is the part of the orchestrator the API exposes
type EnvironmentService interface {
	CreateEnvironment(ctx context.Context, req operations.CreateRequest) (*types.Environment, error)
	Remove(ctx context.Context, req operations.RemoveRequest) error
	SwitchEnvironment(ctx context.Context, name string) (*types.Environment, error)
	ListEnvironments(ctx context.Context) ([]*types.Environment, error)
	GetEnvironment(ctx context.Context, name string) (*types.Environment, error)
	GetActiveEnvironment(ctx context.Context) (*types.Environment, error)
	ValidateEnvironment(ctx context.Context, name string) (*operations.ValidationReport, error)
	ListWorktrees(ctx context.Context) ([]operations.WorktreeEntry, error)
	ProjectRoot() string
}

// History reads the operation journal
type History interface {
	List(ctx context.Context, filter db.HistoryFilter, page db.PaginationOptions) ([]db.Operation, error)
	Count(ctx context.Context, filter db.HistoryFilter) (int, error)
	Get(ctx context.Context, id string) (*db.Operation, error)
}

// Server represents the main HTTP server
type Server struct {
	config    *Config
	echo      *echo.Echo
	envs      EnvironmentService
	history   History
	db        *db.DB
	version   string
	startTime time.Time
	routed    bool
}

// New creates a server for envs. history and database may be nil when the
// journal is disabled.
func New(cfg *Config, envs EnvironmentService, history History, database *db.DB) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Set custom error handler
	e.HTTPErrorHandler = ErrorHandler

	return &Server{
		config:    cfg,
		echo:      e,
		envs:      envs,
		history:   history,
		db:        database,
		version:   "dev",
		startTime: time.Now(),
	}
}

// SetVersion sets the version reported by /health
func (s *Server) SetVersion(v string) {
	s.version = v
}

// Echo returns the Echo instance
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	s.setup()
	return s.echo
}

func (s *Server) setup() {
	if s.routed {
		return
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.routed = true
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start starts the server and blocks until ctx is done, an interrupt
// arrives or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.setup()

	addr := s.Addr()
	logger.WithField("addr", addr).Info("Starting server")

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.echo,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		logger.Info("Shutting down server...")
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down server...")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(logger.RequestLogger())
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.config.AllowOrigins,
		AllowHeaders: s.config.AllowHeaders,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	s.echo.Use(contextEnricher(s.envs.ProjectRoot()))
}
