package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/reelkit/reelkit/internal/asset"
	"github.com/reelkit/reelkit/internal/catalog"
	"github.com/reelkit/reelkit/internal/preview"
)

// Config carries the engine handles the control API exposes.
type Config struct {
	Port       int
	Player     *preview.Player
	Library    *asset.Library
	Repository catalog.Repository
	Hub        *Hub
	ThumbDir   string
	Logger     zerolog.Logger
	StartTime  time.Time
}

// Server wraps the HTTP control surface. It binds to loopback only;
// the engine is a local companion process, not a network service.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}

	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			// No write timeout: media responses and the event socket
			// stay open for as long as the client does.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("control API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down control API")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
