// Package gateway exposes podcast generation over HTTP and streams session
// progress over a websocket.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/picocast/pkg/audio"
	"github.com/sipeed/picocast/pkg/bus"
	"github.com/sipeed/picocast/pkg/config"
	"github.com/sipeed/picocast/pkg/logger"
	"github.com/sipeed/picocast/pkg/session"
)

// Producer is the part of session.Runner the gateway drives.
type Producer interface {
	Run(ctx context.Context, docs [][]byte, turnBudget, durationCapSeconds int) (*session.Result, error)
	Respond(ctx context.Context, personaID, message string, docs [][]byte) (string, bool, error)
	Speak(ctx context.Context, personaID, text string) (*audio.Master, error)
}

// Ledger lists past sessions.
type Ledger interface {
	List(ctx context.Context, limit int) ([]session.Record, error)
}

// Server is the HTTP gateway.
type Server struct {
	cfg      config.GatewayConfig
	producer Producer
	ledger   Ledger
	events   *bus.EventBus
	upgrader websocket.Upgrader
	server   *http.Server
}

// NewServer wires the handlers. ledger and events may be nil.
func NewServer(cfg config.GatewayConfig, producer Producer, ledger Ledger, events *bus.EventBus) *Server {
	return &Server{
		cfg:      cfg,
		producer: producer,
		ledger:   ledger,
		events:   events,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns every route behind the auth middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/podcast", s.handlePodcast)
	mux.HandleFunc("POST /api/respond", s.handleRespond)
	mux.HandleFunc("POST /api/speak", s.handleSpeak)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/events", s.handleEvents)

	return AuthMiddleware(s.cfg.APIKey, []string{"/health"}, logRequests(mux))
}

// Start listens on the configured host:port in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			logger.ErrorCF("gateway", "HTTP server error", map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Serve blocks serving on ln until Stop is called.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.InfoCF("gateway", "HTTP server starting", map[string]any{"addr": ln.Addr().String()})
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
