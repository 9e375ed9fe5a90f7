package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goran-ethernal/MarketIndexor/internal/logger"
	"github.com/goran-ethernal/MarketIndexor/pkg/config"
	"github.com/goran-ethernal/MarketIndexor/pkg/events"
	"github.com/gorilla/websocket"
)

// Server accepts WebSocket subscribers and fans broadcasts out to them.
type Server struct {
	config   *config.NotifierConfig
	hub      *Hub
	upgrader websocket.Upgrader
	server   *http.Server
	log      *logger.Logger
}

// NewServer creates a notifier server with its own hub.
func NewServer(cfg *config.NotifierConfig, log *logger.Logger) *Server {
	cfg.ApplyDefaults()

	s := &Server{
		config: cfg,
		hub:    NewHub(log),
		log:    log,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second, //nolint:mnd
		CheckOrigin:      s.checkOrigin,
	}

	return s
}

// Hub returns the subscriber set served by s.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Broadcast forwards b to every subscriber.
func (s *Server) Broadcast(b *events.Broadcast) error {
	return s.hub.Broadcast(b)
}

// Handler returns the HTTP handler serving the upgrade path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Path, s.handleWebSocket)

	return mux
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second, //nolint:mnd
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("notifier server error: %v", err)
		}
	}()

	s.log.Infof("notifier listening on %s%s", ln.Addr(), s.config.Path)

	return nil
}

// Stop closes all subscribers and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()

	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown notifier server: %w", err)
	}

	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	sub := newWSSubscriber(conn, s.config.SendBuffer, s.config.WriteTimeout.Duration, s.hub.Deregister, s.log)
	s.hub.Register(sub)

	go sub.writeLoop()
	go sub.readLoop()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.config.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	return slices.ContainsFunc(s.config.AllowedOrigins, func(allowed string) bool {
		return strings.EqualFold(allowed, origin)
	})
}
