package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP connections to the status feed.
type Server struct {
	ctx          context.Context
	manager      *Manager
	feed         *StatusFeed
	logger       *zap.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

// NewServer builds the ws server. Connections close when ctx is done.
func NewServer(ctx context.Context, manager *Manager, feed *StatusFeed, writeTimeout time.Duration, allowedOrigins []string, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Server{
		ctx:          ctx,
		manager:      manager,
		feed:         feed,
		logger:       logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows every origin when none are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWS is the HTTP handler for GET /ws/status.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	connection := NewConnection(clientID, conn, s.feed, s.writeTimeout, s.logger, func(id string) {
		s.manager.Remove(id)
		cancel()
	})
	s.manager.Add(connection)

	if initial, err := s.feed.Initial(); err == nil {
		connection.Send(initial)
	}

	go connection.Start(ctx)
	s.logger.Info("status subscriber connected", zap.String("client_id", clientID), zap.Int("subscribers", s.manager.Count()))
}
