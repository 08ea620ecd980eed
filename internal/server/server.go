package server

import (
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/messenger/internal/chat"
)

// Server holds what the HTTP handlers share: configuration, the hub new
// connections join, and the read side used by the history endpoint.
type Server struct {
	cfg      Config
	log      *slog.Logger
	hub      *Hub
	history  *chat.HistoryProjector
	gatherer prometheus.Gatherer
	origins  *originPolicy
	upgrader websocket.Upgrader
}

// NewServer builds the HTTP side around hub. gatherer may be nil, in which
// case /metrics serves the default Prometheus registry.
func NewServer(cfg Config, log *slog.Logger, hub *Hub, history *chat.HistoryProjector, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		hub:      hub,
		history:  history,
		gatherer: gatherer,
		origins:  newOriginPolicy(log, cfg.AllowedOrigins),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}
