package http

import (
	"encoding/json"
	"net/http"

	"github.com/Wyydra/pairlink/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/pairlink/internal/config"
	"github.com/Wyydra/pairlink/internal/core/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	Relay *service.RelayService

	staticDir string
	upgrader  websocket.Upgrader
	connOpts  ws.Options
}

func NewHandler(relay *service.RelayService, cfg *config.Config) *Handler {
	origins := newOriginPolicy(cfg.AllowedOrigins)
	return &Handler{
		Relay:     relay,
		staticDir: cfg.StaticDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     origins.check,
		},
		connOpts: ws.Options{
			MaxMessageSize: cfg.MaxMessageSize,
			PongWait:       cfg.PongWait,
			WriteWait:      cfg.WriteWait,
		},
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Get("/api/rooms", h.ListRooms)
	r.Get("/ws/{roomId}", h.ServeWS)

	fs := http.FileServer(http.Dir(h.staticDir))
	r.Handle("/public/*", http.StripPrefix("/public", fs))
	r.Handle("/*", fs)

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Signaling relay is healthy."))
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Relay.Rooms()); err != nil {
		log.Error().Err(err).Msg("Failed to encode room list")
	}
}
