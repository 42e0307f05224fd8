package http

import (
	"errors"
	"net/http"

	"github.com/Wyydra/pairlink/internal/adapter/driven/gateway/ws"
	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ServeWS upgrades GET /ws/{roomId} and runs the relay session on the
// request goroutine until the peer goes away.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(chi.URLParam(r, "roomId"))
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("Error while upgrading ws")
		return
	}

	l := log.With().Str("room_id", roomID.String()).Str("peer_id", conn.RemoteAddr().String()).Logger()
	l.Info().Msg("New client connected")

	err = h.Relay.Serve(roomID, ws.NewConn(conn, h.connOpts))
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRoomFull):
		l.Info().Msg("Client rejected, room full")
	default:
		l.Error().Err(err).Msg("Client session failed")
	}
}
