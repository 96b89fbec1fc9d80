package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.HostID) == "" {
		writeError(w, http.StatusBadRequest, "hostId is required")
		return
	}

	room, err := h.RoomService.CreateRoom(r.Context(), domain.UserID(req.HostID), req.HostName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create room")
		writeError(w, http.StatusInternalServerError, "Failed to create room")
		return
	}

	writeJSON(w, http.StatusOK, protocol.CreateRoomResponse{
		RoomID:  room.ID.String(),
		JoinURL: joinURL(r, room.ID),
	})
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.RoomService.Room(r.Context(), chi.URLParam(r, "roomId"))
	if errors.Is(err, domain.ErrRoomNotFound) {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to load room")
		writeError(w, http.StatusInternalServerError, "Failed to load room")
		return
	}

	writeJSON(w, http.StatusOK, protocol.RoomInfo{
		RoomID:           room.ID.String(),
		HostName:         room.HostName,
		ParticipantCount: len(room.Participants),
		IsActive:         room.Active,
	})
}

// joinURL points at the web client's room page on the host the request came in on.
func joinURL(r *http.Request, id domain.RoomID) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + "/room/" + id.String()
}
