package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict Origin to the frontend host once it is deployed.
		return true
	},
}

type WebSocketHandler struct {
	hub          *brackets.Hub
	matchService services.MatchService
	logger       *slog.Logger
}

func NewWebSocketHandler(hub *brackets.Hub, ms services.MatchService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, matchService: ms, logger: logger}
}

// ServeWs subscribes a client to live updates for one match. Clients connect
// to /ws/matches/{matchID} and receive status, bracket and result events.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if _, err := h.matchService.GetMatchByID(r.Context(), matchID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		h.logger.Warn("websocket upgrade failed",
			slog.Int("match_id", matchID), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: brackets.MatchRoom(matchID),
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("websocket client joined",
		slog.Int("match_id", matchID), slog.String("room", client.Room))
}
