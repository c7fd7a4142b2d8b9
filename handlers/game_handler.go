package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/the-match/middleware"
	"github.com/Dosada05/the-match/services"
)

type GameHandler struct {
	gameService services.GameService
}

func NewGameHandler(gs services.GameService) *GameHandler {
	return &GameHandler{gameService: gs}
}

// RecordResultHandler handles POST /matches/{matchID}/games/{gameID}/score
func (h *GameHandler) RecordResultHandler(w http.ResponseWriter, r *http.Request) {
	currentUserID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required to record a result")
		return
	}

	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	gameID, err := getIDFromURL(r, "gameID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RecordResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	game, err := h.gameService.RecordResult(r.Context(), matchID, gameID, currentUserID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"game": game}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /matches/{matchID}/games
func (h *GameHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if roundStr := r.URL.Query().Get("round"); roundStr != "" {
		if n, err := strconv.Atoi(roundStr); err == nil && n > 0 {
			round = &n
		} else {
			badRequestResponse(w, r, errors.New("invalid round query parameter"))
			return
		}
	}

	games, err := h.gameService.ListByMatch(r.Context(), matchID, round)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"games": games}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
