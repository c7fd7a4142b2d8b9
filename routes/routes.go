package routes

import (
	"github.com/Dosada05/the-match/handlers"
	"github.com/Dosada05/the-match/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes wires all HTTP endpoints. Reads are public; everything that
// mutates state sits behind the JWT middleware.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	matchHandler *handlers.MatchHandler,
	participantHandler *handlers.ParticipantHandler,
	gameHandler *handlers.GameHandler,
	teamHandler *handlers.TeamHandler,
	inviteHandler *handlers.InviteHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/matches", func(r chi.Router) {
		r.Get("/", matchHandler.ListHandler)
		r.Get("/{matchID}", matchHandler.GetByIDHandler)
		r.Get("/{matchID}/status", matchHandler.StatusReportHandler)
		r.Get("/{matchID}/participants", participantHandler.ListHandler)
		r.Get("/{matchID}/games", gameHandler.ListHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", matchHandler.CreateHandler)
			r.Put("/{matchID}", matchHandler.UpdateHandler)
			r.Delete("/{matchID}", matchHandler.DeleteHandler)
			r.Patch("/{matchID}/status", matchHandler.TransitionStatusHandler)
			r.Post("/{matchID}/logo", matchHandler.UploadLogoHandler)

			r.Post("/{matchID}/participants", participantHandler.ApplyHandler)
			r.Put("/{matchID}/participants/{teamID}", participantHandler.RespondHandler)
			r.Delete("/{matchID}/participants/{teamID}", participantHandler.WithdrawHandler)

			r.Post("/{matchID}/games/{gameID}/score", gameHandler.RecordResultHandler)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", teamHandler.CreateHandler)
			r.Put("/{teamID}", teamHandler.UpdateHandler)
			r.Delete("/{teamID}", teamHandler.DeleteHandler)
			r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)

			r.Post("/{teamID}/invites", inviteHandler.CreateHandler)
			r.Delete("/{teamID}/invites/{token}", inviteHandler.RevokeHandler)
		})
	})

	router.Get("/invites/{token}", inviteHandler.ResolveHandler)

	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)
}
