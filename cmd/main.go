package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/the-match/brackets"
	"github.com/Dosada05/the-match/config"
	"github.com/Dosada05/the-match/db"
	"github.com/Dosada05/the-match/handlers"
	"github.com/Dosada05/the-match/repositories"
	api "github.com/Dosada05/the-match/routes"
	"github.com/Dosada05/the-match/services"
	"github.com/Dosada05/the-match/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("websocket hub started")

	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)

	bracketService := services.NewBracketService(participantRepo, gameRepo, logger)
	matchService := services.NewMatchService(
		repositories.NewTxRunner(dbConn),
		matchRepo,
		participantRepo,
		gameRepo,
		teamRepo,
		bracketService,
		uploader,
		wsHub,
		logger,
	)
	participantService := services.NewParticipantService(matchRepo, participantRepo, teamRepo, wsHub, logger)
	gameService := services.NewGameService(matchRepo, gameRepo, wsHub, logger)
	teamService := services.NewTeamService(teamRepo, uploader, logger)
	inviteService := services.NewInviteService(inviteRepo, teamRepo, logger)

	matchHandler := handlers.NewMatchHandler(matchService)
	participantHandler := handlers.NewParticipantHandler(participantService)
	gameHandler := handlers.NewGameHandler(gameService)
	teamHandler := handlers.NewTeamHandler(teamService)
	inviteHandler := handlers.NewInviteHandler(inviteService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, matchService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		matchHandler,
		participantHandler,
		gameHandler,
		teamHandler,
		inviteHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shut down gracefully")
		}
	}
}
