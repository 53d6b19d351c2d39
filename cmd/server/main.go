package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/therapyflow/calsync/internal/api"
	"github.com/therapyflow/calsync/internal/calendar"
	"github.com/therapyflow/calsync/internal/config"
	"github.com/therapyflow/calsync/internal/database"
	"github.com/therapyflow/calsync/internal/repositories"
	"github.com/therapyflow/calsync/internal/services"
	"github.com/therapyflow/calsync/internal/sync"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Initialize database connections
	if err := database.RunMigrations(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	apptRepo := repositories.NewPostgresAppointmentRepository(postgresPool)
	clientRepo := repositories.NewPostgresClientRepository(postgresPool)
	statusRepo := repositories.NewRedisSyncStatusRepository(redisClient)

	// Calendar provider
	creds := calendar.NewOAuthCredentials(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	calService := calendar.NewGoogleService(creds)

	// Sync engine and supporting pieces
	queue := sync.NewOperationQueue(cfg.SyncOperationDelay, logger)
	defer queue.Close()
	history := sync.NewHistory(sync.DefaultHistorySize)

	engine := sync.NewEngine(creds, calService, apptRepo, clientRepo, statusRepo, queue, history, logger, sync.Config{
		PageDelay: cfg.SyncPageDelay,
	})

	tokens := services.NewTokenService(cfg.JWTSecret, 24*time.Hour)
	handler := api.NewHandler(engine, queue, history, statusRepo, tokens)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	router.Mount("/api", handler.Routes())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
