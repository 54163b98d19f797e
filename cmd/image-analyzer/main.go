package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/ai-image-analyzer/internal/analyzer"
	"github.com/aliskhannn/ai-image-analyzer/internal/api/handlers/image"
	"github.com/aliskhannn/ai-image-analyzer/internal/api/router"
	"github.com/aliskhannn/ai-image-analyzer/internal/api/server"
	"github.com/aliskhannn/ai-image-analyzer/internal/auth"
	"github.com/aliskhannn/ai-image-analyzer/internal/config"
	"github.com/aliskhannn/ai-image-analyzer/internal/processor"
	imagerepo "github.com/aliskhannn/ai-image-analyzer/internal/repository/image"
	imagesvc "github.com/aliskhannn/ai-image-analyzer/internal/service/image"
	"github.com/aliskhannn/ai-image-analyzer/internal/storage/file"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	// Collect slave DSNs for replica connections.
	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for the outbound auth verification calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize object storage (MinIO).
	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// External collaborators: token verification and the vision model.
	verifier := auth.NewVerifier(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.Timeout, strategy)
	vision := analyzer.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Timeout)

	// Repository, pipeline and service layer.
	repo := imagerepo.NewRepository(db)
	proc := processor.New(repo, storage, vision, processor.Config{
		ThumbnailSize: cfg.Processing.ThumbnailSize,
		MaxTags:       cfg.Processing.MaxTags,
		TopColors:     cfg.Processing.TopColors,
	})
	service := imagesvc.NewService(storage, repo, proc)

	// HTTP handler for image routes.
	imgHandler := image.NewHandler(service)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(imgHandler, verifier)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("server started")

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Graceful shutdown with timeout for HTTP server. In-flight
	// background pipelines are fire-and-forget and are not awaited.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}
}
