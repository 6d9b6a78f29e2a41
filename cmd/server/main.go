package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quizcraft/quizcraft-backend/internal/config"
	"github.com/quizcraft/quizcraft-backend/internal/database"
	"github.com/quizcraft/quizcraft-backend/internal/handler"
	"github.com/quizcraft/quizcraft-backend/internal/logger"
	"github.com/quizcraft/quizcraft-backend/internal/middleware"
	"github.com/quizcraft/quizcraft-backend/internal/repository"
	"github.com/quizcraft/quizcraft-backend/internal/router"
	"github.com/quizcraft/quizcraft-backend/internal/service"
	"github.com/quizcraft/quizcraft-backend/internal/validator"
	"github.com/quizcraft/quizcraft-backend/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting QuizCraft Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	quizRepo := repository.NewQuizRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	leaderboardRepo := repository.NewLeaderboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	quizService := service.NewQuizService(quizRepo, rdb, cfg.QuizCacheTTL, log)
	leaderboardService := service.NewLeaderboardService(leaderboardRepo, rdb, cfg.LeaderboardCacheTTL, log)
	attemptService := service.NewAttemptService(attemptRepo, userRepo, quizService, leaderboardService, log)
	userService := service.NewUserService(userRepo, attemptRepo, quizService)
	relayService := service.NewRelayService(rdb, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Quiz:    handler.NewQuizHandler(quizService),
		Attempt: handler.NewAttemptHandler(attemptService),
		User:    handler.NewUserHandler(userService, quizService, leaderboardService),
		WS:      handler.NewWSHandler(quizService, relayService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workers, workerCtx := errgroup.WithContext(workerCtx)

	statsWorker := worker.NewStatsWorker(quizService, rdb, log)
	workers.Go(func() error {
		statsWorker.Start(workerCtx)
		return nil
	})

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load the newest public quizzes into Redis BEFORE accepting traffic.
	if err := quizService.PrewarmPublicCaches(ctx, cfg.PrewarmLimit); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	limiterStop := make(chan struct{})
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute, limiterStop)
	r := router.SetupRouter(authService, limiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	close(limiterStop)

	// 2. Stop background workers and wait for the queue batch to flush.
	workerCancel()
	_ = workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
