package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lnrs/assessment-portal/internal/config"
	"github.com/lnrs/assessment-portal/internal/database"
	"github.com/lnrs/assessment-portal/internal/engine"
	"github.com/lnrs/assessment-portal/internal/executor"
	"github.com/lnrs/assessment-portal/internal/handler"
	"github.com/lnrs/assessment-portal/internal/logger"
	"github.com/lnrs/assessment-portal/internal/middleware"
	"github.com/lnrs/assessment-portal/internal/repository"
	"github.com/lnrs/assessment-portal/internal/router"
	"github.com/lnrs/assessment-portal/internal/service"
	"github.com/lnrs/assessment-portal/internal/validator"
	"github.com/lnrs/assessment-portal/internal/worker"
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
		Msg("Starting assessment portal")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	examRepo := repository.NewExamRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	codeRepo := repository.NewCodeSubmissionRepository(pool)
	recordingRepo := repository.NewRecordingRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	questionService := service.NewQuestionService(examRepo, rdb, log)
	answerService := service.NewAnswerService(answerRepo, rdb, log)
	sessionService := service.NewExamSessionService(sessionRepo, examRepo, rdb, log)
	violationService := service.NewViolationService(rdb)
	recordingService := service.NewRecordingService(cfg, recordingRepo, log)
	codeService := service.NewCodeService(executor.New(cfg.ExecutorURL, cfg.ExecutorTimeout), codeRepo, log)

	// ─── Session Registry ─────────────────────────────────────────────
	registry := engine.NewRegistry(engine.Deps{
		Questions:  questionService,
		Answers:    answerService,
		Executor:   codeService,
		Recordings: recordingService,
		Violations: violationService,
		Lifecycle:  sessionService,
	}, engineConfig(cfg))

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Exam:      handler.NewExamHandler(questionService),
		Session:   handler.NewSessionHandler(registry),
		Code:      handler.NewCodeHandler(),
		Recording: handler.NewRecordingHandler(recordingService),
		WS:        handler.NewWSHandler(log, cfg.AllowedOrigins),
	}

	codeLimiter := middleware.NewRateLimiter(cfg.CodeRunPerMin, time.Minute).WithKey(middleware.KeyByCandidate)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published exams into Redis BEFORE accepting traffic.
	if err := questionService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, registry, codeLimiter, handlers, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Background Workers ─────────────────────────────────────
	// Workers get their own context so they keep draining until the
	// registry has finalized every open session.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	workers, workerCtx := errgroup.WithContext(workerCtx)
	for _, w := range []interface{ Start(context.Context) }{
		worker.NewAutosaveWorker(pool, rdb, log),
		worker.NewViolationWorker(pool, rdb, log),
		worker.NewCompletionWorker(pool, rdb, log),
	} {
		workers.Go(func() error {
			w.Start(workerCtx)
			return nil
		})
	}

	// ─── Serve ─────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return registry.Run(gctx) })
	g.Go(func() error { return codeLimiter.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")

		// Stop accepting new HTTP requests (5s timeout).
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	// Registry.Run has closed every session; let the workers drain what the
	// teardowns queued.
	workerCancel()
	if err := workers.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
	}

	log.Info().Msg("Shutdown complete")
}

func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.DurationSeconds = cfg.ExamDurationSeconds
	ec.WarningSeconds = cfg.TimeWarningSeconds
	ec.MaxTabSwitches = cfg.MaxTabSwitches
	ec.ChunkInterval = cfg.RecordingChunk
	ec.FlushEvery = cfg.RecordingFlushTicks
	ec.Retry = engine.RetryPolicy{Attempts: cfg.RetryAttempts, Delay: cfg.RetryDelay}
	ec.ReapAfter = cfg.SessionReapTTL
	return ec
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
