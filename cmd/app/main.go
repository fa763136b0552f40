package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"mealsnap-backend/internal/config"
	analysisAdapter "mealsnap-backend/internal/infra/adapters/analysis"
	payAdapter "mealsnap-backend/internal/infra/adapters/payment"
	"mealsnap-backend/internal/infra/api"
	pg "mealsnap-backend/internal/infra/db/postgres"
	"mealsnap-backend/internal/infra/logging"
	"mealsnap-backend/internal/infra/metrics"
	red "mealsnap-backend/internal/infra/redis"
	"mealsnap-backend/internal/infra/sched"
	"mealsnap-backend/internal/infra/worker"
	"mealsnap-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient, cfg.Redis.TTL)
	mealRepo := pg.NewMealLogRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Adapters ----
	gateway, err := payAdapter.NewTossGateway(cfg.Payment.Toss.SecretKey, cfg.Payment.Toss.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("toss gateway")
	}
	analyzer, err := analysisAdapter.NewWebhookAnalyzer(cfg.Analysis.WebhookURL, cfg.Analysis.Timeout)
	if err != nil {
		logger.Fatal().Err(err).Msg("analysis webhook")
	}

	// ---- Use cases ----
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, payRepo, tm, cfg.Payment.Toss.SuccessURL, cfg.Payment.Toss.FailURL, logger)
	payUC := usecase.NewPaymentUseCase(payRepo, gateway, subUC, logger)
	planUC := usecase.NewPlanUseCase(planRepo)
	analysisUC := usecase.NewAnalysisUseCase(analyzer, mealRepo, logger)

	// ---- Background reconciliation ----
	pool2 := worker.NewPool(cfg.Reconciler.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()
	reconciler := sched.NewPaymentReconciler(payRepo, gateway, subUC, pool2, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP ----
	srv := api.NewServer(payUC, subUC, planUC, analysisUC, rateLimiter, cfg.Analysis.MaxUploadBytes, cfg.Analysis.RatePerMinute, cfg.Auth.JWTSecret, logger)
	r := chi.NewRouter()
	for _, mw := range []api.Middleware{api.TraceID(), api.RequestLog(logger), api.Recover(logger)} {
		r.Use(mw)
	}
	srv.Register(r)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	// ---- Shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
