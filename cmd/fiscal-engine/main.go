package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gestorpj/fiscal-engine-go/internal/config"
	"github.com/gestorpj/fiscal-engine-go/internal/domain"
	"github.com/gestorpj/fiscal-engine-go/internal/handler"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/cache"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/resilience"
	"github.com/gestorpj/fiscal-engine-go/internal/infra/supabase"
	"github.com/gestorpj/fiscal-engine-go/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "fiscal-engine")
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	rangeCache := cache.New[*domain.RangeTotals](cfg.CacheTTL)

	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	supabaseClient := supabase.NewClient(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, cb, resilienceCfg, metrics, logger)

	periodSvc := service.NewPeriodService(supabaseClient, rangeCache, metrics, logger, cfg.MaxConcurrency)
	obligationSvc := service.NewObligationService(supabaseClient, supabaseClient, periodSvc, metrics, logger, cfg.UpcomingHorizonDays, cfg.MaxConcurrency)
	taxSvc := service.NewTaxService(periodSvc, metrics, logger)
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTAccessTTL)

	router := handler.NewRouter(obligationSvc, periodSvc, taxSvc, authSvc, metrics, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("fiscal engine listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
