package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderfilter/internal/config"
	dbValkey "github.com/kailas-cloud/tenderfilter/internal/db/valkey"
	"github.com/kailas-cloud/tenderfilter/internal/domain/query"
	logpkg "github.com/kailas-cloud/tenderfilter/internal/logger"
	"github.com/kailas-cloud/tenderfilter/internal/metrics"
	"github.com/kailas-cloud/tenderfilter/internal/repository/subcache"
	chiTransport "github.com/kailas-cloud/tenderfilter/internal/transport/chi"
	"github.com/kailas-cloud/tenderfilter/internal/transport/dataset"
	"github.com/kailas-cloud/tenderfilter/internal/transport/httpx"
	"github.com/kailas-cloud/tenderfilter/internal/transport/razorpay"
	"github.com/kailas-cloud/tenderfilter/internal/usecase/filter"
	healthuc "github.com/kailas-cloud/tenderfilter/internal/usecase/health"
	"github.com/kailas-cloud/tenderfilter/internal/version"
)

func main() {
	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("No .env file loaded", zap.Error(envErr))
	}

	logger.Info("Starting tenderfilter API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("subscription_mode", cfg.Subscription.Mode),
		zap.Float64("threshold", *cfg.Filter.Threshold),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	// Register upstream metrics explicitly (no init())
	metrics.RegisterUpstreamMetrics()

	source := dataset.NewClient(&dataset.Config{
		URL:     cfg.Dataset.URL,
		Timeout: time.Duration(cfg.Dataset.TimeoutSec) * time.Second,
		Breaker: httpx.NewCircuitBreaker("dataset",
			time.Duration(cfg.Dataset.Breaker.OpenSec)*time.Second, cfg.Dataset.Breaker.MaxFailures),
		Logger: logger,
	})

	mode, err := filter.ParseGateMode(cfg.Subscription.Mode)
	if err != nil {
		logger.Fatal("Invalid subscription mode", zap.Error(err))
	}

	// Optional cache store, only used for subscription verification results.
	var store *dbValkey.Store
	if cfg.Cache.Driver == "valkey" && mode != filter.GateOff && cfg.Subscription.CacheTTLSec > 0 {
		store, err = dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(context.Background(),
			time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store", zap.Strings("addrs", cfg.Cache.Addrs))
	}

	// Pass nil interface (not typed nil pointer!) when the gate is off.
	var gate filter.SubscriptionChecker
	if mode != filter.GateOff {
		gate = buildGate(cfg.Subscription, store, logger)
	}

	filterSvc := filter.New(source, gate, mode, filter.Options{
		Threshold:  *cfg.Filter.Threshold,
		MaxResults: cfg.Filter.MaxResults,
		Keywords:   query.Options{
			MinKeywordLength: cfg.Filter.MinKeywordLength,
			KeepDuplicates:   cfg.Filter.KeepDuplicates,
		},
	})

	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(source, cachePinger)

	server := chiTransport.NewServer(filterSvc, healthSvc, cfg.Subscription.AccessURL, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildGate assembles the checker chain: Razorpay -> Cached.
func buildGate(cfg config.SubscriptionConfig, store *dbValkey.Store, logger *zap.Logger) filter.SubscriptionChecker {
	checker := razorpay.NewChecker(&razorpay.Config{
		BaseURL:   cfg.BaseURL,
		KeyID:     cfg.KeyID,
		KeySecret: cfg.KeySecret,
		PlanID:    cfg.PlanID,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Breaker: httpx.NewCircuitBreaker("razorpay",
			time.Duration(cfg.Breaker.OpenSec)*time.Second, cfg.Breaker.MaxFailures),
		Logger: logger,
	})

	if store == nil {
		return checker
	}
	return subcache.New(
		checker, store, time.Duration(cfg.CacheTTLSec)*time.Second,
		cfg.PlanID, metrics.SubscriptionCacheTotal, logger,
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Error: chiTransport.MsgInternal,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.Query().Get("query")),
				zap.Bool("has_user_id", r.URL.Query().Get("user_id") != ""),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
