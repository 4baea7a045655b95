package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/circuitbreaker"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/client"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/config"
	httphandler "github.com/kjstillabower/hoosier-weekend-helper/internal/http"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/lifecycle"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/resolver"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/towns"
)

const breakerComponent = "weather_api"

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewNWSClient(cfg.WeatherAPIURL, cfg.WeatherUserAgent, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	opts := []resolver.Option{resolver.WithLogger(logger)}
	cb := newBreaker(cfg)
	if cb != nil {
		opts = append(opts, resolver.WithCircuitBreaker(cb))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}
	res := resolver.New(weatherClient, opts...)

	observability.SetTrackedTowns(towns.Names())
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	limiter := newLimiter(cfg)
	if limiter == nil {
		logger.Info("rate limiting disabled")
	}
	handler := httphandler.NewHandler(res, healthConfig(cfg, cb), httphandler.Limits{
		TownMinLength: cfg.TownMinLength,
		TownMaxLength: cfg.TownMaxLength,
	}, logger)

	// WriteTimeout leaves headroom over the upstream client timeout for both steps.
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, logger, limiter),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.WeatherAPITimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("upstream", cfg.WeatherAPIURL))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()
	lifecycle.MarkServing(time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// newBreaker returns nil when the circuit breaker is disabled.
// newLimiter returns nil when rate_limit_rps is 0.
func newLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
}

func newBreaker(cfg *config.Config) *circuitbreaker.CircuitBreaker {
	if !cfg.CircuitBreakerEnabled {
		return nil
	}
	observability.RecordCircuitBreakerTransition(breakerComponent, "none", circuitbreaker.StateClosed.String(), int(circuitbreaker.StateClosed))
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        breakerComponent,
		OnStateChange: func(component string, from, to circuitbreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
		},
	})
}

func healthConfig(cfg *config.Config, cb *circuitbreaker.CircuitBreaker) *httphandler.HealthConfig {
	hc := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedFallbackPct:  cfg.DegradedFallbackPct,
	}
	if cb != nil {
		hc.BreakerState = func() string { return cb.State().String() }
	}
	return hc
}
