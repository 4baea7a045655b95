// Package resolver turns a Location into a classified ConditionsReport using the two-step
// weather.gov lookup. Resolution never fails outwardly: every error path yields the
// fixed fallback report.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/circuitbreaker"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/client"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
)

// ErrDataUnavailable collapses every upstream failure cause. It never leaves Resolve;
// it is only attached to log entries.
var ErrDataUnavailable = errors.New("weather data unavailable")

// Status tags how an Outcome was produced.
type Status string

const (
	StatusResolved Status = "resolved"
	StatusFallback Status = "fallback"
)

// Outcome is the terminal result of one resolution.
type Outcome struct {
	Status Status                  `json:"status"`
	Report models.ConditionsReport `json:"report"`
}

// Live reports whether the outcome came from upstream data.
func (o Outcome) Live() bool {
	return o.Status == StatusResolved
}

// Resolver holds no per-request state; concurrent Resolve calls are independent.
type Resolver struct {
	client  client.WeatherClient
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCircuitBreaker short-circuits to the fallback while cb is open.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(r *Resolver) { r.breaker = cb }
}

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New returns a Resolver backed by c.
func New(c client.WeatherClient, opts ...Option) *Resolver {
	r := &Resolver{client: c}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Resolve looks up current conditions for loc. It always returns an Outcome; a context
// cancelled by the caller ends in the fallback like any other upstream failure.
func (r *Resolver) Resolve(ctx context.Context, loc models.Location) Outcome {
	start := time.Now()
	logger := observability.LoggerFromContext(ctx, r.logger).With(zap.String("town", loc.Name))

	period, err := r.lookup(ctx, loc)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDataUnavailable, err)
		observability.RecordResolution(loc.Name, string(StatusFallback), time.Since(start))
		logger.Warn("serving fallback weather", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return Outcome{Status: StatusFallback, Report: FallbackReport(loc.Name)}
	}

	report := BuildReport(loc.Name, period)
	observability.RecordResolution(loc.Name, string(StatusResolved), time.Since(start))
	logger.Debug("weather resolved",
		zap.Int("temperature_f", report.TemperatureFahrenheit),
		zap.String("short_forecast", report.ShortDescription),
		zap.String("icon", string(report.Icon)),
		zap.Bool("outdoor_favorable", report.OutdoorFavorable),
		zap.Duration("duration", time.Since(start)))
	return Outcome{Status: StatusResolved, Report: report}
}

// lookup runs the points → forecast pipeline, through the breaker when one is set.
// Caller cancellations are not counted by the breaker.
func (r *Resolver) lookup(ctx context.Context, loc models.Location) (models.Period, error) {
	if r.breaker == nil {
		return r.fetch(ctx, loc)
	}
	var period models.Period
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		var fetchErr error
		period, fetchErr = r.fetch(ctx, loc)
		return fetchErr
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		observability.WeatherAPIErrorsTotal.WithLabelValues("circuit", string(client.ErrorCategoryCircuitOpen)).Inc()
	}
	return period, err
}

func (r *Resolver) fetch(ctx context.Context, loc models.Location) (models.Period, error) {
	forecastURL, err := r.client.LookupForecastURL(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(client.StepPoints, string(client.CategorizeError(err))).Inc()
		return models.Period{}, err
	}
	period, err := r.client.GetCurrentPeriod(ctx, forecastURL)
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(client.StepForecast, string(client.CategorizeError(err))).Inc()
		return models.Period{}, err
	}
	return period, nil
}
