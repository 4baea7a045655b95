package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/lifecycle"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/resolver"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/towns"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/traffic"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/validation"
)

// WeatherResolver produces a terminal Outcome for a location. *resolver.Resolver satisfies it.
type WeatherResolver interface {
	Resolve(ctx context.Context, loc models.Location) resolver.Outcome
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int // 0 when rate limiter disabled
	DegradedWindow       time.Duration
	DegradedFallbackPct  int
	// BreakerState, when set, reports the upstream circuit breaker state.
	BreakerState func() string
}

// Limits bounds accepted town path values.
type Limits struct {
	TownMinLength int
	TownMaxLength int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	resolver         WeatherResolver
	healthConfig     *HealthConfig
	limits           Limits
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(res WeatherResolver, healthConfig *HealthConfig, limits Limits, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		resolver:     res,
		healthConfig: healthConfig,
		limits:       limits,
		logger:       logger,
	}
}

type townEntry struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Color     string  `json:"color"`
}

type townSummary struct {
	Town           string                  `json:"town"`
	Color          string                  `json:"color"`
	Weather        models.ConditionsReport `json:"weather"`
	Events         []models.Event          `json:"events"`
	MaintenanceTip string                  `json:"maintenanceTip"`
}

// ListTowns handles GET /towns.
func (h *Handler) ListTowns(w http.ResponseWriter, r *http.Request) {
	all := towns.All()
	entries := make([]townEntry, 0, len(all))
	for _, t := range all {
		entries = append(entries, townEntry{
			Name:      t.Name,
			Latitude:  t.Latitude,
			Longitude: t.Longitude,
			Color:     t.Color,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"towns": entries})
}

// GetTown handles GET /towns/{town}: weather, events and the maintenance tip in one response.
func (h *Handler) GetTown(w http.ResponseWriter, r *http.Request) {
	town, ok := h.townFromRequest(w, r)
	if !ok {
		return
	}
	outcome := h.resolve(r.Context(), town.Location)
	setWeatherSource(w, outcome)
	writeJSON(w, http.StatusOK, townSummary{
		Town:           town.Name,
		Color:          town.Color,
		Weather:        outcome.Report,
		Events:         town.Events,
		MaintenanceTip: town.MaintenanceTip,
	})
}

// GetTownWeather handles GET /towns/{town}/weather. Always 200 for a known town;
// isFallback in the body and X-Weather-Source signal degraded data.
func (h *Handler) GetTownWeather(w http.ResponseWriter, r *http.Request) {
	town, ok := h.townFromRequest(w, r)
	if !ok {
		return
	}
	outcome := h.resolve(r.Context(), town.Location)
	setWeatherSource(w, outcome)
	writeJSON(w, http.StatusOK, outcome.Report)
}

// GetTownEvents handles GET /towns/{town}/events.
func (h *Handler) GetTownEvents(w http.ResponseWriter, r *http.Request) {
	town, ok := h.townFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"town":   town.Name,
		"events": town.Events,
	})
}

// GetTownMaintenance handles GET /towns/{town}/maintenance.
func (h *Handler) GetTownMaintenance(w http.ResponseWriter, r *http.Request) {
	town, ok := h.townFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"town": town.Name,
		"tip":  town.MaintenanceTip,
	})
}

func (h *Handler) resolve(ctx context.Context, loc models.Location) resolver.Outcome {
	outcome := h.resolver.Resolve(ctx, loc)
	if outcome.Live() {
		traffic.RecordResolved()
	} else {
		traffic.RecordFallback()
	}
	return outcome
}

// townFromRequest validates the {town} path value and looks it up in the catalog.
// Writes the error response and returns false when the town cannot be served.
func (h *Handler) townFromRequest(w http.ResponseWriter, r *http.Request) (models.Town, bool) {
	name, err := validation.ValidateTown(mux.Vars(r)["town"], h.limits.TownMinLength, h.limits.TownMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_TOWN", err.Error())
		return models.Town{}, false
	}
	town, err := towns.Lookup(name)
	if err != nil {
		if errors.Is(err, towns.ErrTownNotFound) {
			writeError(w, r, http.StatusNotFound, "TOWN_NOT_FOUND", "unknown town: "+name)
			return models.Town{}, false
		}
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "town lookup failed")
		return models.Town{}, false
	}
	return town, true
}

func setWeatherSource(w http.ResponseWriter, outcome resolver.Outcome) {
	source := "fallback"
	if outcome.Live() {
		source = "live"
	}
	w.Header().Set("X-Weather-Source", source)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	if h.healthConfig != nil && h.healthConfig.BreakerState != nil {
		checks["circuitBreaker"] = h.healthConfig.BreakerState()
	}
	now := time.Now()
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":        result.status,
		"service":       "hoosier-weekend-helper",
		"version":       "dev",
		"checks":        checks,
		"uptimeSeconds": int64(lifecycle.Uptime(now).Seconds()),
		"timestamp":     now.UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	cfg := h.healthConfig
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 && cfg.OverloadThresholdPct > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(traffic.RequestCount(cfg.OverloadWindow)) > threshold {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	// Fallback responses are still served, so degraded stays 200 for load balancers.
	if cfg.DegradedWindow > 0 && cfg.DegradedFallbackPct > 0 {
		fallbacks, total := traffic.FallbackRate(cfg.DegradedWindow)
		if total > 0 && float64(fallbacks)*100/float64(total) >= float64(cfg.DegradedFallbackPct) {
			return healthResult{"degraded", http.StatusOK, "fallback_rate_breach"}
		}
	}
	if cfg.BreakerState != nil && cfg.BreakerState() == "open" {
		return healthResult{"degraded", http.StatusOK, "circuit_open"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
