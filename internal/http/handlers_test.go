package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/lifecycle"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/resolver"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/traffic"
)

// stubResolver returns a fixed outcome and counts calls.
type stubResolver struct {
	fallback bool
	calls    atomic.Int32
	lastLoc  atomic.Value
}

func (s *stubResolver) Resolve(ctx context.Context, loc models.Location) resolver.Outcome {
	s.calls.Add(1)
	s.lastLoc.Store(loc)
	if s.fallback {
		return resolver.Outcome{Status: resolver.StatusFallback, Report: resolver.FallbackReport(loc.Name)}
	}
	return resolver.Outcome{
		Status: resolver.StatusResolved,
		Report: resolver.BuildReport(loc.Name, models.Period{
			Temperature:      75,
			TemperatureUnit:  "F",
			ShortForecast:    "Sunny",
			DetailedForecast: "Sunny, with a high near 75.",
		}),
	}
}

var testLimits = Limits{TownMinLength: 2, TownMaxLength: 64}

func townRequest(path, town string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	return mux.SetURLVars(req, map[string]string{"town": town})
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func resetState(t *testing.T) {
	t.Helper()
	traffic.Reset()
	lifecycle.SetShuttingDown(false)
	t.Cleanup(func() {
		traffic.Reset()
		lifecycle.SetShuttingDown(false)
	})
}

// TestHandler_ListTowns verifies all six towns are listed in display order.
func TestHandler_ListTowns(t *testing.T) {
	handler := NewHandler(&stubResolver{}, nil, testLimits, zap.NewNop())

	w := httptest.NewRecorder()
	handler.ListTowns(w, httptest.NewRequest("GET", "/towns", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Towns []townEntry `json:"towns"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Towns) != 6 {
		t.Fatalf("len(towns) = %d, want 6", len(resp.Towns))
	}
	if resp.Towns[0].Name != "Carmel" {
		t.Errorf("towns[0] = %q, want Carmel", resp.Towns[0].Name)
	}
	for _, tw := range resp.Towns {
		if tw.Color == "" || tw.Latitude == 0 || tw.Longitude == 0 {
			t.Errorf("town %+v missing color or coordinates", tw)
		}
	}
}

// TestHandler_GetTownWeather_Live verifies a live report is returned with the live source header.
func TestHandler_GetTownWeather_Live(t *testing.T) {
	resetState(t)
	stub := &stubResolver{}
	handler := NewHandler(stub, nil, testLimits, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetTownWeather(w, townRequest("/towns/fishers/weather", "fishers"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Weather-Source"); got != "live" {
		t.Errorf("X-Weather-Source = %q, want live", got)
	}
	var report models.ConditionsReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TemperatureFahrenheit != 75 || !report.OutdoorFavorable || report.IsFallback {
		t.Errorf("report = %+v, want 75F favorable live", report)
	}
	if report.Icon != models.IconSun {
		t.Errorf("icon = %q, want sun", report.Icon)
	}
	loc := stub.lastLoc.Load().(models.Location)
	if loc.Name != "Fishers" {
		t.Errorf("resolved location = %q, want canonical Fishers", loc.Name)
	}
	if _, total := traffic.FallbackRate(time.Minute); total != 1 {
		t.Errorf("traffic total = %d, want 1", total)
	}
}

// TestHandler_GetTownWeather_Fallback verifies fallback outcomes still return 200.
func TestHandler_GetTownWeather_Fallback(t *testing.T) {
	resetState(t)
	handler := NewHandler(&stubResolver{fallback: true}, nil, testLimits, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetTownWeather(w, townRequest("/towns/Carmel/weather", "Carmel"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Weather-Source"); got != "fallback" {
		t.Errorf("X-Weather-Source = %q, want fallback", got)
	}
	var report models.ConditionsReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.IsFallback || report.TemperatureFahrenheit != 72 || report.ShortDescription != "Partly Cloudy" {
		t.Errorf("report = %+v, want fixed fallback", report)
	}
	if fallbacks, _ := traffic.FallbackRate(time.Minute); fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
}

// TestHandler_TownErrors verifies validation (400) and catalog misses (404) never reach the resolver.
func TestHandler_TownErrors(t *testing.T) {
	tests := []struct {
		name     string
		town     string
		wantCode int
		wantErr  string
	}{
		{"unknown town", "Gary", http.StatusNotFound, "TOWN_NOT_FOUND"},
		{"empty", "   ", http.StatusBadRequest, "INVALID_TOWN"},
		{"too short", "x", http.StatusBadRequest, "INVALID_TOWN"},
		{"invalid chars", "carmel<script>", http.StatusBadRequest, "INVALID_TOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubResolver{}
			handler := NewHandler(stub, nil, testLimits, zap.NewNop())

			w := httptest.NewRecorder()
			handler.GetTownWeather(w, townRequest("/towns/x/weather", tt.town))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantErr {
				t.Errorf("error.code = %q, want %q", body.Error.Code, tt.wantErr)
			}
			if stub.calls.Load() != 0 {
				t.Errorf("resolver called %d times, want 0", stub.calls.Load())
			}
		})
	}
}

// TestHandler_GetTown_Summary verifies the combined weekend view.
func TestHandler_GetTown_Summary(t *testing.T) {
	resetState(t)
	handler := NewHandler(&stubResolver{}, nil, testLimits, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetTown(w, townRequest("/towns/indianapolis", "indianapolis"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var summary townSummary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Town != "Indianapolis" {
		t.Errorf("town = %q, want Indianapolis", summary.Town)
	}
	if len(summary.Events) != 3 {
		t.Errorf("len(events) = %d, want 3", len(summary.Events))
	}
	if summary.MaintenanceTip == "" {
		t.Error("maintenanceTip is empty")
	}
	if summary.Weather.Location != "Indianapolis" {
		t.Errorf("weather.location = %q", summary.Weather.Location)
	}
}

// TestHandler_EventsAndMaintenance verifies static content routes skip weather resolution.
func TestHandler_EventsAndMaintenance(t *testing.T) {
	stub := &stubResolver{}
	handler := NewHandler(stub, nil, testLimits, zap.NewNop())

	w := httptest.NewRecorder()
	handler.GetTownEvents(w, townRequest("/towns/westfield/events", "westfield"))
	if w.Code != http.StatusOK {
		t.Fatalf("events status = %d, want 200", w.Code)
	}
	var events struct {
		Town   string         `json:"town"`
		Events []models.Event `json:"events"`
	}
	if err := json.NewDecoder(w.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if events.Town != "Westfield" || len(events.Events) == 0 {
		t.Errorf("events = %+v", events)
	}

	w = httptest.NewRecorder()
	handler.GetTownMaintenance(w, townRequest("/towns/zionsville/maintenance", "zionsville"))
	if w.Code != http.StatusOK {
		t.Fatalf("maintenance status = %d, want 200", w.Code)
	}
	var tip struct {
		Town string `json:"town"`
		Tip  string `json:"tip"`
	}
	if err := json.NewDecoder(w.Body).Decode(&tip); err != nil {
		t.Fatalf("decode tip: %v", err)
	}
	if tip.Town != "Zionsville" || tip.Tip == "" {
		t.Errorf("tip = %+v", tip)
	}

	if stub.calls.Load() != 0 {
		t.Errorf("resolver called %d times, want 0", stub.calls.Load())
	}
}

func healthStatus(t *testing.T, handler *Handler) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	handler.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return w.Code, body
}

// TestHandler_GetHealth covers each health state in priority order.
func TestHandler_GetHealth(t *testing.T) {
	cfg := &HealthConfig{
		OverloadWindow:       time.Minute,
		OverloadThresholdPct: 50,
		RateLimitRPS:         1,
		DegradedWindow:       time.Minute,
		DegradedFallbackPct:  50,
	}

	t.Run("healthy without config", func(t *testing.T) {
		resetState(t)
		code, body := healthStatus(t, NewHandler(&stubResolver{}, nil, testLimits, zap.NewNop()))
		if code != http.StatusOK || body["status"] != "healthy" {
			t.Errorf("got %d %v, want 200 healthy", code, body["status"])
		}
		if body["service"] != "hoosier-weekend-helper" {
			t.Errorf("service = %v", body["service"])
		}
	})

	t.Run("shutting down", func(t *testing.T) {
		resetState(t)
		lifecycle.SetShuttingDown(true)
		code, body := healthStatus(t, NewHandler(&stubResolver{}, cfg, testLimits, zap.NewNop()))
		if code != http.StatusServiceUnavailable || body["status"] != "shutting-down" {
			t.Errorf("got %d %v, want 503 shutting-down", code, body["status"])
		}
	})

	t.Run("overloaded", func(t *testing.T) {
		resetState(t)
		// threshold = 1 rps * 60s * 50% = 30
		for i := 0; i < 31; i++ {
			traffic.RecordDenied()
		}
		code, body := healthStatus(t, NewHandler(&stubResolver{}, cfg, testLimits, zap.NewNop()))
		if code != http.StatusServiceUnavailable || body["status"] != "overloaded" {
			t.Errorf("got %d %v, want 503 overloaded", code, body["status"])
		}
	})

	t.Run("degraded by fallback rate", func(t *testing.T) {
		resetState(t)
		traffic.RecordResolved()
		traffic.RecordFallback()
		code, body := healthStatus(t, NewHandler(&stubResolver{}, cfg, testLimits, zap.NewNop()))
		if code != http.StatusOK || body["status"] != "degraded" {
			t.Errorf("got %d %v, want 200 degraded", code, body["status"])
		}
		checks := body["checks"].(map[string]interface{})
		if checks["weatherApi"] != "unhealthy" {
			t.Errorf("checks.weatherApi = %v, want unhealthy", checks["weatherApi"])
		}
	})

	t.Run("healthy below fallback threshold", func(t *testing.T) {
		resetState(t)
		traffic.RecordResolved()
		traffic.RecordResolved()
		traffic.RecordFallback()
		code, body := healthStatus(t, NewHandler(&stubResolver{}, cfg, testLimits, zap.NewNop()))
		if code != http.StatusOK || body["status"] != "healthy" {
			t.Errorf("got %d %v, want 200 healthy", code, body["status"])
		}
	})

	t.Run("degraded when breaker open", func(t *testing.T) {
		resetState(t)
		withBreaker := *cfg
		withBreaker.BreakerState = func() string { return "open" }
		code, body := healthStatus(t, NewHandler(&stubResolver{}, &withBreaker, testLimits, zap.NewNop()))
		if code != http.StatusOK || body["status"] != "degraded" {
			t.Errorf("got %d %v, want 200 degraded", code, body["status"])
		}
		checks := body["checks"].(map[string]interface{})
		if checks["circuitBreaker"] != "open" {
			t.Errorf("checks.circuitBreaker = %v, want open", checks["circuitBreaker"])
		}
	})
}

// TestHandler_GetHealth_LogsTransition verifies a status change is logged once at INFO.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	resetState(t)
	core, logs := observer.New(zap.DebugLevel)
	handler := NewHandler(&stubResolver{}, &HealthConfig{
		DegradedWindow:      time.Minute,
		DegradedFallbackPct: 50,
	}, testLimits, zap.New(core))

	traffic.RecordResolved()
	healthStatus(t, handler)
	if logs.Len() != 0 {
		t.Fatalf("first call should not log transition; got %d logs", logs.Len())
	}

	traffic.RecordFallback()
	traffic.RecordFallback()
	healthStatus(t, handler)

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 transition log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" {
		t.Errorf("transition fields = %v", fields)
	}
	if fields["reason"] != "fallback_rate_breach" {
		t.Errorf("reason = %v, want fallback_rate_breach", fields["reason"])
	}

	healthStatus(t, handler)
	if logs.Len() != 1 {
		t.Errorf("unchanged status should not log; total logs = %d, want 1", logs.Len())
	}
}
