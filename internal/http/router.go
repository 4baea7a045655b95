package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
)

// NewRouter wires the handler routes and middleware. limiter may be nil to disable
// rate limiting; it applies to /towns routes only.
func NewRouter(h *Handler, logger *zap.Logger, limiter *rate.Limiter) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	// Full paths on the root router so a method mismatch is a 405, not a subrouter 404.
	limited := RateLimitMiddleware(limiter)
	townRoutes := []struct {
		path    string
		handler http.HandlerFunc
	}{
		{"/towns", h.ListTowns},
		{"/towns/{town}", h.GetTown},
		{"/towns/{town}/weather", h.GetTownWeather},
		{"/towns/{town}/events", h.GetTownEvents},
		{"/towns/{town}/maintenance", h.GetTownMaintenance},
	}
	for _, route := range townRoutes {
		router.Handle(route.path, limited(route.handler)).Methods(http.MethodGet)
	}

	return router
}
