package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
	"github.com/kjstillabower/hoosier-weekend-helper/internal/observability"
)

// DefaultBaseURL is the public National Weather Service API.
const DefaultBaseURL = "https://api.weather.gov"

// maxBodyBytes caps how much of an upstream response is read.
const maxBodyBytes = 2 << 20

// Step labels for metrics and error wrapping.
const (
	StepPoints   = "points"
	StepForecast = "forecast"
)

// WeatherClient performs the two dependent upstream lookups.
type WeatherClient interface {
	LookupForecastURL(ctx context.Context, latitude, longitude float64) (string, error)
	GetCurrentPeriod(ctx context.Context, forecastURL string) (models.Period, error)
}

var (
	ErrMissingUserAgent  = errors.New("user agent required")
	ErrLocationNotFound  = errors.New("location not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// NWSClient talks to api.weather.gov. It performs no retries.
type NWSClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNWSClient creates a client. The provider rejects requests without an identifying
// User-Agent, so userAgent is required. timeout bounds each individual HTTP call.
func NewNWSClient(baseURL, userAgent string, timeout time.Duration) (*NWSClient, error) {
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("%w: set weather_api.user_agent", ErrMissingUserAgent)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	return &NWSClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Name             string   `json:"name"`
			Temperature      *float64 `json:"temperature"`
			TemperatureUnit  string   `json:"temperatureUnit"`
			ShortForecast    string   `json:"shortForecast"`
			DetailedForecast string   `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// LookupForecastURL resolves a coordinate to its gridpoint forecast URL.
func (c *NWSClient) LookupForecastURL(ctx context.Context, latitude, longitude float64) (string, error) {
	// weather.gov redirects requests with more than four decimals of precision.
	endpoint := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, latitude, longitude)

	var resp pointsResponse
	if err := c.getJSON(ctx, StepPoints, endpoint, &resp); err != nil {
		return "", err
	}

	forecast := strings.TrimSpace(resp.Properties.Forecast)
	if forecast == "" {
		return "", fmt.Errorf("%w: points response missing forecast URL", ErrMalformedResponse)
	}
	u, err := url.Parse(forecast)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid forecast URL %q", ErrMalformedResponse, forecast)
	}
	return forecast, nil
}

// GetCurrentPeriod fetches the forecast and returns its first (nearest-term) period.
func (c *NWSClient) GetCurrentPeriod(ctx context.Context, forecastURL string) (models.Period, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, StepForecast, forecastURL, &resp); err != nil {
		return models.Period{}, err
	}

	if len(resp.Properties.Periods) == 0 {
		return models.Period{}, fmt.Errorf("%w: forecast has no periods", ErrMalformedResponse)
	}
	p := resp.Properties.Periods[0]
	if p.Temperature == nil {
		return models.Period{}, fmt.Errorf("%w: period missing temperature", ErrMalformedResponse)
	}
	if strings.TrimSpace(p.ShortForecast) == "" {
		return models.Period{}, fmt.Errorf("%w: period missing shortForecast", ErrMalformedResponse)
	}

	temp := int(math.Round(*p.Temperature))
	if strings.EqualFold(p.TemperatureUnit, "C") {
		temp = celsiusToFahrenheit(*p.Temperature)
	}
	return models.Period{
		Name:             p.Name,
		Temperature:      temp,
		TemperatureUnit:  "F",
		ShortForecast:    p.ShortForecast,
		DetailedForecast: p.DetailedForecast,
	}, nil
}

// getJSON issues a GET for one step, records metrics and decodes the body into v.
func (c *NWSClient) getJSON(ctx context.Context, step, endpoint string, v interface{}) error {
	start := time.Now()

	req, err := c.buildRequest(ctx, endpoint)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(step, "error").Inc()
		return fmt.Errorf("%s: build request: %w", step, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues(step, "error").Inc()
		observability.WeatherAPIDuration.WithLabelValues(step, "error").Observe(time.Since(start).Seconds())
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: request timeout: %w", step, err)
		}
		return fmt.Errorf("%s: http request failed: %w", step, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(step, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(step, status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response body: %w", step, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: %w: parse response: %v", step, ErrMalformedResponse, err)
	}
	return nil
}

func (c *NWSClient) buildRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")
	req.Header.Set("User-Agent", c.userAgent)
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func celsiusToFahrenheit(c float64) int {
	return int(math.Round(c*9/5 + 32))
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
