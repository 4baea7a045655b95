package client

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the weatherApiErrorsTotal category label.
const (
	ErrorCategoryTimeout          ErrorCategory = "timeout"
	ErrorCategoryNetwork          ErrorCategory = "network"
	ErrorCategoryLocationNotFound ErrorCategory = "location_not_found"
	ErrorCategoryRateLimited      ErrorCategory = "rate_limited"
	ErrorCategoryUpstream         ErrorCategory = "upstream_status"
	ErrorCategoryParsing          ErrorCategory = "parsing"
	ErrorCategoryCircuitOpen      ErrorCategory = "circuit_open"
	ErrorCategoryUnknown          ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}

	switch {
	case errors.Is(err, ErrLocationNotFound):
		return ErrorCategoryLocationNotFound
	case errors.Is(err, ErrRateLimited):
		return ErrorCategoryRateLimited
	case errors.Is(err, ErrUpstreamFailure):
		return ErrorCategoryUpstream
	case errors.Is(err, ErrMalformedResponse):
		return ErrorCategoryParsing
	}

	errStr := err.Error()
	if strings.Contains(errStr, "circuit breaker open") {
		return ErrorCategoryCircuitOpen
	}
	if strings.Contains(errStr, "timeout") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "http request failed") {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}
