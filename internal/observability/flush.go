package observability

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// FlushTelemetry flushes buffered telemetry before process exit.
// Prometheus is pull-based, so only the logger needs syncing.
func FlushTelemetry(_ context.Context, logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil {
		return fmt.Errorf("flush logs: %w", err)
	}
	return nil
}
