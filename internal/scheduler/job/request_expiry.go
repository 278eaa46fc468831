package job

import (
	"context"
	"log/slog"
	"time"
)

// RequestExpirer drops pending requests older than a retention window.
type RequestExpirer interface {
	ExpireRequests(ctx context.Context, olderThan time.Duration) (int64, error)
}

func RunRequestExpiry(ctx context.Context, expirer RequestExpirer, retention time.Duration) error {
	slog.Info("Running Request Expiry", "retention", retention)

	n, err := expirer.ExpireRequests(ctx, retention)
	if err != nil {
		slog.Error("Failed to expire pending requests", "error", err)
		return err
	}

	slog.Info("Expired pending requests", "count", n)
	return nil
}
