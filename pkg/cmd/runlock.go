package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/stageflow/pkg/runlock"
)

// NewRunLock returns a Redis locker when redisURL is set and an in-process
// one otherwise. The returned close function is never nil.
func NewRunLock(ctx context.Context, logger *slog.Logger, redisURL string) (runlock.Locker, func() error, error) {
	if redisURL == "" {
		logger.WarnContext(ctx, "No redis url configured, run lock is local to this process")

		return runlock.NewMemory(), func() error { return nil }, nil
	}

	locker, err := runlock.NewRedisFromURL(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect run lock to redis: %w", err)
	}

	return locker, locker.Close, nil
}
