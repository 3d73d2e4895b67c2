package chat

import (
	"context"
	"time"

	"holding-backend/internal/apperr"
)

// RateLimitStore persists request timestamps so the window survives
// restarts and is shared across instances.
type RateLimitStore interface {
	Record(ctx context.Context, userID string, at time.Time) error
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
}

// RateLimiter enforces a sliding window of chat requests per user. The
// request is recorded before counting, so concurrent requests can only
// over-reject, never slip past the limit.
type RateLimiter struct {
	store  RateLimitStore
	max    int64
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(store RateLimitStore, max int64, window time.Duration) *RateLimiter {
	return &RateLimiter{store: store, max: max, window: window, now: time.Now}
}

func (l *RateLimiter) Allow(ctx context.Context, userID string) error {
	now := l.now()
	if err := l.store.Record(ctx, userID, now); err != nil {
		return err
	}
	n, err := l.store.CountSince(ctx, userID, now.Add(-l.window))
	if err != nil {
		return err
	}
	if n > l.max {
		return apperr.RateLimited("limite de %d mensagens por minuto atingido, aguarde um momento", l.max)
	}
	return nil
}
