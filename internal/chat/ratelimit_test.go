package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"holding-backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimitStore struct {
	records map[string][]time.Time
}

func newFakeLimitStore() *fakeLimitStore {
	return &fakeLimitStore{records: map[string][]time.Time{}}
}

func (s *fakeLimitStore) Record(_ context.Context, userID string, at time.Time) error {
	s.records[userID] = append(s.records[userID], at)
	return nil
}

func (s *fakeLimitStore) CountSince(_ context.Context, userID string, since time.Time) (int64, error) {
	var n int64
	for _, at := range s.records[userID] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func TestRateLimiter_AllowsUpToMax(t *testing.T) {
	store := newFakeLimitStore()
	limiter := NewRateLimiter(store, 10, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Allow(context.Background(), "u1"))
	}

	err := limiter.Allow(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRateLimited))
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	store := newFakeLimitStore()
	limiter := NewRateLimiter(store, 10, time.Minute)

	now := time.Now()
	limiter.now = func() time.Time { return now }
	for i := 0; i < 11; i++ {
		limiter.Allow(context.Background(), "u1")
	}
	require.Error(t, limiter.Allow(context.Background(), "u1"))

	// After the window passes, requests flow again.
	now = now.Add(61 * time.Second)
	assert.NoError(t, limiter.Allow(context.Background(), "u1"))
}

func TestRateLimiter_PerUser(t *testing.T) {
	store := newFakeLimitStore()
	limiter := NewRateLimiter(store, 2, time.Minute)

	require.NoError(t, limiter.Allow(context.Background(), "u1"))
	require.NoError(t, limiter.Allow(context.Background(), "u1"))
	require.Error(t, limiter.Allow(context.Background(), "u1"))

	assert.NoError(t, limiter.Allow(context.Background(), "u2"))
}
