package cache

import (
	"context"
	"time"
)

// UnlockCache remembers which principals passed the PIN gate and until
// when. A missing or failing cache only forces the PIN prompt again, so
// every implementation is allowed to lose entries.
type UnlockCache interface {
	Get(ctx context.Context, principal string) (time.Time, bool, error)
	Set(ctx context.Context, principal string, expiresAt time.Time, ttl time.Duration) error
	Delete(ctx context.Context, principal string) error
}

type NoopUnlockCache struct{}

func (NoopUnlockCache) Get(_ context.Context, _ string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (NoopUnlockCache) Set(_ context.Context, _ string, _ time.Time, _ time.Duration) error {
	return nil
}

func (NoopUnlockCache) Delete(_ context.Context, _ string) error {
	return nil
}
