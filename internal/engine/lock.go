package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voiceagents/pkg/utils"
)

// Locker hands out per-campaign leases so two engine processes never dial the
// same campaign at once.
type Locker interface {
	Acquire(ctx context.Context, campaignID string) (Lease, bool, error)
}

// Lease is held while a campaign is processed.
type Lease interface {
	// Extend pushes the expiry out. It returns false if the lease was lost.
	Extend(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// RedisLocker uses token-checked SET NX PX leases.
type RedisLocker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, prefix: "voiceagents:campaign-lease:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, campaignID string) (Lease, bool, error) {
	key := l.prefix + campaignID
	token := uuid.NewString()
	ok, err := utils.AcquireLease(ctx, l.rdb, key, token, l.ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &redisLease{rdb: l.rdb, key: key, token: token, ttl: l.ttl}, true, nil
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
	ttl   time.Duration
}

func (l *redisLease) Extend(ctx context.Context) (bool, error) {
	return utils.ExtendLease(ctx, l.rdb, l.key, l.token, l.ttl)
}

func (l *redisLease) Release(ctx context.Context) error {
	return utils.ReleaseLease(ctx, l.rdb, l.key, l.token)
}

// NoopLocker always grants the lease. Only safe with a single engine process.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (Lease, bool, error) { return noopLease{}, true, nil }

type noopLease struct{}

func (noopLease) Extend(context.Context) (bool, error) { return true, nil }
func (noopLease) Release(context.Context) error        { return nil }
