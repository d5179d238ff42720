package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"forum-digest-relay/internal/domain"
)

// RedisRunLock реализует domain.RunLock на базе Redis SET NX с TTL.
type RedisRunLock struct {
	client *redis.Client
}

var _ domain.RunLock = (*RedisRunLock)(nil)

// NewRedisRunLock создаёт блокировку.
func NewRedisRunLock(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

// releaseScript снимает блокировку только при совпадении токена, чтобы
// запоздавший владелец не удалил чужую аренду после истечения своей.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryAcquire пытается захватить аренду на validity.
func (l *RedisRunLock) TryAcquire(ctx context.Context, key string, validity time.Duration) (domain.Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, validity).Result()
	if err != nil {
		return domain.Lease{}, false, fmt.Errorf("захват блокировки %q: %w", key, err)
	}
	if !ok {
		return domain.Lease{}, false, nil
	}
	return domain.Lease{Key: key, Token: token}, true, nil
}

// Release снимает аренду, если она всё ещё принадлежит вызывающему.
func (l *RedisRunLock) Release(ctx context.Context, lease domain.Lease) error {
	if err := releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Err(); err != nil {
		return fmt.Errorf("снятие блокировки %q: %w", lease.Key, err)
	}
	return nil
}
