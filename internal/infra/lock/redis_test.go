package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"forum-digest-relay/internal/domain"
)

func newTestLock(t *testing.T) (*RedisRunLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRunLock(client), mr
}

func TestTryAcquireSingleFlight(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	lease, ok, err := l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !ok {
		t.Fatalf("ожидали захват свободной блокировки")
	}

	_, ok, err = l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ok {
		t.Fatalf("ожидали отказ при занятой блокировке")
	}

	if err := l.Release(ctx, lease); err != nil {
		t.Fatalf("снятие блокировки: %v", err)
	}

	_, ok, err = l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !ok {
		t.Fatalf("ожидали захват после снятия")
	}
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	l, _ := newTestLock(t)
	ctx := context.Background()

	_, ok, err := l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil || !ok {
		t.Fatalf("захват: ok=%v err=%v", ok, err)
	}

	stale := domain.Lease{Key: "digest_run", Token: "чужой-токен"}
	if err := l.Release(ctx, stale); err != nil {
		t.Fatalf("снятие с чужим токеном не должно падать: %v", err)
	}

	_, ok, err = l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ok {
		t.Fatalf("чужой токен не должен снимать активную аренду")
	}
}

func TestLeaseExpires(t *testing.T) {
	l, mr := newTestLock(t)
	ctx := context.Background()

	_, ok, err := l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil || !ok {
		t.Fatalf("захват: ok=%v err=%v", ok, err)
	}

	mr.FastForward(2 * time.Minute)

	_, ok, err = l.TryAcquire(ctx, "digest_run", time.Minute)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !ok {
		t.Fatalf("ожидали захват после истечения аренды")
	}
}
