package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestNoOpRateLimiter(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	ctx := context.Background()

	tests := []struct {
		name string
		key  string
	}{
		{
			name: "Any workspace should be allowed",
			key:  "ws-1",
		},
		{
			name: "Multiple calls with same workspace",
			key:  "ws-2",
		},
		{
			name: "Empty workspace",
			key:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Call multiple times to ensure it always allows
			for i := 0; i < 10; i++ {
				allowed, err := limiter.Allow(ctx, tt.key)
				if err != nil {
					t.Errorf("Allow() error = %v, want nil", err)
				}
				if !allowed {
					t.Errorf("Allow() = false, want true")
				}
			}
		})
	}
}

func TestNoOpRateLimiter_Close(t *testing.T) {
	limiter := &NoOpRateLimiter{}
	if err := limiter.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestNewRedisRateLimiter_InvalidURL(t *testing.T) {
	_, err := NewRedisRateLimiter("not-a-valid-url", 100, time.Minute)
	if err == nil {
		t.Error("NewRedisRateLimiter() with invalid URL should return error")
	}
}

func TestNewRedisRateLimiter_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	limiter, err := NewRedisRateLimiter("redis://"+mr.Addr()+"/0", 1, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisRateLimiter() error = %v", err)
	}
	defer limiter.Close()

	allowed, err := limiter.Allow(context.Background(), "ws")
	if err != nil || !allowed {
		t.Fatalf("Allow() = %v, %v; want true, nil", allowed, err)
	}
}

func TestRedisRateLimiter_EnforcesLimitPerWorkspace(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewWithClient(client, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "ws-a")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Allow(ctx, "ws-a")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Error("fourth request in window should be rejected")
	}

	// Other workspaces have their own window.
	allowed, err = limiter.Allow(ctx, "ws-b")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("different workspace should be allowed")
	}
}

func TestRedisRateLimiter_WindowSlides(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewWithClient(client, 2, time.Minute).(*redisRateLimiter)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "ws"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := limiter.Allow(ctx, "ws"); ok {
		t.Fatal("third request should be rejected")
	}

	current = current.Add(61 * time.Second)
	if ok, err := limiter.Allow(ctx, "ws"); err != nil || !ok {
		t.Errorf("Allow() after window = %v, %v; want true, nil", ok, err)
	}
}

func TestRedisRateLimiter_SetsExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewWithClient(client, 5, 30*time.Second)

	if _, err := limiter.Allow(context.Background(), "ws"); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}

	ttl := mr.TTL(KeyPrefix + "ws")
	if ttl != 30*time.Second {
		t.Errorf("TTL = %v, want 30s", ttl)
	}
}

func TestRedisRateLimiter_BackendError(t *testing.T) {
	mr, client := setupTestRedis(t)
	limiter := NewWithClient(client, 5, time.Minute)
	mr.Close()

	if _, err := limiter.Allow(context.Background(), "ws"); err == nil {
		t.Error("Allow() with unreachable redis should return error")
	}
}

func TestRedisRateLimiter_CloseLeavesSharedClientOpen(t *testing.T) {
	_, client := setupTestRedis(t)
	limiter := NewWithClient(client, 5, time.Minute)

	if err := limiter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Errorf("shared client should remain usable: %v", err)
	}
}
