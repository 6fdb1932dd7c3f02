package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-system/internal/auth"
	"order-system/internal/config"
	"order-system/internal/logger"
	"order-system/internal/redis"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func newMiniredisLimiter(t *testing.T, requests, windowSeconds int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.Connect(&config.RedisConfig{Host: "127.0.0.1", Port: mr.Port()}, logger.Discard())
	if err != nil {
		t.Fatalf("connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.RateLimitConfig{Enabled: true, Requests: requests, WindowSeconds: windowSeconds, KeyPrefix: "test"}
	return NewRateLimiter(client, logger.Discard(), cfg), mr
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t, 2, 60)
	ctx := context.Background()

	d, err := limiter.Allow(ctx, "ip:10.0.0.1")
	if err != nil || !d.Allowed || d.Remaining != 1 {
		t.Fatalf("first request should be allowed, remaining=1, got %+v err=%v", d, err)
	}

	d, err = limiter.Allow(ctx, "ip:10.0.0.1")
	if err != nil || !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second request should be allowed, remaining=0, got %+v err=%v", d, err)
	}

	d, err = limiter.Allow(ctx, "ip:10.0.0.1")
	if err != nil || d.Allowed || d.Remaining != 0 {
		t.Fatalf("third request should be blocked, got %+v err=%v", d, err)
	}

	// Другой клиент считается отдельно
	if d, _ := limiter.Allow(ctx, "ip:10.0.0.2"); !d.Allowed {
		t.Fatalf("other client must not share the window")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 1, 10)
	ctx := context.Background()

	if d, _ := limiter.Allow(ctx, "user:1"); !d.Allowed {
		t.Fatalf("first request should pass")
	}
	if d, _ := limiter.Allow(ctx, "user:1"); d.Allowed {
		t.Fatalf("second request should be blocked")
	}

	mr.FastForward(11 * time.Second)
	if d, _ := limiter.Allow(ctx, "user:1"); !d.Allowed {
		t.Fatalf("request after window should pass")
	}
}

func TestRateLimiter_Usage(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 3, 60)
	ctx := context.Background()

	used, remaining, resetAt, err := limiter.Usage(ctx, "ip:1.1.1.1")
	if err != nil || used != 0 || remaining != 3 || resetAt != nil {
		t.Fatalf("unexpected usage for fresh key: used=%d remaining=%d reset=%v err=%v", used, remaining, resetAt, err)
	}

	_, _ = limiter.Allow(ctx, "ip:1.1.1.1")
	_, _ = limiter.Allow(ctx, "ip:1.1.1.1")

	used, remaining, resetAt, err = limiter.Usage(ctx, "ip:1.1.1.1")
	if err != nil || used != 2 || remaining != 1 || resetAt == nil {
		t.Fatalf("unexpected usage: used=%d remaining=%d reset=%v err=%v", used, remaining, resetAt, err)
	}

	if !mr.Exists("test:ip_1.1.1.1") {
		t.Fatalf("expected colon-free key under prefix, keys=%v", mr.Keys())
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) Expire(context.Context, string, time.Duration) error { return nil }
func (failingStore) TTL(context.Context, string) (time.Duration, error) { return 0, nil }
func (failingStore) GetInt(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestRateLimiter_StoreErrors(t *testing.T) {
	limiter := newRateLimiter(failingStore{}, nil, &config.RateLimitConfig{Enabled: true, Requests: 1, WindowSeconds: 1})

	if _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatalf("expected incr error")
	}
	if _, _, _, err := limiter.Usage(context.Background(), "k"); err == nil {
		t.Fatalf("expected usage error")
	}
}

func TestRateLimiter_NewDisabled(t *testing.T) {
	if limiter := NewRateLimiter(nil, nil, nil); limiter.Enabled() {
		t.Fatalf("expected limiter disabled without cfg/redis")
	}
	cfg := &config.RateLimitConfig{Enabled: false}
	limiter := NewRateLimiter(nil, nil, cfg)
	if limiter.Enabled() {
		t.Fatalf("expected limiter disabled when cfg disabled")
	}
	if d, err := limiter.Allow(context.Background(), "any"); err != nil || !d.Allowed {
		t.Fatalf("disabled limiter must allow, got %+v err=%v", d, err)
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	if key := ClientKey(r); key != "ip:192.168.0.1" {
		t.Fatalf("expected ip key, got %s", key)
	}

	userID := uuid.New()
	r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UserID: userID}))
	if key := ClientKey(r); key != "user:"+userID.String() {
		t.Fatalf("expected user key, got %s", key)
	}
}

func TestExtractClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "10.0.0.1")
	if ip := ExtractClientIP(r); ip != "10.0.0.1" {
		t.Fatalf("expected real ip, got %s", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.3")
	if ip := ExtractClientIP(r); ip != "10.0.0.2" {
		t.Fatalf("expected first forwarded ip, got %s", ip)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.0.1:1234"
	if ip := ExtractClientIP(r); ip != "192.168.0.1" {
		t.Fatalf("expected remote addr ip, got %s", ip)
	}
}
