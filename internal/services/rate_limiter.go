package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"order-system/internal/auth"
	"order-system/internal/config"
	"order-system/internal/logger"
	"order-system/internal/redis"
)

// RateLimiter ограничивает число запросов клиента в фиксированном окне.
// Счётчики живут в Redis, поэтому лимит общий для всех реплик.
type RateLimiter struct {
	store   counterStore
	log     *logger.Logger
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
	now     func() time.Time
}

type counterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// RateDecision результат проверки одного запроса
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// NewRateLimiter создаёт limiter. Без Redis или при выключенной настройке пропускает всё.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false, now: time.Now}
	}
	return newRateLimiter(redisClient, log, cfg)
}

func newRateLimiter(store counterStore, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "ratelimit"
	}
	if log == nil {
		log = logger.Discard()
	}

	return &RateLimiter{
		store:   store,
		log:     log,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
		now:     time.Now,
	}
}

// Allow засчитывает запрос и сообщает, укладывается ли клиент в лимит
func (r *RateLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	now := r.now()
	if !r.enabled {
		return RateDecision{Allowed: true, Limit: r.limit, Remaining: r.limit, ResetAt: now.Add(r.window)}, nil
	}

	storeKey := r.makeKey(key)

	count, err := r.store.Incr(ctx, storeKey)
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
	}

	// Окно начинается с первого запроса
	if count == 1 {
		if err := r.store.Expire(ctx, storeKey, r.window); err != nil {
			r.log.WithError(err).WithField("key", storeKey).Warn("failed to set rate limit ttl")
		}
	}

	ttl, err := r.store.TTL(ctx, storeKey)
	if err != nil || ttl <= 0 {
		if err != nil {
			r.log.WithError(err).WithField("key", storeKey).Warn("failed to get rate limit ttl")
		}
		ttl = r.window
	}

	return RateDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: remainingOf(r.limit, count),
		ResetAt:   now.Add(ttl),
	}, nil
}

// Usage возвращает текущее использование окна без его изменения. resetAt nil, если окно не открыто.
func (r *RateLimiter) Usage(ctx context.Context, key string) (used, remaining int64, resetAt *time.Time, err error) {
	if !r.enabled {
		return 0, r.limit, nil, nil
	}

	storeKey := r.makeKey(key)
	count, err := r.store.GetInt(ctx, storeKey)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return 0, r.limit, nil, nil
		}
		return 0, 0, nil, fmt.Errorf("rate limiter usage failed: %w", err)
	}

	ttl, ttlErr := r.store.TTL(ctx, storeKey)
	if ttlErr != nil {
		r.log.WithError(ttlErr).WithField("key", storeKey).Warn("failed to get rate limit ttl")
	} else if ttl > 0 {
		at := r.now().Add(ttl)
		resetAt = &at
	}

	return count, remainingOf(r.limit, count), resetAt, nil
}

func (r *RateLimiter) makeKey(key string) string {
	return redis.GenerateKey(r.prefix, strings.ReplaceAll(key, ":", "_"))
}

// Limit возвращает лимит для текущего окна.
func (r *RateLimiter) Limit() int64 {
	return r.limit
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r.enabled
}

func remainingOf(limit, count int64) int64 {
	if count >= limit {
		return 0
	}
	return limit - count
}

// ClientKey выбирает ключ лимита: пользователь из токена, иначе IP
func ClientKey(r *http.Request) string {
	if identity := auth.FromContext(r.Context()); identity != nil {
		return "user:" + identity.UserID.String()
	}
	return "ip:" + ExtractClientIP(r)
}

// ExtractClientIP получает IP из заголовков/RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first := strings.TrimSpace(strings.Split(forwarded, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
