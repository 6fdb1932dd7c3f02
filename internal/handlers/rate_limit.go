package handlers

import (
	"net/http"
	"strconv"
	"time"

	"order-system/internal/logger"
	"order-system/internal/services"
)

// RateLimitHandler отдаёт состояние лимита клиента.
type RateLimitHandler struct {
	limiter RateLimitStatusProvider
	log     *logger.Logger
	window  time.Duration
}

// NewRateLimitHandler создает новый RateLimitHandler.
func NewRateLimitHandler(limiter RateLimitStatusProvider, log *logger.Logger, window time.Duration) *RateLimitHandler {
	return &RateLimitHandler{limiter: limiter, log: log, window: window}
}

// Status возвращает текущие значения лимита для клиента.
func (h *RateLimitHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.limiter == nil || !h.limiter.Enabled() {
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	key := services.ClientKey(r)
	used, remaining, resetAt, err := h.limiter.Usage(r.Context(), key)
	if err != nil {
		h.log.WithError(err).Error("Failed to fetch rate limit usage")
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to fetch rate limit usage")
		return
	}

	resp := map[string]interface{}{
		"enabled":       true,
		"limit":         h.limiter.Limit(),
		"windowSeconds": int64(h.window / time.Second),
		"used":          used,
		"remaining":     remaining,
		"key":           key,
	}
	if resetAt != nil {
		resp["resetAt"] = resetAt.UTC().Format(time.RFC3339)
	}

	writeJSONResponse(w, http.StatusOK, resp)
}

// RateLimitMiddleware применяет rate limiting. Ключ: пользователь из токена или IP,
// поэтому middleware ставится после auth.
func RateLimitMiddleware(limiter MiddlewareLimiter, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || !limiter.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			decision, err := limiter.Allow(r.Context(), services.ClientKey(r))
			if err != nil {
				// Недоступный Redis не должен останавливать приём заказов
				log.WithError(err).Warn("Rate limiter unavailable, request allowed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			if !decision.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
			}

			if !decision.Allowed {
				writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
