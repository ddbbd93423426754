// Package ratelimit enforces per-client request limits backed by Redis.
package ratelimit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backoffice/internal/common"
	"github.com/noah-isme/backoffice/internal/tenant"
)

// New builds a limiter allowing max requests per minute, stored in Redis.
func New(rdb *redis.Client, maxPerMinute int) (*limiter.Limiter, error) {
	if rdb == nil {
		return nil, errors.New("ratelimit: redis client not configured")
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "ratelimit",
	})
	if err != nil {
		return nil, err
	}
	rate := limiter.Rate{Period: time.Minute, Limit: int64(maxPerMinute)}
	return limiter.New(store, rate), nil
}

// Key derives the limit key from the tenant and client address so one noisy
// tenant cannot starve the others.
func Key(r *http.Request) string {
	ip := common.ClientIP(r)
	if tenantID, ok := tenant.From(r.Context()); ok {
		return tenant.PrefixKey(tenantID, ip)
	}
	return ip
}

// Middleware enforces the limit before delegating to the next handler.
// Limiter failures fall open so Redis outages do not take the API down.
func Middleware(l *limiter.Limiter, onError func(error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			limitCtx, err := l.Get(r.Context(), Key(r))
			if err != nil {
				if onError != nil {
					onError(err)
				}
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.FormatInt(limitCtx.Limit, 10))
			headers.Set("X-RateLimit-Remaining", strconv.FormatInt(limitCtx.Remaining, 10))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(limitCtx.Reset, 10))

			if limitCtx.Reached {
				retryAfter := limitCtx.Reset - time.Now().Unix()
				if retryAfter < 0 {
					retryAfter = 0
				}
				headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				common.JSONError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
