package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/kuitang/notebook/internal/obs"
)

// MsgTooManyRequests is the error text of a rate limited response.
const MsgTooManyRequests = "Too many requests, please try again later"

// RateLimitMiddleware enforces limiter per client, keyed by keyFunc.
// Requests with an empty key pass through unlimited.
//
// Blocked requests get 429 with a JSON failure envelope, a Retry-After header
// and X-RateLimit-Remaining: 0. Allowed requests carry the approximate number
// of remaining tokens in X-RateLimit-Remaining.
func RateLimitMiddleware(limiter *RateLimiter, keyFunc func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimiter := limiter.GetLimiter(key)
			if !rateLimiter.Allow() {
				obs.From(r.Context()).Warn("rate limited", "pkg", "ratelimit", "key", key)
				w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter()))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success": false,
					"error":   MsgTooManyRequests,
				})
				return
			}

			remaining := max(int(rateLimiter.Tokens()), 0)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// ByClientIP keys limiters by the client address. Forwarding headers count
// only on connections from a trusted proxy.
func ByClientIP(trusted []netip.Prefix) func(r *http.Request) string {
	return func(r *http.Request) string {
		return obs.ClientIP(r, trusted)
	}
}
