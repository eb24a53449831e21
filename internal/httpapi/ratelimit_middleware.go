package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ferriskey/iam/internal/core"
	"github.com/ferriskey/iam/internal/ratelimit"
)

// rateLimitByIP throttles brute-forceable endpoints (the token endpoint and
// the login-actions authenticate step) per client IP, on top of whatever
// per-account limiter AuthSessionService applies. A nil limiter disables it
// entirely, which is what a router built without Services.TokenLimiter gets.
func rateLimitByIP(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ratelimit.ExtractIP(r)
			allowed, remaining, resetAt, err := limiter.Check(ip)
			if err != nil {
				writeError(w, core.Internal(err))
				return
			}
			ratelimit.AddRateLimitHeaders(w, ratelimit.RateLimitInfo{
				Limit:     limiter.GetConfig().MaxRequests,
				Remaining: remaining, ResetAt: resetAt, Allowed: allowed,
			})
			if !allowed {
				retryAfter := ratelimit.RateLimitInfo{ResetAt: resetAt}.RetryAfterSeconds()
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(w, core.RateLimited("too many requests from this address"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
