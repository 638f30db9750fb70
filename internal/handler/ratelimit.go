package handler

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/unclebandit/scoutier-backend/internal/controller"
)

// RateLimit allows perMinute requests per minute (with an equal burst)
// through next and rejects the rest with 429.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute < 1 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "60")
				controller.WriteJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
