// kotatsu/handlers/middleware.go

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"kotatsu/utils"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// NewStructuredLogger logs one line per request through the app's slog logger.
func NewStructuredLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// RateLimit throttles submissions per client IP with a token bucket.
func RateLimit(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r)
			if !app.RateLimiter().GetLimiter(ip).Allow() {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLAN restricts access to private or loopback addresses.
func RequireLAN(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !utils.IsLAN(r) {
			http.Error(w, "Forbidden: Moderation access restricted to LAN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireModAuth checks the moderation password carried in the X-Mod-Password
// header against the configured bcrypt hash. With no hash configured, the LAN
// restriction is the only gate.
func RequireModAuth(app App) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hash := app.ModPasswordHash()
			if len(hash) > 0 {
				password := r.Header.Get("X-Mod-Password")
				if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
					http.Error(w, "Forbidden: Invalid moderation password", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
