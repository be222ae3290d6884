package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/trekjournal/media-proxy/api/responses"
	"github.com/trekjournal/media-proxy/pkg/config"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

// RateLimiterStore is the slice of the redis client the limiter drives.
type RateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// UploadRateLimit bounds uploads per caller and per source IP over a fixed
// window. A nil store disables limiting, which keeps local development and
// tests working without Redis.
func UploadRateLimit(cfg config.RateLimitConfig, store RateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			if userID := UserIDFromContext(ctx); userID != "" && cfg.UploadUserLimit > 0 {
				allowed, count, err := store.FixedWindowAllow(ctx, "upload:user:"+userID, int64(cfg.UploadUserLimit), cfg.UploadWindow)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, "user", count, cfg.UploadUserLimit, cfg.UploadWindow)
					return
				}
			}

			if ip := clientIP(r); ip != "" && cfg.UploadIPLimit > 0 {
				allowed, count, err := store.FixedWindowAllow(ctx, "upload:ip:"+ip, int64(cfg.UploadIPLimit), cfg.UploadWindow)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !allowed {
					respondRateLimited(ctx, logg, w, "ip", count, cfg.UploadIPLimit, cfg.UploadWindow)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func respondRateLimited(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, scope string, count int64, limit int, window time.Duration) {
	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"scope":          scope,
			"attempts":       count,
			"limit":          limit,
			"window_seconds": int(window.Seconds()),
		})
		logg.Warn(logCtx, "upload.rate_limit.blocked")
	}
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
}

func clientIP(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
