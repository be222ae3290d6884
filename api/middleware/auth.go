package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/trekjournal/media-proxy/api/responses"
	pkgauth "github.com/trekjournal/media-proxy/pkg/auth"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

// TokenVerifier authenticates bearer tokens for the HTTP surface.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*pkgauth.TokenClaims, error)
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the token query parameter. Image and video tags cannot set custom
// headers, so the query form has to stay supported.
func ExtractToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw != "" {
		if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
			return strings.TrimSpace(raw[7:])
		}
		return raw
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// Auth requires a valid bearer token and seeds the request context with the
// caller identity.
func Auth(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(seedIdentity(r.Context(), logg, claims)))
		})
	}
}

// AuthOptional verifies a bearer token when one is supplied but lets
// anonymous requests through. A token that is present and invalid is still
// rejected so callers cannot downgrade themselves silently.
func AuthOptional(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(seedIdentity(r.Context(), logg, claims)))
		})
	}
}

func seedIdentity(ctx context.Context, logg *logger.Logger, claims *pkgauth.TokenClaims) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID())
	if claims.Email != "" {
		ctx = context.WithValue(ctx, ctxEmail, claims.Email)
	}
	if logg != nil {
		ctx = logg.WithUserID(ctx, claims.UserID())
	}
	return ctx
}
