package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/jwks"
)

// KeySource supplies the current RSA verification keys.
type KeySource interface {
	Keys(ctx context.Context) []jwks.Key
}

// Verifier validates bearer JWTs against the identity provider's key set.
type Verifier struct {
	keys             KeySource
	allowLegacyHS256 bool
	now              func() time.Time
}

// VerifierOption tweaks verifier construction.
type VerifierOption func(*Verifier)

// WithLegacyHS256 enables the trust-without-verification shim for HS256
// tokens minted before the move to RSA signing. Off by default.
func WithLegacyHS256(allow bool) VerifierOption {
	return func(v *Verifier) { v.allowLegacyHS256 = allow }
}

// WithClock overrides the verifier's time source for tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(keys KeySource, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: keys, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates the compact JWT, returning typed claims. All
// failures map to CodeUnauthorized; the caller decides the surface status.
func (v *Verifier) Verify(ctx context.Context, token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed token")
	}

	alg, err := declaredAlgorithm(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	switch alg {
	case jwt.SigningMethodRS256.Alg():
		return v.verifyRS256(ctx, token)
	case jwt.SigningMethodHS256.Alg():
		if !v.allowLegacyHS256 {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unsupported signing algorithm")
		}
		return v.trustLegacyHS256(token)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unsupported signing algorithm")
	}
}

func declaredAlgorithm(token string) (string, error) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, &TokenClaims{})
	if err != nil {
		return "", err
	}
	alg, _ := parsed.Header["alg"].(string)
	if alg == "" {
		return "", fmt.Errorf("missing alg header")
	}
	return alg, nil
}

func (v *Verifier) verifyRS256(ctx context.Context, token string) (*TokenClaims, error) {
	keys := v.keys.Keys(ctx)
	if len(keys) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "no verification keys available")
	}

	keySet := jwt.VerificationKeySet{Keys: make([]jwt.VerificationKey, 0, len(keys))}
	for _, key := range keys {
		keySet.Keys = append(keySet.Keys, key.Public)
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) { return keySet, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.UserID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject missing")
	}
	return claims, nil
}

// trustLegacyHS256 decodes the payload without checking the signature. Only
// the expiry is enforced. Kept for tokens that predate RSA signing.
func (v *Verifier) trustLegacyHS256(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(v.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")
	}
	if claims.UserID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token subject missing")
	}
	return claims, nil
}
