package jwks

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/trekjournal/media-proxy/pkg/logger"
)

// Key is one imported RSA verification key from the identity provider.
type Key struct {
	KID    string
	Public *rsa.PublicKey
}

// Cache is a read-through cache over the issuer's JWKS endpoint. Entries are
// refreshed once the TTL elapses; a failed refresh falls back to whatever is
// currently cached instead of failing the request. Concurrent refreshes are
// collapsed into a single fetch.
type Cache struct {
	url          string
	ttl          time.Duration
	fetchTimeout time.Duration
	httpClient   *http.Client
	logg         *logger.Logger
	now          func() time.Time

	mu        sync.RWMutex
	keys      []Key
	fetchedAt time.Time

	group singleflight.Group
}

// Options tunes cache construction; zero values get sensible defaults.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	HTTPClient   *http.Client
	Now          func() time.Time
}

func NewCache(url string, logg *logger.Logger, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.FetchTimeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		url:          url,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		httpClient:   opts.HTTPClient,
		logg:         logg,
		now:          opts.Now,
	}
}

// Keys returns the current verification key set, refreshing it when absent or
// older than the TTL. The returned slice is a copy.
func (c *Cache) Keys(ctx context.Context) []Key {
	c.mu.RLock()
	fresh := !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl
	cached := c.snapshotLocked()
	c.mu.RUnlock()

	if fresh {
		return cached
	}

	result, err, _ := c.group.Do("refresh", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		c.mu.RLock()
		if !c.fetchedAt.IsZero() && c.now().Sub(c.fetchedAt) < c.ttl {
			keys := c.snapshotLocked()
			c.mu.RUnlock()
			return keys, nil
		}
		c.mu.RUnlock()

		// The refresh serves every collapsed waiter, so it must not die
		// with the one request that happened to trigger it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		keys, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys = keys
		c.fetchedAt = c.now()
		snapshot := c.snapshotLocked()
		c.mu.Unlock()
		return snapshot, nil
	})
	if err != nil {
		if c.logg != nil {
			c.logg.Error(ctx, "jwks.refresh_failed", err)
		}
		// Stale (possibly empty) keys are better than rejecting every caller.
		return cached
	}
	return result.([]Key)
}

func (c *Cache) snapshotLocked() []Key {
	out := make([]Key, len(c.keys))
	copy(out, c.keys)
	return out
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		Alg string `json:"alg"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (c *Cache) fetch(ctx context.Context) ([]Key, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jwks endpoint returned %s: %s", resp.Status, string(body))
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make([]Key, 0, len(doc.Keys))
	for _, raw := range doc.Keys {
		if raw.Kty != "RSA" || raw.N == "" || raw.E == "" {
			continue
		}
		public, err := importRSAKey(raw.N, raw.E)
		if err != nil {
			continue
		}
		keys = append(keys, Key{KID: raw.Kid, Public: public})
	}
	return keys, nil
}

func importRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	var exponent int
	for _, b := range eBytes {
		exponent = exponent<<8 | int(b)
	}
	if exponent == 0 {
		return nil, fmt.Errorf("zero exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: exponent}, nil
}
