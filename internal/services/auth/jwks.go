package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySource provides the signing keys used to verify bearer tokens.
type KeySource interface {
	Keys(ctx context.Context) (jwk.Set, error)
}

// JWKSCache fetches a JWKS document over HTTP and caches it for a fixed TTL.
type JWKSCache struct {
	url string
	ttl time.Duration

	mu      sync.RWMutex
	keys    jwk.Set
	expires time.Time
}

// NewJWKSCache creates a cache for the given JWKS URL with a 1-hour TTL.
func NewJWKSCache(jwksURL string) *JWKSCache {
	return &JWKSCache{
		url: jwksURL,
		ttl: 1 * time.Hour,
	}
}

// Keys returns the cached key set, refetching when the TTL has lapsed.
func (c *JWKSCache) Keys(ctx context.Context) (jwk.Set, error) {
	c.mu.RLock()
	if c.keys != nil && time.Now().Before(c.expires) {
		keys := c.keys
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	c.mu.Lock()
	c.keys = keys
	c.expires = time.Now().Add(c.ttl)
	c.mu.Unlock()

	return keys, nil
}

func (c *JWKSCache) fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return keys, nil
}
