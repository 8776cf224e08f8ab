package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrUnknownKey is returned when the key set has no key for a kid, even after a refresh.
var ErrUnknownKey = errors.New("unknown signing key")

// DefaultUnknownKeyInterval is the minimum spacing between reloads caused by unknown kids.
const DefaultUnknownKeyInterval = time.Minute

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

// KeySet caches the RSA public keys published at a JWKS endpoint.
//
// Fetches run outside the cache lock and concurrent callers share one
// in-flight request. Reloads for kids the cache has never seen are rate
// limited, so forged tokens cannot turn into one upstream request each.
type KeySet struct {
	url     string
	client  *http.Client
	refresh time.Duration
	now     func() time.Time
	unknown *rate.Limiter
	group   singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewKeySet creates a key set that loads lazily from url and reloads once refresh has elapsed.
func NewKeySet(url string, client *http.Client, refresh time.Duration) *KeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeySet{
		url:     url,
		client:  client,
		refresh: refresh,
		now:     time.Now,
		unknown: rate.NewLimiter(rate.Every(DefaultUnknownKeyInterval), 1),
	}
}

// Key returns the public key for kid. A missing kid triggers a reload at most
// once per DefaultUnknownKeyInterval so rotated keys are still picked up.
func (s *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	keys, fetchedAt := s.keys, s.fetchedAt
	s.mu.RUnlock()

	cached, ok := keys[kid]
	stale := keys == nil || (s.refresh > 0 && s.now().Sub(fetchedAt) >= s.refresh)

	switch {
	case ok && !stale:
		return cached, nil
	case stale:
		fresh, err := s.reload(ctx)
		if err != nil {
			if ok {
				return cached, nil
			}
			return nil, err
		}
		return lookup(fresh, kid)
	case !s.unknown.Allow():
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}

	fresh, err := s.reload(ctx)
	if err != nil {
		return nil, err
	}
	return lookup(fresh, kid)
}

func lookup(keys map[string]*rsa.PublicKey, kid string) (*rsa.PublicKey, error) {
	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, kid)
	}
	return key, nil
}

// reload fetches the key set once for all concurrent callers and swaps it into the cache.
func (s *KeySet) reload(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	v, err, _ := s.group.Do(s.url, func() (interface{}, error) {
		keys, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.keys = keys
		s.fetchedAt = s.now()
		s.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*rsa.PublicKey), nil
}

func (s *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build key set request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set endpoint returned %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := k.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, errors.New("key set contains no usable RSA keys")
	}
	return keys, nil
}

func (k jwk) rsaPublicKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}
	if len(nb) == 0 || len(eb) == 0 || len(eb) > 4 {
		return nil, errors.New("bad key size")
	}

	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e < 3 {
		return nil, errors.New("bad exponent")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}
