package token

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/volver-13/sonar-auth-aad/security"
)

const (
	// defaultKeySetTTL bounds how long a fetched key set is served without
	// a refetch. Azure AD rotates signing keys on the order of weeks, so an
	// hour keeps rotation lag short without hammering the endpoint.
	defaultKeySetTTL = 1 * time.Hour

	// fetchTimeout bounds one key set fetch. The fetch runs detached from
	// the requesting context, so it needs its own deadline.
	fetchTimeout = 10 * time.Second

	// maxJWKSResponseBytes caps the key set document size.
	maxJWKSResponseBytes = 1 << 20
)

// jwk is one entry of a JWKS document. Only RSA signing keys are mapped;
// the schema is fixed, so the fields are decoded explicitly.
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// jwksDocument is the standard JSON key set document.
type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// cachedKeySet holds the decoded public keys of one JWKS endpoint, keyed by
// key ID, with its expiry deadline.
type cachedKeySet struct {
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// KeySource fetches and caches remote signing key sets. It is safe for
// concurrent use: reads share the cached set, and a refresh is coordinated
// so only one fetch per key set URL is in flight at a time; concurrent
// callers wait on that fetch instead of issuing their own.
type KeySource struct {
	httpClient *http.Client
	ttl        time.Duration
	logger     *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]*cachedKeySet // jwksURL -> key set
}

// NewKeySource creates a key source.
//
// Parameters:
//   - httpClient: HTTP client for JWKS fetches (nil uses a default with a
//     bounded timeout)
//   - ttl: time-to-live for cached key sets (0 uses the default 1 hour)
//   - logger: logger for debug messages (nil uses the default logger)
func NewKeySource(httpClient *http.Client, ttl time.Duration, logger *slog.Logger) *KeySource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if ttl == 0 {
		ttl = defaultKeySetTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &KeySource{
		httpClient: httpClient,
		ttl:        ttl,
		logger:     logger,
		cache:      make(map[string]*cachedKeySet),
	}
}

// Key resolves the signing key with the given key ID from the key set
// published at jwksURL. A fresh cached set is consulted first; if the key
// ID is absent the set is refreshed exactly once and the lookup retried,
// which covers key rotation between cache refreshes.
func (s *KeySource) Key(ctx context.Context, jwksURL, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, fmt.Errorf("token header carries no key ID")
	}

	if set := s.cachedSet(jwksURL); set != nil && !security.IsExpiredWithLeeway(set.expiresAt, 0) {
		if key, ok := set.keys[kid]; ok {
			return key, nil
		}
		s.logger.Debug("signing key not in cached set, refreshing", "kid", kid)
	}

	set, err := s.refresh(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	key, ok := set.keys[kid]
	if !ok {
		return nil, fmt.Errorf("signing key %q not found in key set", kid)
	}
	return key, nil
}

func (s *KeySource) cachedSet(jwksURL string) *cachedKeySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[jwksURL]
}

// refresh fetches the key set, deduplicating concurrent refreshes of the
// same URL through a singleflight group. The fetch is detached from the
// winning caller's context so one canceled request cannot fail the other
// callers sharing the flight, and carries its own deadline because the
// parent's no longer applies.
func (s *KeySource) refresh(ctx context.Context, jwksURL string) (*cachedKeySet, error) {
	v, err, _ := s.group.Do(jwksURL, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		set, err := s.fetchKeySet(fetchCtx, jwksURL)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cache[jwksURL] = set
		s.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cachedKeySet), nil
}

// fetchKeySet retrieves and decodes a JWKS document.
func (s *KeySource) fetchKeySet(ctx context.Context, jwksURL string) (*cachedKeySet, error) {
	s.logger.Debug("fetching signing key set", "url", jwksURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create key set request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch key set: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set fetch returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSResponseBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := decodeRSAPublicKey(k)
		if err != nil {
			s.logger.Warn("skipping undecodable signing key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("key set contains no usable RSA signing keys")
	}

	return &cachedKeySet{keys: keys, expiresAt: time.Now().Add(s.ttl)}, nil
}

// decodeRSAPublicKey builds an RSA public key from the base64url modulus
// and exponent of a JWK entry.
func decodeRSAPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("exponent out of range")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
