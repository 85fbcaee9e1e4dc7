package token

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/volver-13/sonar-auth-aad/security"
)

// Expectations describes what a valid ID token must assert for one request.
type Expectations struct {
	// ClientID is the expected audience.
	ClientID string

	// TenantID pins the tid claim in single-tenant mode. Empty means any
	// tenant is acceptable (multi-tenant applications).
	TenantID string

	// IssuerFor returns the expected issuer for a tenant ID. In
	// multi-tenant mode the token's own tid claim is substituted.
	IssuerFor func(tenantID string) string

	// JWKSURL is the signing key set endpoint for this request.
	JWKSURL string
}

// Validator verifies ID token signatures and claims. The key set fetch is
// its only network I/O; everything else is pure computation, so one
// Validator serves concurrent callbacks.
type Validator struct {
	keys   *KeySource
	logger *slog.Logger
	parser func(clientID string) *jwt.Parser
}

// NewValidator creates a validator backed by the given key source.
func NewValidator(keys *KeySource, logger *slog.Logger) *Validator {
	if keys == nil {
		keys = NewKeySource(nil, 0, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		keys:   keys,
		logger: logger,
		parser: newParser,
	}
}

// newParser builds a parser pinned to RS256. Accepting only the expected
// algorithm closes the algorithm-confusion class of attacks: a token signed
// with anything else, including "none" or an HMAC over the public key, is
// rejected before claim processing.
func newParser(clientID string) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(clientID),
		jwt.WithLeeway(security.DefaultClockSkewLeeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
}

// Verify checks the raw ID token's signature against the remote key set and
// its claims against exp. Any single failed check is a hard validation
// failure: no partially-trusted claim set is ever returned.
func (v *Validator) Verify(ctx context.Context, rawIDToken string, exp Expectations) (*Claims, error) {
	if exp.ClientID == "" {
		return nil, fmt.Errorf("expected audience is empty")
	}
	if exp.IssuerFor == nil {
		return nil, fmt.Errorf("issuer expectation is not configured")
	}

	claims := &Claims{}
	if _, err := v.parser(exp.ClientID).ParseWithClaims(rawIDToken, claims, v.keyfunc(ctx, exp.JWKSURL)); err != nil {
		return nil, fmt.Errorf("ID token verification failed: %w", err)
	}

	if err := claims.requireCompleteness(); err != nil {
		return nil, err
	}

	if exp.TenantID != "" && claims.TenantID != exp.TenantID {
		return nil, fmt.Errorf("token issued by tenant %q, expected %q", claims.TenantID, exp.TenantID)
	}

	wantIssuer := exp.IssuerFor(claims.TenantID)
	if claims.Issuer != wantIssuer {
		return nil, fmt.Errorf("unexpected issuer %q, expected %q", claims.Issuer, wantIssuer)
	}

	return claims, nil
}

// keyfunc resolves the signing key named by the token's kid header from the
// cached or freshly-fetched key set.
func (v *Validator) keyfunc(ctx context.Context, jwksURL string) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, jwksURL, kid)
	}
}
