package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningKey is an RSA key pair with a key ID, used to mint test ID tokens
// and publish the matching JWKS document.
type SigningKey struct {
	Key *rsa.PrivateKey
	KID string
}

// NewSigningKey generates a fresh RSA signing key
func NewSigningKey(t *testing.T, kid string) *SigningKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return &SigningKey{Key: key, KID: kid}
}

// JWK returns the public half of the key as a JWKS document entry.
func (k *SigningKey) JWK() map[string]string {
	pub := k.Key.Public().(*rsa.PublicKey)
	return map[string]string{
		"kty": "RSA",
		"use": "sig",
		"kid": k.KID,
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// MintIDToken signs the claims with RS256 and the key's kid header.
func (k *SigningKey) MintIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = k.KID
	raw, err := tok.SignedString(k.Key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return raw
}

// MintHS256Token signs the claims with HS256, for algorithm-confusion tests.
func MintHS256Token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = "hmac"
	raw, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return raw
}

// DefaultClaims returns a complete, currently-valid claim set.
func DefaultClaims(clientID, issuer, tenantID string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"aud":                clientID,
		"iss":                issuer,
		"iat":                now.Add(-time.Minute).Unix(),
		"nbf":                now.Add(-time.Minute).Unix(),
		"exp":                now.Add(time.Hour).Unix(),
		"sub":                "subject-123",
		"oid":                "00000000-0000-0000-0000-000000000001",
		"tid":                tenantID,
		"preferred_username": "jdoe@example.com",
		"email":              "john.doe@example.com",
		"name":               "John Doe",
	}
}

// JWKSHandler serves the JWKS document for the given keys.
func JWKSHandler(keys ...*SigningKey) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]any{"keys": []map[string]string{}}
		entries := make([]map[string]string, 0, len(keys))
		for _, k := range keys {
			entries = append(entries, k.JWK())
		}
		doc["keys"] = entries
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

// NewJWKSServer starts a test server publishing the keys.
func NewJWKSServer(t *testing.T, keys ...*SigningKey) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(JWKSHandler(keys...))
	t.Cleanup(server.Close)
	return server
}

// TokenResponseHandler serves a successful token endpoint response carrying
// the given tokens.
func TokenResponseHandler(accessToken, idToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}
}

// TokenErrorHandler serves an OAuth error response from the token endpoint.
func TokenErrorHandler(status int, code, description string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":             code,
			"error_description": description,
		})
	}
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if s does not contain substr
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	found := false
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}
