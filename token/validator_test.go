package token

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/volver-13/sonar-auth-aad/internal/testutil"
)

const (
	testClientID = "client-1"
	testTenantID = "tenant-1"
)

func testIssuerFor(tenantID string) string {
	return "https://login.test/" + tenantID + "/v2.0"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestValidator(t *testing.T, keys ...*testutil.SigningKey) (*Validator, Expectations) {
	t.Helper()
	server := testutil.NewJWKSServer(t, keys...)
	v := NewValidator(NewKeySource(http.DefaultClient, 0, discardLogger()), discardLogger())
	return v, Expectations{
		ClientID:  testClientID,
		TenantID:  testTenantID,
		IssuerFor: testIssuerFor,
		JWKSURL:   server.URL,
	}
}

func TestVerify(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")

	t.Run("valid token yields the full claim set", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		raw := key.MintIDToken(t, testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID))

		claims, err := v.Verify(context.Background(), raw, exp)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, claims.Subject, "subject-123")
		testutil.AssertEqual(t, claims.ObjectID, "00000000-0000-0000-0000-000000000001")
		testutil.AssertEqual(t, claims.TenantID, testTenantID)
		testutil.AssertEqual(t, claims.PreferredUsername, "jdoe@example.com")
		testutil.AssertEqual(t, claims.Email, "john.doe@example.com")
		testutil.AssertEqual(t, claims.Name, "John Doe")
	})

	t.Run("HS256 token is rejected before claim processing", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		raw := testutil.MintHS256Token(t, testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID))

		_, err := v.Verify(context.Background(), raw, exp)
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "signing method")
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		claims := testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID)
		claims["exp"] = time.Now().Add(-time.Hour).Unix()

		_, err := v.Verify(context.Background(), raw(t, key, claims), exp)
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "expired")
	})

	t.Run("token not yet valid is rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		claims := testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID)
		claims["nbf"] = time.Now().Add(time.Hour).Unix()

		_, err := v.Verify(context.Background(), raw(t, key, claims), exp)
		testutil.AssertError(t, err)
	})

	t.Run("small clock skew is tolerated", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		claims := testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID)
		claims["nbf"] = time.Now().Add(2 * time.Second).Unix()
		claims["iat"] = time.Now().Add(2 * time.Second).Unix()

		_, err := v.Verify(context.Background(), raw(t, key, claims), exp)
		testutil.AssertNoError(t, err)
	})

	t.Run("audience mismatch is rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		tok := key.MintIDToken(t, testutil.DefaultClaims("other-client", testIssuerFor(testTenantID), testTenantID))

		_, err := v.Verify(context.Background(), tok, exp)
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "audience")
	})

	t.Run("tenant mismatch is rejected in single-tenant mode", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		tok := key.MintIDToken(t, testutil.DefaultClaims(testClientID, testIssuerFor("tenant-2"), "tenant-2"))

		_, err := v.Verify(context.Background(), tok, exp)
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "tenant")
	})

	t.Run("any tenant is accepted in multi-tenant mode", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		exp.TenantID = ""
		tok := key.MintIDToken(t, testutil.DefaultClaims(testClientID, testIssuerFor("tenant-2"), "tenant-2"))

		claims, err := v.Verify(context.Background(), tok, exp)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, claims.TenantID, "tenant-2")
	})

	t.Run("issuer mismatch is rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		tok := key.MintIDToken(t, testutil.DefaultClaims(testClientID, "https://evil.example.com/tenant-1/v2.0", testTenantID))

		_, err := v.Verify(context.Background(), tok, exp)
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "issuer")
	})

	t.Run("signature from an unpublished key is rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		rogue := testutil.NewSigningKey(t, "rogue")
		tok := rogue.MintIDToken(t, testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID))

		_, err := v.Verify(context.Background(), tok, exp)
		testutil.AssertError(t, err)
	})

	t.Run("missing expectations are rejected", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		tok := key.MintIDToken(t, testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID))

		noAud := exp
		noAud.ClientID = ""
		if _, err := v.Verify(context.Background(), tok, noAud); err == nil {
			t.Error("empty expected audience must fail")
		}

		noIss := exp
		noIss.IssuerFor = nil
		if _, err := v.Verify(context.Background(), tok, noIss); err == nil {
			t.Error("missing issuer expectation must fail")
		}
	})
}

func TestVerifyRequiredClaims(t *testing.T) {
	key := testutil.NewSigningKey(t, "key-1")

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   string
	}{
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }, "sub"},
		{"missing object ID", func(c jwt.MapClaims) { delete(c, "oid") }, "oid"},
		{"missing tenant ID", func(c jwt.MapClaims) { delete(c, "tid") }, "tid"},
		{"missing issued-at", func(c jwt.MapClaims) { delete(c, "iat") }, "iat"},
		{"missing not-before", func(c jwt.MapClaims) { delete(c, "nbf") }, "nbf"},
		{"missing expiry", func(c jwt.MapClaims) { delete(c, "exp") }, "exp"},
		{"no usable name", func(c jwt.MapClaims) {
			delete(c, "name")
			delete(c, "preferred_username")
		}, "name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, exp := newTestValidator(t, key)
			exp.TenantID = "" // isolate the completeness check
			claims := testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID)
			tt.mutate(claims)

			_, err := v.Verify(context.Background(), raw(t, key, claims), exp)
			testutil.AssertError(t, err)
			testutil.AssertStringContains(t, err.Error(), tt.want)
		})
	}

	t.Run("name alone satisfies the identity claims", func(t *testing.T) {
		v, exp := newTestValidator(t, key)
		claims := testutil.DefaultClaims(testClientID, testIssuerFor(testTenantID), testTenantID)
		delete(claims, "preferred_username")

		got, err := v.Verify(context.Background(), raw(t, key, claims), exp)
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, got.PreferredUsername, "")
	})
}

func raw(t *testing.T, key *testutil.SigningKey, claims jwt.MapClaims) string {
	t.Helper()
	return key.MintIDToken(t, claims)
}
