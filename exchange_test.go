package aad

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/volver-13/sonar-auth-aad/internal/testutil"
)

func testEndpoints(tokenURL string) Endpoints {
	return Endpoints{
		AuthorizationURL: "https://login.test/tenant-1/oauth2/v2.0/authorize",
		TokenURL:         tokenURL,
		JWKSURL:          "https://login.test/tenant-1/discovery/v2.0/keys",
		GraphBaseURL:     "https://graph.test",
		loginHost:        "https://login.test",
	}
}

func TestAuthCodeURL(t *testing.T) {
	x := newExchanger(validSettings(), nil)
	eps := testEndpoints("https://login.test/tenant-1/oauth2/v2.0/token")

	raw := x.authCodeURL(eps, "https://sonar.example.com/callback", "state-1")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("authCodeURL produced unparsable URL: %v", err)
	}

	if got := u.Scheme + "://" + u.Host + u.Path; got != eps.AuthorizationURL {
		t.Errorf("authorization URL base = %q, want %q", got, eps.AuthorizationURL)
	}

	q := u.Query()
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", q.Get("response_type"))
	}
	if q.Get("response_mode") != "query" {
		t.Errorf("response_mode = %q, want query", q.Get("response_mode"))
	}
	if q.Get("client_id") != "client-1" {
		t.Errorf("client_id = %q, want client-1", q.Get("client_id"))
	}
	if q.Get("redirect_uri") != "https://sonar.example.com/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}
	if q.Get("state") != "state-1" {
		t.Errorf("state = %q, want state-1", q.Get("state"))
	}
	for _, scope := range []string{"openid", "profile", "email"} {
		if !strings.Contains(q.Get("scope"), scope) {
			t.Errorf("scope %q missing from %q", scope, q.Get("scope"))
		}
	}
}

func TestAuthCodeURLGraphScope(t *testing.T) {
	eps := testEndpoints("https://login.test/tenant-1/oauth2/v2.0/token")

	t.Run("user-token group sync requests delegated scope", func(t *testing.T) {
		s := validSettings()
		s.GroupSyncEnabled = true
		x := newExchanger(s, nil)
		u, _ := url.Parse(x.authCodeURL(eps, "https://cb", "s"))
		if !strings.Contains(u.Query().Get("scope"), "https://graph.test/User.Read") {
			t.Errorf("scope = %q, want Graph User.Read", u.Query().Get("scope"))
		}
	})

	t.Run("client-credential group sync does not", func(t *testing.T) {
		s := validSettings()
		s.GroupSyncEnabled = true
		s.ClientCredentialEnabled = true
		x := newExchanger(s, nil)
		u, _ := url.Parse(x.authCodeURL(eps, "https://cb", "s"))
		if strings.Contains(u.Query().Get("scope"), "User.Read") {
			t.Errorf("scope = %q, should not request delegated Graph scope", u.Query().Get("scope"))
		}
	})
}

func TestAuthCodeURLStructurallyIdempotent(t *testing.T) {
	x := newExchanger(validSettings(), nil)
	eps := testEndpoints("https://login.test/tenant-1/oauth2/v2.0/token")

	first, _ := url.Parse(x.authCodeURL(eps, "https://cb", "state-a"))
	second, _ := url.Parse(x.authCodeURL(eps, "https://cb", "state-b"))

	if first.Path != second.Path {
		t.Errorf("paths differ: %q vs %q", first.Path, second.Path)
	}
	fq, sq := first.Query(), second.Query()
	if len(fq) != len(sq) {
		t.Fatalf("query key counts differ: %d vs %d", len(fq), len(sq))
	}
	for key := range fq {
		if _, ok := sq[key]; !ok {
			t.Errorf("query key %q missing from second URL", key)
		}
		if key != "state" && fq.Get(key) != sq.Get(key) {
			t.Errorf("query key %q differs: %q vs %q", key, fq.Get(key), sq.Get(key))
		}
	}
	if fq.Get("state") == sq.Get("state") {
		t.Error("state should differ between requests")
	}
}

func TestExchangeCode(t *testing.T) {
	t.Run("success extracts ID token", func(t *testing.T) {
		server := httptest.NewServer(testutil.TokenResponseHandler("access-1", "id-token-raw"))
		defer server.Close()

		x := newExchanger(validSettings(), server.Client())
		tok, rawIDToken, err := x.exchangeCode(context.Background(), testEndpoints(server.URL), "https://cb", "code-1")
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, tok.AccessToken, "access-1")
		testutil.AssertEqual(t, rawIDToken, "id-token-raw")
	})

	t.Run("authority error is surfaced with its description", func(t *testing.T) {
		server := httptest.NewServer(testutil.TokenErrorHandler(http.StatusBadRequest,
			"invalid_grant", "AADSTS70008: the provided authorization code is expired"))
		defer server.Close()

		x := newExchanger(validSettings(), server.Client())
		_, _, err := x.exchangeCode(context.Background(), testEndpoints(server.URL), "https://cb", "code-1")
		testutil.AssertError(t, err)

		var ae *AuthError
		if !errors.As(err, &ae) || ae.Code != ErrorCodeProtocol {
			t.Fatalf("error = %v, want protocol AuthError", err)
		}
		testutil.AssertStringContains(t, ae.Description, "invalid_grant")
		testutil.AssertStringContains(t, ae.Description, "AADSTS70008")
	})

	t.Run("missing ID token is a protocol error", func(t *testing.T) {
		server := httptest.NewServer(testutil.TokenResponseHandler("access-1", ""))
		defer server.Close()

		x := newExchanger(validSettings(), server.Client())
		_, _, err := x.exchangeCode(context.Background(), testEndpoints(server.URL), "https://cb", "code-1")
		testutil.AssertError(t, err)
		testutil.AssertStringContains(t, err.Error(), "no ID token")
	})
}

func TestClientCredentialsToken(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err == nil {
				if got := r.Form.Get("grant_type"); got != "" && got != "client_credentials" {
					t.Errorf("grant_type = %q, want client_credentials", got)
				}
				if scope := r.Form.Get("scope"); !strings.Contains(scope, "/.default") {
					t.Errorf("scope = %q, want .default", scope)
				}
			}
			testutil.TokenResponseHandler("service-token", "")(w, r)
		}))
		defer server.Close()

		x := newExchanger(validSettings(), server.Client())
		tok, err := x.clientCredentialsToken(context.Background(), testEndpoints(server.URL))
		testutil.AssertNoError(t, err)
		testutil.AssertEqual(t, tok.AccessToken, "service-token")
	})

	t.Run("failure is an enrichment error", func(t *testing.T) {
		server := httptest.NewServer(testutil.TokenErrorHandler(http.StatusUnauthorized,
			"invalid_client", "client secret is wrong"))
		defer server.Close()

		x := newExchanger(validSettings(), server.Client())
		_, err := x.clientCredentialsToken(context.Background(), testEndpoints(server.URL))
		testutil.AssertError(t, err)
		if !IsEnrichment(err) {
			t.Errorf("error = %v, want enrichment category", err)
		}
	})
}
