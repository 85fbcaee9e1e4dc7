package aad

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultHTTPTimeout bounds every outbound call when the host supplies no
// HTTP client. Unbounded blocking on a remote authority is a failure mode.
const defaultHTTPTimeout = 30 * time.Second

// baseScopes are requested on every authorization request.
var baseScopes = []string{"openid", "profile", "email"}

// exchanger performs the token grants against the tenant's token endpoint:
// the authorization-code grant during the callback and, when enabled, the
// client-credentials grant for a service-level Graph token.
type exchanger struct {
	settings   Settings
	httpClient *http.Client
}

func newExchanger(settings Settings, httpClient *http.Client) *exchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &exchanger{settings: settings, httpClient: httpClient}
}

// oauthConfig builds the oauth2 configuration for the authorization-code
// grant. Client secret basic authentication is forced: the Microsoft
// identity platform accepts both styles, but auto-detection costs a
// round-trip.
func (x *exchanger) oauthConfig(eps Endpoints, redirectURL string) *oauth2.Config {
	scopes := make([]string, 0, len(baseScopes)+1)
	scopes = append(scopes, baseScopes...)
	if x.settings.GroupSyncEnabled && !x.settings.ClientCredentialEnabled {
		// Group sync on the user token needs a delegated Graph scope.
		scopes = append(scopes, eps.GraphUserReadScope())
	}

	return &oauth2.Config{
		ClientID:     x.settings.ClientID,
		ClientSecret: x.settings.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   eps.AuthorizationURL,
			TokenURL:  eps.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// authCodeURL serializes the authorization request as a redirect URL.
func (x *exchanger) authCodeURL(eps Endpoints, redirectURL, state string) string {
	return x.oauthConfig(eps, redirectURL).AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_mode", "query"))
}

// exchangeCode redeems a single-use authorization code for a token set and
// extracts the raw ID token. Never retried: the code is consumed by the
// attempt whether or not it succeeds.
func (x *exchanger) exchangeCode(ctx context.Context, eps Endpoints, redirectURL, code string) (*oauth2.Token, string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, x.httpClient)

	tok, err := x.oauthConfig(eps, redirectURL).Exchange(ctx, code)
	if err != nil {
		return nil, "", ErrProtocol(describeTokenError(err), err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", ErrProtocol("token response carried no ID token", nil)
	}

	return tok, rawIDToken, nil
}

// clientCredentialsToken obtains an application token for Graph using the
// client-credentials grant, scoped to the application's consented Graph
// permissions.
func (x *exchanger) clientCredentialsToken(ctx context.Context, eps Endpoints) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, x.httpClient)

	cfg := &clientcredentials.Config{
		ClientID:     x.settings.ClientID,
		ClientSecret: x.settings.ClientSecret,
		TokenURL:     eps.TokenURL,
		Scopes:       []string{eps.GraphDefaultScope()},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return nil, ErrEnrichment(describeTokenError(err), err)
	}
	return tok, nil
}

// describeTokenError extracts the authority's error description from a
// failed token request so operators see the real cause in the logs. The
// browser-visible message stays generic; only the log carries this detail.
func describeTokenError(err error) string {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		desc := rerr.ErrorDescription
		if desc == "" {
			desc = strings.TrimSpace(string(rerr.Body))
		}
		if rerr.ErrorCode != "" {
			return fmt.Sprintf("token endpoint returned %q: %s", rerr.ErrorCode, desc)
		}
		return fmt.Sprintf("token endpoint returned HTTP %d: %s", rerr.Response.StatusCode, desc)
	}
	return "token request failed"
}
