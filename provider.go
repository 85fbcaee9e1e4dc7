package aad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/volver-13/sonar-auth-aad/graph"
	"github.com/volver-13/sonar-auth-aad/instrumentation"
	"github.com/volver-13/sonar-auth-aad/security"
	"github.com/volver-13/sonar-auth-aad/token"
)

// Provider is the Azure AD identity provider adapter. It orchestrates the
// two-step protocol: Init redirects the browser to the authorization
// endpoint, Callback exchanges the returned code, verifies the ID token,
// optionally resolves group memberships and emits the Identity to the host.
//
// Each call is an independent, stateless unit of work; the only state
// shared across requests is the cached signing key set.
type Provider struct {
	settings  Settings
	logger    *slog.Logger
	auditor   *security.Auditor
	exchanger *exchanger
	validator *token.Validator
	graph     *graph.Client
	inst      *instrumentation.Instrumentation
	tracer    trace.Tracer

	// endpointOverride replaces the derived endpoint set.
	// INTERNAL USE ONLY: this is for tests running against local servers.
	endpointOverride *Endpoints
}

// resolveEndpoints derives the endpoint set for one request.
func (p *Provider) resolveEndpoints() Endpoints {
	if p.endpointOverride != nil {
		return *p.endpointOverride
	}
	return ResolveEndpoints(p.settings)
}

// NewProvider creates the adapter from the host's configuration snapshot.
// Incomplete settings are permitted here so the host can still render a
// disabled login button; they fail the individual flows instead.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	inst := cfg.Instrumentation
	if inst == nil {
		var err error
		inst, err = instrumentation.New(instrumentation.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create instrumentation: %w", err)
		}
	}

	keys := token.NewKeySource(httpClient, cfg.KeySetTTL, logger)

	return &Provider{
		settings:  cfg.Settings,
		logger:    logger,
		auditor:   security.NewAuditor(logger, cfg.EnableAuditLogging),
		exchanger: newExchanger(cfg.Settings, httpClient),
		validator: token.NewValidator(keys, logger),
		graph: graph.NewClient(&graph.Config{
			HTTPClient: httpClient,
			Logger:     logger,
		}),
		inst:   inst,
		tracer: inst.Tracer("flow"),
	}, nil
}

// Key identifies the provider in host-local logins and URLs.
func (p *Provider) Key() string {
	return ProviderKey
}

// Name is the human-readable provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// IsEnabled reports whether the provider is configured well enough to offer
// a login at all.
func (p *Provider) IsEnabled() bool {
	return p.settings.IsEnabled()
}

// AllowsUsersToSignUp reports whether first-time users may authenticate.
func (p *Provider) AllowsUsersToSignUp() bool {
	return p.settings.AllowUsersToSignUp
}

// Init starts an authentication: it builds the authorization request with a
// fresh host-supplied anti-forgery state and hands the redirect to the
// host. It fails only when the authority URL is structurally invalid.
func (p *Provider) Init(ctx context.Context, ic InitContext) error {
	ctx, span := p.tracer.Start(ctx, "aad.init")
	defer span.End()
	instrumentation.AddFlowAttributes(span, string(p.settings.Cloud), p.settings.TenantID)

	eps := p.resolveEndpoints()
	if _, err := url.ParseRequestURI(eps.AuthorizationURL); err != nil {
		cerr := ErrConfiguration("malformed authorization endpoint URL", err)
		instrumentation.RecordError(span, cerr)
		return cerr
	}

	p.inst.Metrics().RecordLoginStarted(ctx, string(p.settings.Cloud))

	state := ic.GenerateCsrfState()
	authURL := p.exchanger.authCodeURL(eps, ic.CallbackURL(), state)

	p.logger.Debug("redirecting to authorization endpoint",
		"cloud", string(p.settings.Cloud),
		"multi_tenant", p.settings.MultiTenant,
	)
	instrumentation.SetSpanSuccess(span)
	ic.RedirectTo(authURL)
	return nil
}

// Callback completes an authentication. Every failure, including a panic in
// a collaborator, surfaces as a single reported error with no partial side
// effects: the host never sees an identity unless every mandatory step
// succeeded.
func (p *Provider) Callback(ctx context.Context, cc CallbackContext) (err error) {
	ctx, span := p.tracer.Start(ctx, "aad.callback")
	defer span.End()
	instrumentation.AddFlowAttributes(span, string(p.settings.Cloud), p.settings.TenantID)

	step := "settings"
	defer func() {
		if r := recover(); r != nil {
			err = ErrProtocol(fmt.Sprintf("unexpected failure during callback: %v", r), nil)
		}
		p.inst.Metrics().RecordCallbackProcessed(ctx, err == nil)
		if err != nil {
			code := ErrorCodeProtocol
			var ae *AuthError
			if errors.As(err, &ae) {
				code = ae.Code
			}
			// The full detail stays in the log; the host surfaces a
			// generic authentication failure to the browser.
			p.logger.Error("authentication failed", "error_code", code, "step", step, "error", err)
			p.auditor.LogLoginFailure(p.settings.TenantID, code, err.Error())
			instrumentation.SetSpanAttributes(span,
				attribute.String(instrumentation.AttrStep, step),
				attribute.String(instrumentation.AttrError, code),
			)
			instrumentation.RecordError(span, err)
			return
		}
		instrumentation.SetSpanSuccess(span)
	}()

	if err := p.settings.Validate(); err != nil {
		return err
	}

	step = "anti_forgery"
	if err := cc.VerifyCsrfState(); err != nil {
		return ErrProtocol("anti-forgery state verification failed", err)
	}

	eps := p.resolveEndpoints()

	step = "code_exchange"
	code := cc.Request().URL.Query().Get("code")
	if code == "" {
		return ErrProtocol("callback request carries no authorization code", nil)
	}

	tok, rawIDToken, xerr := p.exchanger.exchangeCode(ctx, eps, cc.CallbackURL(), code)
	p.inst.Metrics().RecordCodeExchange(ctx, xerr == nil)
	if xerr != nil {
		return xerr
	}

	step = "token_validation"
	expectedTenant := p.settings.TenantID
	if p.settings.MultiTenant {
		expectedTenant = ""
	}
	claims, verr := p.validator.Verify(ctx, rawIDToken, token.Expectations{
		ClientID:  p.settings.ClientID,
		TenantID:  expectedTenant,
		IssuerFor: eps.Issuer,
		JWKSURL:   eps.JWKSURL,
	})
	p.inst.Metrics().RecordTokenValidation(ctx, verr == nil)
	if verr != nil {
		p.auditor.LogTokenValidationFailure(p.settings.TenantID, verr.Error())
		return ErrProtocol("ID token validation failed", verr)
	}

	groups := p.resolveGroups(ctx, eps, tok.AccessToken, claims)

	step = "identity"
	identity, ierr := ResolveIdentity(claims, groups, p.settings.LoginStrategy)
	if ierr != nil {
		return ierr
	}

	step = "authenticate"
	if aerr := cc.Authenticate(identity); aerr != nil {
		return ErrProtocol("host session establishment failed", aerr)
	}

	p.auditor.LogLoginSuccess(identity.Login, claims.TenantID, len(identity.Groups), p.settings.GroupSyncEnabled)
	cc.RedirectToRequestedPage()
	return nil
}

// resolveGroups runs the best-effort enrichment step. It never fails the
// login: a failed client-credentials exchange degrades to the user's own
// access token, and a failed membership fetch yields the empty set.
// Accumulated pages are discarded so a partial membership is never applied.
func (p *Provider) resolveGroups(ctx context.Context, eps Endpoints, userAccessToken string, claims *token.Claims) []string {
	if !p.settings.GroupSyncEnabled {
		return nil
	}

	ctx, span := p.tracer.Start(ctx, "aad.group_sync")
	defer span.End()

	start := time.Now()
	accessToken := userAccessToken

	if p.settings.ClientCredentialEnabled {
		svc, err := p.exchanger.clientCredentialsToken(ctx, eps)
		p.inst.Metrics().RecordClientCredentialExchange(ctx, err == nil)
		if err != nil {
			p.logger.Warn("client-credentials exchange failed, falling back to the user's access token", "error", err)
			p.auditor.LogClientCredentialFallback(p.settings.TenantID, err.Error())
		} else {
			accessToken = svc.AccessToken
		}
	}

	names, err := p.graph.TransitiveGroups(ctx, eps.GraphBaseURL, accessToken, claims.ObjectID)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		p.inst.Metrics().RecordGroupSync(ctx, false, 0, elapsed)
		instrumentation.RecordError(span, err)
		p.logger.Error("group membership request failed", "error", err)
		p.auditor.LogGroupSyncDegraded(claims.PreferredUsername, claims.TenantID, err.Error())
		// Empty but non-nil: host-side memberships are replaced, not kept.
		return []string{}
	}

	p.inst.Metrics().RecordGroupSync(ctx, true, len(names), elapsed)
	instrumentation.SetSpanAttributes(span, attribute.Int(instrumentation.AttrGraphGroups, len(names)))
	instrumentation.SetSpanSuccess(span)
	if len(names) == 0 {
		p.logger.Warn("group list was empty, directory permissions may be missing")
	}
	return names
}
