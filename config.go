package aad

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/volver-13/sonar-auth-aad/instrumentation"
)

// Provider presentation metadata, consumed by the host's login page.
const (
	// ProviderKey identifies this provider in host-local login identifiers.
	ProviderKey = "aad"

	// ProviderName is the human-readable provider name.
	ProviderName = "Azure AD"

	// ProviderIconPath is the host-relative path of the login button icon.
	ProviderIconPath = "/static/authaad/azure.svg"

	// ProviderBackgroundColor is the login button background color.
	ProviderBackgroundColor = "#336699"
)

// LoginStrategy selects how a host-local login is derived from token claims.
type LoginStrategy string

const (
	// LoginStrategyUnique derives "{sub}@aad", guaranteeing uniqueness
	// across identity providers sharing one host namespace.
	LoginStrategyUnique LoginStrategy = "Unique"

	// LoginStrategyProviderID uses the Azure AD preferred username verbatim.
	LoginStrategyProviderID LoginStrategy = "Same as Azure AD login"
)

// recognized reports whether s is one of the supported strategies.
// There is no silent default: anything else fails the login closed.
func (s LoginStrategy) recognized() bool {
	return s == LoginStrategyUnique || s == LoginStrategyProviderID
}

// Settings is the read-only snapshot of tenant and feature configuration.
// The host owns persistence and UI metadata; this package only reads it.
type Settings struct {
	// ClientID is the application (client) ID registered in Azure AD.
	ClientID string

	// ClientSecret is the client secret issued for the application.
	ClientSecret string

	// TenantID is the directory (tenant) ID. Ignored for endpoint
	// construction when MultiTenant is set, but still used to pin the
	// expected token issuer in single-tenant mode.
	TenantID string

	// MultiTenant selects the "common" endpoint so users from any
	// directory can sign in.
	MultiTenant bool

	// Cloud selects the Azure deployment region (defaults to CloudGlobal).
	Cloud Cloud

	// Enabled gates the whole provider. Ignored unless client ID, secret
	// and a recognized login strategy are all present.
	Enabled bool

	// AllowUsersToSignUp permits users unknown to the host to authenticate
	// for the first time.
	AllowUsersToSignUp bool

	// GroupSyncEnabled turns on directory group membership enrichment.
	GroupSyncEnabled bool

	// ClientCredentialEnabled makes group sync use an application token
	// obtained via the client-credentials grant instead of the user token.
	ClientCredentialEnabled bool

	// LoginStrategy selects the host-local login derivation rule.
	LoginStrategy LoginStrategy
}

// IsEnabled reports whether the provider is usable: the enabled flag is
// ignored when client ID, client secret or a recognized login strategy is
// missing.
func (s Settings) IsEnabled() bool {
	return s.Enabled && s.ClientID != "" && s.ClientSecret != "" && s.LoginStrategy.recognized()
}

// Validate checks the settings a callback cannot proceed without.
func (s Settings) Validate() error {
	if s.ClientID == "" {
		return ErrConfiguration("client ID is required", nil)
	}
	if s.ClientSecret == "" {
		return ErrConfiguration("client secret is required", nil)
	}
	if !s.MultiTenant && s.TenantID == "" {
		return ErrConfiguration("tenant ID is required for single-tenant applications", nil)
	}
	if !s.LoginStrategy.recognized() {
		return ErrConfiguration(fmt.Sprintf("unrecognized login strategy %q", s.LoginStrategy), nil)
	}
	return nil
}

// Config holds the provider construction options.
type Config struct {
	// Settings is the tenant/feature configuration snapshot (required).
	Settings Settings

	// Logger for structured logging (optional, uses default if not provided)
	Logger *slog.Logger

	// HTTPClient is a custom HTTP client for all outbound calls: token
	// exchange, JWKS fetch and Graph pagination. If not provided, a
	// default client with a bounded timeout is used.
	HTTPClient *http.Client

	// EnableAuditLogging enables security audit logging of login outcomes
	// (sensitive identifiers are hashed).
	EnableAuditLogging bool

	// KeySetTTL bounds how long fetched signing key sets are cached.
	// Zero uses the token package default.
	KeySetTTL time.Duration

	// Instrumentation provides OpenTelemetry meters and tracers. If not
	// provided, a no-op instance is created.
	Instrumentation *instrumentation.Instrumentation
}
