package aad

import "fmt"

// Cloud identifies an Azure deployment region. Each sovereign cloud runs its
// own login authority and Microsoft Graph instance.
type Cloud string

const (
	// CloudGlobal is the worldwide Azure AD service (the default).
	CloudGlobal Cloud = "global"

	// CloudUSGov is Azure AD for US Government.
	CloudUSGov Cloud = "usgov"

	// CloudChina is Azure AD China, operated by 21Vianet.
	CloudChina Cloud = "china"

	// CloudGermany is Azure AD Germany.
	CloudGermany Cloud = "germany"
)

// cloudHosts holds the per-cloud authority and directory hosts.
type cloudHosts struct {
	login string
	graph string
}

var cloudHostTable = map[Cloud]cloudHosts{
	CloudGlobal:  {login: "https://login.microsoftonline.com", graph: "https://graph.microsoft.com"},
	CloudUSGov:   {login: "https://login.microsoftonline.us", graph: "https://graph.microsoft.us"},
	CloudChina:   {login: "https://login.partner.microsoftonline.cn", graph: "https://microsoftgraph.chinacloudapi.cn"},
	CloudGermany: {login: "https://login.microsoftonline.de", graph: "https://graph.microsoft.de"},
}

// Endpoints is the set of URLs derived from Settings for one request.
// Computed fresh per request and never persisted.
type Endpoints struct {
	// AuthorizationURL is the v2.0 authorization endpoint.
	AuthorizationURL string

	// TokenURL is the v2.0 token endpoint, used for both the
	// authorization-code and client-credentials grants.
	TokenURL string

	// JWKSURL is the published signing key set for the tenant segment.
	JWKSURL string

	// GraphBaseURL is the Microsoft Graph root for the cloud.
	GraphBaseURL string

	loginHost string
}

// ResolveEndpoints derives the endpoint set for the configured cloud and
// tenant. An unselected cloud maps to the global service. Multi-tenant
// applications use the "common" tenant segment; the same segment logic
// applies uniformly across clouds.
func ResolveEndpoints(s Settings) Endpoints {
	hosts, ok := cloudHostTable[s.Cloud]
	if !ok {
		hosts = cloudHostTable[CloudGlobal]
	}

	segment := s.TenantID
	if s.MultiTenant {
		segment = "common"
	}

	return Endpoints{
		AuthorizationURL: fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", hosts.login, segment),
		TokenURL:         fmt.Sprintf("%s/%s/oauth2/v2.0/token", hosts.login, segment),
		JWKSURL:          fmt.Sprintf("%s/%s/discovery/v2.0/keys", hosts.login, segment),
		GraphBaseURL:     hosts.graph,
		loginHost:        hosts.login,
	}
}

// Issuer returns the expected ID token issuer for a tenant. Multi-tenant
// validation substitutes the token's own tid claim here; single-tenant
// validation pins the configured tenant ID.
func (e Endpoints) Issuer(tenantID string) string {
	return fmt.Sprintf("%s/%s/v2.0", e.loginHost, tenantID)
}

// GraphDefaultScope is the client-credentials scope granting the
// application's consented Graph permissions.
func (e Endpoints) GraphDefaultScope() string {
	return e.GraphBaseURL + "/.default"
}

// GraphUserReadScope is the delegated scope requested when group sync runs
// on the user's own access token.
func (e Endpoints) GraphUserReadScope() string {
	return e.GraphBaseURL + "/User.Read"
}
