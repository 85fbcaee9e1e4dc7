package aad

import "net/http"

// Identity is the canonical output of a successful callback: a verified
// user plus, when group sync is enabled, the full set of directory group
// names. It is handed to the host exactly once per successful callback.
type Identity struct {
	// Login is the host-local login derived per the configured strategy.
	Login string

	// ProviderLogin is the Azure AD login (the preferred username claim).
	ProviderLogin string

	// Name is the user's display name, never empty (falls back to a
	// sentinel when the token carries no usable name).
	Name string

	// Email is the user's email address, falling back to the preferred
	// username when the email claim is absent.
	Email string

	// Groups is the set of directory group display names. Nil when group
	// sync is disabled. When group sync is enabled it is non-nil: either
	// the complete paginated membership or empty after a degraded fetch,
	// never a partial page treated as complete.
	Groups []string
}

// InitContext is supplied by the host when starting an authentication.
// CSRF state generation is owned by the host.
type InitContext interface {
	// GenerateCsrfState mints and remembers an opaque anti-forgery token.
	GenerateCsrfState() string

	// CallbackURL is the absolute URL the authority redirects back to.
	CallbackURL() string

	// RedirectTo hands a browser redirect instruction to the host.
	RedirectTo(url string)
}

// CallbackContext is supplied by the host when the authority redirects the
// browser back. Session establishment is owned by the host.
type CallbackContext interface {
	// VerifyCsrfState checks the inbound anti-forgery token.
	VerifyCsrfState() error

	// CallbackURL is the redirect URL the authorization code was bound to.
	CallbackURL() string

	// Request is the inbound callback HTTP request.
	Request() *http.Request

	// Authenticate establishes the host session for the verified identity.
	Authenticate(identity Identity) error

	// RedirectToRequestedPage sends the browser to the originally
	// requested page.
	RedirectToRequestedPage()
}
