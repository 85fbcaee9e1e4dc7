// Package aad implements an Azure AD (Microsoft Entra ID) identity provider
// adapter. It drives the OAuth2 authorization-code flow against the Microsoft
// identity platform, verifies the resulting OpenID Connect ID token against
// the tenant's published signing keys, optionally resolves the user's
// transitive group memberships from Microsoft Graph, and hands a canonical
// Identity to the hosting application.
//
// The host supplies CSRF state handling, the callback HTTP request and
// session establishment through the InitContext and CallbackContext
// interfaces; this package owns protocol sequencing, token verification and
// directory enrichment only.
package aad
