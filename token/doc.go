// Package token verifies Azure AD ID tokens. It fetches and caches the
// authority's published signing key set (JWKS) with a single coordinated
// refresh per key set, pins the signing algorithm to RS256, and checks the
// audience, issuer, timestamp and required-claim expectations before any
// claim is trusted.
package token
