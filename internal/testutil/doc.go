// Package testutil provides testing utilities for the Azure AD adapter:
// RSA signing keys with JWKS fixtures, ID token minting, token endpoint
// handlers and small assertion helpers.
package testutil
