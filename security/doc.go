// Package security provides security supporting features for the Azure AD
// adapter: audit logging of authentication outcomes with PII protection and
// clock-skew handling for token timestamp validation.
package security
