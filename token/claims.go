package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the validated ID token claim set. Instances are only handed out
// after both signature and claim verification succeed.
type Claims struct {
	jwt.RegisteredClaims

	// ObjectID is the user's immutable directory object ID (oid), the key
	// for Graph membership lookups.
	ObjectID string `json:"oid"`

	// TenantID is the directory the user authenticated against (tid).
	TenantID string `json:"tid"`

	// PreferredUsername is the Azure AD login, usually the UPN.
	PreferredUsername string `json:"preferred_username"`

	// Email is the user's email address, when the tenant emits it.
	Email string `json:"email"`

	// Name is the user's display name.
	Name string `json:"name"`
}

// requireCompleteness checks the fixed required-claim set beyond what the
// JWT parser already enforced (signature, audience, exp/nbf/iat windows).
func (c *Claims) requireCompleteness() error {
	switch {
	case c.Issuer == "":
		return fmt.Errorf("missing required claim %q", "iss")
	case c.IssuedAt == nil:
		return fmt.Errorf("missing required claim %q", "iat")
	case c.NotBefore == nil:
		return fmt.Errorf("missing required claim %q", "nbf")
	case c.ExpiresAt == nil:
		return fmt.Errorf("missing required claim %q", "exp")
	case c.Subject == "":
		return fmt.Errorf("missing required claim %q", "sub")
	case c.ObjectID == "":
		return fmt.Errorf("missing required claim %q", "oid")
	case c.TenantID == "":
		return fmt.Errorf("missing required claim %q", "tid")
	case c.Name == "" && c.PreferredUsername == "":
		return fmt.Errorf("missing required claim %q or %q", "name", "preferred_username")
	}
	return nil
}
