package aad

import (
	"fmt"

	"github.com/volver-13/sonar-auth-aad/token"
)

// NoNameSentinel is the display name used when the token carries neither a
// name nor a preferred username. Azure AD requires the name claim, so this
// only guards malformed tokens.
const NoNameSentinel = "No name provided"

// ResolveIdentity combines validated claims, the resolved group set and the
// configured login strategy into the canonical Identity. The only failure
// mode is an unrecognized login strategy, which fails the login closed.
func ResolveIdentity(claims *token.Claims, groups []string, strategy LoginStrategy) (Identity, error) {
	login, err := loginFor(claims, strategy)
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Login:         login,
		ProviderLogin: claims.PreferredUsername,
		Name:          displayNameFor(claims),
		Email:         emailFor(claims),
		Groups:        groups,
	}, nil
}

// loginFor derives the host-local login. Pure function of (claims, strategy);
// an unrecognized strategy is a configuration failure, never a guess.
func loginFor(claims *token.Claims, strategy LoginStrategy) (string, error) {
	switch strategy {
	case LoginStrategyUnique:
		return fmt.Sprintf("%s@%s", claims.Subject, ProviderKey), nil
	case LoginStrategyProviderID:
		return claims.PreferredUsername, nil
	default:
		return "", ErrConfiguration(fmt.Sprintf("login strategy not found: %q", strategy), nil)
	}
}

// displayNameFor resolves the display name: name claim, then preferred
// username, then the sentinel. This chain never fails.
func displayNameFor(claims *token.Claims) string {
	if claims.Name != "" {
		return claims.Name
	}
	if claims.PreferredUsername != "" {
		return claims.PreferredUsername
	}
	return NoNameSentinel
}

// emailFor resolves the email: email claim first, preferred username as the
// fallback. Works for most Azure AD installs, where the preferred username
// is the UPN.
func emailFor(claims *token.Claims) string {
	if claims.Email != "" {
		return claims.Email
	}
	return claims.PreferredUsername
}
