package security

import "time"

const (
	// DefaultClockSkewLeeway is the grace period applied to token timestamp
	// checks (exp, nbf, iat). It prevents false validation failures due to
	// time synchronization drift between the host and the authority.
	//
	// Trade-off: a token is accepted up to this long past its true
	// expiration. 5 seconds covers typical NTP drift without meaningfully
	// extending token lifetime.
	DefaultClockSkewLeeway = 5 * time.Second
)

// IsExpiredWithLeeway checks whether a deadline has passed, tolerating the
// given clock-skew leeway. A zero time means no expiration.
func IsExpiredWithLeeway(expiresAt time.Time, leeway time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(leeway))
}
