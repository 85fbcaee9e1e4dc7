package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection. Logins and
// their identifiers are operationally interesting but personally
// identifiable, so user logins are hashed before logging.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Login     string
	TenantID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"login_hash", hashForLogging(event.Login),
		"tenant_id", event.TenantID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogLoginSuccess logs a completed authentication.
func (a *Auditor) LogLoginSuccess(login, tenantID string, groupCount int, groupSynced bool) {
	a.LogEvent(Event{
		Type:     "login_success",
		Login:    login,
		TenantID: tenantID,
		Details: map[string]any{
			"group_count":  groupCount,
			"group_synced": groupSynced,
		},
	})
}

// LogLoginFailure logs a failed authentication attempt.
func (a *Auditor) LogLoginFailure(tenantID, errorCode, reason string) {
	a.LogEvent(Event{
		Type:     "login_failure",
		TenantID: tenantID,
		Details: map[string]any{
			"error_code": errorCode,
			"reason":     reason,
		},
	})
}

// LogTokenValidationFailure logs an ID token that failed signature or
// claims verification.
func (a *Auditor) LogTokenValidationFailure(tenantID, reason string) {
	a.LogEvent(Event{
		Type:     "token_validation_failure",
		TenantID: tenantID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogGroupSyncDegraded logs a group membership fetch that failed without
// failing the login.
func (a *Auditor) LogGroupSyncDegraded(login, tenantID, reason string) {
	a.LogEvent(Event{
		Type:     "group_sync_degraded",
		Login:    login,
		TenantID: tenantID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogClientCredentialFallback logs a failed client-credentials exchange
// that fell back to the user's own access token.
func (a *Auditor) LogClientCredentialFallback(tenantID, reason string) {
	a.LogEvent(Event{
		Type:     "client_credential_fallback",
		TenantID: tenantID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(value string) string {
	if value == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8]) // First 8 bytes is enough for correlation
}
