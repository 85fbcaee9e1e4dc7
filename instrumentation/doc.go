// Package instrumentation provides OpenTelemetry metrics and tracing for
// the Azure AD adapter: login flow outcomes, token validation, key set
// refreshes, client-credential exchanges and group sync pagination. When
// disabled it falls back to no-op providers with zero overhead.
package instrumentation
