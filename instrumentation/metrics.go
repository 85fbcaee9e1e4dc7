package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the adapter
type Metrics struct {
	// Flow metrics
	LoginStarted      metric.Int64Counter
	CallbackProcessed metric.Int64Counter
	CodeExchanged     metric.Int64Counter

	// Token validation metrics
	TokenValidated metric.Int64Counter

	// Enrichment metrics
	ClientCredentialExchanged metric.Int64Counter
	GroupSyncCompleted        metric.Int64Counter
	GroupSyncDuration         metric.Float64Histogram
	GroupSyncGroups           metric.Int64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	flowMeter := inst.Meter("flow")
	tokenMeter := inst.Meter("token")
	graphMeter := inst.Meter("graph")

	var err error
	m.LoginStarted, err = flowMeter.Int64Counter(
		"aad.login.started",
		metric.WithDescription("Number of authentication flows started"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create login.started counter: %w", err)
	}

	m.CallbackProcessed, err = flowMeter.Int64Counter(
		"aad.callback.processed",
		metric.WithDescription("Number of authentication callbacks processed"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback.processed counter: %w", err)
	}

	m.CodeExchanged, err = flowMeter.Int64Counter(
		"aad.code.exchanged",
		metric.WithDescription("Number of authorization code exchanges"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.exchanged counter: %w", err)
	}

	m.TokenValidated, err = tokenMeter.Int64Counter(
		"aad.token.validated",
		metric.WithDescription("Number of ID token validations"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.validated counter: %w", err)
	}

	m.ClientCredentialExchanged, err = tokenMeter.Int64Counter(
		"aad.client_credential.exchanged",
		metric.WithDescription("Number of client-credentials exchanges for Graph access"),
		metric.WithUnit("{exchange}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client_credential.exchanged counter: %w", err)
	}

	m.GroupSyncCompleted, err = graphMeter.Int64Counter(
		"aad.group_sync.completed",
		metric.WithDescription("Number of group membership syncs"),
		metric.WithUnit("{sync}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group_sync.completed counter: %w", err)
	}

	m.GroupSyncDuration, err = graphMeter.Float64Histogram(
		"aad.group_sync.duration",
		metric.WithDescription("Group membership sync duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group_sync.duration histogram: %w", err)
	}

	m.GroupSyncGroups, err = graphMeter.Int64Histogram(
		"aad.group_sync.groups",
		metric.WithDescription("Number of groups resolved per sync"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group_sync.groups histogram: %w", err)
	}

	return m, nil
}

// RecordLoginStarted records the start of an authentication flow
func (m *Metrics) RecordLoginStarted(ctx context.Context, cloud string) {
	if m == nil || m.LoginStarted == nil {
		return
	}
	m.LoginStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCloud, cloud),
	))
}

// RecordCallbackProcessed records a processed callback and its outcome
func (m *Metrics) RecordCallbackProcessed(ctx context.Context, success bool) {
	if m == nil || m.CallbackProcessed == nil {
		return
	}
	m.CallbackProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrSuccess, success),
	))
}

// RecordCodeExchange records an authorization code exchange outcome
func (m *Metrics) RecordCodeExchange(ctx context.Context, success bool) {
	if m == nil || m.CodeExchanged == nil {
		return
	}
	m.CodeExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrSuccess, success),
	))
}

// RecordTokenValidation records an ID token validation outcome
func (m *Metrics) RecordTokenValidation(ctx context.Context, success bool) {
	if m == nil || m.TokenValidated == nil {
		return
	}
	m.TokenValidated.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrSuccess, success),
	))
}

// RecordClientCredentialExchange records a client-credentials exchange
// outcome; fallback marks exchanges that degraded to the user token.
func (m *Metrics) RecordClientCredentialExchange(ctx context.Context, success bool) {
	if m == nil || m.ClientCredentialExchanged == nil {
		return
	}
	m.ClientCredentialExchanged.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrSuccess, success),
	))
}

// RecordGroupSync records a completed group sync with its outcome, the
// number of groups resolved and the elapsed time.
func (m *Metrics) RecordGroupSync(ctx context.Context, success bool, groups int, durationMillis float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool(AttrSuccess, success))
	if m.GroupSyncCompleted != nil {
		m.GroupSyncCompleted.Add(ctx, 1, attrs)
	}
	if m.GroupSyncDuration != nil {
		m.GroupSyncDuration.Record(ctx, durationMillis, attrs)
	}
	if m.GroupSyncGroups != nil && success {
		m.GroupSyncGroups.Record(ctx, int64(groups))
	}
}
