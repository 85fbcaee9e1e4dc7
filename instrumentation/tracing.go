package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span and metric attribute keys
//
// SECURITY WARNING: Never log actual sensitive values (access tokens, ID
// tokens, authorization codes, client secrets) in traces or metrics. Only
// log metadata such as outcomes, clouds, tenant IDs and durations. Traces
// are persisted, replicated and readable by wider audiences than the
// production system itself.
const (
	// Flow attributes - SAFE to use for metadata only
	AttrCloud    = "aad.cloud"     // Azure cloud selector (global, usgov, ...)
	AttrTenantID = "aad.tenant_id" // Directory tenant ID (non-secret)
	AttrSuccess  = "aad.success"   // Operation outcome (boolean)
	AttrStep     = "aad.step"      // Callback step that produced an outcome
	AttrError    = "aad.error"     // Error code (taxonomy, not detail)

	// Graph attributes
	AttrGraphPages  = "graph.pages"  // Pages fetched during one sync
	AttrGraphGroups = "graph.groups" // Groups resolved during one sync
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess marks a span as successful (nil-safe)
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError sets an error status on a span (nil-safe)
func SetSpanError(span trace.Span, message string) {
	if span != nil {
		span.SetStatus(codes.Error, message)
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe)
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}

// AddFlowAttributes adds common login flow attributes to a span (nil-safe)
func AddFlowAttributes(span trace.Span, cloud, tenantID string) {
	if cloud != "" {
		SetSpanAttributes(span, attribute.String(AttrCloud, cloud))
	}
	if tenantID != "" {
		SetSpanAttributes(span, attribute.String(AttrTenantID, tenantID))
	}
}

// AddGroupSyncAttributes adds group sync result attributes to a span (nil-safe)
func AddGroupSyncAttributes(span trace.Span, pages, groups int) {
	SetSpanAttributes(span,
		attribute.Int(AttrGraphPages, pages),
		attribute.Int(AttrGraphGroups, groups),
	)
}
