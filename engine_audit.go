package authcore

import (
	"context"
	"strings"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		SessionID: sessionID,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = auditErrorCode(err)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode reuses the client-facing code in lower case so audit
// consumers and HTTP clients share one vocabulary.
func auditErrorCode(err error) string {
	return strings.ToLower(Classify(err).Code)
}

// RecordAntiForgeryMismatch counts and audits a rejected anti-forgery check.
// The CSRF middleware calls it before writing the 419.
func (e *Engine) RecordAntiForgeryMismatch(ctx context.Context, method, path string) {
	e.metricInc(MetricAntiForgeryMismatch)
	e.emitAudit(ctx, AuditAntiForgeryMismatch, false, "", "", ErrAntiForgeryMismatch, func() map[string]string {
		return map[string]string{"method": method, "path": path}
	})
}

// ObserveRequest records the latency of one HTTP request.
func (e *Engine) ObserveRequest(rec RequestRecord) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricRequestLatency, rec.Duration)
}

// RedactPayload applies the configured redaction keys.
func (e *Engine) RedactPayload(payload map[string]any) map[string]any {
	return Redact(payload, e.config.Audit.RedactKeys)
}
