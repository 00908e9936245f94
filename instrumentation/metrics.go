package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the chart store
type Metrics struct {
	// HTTP Layer Metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Document API Metrics
	DocumentsCreated metric.Int64Counter
	DocumentsUpdated metric.Int64Counter
	DocumentsDeleted metric.Int64Counter

	// Security Metrics
	CSRFTokensIssued      metric.Int64Counter
	CSRFValidationFailed  metric.Int64Counter
	RateLimitExceeded     metric.Int64Counter
	ValidationFailed      metric.Int64Counter
	CSRFTokensCount       metric.Int64ObservableGauge
	RateLimitClientsCount metric.Int64ObservableGauge

	// Storage Metrics
	StorageOperationTotal    metric.Int64Counter
	StorageOperationDuration metric.Float64Histogram
	StorageRecordsCount      metric.Int64ObservableGauge
	StorageChartsCount       metric.Int64ObservableGauge

	// Audit Metrics
	AuditEventsTotal metric.Int64Counter
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}

	httpMeter := inst.Meter("http")
	apiMeter := inst.Meter("api")
	securityMeter := inst.Meter("security")
	storageMeter := inst.Meter("storage")

	// HTTP Layer Metrics
	var err error
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"chartstore.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"chartstore.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	// Document API Metrics
	m.DocumentsCreated, err = apiMeter.Int64Counter(
		"chartstore.documents.created",
		metric.WithDescription("Number of documents created"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents.created counter: %w", err)
	}

	m.DocumentsUpdated, err = apiMeter.Int64Counter(
		"chartstore.documents.updated",
		metric.WithDescription("Number of documents updated"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents.updated counter: %w", err)
	}

	m.DocumentsDeleted, err = apiMeter.Int64Counter(
		"chartstore.documents.deleted",
		metric.WithDescription("Number of documents deleted"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create documents.deleted counter: %w", err)
	}

	// Security Metrics
	m.CSRFTokensIssued, err = securityMeter.Int64Counter(
		"chartstore.csrf.tokens.issued",
		metric.WithDescription("Number of CSRF tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.tokens.issued counter: %w", err)
	}

	m.CSRFValidationFailed, err = securityMeter.Int64Counter(
		"chartstore.csrf.validation_failed",
		metric.WithDescription("Number of CSRF validation failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.validation_failed counter: %w", err)
	}

	m.RateLimitExceeded, err = securityMeter.Int64Counter(
		"chartstore.rate_limit.exceeded",
		metric.WithDescription("Number of rate limit violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.exceeded counter: %w", err)
	}

	m.ValidationFailed, err = securityMeter.Int64Counter(
		"chartstore.validation.failed",
		metric.WithDescription("Number of input validation failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation.failed counter: %w", err)
	}

	m.CSRFTokensCount, err = securityMeter.Int64ObservableGauge(
		"chartstore.csrf.tokens.count",
		metric.WithDescription("Current number of live CSRF tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create csrf.tokens.count gauge: %w", err)
	}

	m.RateLimitClientsCount, err = securityMeter.Int64ObservableGauge(
		"chartstore.rate_limit.clients.count",
		metric.WithDescription("Current number of tracked rate limit clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit.clients.count gauge: %w", err)
	}

	// Storage Metrics
	m.StorageOperationTotal, err = storageMeter.Int64Counter(
		"storage.operation.total",
		metric.WithDescription("Total number of storage operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.total counter: %w", err)
	}

	m.StorageOperationDuration, err = storageMeter.Float64Histogram(
		"storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.operation.duration histogram: %w", err)
	}

	m.StorageRecordsCount, err = storageMeter.Int64ObservableGauge(
		"storage.records.count",
		metric.WithDescription("Current number of stored data records"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.records.count gauge: %w", err)
	}

	m.StorageChartsCount, err = storageMeter.Int64ObservableGauge(
		"storage.charts.count",
		metric.WithDescription("Current number of stored chart documents"),
		metric.WithUnit("{chart}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.charts.count gauge: %w", err)
	}

	// Audit Metrics
	m.AuditEventsTotal, err = securityMeter.Int64Counter(
		"chartstore.audit.events.total",
		metric.WithDescription("Total number of audit events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit.events.total counter: %w", err)
	}

	return m, nil
}

// Helper methods for common metric recording patterns

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, endpoint string, statusCode int, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", statusCode),
	}

	m.HTTPRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.HTTPRequestDuration.Record(ctx, durationMs, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordDocumentCreated records a document creation
func (m *Metrics) RecordDocumentCreated(ctx context.Context, model string) {
	m.DocumentsCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordDocumentUpdated records a document update
func (m *Metrics) RecordDocumentUpdated(ctx context.Context, model string) {
	m.DocumentsUpdated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordDocumentDeleted records a document deletion
func (m *Metrics) RecordDocumentDeleted(ctx context.Context, model string) {
	m.DocumentsDeleted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordCSRFTokenIssued records a CSRF token issuance
func (m *Metrics) RecordCSRFTokenIssued(ctx context.Context) {
	m.CSRFTokensIssued.Add(ctx, 1)
}

// RecordCSRFFailure records a CSRF validation failure
func (m *Metrics) RecordCSRFFailure(ctx context.Context, reason string) {
	m.CSRFValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordRateLimitExceeded records a rate limit violation
func (m *Metrics) RecordRateLimitExceeded(ctx context.Context, limiterType string) {
	m.RateLimitExceeded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter_type", limiterType),
	))
}

// RecordValidationFailure records an input validation failure
func (m *Metrics) RecordValidationFailure(ctx context.Context, model string) {
	m.ValidationFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
	))
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(ctx context.Context, operation, result string, durationMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("result", result),
	}

	m.StorageOperationTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.StorageOperationDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordAuditEvent records an audit event
func (m *Metrics) RecordAuditEvent(ctx context.Context, eventType string) {
	m.AuditEventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
	))
}
