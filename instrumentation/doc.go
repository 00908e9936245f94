// Package instrumentation provides OpenTelemetry (OTEL) instrumentation for the chartstore library.
//
// This package enables observability across all library layers through:
// - Metrics: Counters, histograms, and gauges for monitoring API and storage operations
// - Traces: Distributed tracing for request flows across components
// - Logging: Structured logs with trace context integration
//
// # Quick Start
//
// Enable basic instrumentation:
//
//	import "github.com/joelmoran101/chartstore/instrumentation"
//
//	// Initialize instrumentation
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "my-chart-api",
//		ServiceVersion: "1.0.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer inst.Shutdown(context.Background())
//
//	// Pass to server configuration
//	server.SetInstrumentation(inst)
//
// # Available Metrics
//
// HTTP Layer:
//   - chartstore.http.requests.total{method, endpoint, status} - Total HTTP requests
//   - chartstore.http.request.duration{endpoint} - Request duration in milliseconds
//
// Document API:
//   - chartstore.documents.created{model} - Documents created
//   - chartstore.documents.updated{model} - Documents updated
//   - chartstore.documents.deleted{model} - Documents deleted
//
// Security:
//   - chartstore.csrf.tokens.issued - CSRF tokens issued
//   - chartstore.csrf.validation_failed{reason} - CSRF validation failures
//   - chartstore.csrf.tokens.count - Live CSRF tokens (gauge)
//   - chartstore.rate_limit.exceeded{limiter_type} - Rate limit violations
//   - chartstore.rate_limit.clients.count - Tracked rate limit clients (gauge)
//   - chartstore.validation.failed{model} - Input validation failures
//   - chartstore.audit.events.total{event_type} - Audit events
//
// Storage:
//   - storage.operation.total{operation, result} - Storage operations
//   - storage.operation.duration{operation} - Operation duration in milliseconds
//   - storage.records.count - Current stored data records (gauge)
//   - storage.charts.count - Current stored chart documents (gauge)
//
// # Distributed Tracing
//
// Spans are created for all major operations:
//   - HTTP requests (method, endpoint, status attributes)
//   - Document operations (create, read, update, delete, list)
//   - Storage operations (insert, get, update, delete, count)
//
// Example span structure:
//
//	http.request
//	└── api.create_chart
//	    ├── storage.max_item_id
//	    └── storage.insert_chart
//
// # Performance
//
// When instrumentation is not configured or disabled:
//   - Zero overhead (uses no-op providers)
//   - No allocations or latency impact
//
// # Thread Safety
//
// All instrumentation operations are thread-safe and can be called concurrently
// from multiple goroutines.
//
// # Security Considerations
//
// IMPORTANT: This package is designed to collect observability data, not secrets.
//
// When instrumenting request handling, you MUST:
//   - NEVER record raw CSRF token values in traces or metrics
//   - ONLY record metadata (token prefixes, issue times, validation results)
//
// Privacy considerations:
//   - Client IP addresses may be considered PII in some jurisdictions
//   - The LogClientIPs config flag omits IP attributes when disabled
//   - Configure appropriate retention policies and access controls
package instrumentation
