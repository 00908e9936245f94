package chartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelmoran101/chartstore/instrumentation"
	"github.com/joelmoran101/chartstore/internal/util"
	"github.com/joelmoran101/chartstore/security"
	"github.com/joelmoran101/chartstore/storage"
)

const (
	// csrfCookieName is the double-submit cookie. It is deliberately not
	// HttpOnly: the frontend reads it and echoes the value in the
	// X-CSRF-Token header on mutating requests.
	csrfCookieName = "XSRF-TOKEN"

	// csrfHeaderName carries the echoed token on POST, PUT and DELETE.
	csrfHeaderName = "X-CSRF-Token"

	// csrfCookieMaxAge is the cookie lifetime in seconds, matching the
	// default token TTL of 24 hours.
	csrfCookieMaxAge = 86400

	// maxRequestBodyBytes caps request bodies ahead of JSON decoding. It
	// sits above the 10 MiB data payload limit so the validator, not the
	// transport, names the failure for oversized chart data.
	maxRequestBodyBytes = 11 << 20

	// defaultPageLimit and maxPageLimit bound the list endpoints.
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// Handler provides HTTP handlers for the chart storage API.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer // OpenTelemetry tracer for HTTP layer
}

// NewHandler creates an HTTP handler wrapping the given server.
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: server,
		logger: logger,
	}

	// Initialize tracer if instrumentation is enabled
	if server.instrumentation != nil {
		h.tracer = server.instrumentation.Tracer("http")
	}

	return h
}

// Routes assembles the full API surface with the middleware chain:
// request id -> logging -> security headers -> CORS -> trusted host ->
// rate limiting -> CSRF (mutating methods only) -> routing.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.ServeRoot)
	mux.HandleFunc("GET /health", h.ServeHealth)
	mux.HandleFunc("GET /csrf-token", h.ServeCSRFToken)

	mux.HandleFunc("GET /data/{$}", h.ServeListData)
	mux.HandleFunc("POST /data/{$}", h.ServeCreateData)
	mux.HandleFunc("GET /data/{item_id}", h.ServeGetData)
	mux.HandleFunc("PUT /data/{item_id}", h.ServeUpdateData)
	mux.HandleFunc("DELETE /data/{item_id}", h.ServeDeleteData)

	mux.HandleFunc("GET /plotly/{$}", h.ServeListCharts)
	mux.HandleFunc("POST /plotly/{$}", h.ServeCreateChart)
	mux.HandleFunc("GET /plotly/{item_id}", h.ServeGetChart)
	mux.HandleFunc("PUT /plotly/{item_id}", h.ServeUpdateChart)
	mux.HandleFunc("DELETE /plotly/{item_id}", h.ServeDeleteChart)

	var handler http.Handler = mux
	handler = h.csrfMiddleware(handler)
	handler = h.rateLimitMiddleware(handler)
	handler = h.trustedHostMiddleware(handler)
	handler = h.corsMiddleware(handler)
	handler = security.HeadersMiddleware(handler)
	handler = h.loggingMiddleware(handler)
	handler = security.RequestIDMiddleware(handler)
	return handler
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs every request with its status, duration and
// request id.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		h.logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", security.GetRequestID(r.Context()))
	})
}

// corsMiddleware sets CORS headers for allowed origins and short-circuits
// preflight requests with 204.
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// trustedHostMiddleware rejects requests whose Host header is not on the
// allowlist. An empty allowlist or a "*" entry disables the check.
func (h *Handler) trustedHostMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.isTrustedHost(r.Host) {
			h.server.auditor.LogInvalidHostHeader(h.clientIP(r), security.GetRequestID(r.Context()), r.Host)
			h.writeAPIError(w, NewAPIError(ErrorTypeValidation, "Invalid host header", http.StatusBadRequest))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces the per-client sliding window before any
// other handling.
func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := h.clientIP(r)
		if !h.server.rateLimiter.Allow(clientKey) {
			h.server.auditor.LogRateLimitExceeded(clientKey, security.GetRequestID(r.Context()))
			if h.server.instrumentation != nil {
				h.server.instrumentation.Metrics().RecordRateLimitExceeded(r.Context(), "ip")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(h.server.config.RateLimit.Window.Seconds())))
			h.writeAPIError(w, ErrRateLimited("Rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfMiddleware validates the double-submit token pair on mutating
// methods. Reads pass through untouched.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if err := h.validateCSRF(r); err != nil {
				h.writeAPIError(w, ErrForbidden(err.Error()))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) validateCSRF(r *http.Request) error {
	var cookieToken string
	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		cookieToken = cookie.Value
	}
	headerToken := r.Header.Get(csrfHeaderName)

	err := h.server.ValidateCSRF(cookieToken, headerToken)
	if err == nil {
		return nil
	}

	reason := csrfFailureReason(err)
	h.server.auditor.LogCSRFFailure(h.clientIP(r), security.GetRequestID(r.Context()), reason)
	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordCSRFFailure(r.Context(), reason)
	}
	return err
}

func csrfFailureReason(err error) string {
	switch {
	case errors.Is(err, security.ErrCSRFTokenMissing):
		return "missing"
	case errors.Is(err, security.ErrCSRFTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}

// clientIP derives the rate limiting and audit key for a request. Requests
// whose remote address cannot be parsed share the "unknown" bucket.
func (h *Handler) clientIP(r *http.Request) string {
	ip := security.GetClientIP(r, h.server.config.RateLimit.TrustProxy, h.server.config.RateLimit.TrustedProxyCount)
	if ip == "" {
		return security.UnknownClientKey
	}
	return ip
}

// isTrustedHost checks the request Host (port stripped) against the
// allowlist. Entries of the form "*.example.com" match any subdomain.
func (h *Handler) isTrustedHost(hostport string) bool {
	allowed := h.server.config.Security.AllowedHosts
	if len(allowed) == 0 {
		return true
	}

	host := hostport
	if splitHost, _, err := net.SplitHostPort(hostport); err == nil {
		host = splitHost
	}
	host = strings.ToLower(host)

	for _, pattern := range allowed {
		pattern = strings.ToLower(pattern)
		if pattern == "*" || pattern == host {
			return true
		}
		if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:]) {
			return true
		}
	}
	return false
}

// setCORSHeaders sets CORS response headers when the request carries an
// allowed Origin. Disallowed origins get no CORS headers; the request is
// still served and the browser enforces the block.
func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(h.server.config.CORS.AllowedOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	if !h.isAllowedOrigin(origin) {
		h.logger.Debug("CORS request from disallowed origin", "origin", origin)
		return
	}

	// Echo back the specific origin rather than "*" so responses stay
	// cacheable per origin and credentials remain usable.
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")

	if !h.server.config.CORS.DisableCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+csrfHeaderName)
	w.Header().Set("Access-Control-Expose-Headers", "X-Total-Count")
	w.Header().Set("Access-Control-Max-Age", strconv.Itoa(h.server.config.CORS.MaxAge))
}

// isAllowedOrigin compares the request origin against the allowlist,
// ignoring a trailing slash on either side.
func (h *Handler) isAllowedOrigin(origin string) bool {
	normalized := util.NormalizeOrigin(origin)
	for _, allowed := range h.server.config.CORS.AllowedOrigins {
		if allowed == "*" {
			return true
		}
		if util.NormalizeOrigin(allowed) == normalized {
			return true
		}
	}
	return false
}

// ServeRoot returns the API banner.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	h.writeJSON(w, http.StatusOK, BannerResponse{
		Message:     "Chartstore Plotly Backend",
		Version:     Version,
		HealthCheck: "/health",
	})
	h.recordHTTPMetrics("/", r.Method, http.StatusOK, startTime)
}

// ServeHealth reports service and storage backend health.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.health")
		defer span.End()
		r = r.WithContext(ctx)
	}

	if err := h.server.CheckHealth(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err, "request_id", security.GetRequestID(ctx))
		instrumentation.RecordError(span, err)
		h.writeAPIError(w, NewAPIError(ErrorTypeStorage, "Database connection failed", http.StatusServiceUnavailable))
		h.recordHTTPMetrics("/health", r.Method, http.StatusServiceUnavailable, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	})
	h.recordHTTPMetrics("/health", r.Method, http.StatusOK, startTime)
}

// ServeCSRFToken issues a CSRF token and sets the double-submit cookie. The
// cookie is readable by JavaScript so the frontend can echo it in the
// X-CSRF-Token header.
func (h *Handler) ServeCSRFToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.csrf_token")
		defer span.End()
		r = r.WithContext(ctx)
	}

	token, err := h.server.IssueCSRFToken(ctx)
	if err != nil {
		h.logger.Error("Failed to issue CSRF token", "error", err, "request_id", security.GetRequestID(ctx))
		instrumentation.RecordError(span, err)
		h.writeAPIError(w, ErrStorage("Failed to generate CSRF token"))
		h.recordHTTPMetrics("/csrf-token", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   h.server.config.Security.CSRFCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, CSRFTokenResponse{Success: true})
	h.recordHTTPMetrics("/csrf-token", r.Method, http.StatusOK, startTime)
}

// ServeListData returns a page of generic data records. The collection
// total travels in the X-Total-Count header.
func (h *Handler) ServeListData(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.list_data")
		defer span.End()
		r = r.WithContext(ctx)
	}

	limit, skip, apiErr := parsePagination(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.SetSpanAttributes(span,
		attribute.Int64(instrumentation.AttrPageLimit, limit),
		attribute.Int64(instrumentation.AttrPageSkip, skip))

	records, total, err := h.server.ListRecords(ctx, limit, skip)
	if err != nil {
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/data", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	h.writeJSON(w, http.StatusOK, toRecordResponses(records))
	h.recordHTTPMetrics("/data", r.Method, http.StatusOK, startTime)
}

// ServeCreateData validates and stores a new generic data record.
func (h *Handler) ServeCreateData(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.create_data")
		defer span.End()
		r = r.WithContext(ctx)
	}

	body, apiErr := h.readBody(w, r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data", r.Method, apiErr.Status, startTime)
		return
	}

	record, apiErr := h.server.validator.ParseRecordCreate(body)
	if apiErr != nil {
		h.recordValidationFailure(r, "data", apiErr.Detail)
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data", r.Method, apiErr.Status, startTime)
		return
	}

	itemID, databaseID, err := h.server.CreateRecord(ctx, record)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateItemID) {
			instrumentation.RecordError(span, err)
			h.writeAPIError(w, ErrConflict("Item with generated ID already exists (race condition)"))
			h.recordHTTPMetrics("/data", r.Method, http.StatusBadRequest, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/data", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.AddDocumentAttributes(span, "data", itemID)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Data created successfully",
		ItemID:  &itemID,
		Data:    map[string]any{"database_id": databaseID},
	})
	h.recordHTTPMetrics("/data", r.Method, http.StatusOK, startTime)
}

// ServeGetData returns one record by item_id.
func (h *Handler) ServeGetData(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.get_data")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "data", itemID)

	record, err := h.server.storage.GetRecord(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			instrumentation.SetSpanError(span, "record not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Item with ID %d not found", itemID)))
			h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusNotFound, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, toRecordResponse(record))
	h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusOK, startTime)
}

// ServeUpdateData merges a partial update into an existing record.
func (h *Handler) ServeUpdateData(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.update_data")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "data", itemID)

	body, apiErr := h.readBody(w, r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}

	update, apiErr := h.server.validator.ParseRecordUpdate(body)
	if apiErr != nil {
		h.recordValidationFailure(r, "data", apiErr.Detail)
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}

	if err := h.server.storage.UpdateRecord(ctx, itemID, update); err != nil {
		switch {
		case errors.Is(err, storage.ErrRecordNotFound):
			instrumentation.SetSpanError(span, "record not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Item with ID %d not found", itemID)))
			h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusNotFound, startTime)
		case errors.Is(err, storage.ErrNotModified):
			instrumentation.SetSpanError(span, "no changes were made")
			h.writeAPIError(w, ErrConflict("No changes were made"))
			h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusBadRequest, startTime)
		default:
			h.storageError(w, r, span, err)
			h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		}
		return
	}

	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordDocumentUpdated(ctx, "data")
	}
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Data updated successfully",
		ItemID:  &itemID,
	})
	h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusOK, startTime)
}

// ServeDeleteData removes a record. Hard delete, no tombstone.
func (h *Handler) ServeDeleteData(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.delete_data")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "data", itemID)

	if err := h.server.storage.DeleteRecord(ctx, itemID); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			instrumentation.SetSpanError(span, "record not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Item with ID %d not found", itemID)))
			h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusNotFound, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordDocumentDeleted(ctx, "data")
	}
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Data deleted successfully",
		ItemID:  &itemID,
	})
	h.recordHTTPMetrics("/data/{item_id}", r.Method, http.StatusOK, startTime)
}

// ServeListCharts returns a page of Plotly charts. Only documents whose
// data is a trace array count as charts.
func (h *Handler) ServeListCharts(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.list_charts")
		defer span.End()
		r = r.WithContext(ctx)
	}

	limit, skip, apiErr := parsePagination(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.SetSpanAttributes(span,
		attribute.Int64(instrumentation.AttrPageLimit, limit),
		attribute.Int64(instrumentation.AttrPageSkip, skip))

	charts, total, err := h.server.ListCharts(ctx, limit, skip)
	if err != nil {
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/plotly", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	h.writeJSON(w, http.StatusOK, toChartResponses(charts))
	h.recordHTTPMetrics("/plotly", r.Method, http.StatusOK, startTime)
}

// ServeCreateChart validates and stores a new Plotly chart.
func (h *Handler) ServeCreateChart(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.create_chart")
		defer span.End()
		r = r.WithContext(ctx)
	}

	body, apiErr := h.readBody(w, r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly", r.Method, apiErr.Status, startTime)
		return
	}

	chart, apiErr := h.server.validator.ParseChartCreate(body)
	if apiErr != nil {
		h.recordValidationFailure(r, "plotly", apiErr.Detail)
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly", r.Method, apiErr.Status, startTime)
		return
	}

	itemID, databaseID, err := h.server.CreateChart(ctx, chart)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateItemID) {
			instrumentation.RecordError(span, err)
			h.writeAPIError(w, ErrConflict("Chart with generated ID already exists (race condition)"))
			h.recordHTTPMetrics("/plotly", r.Method, http.StatusBadRequest, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/plotly", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.AddDocumentAttributes(span, "plotly", itemID)
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Plotly chart created successfully",
		ItemID:  &itemID,
		Data:    map[string]any{"database_id": databaseID},
	})
	h.recordHTTPMetrics("/plotly", r.Method, http.StatusOK, startTime)
}

// ServeGetChart returns one chart by item_id.
func (h *Handler) ServeGetChart(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.get_chart")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "plotly", itemID)

	chart, err := h.server.storage.GetChart(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrChartNotFound) {
			instrumentation.SetSpanError(span, "chart not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Chart with ID %d not found", itemID)))
			h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusNotFound, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, toChartResponse(chart))
	h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusOK, startTime)
}

// ServeUpdateChart merges a partial update into an existing chart.
func (h *Handler) ServeUpdateChart(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.update_chart")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "plotly", itemID)

	body, apiErr := h.readBody(w, r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}

	update, apiErr := h.server.validator.ParseChartUpdate(body)
	if apiErr != nil {
		h.recordValidationFailure(r, "plotly", apiErr.Detail)
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}

	if err := h.server.storage.UpdateChart(ctx, itemID, update); err != nil {
		switch {
		case errors.Is(err, storage.ErrChartNotFound):
			instrumentation.SetSpanError(span, "chart not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Chart with ID %d not found", itemID)))
			h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusNotFound, startTime)
		case errors.Is(err, storage.ErrNotModified):
			instrumentation.SetSpanError(span, "no changes were made")
			h.writeAPIError(w, ErrConflict("No changes were made"))
			h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusBadRequest, startTime)
		default:
			h.storageError(w, r, span, err)
			h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		}
		return
	}

	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordDocumentUpdated(ctx, "plotly")
	}
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Plotly chart updated successfully",
		ItemID:  &itemID,
	})
	h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusOK, startTime)
}

// ServeDeleteChart removes a chart.
func (h *Handler) ServeDeleteChart(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var span trace.Span
	ctx := r.Context()
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "chartstore.http.delete_chart")
		defer span.End()
		r = r.WithContext(ctx)
	}

	itemID, apiErr := itemIDFromPath(r)
	if apiErr != nil {
		instrumentation.SetSpanError(span, apiErr.Detail)
		h.writeAPIError(w, apiErr)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, apiErr.Status, startTime)
		return
	}
	instrumentation.AddDocumentAttributes(span, "plotly", itemID)

	if err := h.server.storage.DeleteChart(ctx, itemID); err != nil {
		if errors.Is(err, storage.ErrChartNotFound) {
			instrumentation.SetSpanError(span, "chart not found")
			h.writeAPIError(w, ErrNotFound(fmt.Sprintf("Chart with ID %d not found", itemID)))
			h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusNotFound, startTime)
			return
		}
		h.storageError(w, r, span, err)
		h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusInternalServerError, startTime)
		return
	}

	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordDocumentDeleted(ctx, "plotly")
	}
	instrumentation.SetSpanSuccess(span)
	h.writeJSON(w, http.StatusOK, SuccessResponse{
		Message: "Plotly chart deleted successfully",
		ItemID:  &itemID,
	})
	h.recordHTTPMetrics("/plotly/{item_id}", r.Method, http.StatusOK, startTime)
}

// itemIDFromPath parses the item_id path segment. Non-integer segments read
// as invalid input, the same 422 the model validation produces.
func itemIDFromPath(r *http.Request) (int64, *APIError) {
	itemID, err := strconv.ParseInt(r.PathValue("item_id"), 10, 64)
	if err != nil {
		return 0, ErrValidation("Invalid input data")
	}
	return itemID, nil
}

// parsePagination reads the limit and skip query parameters. Limit defaults
// to 100 and is capped at 1000; skip must be non-negative.
func parsePagination(r *http.Request) (limit, skip int64, apiErr *APIError) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > maxPageLimit {
			return 0, 0, ErrValidation("Invalid pagination parameters")
		}
		limit = parsed
	}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			return 0, 0, ErrValidation("Invalid pagination parameters")
		}
		skip = parsed
	}
	return limit, skip, nil
}

// readBody drains the request body under the transport size cap.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, *APIError) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, NewAPIError(ErrorTypeValidation, "Request body too large", http.StatusRequestEntityTooLarge)
		}
		return nil, ErrValidation("Invalid input data")
	}
	return body, nil
}

// recordValidationFailure emits the audit event and metric for a rejected
// payload.
func (h *Handler) recordValidationFailure(r *http.Request, model, reason string) {
	h.server.auditor.LogValidationFailure(h.clientIP(r), security.GetRequestID(r.Context()), model, reason)
	if h.server.instrumentation != nil {
		h.server.instrumentation.Metrics().RecordValidationFailure(r.Context(), model)
	}
}

// storageError logs a backend failure with full detail and answers with an
// opaque 500 so internals never leak to clients.
func (h *Handler) storageError(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	h.logger.Error("Database error", "error", err, "request_id", security.GetRequestID(r.Context()))
	instrumentation.RecordError(span, err)
	h.writeAPIError(w, ErrStorage("Database error occurred"))
}

// writeJSON writes a JSON response with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeAPIError writes the standard error body with security headers.
func (h *Handler) writeAPIError(w http.ResponseWriter, apiErr *APIError) {
	security.SetSecurityHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Detail:    apiErr.Detail,
		ErrorType: apiErr.Type,
		Timestamp: time.Now().UTC(),
	})
}

// recordHTTPMetrics records HTTP request metrics (total count and duration)
func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	if h.server.instrumentation == nil {
		return
	}

	metrics := h.server.instrumentation.Metrics()
	ctx := context.Background()

	// Record total requests with duration
	duration := time.Since(startTime).Seconds() * 1000 // convert to milliseconds
	metrics.RecordHTTPRequest(ctx, method, endpoint, status, duration)
}
