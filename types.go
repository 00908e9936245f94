package chartstore

import (
	"encoding/json"
	"time"
)

// Version is the API version reported by the banner endpoint.
const Version = "1.0.0"

// SuccessResponse is returned by create, update and delete operations.
type SuccessResponse struct {
	// Message describes the outcome, e.g. "Data created successfully".
	Message string `json:"message"`

	// ItemID is the sequential identifier of the affected document.
	ItemID *int64 `json:"item_id,omitempty"`

	// Data carries extra fields such as the backend database ID.
	Data map[string]any `json:"data,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	// Detail is the human-readable error message.
	Detail string `json:"detail"`

	// ErrorType classifies the failure, one of the ErrorType* constants.
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp records when the error response was produced.
	Timestamp time.Time `json:"timestamp"`
}

// BannerResponse is returned by the root endpoint.
type BannerResponse struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	HealthCheck string `json:"health_check"`
}

// HealthResponse reports service and storage health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}

// CSRFTokenResponse acknowledges that a CSRF token cookie was set.
type CSRFTokenResponse struct {
	Success bool `json:"success"`
}

// RecordResponse is the wire representation of a generic data record.
// Title and description serialize as null when unset so clients see a
// stable shape.
type RecordResponse struct {
	ID          string         `json:"id"`
	ItemID      int64          `json:"item_id"`
	Data        map[string]any `json:"data"`
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ChartResponse is the wire representation of a Plotly chart document.
// Extra holds fields outside the declared schema; they are merged into
// the top-level JSON object on marshal so round-tripped documents keep
// their original shape.
type ChartResponse struct {
	ID          string           `json:"id"`
	ItemID      int64            `json:"item_id"`
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	ChartType   *string          `json:"chart_type"`
	Data        []map[string]any `json:"data"`
	Layout      map[string]any   `json:"layout"`
	Extra       map[string]any   `json:"-"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// MarshalJSON merges Extra fields into the top-level object. Declared
// fields always win over extras with the same key.
func (c ChartResponse) MarshalJSON() ([]byte, error) {
	type plain ChartResponse
	declared, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return declared, nil
	}

	merged := make(map[string]json.RawMessage, len(c.Extra)+8)
	for k, v := range c.Extra {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(declared, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}
