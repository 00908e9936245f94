package chartstore

import (
	"encoding/json"
	"testing"
	"time"
)

func TestChartResponse_MarshalJSON_MergesExtras(t *testing.T) {
	title := "Revenue"
	chartType := "line"
	resp := ChartResponse{
		ID:        "abc123",
		ItemID:    1,
		Title:     &title,
		ChartType: &chartType,
		Data:      []map[string]any{{"x": []any{1.0, 2.0}}},
		Layout:    map[string]any{"width": 800.0},
		Extra: map[string]any{
			"frames": []any{map[string]any{"name": "f1"}},
			"config": map[string]any{"responsive": true},
		},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded["item_id"] != 1.0 {
		t.Errorf("item_id = %v, want 1", decoded["item_id"])
	}
	if decoded["title"] != "Revenue" {
		t.Errorf("title = %v, want %q", decoded["title"], "Revenue")
	}
	if _, ok := decoded["frames"]; !ok {
		t.Error("extra field frames missing from top-level JSON")
	}
	if _, ok := decoded["config"]; !ok {
		t.Error("extra field config missing from top-level JSON")
	}
	if _, ok := decoded["Extra"]; ok {
		t.Error("Extra field leaked into JSON output")
	}
}

func TestChartResponse_MarshalJSON_DeclaredFieldsWin(t *testing.T) {
	resp := ChartResponse{
		ID:     "abc123",
		ItemID: 5,
		Data:   []map[string]any{},
		Extra: map[string]any{
			// A hostile or confused client could round-trip a document
			// carrying declared keys in its extras; they must not
			// shadow the real values.
			"item_id": 999.0,
			"id":      "spoofed",
		},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded["item_id"] != 5.0 {
		t.Errorf("item_id = %v, want declared value 5", decoded["item_id"])
	}
	if decoded["id"] != "abc123" {
		t.Errorf("id = %v, want declared value %q", decoded["id"], "abc123")
	}
}

func TestRecordResponse_NullableFields(t *testing.T) {
	resp := RecordResponse{
		ID:     "xyz",
		ItemID: 2,
		Data:   map[string]any{"k": "v"},
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	// Unset title and description serialize as explicit nulls so clients
	// always see the same shape.
	if v, ok := decoded["title"]; !ok || v != nil {
		t.Errorf("title = %v (present %t), want explicit null", v, ok)
	}
	if v, ok := decoded["description"]; !ok || v != nil {
		t.Errorf("description = %v (present %t), want explicit null", v, ok)
	}
}

func TestSuccessResponse_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(SuccessResponse{Message: "Data deleted successfully"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if _, ok := decoded["item_id"]; ok {
		t.Error("item_id should be omitted when unset")
	}
	if _, ok := decoded["data"]; ok {
		t.Error("data should be omitted when unset")
	}
	if decoded["message"] != "Data deleted successfully" {
		t.Errorf("message = %v, want %q", decoded["message"], "Data deleted successfully")
	}
}

func TestErrorResponse_Shape(t *testing.T) {
	now := time.Now().UTC()
	raw, err := json.Marshal(ErrorResponse{
		Detail:    "Rate limit exceeded",
		ErrorType: ErrorTypeRateLimit,
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded["detail"] != "Rate limit exceeded" {
		t.Errorf("detail = %v, want %q", decoded["detail"], "Rate limit exceeded")
	}
	if decoded["error_type"] != "rate_limit_exceeded" {
		t.Errorf("error_type = %v, want %q", decoded["error_type"], "rate_limit_exceeded")
	}
	if _, ok := decoded["timestamp"]; !ok {
		t.Error("timestamp missing from error response")
	}
}
