package storage

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRecord_DocumentRoundTrip(t *testing.T) {
	title := "Sensor readings"
	description := "hourly samples"
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	record := &Record{
		ItemID:      42,
		Data:        map[string]any{"sensor": "temp-1", "value": 21.5},
		Title:       &title,
		Description: &description,
	}

	doc := record.Document(now)

	got, err := RecordFromDocument(doc)
	if err != nil {
		t.Fatalf("RecordFromDocument() error = %v", err)
	}

	if got.ItemID != 42 {
		t.Errorf("ItemID = %d, want 42", got.ItemID)
	}
	if !reflect.DeepEqual(got.Data, record.Data) {
		t.Errorf("Data = %v, want %v", got.Data, record.Data)
	}
	if got.Title == nil || *got.Title != title {
		t.Errorf("Title = %v, want %q", got.Title, title)
	}
	if got.Description == nil || *got.Description != description {
		t.Errorf("Description = %v, want %q", got.Description, description)
	}
	if !got.CreatedAt.Equal(now) || !got.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v/%v, want %v", got.CreatedAt, got.UpdatedAt, now)
	}
}

func TestRecord_Document_StampsZeroTimestamps(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	doc := (&Record{ItemID: 1, Data: map[string]any{}}).Document(now)

	if !doc[FieldCreatedAt].(time.Time).Equal(now) {
		t.Errorf("created_at = %v, want %v", doc[FieldCreatedAt], now)
	}
	if !doc[FieldUpdatedAt].(time.Time).Equal(now) {
		t.Errorf("updated_at = %v, want %v", doc[FieldUpdatedAt], now)
	}
}

func TestRecord_Document_PreservesExistingTimestamps(t *testing.T) {
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	record := &Record{ItemID: 1, Data: map[string]any{}, CreatedAt: created, UpdatedAt: created}
	doc := record.Document(now)

	if !doc[FieldCreatedAt].(time.Time).Equal(created) {
		t.Errorf("created_at = %v, want %v", doc[FieldCreatedAt], created)
	}
}

func TestRecord_Document_OptionalFieldsNil(t *testing.T) {
	doc := (&Record{ItemID: 1, Data: map[string]any{}}).Document(time.Now())

	if doc[FieldTitle] != nil {
		t.Errorf("title = %v, want nil", doc[FieldTitle])
	}
	if doc[FieldDescription] != nil {
		t.Errorf("description = %v, want nil", doc[FieldDescription])
	}
}

func TestRecordFromDocument_Errors(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name    string
		doc     map[string]any
		wantErr string
	}{
		{
			name:    "missing item_id",
			doc:     map[string]any{FieldData: map[string]any{}, FieldCreatedAt: now, FieldUpdatedAt: now},
			wantErr: "item_id",
		},
		{
			name:    "data is not an object",
			doc:     map[string]any{FieldItemID: int64(1), FieldData: "text", FieldCreatedAt: now, FieldUpdatedAt: now},
			wantErr: "not an object",
		},
		{
			name:    "chart shaped data",
			doc:     map[string]any{FieldItemID: int64(1), FieldData: []any{map[string]any{}}, FieldCreatedAt: now, FieldUpdatedAt: now},
			wantErr: "not an object",
		},
		{
			name:    "missing created_at",
			doc:     map[string]any{FieldItemID: int64(1), FieldData: map[string]any{}, FieldUpdatedAt: now},
			wantErr: "created_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RecordFromDocument(tt.doc)
			if err == nil {
				t.Fatal("RecordFromDocument() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestRecordFromDocument_NumericItemIDCoercion(t *testing.T) {
	now := time.Now().UTC()

	// item_id arrives as int64 from the memory backend, int32 or int64 from
	// BSON and float64 from JSON decoding.
	for _, itemID := range []any{int64(7), int32(7), int(7), float64(7)} {
		doc := map[string]any{
			FieldItemID:    itemID,
			FieldData:      map[string]any{},
			FieldCreatedAt: now,
			FieldUpdatedAt: now,
		}
		record, err := RecordFromDocument(doc)
		if err != nil {
			t.Fatalf("RecordFromDocument(item_id %T) error = %v", itemID, err)
		}
		if record.ItemID != 7 {
			t.Errorf("ItemID = %d (from %T), want 7", record.ItemID, itemID)
		}
	}
}

func TestChart_DocumentRoundTrip(t *testing.T) {
	title := "Revenue"
	chartType := "line"
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	chart := &Chart{
		ItemID:    9,
		Title:     &title,
		ChartType: &chartType,
		Data: []map[string]any{
			{"x": []any{1.0, 2.0}, "y": []any{3.0, 4.0}, "type": "scatter"},
		},
		Layout: map[string]any{"title": "Revenue"},
		Extra:  map[string]any{"source": "import"},
	}

	got, err := ChartFromDocument(chart.Document(now))
	if err != nil {
		t.Fatalf("ChartFromDocument() error = %v", err)
	}

	if got.ItemID != 9 {
		t.Errorf("ItemID = %d, want 9", got.ItemID)
	}
	if got.ChartType == nil || *got.ChartType != chartType {
		t.Errorf("ChartType = %v, want %q", got.ChartType, chartType)
	}
	if !reflect.DeepEqual(got.Data, chart.Data) {
		t.Errorf("Data = %v, want %v", got.Data, chart.Data)
	}
	if !reflect.DeepEqual(got.Layout, chart.Layout) {
		t.Errorf("Layout = %v, want %v", got.Layout, chart.Layout)
	}
	if !reflect.DeepEqual(got.Extra, chart.Extra) {
		t.Errorf("Extra = %v, want %v", got.Extra, chart.Extra)
	}
}

func TestChart_Document_DeclaredFieldsWinOverExtras(t *testing.T) {
	title := "Declared"
	chart := &Chart{
		ItemID: 1,
		Title:  &title,
		Data:   []map[string]any{},
		Extra:  map[string]any{"title": "Smuggled", "note": "kept"},
	}

	doc := chart.Document(time.Now())

	if doc[FieldTitle] != "Declared" {
		t.Errorf("title = %v, want %q", doc[FieldTitle], "Declared")
	}
	if doc["note"] != "kept" {
		t.Errorf("note = %v, want %q", doc["note"], "kept")
	}
}

func TestChartFromDocument_TraceArrayShapes(t *testing.T) {
	now := time.Now().UTC()
	trace := map[string]any{"type": "bar"}

	// Trace arrays arrive as []map[string]any from callers and []any from
	// normalized storage documents.
	for _, data := range []any{
		[]map[string]any{trace},
		[]any{trace},
	} {
		doc := map[string]any{
			FieldItemID:    int64(1),
			FieldData:      data,
			FieldCreatedAt: now,
			FieldUpdatedAt: now,
		}
		chart, err := ChartFromDocument(doc)
		if err != nil {
			t.Fatalf("ChartFromDocument(data %T) error = %v", data, err)
		}
		if len(chart.Data) != 1 || chart.Data[0]["type"] != "bar" {
			t.Errorf("Data = %v, want single bar trace", chart.Data)
		}
	}
}

func TestChartFromDocument_Errors(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		data any
	}{
		{"data is an object", map[string]any{}},
		{"data is a string", "oops"},
		{"trace element is not an object", []any{"oops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := map[string]any{
				FieldItemID:    int64(1),
				FieldData:      tt.data,
				FieldCreatedAt: now,
				FieldUpdatedAt: now,
			}
			if _, err := ChartFromDocument(doc); err == nil {
				t.Error("ChartFromDocument() expected error")
			}
		})
	}
}

func TestIsChartDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  map[string]any
		want bool
	}{
		{"trace array", map[string]any{FieldData: []any{}}, true},
		{"typed trace array", map[string]any{FieldData: []map[string]any{}}, true},
		{"object data", map[string]any{FieldData: map[string]any{}}, false},
		{"missing data", map[string]any{}, false},
		{"string data", map[string]any{FieldData: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsChartDocument(tt.doc); got != tt.want {
				t.Errorf("IsChartDocument() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordUpdate_SetFields(t *testing.T) {
	title := "new title"
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	update := &RecordUpdate{Title: &title}
	fields := update.SetFields(now)

	if fields[FieldTitle] != title {
		t.Errorf("title = %v, want %q", fields[FieldTitle], title)
	}
	if _, ok := fields[FieldData]; ok {
		t.Error("data should be absent when not set")
	}
	if _, ok := fields[FieldDescription]; ok {
		t.Error("description should be absent when not set")
	}
	if !fields[FieldUpdatedAt].(time.Time).Equal(now) {
		t.Errorf("updated_at = %v, want %v", fields[FieldUpdatedAt], now)
	}
}

func TestRecordUpdate_HasFields(t *testing.T) {
	title := "t"

	if (&RecordUpdate{}).HasFields() {
		t.Error("empty update should report no fields")
	}
	if !(&RecordUpdate{Title: &title}).HasFields() {
		t.Error("update with title should report fields")
	}
	if !(&RecordUpdate{Data: map[string]any{}}).HasFields() {
		t.Error("update with data should report fields")
	}
}

func TestChartUpdate_SetFields_FiltersDeclaredExtras(t *testing.T) {
	now := time.Now().UTC()

	update := &ChartUpdate{
		Extra: map[string]any{
			"note":      "kept",
			FieldItemID: int64(999),
			FieldData:   "smuggled",
		},
	}
	fields := update.SetFields(now)

	if fields["note"] != "kept" {
		t.Errorf("note = %v, want kept", fields["note"])
	}
	if _, ok := fields[FieldItemID]; ok {
		t.Error("item_id must never be settable through extras")
	}
	if _, ok := fields[FieldData]; ok {
		t.Error("data must never be settable through extras")
	}
}

func TestChartUpdate_HasFields(t *testing.T) {
	chartType := "bar"

	if (&ChartUpdate{}).HasFields() {
		t.Error("empty update should report no fields")
	}
	if !(&ChartUpdate{ChartType: &chartType}).HasFields() {
		t.Error("update with chart_type should report fields")
	}
	if !(&ChartUpdate{Extra: map[string]any{"k": "v"}}).HasFields() {
		t.Error("update with extras should report fields")
	}
}
