package memory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/joelmoran101/chartstore/instrumentation"
	"github.com/joelmoran101/chartstore/internal/testutil"
	"github.com/joelmoran101/chartstore/storage"
)

// ============================================================
// RecordStore Tests
// ============================================================

func TestStore_InsertRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := testutil.GenerateTestRecord(1)

	id, err := store.InsertRecord(ctx, record)
	if err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if id == "" {
		t.Error("InsertRecord() returned empty internal id")
	}

	// Verify record was saved
	got, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.ItemID != 1 {
		t.Errorf("ItemID = %d, want 1", got.ItemID)
	}
	if !reflect.DeepEqual(got.Data, record.Data) {
		t.Errorf("Data = %v, want %v", got.Data, record.Data)
	}
	if got.Title == nil || *got.Title != *record.Title {
		t.Errorf("Title = %v, want %v", got.Title, *record.Title)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("timestamps should be stamped on insert")
	}
}

func TestStore_InsertRecord_Duplicate(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	_, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1))
	if !errors.Is(err, storage.ErrDuplicateItemID) {
		t.Errorf("InsertRecord() error = %v, want ErrDuplicateItemID", err)
	}
}

func TestStore_InsertRecord_Nil(t *testing.T) {
	store := New()

	_, err := store.InsertRecord(context.Background(), nil)
	if err == nil {
		t.Error("InsertRecord() with nil record should return error")
	}
}

func TestStore_GetRecord_NotFound(t *testing.T) {
	store := New()

	_, err := store.GetRecord(context.Background(), 99)
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("GetRecord() error = %v, want ErrRecordNotFound", err)
	}
}

func TestStore_GetRecord_ChartShapedDocument(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(1)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	// Charts are invisible through record operations even though both
	// models share the collection and the id space.
	if _, err := store.GetRecord(ctx, 1); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("GetRecord() error = %v, want ErrRecordNotFound", err)
	}
	if err := store.UpdateRecord(ctx, 1, &storage.RecordUpdate{}); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("UpdateRecord() error = %v, want ErrRecordNotFound", err)
	}
	if err := store.DeleteRecord(ctx, 1); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("DeleteRecord() error = %v, want ErrRecordNotFound", err)
	}

	// The chart itself is untouched by the failed record operations.
	if _, err := store.GetChart(ctx, 1); err != nil {
		t.Errorf("GetChart() error = %v, want nil", err)
	}
}

func TestStore_GetChart_RecordShapedDocument(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if _, err := store.GetChart(ctx, 1); !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("GetChart() error = %v, want ErrChartNotFound", err)
	}
	if err := store.UpdateChart(ctx, 1, &storage.ChartUpdate{}); !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("UpdateChart() error = %v, want ErrChartNotFound", err)
	}
	if err := store.DeleteChart(ctx, 1); !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("DeleteChart() error = %v, want ErrChartNotFound", err)
	}

	if _, err := store.GetRecord(ctx, 1); err != nil {
		t.Errorf("GetRecord() error = %v, want nil", err)
	}
}

func TestStore_ListRecords(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Insert out of order; listing must come back sorted by item_id.
	for _, itemID := range []int64{3, 1, 2} {
		if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(itemID)); err != nil {
			t.Fatalf("InsertRecord(%d) error = %v", itemID, err)
		}
	}

	records, err := store.ListRecords(ctx, 100, 0)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("ListRecords() returned %d records, want 3", len(records))
	}
	for i, want := range []int64{1, 2, 3} {
		if records[i].ItemID != want {
			t.Errorf("records[%d].ItemID = %d, want %d", i, records[i].ItemID, want)
		}
	}
}

func TestStore_ListRecords_Pagination(t *testing.T) {
	store := New()
	ctx := context.Background()

	for itemID := int64(1); itemID <= 5; itemID++ {
		if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(itemID)); err != nil {
			t.Fatalf("InsertRecord(%d) error = %v", itemID, err)
		}
	}

	tests := []struct {
		name    string
		limit   int64
		skip    int64
		wantIDs []int64
	}{
		{"first page", 2, 0, []int64{1, 2}},
		{"second page", 2, 2, []int64{3, 4}},
		{"partial last page", 2, 4, []int64{5}},
		{"skip past end", 2, 10, []int64{}},
		{"limit larger than collection", 100, 0, []int64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := store.ListRecords(ctx, tt.limit, tt.skip)
			if err != nil {
				t.Fatalf("ListRecords() error = %v", err)
			}
			if len(records) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(records), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if records[i].ItemID != want {
					t.Errorf("records[%d].ItemID = %d, want %d", i, records[i].ItemID, want)
				}
			}
		})
	}
}

func TestStore_ListRecords_SkipsChartDocuments(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(2)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}
	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(3)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	records, err := store.ListRecords(ctx, 100, 0)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("ListRecords() returned %d records, want 2", len(records))
	}
	if records[0].ItemID != 1 || records[1].ItemID != 3 {
		t.Errorf("record item_ids = %d, %d, want 1, 3", records[0].ItemID, records[1].ItemID)
	}
}

func TestStore_UpdateRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	before, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	newTitle := "Updated title"
	err = store.UpdateRecord(ctx, 1, &storage.RecordUpdate{Title: &newTitle})
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}

	after, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	if after.Title == nil || *after.Title != newTitle {
		t.Errorf("Title = %v, want %q", after.Title, newTitle)
	}
	// Absent fields stay untouched
	if !reflect.DeepEqual(after.Data, before.Data) {
		t.Errorf("Data changed on title-only update: %v != %v", after.Data, before.Data)
	}
	if after.Description == nil || *after.Description != *before.Description {
		t.Error("Description changed on title-only update")
	}
	// updated_at always refreshes
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want later than %v", after.UpdatedAt, before.UpdatedAt)
	}
	if !after.CreatedAt.Equal(before.CreatedAt) {
		t.Error("CreatedAt changed on update")
	}
}

func TestStore_UpdateRecord_IdenticalValues(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := testutil.GenerateTestRecord(1)
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	before, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}

	// Same title as stored: the write still succeeds because updated_at
	// is refreshed on every update.
	err = store.UpdateRecord(ctx, 1, &storage.RecordUpdate{Title: record.Title})
	if err != nil {
		t.Fatalf("UpdateRecord() with identical values error = %v", err)
	}

	after, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if !after.UpdatedAt.After(before.UpdatedAt) {
		t.Error("UpdatedAt should advance on identical-value update")
	}
}

func TestStore_UpdateRecord_NotFound(t *testing.T) {
	store := New()

	title := "x"
	err := store.UpdateRecord(context.Background(), 99, &storage.RecordUpdate{Title: &title})
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("UpdateRecord() error = %v, want ErrRecordNotFound", err)
	}
}

func TestStore_DeleteRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := store.DeleteRecord(ctx, 1); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}

	_, err := store.GetRecord(ctx, 1)
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("GetRecord() after delete error = %v, want ErrRecordNotFound", err)
	}

	// Deleting again reports not found
	err = store.DeleteRecord(ctx, 1)
	if !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("second DeleteRecord() error = %v, want ErrRecordNotFound", err)
	}
}

func TestStore_CountRecords_CountsAllDocuments(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(2)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	// The record count mirrors count over the whole collection, so charts
	// are included.
	count, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountRecords() = %d, want 2", count)
	}
}

// ============================================================
// ChartStore Tests
// ============================================================

func TestStore_InsertChart(t *testing.T) {
	store := New()
	ctx := context.Background()

	chart := testutil.GenerateTestChart(1)

	id, err := store.InsertChart(ctx, chart)
	if err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}
	if id == "" {
		t.Error("InsertChart() returned empty internal id")
	}

	got, err := store.GetChart(ctx, 1)
	if err != nil {
		t.Fatalf("GetChart() error = %v", err)
	}

	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if len(got.Data) != 1 {
		t.Fatalf("Data has %d traces, want 1", len(got.Data))
	}
	if got.ChartType == nil || *got.ChartType != "line" {
		t.Errorf("ChartType = %v, want line", got.ChartType)
	}
	if !reflect.DeepEqual(got.Layout, chart.Layout) {
		t.Errorf("Layout = %v, want %v", got.Layout, chart.Layout)
	}
}

func TestStore_InsertChart_DuplicateAcrossModels(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Records and charts share one item_id space.
	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	_, err := store.InsertChart(ctx, testutil.GenerateTestChart(1))
	if !errors.Is(err, storage.ErrDuplicateItemID) {
		t.Errorf("InsertChart() error = %v, want ErrDuplicateItemID", err)
	}
}

func TestStore_GetChart_NotFound(t *testing.T) {
	store := New()

	_, err := store.GetChart(context.Background(), 99)
	if !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("GetChart() error = %v, want ErrChartNotFound", err)
	}
}

func TestStore_ListCharts_FiltersToChartDocuments(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(2)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(3)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	// The window applies after filtering: skip 1 lands on the second chart,
	// not on a generic record.
	charts, err := store.ListCharts(ctx, 100, 1)
	if err != nil {
		t.Fatalf("ListCharts() error = %v", err)
	}
	if len(charts) != 1 {
		t.Fatalf("ListCharts() returned %d charts, want 1", len(charts))
	}
	if charts[0].ItemID != 3 {
		t.Errorf("charts[0].ItemID = %d, want 3", charts[0].ItemID)
	}
}

func TestStore_UpdateChart_PreservesExtras(t *testing.T) {
	store := New()
	ctx := context.Background()

	chart := testutil.GenerateTestChart(1)
	chart.Extra = map[string]any{"annotations": []any{"note"}}
	if _, err := store.InsertChart(ctx, chart); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	newType := "bar"
	err := store.UpdateChart(ctx, 1, &storage.ChartUpdate{ChartType: &newType})
	if err != nil {
		t.Fatalf("UpdateChart() error = %v", err)
	}

	got, err := store.GetChart(ctx, 1)
	if err != nil {
		t.Fatalf("GetChart() error = %v", err)
	}
	if got.ChartType == nil || *got.ChartType != "bar" {
		t.Errorf("ChartType = %v, want bar", got.ChartType)
	}
	if !reflect.DeepEqual(got.Extra, chart.Extra) {
		t.Errorf("Extra = %v, want %v", got.Extra, chart.Extra)
	}
}

func TestStore_UpdateChart_MergesNewExtras(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(1)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	err := store.UpdateChart(ctx, 1, &storage.ChartUpdate{
		Extra: map[string]any{"frame_count": 12.0},
	})
	if err != nil {
		t.Fatalf("UpdateChart() error = %v", err)
	}

	got, err := store.GetChart(ctx, 1)
	if err != nil {
		t.Fatalf("GetChart() error = %v", err)
	}
	if got.Extra["frame_count"] != 12.0 {
		t.Errorf("Extra[frame_count] = %v, want 12", got.Extra["frame_count"])
	}
}

func TestStore_UpdateChart_NotFound(t *testing.T) {
	store := New()

	title := "x"
	err := store.UpdateChart(context.Background(), 99, &storage.ChartUpdate{Title: &title})
	if !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("UpdateChart() error = %v, want ErrChartNotFound", err)
	}
}

func TestStore_DeleteChart(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(1)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	if err := store.DeleteChart(ctx, 1); err != nil {
		t.Fatalf("DeleteChart() error = %v", err)
	}

	err := store.DeleteChart(ctx, 1)
	if !errors.Is(err, storage.ErrChartNotFound) {
		t.Errorf("second DeleteChart() error = %v, want ErrChartNotFound", err)
	}
}

func TestStore_CountCharts(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(2)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	count, err := store.CountCharts(ctx)
	if err != nil {
		t.Fatalf("CountCharts() error = %v", err)
	}
	if count != 1 {
		t.Errorf("CountCharts() = %d, want 1", count)
	}
}

// ============================================================
// Sequencer / HealthChecker Tests
// ============================================================

func TestStore_MaxItemID(t *testing.T) {
	store := New()
	ctx := context.Background()

	maxID, err := store.MaxItemID(ctx)
	if err != nil {
		t.Fatalf("MaxItemID() error = %v", err)
	}
	if maxID != 0 {
		t.Errorf("MaxItemID() on empty store = %d, want 0", maxID)
	}

	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(2)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.InsertChart(ctx, testutil.GenerateTestChart(7)); err != nil {
		t.Fatalf("InsertChart() error = %v", err)
	}

	maxID, err = store.MaxItemID(ctx)
	if err != nil {
		t.Fatalf("MaxItemID() error = %v", err)
	}
	if maxID != 7 {
		t.Errorf("MaxItemID() = %d, want 7", maxID)
	}
}

func TestStore_Ping(t *testing.T) {
	store := New()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

// ============================================================
// Isolation and concurrency
// ============================================================

func TestStore_CallerCannotMutateStoredData(t *testing.T) {
	store := New()
	ctx := context.Background()

	record := testutil.GenerateTestRecord(1)
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	// Mutating the caller's map after insert must not leak into the store.
	record.Data["sensor"] = "tampered"

	got, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if got.Data["sensor"] != "temp-1" {
		t.Errorf("stored sensor = %v, want temp-1", got.Data["sensor"])
	}

	// Mutating a returned map must not leak either.
	got.Data["sensor"] = "tampered-again"

	again, err := store.GetRecord(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if again.Data["sensor"] != "temp-1" {
		t.Errorf("stored sensor after read mutation = %v, want temp-1", again.Data["sensor"])
	}
}

func TestStore_ConcurrentInserts(t *testing.T) {
	store := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(itemID int64) {
			defer wg.Done()
			_, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(itemID))
			if err != nil {
				t.Errorf("InsertRecord(%d) error = %v", itemID, err)
			}
		}(int64(i))
	}
	wg.Wait()

	count, err := store.CountRecords(ctx)
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if count != 50 {
		t.Errorf("CountRecords() = %d, want 50", count)
	}
}

func TestStore_WithInstrumentation(t *testing.T) {
	store := New()
	ctx := context.Background()

	inst, err := instrumentation.New(instrumentation.Config{
		ServiceName: "memory-test",
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("instrumentation.New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(ctx) }()

	store.SetInstrumentation(inst)

	// Operations record spans and metrics without affecting results.
	if _, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(1)); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}
	if _, err := store.GetRecord(ctx, 1); err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if _, err := store.GetRecord(ctx, 42); !errors.Is(err, storage.ErrRecordNotFound) {
		t.Errorf("GetRecord(42) error = %v, want ErrRecordNotFound", err)
	}
}

func TestStore_InternalIDsAreUnique(t *testing.T) {
	store := New()
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 1; i <= 20; i++ {
		id, err := store.InsertRecord(ctx, testutil.GenerateTestRecord(int64(i)))
		if err != nil {
			t.Fatalf("InsertRecord(%d) error = %v", i, err)
		}
		if seen[id] {
			t.Fatalf("duplicate internal id %q", id)
		}
		seen[id] = true
	}
}
