package memory

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joelmoran101/chartstore/instrumentation"
	"github.com/joelmoran101/chartstore/storage"
)

// Store is an in-memory implementation of all storage interfaces. Records and
// charts share one document map keyed by item_id, the same way they share one
// collection on a database backend.
type Store struct {
	mu sync.RWMutex

	// Documents keyed by item_id. Values are the stored field maps produced
	// by the mapper; the shape of the data field decides record vs chart.
	documents map[int64]map[string]any

	// Backend-generated internal identifiers, item_id -> opaque string.
	internalIDs map[int64]string

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for metrics (lock-free access during metric collection)
	recordsCountAtomic atomic.Int64
	chartsCountAtomic  atomic.Int64

	logger *slog.Logger
}

// Compile-time interface check to ensure Store implements all storage interfaces
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		documents:   make(map[int64]map[string]any),
		internalIDs: make(map[int64]string),
		logger:      slog.Default(),
	}
}

// SetLogger sets a custom logger
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetInstrumentation sets OpenTelemetry instrumentation for the store
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}

	// Initialize atomic counters with current counts
	var records, charts int64
	for _, doc := range s.documents {
		if storage.IsChartDocument(doc) {
			charts++
		} else {
			records++
		}
	}
	s.recordsCountAtomic.Store(records)
	s.chartsCountAtomic.Store(charts)
	s.mu.Unlock()

	if inst != nil {
		// Register storage size callbacks using atomic counters (lock-free)
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.recordsCountAtomic.Load() },
			func() int64 { return s.chartsCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// ============================================================
// RecordStore Implementation
// ============================================================

// ListRecords returns stored documents mapped as generic records, in item_id
// order. The pagination window applies to raw documents; documents inside the
// window that do not map to a record (chart-shaped data) are skipped with a
// warning, matching how a database cursor pages before decoding.
func (s *Store) ListRecords(ctx context.Context, limit, skip int64) ([]*storage.Record, error) {
	ctx, span := s.startStorageSpan(ctx, "list_records")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "list_records", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*storage.Record, 0)
	for _, itemID := range s.window(s.sortedItemIDs(), limit, skip) {
		record, mapErr := storage.RecordFromDocument(deepCopyDocument(s.documents[itemID]))
		if mapErr != nil {
			s.logger.Warn("Skipping document that does not map to a record",
				"item_id", itemID,
				"error", mapErr)
			continue
		}
		record.ID = s.internalIDs[itemID]
		records = append(records, record)
	}

	return records, nil
}

// GetRecord retrieves a record by item_id. Chart-shaped documents are not
// visible through record operations even though both models share the
// collection and the id space.
func (s *Store) GetRecord(ctx context.Context, itemID int64) (*storage.Record, error) {
	ctx, span := s.startStorageSpan(ctx, "get_record")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_record", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[itemID]
	if !ok || storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		return nil, err
	}

	record, mapErr := storage.RecordFromDocument(deepCopyDocument(doc))
	if mapErr != nil {
		err = mapErr
		return nil, err
	}
	record.ID = s.internalIDs[itemID]

	return record, nil
}

// InsertRecord stores a new record and returns a generated internal identifier.
// Returns ErrDuplicateItemID when the item_id is already taken, standing in
// for the unique index a database backend enforces.
func (s *Store) InsertRecord(ctx context.Context, record *storage.Record) (string, error) {
	ctx, span := s.startStorageSpan(ctx, "insert_record")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "insert_record", err, startTime)
	}()

	if record == nil {
		err = fmt.Errorf("record cannot be nil")
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[record.ItemID]; exists {
		err = fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, record.ItemID)
		return "", err
	}

	id := uuid.NewString()
	s.documents[record.ItemID] = deepCopyDocument(record.Document(time.Now()))
	s.internalIDs[record.ItemID] = id
	s.recordsCountAtomic.Add(1)

	s.logger.Debug("Inserted record", "item_id", record.ItemID)

	return id, nil
}

// UpdateRecord merges the present fields of update into the stored document
// and refreshes updated_at
func (s *Store) UpdateRecord(ctx context.Context, itemID int64, update *storage.RecordUpdate) error {
	ctx, span := s.startStorageSpan(ctx, "update_record")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "update_record", err, startTime)
	}()

	if update == nil {
		err = fmt.Errorf("update cannot be nil")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[itemID]
	if !ok || storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		return err
	}

	if applyFields(doc, update.SetFields(time.Now())) == 0 {
		err = fmt.Errorf("%w: item %d", storage.ErrNotModified, itemID)
		return err
	}

	return nil
}

// DeleteRecord removes the document with the given item_id
func (s *Store) DeleteRecord(ctx context.Context, itemID int64) error {
	ctx, span := s.startStorageSpan(ctx, "delete_record")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "delete_record", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[itemID]
	if !ok || storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		return err
	}

	s.removeLocked(itemID, doc)
	s.logger.Debug("Deleted record", "item_id", itemID)

	return nil
}

// CountRecords returns the total number of stored documents
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	ctx, span := s.startStorageSpan(ctx, "count_records")
	defer span.End()

	startTime := time.Now()

	defer func() {
		s.recordStorageOperation(ctx, span, "count_records", nil, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.documents)), nil
}

// ============================================================
// ChartStore Implementation
// ============================================================

// ListCharts returns chart-shaped documents in item_id order. Unlike record
// listing, the pagination window applies after filtering to documents whose
// data field is a trace array.
func (s *Store) ListCharts(ctx context.Context, limit, skip int64) ([]*storage.Chart, error) {
	ctx, span := s.startStorageSpan(ctx, "list_charts")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "list_charts", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	chartIDs := make([]int64, 0)
	for _, itemID := range s.sortedItemIDs() {
		if storage.IsChartDocument(s.documents[itemID]) {
			chartIDs = append(chartIDs, itemID)
		}
	}

	charts := make([]*storage.Chart, 0)
	for _, itemID := range s.window(chartIDs, limit, skip) {
		chart, mapErr := storage.ChartFromDocument(deepCopyDocument(s.documents[itemID]))
		if mapErr != nil {
			s.logger.Warn("Skipping document that does not map to a chart",
				"item_id", itemID,
				"error", mapErr)
			continue
		}
		chart.ID = s.internalIDs[itemID]
		charts = append(charts, chart)
	}

	return charts, nil
}

// GetChart retrieves a chart by item_id. Generic records are not visible
// through chart operations.
func (s *Store) GetChart(ctx context.Context, itemID int64) (*storage.Chart, error) {
	ctx, span := s.startStorageSpan(ctx, "get_chart")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "get_chart", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[itemID]
	if !ok || !storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		return nil, err
	}

	chart, mapErr := storage.ChartFromDocument(deepCopyDocument(doc))
	if mapErr != nil {
		err = mapErr
		return nil, err
	}
	chart.ID = s.internalIDs[itemID]

	return chart, nil
}

// InsertChart stores a new chart and returns a generated internal identifier
func (s *Store) InsertChart(ctx context.Context, chart *storage.Chart) (string, error) {
	ctx, span := s.startStorageSpan(ctx, "insert_chart")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "insert_chart", err, startTime)
	}()

	if chart == nil {
		err = fmt.Errorf("chart cannot be nil")
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[chart.ItemID]; exists {
		err = fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, chart.ItemID)
		return "", err
	}

	id := uuid.NewString()
	s.documents[chart.ItemID] = deepCopyDocument(chart.Document(time.Now()))
	s.internalIDs[chart.ItemID] = id
	s.chartsCountAtomic.Add(1)

	s.logger.Debug("Inserted chart", "item_id", chart.ItemID)

	return id, nil
}

// UpdateChart merges the present fields of update into the stored document
// and refreshes updated_at
func (s *Store) UpdateChart(ctx context.Context, itemID int64, update *storage.ChartUpdate) error {
	ctx, span := s.startStorageSpan(ctx, "update_chart")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "update_chart", err, startTime)
	}()

	if update == nil {
		err = fmt.Errorf("update cannot be nil")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[itemID]
	if !ok || !storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		return err
	}

	if applyFields(doc, update.SetFields(time.Now())) == 0 {
		err = fmt.Errorf("%w: item %d", storage.ErrNotModified, itemID)
		return err
	}

	return nil
}

// DeleteChart removes the document with the given item_id
func (s *Store) DeleteChart(ctx context.Context, itemID int64) error {
	ctx, span := s.startStorageSpan(ctx, "delete_chart")
	defer span.End()

	startTime := time.Now()
	var err error

	defer func() {
		s.recordStorageOperation(ctx, span, "delete_chart", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[itemID]
	if !ok || !storage.IsChartDocument(doc) {
		err = fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		return err
	}

	s.removeLocked(itemID, doc)
	s.logger.Debug("Deleted chart", "item_id", itemID)

	return nil
}

// CountCharts returns the number of chart-shaped documents
func (s *Store) CountCharts(ctx context.Context) (int64, error) {
	ctx, span := s.startStorageSpan(ctx, "count_charts")
	defer span.End()

	startTime := time.Now()

	defer func() {
		s.recordStorageOperation(ctx, span, "count_charts", nil, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, doc := range s.documents {
		if storage.IsChartDocument(doc) {
			count++
		}
	}

	return count, nil
}

// ============================================================
// Sequencer / HealthChecker Implementation
// ============================================================

// MaxItemID returns the largest item_id across all documents, or 0 when empty
func (s *Store) MaxItemID(ctx context.Context) (int64, error) {
	ctx, span := s.startStorageSpan(ctx, "max_item_id")
	defer span.End()

	startTime := time.Now()

	defer func() {
		s.recordStorageOperation(ctx, span, "max_item_id", nil, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxID int64
	for itemID := range s.documents {
		if itemID > maxID {
			maxID = itemID
		}
	}

	return maxID, nil
}

// Ping reports storage health. An in-memory store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close releases backend resources. The in-memory store holds none.
func (s *Store) Close(ctx context.Context) error {
	return nil
}

// ============================================================
// Internal helpers
// ============================================================

// removeLocked deletes a document and keeps the atomic counters in sync.
// Callers must hold the write lock.
func (s *Store) removeLocked(itemID int64, doc map[string]any) {
	if storage.IsChartDocument(doc) {
		s.chartsCountAtomic.Add(-1)
	} else {
		s.recordsCountAtomic.Add(-1)
	}
	delete(s.documents, itemID)
	delete(s.internalIDs, itemID)
}

// sortedItemIDs returns all item_ids in ascending order. Callers must hold
// at least the read lock.
func (s *Store) sortedItemIDs() []int64 {
	ids := make([]int64, 0, len(s.documents))
	for itemID := range s.documents {
		ids = append(ids, itemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// window applies skip and limit to an ordered id slice, mirroring database
// cursor semantics: out-of-range skip yields an empty page, limit 0 means
// no limit.
func (s *Store) window(ids []int64, limit, skip int64) []int64 {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(ids)) {
		return nil
	}
	ids = ids[skip:]
	if limit > 0 && int64(len(ids)) > limit {
		ids = ids[:limit]
	}
	return ids
}

// applyFields merges set-fields into a stored document and returns how many
// actually changed value, mirroring a database modified count.
func applyFields(doc map[string]any, fields map[string]any) int {
	changed := 0
	for k, v := range fields {
		if reflect.DeepEqual(doc[k], v) {
			continue
		}
		doc[k] = deepCopyValue(v)
		changed++
	}
	return changed
}

// deepCopyDocument copies a document so callers and the store never alias
// each other's nested maps.
func deepCopyDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = deepCopyDocument(item)
		}
		return out
	default:
		return v
	}
}

// startStorageSpan starts a new span for a storage operation
// Returns a context with the span attached and the span itself
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))

	return ctx, span
}

// recordStorageOperation records metrics for a storage operation and sets span status
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		// Set span error status
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else {
		// Set span success status
		if span != nil {
			span.SetStatus(codes.Ok, "")
		}
	}

	// Record operation with count and duration
	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
