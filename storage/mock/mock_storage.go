// Package mock provides a mock implementation of the storage interfaces for
// testing. Every operation delegates to a replaceable function field, so
// tests can inject failures or custom behavior per call while keeping
// working map-backed defaults for everything else.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/joelmoran101/chartstore/storage"
)

// MockStore is a mock implementation of storage.Store for testing.
// The default implementations honor the same sentinel errors as the real
// backends, so handler tests exercise the production error mapping.
type MockStore struct {
	mu      sync.RWMutex
	records map[int64]*storage.Record
	charts  map[int64]*storage.Chart
	nextID  int

	ListRecordsFunc  func(ctx context.Context, limit, skip int64) ([]*storage.Record, error)
	GetRecordFunc    func(ctx context.Context, itemID int64) (*storage.Record, error)
	InsertRecordFunc func(ctx context.Context, record *storage.Record) (string, error)
	UpdateRecordFunc func(ctx context.Context, itemID int64, update *storage.RecordUpdate) error
	DeleteRecordFunc func(ctx context.Context, itemID int64) error
	CountRecordsFunc func(ctx context.Context) (int64, error)
	ListChartsFunc   func(ctx context.Context, limit, skip int64) ([]*storage.Chart, error)
	GetChartFunc     func(ctx context.Context, itemID int64) (*storage.Chart, error)
	InsertChartFunc  func(ctx context.Context, chart *storage.Chart) (string, error)
	UpdateChartFunc  func(ctx context.Context, itemID int64, update *storage.ChartUpdate) error
	DeleteChartFunc  func(ctx context.Context, itemID int64) error
	CountChartsFunc  func(ctx context.Context) (int64, error)
	MaxItemIDFunc    func(ctx context.Context) (int64, error)
	PingFunc         func(ctx context.Context) error
	CloseFunc        func(ctx context.Context) error

	CallCounts map[string]int
}

// Compile-time interface check
var _ storage.Store = (*MockStore)(nil)

// NewMockStore creates a new mock store with working in-memory defaults
func NewMockStore() *MockStore {
	m := &MockStore{
		records:    make(map[int64]*storage.Record),
		charts:     make(map[int64]*storage.Chart),
		CallCounts: make(map[string]int),
	}

	// Set default implementations
	m.ListRecordsFunc = func(ctx context.Context, limit, skip int64) ([]*storage.Record, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		ids := make([]int64, 0, len(m.records))
		for id := range m.records {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		records := make([]*storage.Record, 0)
		for _, id := range window(ids, limit, skip) {
			records = append(records, m.records[id])
		}
		return records, nil
	}

	m.GetRecordFunc = func(ctx context.Context, itemID int64) (*storage.Record, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		record, ok := m.records[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		}
		return record, nil
	}

	m.InsertRecordFunc = func(ctx context.Context, record *storage.Record) (string, error) {
		if record == nil {
			return "", fmt.Errorf("record cannot be nil")
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.itemExistsLocked(record.ItemID) {
			return "", fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, record.ItemID)
		}
		stampRecord(record)
		record.ID = m.generateIDLocked()
		m.records[record.ItemID] = record
		return record.ID, nil
	}

	m.UpdateRecordFunc = func(ctx context.Context, itemID int64, update *storage.RecordUpdate) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		record, ok := m.records[itemID]
		if !ok {
			return fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		}
		if update.Data != nil {
			record.Data = update.Data
		}
		if update.Title != nil {
			record.Title = update.Title
		}
		if update.Description != nil {
			record.Description = update.Description
		}
		record.UpdatedAt = time.Now().UTC()
		return nil
	}

	m.DeleteRecordFunc = func(ctx context.Context, itemID int64) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.records[itemID]; !ok {
			return fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
		}
		delete(m.records, itemID)
		return nil
	}

	m.CountRecordsFunc = func(ctx context.Context) (int64, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		// Records and charts share one collection, so the record count
		// covers both, matching the real backends.
		return int64(len(m.records) + len(m.charts)), nil
	}

	m.ListChartsFunc = func(ctx context.Context, limit, skip int64) ([]*storage.Chart, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		ids := make([]int64, 0, len(m.charts))
		for id := range m.charts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		charts := make([]*storage.Chart, 0)
		for _, id := range window(ids, limit, skip) {
			charts = append(charts, m.charts[id])
		}
		return charts, nil
	}

	m.GetChartFunc = func(ctx context.Context, itemID int64) (*storage.Chart, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		chart, ok := m.charts[itemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		}
		return chart, nil
	}

	m.InsertChartFunc = func(ctx context.Context, chart *storage.Chart) (string, error) {
		if chart == nil {
			return "", fmt.Errorf("chart cannot be nil")
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.itemExistsLocked(chart.ItemID) {
			return "", fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, chart.ItemID)
		}
		stampChart(chart)
		chart.ID = m.generateIDLocked()
		m.charts[chart.ItemID] = chart
		return chart.ID, nil
	}

	m.UpdateChartFunc = func(ctx context.Context, itemID int64, update *storage.ChartUpdate) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		chart, ok := m.charts[itemID]
		if !ok {
			return fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		}
		if update.Title != nil {
			chart.Title = update.Title
		}
		if update.Description != nil {
			chart.Description = update.Description
		}
		if update.ChartType != nil {
			chart.ChartType = update.ChartType
		}
		if update.Data != nil {
			chart.Data = update.Data
		}
		if update.Layout != nil {
			chart.Layout = update.Layout
		}
		for k, v := range update.Extra {
			if chart.Extra == nil {
				chart.Extra = make(map[string]any)
			}
			chart.Extra[k] = v
		}
		chart.UpdatedAt = time.Now().UTC()
		return nil
	}

	m.DeleteChartFunc = func(ctx context.Context, itemID int64) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.charts[itemID]; !ok {
			return fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
		}
		delete(m.charts, itemID)
		return nil
	}

	m.CountChartsFunc = func(ctx context.Context) (int64, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return int64(len(m.charts)), nil
	}

	m.MaxItemIDFunc = func(ctx context.Context) (int64, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		var maxID int64
		for id := range m.records {
			if id > maxID {
				maxID = id
			}
		}
		for id := range m.charts {
			if id > maxID {
				maxID = id
			}
		}
		return maxID, nil
	}

	m.PingFunc = func(ctx context.Context) error {
		return nil
	}

	m.CloseFunc = func(ctx context.Context) error {
		return nil
	}

	return m
}

// ListRecords returns stored records in item_id order
func (m *MockStore) ListRecords(ctx context.Context, limit, skip int64) ([]*storage.Record, error) {
	m.CallCounts["ListRecords"]++
	return m.ListRecordsFunc(ctx, limit, skip)
}

// GetRecord retrieves a record by item_id
func (m *MockStore) GetRecord(ctx context.Context, itemID int64) (*storage.Record, error) {
	m.CallCounts["GetRecord"]++
	return m.GetRecordFunc(ctx, itemID)
}

// InsertRecord stores a new record
func (m *MockStore) InsertRecord(ctx context.Context, record *storage.Record) (string, error) {
	m.CallCounts["InsertRecord"]++
	return m.InsertRecordFunc(ctx, record)
}

// UpdateRecord merges the present fields of update into the stored record
func (m *MockStore) UpdateRecord(ctx context.Context, itemID int64, update *storage.RecordUpdate) error {
	m.CallCounts["UpdateRecord"]++
	return m.UpdateRecordFunc(ctx, itemID, update)
}

// DeleteRecord removes a record
func (m *MockStore) DeleteRecord(ctx context.Context, itemID int64) error {
	m.CallCounts["DeleteRecord"]++
	return m.DeleteRecordFunc(ctx, itemID)
}

// CountRecords returns the total number of stored documents
func (m *MockStore) CountRecords(ctx context.Context) (int64, error) {
	m.CallCounts["CountRecords"]++
	return m.CountRecordsFunc(ctx)
}

// ListCharts returns stored charts in item_id order
func (m *MockStore) ListCharts(ctx context.Context, limit, skip int64) ([]*storage.Chart, error) {
	m.CallCounts["ListCharts"]++
	return m.ListChartsFunc(ctx, limit, skip)
}

// GetChart retrieves a chart by item_id
func (m *MockStore) GetChart(ctx context.Context, itemID int64) (*storage.Chart, error) {
	m.CallCounts["GetChart"]++
	return m.GetChartFunc(ctx, itemID)
}

// InsertChart stores a new chart
func (m *MockStore) InsertChart(ctx context.Context, chart *storage.Chart) (string, error) {
	m.CallCounts["InsertChart"]++
	return m.InsertChartFunc(ctx, chart)
}

// UpdateChart merges the present fields of update into the stored chart
func (m *MockStore) UpdateChart(ctx context.Context, itemID int64, update *storage.ChartUpdate) error {
	m.CallCounts["UpdateChart"]++
	return m.UpdateChartFunc(ctx, itemID, update)
}

// DeleteChart removes a chart
func (m *MockStore) DeleteChart(ctx context.Context, itemID int64) error {
	m.CallCounts["DeleteChart"]++
	return m.DeleteChartFunc(ctx, itemID)
}

// CountCharts returns the number of stored charts
func (m *MockStore) CountCharts(ctx context.Context) (int64, error) {
	m.CallCounts["CountCharts"]++
	return m.CountChartsFunc(ctx)
}

// MaxItemID returns the largest item_id across records and charts
func (m *MockStore) MaxItemID(ctx context.Context) (int64, error) {
	m.CallCounts["MaxItemID"]++
	return m.MaxItemIDFunc(ctx)
}

// Ping verifies the mock connection
func (m *MockStore) Ping(ctx context.Context) error {
	m.CallCounts["Ping"]++
	return m.PingFunc(ctx)
}

// Close releases mock resources
func (m *MockStore) Close(ctx context.Context) error {
	m.CallCounts["Close"]++
	return m.CloseFunc(ctx)
}

// ResetCallCounts resets all call counters
func (m *MockStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

func (m *MockStore) itemExistsLocked(itemID int64) bool {
	if _, ok := m.records[itemID]; ok {
		return true
	}
	_, ok := m.charts[itemID]
	return ok
}

func (m *MockStore) generateIDLocked() string {
	m.nextID++
	return fmt.Sprintf("mock-id-%d", m.nextID)
}

func stampRecord(record *storage.Record) {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
}

func stampChart(chart *storage.Chart) {
	now := time.Now().UTC()
	if chart.CreatedAt.IsZero() {
		chart.CreatedAt = now
	}
	if chart.UpdatedAt.IsZero() {
		chart.UpdatedAt = now
	}
}

func window(ids []int64, limit, skip int64) []int64 {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(ids)) {
		return nil
	}
	ids = ids[skip:]
	if limit > 0 && limit < int64(len(ids)) {
		ids = ids[:limit]
	}
	return ids
}
