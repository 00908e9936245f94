package storage

import (
	"context"
	"errors"
)

// Sentinel errors returned by storage implementations. Callers match them
// with errors.Is; implementations may wrap them with additional context.
var (
	// ErrRecordNotFound indicates no record exists for the given item_id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrChartNotFound indicates no chart exists for the given item_id.
	ErrChartNotFound = errors.New("chart not found")

	// ErrDuplicateItemID indicates an insert collided with the unique
	// item_id index. This happens when concurrent creators compute the
	// same next identifier; the caller surfaces it as a retryable conflict.
	ErrDuplicateItemID = errors.New("duplicate item_id")

	// ErrNotModified indicates an update matched a document but changed
	// no stored field values.
	ErrNotModified = errors.New("no changes were made")

	// ErrNotConnected indicates the backend has no usable connection.
	ErrNotConnected = errors.New("storage not connected")
)

// RecordStore defines the interface for generic data records. Identity
// operations see only record-shaped documents; a chart stored under the same
// item_id reads as ErrRecordNotFound.
// All methods accept context.Context for tracing and cancellation.
type RecordStore interface {
	// ListRecords returns records in item_id order, applying skip and limit.
	// Documents that do not parse as generic records are skipped.
	ListRecords(ctx context.Context, limit, skip int64) ([]*Record, error)

	// GetRecord retrieves a record by its business identifier.
	// Returns ErrRecordNotFound if no document matches.
	GetRecord(ctx context.Context, itemID int64) (*Record, error)

	// InsertRecord stores a new record and returns the backend-generated
	// internal document identifier as a string.
	// Returns ErrDuplicateItemID when the item_id already exists.
	InsertRecord(ctx context.Context, record *Record) (string, error)

	// UpdateRecord merges the non-nil fields of update into the stored
	// record and refreshes updated_at. Returns ErrRecordNotFound if no
	// document matches, or ErrNotModified if nothing changed.
	UpdateRecord(ctx context.Context, itemID int64, update *RecordUpdate) error

	// DeleteRecord removes a record. Returns ErrRecordNotFound if no
	// document matches. Hard delete, no tombstone.
	DeleteRecord(ctx context.Context, itemID int64) error

	// CountRecords returns the total number of documents in the collection.
	CountRecords(ctx context.Context) (int64, error)
}

// ChartStore defines the interface for Plotly chart documents. Charts share
// the collection and item_id space with generic records, but identity
// operations see only chart-shaped documents; a generic record under the
// same item_id reads as ErrChartNotFound.
// All methods accept context.Context for tracing and cancellation.
type ChartStore interface {
	// ListCharts returns chart-shaped documents (trace array data) in
	// item_id order, applying skip and limit.
	ListCharts(ctx context.Context, limit, skip int64) ([]*Chart, error)

	// GetChart retrieves a chart by its business identifier.
	// Returns ErrChartNotFound if no document matches.
	GetChart(ctx context.Context, itemID int64) (*Chart, error)

	// InsertChart stores a new chart and returns the backend-generated
	// internal document identifier as a string.
	// Returns ErrDuplicateItemID when the item_id already exists.
	InsertChart(ctx context.Context, chart *Chart) (string, error)

	// UpdateChart merges the non-nil fields of update into the stored
	// chart and refreshes updated_at. Returns ErrChartNotFound if no
	// document matches, or ErrNotModified if nothing changed.
	UpdateChart(ctx context.Context, itemID int64, update *ChartUpdate) error

	// DeleteChart removes a chart. Returns ErrChartNotFound if no
	// document matches.
	DeleteChart(ctx context.Context, itemID int64) error

	// CountCharts returns the number of chart-shaped documents.
	CountCharts(ctx context.Context) (int64, error)
}

// Sequencer exposes the collection-wide maximum business identifier.
// The identifier space spans records and charts because both live in one
// collection with a single unique index.
type Sequencer interface {
	// MaxItemID returns the largest item_id currently stored, or 0 when
	// the collection is empty. There is deliberately no atomicity between
	// this read and a subsequent insert; the unique index resolves races.
	MaxItemID(ctx context.Context) (int64, error)
}

// HealthChecker reports whether the backend is reachable.
type HealthChecker interface {
	// Ping verifies the backend connection. A nil return means the
	// backend can serve requests.
	Ping(ctx context.Context) error
}

// Store combines every storage capability the server needs. Backends
// implement it as a single type over one document collection.
type Store interface {
	RecordStore
	ChartStore
	Sequencer
	HealthChecker

	// Close releases the backend connection and any background resources.
	Close(ctx context.Context) error
}
