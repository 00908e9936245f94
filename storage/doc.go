// Package storage provides interfaces and document mapping for data record
// and Plotly chart persistence.
//
// The storage package defines the core interfaces used throughout the
// chartstore library:
//   - RecordStore: Manages generic data records
//   - ChartStore: Manages Plotly chart documents
//   - Sequencer: Exposes the collection-wide maximum item_id
//   - HealthChecker: Reports backend reachability
//
// Records and charts share a single collection and one item_id space. A
// document whose data field is an array is a chart; an object marks a
// generic record. This package owns the document field layout and the
// mappers between stored documents and the Record and Chart types, so every
// backend round-trips the exact same shapes.
//
// Implementations are provided in subpackages:
//   - storage/memory: In-memory storage for development and testing
//   - storage/mock: Mock storage for unit testing
//   - storage/mongo: MongoDB-backed storage for production
package storage
