// Package memory provides an in-memory implementation of the chartstore
// storage interfaces.
//
// This package implements RecordStore, ChartStore, Sequencer, and
// HealthChecker using Go's built-in maps with mutex protection for thread
// safety. It is suitable for development, testing, and single-instance
// deployments where persistence is not required.
//
// Features:
//   - Thread-safe operations using sync.RWMutex
//   - item_id ordering and pagination matching database cursor semantics
//   - Deep-copied documents so callers never alias stored state
//   - OpenTelemetry spans and metrics via SetInstrumentation
//
// For production deployments requiring persistence, use the storage/mongo
// package instead.
//
// Example usage:
//
//	store := memory.New()
//	defer store.Close(context.Background())
//
//	server, _ := chartstore.NewServer(store, tokens, limiter, config, logger)
package memory
