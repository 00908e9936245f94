// Package mongo provides a MongoDB-backed implementation of the storage
// interfaces (RecordStore, ChartStore, Sequencer, HealthChecker).
//
// Records and Plotly charts live in a single collection and share one
// item_id space, guarded by a unique index that New creates on startup.
// The index is what makes optimistic sequence generation safe: two writers
// that compute the same next item_id race at insert time and the loser
// receives storage.ErrDuplicateItemID.
//
// # Document Layout
//
// Every document carries the shared field set defined in the storage
// package:
//
//	item_id     int64     unique business identifier
//	data        object    generic record payload, or
//	            array     Plotly trace array (marks the document as a chart)
//	title       string    optional
//	description string    optional
//	chart_type  string    optional, charts only
//	layout      object    optional, charts only
//	created_at  datetime  set on insert
//	updated_at  datetime  refreshed on every update
//
// The shape of the data field is the only discriminator between records and
// charts, so ListCharts and CountCharts filter with {data: {$type: "array"}}
// while ListRecords and CountRecords scan the whole collection.
//
// # Connection Profiles
//
// New picks timeouts from the connection string. Plain mongodb:// URIs get
// the local profile (5s server selection, 10s connect, 20s operation);
// mongodb+srv:// URIs are treated as MongoDB Atlas and get a wider profile
// (10s/20s/30s) plus a capped connection pool and retryable writes.
//
// # Usage
//
//	store, err := mongo.New(mongo.Config{
//		URI:        "mongodb://localhost:27017",
//		Database:   "plotly_db",
//		Collection: "plotly_data",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close(context.Background())
//
//	itemID, _ := store.MaxItemID(ctx)
//	_, err = store.InsertRecord(ctx, &storage.Record{
//		ItemID: itemID + 1,
//		Data:   map[string]any{"sensor": "temp-1", "value": 21.5},
//	})
//
// BSON decoding is configured with DefaultDocumentM so nested documents
// come back as maps, matching the shapes the shared document mappers and
// the in-memory backend produce. Driver-specific types (bson.M, bson.A,
// bson.DateTime, bson.ObjectID) are normalized to plain Go values before
// mapping.
//
// Unlike the in-memory backend this store does not emit OpenTelemetry spans
// of its own; the MongoDB driver has its own instrumentation hooks, and the
// handlers above already trace each API operation.
package mongo
