package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/joelmoran101/chartstore/storage"
)

// ============================================================================
// RecordStore implementation
// ============================================================================

// ListRecords returns stored documents in item_id order, applying skip and
// limit before mapping. Documents that do not map to a generic record (for
// example chart-shaped ones) are logged and skipped, so a page may come back
// shorter than the limit.
func (s *Store) ListRecords(ctx context.Context, limit, skip int64) ([]*storage.Record, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, listOptions(limit, skip))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*storage.Record, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode record document: %w", err)
		}

		id, doc := splitDocument(normalizeDocument(raw))
		record, mapErr := storage.RecordFromDocument(doc)
		if mapErr != nil {
			s.logger.Warn("Skipping document that does not map to a record",
				"error", mapErr)
			continue
		}
		record.ID = id
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// GetRecord retrieves a record by item_id. The lookup is shape-qualified, so
// a chart document with the same identifier reads as not found.
func (s *Store) GetRecord(ctx context.Context, itemID int64) (*storage.Record, error) {
	var raw bson.M
	err := s.collection.FindOne(ctx, recordItemFilter(itemID)).Decode(&raw)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: item %d", storage.ErrRecordNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", itemID, err)
	}

	id, doc := splitDocument(normalizeDocument(raw))
	record, err := storage.RecordFromDocument(doc)
	if err != nil {
		return nil, err
	}
	record.ID = id

	return record, nil
}

// InsertRecord stores a new record document and returns the hex form of the
// generated ObjectID. The unique item_id index turns concurrent inserts of
// the same identifier into ErrDuplicateItemID.
func (s *Store) InsertRecord(ctx context.Context, record *storage.Record) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record cannot be nil")
	}

	res, err := s.collection.InsertOne(ctx, record.Document(time.Now()))
	if mongodrv.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, record.ItemID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert record %d: %w", record.ItemID, err)
	}

	s.logger.Debug("Inserted record", "item_id", record.ItemID)

	return insertedIDString(res.InsertedID), nil
}

// UpdateRecord merges the present fields of update into the stored document
// and refreshes updated_at
func (s *Store) UpdateRecord(ctx context.Context, itemID int64, update *storage.RecordUpdate) error {
	if update == nil {
		return fmt.Errorf("update cannot be nil")
	}
	return s.updateDocument(ctx, itemID, recordItemFilter(itemID), update.SetFields(time.Now()), storage.ErrRecordNotFound)
}

// DeleteRecord removes the record with the given item_id
func (s *Store) DeleteRecord(ctx context.Context, itemID int64) error {
	return s.deleteDocument(ctx, itemID, recordItemFilter(itemID), storage.ErrRecordNotFound)
}

// CountRecords returns the total number of documents in the collection,
// chart-shaped ones included.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// ============================================================================
// ChartStore implementation
// ============================================================================

// ListCharts returns chart-shaped documents in item_id order, applying skip
// and limit. The shape filter runs server-side, so pagination windows over
// charts only, not over the whole collection.
func (s *Store) ListCharts(ctx context.Context, limit, skip int64) ([]*storage.Chart, error) {
	cursor, err := s.collection.Find(ctx, chartFilter(), listOptions(limit, skip))
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer cursor.Close(ctx)

	charts := make([]*storage.Chart, 0)
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode chart document: %w", err)
		}

		id, doc := splitDocument(normalizeDocument(raw))
		chart, mapErr := storage.ChartFromDocument(doc)
		if mapErr != nil {
			s.logger.Warn("Skipping document that does not map to a chart",
				"error", mapErr)
			continue
		}
		chart.ID = id
		charts = append(charts, chart)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate charts: %w", err)
	}

	return charts, nil
}

// GetChart retrieves a chart by item_id. The lookup is shape-qualified, so a
// generic record with the same identifier reads as not found.
func (s *Store) GetChart(ctx context.Context, itemID int64) (*storage.Chart, error) {
	var raw bson.M
	err := s.collection.FindOne(ctx, chartItemFilter(itemID)).Decode(&raw)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: item %d", storage.ErrChartNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chart %d: %w", itemID, err)
	}

	id, doc := splitDocument(normalizeDocument(raw))
	chart, err := storage.ChartFromDocument(doc)
	if err != nil {
		return nil, err
	}
	chart.ID = id

	return chart, nil
}

// InsertChart stores a new chart document and returns the hex form of the
// generated ObjectID
func (s *Store) InsertChart(ctx context.Context, chart *storage.Chart) (string, error) {
	if chart == nil {
		return "", fmt.Errorf("chart cannot be nil")
	}

	res, err := s.collection.InsertOne(ctx, chart.Document(time.Now()))
	if mongodrv.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: item %d", storage.ErrDuplicateItemID, chart.ItemID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert chart %d: %w", chart.ItemID, err)
	}

	s.logger.Debug("Inserted chart", "item_id", chart.ItemID)

	return insertedIDString(res.InsertedID), nil
}

// UpdateChart merges the present fields of update into the stored document
// and refreshes updated_at
func (s *Store) UpdateChart(ctx context.Context, itemID int64, update *storage.ChartUpdate) error {
	if update == nil {
		return fmt.Errorf("update cannot be nil")
	}
	return s.updateDocument(ctx, itemID, chartItemFilter(itemID), update.SetFields(time.Now()), storage.ErrChartNotFound)
}

// DeleteChart removes the chart with the given item_id
func (s *Store) DeleteChart(ctx context.Context, itemID int64) error {
	return s.deleteDocument(ctx, itemID, chartItemFilter(itemID), storage.ErrChartNotFound)
}

// CountCharts returns the number of chart-shaped documents
func (s *Store) CountCharts(ctx context.Context) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, chartFilter())
	if err != nil {
		return 0, fmt.Errorf("failed to count charts: %w", err)
	}
	return count, nil
}

// ============================================================================
// Sequencer implementation
// ============================================================================

// MaxItemID returns the largest item_id across records and charts, or 0 when
// the collection is empty
func (s *Store) MaxItemID(ctx context.Context) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: storage.FieldItemID, Value: -1}}).
		SetProjection(bson.M{storage.FieldItemID: 1})

	var doc struct {
		ItemID int64 `bson:"item_id"`
	}
	err := s.collection.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query max item_id: %w", err)
	}

	return doc.ItemID, nil
}

// ============================================================================
// Shared update and delete plumbing
// ============================================================================

func (s *Store) updateDocument(ctx context.Context, itemID int64, filter bson.M, fields map[string]any, notFound error) error {
	res, err := s.collection.UpdateOne(ctx, filter, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("failed to update item %d: %w", itemID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: item %d", notFound, itemID)
	}
	if res.ModifiedCount == 0 {
		return fmt.Errorf("%w: item %d", storage.ErrNotModified, itemID)
	}
	return nil
}

func (s *Store) deleteDocument(ctx context.Context, itemID int64, filter bson.M, notFound error) error {
	res, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", itemID, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: item %d", notFound, itemID)
	}

	s.logger.Debug("Deleted document", "item_id", itemID)

	return nil
}

// ============================================================================
// Filters and document normalization
// ============================================================================

// Identity lookups are shape-qualified so that the two models never observe
// each other's documents, even though they share the collection and the id
// space. A chart under some item_id reads as not found on the record side,
// and vice versa.
func recordItemFilter(itemID int64) bson.M {
	return bson.M{
		storage.FieldItemID: itemID,
		storage.FieldData:   bson.M{"$not": bson.M{"$type": "array"}},
	}
}

func chartItemFilter(itemID int64) bson.M {
	return bson.M{
		storage.FieldItemID: itemID,
		storage.FieldData:   bson.M{"$type": "array"},
	}
}

// chartFilter matches documents whose data field is an array, which is what
// distinguishes a chart from a generic record.
func chartFilter() bson.M {
	return bson.M{storage.FieldData: bson.M{"$type": "array"}}
}

func listOptions(limit, skip int64) options.Lister[options.FindOptions] {
	opts := options.Find().SetSort(bson.D{{Key: storage.FieldItemID, Value: 1}})
	if skip > 0 {
		opts = opts.SetSkip(skip)
	}
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}
	return opts
}

// splitDocument extracts the internal identifier from a normalized document
// and returns the remainder for the shared mappers, which reject unknown
// top-level fields like "_id" reaching Chart.Extra.
func splitDocument(doc map[string]any) (string, map[string]any) {
	id, _ := doc["_id"].(string)
	delete(doc, "_id")
	return id, doc
}

// insertedIDString renders the backend-generated identifier of an insert.
func insertedIDString(v any) string {
	switch id := v.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprintf("%v", v)
	}
}

// normalizeDocument converts a decoded BSON document into the plain Go shapes
// the shared mappers expect.
func normalizeDocument(raw bson.M) map[string]any {
	doc := make(map[string]any, len(raw))
	for k, v := range raw {
		doc[k] = normalizeValue(v)
	}
	return doc
}

// normalizeValue recursively rewrites BSON driver types into plain Go values:
// documents become map[string]any, arrays become []any, datetimes become
// time.Time in UTC and ObjectIDs become hex strings. Scalar types pass
// through unchanged.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case bson.M:
		return normalizeDocument(val)
	case map[string]any:
		return normalizeDocument(val)
	case bson.D:
		doc := make(map[string]any, len(val))
		for _, e := range val {
			doc[e.Key] = normalizeValue(e.Value)
		}
		return doc
	case bson.A:
		arr := make([]any, len(val))
		for i, e := range val {
			arr[i] = normalizeValue(e)
		}
		return arr
	case []any:
		arr := make([]any, len(val))
		for i, e := range val {
			arr[i] = normalizeValue(e)
		}
		return arr
	case bson.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case bson.ObjectID:
		return val.Hex()
	default:
		return v
	}
}
