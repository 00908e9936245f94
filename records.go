package chartstore

import (
	"context"
	"fmt"

	"github.com/joelmoran101/chartstore/storage"
)

// nextItemID computes the next sequential business identifier. There is no
// lock spanning this read and the subsequent insert; when two creators race,
// the storage unique index rejects the second insert with ErrDuplicateItemID
// and the client sees a conflict.
func (s *Server) nextItemID(ctx context.Context) (int64, error) {
	maxID, err := s.storage.MaxItemID(ctx)
	if err != nil {
		return 0, fmt.Errorf("computing next item_id: %w", err)
	}
	return maxID + 1, nil
}

// CreateRecord assigns the next item_id and stores a validated record. It
// returns the assigned item_id and the backend document identifier.
func (s *Server) CreateRecord(ctx context.Context, record *storage.Record) (int64, string, error) {
	itemID, err := s.nextItemID(ctx)
	if err != nil {
		return 0, "", err
	}
	record.ItemID = itemID

	databaseID, err := s.storage.InsertRecord(ctx, record)
	if err != nil {
		return 0, "", err
	}

	s.logger.Info("Record created", "item_id", itemID, "database_id", databaseID)
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordDocumentCreated(ctx, "data")
	}
	return itemID, databaseID, nil
}

// CreateChart assigns the next item_id and stores a validated chart. Charts
// share the identifier space with generic records.
func (s *Server) CreateChart(ctx context.Context, chart *storage.Chart) (int64, string, error) {
	itemID, err := s.nextItemID(ctx)
	if err != nil {
		return 0, "", err
	}
	chart.ItemID = itemID

	databaseID, err := s.storage.InsertChart(ctx, chart)
	if err != nil {
		return 0, "", err
	}

	s.logger.Info("Chart created", "item_id", itemID, "database_id", databaseID)
	if s.instrumentation != nil {
		s.instrumentation.Metrics().RecordDocumentCreated(ctx, "plotly")
	}
	return itemID, databaseID, nil
}

// ListRecords returns a page of records plus the collection total for the
// X-Total-Count response header.
func (s *Server) ListRecords(ctx context.Context, limit, skip int64) ([]*storage.Record, int64, error) {
	records, err := s.storage.ListRecords(ctx, limit, skip)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.storage.CountRecords(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ListCharts returns a page of charts plus the chart total for the
// X-Total-Count response header.
func (s *Server) ListCharts(ctx context.Context, limit, skip int64) ([]*storage.Chart, int64, error) {
	charts, err := s.storage.ListCharts(ctx, limit, skip)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.storage.CountCharts(ctx)
	if err != nil {
		return nil, 0, err
	}
	return charts, total, nil
}

// toRecordResponse maps a stored record to its wire shape. The internal
// document identifier travels outbound only, as the string field id.
func toRecordResponse(record *storage.Record) RecordResponse {
	return RecordResponse{
		ID:          record.ID,
		ItemID:      record.ItemID,
		Data:        record.Data,
		Title:       record.Title,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
}

// toChartResponse maps a stored chart to its wire shape, carrying preserved
// extra fields through to the top-level JSON object.
func toChartResponse(chart *storage.Chart) ChartResponse {
	return ChartResponse{
		ID:          chart.ID,
		ItemID:      chart.ItemID,
		Title:       chart.Title,
		Description: chart.Description,
		ChartType:   chart.ChartType,
		Data:        chart.Data,
		Layout:      chart.Layout,
		Extra:       chart.Extra,
		CreatedAt:   chart.CreatedAt,
		UpdatedAt:   chart.UpdatedAt,
	}
}

// toRecordResponses maps a result page.
func toRecordResponses(records []*storage.Record) []RecordResponse {
	responses := make([]RecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, toRecordResponse(record))
	}
	return responses
}

// toChartResponses maps a result page.
func toChartResponses(charts []*storage.Chart) []ChartResponse {
	responses := make([]ChartResponse, 0, len(charts))
	for _, chart := range charts {
		responses = append(responses, toChartResponse(chart))
	}
	return responses
}
