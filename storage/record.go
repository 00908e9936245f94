package storage

import (
	"fmt"
	"time"
)

// Document field names shared by every backend. Records and charts live in
// one collection, so the field layout is the single source of truth for
// queries and partial updates.
const (
	FieldItemID      = "item_id"
	FieldData        = "data"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldChartType   = "chart_type"
	FieldLayout      = "layout"
	FieldCreatedAt   = "created_at"
	FieldUpdatedAt   = "updated_at"
)

// knownChartFields are the declared chart fields. Anything else at the top
// level of a chart document is carried in Chart.Extra (the chart model is
// permissive for forward compatibility).
var knownChartFields = map[string]bool{
	FieldItemID:      true,
	FieldData:        true,
	FieldTitle:       true,
	FieldDescription: true,
	FieldChartType:   true,
	FieldLayout:      true,
	FieldCreatedAt:   true,
	FieldUpdatedAt:   true,
}

// Record is a generic data item. Data is an arbitrary JSON object; the model
// is strict, so unknown top-level fields never reach storage.
type Record struct {
	// ID is the backend-generated internal document identifier in string
	// form. Populated on reads, ignored on inserts, never parsed back.
	ID string

	// ItemID is the business identifier, unique across the collection.
	ItemID int64

	// Data is the flexible payload object.
	Data map[string]any

	// Title is an optional display title. Nil means unset.
	Title *string

	// Description is an optional description. Nil means unset.
	Description *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chart is a Plotly chart document: an ordered trace array plus an optional
// layout object, with unknown top-level fields preserved in Extra.
type Chart struct {
	// ID is the backend-generated internal document identifier in string
	// form. Populated on reads, ignored on inserts.
	ID string

	// ItemID is the business identifier, shared ID space with records.
	ItemID int64

	Title       *string
	Description *string

	// ChartType names the chart kind, e.g. "line". Nil means unset.
	ChartType *string

	// Data is the Plotly trace array. Each trace is an open key-value map.
	Data []map[string]any

	// Layout is the optional Plotly layout object.
	Layout map[string]any

	// Extra holds unknown top-level fields passed through verbatim.
	Extra map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecordUpdate is a partial update for a generic record. Nil fields were not
// present in the request and stay untouched.
type RecordUpdate struct {
	Data        map[string]any
	Title       *string
	Description *string
}

// HasFields reports whether the update carries at least one field to merge.
func (u *RecordUpdate) HasFields() bool {
	return u.Data != nil || u.Title != nil || u.Description != nil
}

// SetFields returns the document fields to merge into the stored record.
// updated_at is always refreshed, even when values match what is stored.
func (u *RecordUpdate) SetFields(now time.Time) map[string]any {
	fields := map[string]any{FieldUpdatedAt: now.UTC()}
	if u.Data != nil {
		fields[FieldData] = u.Data
	}
	if u.Title != nil {
		fields[FieldTitle] = *u.Title
	}
	if u.Description != nil {
		fields[FieldDescription] = *u.Description
	}
	return fields
}

// ChartUpdate is a partial update for a chart. Nil fields were not present
// in the request; Extra carries unknown fields that were.
type ChartUpdate struct {
	Title       *string
	Description *string
	ChartType   *string
	Data        []map[string]any
	Layout      map[string]any
	Extra       map[string]any
}

// HasFields reports whether the update carries at least one field to merge.
func (u *ChartUpdate) HasFields() bool {
	return u.Title != nil || u.Description != nil || u.ChartType != nil ||
		u.Data != nil || u.Layout != nil || len(u.Extra) > 0
}

// SetFields returns the document fields to merge into the stored chart.
func (u *ChartUpdate) SetFields(now time.Time) map[string]any {
	fields := map[string]any{FieldUpdatedAt: now.UTC()}
	if u.Title != nil {
		fields[FieldTitle] = *u.Title
	}
	if u.Description != nil {
		fields[FieldDescription] = *u.Description
	}
	if u.ChartType != nil {
		fields[FieldChartType] = *u.ChartType
	}
	if u.Data != nil {
		fields[FieldData] = u.Data
	}
	if u.Layout != nil {
		fields[FieldLayout] = u.Layout
	}
	for k, v := range u.Extra {
		if !knownChartFields[k] {
			fields[k] = v
		}
	}
	return fields
}

// Document returns the stored representation of the record. Timestamps are
// stamped with now when unset so the mapper owns them on first insert. The
// internal identifier is attached by the backend, not here.
func (r *Record) Document(now time.Time) map[string]any {
	createdAt, updatedAt := stampTimes(r.CreatedAt, r.UpdatedAt, now)
	return map[string]any{
		FieldItemID:      r.ItemID,
		FieldData:        r.Data,
		FieldTitle:       optionalString(r.Title),
		FieldDescription: optionalString(r.Description),
		FieldCreatedAt:   createdAt,
		FieldUpdatedAt:   updatedAt,
	}
}

// Document returns the stored representation of the chart. Unknown fields in
// Extra are inlined at the top level; declared fields always win.
func (c *Chart) Document(now time.Time) map[string]any {
	createdAt, updatedAt := stampTimes(c.CreatedAt, c.UpdatedAt, now)
	doc := map[string]any{
		FieldItemID:      c.ItemID,
		FieldTitle:       optionalString(c.Title),
		FieldDescription: optionalString(c.Description),
		FieldChartType:   optionalString(c.ChartType),
		FieldData:        c.Data,
		FieldLayout:      optionalObject(c.Layout),
		FieldCreatedAt:   createdAt,
		FieldUpdatedAt:   updatedAt,
	}
	for k, v := range c.Extra {
		if !knownChartFields[k] {
			doc[k] = v
		}
	}
	return doc
}

// RecordFromDocument maps a stored document back to a Record. The internal
// identifier must already be stripped; backends pass it separately.
func RecordFromDocument(doc map[string]any) (*Record, error) {
	itemID, ok := asInt64(doc[FieldItemID])
	if !ok {
		return nil, fmt.Errorf("document has no valid %s field", FieldItemID)
	}

	data, ok := asObject(doc[FieldData])
	if !ok {
		return nil, fmt.Errorf("item %d: %s is not an object", itemID, FieldData)
	}

	createdAt, updatedAt, err := documentTimes(doc)
	if err != nil {
		return nil, fmt.Errorf("item %d: %w", itemID, err)
	}

	return &Record{
		ItemID:      itemID,
		Data:        data,
		Title:       asOptionalString(doc[FieldTitle]),
		Description: asOptionalString(doc[FieldDescription]),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// ChartFromDocument maps a stored document back to a Chart, collecting
// unknown top-level fields into Extra.
func ChartFromDocument(doc map[string]any) (*Chart, error) {
	itemID, ok := asInt64(doc[FieldItemID])
	if !ok {
		return nil, fmt.Errorf("document has no valid %s field", FieldItemID)
	}

	traces, ok := asTraces(doc[FieldData])
	if !ok {
		return nil, fmt.Errorf("chart %d: %s is not a trace array", itemID, FieldData)
	}

	createdAt, updatedAt, err := documentTimes(doc)
	if err != nil {
		return nil, fmt.Errorf("chart %d: %w", itemID, err)
	}

	layout, _ := asObject(doc[FieldLayout])

	var extra map[string]any
	for k, v := range doc {
		if knownChartFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	return &Chart{
		ItemID:      itemID,
		Title:       asOptionalString(doc[FieldTitle]),
		Description: asOptionalString(doc[FieldDescription]),
		ChartType:   asOptionalString(doc[FieldChartType]),
		Data:        traces,
		Layout:      layout,
		Extra:       extra,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

// IsChartDocument reports whether a stored document is chart-shaped, meaning
// its data field is an array. Generic records keep data as an object.
func IsChartDocument(doc map[string]any) bool {
	switch doc[FieldData].(type) {
	case []any, []map[string]any:
		return true
	default:
		return false
	}
}

func stampTimes(createdAt, updatedAt time.Time, now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return createdAt.UTC(), updatedAt.UTC()
}

func documentTimes(doc map[string]any) (time.Time, time.Time, error) {
	createdAt, ok := asTime(doc[FieldCreatedAt])
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("missing %s", FieldCreatedAt)
	}
	updatedAt, ok := asTime(doc[FieldUpdatedAt])
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("missing %s", FieldUpdatedAt)
	}
	return createdAt, updatedAt, nil
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func optionalObject(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

// asInt64 coerces the numeric types a document value can arrive as. JSON
// decoding produces float64, BSON normalization produces int32 or int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asObject(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return nil, false
	}
	return m, true
}

// asTraces coerces a stored trace array. Backends normalize arrays to []any
// before mapping, so both element layouts are handled.
func asTraces(v any) ([]map[string]any, bool) {
	switch traces := v.(type) {
	case []map[string]any:
		return traces, true
	case []any:
		out := make([]map[string]any, 0, len(traces))
		for _, t := range traces {
			obj, ok := asObject(t)
			if !ok {
				return nil, false
			}
			out = append(out, obj)
		}
		return out, true
	default:
		return nil, false
	}
}

func asOptionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func asTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, false
	}
	return t.UTC(), true
}
