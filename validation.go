package chartstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joelmoran101/chartstore/storage"
)

// Default validation limits.
const (
	DefaultMaxTitleLength       = 200
	DefaultMaxDescriptionLength = 1000
	DefaultMaxChartTypeLength   = 50
	DefaultMaxTraces            = 100
	DefaultMaxDataBytes         = 10 * 1024 * 1024
)

// forbiddenTextChars are rejected in title, description and chart_type to
// keep stored text inert when echoed into HTML contexts. Order matters: the
// first match is the one named in the error.
var forbiddenTextChars = []rune{'<', '>', '"', '\'', '&'}

// deniedDocumentKeys are stripped from user-supplied documents at every
// nesting depth before storage. They are Mongo query operators; a stored
// document must never smuggle one into a later query.
var deniedDocumentKeys = map[string]bool{
	"$where":      true,
	"$regex":      true,
	"$text":       true,
	"$expr":       true,
	"$jsonSchema": true,
	"$mod":        true,
	"$ne":         true,
}

// recordFields are the top-level keys the strict generic data model accepts.
var recordFields = map[string]bool{
	storage.FieldData:        true,
	storage.FieldTitle:       true,
	storage.FieldDescription: true,
}

// chartFields are the declared top-level keys of the chart model. Keys
// outside this set are extras, handled per the configured policy.
var chartFields = map[string]bool{
	storage.FieldData:        true,
	storage.FieldTitle:       true,
	storage.FieldDescription: true,
	storage.FieldChartType:   true,
	storage.FieldLayout:      true,
}

// validator parses and validates request payloads into storage types. It is
// constructed once per server from the resolved ValidationConfig.
type validator struct {
	maxTitleLen     int
	maxDescLen      int
	maxChartTypeLen int
	maxTraces       int
	maxDataBytes    int

	strictRecordFields bool
	strictChartFields  bool
}

// newValidator resolves config defaults. Zero limits fall back to the
// package defaults; the Default field policy resolves to strict for records
// and permissive for charts.
func newValidator(cfg ValidationConfig) *validator {
	v := &validator{
		maxTitleLen:     cfg.MaxTitleLength,
		maxDescLen:      cfg.MaxDescriptionLength,
		maxChartTypeLen: cfg.MaxChartTypeLength,
		maxTraces:       cfg.MaxTraces,
		maxDataBytes:    cfg.MaxDataBytes,

		strictRecordFields: cfg.DataExtraFields != ExtraFieldPermissive,
		strictChartFields:  cfg.ChartExtraFields == ExtraFieldStrict,
	}
	if v.maxTitleLen <= 0 {
		v.maxTitleLen = DefaultMaxTitleLength
	}
	if v.maxDescLen <= 0 {
		v.maxDescLen = DefaultMaxDescriptionLength
	}
	if v.maxChartTypeLen <= 0 {
		v.maxChartTypeLen = DefaultMaxChartTypeLength
	}
	if v.maxTraces <= 0 {
		v.maxTraces = DefaultMaxTraces
	}
	if v.maxDataBytes <= 0 {
		v.maxDataBytes = DefaultMaxDataBytes
	}
	return v
}

// decodeObject parses raw JSON into a top-level object. Anything else, a
// broken document included, reads as malformed input.
func decodeObject(raw []byte) (map[string]any, *APIError) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return nil, ErrValidation("Invalid input data")
	}
	return payload, nil
}

// rejectUnknownFields enforces a strict field set. The offending key is
// named deterministically: the lexicographically first unknown key.
func rejectUnknownFields(payload map[string]any, allowed map[string]bool) *APIError {
	var unknown []string
	for k := range payload {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return ErrValidation(fmt.Sprintf("Unknown field '%s' in input data", unknown[0]))
}

// textField extracts an optional string field. A JSON null reads as absent.
// The value is whitespace-trimmed and screened for forbidden characters.
func (v *validator) textField(payload map[string]any, field string) (*string, *APIError) {
	raw, ok := payload[field]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, ErrValidation(fmt.Sprintf("Field '%s' must be a string", field))
	}
	s = strings.TrimSpace(s)
	for _, c := range forbiddenTextChars {
		if strings.ContainsRune(s, c) {
			return nil, ErrValidation(fmt.Sprintf("Invalid character '%c' in text field", c))
		}
	}
	return &s, nil
}

func (v *validator) checkTitleLength(title *string) *APIError {
	if title != nil && utf8.RuneCountInString(*title) > v.maxTitleLen {
		return ErrValidation(fmt.Sprintf("Title too long (max %d characters)", v.maxTitleLen))
	}
	return nil
}

func (v *validator) checkDescriptionLength(desc *string) *APIError {
	if desc != nil && utf8.RuneCountInString(*desc) > v.maxDescLen {
		return ErrValidation(fmt.Sprintf("Description too long (max %d characters)", v.maxDescLen))
	}
	return nil
}

func (v *validator) checkChartTypeLength(chartType *string) *APIError {
	if chartType != nil && utf8.RuneCountInString(*chartType) > v.maxChartTypeLen {
		return ErrValidation(fmt.Sprintf("Chart type too long (max %d characters)", v.maxChartTypeLen))
	}
	return nil
}

// traces extracts the chart data array. Each trace must itself be an object.
func (v *validator) traces(raw any) ([]map[string]any, *APIError) {
	list, ok := raw.([]any)
	if !ok {
		return nil, ErrValidation("Field 'data' must be an array of traces")
	}
	if len(list) > v.maxTraces {
		return nil, ErrValidation(fmt.Sprintf("Too many data traces (max %d)", v.maxTraces))
	}
	traces := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		trace, ok := entry.(map[string]any)
		if !ok {
			return nil, ErrValidation("Each trace must be an object")
		}
		traces = append(traces, trace)
	}
	if err := v.checkTracesSize(traces); err != nil {
		return nil, err
	}
	return traces, nil
}

// checkTracesSize bounds the serialized size of the trace array. The limit
// reads in whole megabytes, matching the configured byte budget.
func (v *validator) checkTracesSize(traces []map[string]any) *APIError {
	serialized, err := json.Marshal(traces)
	if err != nil {
		return ErrValidation("Invalid input data")
	}
	if len(serialized) > v.maxDataBytes {
		return ErrValidation(fmt.Sprintf("Data payload too large (max %dMB)", v.maxDataBytes/(1024*1024)))
	}
	return nil
}

// ParseRecordCreate validates a POST /data/ payload. The generic model is
// strict: data is required and must be an object, title and description are
// optional strings, anything else is rejected.
func (v *validator) ParseRecordCreate(raw []byte) (*storage.Record, *APIError) {
	payload, apiErr := decodeObject(raw)
	if apiErr != nil {
		return nil, apiErr
	}
	if v.strictRecordFields {
		if apiErr := rejectUnknownFields(payload, recordFields); apiErr != nil {
			return nil, apiErr
		}
	}

	dataRaw, ok := payload[storage.FieldData]
	if !ok || dataRaw == nil {
		return nil, ErrValidation("Field 'data' is required")
	}
	data, ok := dataRaw.(map[string]any)
	if !ok {
		return nil, ErrValidation("Field 'data' must be an object")
	}

	title, apiErr := v.textField(payload, storage.FieldTitle)
	if apiErr != nil {
		return nil, apiErr
	}
	description, apiErr := v.textField(payload, storage.FieldDescription)
	if apiErr != nil {
		return nil, apiErr
	}

	return &storage.Record{
		Data:        sanitizeDocument(data),
		Title:       title,
		Description: description,
	}, nil
}

// ParseRecordUpdate validates a PUT /data/{item_id} payload. Fields that are
// absent or null stay untouched on the stored record.
func (v *validator) ParseRecordUpdate(raw []byte) (*storage.RecordUpdate, *APIError) {
	payload, apiErr := decodeObject(raw)
	if apiErr != nil {
		return nil, apiErr
	}
	if v.strictRecordFields {
		if apiErr := rejectUnknownFields(payload, recordFields); apiErr != nil {
			return nil, apiErr
		}
	}

	update := &storage.RecordUpdate{}
	if dataRaw, ok := payload[storage.FieldData]; ok && dataRaw != nil {
		data, ok := dataRaw.(map[string]any)
		if !ok {
			return nil, ErrValidation("Field 'data' must be an object")
		}
		update.Data = sanitizeDocument(data)
	}

	update.Title, apiErr = v.textField(payload, storage.FieldTitle)
	if apiErr != nil {
		return nil, apiErr
	}
	update.Description, apiErr = v.textField(payload, storage.FieldDescription)
	if apiErr != nil {
		return nil, apiErr
	}
	return update, nil
}

// ParseChartCreate validates a POST /plotly/ payload. The chart model takes
// raw Plotly JSON: a required data array of trace objects, an optional
// layout object, optional text fields, and, unless configured strict, any
// extra top-level properties, preserved as-is.
func (v *validator) ParseChartCreate(raw []byte) (*storage.Chart, *APIError) {
	payload, apiErr := decodeObject(raw)
	if apiErr != nil {
		return nil, apiErr
	}
	if v.strictChartFields {
		if apiErr := rejectUnknownFields(payload, chartFields); apiErr != nil {
			return nil, apiErr
		}
	}

	dataRaw, ok := payload[storage.FieldData]
	if !ok || dataRaw == nil {
		return nil, ErrValidation("Field 'data' is required")
	}
	traces, apiErr := v.traces(dataRaw)
	if apiErr != nil {
		return nil, apiErr
	}

	chart := &storage.Chart{Data: sanitizeTraces(traces)}

	if chart.Title, apiErr = v.textField(payload, storage.FieldTitle); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkTitleLength(chart.Title); apiErr != nil {
		return nil, apiErr
	}
	if chart.Description, apiErr = v.textField(payload, storage.FieldDescription); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkDescriptionLength(chart.Description); apiErr != nil {
		return nil, apiErr
	}
	if chart.ChartType, apiErr = v.textField(payload, storage.FieldChartType); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkChartTypeLength(chart.ChartType); apiErr != nil {
		return nil, apiErr
	}
	if chart.ChartType == nil {
		defaultType := "line"
		chart.ChartType = &defaultType
	}

	if layoutRaw, ok := payload[storage.FieldLayout]; ok && layoutRaw != nil {
		layout, ok := layoutRaw.(map[string]any)
		if !ok {
			return nil, ErrValidation("Field 'layout' must be an object")
		}
		chart.Layout = sanitizeDocument(layout)
	}

	if !v.strictChartFields {
		chart.Extra = sanitizeDocument(extraFields(payload, chartFields))
	}
	return chart, nil
}

// ParseChartUpdate validates a PUT /plotly/{item_id} payload. All declared
// fields are optional; null reads as absent.
func (v *validator) ParseChartUpdate(raw []byte) (*storage.ChartUpdate, *APIError) {
	payload, apiErr := decodeObject(raw)
	if apiErr != nil {
		return nil, apiErr
	}
	if v.strictChartFields {
		if apiErr := rejectUnknownFields(payload, chartFields); apiErr != nil {
			return nil, apiErr
		}
	}

	update := &storage.ChartUpdate{}
	if dataRaw, ok := payload[storage.FieldData]; ok && dataRaw != nil {
		traces, apiErr := v.traces(dataRaw)
		if apiErr != nil {
			return nil, apiErr
		}
		update.Data = sanitizeTraces(traces)
	}

	if update.Title, apiErr = v.textField(payload, storage.FieldTitle); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkTitleLength(update.Title); apiErr != nil {
		return nil, apiErr
	}
	if update.Description, apiErr = v.textField(payload, storage.FieldDescription); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkDescriptionLength(update.Description); apiErr != nil {
		return nil, apiErr
	}
	if update.ChartType, apiErr = v.textField(payload, storage.FieldChartType); apiErr != nil {
		return nil, apiErr
	}
	if apiErr = v.checkChartTypeLength(update.ChartType); apiErr != nil {
		return nil, apiErr
	}

	if layoutRaw, ok := payload[storage.FieldLayout]; ok && layoutRaw != nil {
		layout, ok := layoutRaw.(map[string]any)
		if !ok {
			return nil, ErrValidation("Field 'layout' must be an object")
		}
		update.Layout = sanitizeDocument(layout)
	}

	if !v.strictChartFields {
		if extras := extraFields(payload, chartFields); len(extras) > 0 {
			update.Extra = sanitizeDocument(extras)
		}
	}
	return update, nil
}

// extraFields returns the payload entries outside the declared field set.
// Null extras are dropped along with declared fields.
func extraFields(payload map[string]any, declared map[string]bool) map[string]any {
	extras := make(map[string]any)
	for k, val := range payload {
		if !declared[k] && val != nil {
			extras[k] = val
		}
	}
	return extras
}

// sanitizeDocument removes denied keys from a document at every nesting
// depth, descending both maps and slices. The document is modified in place
// and returned for convenience.
func sanitizeDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	for k, val := range doc {
		if deniedDocumentKeys[k] {
			delete(doc, k)
			continue
		}
		sanitizeValue(val)
	}
	return doc
}

func sanitizeValue(val any) {
	switch typed := val.(type) {
	case map[string]any:
		sanitizeDocument(typed)
	case []any:
		for _, entry := range typed {
			sanitizeValue(entry)
		}
	}
}

// sanitizeTraces applies the document sanitizer to each trace.
func sanitizeTraces(traces []map[string]any) []map[string]any {
	for _, trace := range traces {
		sanitizeDocument(trace)
	}
	return traces
}
