package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/pkg/validator"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrInvalidUpload is returned when an upload cannot be read as a table.
	ErrInvalidUpload = errors.New("invalid upload")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
	}

	importedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engcrm_ingestion_rows_total",
		Help: "Rows read from entity imports, by outcome.",
	}, []string{"entity_type", "result"})
)

// Service imports CRM records from tabular uploads.
type Service struct {
	fields     validator.FieldSource
	entities   repository.EntityRepository
	properties *validator.PropertyValidator
	logger     *zap.Logger
}

// NewService creates a new ingestion service.
func NewService(fields validator.FieldSource, entities repository.EntityRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fields:     fields,
		entities:   entities,
		properties: validator.NewPropertyValidator(fields),
		logger:     logger.Named("ingestion"),
	}
}

// Request describes the ingestion input.
type Request struct {
	OrganizationID uuid.UUID
	EntityType     domain.EntityType
	FileName       string
	// HeaderRowIndex selects the header row; the first non-empty row is used
	// when nil.
	HeaderRowIndex *int
	// DryRun validates every row without creating entities.
	DryRun bool
	Data   io.Reader
}

// RowError describes why one data row was rejected. Row is 1-based and
// counts the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	TotalRows      int         `json:"total_rows"`
	ValidRows      int         `json:"valid_rows"`
	InvalidRows    int         `json:"invalid_rows"`
	MappedColumns  []string    `json:"mapped_columns"`
	IgnoredColumns []string    `json:"ignored_columns"`
	Errors         []RowError  `json:"errors"`
	CreatedIDs     []uuid.UUID `json:"created_ids,omitempty"`
}

type tableData struct {
	headers        []string
	rows           [][]string
	headerRowIndex int
}

// Ingest reads the uploaded file, maps its columns onto registry fields, and
// creates one entity per valid row. Invalid rows are reported, not fatal.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{
		MappedColumns:  []string{},
		IgnoredColumns: []string{},
		Errors:         []RowError{},
	}

	if req.OrganizationID == uuid.Nil {
		return summary, fmt.Errorf("%w: organization id is required", ErrInvalidUpload)
	}
	if req.Data == nil {
		return summary, fmt.Errorf("%w: data reader is required", ErrInvalidUpload)
	}
	defs, err := s.fields.FieldsFor(req.EntityType)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}

	table, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}

	columns := mapColumns(table.headers, defs)
	for i, header := range table.headers {
		if columns[i] == nil {
			summary.IgnoredColumns = append(summary.IgnoredColumns, header)
			continue
		}
		summary.MappedColumns = append(summary.MappedColumns, columns[i].Name)
	}
	if len(summary.MappedColumns) == 0 {
		return summary, fmt.Errorf("%w: no column matches a %s field", ErrInvalidUpload, req.EntityType)
	}

	summary.TotalRows = len(table.rows)
	for rowIdx, row := range table.rows {
		rowNumber := table.headerRowIndex + rowIdx + 2 // include header row (1-based)

		properties, err := s.rowProperties(req.EntityType, columns, row)
		if err != nil {
			summary.reject(rowNumber, err)
			continue
		}

		if req.DryRun {
			summary.ValidRows++
			continue
		}

		created, err := s.entities.Create(ctx, domain.NewEntity(req.OrganizationID, req.EntityType, properties))
		if err != nil {
			return summary, fmt.Errorf("failed to insert entity from row %d: %w", rowNumber, err)
		}
		summary.ValidRows++
		summary.CreatedIDs = append(summary.CreatedIDs, created.ID)
	}

	importedRows.WithLabelValues(string(req.EntityType), "valid").Add(float64(summary.ValidRows))
	importedRows.WithLabelValues(string(req.EntityType), "invalid").Add(float64(summary.InvalidRows))
	s.logger.Info("import finished",
		zap.String("organization_id", req.OrganizationID.String()),
		zap.String("entity_type", string(req.EntityType)),
		zap.String("file", req.FileName),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("total_rows", summary.TotalRows),
		zap.Int("valid_rows", summary.ValidRows),
		zap.Int("invalid_rows", summary.InvalidRows),
	)
	return summary, nil
}

func (s *Summary) reject(row int, err error) {
	s.InvalidRows++
	s.Errors = append(s.Errors, RowError{Row: row, Message: err.Error()})
}

func (s *Service) rowProperties(entityType domain.EntityType, columns []*domain.FieldDefinition, row []string) (map[string]any, error) {
	properties := make(map[string]any)
	for colIdx, field := range columns {
		if field == nil || colIdx >= len(row) {
			continue
		}
		raw := strings.TrimSpace(row[colIdx])
		if raw == "" {
			continue
		}
		value, err := coerceValue(*field, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		properties[field.Name] = value
	}

	result, err := s.properties.ValidateProperties(entityType, properties)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return properties, nil
}

// mapColumns matches sanitized headers to fields by name, then by label.
// System fields and repeated fields are left unmapped.
func mapColumns(headers []string, defs []domain.FieldDefinition) []*domain.FieldDefinition {
	byKey := make(map[string]*domain.FieldDefinition, len(defs)*2)
	for i := range defs {
		def := &defs[i]
		if def.System {
			continue
		}
		byKey[strings.ToLower(def.Name)] = def
		if def.Label != "" {
			label := sanitizeHeaders([]string{def.Label})[0]
			if _, taken := byKey[strings.ToLower(label)]; !taken {
				byKey[strings.ToLower(label)] = def
			}
		}
	}

	columns := make([]*domain.FieldDefinition, len(headers))
	used := make(map[string]bool)
	for i, header := range headers {
		def, ok := byKey[strings.ToLower(header)]
		if !ok || used[def.Name] {
			continue
		}
		used[def.Name] = true
		columns[i] = def
	}
	return columns
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to read csv: %v", ErrInvalidUpload, err)
	}
	return normalizeTable(records, headerRowIndex)
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrInvalidUpload, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, fmt.Errorf("%w: excel file has no sheets", ErrInvalidUpload)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows, headerRowIndex)
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, fmt.Errorf("%w: no rows found in file", ErrInvalidUpload)
	}

	var headerRow []string
	var dataRows [][]string
	headerIndex := -1

	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("%w: header row index %d out of range", ErrInvalidUpload, *headerRowIndex)
		}
		if isBlankRow(records[*headerRowIndex]) {
			return tableData{}, fmt.Errorf("%w: selected header row %d is empty", ErrInvalidUpload, *headerRowIndex+1)
		}
		headerRow = records[*headerRowIndex]
		headerIndex = *headerRowIndex
		dataRows = records[*headerRowIndex+1:]
	} else {
		for idx, row := range records {
			if isBlankRow(row) {
				continue
			}
			headerRow = row
			headerIndex = idx
			dataRows = records[idx+1:]
			break
		}
	}

	if headerRow == nil {
		return tableData{}, fmt.Errorf("%w: header row could not be detected", ErrInvalidUpload)
	}

	headers := sanitizeHeaders(headerRow)
	rows := make([][]string, 0, len(dataRows))
	for _, row := range dataRows {
		if isBlankRow(row) {
			continue
		}
		rows = append(rows, padRow(row, len(headers)))
	}

	return tableData{
		headers:        headers,
		rows:           rows,
		headerRowIndex: headerIndex,
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.TrimSpace(value)
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

// coerceValue converts a cell into the JSON shape stored for the field.
func coerceValue(field domain.FieldDefinition, raw string) (any, error) {
	switch field.Type {
	case domain.FieldTypeText:
		return raw, nil
	case domain.FieldTypeEnum:
		for _, opt := range field.Options {
			if strings.EqualFold(opt, raw) {
				return opt, nil
			}
		}
		return raw, nil
	case domain.FieldTypeNumber:
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to number", raw)
		}
		return f, nil
	case domain.FieldTypeBoolean:
		value := strings.ToLower(raw)
		switch value {
		case "1", "yes", "y":
			return true, nil
		case "0", "no", "n":
			return false, nil
		}
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to boolean", raw)
		}
		return boolVal, nil
	case domain.FieldTypeDate:
		ts, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to coerce %q to date: %w", raw, err)
		}
		return ts.UTC().Format(time.RFC3339), nil
	case domain.FieldTypeTags:
		parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
		tags := make([]any, 0, len(parts))
		for _, part := range parts {
			if tag := strings.TrimSpace(part); tag != "" {
				tags = append(tags, tag)
			}
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("field type %q cannot be imported", field.Type)
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
