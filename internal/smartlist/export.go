package smartlist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/domain"
)

// ExportFormat selects the file format of a member export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ErrUnsupportedFormat is returned for export formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const exportSheet = "Members"

// ParseExportFormat normalizes a requested format. An empty string means CSV.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatXLSX:
		return ExportFormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Export writes the current members of a list to w, one row per entity and
// one column per registry field.
func (s *Service) Export(ctx context.Context, organizationID uuid.UUID, id uuid.UUID, format ExportFormat, w io.Writer) (int, error) {
	list, members, err := s.Members(ctx, organizationID, id)
	if err != nil {
		return 0, err
	}

	fields, err := s.catalog.FieldsFor(list.EntityType)
	if err != nil {
		return 0, fmt.Errorf("failed to load fields: %w", err)
	}

	switch format {
	case ExportFormatCSV:
		err = writeCSV(w, fields, members)
	case ExportFormatXLSX:
		err = writeXLSX(w, fields, members)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return 0, err
	}

	s.logger.Info("smart list exported",
		zap.Stringer("organization_id", organizationID),
		zap.Stringer("list_id", id),
		zap.String("format", string(format)),
		zap.Int("rows", len(members)),
	)
	return len(members), nil
}

func exportHeader(fields []domain.FieldDefinition) []string {
	header := make([]string, 0, len(fields)+1)
	header = append(header, "id")
	for _, f := range fields {
		header = append(header, f.Name)
	}
	return header
}

func writeCSV(w io.Writer, fields []domain.FieldDefinition, members []domain.Entity) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader(fields)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range members {
		record := make([]string, 0, len(fields)+1)
		record = append(record, e.ID.String())
		for _, f := range fields {
			value, _ := e.FieldValue(f.Name)
			record = append(record, formatCell(value))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, fields []domain.FieldDefinition, members []domain.Entity) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := exportHeader(fields)
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, e := range members {
		row := make([]any, 0, len(fields)+1)
		row = append(row, e.ID.String())
		for _, field := range fields {
			value, _ := e.FieldValue(field.Name)
			row = append(row, xlsxCell(value))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// formatCell renders a stored value as text. Lists are joined with "; ".
func formatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	}
	if n, ok := asNumber(value); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	if items, ok := asList(value); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = formatCell(item)
		}
		return strings.Join(parts, "; ")
	}
	return fmt.Sprint(value)
}

// xlsxCell keeps numbers and booleans native so spreadsheets can compute on them.
func xlsxCell(value any) any {
	switch v := value.(type) {
	case bool:
		return v
	case time.Time:
		return v.UTC()
	}
	if n, ok := asNumber(value); ok {
		return n
	}
	return formatCell(value)
}
