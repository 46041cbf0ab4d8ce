package smartlist

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/engcrm/internal/domain"
)

func TestParseExportFormat(t *testing.T) {
	for raw, want := range map[string]ExportFormat{"": ExportFormatCSV, "CSV": ExportFormatCSV, " xlsx ": ExportFormatXLSX} {
		got, err := ParseExportFormat(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseExportFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "text/csv", ExportFormatCSV.ContentType())
}

func seedExport(t *testing.T) (serviceFixture, uuid.UUID, domain.Entity) {
	t.Helper()
	ctx := context.Background()
	f := newServiceFixture(t)

	ada := newContact(map[string]any{
		"first_name":        "Ada",
		"status":            "lead",
		"tags":              []any{"vip", "lead"},
		"lead_score":        42.0,
		"do_not_contact":    false,
		"last_contacted_at": "2024-02-01T09:00:00Z",
	})
	f.entities.add(ada, newContact(map[string]any{"first_name": "Grace", "status": "customer"}))

	list, err := f.service.Create(ctx, testOrg, "user-1", SmartListInput{
		Name:       "Leads",
		EntityType: "contact",
		Filters:    []domain.FilterClause{{Field: "status", Operator: domain.OperatorEquals, Value: "lead"}},
	})
	require.NoError(t, err)
	return f, list.ID, ada
}

func TestExportCSV(t *testing.T) {
	f, listID, ada := seedExport(t)

	var buf bytes.Buffer
	rows, err := f.service.Export(context.Background(), testOrg, listID, ExportFormatCSV, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header, row := records[0], records[1]
	fields, err := testRegistry(t).FieldsFor(domain.EntityTypeContact)
	require.NoError(t, err)
	require.Len(t, header, len(fields)+1)
	assert.Equal(t, "id", header[0])

	byColumn := make(map[string]string, len(header))
	for i, name := range header {
		byColumn[name] = row[i]
	}
	assert.Equal(t, ada.ID.String(), byColumn["id"])
	assert.Equal(t, "Ada", byColumn["first_name"])
	assert.Equal(t, "vip; lead", byColumn["tags"])
	assert.Equal(t, "42", byColumn["lead_score"])
	assert.Equal(t, "false", byColumn["do_not_contact"])
	assert.Equal(t, "", byColumn["email"])
	assert.Equal(t, ada.CreatedAt.Format(time.RFC3339), byColumn["created_at"])
}

func TestExportXLSX(t *testing.T) {
	f, listID, ada := seedExport(t)

	var buf bytes.Buffer
	rows, err := f.service.Export(context.Background(), testOrg, listID, ExportFormatXLSX, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { require.NoError(t, book.Close()) }()

	sheetRows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, sheetRows, 2)
	assert.Equal(t, "id", sheetRows[0][0])
	assert.Equal(t, ada.ID.String(), sheetRows[1][0])
}

func TestExportUnknownList(t *testing.T) {
	f := newServiceFixture(t)
	var buf bytes.Buffer
	_, err := f.service.Export(context.Background(), testOrg, uuid.New(), ExportFormatCSV, &buf)
	assert.Error(t, err)
	assert.Zero(t, buf.Len())
}

func TestFormatCell(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{"text", "text"},
		{true, "true"},
		{3.5, "3.5"},
		{int64(7), "7"},
		{at, "2024-05-06T07:08:09Z"},
		{[]any{"a", 1.0}, "a; 1"},
		{[]string{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatCell(tt.value))
	}
}
