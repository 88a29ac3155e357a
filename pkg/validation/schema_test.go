package validation

import (
	"testing"

	"github.com/askdb/askdb/pkg/models"
	"github.com/stretchr/testify/assert"
)

func testSnapshot() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		Version: "test",
		Tables: []models.TableInfo{
			{
				Name: "orders",
				Columns: []models.ColumnInfo{
					{Name: "id", DataType: "integer", PrimaryKey: true},
					{Name: "customer_id", DataType: "integer"},
					{Name: "total", DataType: "numeric"},
					{Name: "status", DataType: "text"},
				},
			},
			{
				Name: "customers",
				Columns: []models.ColumnInfo{
					{Name: "id", DataType: "integer", PrimaryKey: true},
					{Name: "name", DataType: "text"},
					{Name: "email", DataType: "text"},
				},
			},
		},
	}
}

func TestValidateSchema(t *testing.T) {
	snapshot := testSnapshot()

	tests := []struct {
		name           string
		sql            string
		valid          bool
		unknownTables  []string
		unknownColumns []string
	}{
		{
			name:  "known table and columns",
			sql:   "SELECT id, total FROM orders WHERE status = 'open'",
			valid: true,
		},
		{
			name:          "unknown table",
			sql:           "SELECT * FROM invoices",
			unknownTables: []string{"invoices"},
		},
		{
			name:          "all unknown tables reported",
			sql:           "SELECT * FROM invoices i JOIN shipments s ON s.invoice_id = i.id",
			unknownTables: []string{"invoices", "shipments"},
		},
		{
			name:  "select star skips column checks",
			sql:   "SELECT * FROM orders",
			valid: true,
		},
		{
			name:           "unknown qualified column",
			sql:            "SELECT o.discount FROM orders o",
			unknownColumns: []string{"orders.discount"},
		},
		{
			name:  "unqualified column valid in any referenced table",
			sql:   "SELECT email FROM orders o JOIN customers c ON c.id = o.customer_id",
			valid: true,
		},
		{
			name:           "unqualified column in no referenced table",
			sql:            "SELECT warehouse FROM orders",
			unknownColumns: []string{"warehouse"},
		},
		{
			name: "no table at all",
			sql:  "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSchema(tt.sql, snapshot)

			assert.Equal(t, tt.valid, result.Valid)
			if len(tt.unknownTables) > 0 {
				assert.ElementsMatch(t, tt.unknownTables, result.UnknownTables)
			}

			if len(tt.unknownColumns) > 0 {
				assert.ElementsMatch(t, tt.unknownColumns, result.UnknownColumns)
			}
		})
	}
}
