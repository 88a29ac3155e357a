package sqlscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripComments(t *testing.T) {
	sql := "SELECT a -- hidden DELETE\nFROM t /* DROP TABLE x */ WHERE b = 1"
	out := StripComments(sql)

	assert.NotContains(t, out, "DELETE")
	assert.NotContains(t, out, "DROP")
	assert.Contains(t, out, "SELECT a")
	assert.Contains(t, out, "WHERE b = 1")
}

func TestStripLiterals(t *testing.T) {
	sql := "SELECT * FROM logs WHERE msg = 'please DELETE this' AND tag = 'it''s fine'"
	out := StripLiterals(sql)

	assert.NotContains(t, out, "DELETE")
	assert.NotContains(t, out, "fine")
	assert.Contains(t, out, "FROM logs")
}

func TestFirstKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", FirstKeyword("  select * from t"))
	assert.Equal(t, "WITH", FirstKeyword("WITH cte AS (SELECT 1) SELECT * FROM cte"))
	assert.Equal(t, "UPDATE", FirstKeyword("-- comment\nUPDATE t SET a=1"))
	assert.Equal(t, "", FirstKeyword("   "))
}

func TestTables(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "simple from",
			sql:  "SELECT * FROM orders",
			want: []string{"orders"},
		},
		{
			name: "join with aliases",
			sql:  "SELECT o.id FROM orders o JOIN customers AS c ON c.id = o.customer_id",
			want: []string{"orders", "customers"},
		},
		{
			name: "comma separated from list",
			sql:  "SELECT * FROM orders o, customers c WHERE o.customer_id = c.id",
			want: []string{"orders", "customers"},
		},
		{
			name: "insert into",
			sql:  "INSERT INTO audit_log (msg) VALUES ('x')",
			want: []string{"audit_log"},
		},
		{
			name: "update statement",
			sql:  "UPDATE orders SET total = 0",
			want: []string{"orders"},
		},
		{
			name: "subquery in from is not captured as a table",
			sql:  "SELECT * FROM (SELECT id FROM orders) sub",
			want: []string{"orders"},
		},
		{
			name: "table name inside literal ignored",
			sql:  "SELECT * FROM orders WHERE note = 'FROM customers'",
			want: []string{"orders"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Tables(tt.sql))
		})
	}
}

func TestAliases(t *testing.T) {
	sql := "SELECT o.id, c.name FROM orders o JOIN customers AS c ON c.id = o.customer_id"
	aliases := Aliases(sql)

	assert.Equal(t, "orders", aliases["o"])
	assert.Equal(t, "customers", aliases["c"])
	assert.Equal(t, "orders", aliases["orders"])
	assert.Equal(t, "customers", aliases["customers"])
}

func TestSelectsStar(t *testing.T) {
	assert.True(t, SelectsStar("SELECT * FROM orders"))
	assert.False(t, SelectsStar("SELECT id, total FROM orders"))
}

func TestColumns(t *testing.T) {
	sql := "SELECT o.id, name, total AS amount FROM orders o JOIN customers c ON c.id = o.customer_id WHERE status = 'open' AND o.total > 100"
	refs := Columns(sql)

	assert.Contains(t, refs, ColumnRef{Qualifier: "o", Name: "id"})
	assert.Contains(t, refs, ColumnRef{Qualifier: "c", Name: "id"})
	assert.Contains(t, refs, ColumnRef{Qualifier: "o", Name: "customer_id"})
	assert.Contains(t, refs, ColumnRef{Name: "name"})
	assert.Contains(t, refs, ColumnRef{Name: "total"})
	assert.Contains(t, refs, ColumnRef{Name: "status"})
}

func TestColumnsStarBypass(t *testing.T) {
	refs := Columns("SELECT * FROM orders WHERE id = 1")

	assert.NotContains(t, refs, ColumnRef{Name: "*"})
	assert.Contains(t, refs, ColumnRef{Name: "id"})
}
