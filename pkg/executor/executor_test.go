package executor

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecuteRejectsNonSelect(t *testing.T) {
	e := New(nil, 0, 0, slog.Default())

	tests := []string{
		"DELETE FROM orders",
		"UPDATE orders SET total = 0",
		"EXPLAIN SELECT * FROM orders",
		"WITH doomed AS (SELECT id FROM orders) DELETE FROM orders",
		"",
	}

	for _, sql := range tests {
		_, err := e.Execute(t.Context(), "q1", sql)
		assert.ErrorIs(t, err, ErrNotReadOnly, sql)
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "hello", normalizeValue([]byte("hello")))
	assert.Equal(t, int64(42), normalizeValue(float64(42)))
	assert.Equal(t, 42.5, normalizeValue(42.5))
	assert.Equal(t, int64(7), normalizeValue(int64(7)))
	assert.Nil(t, normalizeValue(nil))
}

func TestInferColumns(t *testing.T) {
	rows := []map[string]any{
		{"id": int64(1), "total": 10.5, "active": true, "note": "a", "missing": nil},
		{"id": int64(2), "total": 11.0, "active": false, "note": "b", "missing": nil},
	}

	columns := inferColumns([]string{"id", "total", "active", "note", "missing"}, rows)

	byName := make(map[string]string, len(columns))
	nullable := make(map[string]bool, len(columns))

	for _, c := range columns {
		byName[c.Name] = c.DataType
		nullable[c.Name] = c.Nullable
	}

	assert.Equal(t, "integer", byName["id"])
	assert.Equal(t, "numeric", byName["total"])
	assert.Equal(t, "boolean", byName["active"])
	assert.Equal(t, "text", byName["note"])
	assert.Equal(t, "unknown", byName["missing"])
	assert.True(t, nullable["missing"])
	assert.False(t, nullable["id"])
}

func TestInferTypeMixedFallsBackToText(t *testing.T) {
	rows := []map[string]any{
		{"v": int64(1)},
		{"v": "two"},
	}

	assert.Equal(t, "text", inferType("v", rows))
}

func TestInferTypeWidensIntegerAndNumeric(t *testing.T) {
	// A numeric column whose first sampled value is whole arrives as int64
	// after normalization. The column stays numeric, not text.
	rows := []map[string]any{
		{"v": normalizeValue(11.0)},
		{"v": normalizeValue(10.5)},
	}

	assert.Equal(t, "numeric", inferType("v", rows))

	rows = []map[string]any{
		{"v": normalizeValue(10.5)},
		{"v": normalizeValue(11.0)},
	}

	assert.Equal(t, "numeric", inferType("v", rows))
}

func TestTypeOfTemporal(t *testing.T) {
	midnight := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	stamped := time.Date(2026, 3, 1, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "date", typeOf(midnight))
	assert.Equal(t, "timestamp", typeOf(stamped))
	assert.Equal(t, "date", typeOf("2026-03-01"))
	assert.Equal(t, "time", typeOf("14:30:00"))
	assert.Equal(t, "timestamp", typeOf("2026-03-01T14:30:00Z"))
	assert.Equal(t, "text", typeOf("plain value"))
}
