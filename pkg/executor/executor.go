// Package executor runs validated statements against the target database
// under hard safety constraints: a read-only transaction, a server-side
// statement timeout, and row-count capping applied after the fetch so the
// true result size is preserved.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/validation"
	"github.com/lib/pq"
)

const (
	// DefaultMaxRows caps how many rows a response carries.
	DefaultMaxRows = 1000

	// DefaultTimeout is the per-statement server-side timeout.
	DefaultTimeout = 30 * time.Second

	// typeSampleSize is how many non-null values per column are inspected
	// when inferring a column's data type.
	typeSampleSize = 10

	// queryCanceledCode is the Postgres error code raised when the
	// statement timeout fires.
	queryCanceledCode = "57014"
)

var (
	// ErrNotReadOnly rejects statements that fail the keyword check. The
	// validation pipeline enforces this earlier; the executor re-checks as
	// its own last line of defense.
	ErrNotReadOnly = errors.New("only read-only statements can be executed")

	// ErrQueryTimeout marks a statement cancelled by the timeout.
	ErrQueryTimeout = errors.New("the query took too long to execute and was cancelled")

	// ErrConnection hides driver-level connection detail behind a message
	// safe to show to end users.
	ErrConnection = errors.New("database connection failed")
)

// IsQueryTimeout checks if an error is a statement timeout.
func IsQueryTimeout(err error) bool {
	return errors.Is(err, ErrQueryTimeout)
}

// Executor runs statements with the configured row cap and timeout.
type Executor struct {
	db      *sql.DB
	maxRows int
	timeout time.Duration
	logger  *slog.Logger
}

// New builds an executor. Non-positive maxRows or timeout fall back to the
// defaults.
func New(db *sql.DB, maxRows int, timeout time.Duration, logger *slog.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Executor{
		db:      db,
		maxRows: maxRows,
		timeout: timeout,
		logger:  logger.With("module", "executor"),
	}
}

// Execute runs one validated statement and returns the normalized result.
// All rows are fetched, the true total recorded, and only then is the result
// truncated to the row cap.
func (e *Executor) Execute(ctx context.Context, queryID, statement string) (*models.QueryResult, error) {
	// The pipeline already ran the keyword layer; re-checking here keeps the
	// executor safe even if it is ever called outside the workflow.
	if kw := validation.ValidateKeywords(statement); !kw.Valid {
		return nil, fmt.Errorf("%w: %s", ErrNotReadOnly, kw.Message)
	}

	started := time.Now()

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to open read-only transaction",
			"query_id", queryID, "error", err)

		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer tx.Rollback() //nolint:errcheck

	// SET LOCAL scopes the timeout to this transaction. The value cannot be
	// a bind parameter, so it is formatted from the trusted config duration.
	timeoutStmt := fmt.Sprintf("SET LOCAL statement_timeout = %d", e.timeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeoutStmt); err != nil {
		return nil, fmt.Errorf("setting statement timeout: %w", err)
	}

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return nil, e.translate(ctx, queryID, err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	var fetched []map[string]any

	for rows.Next() {
		values := make([]any, len(columnNames))
		pointers := make([]any, len(columnNames))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}

		row := make(map[string]any, len(columnNames))
		for i, name := range columnNames {
			row[name] = normalizeValue(values[i])
		}

		fetched = append(fetched, row)
	}

	if err := rows.Err(); err != nil {
		return nil, e.translate(ctx, queryID, err)
	}

	total := len(fetched)
	truncated := total > e.maxRows

	if truncated {
		fetched = fetched[:e.maxRows]
	}

	result := &models.QueryResult{
		QueryID:      queryID,
		Rows:         fetched,
		Columns:      inferColumns(columnNames, fetched),
		TotalRows:    total,
		ReturnedRows: len(fetched),
		Truncated:    truncated,
		ElapsedMs:    time.Since(started).Milliseconds(),
	}

	e.logger.InfoContext(ctx, "Query executed",
		"query_id", queryID,
		"total_rows", total,
		"truncated", truncated,
		"elapsed_ms", result.ElapsedMs)

	return result, nil
}

func (e *Executor) translate(ctx context.Context, queryID string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == queryCanceledCode {
		e.logger.WarnContext(ctx, "Query cancelled by statement timeout",
			"query_id", queryID, "timeout", e.timeout.String())

		return ErrQueryTimeout
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrQueryTimeout
	}

	return fmt.Errorf("executing query: %w", err)
}

// normalizeValue converts driver values into JSON-friendly Go types. Byte
// slices become strings, and floats that carry an exact integer are narrowed
// so counts do not render as "42.0".
func normalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < float64(math.MaxInt64) {
			return int64(v)
		}

		return v
	default:
		return value
	}
}

// inferColumns derives per-column type metadata by sampling returned values.
// Drivers report no static types for computed expressions, so sampling is
// the only source available.
func inferColumns(names []string, rows []map[string]any) []models.ColumnMeta {
	columns := make([]models.ColumnMeta, len(names))

	for i, name := range names {
		columns[i] = models.ColumnMeta{
			Name:     name,
			DataType: inferType(name, rows),
			Nullable: hasNull(name, rows),
		}
	}

	return columns
}

func inferType(name string, rows []map[string]any) string {
	inferred := ""
	sampled := 0

	for _, row := range rows {
		if sampled >= typeSampleSize {
			break
		}

		value, ok := row[name]
		if !ok || value == nil {
			continue
		}

		sampled++

		t := typeOf(value)
		if inferred == "" {
			inferred = t
			continue
		}

		if inferred == t {
			continue
		}

		// Exact floats were narrowed to int64 by normalizeValue, so a numeric
		// column can sample as a mix of integer and numeric.
		if isNumericKind(inferred) && isNumericKind(t) {
			inferred = "numeric"
			continue
		}

		return "text"
	}

	if inferred == "" {
		return "unknown"
	}

	return inferred
}

func isNumericKind(t string) bool {
	return t == "integer" || t == "numeric"
}

func typeOf(value any) string {
	switch v := value.(type) {
	case bool:
		return "boolean"
	case int64:
		return "integer"
	case float64:
		return "numeric"
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return "date"
		}

		return "timestamp"
	case string:
		return stringType(v)
	default:
		return "text"
	}
}

func stringType(v string) string {
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return "date"
	}

	if _, err := time.Parse("15:04:05", v); err == nil {
		return "time"
	}

	if _, err := time.Parse(time.RFC3339, v); err == nil {
		return "timestamp"
	}

	return "text"
}

func hasNull(name string, rows []map[string]any) bool {
	for _, row := range rows {
		if value, ok := row[name]; !ok || value == nil {
			return true
		}
	}

	return false
}
