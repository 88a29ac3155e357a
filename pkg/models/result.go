package models

// ColumnMeta describes one column of a result set. The data type is inferred
// from returned values when the driver exposes no static type information.
type ColumnMeta struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// QueryResult is the normalized outcome of one safe execution. TotalRows is
// the true fetched count; Rows is truncated to the configured cap after the
// fetch, so TotalRows reflects the real result size even when Truncated.
type QueryResult struct {
	QueryID      string           `json:"query_id"`
	Rows         []map[string]any `json:"rows"`
	Columns      []ColumnMeta     `json:"columns"`
	TotalRows    int              `json:"total_rows"`
	ReturnedRows int              `json:"returned_rows"`
	Truncated    bool             `json:"truncated"`
	ElapsedMs    int64            `json:"elapsed_ms"`
}
