// Package web provides HTTP request and response types for the query API.
package web

import (
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/workflow"
)

// QueryRequest represents the request body for submitting a question.
type QueryRequest struct {
	Question    string `json:"question"              validate:"required,min=3"`
	PrincipalID string `json:"principal_id"          validate:"required"`
	SessionID   string `json:"session_id,omitempty"`
	Provider    string `json:"provider,omitempty"    validate:"omitempty,oneof=openai anthropic"`
}

// ConfirmRequest represents the request body for deciding a suspended query.
// An approved decision may carry a user-edited statement, which is
// re-validated before execution.
type ConfirmRequest struct {
	Approved      bool   `json:"approved"`
	ModifiedQuery string `json:"modified_query,omitempty"`
	DecidedBy     string `json:"decided_by,omitempty"`
}

// QueryResponse represents the outcome of a query, whether completed or
// paused for confirmation.
type QueryResponse struct {
	QueryID      string              `json:"query_id"`
	Status       string              `json:"status"`
	SQL          string              `json:"sql,omitempty"`
	Explanation  string              `json:"explanation,omitempty"`
	Message      string              `json:"message,omitempty"`
	Format       string              `json:"format,omitempty"`
	Rows         []map[string]any    `json:"rows,omitempty"`
	Columns      []models.ColumnMeta `json:"columns,omitempty"`
	TotalRows    int                 `json:"total_rows,omitempty"`
	ReturnedRows int                 `json:"returned_rows,omitempty"`
	Truncated    bool                `json:"truncated,omitempty"`
	ElapsedMs    int64               `json:"elapsed_ms,omitempty"`
}

// TransformOutcome flattens an engine outcome into the API response shape.
func TransformOutcome(outcome *workflow.Outcome) QueryResponse {
	response := QueryResponse{
		QueryID:     outcome.QueryID,
		Status:      string(outcome.Status),
		SQL:         outcome.SQL,
		Explanation: outcome.Explanation,
		Message:     outcome.Message,
		Format:      string(outcome.Format),
	}

	if outcome.Context != nil && outcome.Status == workflow.StatusCompleted {
		exec := outcome.Context.Execution
		response.Rows = exec.Rows
		response.Columns = exec.Columns
		response.TotalRows = exec.TotalRows
		response.ReturnedRows = exec.ReturnedRows
		response.Truncated = exec.Truncated
		response.ElapsedMs = exec.ElapsedMs
	}

	return response
}
