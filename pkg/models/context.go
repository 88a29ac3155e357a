// Package models defines the core domain models for the text-to-SQL gatekeeping pipeline.
package models

import "time"

// Provider selects which LLM backend serves generation and semantic judging.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ResponseFormat is the shape of the final answer delivered to the user.
type ResponseFormat string

const (
	FormatTable   ResponseFormat = "table"
	FormatSummary ResponseFormat = "summary"
	FormatError   ResponseFormat = "error"
)

// Approval is the tri-state outcome of the human confirmation stage.
type Approval int

const (
	ApprovalPending Approval = iota
	ApprovalGranted
	ApprovalRejected
)

// InputContext holds the request input. Set once, immutable afterwards.
type InputContext struct {
	Question  string   `json:"question"`
	SessionID string   `json:"session_id"`
	Provider  Provider `json:"provider"`
}

// AuthContext holds the principal's authorization data. Set once at workflow
// start; the accessible-table list is never re-fetched mid-flight.
type AuthContext struct {
	PrincipalID      string   `json:"principal_id"`
	Roles            []string `json:"roles"`
	AccessibleTables []string `json:"accessible_tables"`
}

// SchemaContext is written by the schema-retrieval stage only.
type SchemaContext struct {
	Snapshot   *SchemaSnapshot `json:"snapshot,omitempty"`
	TableNames []string        `json:"table_names"`
}

// GenerationContext is written by the generation stage, re-written on retry.
type GenerationContext struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Attempt     int    `json:"attempt"`
	QueryID     string `json:"query_id"`
}

// ValidationContext is written by the validation pipeline only.
type ValidationContext struct {
	Valid       bool     `json:"valid"`
	BlockedAt   string   `json:"blocked_at,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// ConfirmationContext is written by the human-confirmation stage only.
type ConfirmationContext struct {
	Approval      Approval `json:"approval"`
	ModifiedQuery string   `json:"modified_query,omitempty"`
}

// ExecutionContext is written by the executor stage only.
type ExecutionContext struct {
	Rows         []map[string]any `json:"rows,omitempty"`
	Columns      []ColumnMeta     `json:"columns,omitempty"`
	TotalRows    int              `json:"total_rows"`
	ReturnedRows int              `json:"returned_rows"`
	Truncated    bool             `json:"truncated"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	ExecutionErr string           `json:"execution_error,omitempty"`
}

// ResponseContext holds the final formatted answer.
type ResponseContext struct {
	Message string         `json:"message"`
	Format  ResponseFormat `json:"format"`
}

// QueryContext is the mutable state threaded through one request's lifetime.
// Each section is owned by exactly one workflow stage; other stages read only.
type QueryContext struct {
	Input        InputContext        `json:"input"`
	Auth         AuthContext         `json:"auth"`
	Schema       SchemaContext       `json:"schema"`
	Generation   GenerationContext   `json:"generation"`
	Validation   ValidationContext   `json:"validation"`
	Confirmation ConfirmationContext `json:"confirmation"`
	Execution    ExecutionContext    `json:"execution"`
	Response     ResponseContext     `json:"response"`

	CreatedAt time.Time `json:"created_at"`
}

// NewQueryContext builds the initial context for one request.
func NewQueryContext(question, sessionID string, provider Provider, auth AuthContext) *QueryContext {
	if provider == "" {
		provider = ProviderOpenAI
	}

	return &QueryContext{
		Input: InputContext{
			Question:  question,
			SessionID: sessionID,
			Provider:  provider,
		},
		Auth:      auth,
		CreatedAt: time.Now().UTC(),
	}
}

// RecordGeneration stores one generation attempt. The attempt counter only
// ever increases.
func (c *QueryContext) RecordGeneration(sql, explanation, queryID string) {
	c.Generation.SQL = sql
	c.Generation.Explanation = explanation
	c.Generation.QueryID = queryID
	c.Generation.Attempt++
}

// RecordValidation stores the pipeline outcome for the current statement.
func (c *QueryContext) RecordValidation(valid bool, blockedAt string, diagnostics []string) {
	c.Validation.Valid = valid
	c.Validation.BlockedAt = blockedAt
	c.Validation.Diagnostics = diagnostics
}

// ApplyDecision merges an external confirmation decision. A user-edited query
// replaces the generated statement and invalidates the previous validation
// verdict, forcing the workflow back through the pipeline.
func (c *QueryContext) ApplyDecision(approved bool, modifiedQuery string) {
	if !approved {
		c.Confirmation.Approval = ApprovalRejected
		return
	}

	c.Confirmation.Approval = ApprovalGranted

	if modifiedQuery != "" && modifiedQuery != c.Generation.SQL {
		c.Confirmation.ModifiedQuery = modifiedQuery
		c.Generation.SQL = modifiedQuery
		c.Validation.Valid = false
		c.Validation.BlockedAt = ""
		c.Validation.Diagnostics = nil
	}
}

// RecordExecution stores the executor result.
func (c *QueryContext) RecordExecution(result *QueryResult) {
	c.Execution = ExecutionContext{
		Rows:         result.Rows,
		Columns:      result.Columns,
		TotalRows:    result.TotalRows,
		ReturnedRows: result.ReturnedRows,
		Truncated:    result.Truncated,
		ElapsedMs:    result.ElapsedMs,
	}
}

// RecordExecutionError stores a failed execution.
func (c *QueryContext) RecordExecutionError(message string) {
	c.Execution = ExecutionContext{ExecutionErr: message}
}

// RecordResponse stores the final formatted answer.
func (c *QueryContext) RecordResponse(message string, format ResponseFormat) {
	c.Response.Message = message
	c.Response.Format = format
}
