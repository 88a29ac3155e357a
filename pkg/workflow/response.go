package workflow

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/validation"
)

// formatResponse turns the final query context into the user-facing answer.
// The checks mirror the lifecycle order so the earliest failure wins.
func formatResponse(qc *models.QueryContext) (string, models.ResponseFormat) {
	if len(qc.Auth.AccessibleTables) == 0 {
		return ErrNoAccessibleTables.Error(), models.FormatError
	}

	if qc.Confirmation.Approval == models.ApprovalRejected {
		return "query execution was cancelled", models.FormatError
	}

	if qc.Generation.SQL == "" {
		return ErrGenerationFailed.Error(), models.FormatError
	}

	if !qc.Validation.Valid {
		message := "the generated query did not pass validation"
		if len(qc.Validation.Diagnostics) > 0 {
			message = strings.Join(qc.Validation.Diagnostics, "; ")
		}

		return message, models.FormatError
	}

	if qc.Execution.ExecutionErr != "" {
		return qc.Execution.ExecutionErr, models.FormatError
	}

	return formatSuccess(qc)
}

// formatSuccess renders an executed result. A single scalar reads better as
// a sentence; everything else is announced as a table, with the rows carried
// alongside in the execution context.
func formatSuccess(qc *models.QueryContext) (string, models.ResponseFormat) {
	exec := qc.Execution

	if exec.TotalRows == 0 {
		return "the query ran successfully but returned no rows", models.FormatSummary
	}

	if exec.TotalRows == 1 && len(exec.Columns) == 1 && len(exec.Rows) == 1 {
		value := exec.Rows[0][exec.Columns[0].Name]

		return fmt.Sprintf("%s: %v", exec.Columns[0].Name, value), models.FormatSummary
	}

	message := fmt.Sprintf("query returned %d rows", exec.TotalRows)
	if exec.Truncated {
		message = fmt.Sprintf("query returned %d rows, showing the first %d",
			exec.TotalRows, exec.ReturnedRows)
	}

	return message, models.FormatTable
}

// failureStage names the stage responsible for a failed response, for the
// lifecycle event stream.
func failureStage(qc *models.QueryContext) string {
	switch {
	case len(qc.Auth.AccessibleTables) == 0:
		return "permissions"
	case qc.Confirmation.Approval == models.ApprovalRejected:
		return "confirmation"
	case qc.Generation.SQL == "":
		return "generation"
	case !qc.Validation.Valid:
		return "validation:" + validationLayer(qc)
	case qc.Execution.ExecutionErr != "":
		return "execution"
	default:
		return "response"
	}
}

func validationLayer(qc *models.QueryContext) string {
	if qc.Validation.BlockedAt == "" {
		return string(validation.LayerNone)
	}

	return qc.Validation.BlockedAt
}
