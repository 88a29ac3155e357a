// Package workflow orchestrates the query lifecycle as an explicit state
// machine: schema retrieval, generation, validation, optional human
// confirmation, execution and response formatting, with bounded retries and
// suspend/resume around the confirmation step.
package workflow

import "github.com/askdb/askdb/pkg/models"

// State names one stage of the query lifecycle.
type State string

const (
	StateRetrieveSchema State = "retrieve_schema"
	StateGenerate       State = "generate"
	StateValidate       State = "validate"
	StateConfirm        State = "confirm"
	StateExecute        State = "execute"
	StateRespond        State = "respond"
	StateDone           State = "done"
)

// MaxValidationRetries bounds how many generation attempts a single query
// gets. The counter increments on generation, never on validation, so a
// resumed query does not burn extra attempts.
const MaxValidationRetries = 3

// retryableLayers are the validation layers whose failures are worth another
// generation attempt: the model can rework a query the semantic judge
// disliked, but denylisted keywords, unknown tables and permission denials
// are terminal for the current request.
var retryableLayers = map[string]struct{}{
	"semantic": {},
}

// Next is the pure transition function: given the stage that just ran and
// the current context, it returns the stage to run next. Keeping it free of
// side effects makes every routing decision testable in isolation.
func Next(current State, qc *models.QueryContext) State {
	switch current {
	case StateRetrieveSchema:
		if len(qc.Auth.AccessibleTables) == 0 {
			return StateRespond
		}

		return StateGenerate

	case StateGenerate:
		if qc.Generation.SQL == "" {
			if qc.Generation.Attempt < MaxValidationRetries {
				return StateGenerate
			}

			return StateRespond
		}

		return StateValidate

	case StateValidate:
		if qc.Validation.Valid {
			if qc.Confirmation.Approval == models.ApprovalPending {
				return StateConfirm
			}

			return StateExecute
		}

		if _, retryable := retryableLayers[qc.Validation.BlockedAt]; retryable &&
			qc.Generation.Attempt < MaxValidationRetries {
			return StateGenerate
		}

		return StateRespond

	case StateConfirm:
		switch qc.Confirmation.Approval {
		case models.ApprovalRejected:
			return StateRespond
		case models.ApprovalGranted:
			if !qc.Validation.Valid {
				// The user edited the statement; it must re-earn validation.
				return StateValidate
			}

			return StateExecute
		default:
			return StateConfirm
		}

	case StateExecute:
		return StateRespond

	case StateRespond:
		return StateDone
	}

	return StateDone
}
