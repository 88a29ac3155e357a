package workflow

import "errors"

var (
	// ErrNoAccessibleTables means the principal's roles grant no readable
	// table at all. The workflow never reaches the generator in that case.
	ErrNoAccessibleTables = errors.New("you don't have permission to access the requested data")

	// ErrGenerationFailed means every allowed attempt produced no usable
	// statement.
	ErrGenerationFailed = errors.New("could not generate a valid query for this question")

	// ErrNotSuspended means the query ID has no pending confirmation, either
	// because it never paused or because the checkpoint expired.
	ErrNotSuspended = errors.New("query is not awaiting confirmation")

	// ErrUnknownGenerator means no generator is registered for the requested
	// provider.
	ErrUnknownGenerator = errors.New("no generator registered for provider")
)

// IsNotSuspended checks if an error means a missing or expired confirmation.
func IsNotSuspended(err error) bool {
	return errors.Is(err, ErrNotSuspended)
}
