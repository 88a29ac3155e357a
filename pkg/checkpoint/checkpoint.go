// Package checkpoint persists suspended query contexts between the moment a
// workflow pauses for human confirmation and the moment a decision arrives.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/askdb/askdb/pkg/models"
)

// DefaultTTL bounds how long a suspended workflow waits for a decision. An
// expired checkpoint is treated as abandoned.
const DefaultTTL = 30 * time.Minute

// ErrNotFound marks a checkpoint that does not exist or has expired.
var ErrNotFound = errors.New("checkpoint not found")

// IsNotFound checks if an error is a missing checkpoint.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store saves and restores suspended query contexts by query ID.
type Store interface {
	Save(ctx context.Context, queryID string, state *models.QueryContext) error
	Load(ctx context.Context, queryID string) (*models.QueryContext, error)
	Delete(ctx context.Context, queryID string) error
}
