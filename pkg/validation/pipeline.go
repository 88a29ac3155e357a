package validation

import (
	"context"
	"log/slog"

	"github.com/askdb/askdb/pkg/models"
)

// Layer identifies which validation layer blocked a statement.
type Layer string

const (
	LayerNone       Layer = "none"
	LayerKeyword    Layer = "keyword"
	LayerSchema     Layer = "schema"
	LayerPermission Layer = "permission"
	LayerSemantic   Layer = "semantic"
)

// Result is the combined outcome of a pipeline run.
type Result struct {
	Valid       bool
	BlockedAt   Layer
	Diagnostics []string
}

// Authorizer re-checks table-level access for a statement. The pipeline calls
// it with the tables the generation step was allowed to see, so a statement
// that escaped the filtered schema still cannot reach restricted tables.
type Authorizer interface {
	Authorize(sql string, accessibleTables []string) error
}

// Pipeline runs the validation layers cheapest-first and stops at the first
// failure. Layer order also encodes trust: by the time the LLM judge runs,
// the statement is already lexically read-only, schema-resolved and inside
// the caller's permission envelope.
type Pipeline struct {
	semantic   *SemanticValidator
	authorizer Authorizer
	logger     *slog.Logger
}

// NewPipeline assembles the validation pipeline.
func NewPipeline(semantic *SemanticValidator, authorizer Authorizer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		semantic:   semantic,
		authorizer: authorizer,
		logger:     logger.With("module", "validation"),
	}
}

// Run validates sql against the snapshot and the caller's accessible tables.
func (p *Pipeline) Run(
	ctx context.Context,
	sql, question string,
	snapshot *models.SchemaSnapshot,
	accessibleTables []string,
) Result {
	if kw := ValidateKeywords(sql); !kw.Valid {
		p.logger.InfoContext(ctx, "Query blocked by keyword layer",
			"keywords", kw.DetectedKeywords)

		return Result{BlockedAt: LayerKeyword, Diagnostics: []string{kw.Message}}
	}

	if sc := ValidateSchema(sql, snapshot); !sc.Valid {
		p.logger.InfoContext(ctx, "Query blocked by schema layer",
			"unknown_tables", sc.UnknownTables,
			"unknown_columns", sc.UnknownColumns)

		return Result{BlockedAt: LayerSchema, Diagnostics: []string{sc.Message}}
	}

	if err := p.authorizer.Authorize(sql, accessibleTables); err != nil {
		p.logger.WarnContext(ctx, "Query blocked by permission re-check",
			"error", err)

		return Result{BlockedAt: LayerPermission, Diagnostics: []string{err.Error()}}
	}

	if sem := p.semantic.Validate(ctx, sql, question); !sem.Valid {
		p.logger.InfoContext(ctx, "Query blocked by semantic layer",
			"reason", sem.Reason)

		return Result{BlockedAt: LayerSemantic, Diagnostics: []string{sem.Message}}
	}

	return Result{Valid: true, BlockedAt: LayerNone}
}
