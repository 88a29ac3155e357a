package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/pkg/checkpoint"
	"github.com/askdb/askdb/pkg/eventbus"
	"github.com/askdb/askdb/pkg/events"
	"github.com/askdb/askdb/pkg/executor"
	"github.com/askdb/askdb/pkg/llm"
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/otelhelper"
	"github.com/askdb/askdb/pkg/permissions"
	"github.com/askdb/askdb/pkg/validation"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotProvider serves the current schema snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, error)
}

// AccessResolver resolves a principal's roles and readable tables.
type AccessResolver interface {
	AccessibleTables(ctx context.Context, principalID string, snapshot *models.SchemaSnapshot) ([]string, []string, error)
}

// Generator produces a candidate statement from a question and the schema
// the caller may see.
type Generator interface {
	Generate(ctx context.Context, question string, snapshot *models.SchemaSnapshot, diagnostics []string) (llm.Generation, error)
}

// Validator runs the full validation pipeline over one statement.
type Validator interface {
	Run(ctx context.Context, sql, question string, snapshot *models.SchemaSnapshot, accessibleTables []string) validation.Result
}

// StatementExecutor runs one validated statement.
type StatementExecutor interface {
	Execute(ctx context.Context, queryID, statement string) (*models.QueryResult, error)
}

// Status is the engine-level outcome of a Run or Resume call.
type Status string

const (
	StatusCompleted            Status = "completed"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
)

// Outcome is what the engine hands back to the transport layer. When Status
// is StatusAwaitingConfirmation the query is checkpointed and waits for a
// Resume call with the same QueryID.
type Outcome struct {
	QueryID     string
	Status      Status
	SQL         string
	Explanation string
	Message     string
	Format      models.ResponseFormat
	Context     *models.QueryContext
}

// Config wires the engine's collaborators.
type Config struct {
	Schema              SnapshotProvider
	Access              AccessResolver
	Generators          map[models.Provider]Generator
	Validator           Validator
	Executor            StatementExecutor
	Checkpoints         checkpoint.Store
	Bus                 eventbus.EventPublisher
	Tracer              trace.Tracer
	Logger              *slog.Logger
	RequireConfirmation bool
}

// Engine drives one query through the lifecycle state machine.
type Engine struct {
	schema              SnapshotProvider
	access              AccessResolver
	generators          map[models.Provider]Generator
	validator           Validator
	executor            StatementExecutor
	checkpoints         checkpoint.Store
	bus                 eventbus.EventPublisher
	tracer              trace.Tracer
	logger              *slog.Logger
	requireConfirmation bool
}

// NewEngine builds an engine from its collaborators.
func NewEngine(cfg Config) *Engine {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("askdb.workflow")
	}

	return &Engine{
		schema:              cfg.Schema,
		access:              cfg.Access,
		generators:          cfg.Generators,
		validator:           cfg.Validator,
		executor:            cfg.Executor,
		checkpoints:         cfg.Checkpoints,
		bus:                 cfg.Bus,
		tracer:              tracer,
		logger:              cfg.Logger.With("module", "workflow"),
		requireConfirmation: cfg.RequireConfirmation,
	}
}

// Run processes one question end to end, or up to the confirmation pause.
func (e *Engine) Run(
	ctx context.Context,
	question, sessionID, principalID string,
	provider models.Provider,
) (*Outcome, error) {
	queryID := uuid.New().String()

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.QueryIDKey, queryID),
		attribute.String(otelhelper.SessionIDKey, sessionID),
		attribute.String(otelhelper.PrincipalIDKey, principalID),
		attribute.String(otelhelper.ProviderKey, string(provider)))
	defer span.End()

	snapshot, err := e.schema.Snapshot(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("retrieving schema: %w", err)
	}

	accessible, roles, err := e.access.AccessibleTables(ctx, principalID, snapshot)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("resolving access: %w", err)
	}

	qc := models.NewQueryContext(question, sessionID, provider, models.AuthContext{
		PrincipalID:      principalID,
		Roles:            roles,
		AccessibleTables: accessible,
	})
	qc.Schema = models.SchemaContext{Snapshot: snapshot, TableNames: accessible}
	qc.Generation.QueryID = queryID

	if !e.requireConfirmation {
		qc.Confirmation.Approval = models.ApprovalGranted
	}

	if _, err := e.generatorFor(qc.Input.Provider); err != nil {
		return nil, err
	}

	e.publish(ctx, queryID, events.QueryReceived{
		BaseEvent:   e.baseEvent(events.QueryReceivedEvent, qc),
		PrincipalID: principalID,
		Question:    question,
		Provider:    string(qc.Input.Provider),
	})

	e.logger.InfoContext(ctx, "Query received",
		"query_id", queryID,
		"principal_id", principalID,
		"accessible_tables", len(accessible))

	return e.drive(ctx, qc, Next(StateRetrieveSchema, qc))
}

// Resume applies a confirmation decision to a suspended query and drives it
// to completion.
func (e *Engine) Resume(
	ctx context.Context,
	queryID string,
	approved bool,
	modifiedQuery, decidedBy string,
) (*Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.resume",
		attribute.String(otelhelper.QueryIDKey, queryID))
	defer span.End()

	qc, err := e.checkpoints.Load(ctx, queryID)
	if err != nil {
		if checkpoint.IsNotFound(err) {
			return nil, ErrNotSuspended
		}

		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	if err := e.checkpoints.Delete(ctx, queryID); err != nil {
		e.logger.WarnContext(ctx, "Failed to delete consumed checkpoint",
			"query_id", queryID, "error", err)
	}

	qc.ApplyDecision(approved, modifiedQuery)

	e.publish(ctx, queryID, events.QueryConfirmationDecided{
		BaseEvent:       e.baseEvent(events.QueryConfirmationDecidedEvent, qc),
		Approved:        approved,
		Modified:        qc.Confirmation.ModifiedQuery != "",
		DecidedBy:       decidedBy,
		PauseDurationMs: time.Since(qc.CreatedAt).Milliseconds(),
	})

	e.logger.InfoContext(ctx, "Confirmation decision applied",
		"query_id", queryID,
		"approved", approved,
		"modified", qc.Confirmation.ModifiedQuery != "")

	return e.drive(ctx, qc, Next(StateConfirm, qc))
}

// drive advances the state machine until the query completes or suspends.
func (e *Engine) drive(ctx context.Context, qc *models.QueryContext, state State) (*Outcome, error) {
	for {
		switch state {
		case StateGenerate:
			if err := e.generate(ctx, qc); err != nil {
				return nil, err
			}

			state = Next(StateGenerate, qc)

		case StateValidate:
			e.validate(ctx, qc)
			state = Next(StateValidate, qc)

		case StateConfirm:
			return e.suspend(ctx, qc)

		case StateExecute:
			e.execute(ctx, qc)
			state = Next(StateExecute, qc)

		case StateRespond, StateDone:
			return e.respond(ctx, qc), nil

		default:
			return nil, fmt.Errorf("workflow reached unknown state %q", state)
		}
	}
}

func (e *Engine) generatorFor(provider models.Provider) (Generator, error) {
	g, ok := e.generators[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGenerator, provider)
	}

	return g, nil
}

func (e *Engine) generate(ctx context.Context, qc *models.QueryContext) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.generate",
		attribute.String(otelhelper.QueryIDKey, qc.Generation.QueryID),
		attribute.Int(otelhelper.AttemptKey, qc.Generation.Attempt+1))
	defer span.End()

	g, err := e.generatorFor(qc.Input.Provider)
	if err != nil {
		return err
	}

	// The generator only ever sees the schema the principal may read.
	visible := permissions.FilterSchema(qc.Schema.Snapshot, qc.Auth.AccessibleTables)

	generation, err := g.Generate(ctx, qc.Input.Question, visible, qc.Validation.Diagnostics)
	if err != nil {
		// A failed attempt still burns the attempt counter; unbounded
		// regeneration against a broken provider helps nobody.
		qc.RecordGeneration("", "", qc.Generation.QueryID)
		otelhelper.SetError(span, err)
		e.logger.WarnContext(ctx, "Generation attempt failed",
			"query_id", qc.Generation.QueryID,
			"attempt", qc.Generation.Attempt,
			"error", err)

		return nil
	}

	qc.RecordGeneration(generation.SQL, generation.Explanation, qc.Generation.QueryID)

	e.publish(ctx, qc.Generation.QueryID, events.QueryGenerated{
		BaseEvent: e.baseEvent(events.QueryGeneratedEvent, qc),
		SQL:       generation.SQL,
		Attempt:   qc.Generation.Attempt,
	})

	e.logger.InfoContext(ctx, "Statement generated",
		"query_id", qc.Generation.QueryID,
		"attempt", qc.Generation.Attempt)

	return nil
}

func (e *Engine) validate(ctx context.Context, qc *models.QueryContext) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.validate",
		attribute.String(otelhelper.QueryIDKey, qc.Generation.QueryID))
	defer span.End()

	result := e.validator.Run(ctx, qc.Generation.SQL, qc.Input.Question,
		qc.Schema.Snapshot, qc.Auth.AccessibleTables)

	qc.RecordValidation(result.Valid, string(result.BlockedAt), result.Diagnostics)

	if result.Valid {
		return
	}

	span.SetAttributes(attribute.String(otelhelper.LayerKey, string(result.BlockedAt)))

	_, retryable := retryableLayers[string(result.BlockedAt)]
	terminal := !retryable || qc.Generation.Attempt >= MaxValidationRetries

	e.publish(ctx, qc.Generation.QueryID, events.QueryBlocked{
		BaseEvent:   e.baseEvent(events.QueryBlockedEvent, qc),
		Layer:       string(result.BlockedAt),
		Diagnostics: result.Diagnostics,
		Attempt:     qc.Generation.Attempt,
		Terminal:    terminal,
	})
}

func (e *Engine) suspend(ctx context.Context, qc *models.QueryContext) (*Outcome, error) {
	queryID := qc.Generation.QueryID

	if err := e.checkpoints.Save(ctx, queryID, qc); err != nil {
		return nil, fmt.Errorf("saving checkpoint: %w", err)
	}

	e.publish(ctx, queryID, events.QueryConfirmationRequested{
		BaseEvent:   e.baseEvent(events.QueryConfirmationRequestedEvent, qc),
		SQL:         qc.Generation.SQL,
		Explanation: qc.Generation.Explanation,
	})

	e.logger.InfoContext(ctx, "Query suspended for confirmation",
		"query_id", queryID)

	return &Outcome{
		QueryID:     queryID,
		Status:      StatusAwaitingConfirmation,
		SQL:         qc.Generation.SQL,
		Explanation: qc.Generation.Explanation,
		Context:     qc,
	}, nil
}

func (e *Engine) execute(ctx context.Context, qc *models.QueryContext) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.QueryIDKey, qc.Generation.QueryID))
	defer span.End()

	result, err := e.executor.Execute(ctx, qc.Generation.QueryID, qc.Generation.SQL)
	if err != nil {
		otelhelper.SetError(span, err)
		e.logger.ErrorContext(ctx, "Execution failed",
			"query_id", qc.Generation.QueryID,
			"error", err)

		qc.RecordExecutionError(executionMessage(err))

		return
	}

	qc.RecordExecution(result)

	e.publish(ctx, qc.Generation.QueryID, events.QueryExecuted{
		BaseEvent: e.baseEvent(events.QueryExecutedEvent, qc),
		TotalRows: result.TotalRows,
		Truncated: result.Truncated,
		ElapsedMs: result.ElapsedMs,
	})
}

func (e *Engine) respond(ctx context.Context, qc *models.QueryContext) *Outcome {
	message, format := formatResponse(qc)
	qc.RecordResponse(message, format)

	if format == models.FormatError {
		e.publish(ctx, qc.Generation.QueryID, events.QueryFailed{
			BaseEvent:  e.baseEvent(events.QueryFailedEvent, qc),
			Error:      message,
			Stage:      failureStage(qc),
			DurationMs: time.Since(qc.CreatedAt).Milliseconds(),
		})
	} else {
		e.publish(ctx, qc.Generation.QueryID, events.QueryCompleted{
			BaseEvent:  e.baseEvent(events.QueryCompletedEvent, qc),
			Format:     string(format),
			DurationMs: time.Since(qc.CreatedAt).Milliseconds(),
			Attempts:   qc.Generation.Attempt,
		})
	}

	return &Outcome{
		QueryID:     qc.Generation.QueryID,
		Status:      StatusCompleted,
		SQL:         qc.Generation.SQL,
		Explanation: qc.Generation.Explanation,
		Message:     message,
		Format:      format,
		Context:     qc,
	}
}

// executionMessage maps executor errors to the user-facing messages. Driver
// detail never reaches the response.
func executionMessage(err error) string {
	switch {
	case executor.IsQueryTimeout(err):
		return executor.ErrQueryTimeout.Error()
	case errors.Is(err, executor.ErrConnection):
		return executor.ErrConnection.Error()
	case errors.Is(err, executor.ErrNotReadOnly):
		return executor.ErrNotReadOnly.Error()
	default:
		return "query execution failed"
	}
}

func (e *Engine) baseEvent(eventType events.EventType, qc *models.QueryContext) events.BaseEvent {
	base := events.NewBaseEvent(eventType, qc.Generation.QueryID)
	base.SessionID = qc.Input.SessionID

	return base
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(),
			"error", err)
	}
}
