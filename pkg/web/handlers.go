package web

import (
	"context"
	"net/http"
	"time"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/permissions"
	"github.com/askdb/askdb/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// QueryService is the engine surface the handlers depend on.
type QueryService interface {
	Run(ctx context.Context, question, sessionID, principalID string, provider models.Provider) (*workflow.Outcome, error)
	Resume(ctx context.Context, queryID string, approved bool, modifiedQuery, decidedBy string) (*workflow.Outcome, error)
}

// SchemaService serves the current schema snapshot.
type SchemaService interface {
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, error)
}

// AccessService resolves the tables a principal may read. Satisfied by
// permissions.Gate.
type AccessService interface {
	AccessibleTables(ctx context.Context, principalID string, snapshot *models.SchemaSnapshot) ([]string, []string, error)
}

type APIHandlers struct {
	queries   QueryService
	schema    SchemaService
	access    AccessService
	validator *validator.Validate
}

func NewAPIHandlers(queries QueryService, schema SchemaService, access AccessService, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		queries:   queries,
		schema:    schema,
		access:    access,
		validator: validator,
	}
}

// CreateQuery accepts a natural-language question and runs it through the
// pipeline. A 200 response is either a completed answer or an
// awaiting_confirmation outcome holding the statement to review.
func (h *APIHandlers) CreateQuery(c fiber.Ctx) error {
	var req QueryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.queries.Run(c.Context(), req.Question, req.SessionID,
		req.PrincipalID, models.Provider(req.Provider))
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(TransformOutcome(outcome))
}

// ConfirmQuery applies a confirmation decision to a suspended query.
func (h *APIHandlers) ConfirmQuery(c fiber.Ctx) error {
	queryID := c.Params("id")
	if queryID == "" {
		return badRequest(c, "Query ID is required")
	}

	var req ConfirmRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	outcome, err := h.queries.Resume(c.Context(), queryID, req.Approved,
		req.ModifiedQuery, req.DecidedBy)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(TransformOutcome(outcome))
}

// GetSchema returns the schema snapshot filtered to the tables the calling
// principal may read. A principal never learns about tables outside its
// permission envelope, not even their names.
func (h *APIHandlers) GetSchema(c fiber.Ctx) error {
	principalID := c.Query("principal_id")
	if principalID == "" {
		return badRequest(c, "principal_id is required")
	}

	snapshot, err := h.schema.Snapshot(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	accessible, _, err := h.access.AccessibleTables(c.Context(), principalID, snapshot)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(permissions.FilterSchema(snapshot, accessible))
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	_, err := h.schema.Snapshot(c.Context())

	status := "healthy"
	message := "AskDB API is healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		message = "AskDB API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
