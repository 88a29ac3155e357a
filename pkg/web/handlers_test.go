package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueryService struct {
	runOutcome    *workflow.Outcome
	runErr        error
	resumeOutcome *workflow.Outcome
	resumeErr     error

	lastQuestion  string
	lastPrincipal string
	lastQueryID   string
	lastApproved  bool
	lastModified  string
}

func (f *fakeQueryService) Run(_ context.Context, question, _, principalID string, _ models.Provider) (*workflow.Outcome, error) {
	f.lastQuestion = question
	f.lastPrincipal = principalID

	return f.runOutcome, f.runErr
}

func (f *fakeQueryService) Resume(_ context.Context, queryID string, approved bool, modifiedQuery, _ string) (*workflow.Outcome, error) {
	f.lastQueryID = queryID
	f.lastApproved = approved
	f.lastModified = modifiedQuery

	return f.resumeOutcome, f.resumeErr
}

type fakeSchemaService struct {
	snapshot *models.SchemaSnapshot
	err      error
}

func (f *fakeSchemaService) Snapshot(_ context.Context) (*models.SchemaSnapshot, error) {
	return f.snapshot, f.err
}

type fakeAccessService struct {
	accessible    map[string][]string
	err           error
	lastPrincipal string
}

func (f *fakeAccessService) AccessibleTables(_ context.Context, principalID string, _ *models.SchemaSnapshot) ([]string, []string, error) {
	f.lastPrincipal = principalID

	return f.accessible[principalID], nil, f.err
}

func newTestApp(queries *fakeQueryService, schemaSvc *fakeSchemaService, access *fakeAccessService) *fiber.App {
	if access == nil {
		access = &fakeAccessService{}
	}

	handlers := NewAPIHandlers(queries, schemaSvc, access,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	q := app.Group("/queries")
	q.Post("/", handlers.CreateQuery)
	q.Post("/:id/confirm", handlers.ConfirmQuery)

	app.Get("/schema", handlers.GetSchema)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func completedOutcome() *workflow.Outcome {
	qc := models.NewQueryContext("list orders", "s1", models.ProviderOpenAI, models.AuthContext{
		AccessibleTables: []string{"orders"},
	})
	qc.RecordGeneration("SELECT id FROM orders", "lists order ids", "q1")
	qc.RecordExecution(&models.QueryResult{
		Rows:         []map[string]any{{"id": int64(1)}},
		Columns:      []models.ColumnMeta{{Name: "id", DataType: "integer"}},
		TotalRows:    1,
		ReturnedRows: 1,
	})

	return &workflow.Outcome{
		QueryID: "q1",
		Status:  workflow.StatusCompleted,
		SQL:     "SELECT id FROM orders",
		Message: "query returned 1 rows",
		Format:  models.FormatTable,
		Context: qc,
	}
}

func TestCreateQuery(t *testing.T) {
	queries := &fakeQueryService{runOutcome: completedOutcome()}
	app := newTestApp(queries, &fakeSchemaService{snapshot: &models.SchemaSnapshot{}}, nil)

	body, _ := json.Marshal(QueryRequest{
		Question:    "list orders",
		PrincipalID: "alice",
	})

	req := httptest.NewRequest("POST", "/queries/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response QueryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))

	assert.Equal(t, "q1", response.QueryID)
	assert.Equal(t, "completed", response.Status)
	assert.Equal(t, 1, response.TotalRows)
	assert.Equal(t, "alice", queries.lastPrincipal)
}

func TestCreateQueryValidatesBody(t *testing.T) {
	app := newTestApp(&fakeQueryService{}, &fakeSchemaService{}, nil)

	body, _ := json.Marshal(QueryRequest{Question: "hi"})

	req := httptest.NewRequest("POST", "/queries/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateQueryRejectsUnknownProvider(t *testing.T) {
	app := newTestApp(&fakeQueryService{}, &fakeSchemaService{}, nil)

	body, _ := json.Marshal(QueryRequest{
		Question:    "list orders",
		PrincipalID: "alice",
		Provider:    "mistral",
	})

	req := httptest.NewRequest("POST", "/queries/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConfirmQuery(t *testing.T) {
	queries := &fakeQueryService{resumeOutcome: completedOutcome()}
	app := newTestApp(queries, &fakeSchemaService{}, nil)

	body, _ := json.Marshal(ConfirmRequest{
		Approved:      true,
		ModifiedQuery: "SELECT id, total FROM orders",
	})

	req := httptest.NewRequest("POST", "/queries/q1/confirm", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, "q1", queries.lastQueryID)
	assert.True(t, queries.lastApproved)
	assert.Equal(t, "SELECT id, total FROM orders", queries.lastModified)
}

func TestConfirmQueryNotSuspended(t *testing.T) {
	queries := &fakeQueryService{resumeErr: workflow.ErrNotSuspended}
	app := newTestApp(queries, &fakeSchemaService{}, nil)

	body, _ := json.Marshal(ConfirmRequest{Approved: true})

	req := httptest.NewRequest("POST", "/queries/gone/confirm", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetSchema(t *testing.T) {
	schemaSvc := &fakeSchemaService{snapshot: &models.SchemaSnapshot{
		Version: "v1",
		Tables: []models.TableInfo{
			{Name: "orders"},
			{Name: "customers"},
			{Name: "salaries"},
		},
	}}
	access := &fakeAccessService{accessible: map[string][]string{
		"alice": {"orders"},
	}}
	app := newTestApp(&fakeQueryService{}, schemaSvc, access)

	resp, err := app.Test(httptest.NewRequest("GET", "/schema?principal_id=alice", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var snapshot models.SchemaSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))

	assert.Equal(t, "v1", snapshot.Version)
	assert.Equal(t, "alice", access.lastPrincipal)
	require.Len(t, snapshot.Tables, 1, "tables outside the permission envelope must not appear")
	assert.Equal(t, "orders", snapshot.Tables[0].Name)
}

func TestGetSchemaRequiresPrincipal(t *testing.T) {
	app := newTestApp(&fakeQueryService{}, &fakeSchemaService{}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/schema", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(&fakeQueryService{}, &fakeSchemaService{snapshot: &models.SchemaSnapshot{}}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
