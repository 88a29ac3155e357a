package validation

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAuthorizer struct {
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(_ string, _ []string) error {
	f.calls++

	return f.err
}

func newTestPipeline(judge *fakeJudge, authorizer *fakeAuthorizer) *Pipeline {
	logger := slog.Default()

	return NewPipeline(NewSemanticValidator(judge, logger), authorizer, logger)
}

func TestPipelineValidQuery(t *testing.T) {
	judge := &fakeJudge{verdict: Verdict{Safe: true, Confidence: 0.9}}
	authorizer := &fakeAuthorizer{}
	pipeline := newTestPipeline(judge, authorizer)

	result := pipeline.Run(t.Context(),
		"SELECT id, total FROM orders WHERE status = 'open'",
		"show open orders", testSnapshot(), []string{"orders"})

	assert.True(t, result.Valid)
	assert.Equal(t, LayerNone, result.BlockedAt)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, 1, authorizer.calls)
	assert.Equal(t, 1, judge.calls)
}

func TestPipelineKeywordShortCircuit(t *testing.T) {
	judge := &fakeJudge{verdict: Verdict{Safe: true}}
	authorizer := &fakeAuthorizer{}
	pipeline := newTestPipeline(judge, authorizer)

	result := pipeline.Run(t.Context(), "DELETE FROM orders",
		"remove orders", testSnapshot(), []string{"orders"})

	assert.False(t, result.Valid)
	assert.Equal(t, LayerKeyword, result.BlockedAt)
	assert.NotEmpty(t, result.Diagnostics)
	assert.Zero(t, authorizer.calls, "later layers must not run after a keyword block")
	assert.Zero(t, judge.calls)
}

func TestPipelineSchemaShortCircuit(t *testing.T) {
	judge := &fakeJudge{verdict: Verdict{Safe: true}}
	authorizer := &fakeAuthorizer{}
	pipeline := newTestPipeline(judge, authorizer)

	result := pipeline.Run(t.Context(), "SELECT * FROM invoices",
		"show invoices", testSnapshot(), []string{"orders"})

	assert.False(t, result.Valid)
	assert.Equal(t, LayerSchema, result.BlockedAt)
	assert.Zero(t, authorizer.calls)
	assert.Zero(t, judge.calls)
}

func TestPipelinePermissionShortCircuit(t *testing.T) {
	judge := &fakeJudge{verdict: Verdict{Safe: true}}
	authorizer := &fakeAuthorizer{err: errors.New("access denied")}
	pipeline := newTestPipeline(judge, authorizer)

	result := pipeline.Run(t.Context(), "SELECT id FROM orders",
		"show orders", testSnapshot(), []string{"customers"})

	assert.False(t, result.Valid)
	assert.Equal(t, LayerPermission, result.BlockedAt)
	assert.Equal(t, 1, authorizer.calls)
	assert.Zero(t, judge.calls, "semantic layer must not run after a permission block")
}

func TestPipelineSemanticBlock(t *testing.T) {
	judge := &fakeJudge{verdict: Verdict{Safe: false, Confidence: 0.95, Reason: "bulk export"}}
	authorizer := &fakeAuthorizer{}
	pipeline := newTestPipeline(judge, authorizer)

	result := pipeline.Run(t.Context(), "SELECT id FROM orders",
		"dump everything", testSnapshot(), []string{"orders"})

	assert.False(t, result.Valid)
	assert.Equal(t, LayerSemantic, result.BlockedAt)
	assert.Equal(t, 1, judge.calls)
}
