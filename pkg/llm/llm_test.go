package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/askdb/askdb/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply string
	err   error
	last  string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, _, userPrompt string) (string, error) {
	f.last = userPrompt

	return f.reply, f.err
}

func TestNewProvider(t *testing.T) {
	cfg := Config{OpenAIAPIKey: "k1", AnthropicAPIKey: "k2"}

	p, err := NewProvider(models.ProviderOpenAI, cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(models.ProviderAnthropic, cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = NewProvider("mistral", cfg)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestParseGeneration(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		sql         string
		explanation string
		err         error
	}{
		{
			name:        "fenced reply",
			reply:       "```sql\nSELECT id FROM orders\n```\nLists every order id.",
			sql:         "SELECT id FROM orders",
			explanation: "Lists every order id.",
		},
		{
			name:  "fenceless select accepted",
			reply: "SELECT count(*) FROM customers",
			sql:   "SELECT count(*) FROM customers",
		},
		{
			name:  "fenceless cte accepted",
			reply: "WITH x AS (SELECT 1) SELECT * FROM x",
			sql:   "WITH x AS (SELECT 1) SELECT * FROM x",
		},
		{
			name:  "prose only rejected",
			reply: "I cannot answer that question from this schema.",
			err:   ErrNoSQL,
		},
		{
			name:  "empty fence rejected",
			reply: "```sql\n```",
			err:   ErrNoSQL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generation, err := parseGeneration(tt.reply)

			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.sql, generation.SQL)
			assert.Equal(t, tt.explanation, generation.Explanation)
		})
	}
}

func TestGeneratorFeedsBackDiagnostics(t *testing.T) {
	provider := &fakeProvider{reply: "```sql\nSELECT id FROM orders\n```"}
	g := NewGenerator(provider, slog.Default())

	snapshot := &models.SchemaSnapshot{Tables: []models.TableInfo{{Name: "orders"}}}

	_, err := g.Generate(t.Context(), "list orders", snapshot,
		[]string{"unknown tables: invoices"})
	require.NoError(t, err)

	assert.Contains(t, provider.last, "unknown tables: invoices")
	assert.Contains(t, provider.last, "list orders")
	assert.Contains(t, provider.last, "Table orders")
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		safe    bool
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"verdict": "safe", "confidence": 0.95, "reason": "matches the question"}`,
			safe:  true,
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"verdict\": \"unsafe\", \"confidence\": 0.9, \"reason\": \"bulk export\"}\n```",
		},
		{
			name:    "missing field rejected",
			reply:   `{"verdict": "safe", "confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "unknown verdict rejected",
			reply:   `{"verdict": "maybe", "confidence": 0.9, "reason": "?"}`,
			wantErr: true,
		},
		{
			name:    "prose rejected",
			reply:   "Looks fine to me!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := parseVerdict(tt.reply)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.safe, verdict.Safe)
		})
	}
}

func TestSafetyJudgePropagatesProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	judge := NewSafetyJudge(provider, slog.Default())

	_, err := judge.Review(t.Context(), "SELECT 1", "anything")
	assert.Error(t, err)
}
