package validation

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeJudge struct {
	verdict Verdict
	err     error
	calls   int
}

func (f *fakeJudge) Review(_ context.Context, _, _ string) (Verdict, error) {
	f.calls++

	return f.verdict, f.err
}

func TestSemanticValidatorPatternPreFilter(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"tautology", "SELECT * FROM orders WHERE id = 5 OR 1=1"},
		{"quoted tautology", "SELECT * FROM orders WHERE status = 'x' OR 'a'='a'"},
		{"system catalog", "SELECT * FROM pg_catalog.pg_tables"},
		{"information schema", "SELECT table_name FROM information_schema.tables"},
		{"sensitive column", "SELECT password FROM customers"},
		{"sensitive column in subquery projection", "SELECT id FROM users WHERE EXISTS (SELECT api_key FROM credentials)"},
		{"trailing comment", "SELECT * FROM orders WHERE id = 1 --"},
		{"multiple statements", "SELECT 1; SELECT 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{verdict: Verdict{Safe: true}}
			v := NewSemanticValidator(judge, slog.Default())

			result := v.Validate(t.Context(), tt.sql, "question")

			assert.False(t, result.Valid)
			assert.Zero(t, judge.calls, "pattern hit must not spend a judge call")
		})
	}
}

func TestSemanticValidatorPreFilterIgnoresQuotedContent(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"semicolon inside literal", "SELECT id FROM logs WHERE msg = 'a;b'"},
		{"sensitive word inside literal", "SELECT id FROM logs WHERE msg = 'token expired'"},
		{"tautology inside literal", "SELECT id FROM logs WHERE msg = 'x OR 1=1'"},
		{"sensitive column in filter only", "SELECT id FROM users WHERE token IS NOT NULL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{verdict: Verdict{Safe: true}}
			v := NewSemanticValidator(judge, slog.Default())

			result := v.Validate(t.Context(), tt.sql, "question")

			assert.True(t, result.Valid)
			assert.Equal(t, 1, judge.calls, "statement should reach the judge")
		})
	}
}

func TestSemanticValidatorJudgeVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		verdict Verdict
		err     error
		valid   bool
	}{
		{
			name:    "safe verdict passes",
			verdict: Verdict{Safe: true, Confidence: 0.95},
			valid:   true,
		},
		{
			name:    "confident unsafe blocks",
			verdict: Verdict{Safe: false, Confidence: 0.9, Reason: "bulk data export"},
		},
		{
			name:    "low confidence unsafe passes",
			verdict: Verdict{Safe: false, Confidence: 0.4, Reason: "not sure"},
			valid:   true,
		},
		{
			name:  "judge error fails open",
			err:   errors.New("provider unavailable"),
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			judge := &fakeJudge{verdict: tt.verdict, err: tt.err}
			v := NewSemanticValidator(judge, slog.Default())

			result := v.Validate(t.Context(), "SELECT id FROM orders", "list orders")

			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, 1, judge.calls)
		})
	}
}
