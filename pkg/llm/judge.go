package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/askdb/askdb/pkg/validation"
	"github.com/xeipuuv/gojsonschema"
)

const judgeSystemPrompt = `You review SQL queries for safety before they run against a production database. The query has already passed keyword and schema checks; look for intent-level problems: filter-bypassing tautologies, attempts to enumerate or exfiltrate entire sensitive tables, probing of database internals, or queries that do not match the stated question.

Reply with a JSON object and nothing else:
{"verdict": "safe" or "unsafe", "confidence": number between 0 and 1, "reason": "one sentence"}`

// verdictSchema validates the judge's reply before it is trusted. A reply
// that fails validation counts as judge infrastructure failure, not as a
// verdict.
const verdictSchema = `{
	"type": "object",
	"required": ["verdict", "confidence", "reason"],
	"properties": {
		"verdict": {"type": "string", "enum": ["safe", "unsafe"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reason": {"type": "string"}
	}
}`

var (
	verdictSchemaLoader = gojsonschema.NewStringLoader(verdictSchema)
	reJSONFence         = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")
)

// SafetyJudge implements the semantic review by asking a provider for a
// structured verdict.
type SafetyJudge struct {
	provider Provider
	logger   *slog.Logger
}

// NewSafetyJudge builds a judge over a provider.
func NewSafetyJudge(provider Provider, logger *slog.Logger) *SafetyJudge {
	return &SafetyJudge{provider: provider, logger: logger.With("module", "llm")}
}

// Review asks the provider to assess the statement against the question.
func (j *SafetyJudge) Review(ctx context.Context, sql, question string) (validation.Verdict, error) {
	prompt := fmt.Sprintf("Question: %s\n\nQuery:\n%s", question, sql)

	reply, err := j.provider.Complete(ctx, judgeSystemPrompt, prompt)
	if err != nil {
		return validation.Verdict{}, fmt.Errorf("judge completion: %w", err)
	}

	verdict, err := parseVerdict(reply)
	if err != nil {
		j.logger.WarnContext(ctx, "Judge reply failed schema validation",
			"provider", j.provider.Name(), "error", err)

		return validation.Verdict{}, err
	}

	return verdict, nil
}

func parseVerdict(reply string) (validation.Verdict, error) {
	doc := strings.TrimSpace(reply)
	if m := reJSONFence.FindStringSubmatch(doc); len(m) == 2 {
		doc = strings.TrimSpace(m[1])
	}

	result, err := gojsonschema.Validate(verdictSchemaLoader, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return validation.Verdict{}, fmt.Errorf("validating verdict json: %w", err)
	}

	if !result.Valid() {
		var issues []string
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}

		return validation.Verdict{}, fmt.Errorf("verdict json invalid: %s", strings.Join(issues, "; "))
	}

	var raw struct {
		Verdict    string  `json:"verdict"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}

	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return validation.Verdict{}, fmt.Errorf("decoding verdict json: %w", err)
	}

	return validation.Verdict{
		Safe:       raw.Verdict == "safe",
		Confidence: raw.Confidence,
		Reason:     raw.Reason,
	}, nil
}
