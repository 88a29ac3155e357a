package validation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/askdb/askdb/pkg/sqlscan"
)

// Verdict is a semantic judge's assessment of one statement.
type Verdict struct {
	Safe       bool
	Confidence float64
	Reason     string
}

// Judge reviews a statement for intent-level safety issues the lexical and
// schema layers cannot see.
type Judge interface {
	Review(ctx context.Context, sql, question string) (Verdict, error)
}

// SemanticResult is the outcome of the intent-level safety check.
type SemanticResult struct {
	Valid   bool
	Reason  string
	Message string
}

// unsafeConfidenceThreshold is the minimum judge confidence required to block
// a statement. Low-confidence "unsafe" verdicts pass through rather than
// rejecting legitimate queries on a hunch.
const unsafeConfidenceThreshold = 0.8

type suspiciousPattern struct {
	re     *regexp.Regexp
	reason string
}

var suspiciousPatterns = []suspiciousPattern{
	{regexp.MustCompile(`\bor\s+1\s*=\s*1\b`), "tautology in filter condition"},
	{regexp.MustCompile(`\bor\s+'[^']*'\s*=\s*'[^']*'`), "tautology in filter condition"},
	{regexp.MustCompile(`\b(?:pg_catalog|pg_shadow|pg_roles|pg_user)\b`), "references a system catalog"},
	{regexp.MustCompile(`\binformation_schema\b`), "references a system catalog"},
}

// reSensitiveColumn only applies to projection lists: filtering on a token
// column is ordinary, selecting its values out is not.
var reSensitiveColumn = regexp.MustCompile(`\b(?:password|passwd|secret|token|api_key|credit_card|ssn)\b`)

// SemanticValidator combines a cheap pattern pre-filter with an LLM judge.
// The judge is advisory infrastructure: if it errors or returns garbage, the
// layer passes the statement through and logs, because the keyword and schema
// layers have already enforced the hard guarantees.
type SemanticValidator struct {
	judge  Judge
	logger *slog.Logger
}

// NewSemanticValidator builds the intent-level validator around a judge.
func NewSemanticValidator(judge Judge, logger *slog.Logger) *SemanticValidator {
	return &SemanticValidator{judge: judge, logger: logger.With("module", "validation")}
}

// Validate runs the pattern pre-filter, then the judge. Pattern hits block
// immediately without spending a judge call. A judge "unsafe" verdict only
// blocks at or above the confidence threshold.
//
// Patterns match against comment- and literal-stripped text, so quoted
// content never trips the filter.
func (v *SemanticValidator) Validate(ctx context.Context, sql, question string) SemanticResult {
	cleaned := strings.ToLower(sqlscan.StripLiterals(sqlscan.StripComments(sql)))

	for _, p := range suspiciousPatterns {
		if p.re.MatchString(cleaned) {
			return SemanticResult{
				Reason:  p.reason,
				Message: fmt.Sprintf("query blocked: %s", p.reason),
			}
		}
	}

	if reSensitiveColumn.MatchString(strings.Join(sqlscan.SelectLists(sql), " ")) {
		return SemanticResult{
			Reason:  "selects a sensitive column",
			Message: "query blocked: selects a sensitive column",
		}
	}

	if hasTrailingComment(sql) {
		return SemanticResult{
			Reason:  "comment truncates the statement",
			Message: "query blocked: comment truncates the statement",
		}
	}

	if countStatements(cleaned) > 1 {
		return SemanticResult{
			Reason:  "multiple statements",
			Message: "query blocked: multiple statements are not allowed",
		}
	}

	verdict, err := v.judge.Review(ctx, sql, question)
	if err != nil {
		v.logger.WarnContext(ctx, "Semantic judge unavailable, passing query through",
			"error", err)

		return SemanticResult{Valid: true}
	}

	if !verdict.Safe && verdict.Confidence >= unsafeConfidenceThreshold {
		return SemanticResult{
			Reason:  verdict.Reason,
			Message: fmt.Sprintf("query blocked by safety review: %s", verdict.Reason),
		}
	}

	return SemanticResult{Valid: true}
}

// hasTrailingComment reports whether a -- comment cuts off the tail of the
// statement, the classic injection pattern for disabling a WHERE clause.
func hasTrailingComment(sql string) bool {
	idx := strings.Index(sql, "--")
	if idx < 0 {
		return false
	}

	rest := sql[idx:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		return strings.TrimSpace(rest[nl:]) == ""
	}

	return true
}

func countStatements(sql string) int {
	count := 0

	for _, part := range strings.Split(sql, ";") {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}

	return count
}
