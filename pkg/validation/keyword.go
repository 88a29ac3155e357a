// Package validation implements the three-layer query-safety pipeline:
// keyword denylist, schema reference checks and LLM-backed semantic review,
// composed cheapest-first with short-circuiting.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/askdb/askdb/pkg/sqlscan"
)

// DangerousKeywords is the fixed denylist applied by the keyword layer. Any
// statement containing one of these tokens outside comments and string
// literals is rejected.
var DangerousKeywords = []string{
	// DML
	"UPDATE", "DELETE", "INSERT", "TRUNCATE", "MERGE", "UPSERT",
	// DDL
	"DROP", "ALTER", "CREATE", "RENAME", "MODIFY",
	// DCL
	"GRANT", "REVOKE",
	// execution
	"EXEC", "EXECUTE", "CALL",
	// postgres maintenance
	"COPY", "VACUUM", "ANALYZE", "REINDEX", "CLUSTER", "REFRESH",
	// transaction control
	"COMMIT", "ROLLBACK", "SAVEPOINT",
	// session state
	"SET", "RESET", "LOAD",
}

var keywordPattern = buildKeywordPattern(DangerousKeywords)

func buildKeywordPattern(keywords []string) *regexp.Regexp {
	escaped := make([]string, len(keywords))
	for i, kw := range keywords {
		escaped[i] = regexp.QuoteMeta(kw)
	}

	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// KeywordResult is the outcome of the lexical safety check. Every matched
// keyword is reported, not just the first, so a retry prompt can name all
// violations at once.
type KeywordResult struct {
	Valid            bool
	DetectedKeywords []string
	Message          string
}

// ValidateKeywords rejects statements that contain denylisted keywords or do
// not start with SELECT or WITH. Comments and string literals are stripped
// first so quoted content never triggers a match. Empty input is a failure.
func ValidateKeywords(sql string) KeywordResult {
	if strings.TrimSpace(sql) == "" {
		return KeywordResult{Message: "query is empty"}
	}

	cleaned := sqlscan.StripLiterals(sqlscan.StripComments(sql))

	matches := keywordPattern.FindAllString(cleaned, -1)
	if len(matches) > 0 {
		detected := dedupeUpper(matches)

		return KeywordResult{
			DetectedKeywords: detected,
			Message: fmt.Sprintf(
				"only read-only queries are allowed; data modification is not supported (%s)",
				strings.Join(detected, ", "),
			),
		}
	}

	switch sqlscan.FirstKeyword(cleaned) {
	case "SELECT", "WITH":
	default:
		return KeywordResult{Message: "only SELECT queries are allowed"}
	}

	return KeywordResult{Valid: true}
}

func dedupeUpper(words []string) []string {
	seen := make(map[string]struct{}, len(words))

	var out []string

	for _, w := range words {
		upper := strings.ToUpper(w)
		if _, ok := seen[upper]; ok {
			continue
		}

		seen[upper] = struct{}{}
		out = append(out, upper)
	}

	return out
}
