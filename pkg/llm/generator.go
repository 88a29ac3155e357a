package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/sqlscan"
)

// ErrNoSQL marks a completion that contained no recognizable SQL statement.
var ErrNoSQL = errors.New("completion contained no sql statement")

const generatorSystemPrompt = `You are an expert PostgreSQL analyst. Given a database schema and a question, write one read-only SQL query that answers it.

Rules:
- Produce exactly one SELECT statement (WITH clauses are allowed).
- Use only the tables and columns listed in the schema.
- Never modify data and never reference system catalogs.
- Reply with the SQL inside a ` + "```sql" + ` code fence, followed by a one-sentence explanation of what the query does.`

var reSQLFence = regexp.MustCompile("(?is)```sql\\s*(.*?)```")

// Generation is one parsed generator reply.
type Generation struct {
	SQL         string
	Explanation string
}

// Generator turns a natural-language question into a candidate SQL statement
// using the schema the caller is permitted to see.
type Generator struct {
	provider Provider
	logger   *slog.Logger
}

// NewGenerator builds a generator over a provider.
func NewGenerator(provider Provider, logger *slog.Logger) *Generator {
	return &Generator{provider: provider, logger: logger.With("module", "llm")}
}

// Generate produces a candidate statement. On a retry the previous attempt's
// diagnostics are fed back so the model can correct the specific failure.
func (g *Generator) Generate(
	ctx context.Context,
	question string,
	snapshot *models.SchemaSnapshot,
	diagnostics []string,
) (Generation, error) {
	var prompt strings.Builder

	prompt.WriteString("Database schema:\n\n")
	prompt.WriteString(snapshot.PromptText())
	prompt.WriteString("\n\nQuestion: ")
	prompt.WriteString(question)

	if len(diagnostics) > 0 {
		prompt.WriteString("\n\nYour previous query was rejected:\n")

		for _, d := range diagnostics {
			prompt.WriteString("- ")
			prompt.WriteString(d)
			prompt.WriteString("\n")
		}

		prompt.WriteString("Write a corrected query.")
	}

	reply, err := g.provider.Complete(ctx, generatorSystemPrompt, prompt.String())
	if err != nil {
		return Generation{}, fmt.Errorf("generating sql: %w", err)
	}

	generation, err := parseGeneration(reply)
	if err != nil {
		g.logger.WarnContext(ctx, "Generator reply contained no sql",
			"provider", g.provider.Name())

		return Generation{}, err
	}

	return generation, nil
}

// parseGeneration pulls the statement out of a fenced reply. A fenceless
// reply that starts with SELECT or WITH is accepted whole, since smaller
// models frequently drop the fence.
func parseGeneration(reply string) (Generation, error) {
	if m := reSQLFence.FindStringSubmatchIndex(reply); m != nil {
		sql := strings.TrimSpace(reply[m[2]:m[3]])
		explanation := strings.TrimSpace(reply[:m[0]] + reply[m[1]:])

		if sql == "" {
			return Generation{}, ErrNoSQL
		}

		return Generation{SQL: sql, Explanation: explanation}, nil
	}

	trimmed := strings.TrimSpace(reply)

	switch sqlscan.FirstKeyword(trimmed) {
	case "SELECT", "WITH":
		return Generation{SQL: trimmed}, nil
	}

	return Generation{}, ErrNoSQL
}
