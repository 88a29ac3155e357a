// Package sqlscan provides lexical extraction heuristics for SQL statements:
// comment and string-literal stripping, table reference extraction from
// FROM/JOIN/INTO/UPDATE clauses, alias resolution, and column reference
// extraction from SELECT lists and WHERE clauses.
//
// This is deliberately not a SQL parser. Deeply nested subqueries, dynamic
// SQL and unusual quoting can evade extraction; callers that gate security
// decisions on these results must fail closed when extraction comes up empty
// for a non-trivial statement.
package sqlscan

import (
	"regexp"
	"strings"
)

var (
	reLineComment  = regexp.MustCompile(`--[^\n]*`)
	reBlockComment = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	reLiteral      = regexp.MustCompile(`'(?:[^']|'')*'`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	reFirstWord    = regexp.MustCompile(`^\s*([A-Za-z_]+)`)

	reFromClause = regexp.MustCompile(`(?i)\bfrom\s+((?:[a-z_][a-z0-9_]*(?:\s+(?:as\s+)?[a-z_][a-z0-9_]*)?\s*,\s*)*[a-z_][a-z0-9_]*(?:\s+(?:as\s+)?[a-z_][a-z0-9_]*)?)`)
	reJoinClause = regexp.MustCompile(`(?i)\bjoin\s+([a-z_][a-z0-9_]*)(?:\s+(?:as\s+)?([a-z_][a-z0-9_]*))?`)
	reIntoClause = regexp.MustCompile(`(?i)\binto\s+([a-z_][a-z0-9_]*)`)
	reUpdateStmt = regexp.MustCompile(`(?i)\bupdate\s+([a-z_][a-z0-9_]*)`)

	reQualifiedCol  = regexp.MustCompile(`\b([a-z_][a-z0-9_]*)\.([a-z_][a-z0-9_]*)\b`)
	reSelectClause  = regexp.MustCompile(`(?is)\bselect\s+(.*?)\s*\bfrom\b`)
	reWhereClause   = regexp.MustCompile(`(?is)\bwhere\s+(.*?)(?:\bgroup\s+by\b|\border\s+by\b|\blimit\b|\bhaving\b|$)`)
	reWhereIdent    = regexp.MustCompile(`\b([a-z_][a-z0-9_]*)\s*(?:[=<>!]|\bbetween\b|\blike\b|\bin\b|\bis\b)`)
	reTrailingAlias = regexp.MustCompile(`(?i)\s+as\s+[a-z_][a-z0-9_]*$`)
	reIdentifier    = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// reservedWords are identifiers the clause regexes can capture by accident
// (e.g. "FROM (SELECT ..." or alias positions holding keywords).
var reservedWords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "join": {}, "inner": {}, "outer": {},
	"left": {}, "right": {}, "full": {}, "cross": {}, "on": {}, "as": {},
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {}, "null": {}, "like": {},
	"between": {}, "group": {}, "order": {}, "by": {}, "limit": {}, "offset": {},
	"having": {}, "union": {}, "all": {}, "distinct": {}, "case": {}, "when": {},
	"then": {}, "else": {}, "end": {}, "exists": {}, "lateral": {}, "with": {},
}

// ColumnRef is a column reference extracted from a statement. Qualifier is
// the alias or table prefix, empty for an unqualified reference.
type ColumnRef struct {
	Qualifier string
	Name      string
}

// StripComments removes -- line comments and /* */ block comments.
func StripComments(sql string) string {
	sql = reBlockComment.ReplaceAllString(sql, " ")

	return reLineComment.ReplaceAllString(sql, " ")
}

// StripLiterals replaces single-quoted string literals (with '' escapes) by
// empty literals, so denylist and reference scans never match quoted content.
func StripLiterals(sql string) string {
	return reLiteral.ReplaceAllString(sql, "''")
}

// Normalize strips comments and literals, collapses whitespace and lowers
// case. The result is what every extraction regex below operates on.
func Normalize(sql string) string {
	sql = StripComments(sql)
	sql = StripLiterals(sql)
	sql = reWhitespace.ReplaceAllString(sql, " ")

	return strings.ToLower(strings.TrimSpace(sql))
}

// FirstKeyword returns the statement's leading keyword, uppercased.
func FirstKeyword(sql string) string {
	if m := reFirstWord.FindStringSubmatch(StripComments(sql)); len(m) == 2 {
		return strings.ToUpper(m[1])
	}

	return ""
}

func isReserved(word string) bool {
	_, ok := reservedWords[word]

	return ok
}

// Tables extracts every table referenced from FROM, JOIN, INTO and UPDATE
// clauses of the statement, lowercased and deduplicated.
func Tables(sql string) []string {
	normalized := Normalize(sql)
	seen := make(map[string]struct{})

	var tables []string

	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || isReserved(name) {
			return
		}

		if _, ok := seen[name]; ok {
			return
		}

		seen[name] = struct{}{}
		tables = append(tables, name)
	}

	for _, m := range reFromClause.FindAllStringSubmatch(normalized, -1) {
		for _, entry := range strings.Split(m[1], ",") {
			fields := strings.Fields(entry)
			if len(fields) > 0 {
				add(fields[0])
			}
		}
	}

	for _, m := range reJoinClause.FindAllStringSubmatch(normalized, -1) {
		add(m[1])
	}

	for _, m := range reIntoClause.FindAllStringSubmatch(normalized, -1) {
		add(m[1])
	}

	for _, m := range reUpdateStmt.FindAllStringSubmatch(normalized, -1) {
		add(m[1])
	}

	return tables
}

// Aliases maps each alias introduced in FROM/JOIN clauses to its table name.
// Tables referenced without an alias map to themselves.
func Aliases(sql string) map[string]string {
	normalized := Normalize(sql)
	aliases := make(map[string]string)

	bind := func(table, alias string) {
		table = strings.TrimSpace(table)
		if table == "" || isReserved(table) {
			return
		}

		aliases[table] = table

		alias = strings.TrimSpace(alias)
		if alias != "" && alias != "as" && !isReserved(alias) {
			aliases[alias] = table
		}
	}

	for _, m := range reFromClause.FindAllStringSubmatch(normalized, -1) {
		for _, entry := range strings.Split(m[1], ",") {
			fields := strings.Fields(entry)

			switch len(fields) {
			case 0:
			case 1:
				bind(fields[0], "")
			case 2:
				bind(fields[0], fields[1])
			default:
				// "table AS alias"
				bind(fields[0], fields[len(fields)-1])
			}
		}
	}

	for _, m := range reJoinClause.FindAllStringSubmatch(normalized, -1) {
		bind(m[1], m[2])
	}

	return aliases
}

// SelectLists returns the normalized projection list of every SELECT in the
// statement, including subqueries.
func SelectLists(sql string) []string {
	var lists []string

	for _, m := range reSelectClause.FindAllStringSubmatch(Normalize(sql), -1) {
		lists = append(lists, strings.TrimSpace(m[1]))
	}

	return lists
}

// SelectsStar reports whether the projection list is a bare "*".
func SelectsStar(sql string) bool {
	m := reSelectClause.FindStringSubmatch(Normalize(sql))

	return len(m) == 2 && strings.TrimSpace(m[1]) == "*"
}

// Columns extracts column references from the SELECT list and WHERE clause.
// Qualified references carry their alias/table prefix; unqualified SELECT
// entries are only reported when they are plain identifiers (function calls
// and expressions are skipped rather than guessed at).
func Columns(sql string) []ColumnRef {
	normalized := Normalize(sql)
	seen := make(map[ColumnRef]struct{})

	var refs []ColumnRef

	add := func(ref ColumnRef) {
		if isReserved(ref.Name) {
			return
		}

		if _, ok := seen[ref]; ok {
			return
		}

		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	for _, m := range reQualifiedCol.FindAllStringSubmatch(normalized, -1) {
		add(ColumnRef{Qualifier: m[1], Name: m[2]})
	}

	if m := reSelectClause.FindStringSubmatch(normalized); len(m) == 2 && strings.TrimSpace(m[1]) != "*" {
		for _, expr := range strings.Split(m[1], ",") {
			expr = strings.TrimSpace(reTrailingAlias.ReplaceAllString(strings.TrimSpace(expr), ""))
			if strings.Contains(expr, ".") || !reIdentifier.MatchString(expr) {
				continue
			}

			add(ColumnRef{Name: expr})
		}
	}

	if m := reWhereClause.FindStringSubmatch(normalized); len(m) >= 2 {
		for _, ident := range reWhereIdent.FindAllStringSubmatch(m[1], -1) {
			add(ColumnRef{Name: ident[1]})
		}
	}

	return refs
}
