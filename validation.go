package main

import (
	"fmt"
	"regexp"
	"strings"
)

// IsSelectStatement reports whether query_database may execute sqlQuery.
// The check is textual: after trimming whitespace and lowercasing, the
// statement must begin with "select". Leading comments and trailing extra
// statements are not detected here; strict mode adds ValidateQuery for that.
func IsSelectStatement(sqlQuery string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(sqlQuery)), "select")
}

// queryRule is one forbidden pattern checked by the strict guard.
type queryRule struct {
	re   *regexp.Regexp
	desc string
}

// keywordRules builds word-boundary rules for bare SQL keywords. The boundary
// excludes underscores so that columns like created_at are not matched.
func keywordRules(keywords ...string) []queryRule {
	rules := make([]queryRule, len(keywords))
	for i, kw := range keywords {
		rules[i] = queryRule{
			re:   regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + kw + `(?:[^a-zA-Z_]|$)`),
			desc: kw,
		}
	}
	return rules
}

// patternRules compiles pattern/description pairs.
func patternRules(pairs ...string) []queryRule {
	rules := make([]queryRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		rules = append(rules, queryRule{re: regexp.MustCompile(pairs[i]), desc: pairs[i+1]})
	}
	return rules
}

// firstMatch returns the description of the first rule matching s.
func firstMatch(rules []queryRule, s string) (string, bool) {
	for _, r := range rules {
		if r.re.MatchString(s) {
			return r.desc, true
		}
	}
	return "", false
}

// commonDangerousKeywords are DML/DDL keywords blocked by all databases.
var commonDangerousKeywords = keywordRules(
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE",
)

var setStatementPattern = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)

// allowedPrefixes are the statement forms the strict guard accepts. The
// dispatcher's prefix check narrows this to SELECT for query_database.
var allowedPrefixes = []string{"SELECT ", "SHOW ", "DESCRIBE ", "DESC ", "EXPLAIN "}

// validateCommon runs validation checks shared across all database types.
// sqlQuery is the original query; cleanedSQL has strings/comments removed.
func validateCommon(sqlQuery string, cleanedSQL string) error {
	trimmed := strings.TrimSpace(sqlQuery)
	if trimmed == "" {
		return fmt.Errorf("empty query")
	}

	upper := strings.ToUpper(trimmed)

	hasAllowedPrefix := false
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(upper, prefix) || upper == strings.TrimSpace(prefix) {
			hasAllowedPrefix = true
			break
		}
	}
	if !hasAllowedPrefix {
		return fmt.Errorf("only SELECT, SHOW, DESCRIBE, and EXPLAIN queries are allowed")
	}

	if strings.Contains(cleanedSQL, ";") {
		parts := strings.SplitN(cleanedSQL, ";", 2)
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			return fmt.Errorf("multiple statements are not allowed")
		}
	}

	if kw, found := firstMatch(commonDangerousKeywords, cleanedSQL); found {
		return fmt.Errorf("query contains forbidden keyword: %s", kw)
	}

	// Block SET statements (but not column/table names containing 'set')
	if setStatementPattern.MatchString(cleanedSQL) {
		return fmt.Errorf("SET statements are not allowed")
	}

	return nil
}

// validateDialect runs validateCommon followed by the adapter's own rules.
// patterns and functions are matched against the raw query, keywords against
// the cleaned one.
func validateDialect(sqlQuery, cleaned string, patterns, functions, keywords []queryRule) error {
	if err := validateCommon(sqlQuery, cleaned); err != nil {
		return err
	}
	if desc, found := firstMatch(patterns, sqlQuery); found {
		return fmt.Errorf("query contains forbidden pattern: %s", desc)
	}
	if desc, found := firstMatch(functions, sqlQuery); found {
		return fmt.Errorf("query contains forbidden function: %s", desc)
	}
	if kw, found := firstMatch(keywords, cleaned); found {
		return fmt.Errorf("query contains forbidden keyword: %s", kw)
	}
	return nil
}

// skipLineComment advances past a comment running to end of line.
func skipLineComment(sql string, i int) int {
	for i < len(sql) && sql[i] != '\n' {
		i++
	}
	return i
}

// skipBlockComment advances past a /* */ comment starting at i.
func skipBlockComment(sql string, i int) int {
	i += 2
	for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
		i++
	}
	return i + 2
}

// skipQuoted advances past a quoted run opened at i by quote. When backslash
// is true, a backslash escapes the next byte.
func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	n := len(sql)
	i++
	for i < n {
		if sql[i] == quote {
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		}
		if backslash && sql[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		i++
	}
	return i
}

// copyDelimited copies an identifier delimited by open/close verbatim.
func copyDelimited(result *strings.Builder, sql string, i int, closer byte) int {
	n := len(sql)
	result.WriteByte(sql[i])
	i++
	for i < n && sql[i] != closer {
		result.WriteByte(sql[i])
		i++
	}
	if i < n {
		result.WriteByte(closer)
		i++
	}
	return i
}
