package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/lib/pq"
)

// PostgresAdapter implements DBAdapter for PostgreSQL databases.
type PostgresAdapter struct{}

func (a *PostgresAdapter) DriverName() string { return "postgres" }

func (a *PostgresAdapter) BuildDSN() (string, error) {
	host := os.Getenv("MCP_PG_HOST")
	port := os.Getenv("MCP_PG_PORT")
	db := os.Getenv("MCP_PG_DB")
	user := os.Getenv("MCP_PG_USER")
	password := os.Getenv("MCP_PG_PASSWORD")
	sslmode := os.Getenv("MCP_PG_SSLMODE")
	if sslmode == "" {
		sslmode = "prefer"
	}

	var missing []string
	if host == "" {
		missing = append(missing, "MCP_PG_HOST")
	}
	if port == "" {
		missing = append(missing, "MCP_PG_PORT")
	}
	if db == "" {
		missing = append(missing, "MCP_PG_DB")
	}
	if user == "" {
		missing = append(missing, "MCP_PG_USER")
	}
	if password == "" {
		missing = append(missing, "MCP_PG_PASSWORD")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + db,
		RawQuery: "sslmode=" + url.QueryEscape(sslmode),
	}
	return u.String(), nil
}

// DatabaseName accepts both URL and key=value connection strings.
func (a *PostgresAdapter) DatabaseName(dsn string) string {
	if isPostgresURL(dsn) {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return ""
		}
		dsn = converted
	}
	return postgresParam(dsn, "dbname")
}

func (a *PostgresAdapter) DefaultSchema(string) string { return "public" }

// ReadOnlyDSN passes default_transaction_read_only as a startup parameter,
// which the server applies to every session lib/pq opens. A later key wins
// in key=value form, so an existing setting is overridden.
func (a *PostgresAdapter) ReadOnlyDSN(dsn string) string {
	if !isPostgresURL(dsn) {
		return strings.TrimSpace(dsn + " default_transaction_read_only=on")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	q.Set("default_transaction_read_only", "on")
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	var value string
	if err := db.QueryRowContext(ctx, "SHOW default_transaction_read_only").Scan(&value); err != nil {
		return err
	}
	if value != "on" {
		return fmt.Errorf("default_transaction_read_only is %q", value)
	}
	return nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// postgresParam returns the value of key in a key=value connection string.
// Values may be single-quoted and use backslash escapes.
func postgresParam(dsn, key string) string {
	s := dsn
	for {
		s = strings.TrimLeft(s, " \t\n")
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return ""
		}
		name := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " \t")

		quoted := strings.HasPrefix(s, "'")
		if quoted {
			s = s[1:]
		}
		var value strings.Builder
		i := 0
		for ; i < len(s); i++ {
			c := s[i]
			if c == '\\' && i+1 < len(s) {
				i++
				value.WriteByte(s[i])
				continue
			}
			if quoted && c == '\'' {
				i++
				break
			}
			if !quoted && (c == ' ' || c == '\t' || c == '\n') {
				break
			}
			value.WriteByte(c)
		}
		s = s[i:]

		if name == key {
			return value.String()
		}
	}
}

var postgresStatements = map[string]Statement{
	StmtListTables: {
		SQL: `SELECT table_schema AS "TABLE_SCHEMA", table_name AS "TABLE_NAME", table_type AS "TABLE_TYPE"
			FROM information_schema.tables
			WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY table_schema, table_name`,
	},
	StmtSearchObjects: {
		SQL: `SELECT table_schema AS "Schema", table_name AS "Name", table_type AS "Type"
			FROM information_schema.tables
			WHERE table_name ILIKE $1 AND table_schema NOT IN ('pg_catalog', 'information_schema')
			UNION ALL
			SELECT routine_schema, routine_name, routine_type
			FROM information_schema.routines
			WHERE routine_name ILIKE $2 AND routine_schema NOT IN ('pg_catalog', 'information_schema')
			ORDER BY 2`,
		Params: []string{"search", "search"},
	},
	StmtColumns: {
		SQL: `SELECT column_name AS "COLUMN_NAME", data_type AS "DATA_TYPE",
				character_maximum_length AS "CHARACTER_MAXIMUM_LENGTH",
				is_nullable AS "IS_NULLABLE", column_default AS "COLUMN_DEFAULT"
			FROM information_schema.columns
			WHERE table_name = $1 AND table_schema = $2
			ORDER BY ordinal_position`,
		Params: []string{"table", "schema"},
	},
	StmtPrimaryKey: {
		SQL: `SELECT tc.constraint_name AS "CONSTRAINT_NAME", kcu.column_name AS "COLUMN_NAME"
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = $1 AND tc.table_schema = $2
			ORDER BY kcu.ordinal_position`,
		Params: []string{"table", "schema"},
	},
	StmtForeignKeys: {
		SQL: `SELECT con.conname AS "ForeignKeyName", rel.relname AS "TableName",
				att.attname AS "ColumnName", frel.relname AS "ReferencedTable",
				fatt.attname AS "ReferencedColumn"
			FROM pg_constraint con
			JOIN pg_class rel ON rel.oid = con.conrelid
			JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
			JOIN pg_class frel ON frel.oid = con.confrelid
			CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, fattnum)
			JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
			JOIN pg_attribute fatt ON fatt.attrelid = con.confrelid AND fatt.attnum = k.fattnum
			WHERE con.contype = 'f' AND rel.relname = $1 AND nsp.nspname = $2`,
		Params: []string{"table", "schema"},
	},
	StmtSummary: {
		SQL: `SELECT
				(SELECT COUNT(*) FROM information_schema.tables WHERE table_type = 'BASE TABLE'
					AND table_schema NOT IN ('pg_catalog', 'information_schema')) AS "TableCount",
				(SELECT COUNT(*) FROM information_schema.views
					WHERE table_schema NOT IN ('pg_catalog', 'information_schema')) AS "ViewCount",
				(SELECT COUNT(*) FROM information_schema.routines WHERE routine_type = 'PROCEDURE'
					AND routine_schema NOT IN ('pg_catalog', 'information_schema')) AS "ProcedureCount",
				version() AS "Version"`,
	},
}

func (a *PostgresAdapter) Statement(key string) (Statement, bool) {
	stmt, ok := postgresStatements[key]
	return stmt, ok
}

func (a *PostgresAdapter) BindArgs(params []string, values map[string]any) []any {
	return bindPositional(params, values)
}

var (
	postgresForbiddenPatterns = patternRules(
		`(?i)\bCOPY\s+.*\bTO\b`, "COPY ... TO",
		`(?i)\bCOPY\s+.*\bFROM\b`, "COPY ... FROM",
		`(?i)\bpg_read_file\s*\(`, "pg_read_file()",
		`(?i)\bpg_read_binary_file\s*\(`, "pg_read_binary_file()",
		`(?i)\bpg_ls_dir\s*\(`, "pg_ls_dir()",
		`(?i)\blo_import\s*\(`, "lo_import()",
		`(?i)\blo_export\s*\(`, "lo_export()",
	)
	postgresDoSFunctions = patternRules(
		`(?i)\bpg_sleep\s*\(`, "pg_sleep()",
		`(?i)\bpg_sleep_for\s*\(`, "pg_sleep_for()",
		`(?i)\bpg_sleep_until\s*\(`, "pg_sleep_until()",
		`(?i)\bpg_advisory_lock\s*\(`, "pg_advisory_lock()",
		`(?i)\bpg_advisory_xact_lock\s*\(`, "pg_advisory_xact_lock()",
		`(?i)\bpg_try_advisory_lock\s*\(`, "pg_try_advisory_lock()",
	)
	postgresExtraKeywords = keywordRules(
		"CALL", "EXECUTE", "COPY", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE", "VACUUM", "REINDEX", "CLUSTER",
	)
)

func (a *PostgresAdapter) ValidateQuery(sqlQuery string) error {
	cleaned := a.RemoveStringsAndComments(sqlQuery)
	return validateDialect(sqlQuery, cleaned, postgresForbiddenPatterns, postgresDoSFunctions, postgresExtraKeywords)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. PostgreSQL-specific: no # comments, no backtick
// identifiers, handles $$ dollar-quoted strings, no backslash escaping by default.
func (a *PostgresAdapter) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		switch {
		case i+1 < n && sql[i] == '-' && sql[i+1] == '-':
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
		case i+1 < n && sql[i] == '/' && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
			result.WriteByte(' ')
		case sql[i] == '$':
			if end, ok := skipDollarQuoted(sql, i); ok {
				i = end
				result.WriteString("''")
			} else {
				result.WriteByte(sql[i])
				i++
			}
		case sql[i] == '\'':
			i = skipQuoted(sql, i, '\'', false)
			result.WriteString("''")
		case sql[i] == '"':
			i = copyDelimited(&result, sql, i, '"')
		default:
			result.WriteByte(sql[i])
			i++
		}
	}

	return result.String()
}

// skipDollarQuoted advances past $tag$...$tag$ or $$...$$ starting at i.
// It reports false when i does not open a terminated dollar-quoted string.
// Positional parameters such as $1 never open a tag.
func skipDollarQuoted(sql string, i int) (int, bool) {
	j := i + 1
	for j < len(sql) && isTagByte(sql[j]) {
		j++
	}
	if j >= len(sql) || sql[j] != '$' || (j > i+1 && sql[i+1] >= '0' && sql[i+1] <= '9') {
		return i, false
	}
	tag := sql[i : j+1]
	closeIdx := strings.Index(sql[i+len(tag):], tag)
	if closeIdx < 0 {
		return i, false
	}
	return i + len(tag) + closeIdx + len(tag), true
}

func isTagByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
