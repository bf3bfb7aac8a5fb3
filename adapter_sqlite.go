package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter implements DBAdapter for SQLite databases.
type SQLiteAdapter struct{}

func (a *SQLiteAdapter) DriverName() string { return "sqlite" }

func (a *SQLiteAdapter) BuildDSN() (string, error) {
	dbPath := os.Getenv("MCP_SQLITE_PATH")
	if dbPath == "" {
		return "", fmt.Errorf("missing required environment variable: MCP_SQLITE_PATH")
	}
	return dbPath, nil
}

// ReadOnlyDSN rewrites dsn as a file: URI so mode=ro reaches SQLite, and
// adds a query_only pragma that the driver runs on each new connection. An
// explicit mode is kept.
func (a *SQLiteAdapter) ReadOnlyDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "mode=") {
		dsn += sep + "mode=ro"
		sep = "&"
	}
	if !strings.Contains(dsn, sqliteQueryOnly) {
		dsn += sep + sqliteQueryOnly
	}
	return dsn
}

const sqliteQueryOnly = "_pragma=query_only(1)"

func (a *SQLiteAdapter) DatabaseName(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}
	name := filepath.Base(path)
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// DefaultSchema is the primary attached database.
func (a *SQLiteAdapter) DefaultSchema(string) string { return "main" }

func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	var queryOnly int
	if err := db.QueryRowContext(ctx, "PRAGMA query_only").Scan(&queryOnly); err != nil {
		return err
	}
	if queryOnly != 1 {
		return fmt.Errorf("query_only is %d", queryOnly)
	}
	return nil
}

// SQLite has no information_schema and no routines; sqlite_master and the
// pragma table-valued functions stand in, aliased to the SQL Server column names.
var sqliteStatements = map[string]Statement{
	StmtListTables: {
		SQL: `SELECT 'main' AS TABLE_SCHEMA, name AS TABLE_NAME,
				CASE type WHEN 'table' THEN 'BASE TABLE' ELSE 'VIEW' END AS TABLE_TYPE
			FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
			ORDER BY 1, 2`,
	},
	StmtSearchObjects: {
		SQL: `SELECT 'main' AS "Schema", name AS "Name",
				CASE type WHEN 'table' THEN 'BASE TABLE' ELSE upper(type) END AS "Type"
			FROM sqlite_master
			WHERE type IN ('table', 'view', 'trigger') AND name NOT LIKE 'sqlite_%' AND name LIKE ?
			ORDER BY 2`,
		Params: []string{"search"},
	},
	StmtColumns: {
		SQL: `SELECT name AS COLUMN_NAME, type AS DATA_TYPE, NULL AS CHARACTER_MAXIMUM_LENGTH,
				CASE "notnull" WHEN 0 THEN 'YES' ELSE 'NO' END AS IS_NULLABLE,
				dflt_value AS COLUMN_DEFAULT
			FROM pragma_table_info(?, ?)
			ORDER BY cid`,
		Params: []string{"table", "schema"},
	},
	StmtPrimaryKey: {
		SQL: `SELECT 'PRIMARY KEY' AS CONSTRAINT_NAME, name AS COLUMN_NAME
			FROM pragma_table_info(?, ?)
			WHERE pk > 0
			ORDER BY pk`,
		Params: []string{"table", "schema"},
	},
	StmtForeignKeys: {
		SQL: `SELECT 'fk_' || id AS ForeignKeyName, ? AS TableName, "from" AS ColumnName,
				"table" AS ReferencedTable, "to" AS ReferencedColumn
			FROM pragma_foreign_key_list(?, ?)
			ORDER BY id, seq`,
		Params: []string{"table", "table", "schema"},
	},
	StmtSummary: {
		SQL: `SELECT
				(SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%') AS TableCount,
				(SELECT COUNT(*) FROM sqlite_master WHERE type = 'view') AS ViewCount,
				0 AS ProcedureCount,
				'SQLite ' || sqlite_version() AS Version`,
	},
}

func (a *SQLiteAdapter) Statement(key string) (Statement, bool) {
	stmt, ok := sqliteStatements[key]
	return stmt, ok
}

func (a *SQLiteAdapter) BindArgs(params []string, values map[string]any) []any {
	return bindPositional(params, values)
}

var (
	sqliteForbiddenPatterns = patternRules(
		`(?i)\bload_extension\s*\(`, "load_extension()",
		`(?i)\bwritefile\s*\(`, "writefile()",
		`(?i)\bedit\s*\(`, "edit()",
		`(?i)\bfts3_tokenizer\s*\(`, "fts3_tokenizer()",
	)
	sqliteExtraKeywords = keywordRules(
		"REPLACE", "ATTACH", "DETACH", "REINDEX", "VACUUM",
	)
	sqlitePragmaWrite = patternRules(`(?i)\bPRAGMA\s+\w+\s*=`, "PRAGMA write")
)

func (a *SQLiteAdapter) ValidateQuery(sqlQuery string) error {
	cleaned := a.RemoveStringsAndComments(sqlQuery)
	if err := validateDialect(sqlQuery, cleaned, sqliteForbiddenPatterns, nil, sqliteExtraKeywords); err != nil {
		return err
	}
	// Block PRAGMA writes (PRAGMA x = value), but allow read PRAGMAs
	if _, found := firstMatch(sqlitePragmaWrite, cleaned); found {
		return fmt.Errorf("PRAGMA writes are not allowed")
	}
	return nil
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. SQLite-specific: no # comments, no backslash
// escaping, supports backtick and [bracket] identifiers.
func (a *SQLiteAdapter) RemoveStringsAndComments(sql string) string {
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
		case sql[i] == '\'':
			i = skipQuoted(sql, i, '\'', false)
			result.WriteString("''")
		case sql[i] == '"':
			i = copyDelimited(&result, sql, i, '"')
		case sql[i] == '`':
			i = copyDelimited(&result, sql, i, '`')
		case sql[i] == '[':
			i = copyDelimited(&result, sql, i, ']')
		default:
			result.WriteByte(sql[i])
			i++
		}
	}

	return result.String()
}
