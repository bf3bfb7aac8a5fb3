package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQLAdapter implements DBAdapter for MySQL databases.
type MySQLAdapter struct{}

func (a *MySQLAdapter) DriverName() string { return "mysql" }

func (a *MySQLAdapter) BuildDSN() (string, error) {
	host := os.Getenv("MCP_MYSQL_HOST")
	port := os.Getenv("MCP_MYSQL_PORT")
	db := os.Getenv("MCP_MYSQL_DB")
	user := os.Getenv("MCP_MYSQL_USER")
	password := os.Getenv("MCP_MYSQL_PASSWORD")

	var missing []string
	if host == "" {
		missing = append(missing, "MCP_MYSQL_HOST")
	}
	if port == "" {
		missing = append(missing, "MCP_MYSQL_PORT")
	}
	if db == "" {
		missing = append(missing, "MCP_MYSQL_DB")
	}
	if user == "" {
		missing = append(missing, "MCP_MYSQL_USER")
	}
	if password == "" {
		missing = append(missing, "MCP_MYSQL_PASSWORD")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host + ":" + port
	cfg.DBName = db
	return cfg.FormatDSN(), nil
}

func (a *MySQLAdapter) DatabaseName(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return ""
	}
	return cfg.DBName
}

// DefaultSchema is the connected database; MySQL has no separate schema level.
func (a *MySQLAdapter) DefaultSchema(databaseName string) string { return databaseName }

// ReadOnlyDSN adds transaction_read_only to the DSN params, which the driver
// sends as a SET on every new connection. An unparsable DSN is returned as
// is and fails at open.
func (a *MySQLAdapter) ReadOnlyDSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["transaction_read_only"] = "ON"
	return cfg.FormatDSN()
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	var readOnly int
	if err := db.QueryRowContext(ctx, "SELECT @@SESSION.transaction_read_only").Scan(&readOnly); err != nil {
		return err
	}
	if readOnly != 1 {
		return fmt.Errorf("transaction_read_only is %d", readOnly)
	}
	return nil
}

var mysqlStatements = map[string]Statement{
	StmtListTables: {
		SQL: "SELECT TABLE_SCHEMA AS TABLE_SCHEMA, TABLE_NAME AS TABLE_NAME, TABLE_TYPE AS TABLE_TYPE " +
			"FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() " +
			"ORDER BY TABLE_SCHEMA, TABLE_NAME",
	},
	StmtSearchObjects: {
		SQL: "SELECT TABLE_SCHEMA AS `Schema`, TABLE_NAME AS `Name`, TABLE_TYPE AS `Type` " +
			"FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME LIKE ? " +
			"UNION ALL " +
			"SELECT ROUTINE_SCHEMA, ROUTINE_NAME, ROUTINE_TYPE " +
			"FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = DATABASE() AND ROUTINE_NAME LIKE ? " +
			"ORDER BY 2",
		Params: []string{"search", "search"},
	},
	StmtColumns: {
		SQL: "SELECT COLUMN_NAME AS COLUMN_NAME, DATA_TYPE AS DATA_TYPE, " +
			"CHARACTER_MAXIMUM_LENGTH AS CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE AS IS_NULLABLE, " +
			"COLUMN_DEFAULT AS COLUMN_DEFAULT " +
			"FROM information_schema.COLUMNS WHERE TABLE_NAME = ? AND TABLE_SCHEMA = ? " +
			"ORDER BY ORDINAL_POSITION",
		Params: []string{"table", "schema"},
	},
	StmtPrimaryKey: {
		SQL: "SELECT CONSTRAINT_NAME AS CONSTRAINT_NAME, COLUMN_NAME AS COLUMN_NAME " +
			"FROM information_schema.KEY_COLUMN_USAGE " +
			"WHERE CONSTRAINT_NAME = 'PRIMARY' AND TABLE_NAME = ? AND TABLE_SCHEMA = ? " +
			"ORDER BY ORDINAL_POSITION",
		Params: []string{"table", "schema"},
	},
	StmtForeignKeys: {
		SQL: "SELECT CONSTRAINT_NAME AS ForeignKeyName, TABLE_NAME AS TableName, COLUMN_NAME AS ColumnName, " +
			"REFERENCED_TABLE_NAME AS ReferencedTable, REFERENCED_COLUMN_NAME AS ReferencedColumn " +
			"FROM information_schema.KEY_COLUMN_USAGE " +
			"WHERE REFERENCED_TABLE_NAME IS NOT NULL AND TABLE_NAME = ? AND TABLE_SCHEMA = ?",
		Params: []string{"table", "schema"},
	},
	StmtSummary: {
		SQL: "SELECT " +
			"(SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE') AS TableCount, " +
			"(SELECT COUNT(*) FROM information_schema.VIEWS WHERE TABLE_SCHEMA = DATABASE()) AS ViewCount, " +
			"(SELECT COUNT(*) FROM information_schema.ROUTINES WHERE ROUTINE_SCHEMA = DATABASE() AND ROUTINE_TYPE = 'PROCEDURE') AS ProcedureCount, " +
			"VERSION() AS Version",
	},
}

func (a *MySQLAdapter) Statement(key string) (Statement, bool) {
	stmt, ok := mysqlStatements[key]
	return stmt, ok
}

func (a *MySQLAdapter) BindArgs(params []string, values map[string]any) []any {
	return bindPositional(params, values)
}

var (
	mysqlForbiddenPatterns = patternRules(
		`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE",
		`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE",
		`(?i)\bLOAD_FILE\s*\(`, "LOAD_FILE()",
		`(?i)\bINTO\s+@`, "INTO @variable",
	)
	mysqlDoSFunctions = patternRules(
		`(?i)\bSLEEP\s*\(`, "SLEEP()",
		`(?i)\bBENCHMARK\s*\(`, "BENCHMARK()",
		`(?i)\bGET_LOCK\s*\(`, "GET_LOCK()",
		`(?i)\bRELEASE_LOCK\s*\(`, "RELEASE_LOCK()",
		`(?i)\bIS_FREE_LOCK\s*\(`, "IS_FREE_LOCK()",
		`(?i)\bIS_USED_LOCK\s*\(`, "IS_USED_LOCK()",
		`(?i)\bWAIT_FOR_EXECUTED_GTID_SET\s*\(`, "WAIT_FOR_EXECUTED_GTID_SET()",
		`(?i)\bWAIT_UNTIL_SQL_THREAD_AFTER_GTIDS\s*\(`, "WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS()",
		`(?i)\bMASTER_POS_WAIT\s*\(`, "MASTER_POS_WAIT()",
		`(?i)\bSOURCE_POS_WAIT\s*\(`, "SOURCE_POS_WAIT()",
	)
	mysqlExtraKeywords = keywordRules(
		"CALL", "EXEC", "EXECUTE", "REPLACE", "LOAD", "HANDLER", "RENAME",
	)
)

func (a *MySQLAdapter) ValidateQuery(sqlQuery string) error {
	cleaned := a.RemoveStringsAndComments(sqlQuery)
	return validateDialect(sqlQuery, cleaned, mysqlForbiddenPatterns, mysqlDoSFunctions, mysqlExtraKeywords)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. MySQL-specific: supports # comments, backtick
// identifiers, and backslash escaping in strings.
func (a *MySQLAdapter) RemoveStringsAndComments(sql string) string {
	var result strings.Builder
	i := 0
	n := len(sql)

	for i < n {
		switch {
		case i+1 < n && sql[i] == '-' && sql[i+1] == '-':
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
		case sql[i] == '#':
			i = skipLineComment(sql, i)
			result.WriteByte(' ')
		case i+1 < n && sql[i] == '/' && sql[i+1] == '*':
			i = skipBlockComment(sql, i)
			result.WriteByte(' ')
		case sql[i] == '\'':
			i = skipQuoted(sql, i, '\'', true)
			result.WriteString("''")
		case sql[i] == '"':
			// Double quotes delimit strings unless ANSI_QUOTES is set.
			i = skipQuoted(sql, i, '"', true)
			result.WriteString(`""`)
		case sql[i] == '`':
			i = copyDelimited(&result, sql, i, '`')
		default:
			result.WriteByte(sql[i])
			i++
		}
	}

	return result.String()
}
