package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/microsoft/go-mssqldb/msdsn"

	_ "github.com/microsoft/go-mssqldb"
)

// MSSQLAdapter implements DBAdapter for Microsoft SQL Server and Azure SQL.
type MSSQLAdapter struct{}

func (a *MSSQLAdapter) DriverName() string { return "sqlserver" }

func (a *MSSQLAdapter) BuildDSN() (string, error) {
	host := os.Getenv("MCP_MSSQL_HOST")
	port := os.Getenv("MCP_MSSQL_PORT")
	instance := os.Getenv("MCP_MSSQL_INSTANCE")
	db := os.Getenv("MCP_MSSQL_DB")
	user := os.Getenv("MCP_MSSQL_USER")
	password := os.Getenv("MCP_MSSQL_PASSWORD")
	encrypt := os.Getenv("MCP_MSSQL_ENCRYPT")
	if encrypt == "" {
		encrypt = "false"
	}

	var missing []string
	if host == "" {
		missing = append(missing, "MCP_MSSQL_HOST")
	}
	if db == "" {
		missing = append(missing, "MCP_MSSQL_DB")
	}
	if user == "" {
		missing = append(missing, "MCP_MSSQL_USER")
	}
	if password == "" {
		missing = append(missing, "MCP_MSSQL_PASSWORD")
	}

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	// Named instances are resolved through SQL Browser, so the port is only
	// defaulted when no instance is given.
	if port == "" && instance == "" {
		port = "1433"
	}
	hostPort := host
	if port != "" {
		hostPort = net.JoinHostPort(host, port)
	}

	q := url.Values{}
	q.Set("database", db)
	q.Set("encrypt", encrypt)
	q.Set("ApplicationIntent", "ReadOnly")
	if v := os.Getenv("MCP_MSSQL_TRUST_CERT"); v != "" {
		q.Set("TrustServerCertificate", v)
	}
	appName := os.Getenv("MCP_MSSQL_APP_NAME")
	if appName == "" {
		appName = ServerName
	}
	q.Set("app name", appName)

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(user, password),
		Host:     hostPort,
		RawQuery: q.Encode(),
	}
	if instance != "" {
		u.Path = "/" + instance
	}
	return u.String(), nil
}

// DatabaseName accepts URL, ADO and ODBC connection strings.
func (a *MSSQLAdapter) DatabaseName(dsn string) string {
	cfg, err := msdsn.Parse(dsn)
	if err != nil {
		return ""
	}
	return cfg.Database
}

func (a *MSSQLAdapter) DefaultSchema(string) string { return "dbo" }

// ReadOnlyDSN requests ApplicationIntent=ReadOnly when dsn does not already
// set an intent. URL, ADO and ODBC strings are all handled.
func (a *MSSQLAdapter) ReadOnlyDSN(dsn string) string {
	if strings.Contains(strings.ToLower(dsn), "applicationintent") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "sqlserver://") {
		return strings.TrimSuffix(dsn, ";") + ";ApplicationIntent=ReadOnly"
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&ApplicationIntent=ReadOnly"
	}
	return dsn + "?ApplicationIntent=ReadOnly"
}

// EnforceReadOnly is a no-op: SQL Server has no session-level read-only
// switch. ReadOnlyDSN requests ApplicationIntent=ReadOnly instead; access is
// otherwise bounded by the login's permissions.
func (a *MSSQLAdapter) EnforceReadOnly(ctx context.Context, db *sql.DB) error {
	return nil
}

var mssqlStatements = map[string]Statement{
	StmtListTables: {
		SQL: `SELECT TABLE_SCHEMA, TABLE_NAME, TABLE_TYPE
			FROM INFORMATION_SCHEMA.TABLES
			ORDER BY TABLE_SCHEMA, TABLE_NAME`,
	},
	StmtSearchObjects: {
		SQL: `SELECT TABLE_SCHEMA AS [Schema], TABLE_NAME AS [Name], TABLE_TYPE AS [Type]
			FROM INFORMATION_SCHEMA.TABLES
			WHERE TABLE_NAME LIKE @search
			UNION ALL
			SELECT ROUTINE_SCHEMA, ROUTINE_NAME, ROUTINE_TYPE
			FROM INFORMATION_SCHEMA.ROUTINES
			WHERE ROUTINE_NAME LIKE @search
			ORDER BY 2`,
		Params: []string{"search"},
	},
	StmtColumns: {
		SQL: `SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_DEFAULT
			FROM INFORMATION_SCHEMA.COLUMNS
			WHERE TABLE_NAME = @table AND TABLE_SCHEMA = @schema
			ORDER BY ORDINAL_POSITION`,
		Params: []string{"table", "schema"},
	},
	StmtPrimaryKey: {
		SQL: `SELECT tc.CONSTRAINT_NAME, ccu.COLUMN_NAME
			FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			JOIN INFORMATION_SCHEMA.CONSTRAINT_COLUMN_USAGE ccu ON tc.CONSTRAINT_NAME = ccu.CONSTRAINT_NAME
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_NAME = @table AND tc.TABLE_SCHEMA = @schema`,
		Params: []string{"table", "schema"},
	},
	StmtForeignKeys: {
		SQL: `SELECT
				fk.name AS ForeignKeyName,
				OBJECT_NAME(fkc.parent_object_id) AS TableName,
				col.name AS ColumnName,
				OBJECT_NAME(fkc.referenced_object_id) AS ReferencedTable,
				ref_col.name AS ReferencedColumn
			FROM sys.foreign_keys AS fk
			INNER JOIN sys.foreign_key_columns AS fkc ON fk.object_id = fkc.constraint_object_id
			INNER JOIN sys.columns AS col ON fkc.parent_object_id = col.object_id AND fkc.parent_column_id = col.column_id
			INNER JOIN sys.columns AS ref_col ON fkc.referenced_object_id = ref_col.object_id AND fkc.referenced_column_id = ref_col.column_id
			WHERE OBJECT_NAME(fkc.parent_object_id) = @table AND SCHEMA_NAME(fk.schema_id) = @schema`,
		Params: []string{"table", "schema"},
	},
	StmtSummary: {
		SQL: `SELECT
				(SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE') AS TableCount,
				(SELECT COUNT(*) FROM INFORMATION_SCHEMA.VIEWS) AS ViewCount,
				(SELECT COUNT(*) FROM INFORMATION_SCHEMA.ROUTINES WHERE ROUTINE_TYPE = 'PROCEDURE') AS ProcedureCount,
				@@VERSION AS Version`,
	},
}

func (a *MSSQLAdapter) Statement(key string) (Statement, bool) {
	stmt, ok := mssqlStatements[key]
	return stmt, ok
}

// BindArgs binds every parameter by name; the sqlserver driver resolves
// @name placeholders, so a name used twice in the SQL is bound once.
func (a *MSSQLAdapter) BindArgs(params []string, values map[string]any) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = sql.Named(p, values[p])
	}
	return args
}

var (
	mssqlForbiddenPatterns = patternRules(
		`(?i)\bINTO\s+[#@\[\w]`, "SELECT ... INTO",
		`(?i)\bOPENROWSET\s*\(`, "OPENROWSET()",
		`(?i)\bOPENDATASOURCE\s*\(`, "OPENDATASOURCE()",
		`(?i)\bOPENQUERY\s*\(`, "OPENQUERY()",
		`(?i)\bxp_\w+`, "extended stored procedure",
	)
	mssqlDoSPatterns = patternRules(
		`(?i)\bWAITFOR\s+(DELAY|TIME)\b`, "WAITFOR",
	)
	mssqlExtraKeywords = keywordRules(
		"EXEC", "EXECUTE", "MERGE", "BULK", "DBCC", "BACKUP", "RESTORE", "SHUTDOWN", "KILL", "DENY", "RECONFIGURE",
	)
)

func (a *MSSQLAdapter) ValidateQuery(sqlQuery string) error {
	cleaned := a.RemoveStringsAndComments(sqlQuery)
	return validateDialect(sqlQuery, cleaned, mssqlForbiddenPatterns, mssqlDoSPatterns, mssqlExtraKeywords)
}

// RemoveStringsAndComments strips string literals and comments from SQL
// for safe keyword detection. T-SQL specific: N'...' unicode literals,
// [bracket] and "double-quoted" identifiers, no backslash escaping.
func (a *MSSQLAdapter) RemoveStringsAndComments(sql string) string {
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
		case sql[i] == '[':
			i = copyDelimited(&result, sql, i, ']')
		default:
			result.WriteByte(sql[i])
			i++
		}
	}

	return result.String()
}
