package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// DBAdapter defines the contract for database-specific behavior.
// SQL Server is the primary target; PostgreSQL, MySQL and SQLite implement
// the same catalog so the server can front any of them.
type DBAdapter interface {
	// DriverName returns the database/sql driver name (e.g., "sqlserver", "postgres").
	DriverName() string

	// BuildDSN constructs a DSN from environment variables.
	BuildDSN() (string, error)

	// DatabaseName extracts the database/file name from a DSN string.
	DatabaseName(dsn string) string

	// DefaultSchema returns the schema used when a metadata request omits one.
	DefaultSchema(databaseName string) string

	// ReadOnlyDSN adds the driver settings that make every pooled
	// connection read-only. It is applied to the DSN before the pool opens.
	ReadOnlyDSN(dsn string) string

	// EnforceReadOnly runs once against the opened pool and reports a
	// session that did not come up read-only.
	EnforceReadOnly(ctx context.Context, db *sql.DB) error

	// Statement returns the catalog template registered under key.
	Statement(key string) (Statement, bool)

	// BindArgs turns named binding values into driver arguments in the
	// order and form the adapter's placeholders expect.
	BindArgs(params []string, values map[string]any) []any

	// ValidateQuery runs the strict keyword guard for this database.
	ValidateQuery(sql string) error

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string
}

var (
	_ DBAdapter = (*MSSQLAdapter)(nil)
	_ DBAdapter = (*PostgresAdapter)(nil)
	_ DBAdapter = (*MySQLAdapter)(nil)
	_ DBAdapter = (*SQLiteAdapter)(nil)
)

var adapters = map[string]func() DBAdapter{
	"mssql":    func() DBAdapter { return &MSSQLAdapter{} },
	"postgres": func() DBAdapter { return &PostgresAdapter{} },
	"mysql":    func() DBAdapter { return &MySQLAdapter{} },
	"sqlite":   func() DBAdapter { return &SQLiteAdapter{} },
}

// aliases accepted on the command line and in MCP_DIALECT.
var dialectAliases = map[string]string{
	"sqlserver":  "mssql",
	"postgresql": "postgres",
	"pg":         "postgres",
	"sqlite3":    "sqlite",
}

// adapterFor resolves a dialect name to its adapter.
func adapterFor(dialect string) (DBAdapter, error) {
	name := strings.ToLower(strings.TrimSpace(dialect))
	if alias, ok := dialectAliases[name]; ok {
		name = alias
	}
	newAdapter, ok := adapters[name]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q (supported: %s)", dialect, strings.Join(dialectNames(), ", "))
	}
	return newAdapter(), nil
}

func dialectNames() []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// bindPositional is the BindArgs implementation for drivers with ordinal
// placeholders. A name listed twice is bound twice.
func bindPositional(params []string, values map[string]any) []any {
	args := make([]any, len(params))
	for i, p := range params {
		args[i] = values[p]
	}
	return args
}
