package main

import (
	"context"
	"database/sql"
	"fmt"
)

// Operation is one entry of the statement catalog.
type Operation struct {
	Name        string
	Description string
	Args        []ArgSpec

	// Guard names the argument holding free-form SQL. The dispatcher checks
	// it before any connection is obtained.
	Guard string

	Run func(ctx context.Context, ex *executor, args map[string]string) (any, error)
}

// catalog lists every operation in the order tools/list reports them.
var catalog = []*Operation{
	{
		Name:        OpQueryDatabase,
		Description: "Execute a SELECT query. Only SELECT statements are allowed.",
		Args: []ArgSpec{
			{Name: "sql", Description: "The SELECT statement to execute", Required: true},
		},
		Guard: "sql",
		Run: func(ctx context.Context, ex *executor, args map[string]string) (any, error) {
			return ex.query(ctx, args["sql"])
		},
	},
	{
		Name:        OpListTables,
		Description: "List all tables, views, and schemas in the database",
		Run: func(ctx context.Context, ex *executor, _ map[string]string) (any, error) {
			return ex.statement(ctx, StmtListTables, nil)
		},
	},
	{
		Name:        OpSearchObjects,
		Description: "Search for tables, views, and stored procedures by name (fuzzy match)",
		Args: []ArgSpec{
			{Name: "query", Description: "Search term for object names", Required: true},
		},
		Run: func(ctx context.Context, ex *executor, args map[string]string) (any, error) {
			return ex.statement(ctx, StmtSearchObjects, map[string]any{
				"search": "%" + args["query"] + "%",
			})
		},
	},
	{
		Name:        OpTableMetadata,
		Description: "Get detailed metadata for a specific table including columns, primary keys, and foreign key relationships",
		Args: []ArgSpec{
			{Name: "table", Description: "Table name (without schema)", Required: true, NonEmpty: true},
			{Name: "schema", Description: "Schema name (optional, defaults to 'dbo')"},
		},
		Run: runTableMetadata,
	},
	{
		Name:        OpDatabaseSummary,
		Description: "Get high-level statistics about the database (object counts, versions, etc.)",
		Run: func(ctx context.Context, ex *executor, _ map[string]string) (any, error) {
			rows, err := ex.statement(ctx, StmtSummary, nil)
			if err != nil {
				return nil, err
			}
			if len(rows) == 0 {
				return map[string]any{}, nil
			}
			return rows[0], nil
		},
	},
}

// runTableMetadata issues the columns, primary key and foreign key
// statements in turn on the same pool and merges them.
func runTableMetadata(ctx context.Context, ex *executor, args map[string]string) (any, error) {
	table := args["table"]
	schema := args["schema"]
	if schema == "" {
		schema = ex.adapter.DefaultSchema(ex.databaseName)
	}
	binding := map[string]any{"table": table, "schema": schema}

	columns, err := ex.statement(ctx, StmtColumns, binding)
	if err != nil {
		return nil, err
	}
	primaryKey, err := ex.statement(ctx, StmtPrimaryKey, binding)
	if err != nil {
		return nil, err
	}
	foreignKeys, err := ex.statement(ctx, StmtForeignKeys, binding)
	if err != nil {
		return nil, err
	}

	return &TableMetadata{
		Table:       fmt.Sprintf("%s.%s", schema, table),
		Columns:     columns,
		PrimaryKey:  primaryKey,
		ForeignKeys: foreignKeys,
	}, nil
}

// executor runs catalog statements for one request.
type executor struct {
	db           *sql.DB
	adapter      DBAdapter
	databaseName string
	maxRows      int
}

// statement resolves key in the adapter's catalog and runs it with values
// bound through the adapter's placeholder contract.
func (e *executor) statement(ctx context.Context, key string, values map[string]any) ([]map[string]any, error) {
	stmt, ok := e.adapter.Statement(key)
	if !ok {
		return nil, fmt.Errorf("no %q statement for driver %s", key, e.adapter.DriverName())
	}
	return e.query(ctx, stmt.SQL, e.adapter.BindArgs(stmt.Params, values)...)
}

// query runs a statement and reports any database failure as *ExecutionError.
func (e *executor) query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	defer rows.Close()

	results, err := scanRows(rows, e.maxRows)
	if err != nil {
		return nil, &ExecutionError{Err: err}
	}
	return results, nil
}
