package main

// Server identity reported to MCP clients during initialize.
const (
	ServerName    = "mssql-readonly-mcp-server"
	ServerVersion = "1.0.0"
)

// Operation names exposed as MCP tools.
const (
	OpQueryDatabase   = "query_database"
	OpListTables      = "list_tables"
	OpSearchObjects   = "search_database_objects"
	OpTableMetadata   = "get_table_detailed_metadata"
	OpDatabaseSummary = "get_database_summary"
)

// Statement template keys. Every adapter provides one statement per key.
const (
	StmtListTables    = "list_tables"
	StmtSearchObjects = "search_objects"
	StmtColumns       = "columns"
	StmtPrimaryKey    = "primary_key"
	StmtForeignKeys   = "foreign_keys"
	StmtSummary       = "summary"
)

// Request is a single operation invocation from the host.
type Request struct {
	Name      string
	Arguments map[string]any
}

// Statement is a parameterized SQL template. Params names the binding keys
// in the order the adapter's placeholders expect them.
type Statement struct {
	SQL    string
	Params []string
}

// ArgSpec declares one string argument of an operation.
type ArgSpec struct {
	Name        string
	Description string
	Required    bool

	// NonEmpty also rejects a present value that is blank after trimming.
	NonEmpty bool
}

// TableMetadata is the aggregate returned by get_table_detailed_metadata.
type TableMetadata struct {
	Table       string           `json:"table"`
	Columns     []map[string]any `json:"columns"`
	PrimaryKey  []map[string]any `json:"primaryKey"`
	ForeignKeys []map[string]any `json:"foreignKeys"`
}
