package types

// Schema describes the target table the projected rows are inserted into.
type Schema struct {
	// Table is the target table name
	Table string `json:"table"`

	// Columns defines the columns in the table
	Columns []ColumnDef `json:"columns"`
}

// ColumnDef defines a single column in the schema.
type ColumnDef struct {
	// Name is the column name as emitted by the projector
	Name string `json:"name"`

	// Type is the SQL type: TEXT, BIGINT, DOUBLE PRECISION, TIMESTAMP
	Type string `json:"type"`
}

