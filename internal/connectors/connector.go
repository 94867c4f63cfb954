package connectors

import (
	"context"
	"time"
)

// QueryRequest represents a read-only query against a SQL data source
type QueryRequest struct {
	Query string // SELECT or WITH statement
	Args  []any
	Limit int64 // Maximum rows returned, 0 for no limit
}

// QueryResponse represents query results
type QueryResponse struct {
	Data       []map[string]any
	TotalCount int64
	Timestamp  time.Time
}

// Connector interface for all data sources
type Connector interface {
	// Connect establishes connection to data source
	Connect(ctx context.Context, dsn string) error

	// Disconnect closes connection
	Disconnect(ctx context.Context) error

	// Query executes a query and returns results
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// TestConnection tests if connection is valid
	TestConnection(ctx context.Context) error

	// GetType returns the connector type
	GetType() string
}
