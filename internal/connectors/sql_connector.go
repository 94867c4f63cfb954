package connectors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

var (
	ErrNotConnected = errors.New("database connection not established")
	ErrNotReadOnly  = errors.New("only single SELECT or WITH statements are allowed")
)

// SQLConnector runs read-only queries against PostgreSQL or MySQL
type SQLConnector struct {
	dbType string // "postgres" or "mysql"
	db     *sql.DB
}

// NewSQLConnector creates a new SQL connector for dbType
func NewSQLConnector(dbType string) (*SQLConnector, error) {
	driver, err := DriverName(dbType)
	if err != nil {
		return nil, err
	}
	return &SQLConnector{dbType: driver}, nil
}

// DriverName maps a data source type to its database/sql driver name.
func DriverName(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported sql source %q", dbType)
}

// Connect establishes connection to the database named by dsn
func (c *SQLConnector) Connect(ctx context.Context, dsn string) error {
	if dsn == "" {
		return fmt.Errorf("missing connection string")
	}

	db, err := sql.Open(c.dbType, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	c.db = db
	return nil
}

// Disconnect closes the database connection
func (c *SQLConnector) Disconnect(ctx context.Context) error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Query executes a read-only query and returns the rows as maps
func (c *SQLConnector) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}

	query, err := ReadOnlyQuery(req.Query)
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, req.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	data, err := rowsToMaps(rows, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to process query results: %w", err)
	}

	return &QueryResponse{
		Data:       data,
		TotalCount: int64(len(data)),
		Timestamp:  time.Now().UTC(),
	}, nil
}

// TestConnection tests if the database connection is valid
func (c *SQLConnector) TestConnection(ctx context.Context) error {
	if c.db == nil {
		return ErrNotConnected
	}
	return c.db.PingContext(ctx)
}

// GetType returns the connector type
func (c *SQLConnector) GetType() string {
	return c.dbType
}

// ReadOnlyQuery trims q and checks it is a single SELECT or WITH statement.
// A trailing semicolon is dropped.
func ReadOnlyQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", ErrNotReadOnly
	}
	if strings.Contains(q, ";") {
		return "", ErrNotReadOnly
	}

	keyword := strings.ToLower(strings.Fields(q)[0])
	if keyword != "select" && keyword != "with" {
		return "", ErrNotReadOnly
	}
	return q, nil
}

// rowsToMaps converts SQL rows to a slice of maps, stopping after limit rows
// when limit is positive
func rowsToMaps(rows *sql.Rows, limit int64) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := []map[string]any{}

	for rows.Next() {
		if limit > 0 && int64(len(result)) >= limit {
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// normalizeValue turns driver values into the plain JSON-like values the
// filter engine compares against.
func normalizeValue(val any) any {
	switch v := val.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case int64:
		return float64(v)
	case float32:
		return float64(v)
	}
	return val
}
