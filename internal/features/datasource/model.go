package datasource

import (
	"context"
	"errors"
	"fmt"

	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/pkg/filter"
)

// ErrFetchFailed matches every *FetchError.
var ErrFetchFailed = errors.New("data source fetch failed")

// FetchError reports a non-2xx response from an api data source.
type FetchError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Status)
}

func (e *FetchError) Unwrap() error { return ErrFetchFailed }

// Request identifies the widget whose raw rows are needed, together with
// the dashboard variables its source may reference.
type Request struct {
	Widget    dashboard.Widget
	Variables map[string]any
}

// Resolver produces the raw, unfiltered rows of a widget.
type Resolver interface {
	Resolve(ctx context.Context, req Request) ([]filter.Row, error)
}

// Transformer rewrites a row list with a stored transform script.
type Transformer interface {
	Transform(ctx context.Context, script string, rows []filter.Row) ([]filter.Row, error)
}
