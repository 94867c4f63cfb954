package datasource

import (
	"context"
	"fmt"
	"time"

	"go-chainwatch/pkg/filter"

	"github.com/d5/tengo/v2"
)

const (
	defaultMaxAllocs        = 100_000
	defaultTransformTimeout = 2 * time.Second
)

// TengoTransformer runs transform scripts in a tengo VM with no importable
// modules. The script sees the fetched rows as `rows` and must leave the
// transformed list in the same variable:
//
//	out := []
//	for r in rows { if r.severity == "Critical" { out = append(out, r) } }
//	rows = out
type TengoTransformer struct {
	maxAllocs int64
	timeout   time.Duration
}

func NewTengoTransformer() *TengoTransformer {
	return &TengoTransformer{maxAllocs: defaultMaxAllocs, timeout: defaultTransformTimeout}
}

func (t *TengoTransformer) Transform(ctx context.Context, source string, rows []filter.Row) ([]filter.Row, error) {
	script := tengo.NewScript([]byte(source))
	script.SetMaxAllocs(t.maxAllocs)

	in := make([]any, len(rows))
	for i, row := range rows {
		in[i] = map[string]any(row)
	}
	if err := script.Add("rows", in); err != nil {
		return nil, fmt.Errorf("failed to bind rows: %w", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := compiled.RunContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to run script: %w", err)
	}

	return rowsFromScript(compiled.Get("rows").Value())
}

func rowsFromScript(v any) ([]filter.Row, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("script must leave rows as a list, got %T", v)
	}
	out := make([]filter.Row, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is %T, not a map", i, item)
		}
		out = append(out, normalizeRow(m))
	}
	return out, nil
}

// normalizeRow converts tengo integers back to float64 so transformed rows
// hold the same value kinds as fetched ones.
func normalizeRow(m map[string]any) filter.Row {
	row := make(filter.Row, len(m))
	for k, v := range m {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		return map[string]any(normalizeRow(x))
	}
	return v
}
