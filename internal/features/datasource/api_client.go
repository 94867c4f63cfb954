package datasource

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"go-chainwatch/pkg/filter"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// APIClient fetches rows from the REST backend.
type APIClient struct {
	client *resty.Client
}

func NewAPIClient(timeout time.Duration) *APIClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &APIClient{client: client}
}

// Fetch GETs url and returns the rows found at resultPath, or the whole body
// when resultPath is empty. Non-2xx responses are returned as *FetchError
// and are not retried.
func (c *APIClient) Fetch(ctx context.Context, url, resultPath string) ([]filter.Row, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode(), Status: resp.Status()}
	}
	return ParseRows(resp.Body(), resultPath)
}

// ParseRows reads a JSON payload as rows. An array yields one row per
// element, with scalar elements wrapped as {"value": v}. An object yields a
// single row.
func ParseRows(body []byte, resultPath string) ([]filter.Row, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	result := gjson.ParseBytes(body)
	if resultPath != "" {
		result = result.Get(resultPath)
		if !result.Exists() {
			return nil, fmt.Errorf("result path %q not found in response", resultPath)
		}
	}

	switch {
	case result.IsArray():
		elems := result.Array()
		rows := make([]filter.Row, 0, len(elems))
		for _, elem := range elems {
			rows = append(rows, toRow(elem))
		}
		return rows, nil
	case result.IsObject():
		return []filter.Row{toRow(result)}, nil
	case result.Type == gjson.Null:
		return []filter.Row{}, nil
	}
	return nil, fmt.Errorf("response is a %s, not rows", result.Type)
}

func toRow(r gjson.Result) filter.Row {
	if r.IsObject() {
		if m, ok := r.Value().(map[string]any); ok {
			return m
		}
	}
	return filter.Row{"value": r.Value()}
}

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// ExpandURL replaces {{name}} placeholders with query-escaped dashboard
// variables. Unknown names expand to the empty string.
func ExpandURL(raw string, vars map[string]any) string {
	return placeholder.ReplaceAllStringFunc(raw, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok {
			return ""
		}
		return url.QueryEscape(filter.ToString(v))
	})
}
