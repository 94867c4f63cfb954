package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-chainwatch/internal/connectors"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/pkg/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func widgetOf(t dashboard.WidgetType, options dashboard.WidgetOptions) dashboard.Widget {
	if options == nil {
		options = dashboard.NewOptions(t)
	}
	return dashboard.Widget{ID: "w1", Type: t, Config: dashboard.WidgetConfig{Options: options}}
}

func TestMockGeneratorShapes(t *testing.T) {
	g := NewMockGenerator(42)

	tests := []struct {
		name     string
		widget   dashboard.Widget
		wantRows int
		wantKeys []string
	}{
		{"Bar Defaults", widgetOf(dashboard.WidgetTypeBar, nil), 5, []string{"name", "value"}},
		{"Bar Mapped", widgetOf(dashboard.WidgetTypeBar, dashboard.BarOptions{DataKey: "count", XDataKey: "severity"}), 5, []string{"severity", "count"}},
		{"Pie", widgetOf(dashboard.WidgetTypePie, nil), 5, []string{"name", "value"}},
		{"Line", widgetOf(dashboard.WidgetTypeLine, nil), 12, []string{"name", "value"}},
		{"Stat", widgetOf(dashboard.WidgetTypeStat, nil), 1, []string{"value", "previousValue"}},
		{"Table", widgetOf(dashboard.WidgetTypeTable, nil), 10, []string{"id", "address", "chain", "severity", "status", "riskScore", "timestamp"}},
		{"Heatmap", widgetOf(dashboard.WidgetTypeHeatmap, nil), 7 * 24, []string{"day", "hour", "value"}},
		{"Scatter", widgetOf(dashboard.WidgetTypeScatter, nil), 20, []string{"x", "y", "z", "name"}},
		{"Gauge", widgetOf(dashboard.WidgetTypeGauge, nil), 1, []string{"value"}},
		{"Unknown Type", widgetOf("sankey", nil), 5, []string{"name", "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := g.Generate(tt.widget)
			require.Len(t, rows, tt.wantRows)
			for _, row := range rows {
				assert.Len(t, row, len(tt.wantKeys))
				for _, key := range tt.wantKeys {
					assert.Contains(t, row, key)
				}
			}
		})
	}
}

func TestMockGeneratorAddressesAndGaugeRange(t *testing.T) {
	g := NewMockGenerator(7)

	for _, row := range g.Generate(widgetOf(dashboard.WidgetTypeTable, nil)) {
		addr := row["address"].(string)
		assert.True(t, strings.HasPrefix(addr, "0x"))
		assert.Len(t, addr, 42)
	}

	lo, hi := 200.0, 300.0
	gauge := widgetOf(dashboard.WidgetTypeGauge, dashboard.GaugeOptions{Min: &lo, Max: &hi})
	for i := 0; i < 20; i++ {
		v := g.Generate(gauge)[0]["value"].(float64)
		assert.GreaterOrEqual(t, v, lo)
		assert.LessOrEqual(t, v, hi)
	}
}

func TestAPIClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/alerts":
			w.Write([]byte(`[{"severity":"High","count":3},{"severity":"Low","count":9}]`))
		case "/wrapped":
			w.Write([]byte(`{"data":{"items":[{"chain":"ethereum"}]},"total":1}`))
		case "/broken":
			w.Write([]byte(`{"data": [`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewAPIClient(5 * time.Second)
	ctx := context.Background()

	rows, err := client.Fetch(ctx, server.URL+"/alerts", "")
	require.NoError(t, err)
	assert.Equal(t, []filter.Row{
		{"severity": "High", "count": float64(3)},
		{"severity": "Low", "count": float64(9)},
	}, rows)

	rows, err = client.Fetch(ctx, server.URL+"/wrapped", "data.items")
	require.NoError(t, err)
	assert.Equal(t, []filter.Row{{"chain": "ethereum"}}, rows)

	_, err = client.Fetch(ctx, server.URL+"/wrapped", "data.missing")
	assert.Error(t, err)

	_, err = client.Fetch(ctx, server.URL+"/broken", "")
	assert.Error(t, err)

	_, err = client.Fetch(ctx, server.URL+"/down", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestParseRows(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		want    []filter.Row
		wantErr bool
	}{
		{"Scalars Wrapped", `[1, "two"]`, "", []filter.Row{{"value": float64(1)}, {"value": "two"}}, false},
		{"Single Object", `{"value": 42}`, "", []filter.Row{{"value": float64(42)}}, false},
		{"Null", `null`, "", []filter.Row{}, false},
		{"Bare Number", `17`, "", nil, true},
		{"Path To Object", `{"stats":{"value":5}}`, "stats", []filter.Row{{"value": float64(5)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseRows([]byte(tt.body), tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rows)
		})
	}
}

func TestExpandURL(t *testing.T) {
	vars := map[string]any{"chain": "ethereum", "limit": float64(25), "q": "a b"}

	assert.Equal(t, "http://api/alerts?chain=ethereum&limit=25", ExpandURL("http://api/alerts?chain={{chain}}&limit={{ limit }}", vars))
	assert.Equal(t, "http://api/search?q=a+b&x=", ExpandURL("http://api/search?q={{q}}&x={{missing}}", vars))
	assert.Equal(t, "http://api/plain", ExpandURL("http://api/plain", nil))
}

func TestTengoTransformer(t *testing.T) {
	rows := []filter.Row{
		{"severity": "Critical", "count": float64(4)},
		{"severity": "Low", "count": float64(10)},
	}
	tr := NewTengoTransformer()
	ctx := context.Background()

	t.Run("Filters And Maps", func(t *testing.T) {
		script := `
out := []
for r in rows {
	if r.severity == "Critical" {
		out = append(out, {name: r.severity, value: r.count * 2, rank: 1})
	}
}
rows = out`
		got, err := tr.Transform(ctx, script, rows)
		require.NoError(t, err)
		assert.Equal(t, []filter.Row{{"name": "Critical", "value": float64(8), "rank": float64(1)}}, got)
	})

	t.Run("Untouched Rows", func(t *testing.T) {
		got, err := tr.Transform(ctx, `x := 1`, rows)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	errorCases := []struct {
		name   string
		script string
	}{
		{"Syntax Error", `rows = [`},
		{"Imports Disabled", `os := import("os")`},
		{"Not A List", `rows = 5`},
		{"Row Not A Map", `rows = [1, 2]`},
		{"Runtime Error", `rows = rows - 1`},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transform(ctx, tt.script, rows)
			assert.Error(t, err)
		})
	}

	t.Run("Timeout", func(t *testing.T) {
		slow := &TengoTransformer{maxAllocs: defaultMaxAllocs, timeout: 50 * time.Millisecond}
		_, err := slow.Transform(ctx, `for true {}`, rows)
		assert.Error(t, err)
	})
}

type fakeSQL struct {
	gotType string
	gotDSN  string
	gotReq  connectors.QueryRequest
	err     error
}

func (f *fakeSQL) Query(ctx context.Context, dbType, dsn string, req connectors.QueryRequest) (*connectors.QueryResponse, error) {
	f.gotType, f.gotDSN, f.gotReq = dbType, dsn, req
	if f.err != nil {
		return nil, f.err
	}
	return &connectors.QueryResponse{Data: []map[string]any{{"chain": "polygon", "n": float64(2)}}}, nil
}

func TestResolveDispatch(t *testing.T) {
	sql := &fakeSQL{}
	svc := NewDataSourceServiceWith(NewMockGenerator(1), NewAPIClient(time.Second), sql, NewTengoTransformer(), zap.NewNop())
	ctx := context.Background()

	t.Run("Missing Source Synthesizes", func(t *testing.T) {
		rows, err := svc.Resolve(ctx, Request{Widget: widgetOf(dashboard.WidgetTypePie, nil)})
		require.NoError(t, err)
		assert.Len(t, rows, 5)
	})

	t.Run("Mock Data Copied", func(t *testing.T) {
		w := widgetOf(dashboard.WidgetTypeBar, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: dashboard.DataSourceMock, MockData: []filter.Row{{"name": "a", "value": float64(1)}}}

		rows, err := svc.Resolve(ctx, Request{Widget: w})
		require.NoError(t, err)
		rows[0]["name"] = "mutated"
		assert.Equal(t, "a", w.DataSourceConfig.MockData[0]["name"])
	})

	t.Run("Realtime Simulated", func(t *testing.T) {
		w := widgetOf(dashboard.WidgetTypeLine, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: dashboard.DataSourceRealtime}
		rows, err := svc.Resolve(ctx, Request{Widget: w})
		require.NoError(t, err)
		assert.Len(t, rows, 12)
	})

	t.Run("API Without URL", func(t *testing.T) {
		w := widgetOf(dashboard.WidgetTypeBar, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: dashboard.DataSourceAPI}
		_, err := svc.Resolve(ctx, Request{Widget: w})
		assert.Error(t, err)
	})

	t.Run("SQL", func(t *testing.T) {
		w := widgetOf(dashboard.WidgetTypeTable, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: dashboard.DataSourcePostgres, URL: "postgres://db", Query: "SELECT chain FROM alerts"}

		rows, err := svc.Resolve(ctx, Request{Widget: w})
		require.NoError(t, err)
		assert.Equal(t, []filter.Row{{"chain": "polygon", "n": float64(2)}}, rows)
		assert.Equal(t, "postgres", sql.gotType)
		assert.Equal(t, "postgres://db", sql.gotDSN)
		assert.Equal(t, int64(MaxSQLRows), sql.gotReq.Limit)
	})

	t.Run("SQL Error", func(t *testing.T) {
		sql.err = errors.New("connection refused")
		defer func() { sql.err = nil }()

		w := widgetOf(dashboard.WidgetTypeTable, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: dashboard.DataSourceMySQL, URL: "u@tcp(db)/x", Query: "SELECT 1"}
		_, err := svc.Resolve(ctx, Request{Widget: w})
		assert.Error(t, err)
		assert.Equal(t, "mysql", sql.gotType)
	})

	t.Run("Unsupported", func(t *testing.T) {
		w := widgetOf(dashboard.WidgetTypeBar, nil)
		w.DataSourceConfig = &dashboard.DataSource{Type: "graphql"}
		_, err := svc.Resolve(ctx, Request{Widget: w})
		assert.Error(t, err)
	})
}
