package dashboard

import (
	"encoding/json"
	"fmt"
	"time"

	"go-chainwatch/pkg/filter"
)

type WidgetType string

const (
	WidgetTypeBar     WidgetType = "bar"
	WidgetTypeLine    WidgetType = "line"
	WidgetTypePie     WidgetType = "pie"
	WidgetTypeArea    WidgetType = "area"
	WidgetTypeStat    WidgetType = "stat"
	WidgetTypeTable   WidgetType = "table"
	WidgetTypeHeatmap WidgetType = "heatmap"
	WidgetTypeScatter WidgetType = "scatter"
	WidgetTypeGauge   WidgetType = "gauge"
)

// WidgetTypes lists every widget type with a renderer.
var WidgetTypes = []WidgetType{
	WidgetTypeBar, WidgetTypeLine, WidgetTypePie, WidgetTypeArea, WidgetTypeStat,
	WidgetTypeTable, WidgetTypeHeatmap, WidgetTypeScatter, WidgetTypeGauge,
}

func (t WidgetType) Known() bool {
	for _, known := range WidgetTypes {
		if t == known {
			return true
		}
	}
	return false
}

type DataSourceType string

const (
	DataSourceMock      DataSourceType = "mock"
	DataSourceAPI       DataSourceType = "api"
	DataSourceWebsocket DataSourceType = "websocket"
	DataSourceRealtime  DataSourceType = "realtime"
	DataSourcePostgres  DataSourceType = "postgres"
	DataSourceMySQL     DataSourceType = "mysql"
)

// Live reports whether the source simulates a streaming feed and therefore
// polls even without an explicit interval.
func (t DataSourceType) Live() bool {
	return t == DataSourceWebsocket || t == DataSourceRealtime
}

// DataSource describes where a widget's raw rows come from.
type DataSource struct {
	Type            DataSourceType `json:"type"`
	URL             string         `json:"url,omitempty"`
	RefreshInterval int64          `json:"refreshInterval,omitempty"` // ms
	// TransformFunction is a tengo script that receives the fetched rows as
	// the variable `rows` and reassigns it with the transformed list.
	TransformFunction string       `json:"transformFunction,omitempty"`
	MockData          []filter.Row `json:"mockData,omitempty"`
	// ResultPath narrows an API response body to the row array (gjson syntax).
	ResultPath string `json:"resultPath,omitempty"`
	// Query is the SELECT statement run by SQL sources; URL holds the DSN.
	Query string `json:"query,omitempty"`
}

type Position struct {
	I    string `json:"i"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`
	MinW *int   `json:"minW,omitempty"`
	MinH *int   `json:"minH,omitempty"`
	MaxW *int   `json:"maxW,omitempty"`
	MaxH *int   `json:"maxH,omitempty"`
}

// LayoutItem is one entry of a grid layout-change event.
type LayoutItem struct {
	I string `json:"i"`
	X int    `json:"x"`
	Y int    `json:"y"`
	W int    `json:"w"`
	H int    `json:"h"`
}

type Widget struct {
	ID               string       `json:"id"`
	Type             WidgetType   `json:"type"`
	Title            string       `json:"title"`
	Position         Position     `json:"position"`
	Config           WidgetConfig `json:"config"`
	DataSourceConfig *DataSource  `json:"dataSourceConfig,omitempty"`
}

type Dashboard struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	IsPrimary       bool            `json:"isPrimary"`
	Widgets         []Widget        `json:"widgets"`
	Variables       map[string]any  `json:"variables,omitempty"`
	RefreshInterval int64           `json:"refreshInterval,omitempty"` // ms
	AutoRefresh     bool            `json:"autoRefresh,omitempty"`
	GlobalFilters   []filter.Filter `json:"globalFilters,omitempty"`
}

// Widget returns the widget with the given id, or nil.
func (d *Dashboard) Widget(id string) *Widget {
	for i := range d.Widgets {
		if d.Widgets[i].ID == id {
			return &d.Widgets[i]
		}
	}
	return nil
}

// Bottom is the first grid row below every widget.
func (d *Dashboard) Bottom() int {
	bottom := 0
	for _, w := range d.Widgets {
		if end := w.Position.Y + w.Position.H; end > bottom {
			bottom = end
		}
	}
	return bottom
}

// Clone returns a copy that shares no slices or maps with d. Leaf values
// inside rows, variables and filter values are treated as immutable.
func (d Dashboard) Clone() Dashboard {
	out := d
	if d.Widgets != nil {
		out.Widgets = make([]Widget, len(d.Widgets))
		for i, w := range d.Widgets {
			out.Widgets[i] = w.Clone()
		}
	}
	if d.Variables != nil {
		out.Variables = make(map[string]any, len(d.Variables))
		for k, v := range d.Variables {
			out.Variables[k] = v
		}
	}
	out.GlobalFilters = cloneFilters(d.GlobalFilters)
	return out
}

func (w Widget) Clone() Widget {
	out := w
	out.Position = w.Position.clone()
	out.Config = w.Config.Clone()
	if w.DataSourceConfig != nil {
		ds := *w.DataSourceConfig
		ds.MockData = cloneRows(w.DataSourceConfig.MockData)
		out.DataSourceConfig = &ds
	}
	return out
}

func (p Position) clone() Position {
	out := p
	out.MinW = cloneInt(p.MinW)
	out.MinH = cloneInt(p.MinH)
	out.MaxW = cloneInt(p.MaxW)
	out.MaxH = cloneInt(p.MaxH)
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFilters(in []filter.Filter) []filter.Filter {
	if in == nil {
		return nil
	}
	out := make([]filter.Filter, len(in))
	copy(out, in)
	return out
}

func cloneRows(in []filter.Row) []filter.Row {
	if in == nil {
		return nil
	}
	out := make([]filter.Row, len(in))
	for i, row := range in {
		r := make(filter.Row, len(row))
		for k, v := range row {
			r[k] = v
		}
		out[i] = r
	}
	return out
}

// UnmarshalJSON decodes config according to the widget type, which must be
// known before the per-type options can be read.
func (w *Widget) UnmarshalJSON(data []byte) error {
	type widgetAlias Widget
	var raw struct {
		widgetAlias
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*w = Widget(raw.widgetAlias)
	cfg, err := DecodeWidgetConfig(w.Type, raw.Config)
	if err != nil {
		return fmt.Errorf("widget %q config: %w", w.ID, err)
	}
	w.Config = cfg
	return nil
}

// DashboardInput carries the caller-supplied fields of a new dashboard.
type DashboardInput struct {
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Widgets         []Widget        `json:"widgets"`
	Variables       map[string]any  `json:"variables,omitempty"`
	RefreshInterval int64           `json:"refreshInterval,omitempty"`
	AutoRefresh     bool            `json:"autoRefresh,omitempty"`
	GlobalFilters   []filter.Filter `json:"globalFilters,omitempty"`
}

// DashboardPatch merges non-nil fields into an existing dashboard. The
// primary flag is changed only through SetPrimaryDashboard.
type DashboardPatch struct {
	Title           *string          `json:"title,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Widgets         *[]Widget        `json:"widgets,omitempty"`
	Variables       map[string]any   `json:"variables,omitempty"`
	RefreshInterval *int64           `json:"refreshInterval,omitempty"`
	AutoRefresh     *bool            `json:"autoRefresh,omitempty"`
	GlobalFilters   *[]filter.Filter `json:"globalFilters,omitempty"`
}

type WidgetInput struct {
	Type             WidgetType   `json:"type"`
	Title            string       `json:"title"`
	Position         Position     `json:"position"`
	Config           WidgetConfig `json:"config"`
	DataSourceConfig *DataSource  `json:"dataSourceConfig,omitempty"`
}

// WidgetPatch replaces the non-nil fields of a widget. Position identity is
// kept in sync with the widget id regardless of the patch.
type WidgetPatch struct {
	Type             *WidgetType
	Title            *string
	Position         *Position
	Config           *WidgetConfig
	DataSourceConfig *DataSource
}

func (in *WidgetInput) UnmarshalJSON(data []byte) error {
	type inputAlias WidgetInput
	var raw struct {
		inputAlias
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*in = WidgetInput(raw.inputAlias)
	cfg, err := DecodeWidgetConfig(in.Type, raw.Config)
	if err != nil {
		return fmt.Errorf("widget config: %w", err)
	}
	in.Config = cfg
	return nil
}
