package renderer

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/pkg/filter"
)

const ComponentUnsupported = "unsupported"

// DefaultColorScheme is used when a widget configures none.
var DefaultColorScheme = []string{"#3b82f6", "#ef4444", "#f59e0b", "#10b981", "#8b5cf6", "#ec4899", "#14b8a6"}

// View is the payload a chart primitive renders.
type View struct {
	WidgetID    string                 `json:"widgetId"`
	Type        dashboard.WidgetType   `json:"type"`
	Title       string                 `json:"title"`
	Component   string                 `json:"component"`
	Supported   bool                   `json:"supported"`
	Message     string                 `json:"message,omitempty"`
	Data        []filter.Row           `json:"data"`
	Mapping     dashboard.FieldMapping `json:"mapping"`
	ColorScheme []string               `json:"colorScheme"`
	ShowLegend  bool                   `json:"showLegend"`
	Height      int                    `json:"height"`
	// ClickField is the row field an element click filters on.
	ClickField string         `json:"clickField,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

// Primitive computes the type specific options of a view.
type Primitive func(w dashboard.Widget, rows []filter.Row) map[string]any

type registration struct {
	component string
	build     Primitive
}

// Dispatcher maps widget types to chart primitives. It holds no widget
// state.
type Dispatcher struct {
	mu         sync.RWMutex
	rowHeight  int
	primitives map[dashboard.WidgetType]registration
}

func NewDispatcher(cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		rowHeight:  cfg.RowHeight,
		primitives: make(map[dashboard.WidgetType]registration),
	}
	d.Register(dashboard.WidgetTypeBar, "BarChart", stackedOptions)
	d.Register(dashboard.WidgetTypeArea, "AreaChart", stackedOptions)
	d.Register(dashboard.WidgetTypeLine, "LineChart", nil)
	d.Register(dashboard.WidgetTypePie, "PieChart", pieOptions)
	d.Register(dashboard.WidgetTypeStat, "StatCard", statOptions)
	d.Register(dashboard.WidgetTypeTable, "DataTable", tableOptions)
	d.Register(dashboard.WidgetTypeHeatmap, "Heatmap", heatmapOptions)
	d.Register(dashboard.WidgetTypeScatter, "ScatterChart", nil)
	d.Register(dashboard.WidgetTypeGauge, "Gauge", gaugeOptions)
	return d
}

// Register adds or replaces the primitive for t. build may be nil.
func (d *Dispatcher) Register(t dashboard.WidgetType, component string, build Primitive) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.primitives[t] = registration{component: component, build: build}
}

// Render builds the view of w over rows. Types without a primitive get an
// unsupported placeholder.
func (d *Dispatcher) Render(w dashboard.Widget, rows []filter.Row) View {
	if rows == nil {
		rows = []filter.Row{}
	}
	v := View{
		WidgetID:    w.ID,
		Type:        w.Type,
		Title:       w.Title,
		Data:        rows,
		Mapping:     w.Config.Mapping(),
		ColorScheme: w.Config.ColorScheme,
		ShowLegend:  w.Config.ShowLegend == nil || *w.Config.ShowLegend,
		Height:      w.Position.H * d.rowHeight,
	}
	if len(v.ColorScheme) == 0 {
		v.ColorScheme = DefaultColorScheme
	}

	d.mu.RLock()
	reg, ok := d.primitives[w.Type]
	d.mu.RUnlock()
	if !ok {
		v.Component = ComponentUnsupported
		v.Message = fmt.Sprintf("Unsupported widget type: %s", w.Type)
		v.Data = []filter.Row{}
		return v
	}

	v.Component = reg.component
	v.Supported = true
	v.ClickField = clickField(w)
	if reg.build != nil {
		v.Options = reg.build(w, rows)
	}
	return v
}

// ClickFilter maps a click on the element drawn from row to an equals
// filter on the widget's x field, or "name" when none is configured. It
// returns false when the row has no value for that field.
func ClickFilter(w dashboard.Widget, row filter.Row) (filter.Filter, bool) {
	field := clickField(w)
	value, ok := row[field]
	if !ok {
		return filter.Filter{}, false
	}
	return filter.Filter{
		Field:          field,
		Operator:       filter.OperatorEquals,
		Value:          value,
		IsActive:       true,
		Label:          fmt.Sprintf("%s: %s", field, filter.ToString(value)),
		SourceWidgetID: w.ID,
	}, true
}

func clickField(w dashboard.Widget) string {
	if x := w.Config.XDataKey(); x != "" {
		return x
	}
	return "name"
}

func stackedOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	switch o := w.Config.Options.(type) {
	case dashboard.BarOptions:
		return map[string]any{"stacked": o.Stacked}
	case dashboard.AreaOptions:
		return map[string]any{"stacked": o.Stacked}
	}
	return nil
}

func pieOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	key := w.Config.Mapping().DataKey
	total := 0.0
	for _, row := range rows {
		if n := filter.ToNumber(filter.Lookup(row, key)); !math.IsNaN(n) {
			total += n
		}
	}
	return map[string]any{"total": total}
}

func statOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	o, _ := w.Config.Options.(dashboard.StatOptions)
	out := map[string]any{"unit": o.Unit}
	if len(rows) == 0 {
		return out
	}

	current := filter.ToNumber(filter.Lookup(rows[0], w.Config.Mapping().DataKey))
	previous := filter.ToNumber(filter.Lookup(rows[0], o.PreviousKey()))
	out["value"] = jsonNumber(current)

	if math.IsNaN(current) || math.IsNaN(previous) {
		return out
	}
	out["previousValue"] = previous
	switch {
	case current > previous:
		out["trend"] = "up"
	case current < previous:
		out["trend"] = "down"
	default:
		out["trend"] = "flat"
	}
	if previous != 0 {
		out["changePercent"] = math.Round((current-previous)/math.Abs(previous)*1000) / 10
	}
	return out
}

func tableOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	o, _ := w.Config.Options.(dashboard.TableOptions)
	columns := o.Columns
	if len(columns) == 0 {
		columns = Columns(rows)
	}
	pageSize := o.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	return map[string]any{"columns": columns, "pageSize": pageSize}
}

func heatmapOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	key := w.Config.Mapping().DataKey
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		n := filter.ToNumber(filter.Lookup(row, key))
		if math.IsNaN(n) {
			continue
		}
		lo, hi = math.Min(lo, n), math.Max(hi, n)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	return map[string]any{"min": lo, "max": hi}
}

func gaugeOptions(w dashboard.Widget, rows []filter.Row) map[string]any {
	o, _ := w.Config.Options.(dashboard.GaugeOptions)
	lo, hi := o.Range()
	out := map[string]any{"min": lo, "max": hi}
	if len(rows) > 0 {
		out["value"] = jsonNumber(filter.ToNumber(filter.Lookup(rows[0], w.Config.Mapping().DataKey)))
	}
	return out
}

// Columns returns the sorted union of the keys of rows.
func Columns(rows []filter.Row) []string {
	seen := map[string]bool{}
	columns := []string{}
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

// jsonNumber maps NaN to nil since encoding/json rejects it.
func jsonNumber(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
