package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go-chainwatch/pkg/filter"
)

// WidgetConfig holds the settings every widget shares plus the options
// variant for its type. On the wire both are flattened into one object.
type WidgetConfig struct {
	DataSource      string          `json:"dataSource,omitempty"`
	ColorScheme     []string        `json:"colorScheme,omitempty"`
	ShowLegend      *bool           `json:"showLegend,omitempty"`
	Filters         []filter.Filter `json:"filters,omitempty"`
	AutoRefresh     bool            `json:"autoRefresh,omitempty"`
	RefreshInterval int64           `json:"refreshInterval,omitempty"` // ms
	Options         WidgetOptions   `json:"-"`
}

// FieldMapping names the row fields a renderer reads.
type FieldMapping struct {
	DataKey  string `json:"dataKey,omitempty"`
	XDataKey string `json:"xDataKey,omitempty"`
	YDataKey string `json:"yDataKey,omitempty"`
	ZDataKey string `json:"zDataKey,omitempty"`
	NameKey  string `json:"nameKey,omitempty"`
}

// WidgetOptions is implemented by one options type per widget type.
type WidgetOptions interface {
	WidgetType() WidgetType
	// Mapping returns the field mapping with defaults applied.
	Mapping() FieldMapping
}

type BarOptions struct {
	DataKey  string `json:"dataKey,omitempty"`
	XDataKey string `json:"xDataKey,omitempty"`
	Stacked  bool   `json:"stacked,omitempty"`
}

func (BarOptions) WidgetType() WidgetType { return WidgetTypeBar }
func (o BarOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value"), XDataKey: or(o.XDataKey, "name")}
}

type LineOptions struct {
	DataKey  string `json:"dataKey,omitempty"`
	XDataKey string `json:"xDataKey,omitempty"`
}

func (LineOptions) WidgetType() WidgetType { return WidgetTypeLine }
func (o LineOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value"), XDataKey: or(o.XDataKey, "name")}
}

type AreaOptions struct {
	DataKey  string `json:"dataKey,omitempty"`
	XDataKey string `json:"xDataKey,omitempty"`
	Stacked  bool   `json:"stacked,omitempty"`
}

func (AreaOptions) WidgetType() WidgetType { return WidgetTypeArea }
func (o AreaOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value"), XDataKey: or(o.XDataKey, "name")}
}

type PieOptions struct {
	DataKey string `json:"dataKey,omitempty"`
	NameKey string `json:"nameKey,omitempty"`
}

func (PieOptions) WidgetType() WidgetType { return WidgetTypePie }
func (o PieOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value"), NameKey: or(o.NameKey, "name")}
}

type StatOptions struct {
	DataKey         string `json:"dataKey,omitempty"`
	PreviousDataKey string `json:"previousDataKey,omitempty"`
	Unit            string `json:"unit,omitempty"`
}

func (StatOptions) WidgetType() WidgetType { return WidgetTypeStat }
func (o StatOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value")}
}

// PreviousKey is the field compared against to compute the stat trend.
func (o StatOptions) PreviousKey() string {
	return or(o.PreviousDataKey, "previousValue")
}

type TableOptions struct {
	Columns  []string `json:"columns,omitempty"`
	PageSize int      `json:"pageSize,omitempty"`
}

func (TableOptions) WidgetType() WidgetType { return WidgetTypeTable }
func (TableOptions) Mapping() FieldMapping  { return FieldMapping{} }

type HeatmapOptions struct {
	XDataKey string `json:"xDataKey,omitempty"`
	YDataKey string `json:"yDataKey,omitempty"`
	DataKey  string `json:"dataKey,omitempty"`
}

func (HeatmapOptions) WidgetType() WidgetType { return WidgetTypeHeatmap }
func (o HeatmapOptions) Mapping() FieldMapping {
	return FieldMapping{
		DataKey:  or(o.DataKey, "value"),
		XDataKey: or(o.XDataKey, "hour"),
		YDataKey: or(o.YDataKey, "day"),
	}
}

type ScatterOptions struct {
	XDataKey string `json:"xDataKey,omitempty"`
	DataKey  string `json:"dataKey,omitempty"`
	ZDataKey string `json:"zDataKey,omitempty"`
	NameKey  string `json:"nameKey,omitempty"`
}

func (ScatterOptions) WidgetType() WidgetType { return WidgetTypeScatter }
func (o ScatterOptions) Mapping() FieldMapping {
	return FieldMapping{
		XDataKey: or(o.XDataKey, "x"),
		DataKey:  or(o.DataKey, "y"),
		ZDataKey: or(o.ZDataKey, "z"),
		NameKey:  or(o.NameKey, "name"),
	}
}

type GaugeOptions struct {
	DataKey string   `json:"dataKey,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
}

func (GaugeOptions) WidgetType() WidgetType { return WidgetTypeGauge }
func (o GaugeOptions) Mapping() FieldMapping {
	return FieldMapping{DataKey: or(o.DataKey, "value")}
}

// Range returns the gauge bounds, 0..100 unless configured.
func (o GaugeOptions) Range() (float64, float64) {
	lo, hi := 0.0, 100.0
	if o.Min != nil {
		lo = *o.Min
	}
	if o.Max != nil {
		hi = *o.Max
	}
	return lo, hi
}

// RawOptions keeps the settings of a widget type this build has no renderer
// for, so such widgets survive a load/save cycle unchanged.
type RawOptions struct {
	Kind   WidgetType
	Fields map[string]any
}

func (o RawOptions) WidgetType() WidgetType { return o.Kind }
func (o RawOptions) Mapping() FieldMapping {
	m := FieldMapping{}
	m.DataKey, _ = o.Fields["dataKey"].(string)
	m.XDataKey, _ = o.Fields["xDataKey"].(string)
	m.ZDataKey, _ = o.Fields["zDataKey"].(string)
	m.NameKey, _ = o.Fields["nameKey"].(string)
	return m
}

func (o RawOptions) MarshalJSON() ([]byte, error) {
	if o.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(o.Fields)
}

// NewOptions returns the zero options variant for t.
func NewOptions(t WidgetType) WidgetOptions {
	switch t {
	case WidgetTypeBar:
		return BarOptions{}
	case WidgetTypeLine:
		return LineOptions{}
	case WidgetTypeArea:
		return AreaOptions{}
	case WidgetTypePie:
		return PieOptions{}
	case WidgetTypeStat:
		return StatOptions{}
	case WidgetTypeTable:
		return TableOptions{}
	case WidgetTypeHeatmap:
		return HeatmapOptions{}
	case WidgetTypeScatter:
		return ScatterOptions{}
	case WidgetTypeGauge:
		return GaugeOptions{}
	}
	return RawOptions{Kind: t, Fields: map[string]any{}}
}

// Mapping returns the field mapping of the options, or an empty mapping.
func (c WidgetConfig) Mapping() FieldMapping {
	if c.Options == nil {
		return FieldMapping{}
	}
	return c.Options.Mapping()
}

// XDataKey returns the x field exactly as configured, without the per-type
// default Mapping applies. It is empty when none was set.
func (c WidgetConfig) XDataKey() string {
	switch o := c.Options.(type) {
	case BarOptions:
		return o.XDataKey
	case LineOptions:
		return o.XDataKey
	case AreaOptions:
		return o.XDataKey
	case HeatmapOptions:
		return o.XDataKey
	case ScatterOptions:
		return o.XDataKey
	case RawOptions:
		x, _ := o.Fields["xDataKey"].(string)
		return x
	}
	return ""
}

func (c WidgetConfig) MarshalJSON() ([]byte, error) {
	type common WidgetConfig
	base, err := json.Marshal(common(c))
	if err != nil {
		return nil, err
	}
	if c.Options == nil {
		return base, nil
	}

	opts, err := json.Marshal(c.Options)
	if err != nil {
		return nil, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(opts, &merged); err != nil {
		return nil, err
	}
	// common fields win over stray keys of the same name in raw options
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// DecodeWidgetConfig reads a flattened config object for a widget of type t.
func DecodeWidgetConfig(t WidgetType, raw []byte) (WidgetConfig, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return WidgetConfig{Options: NewOptions(t)}, nil
	}

	type common WidgetConfig
	var c common
	if err := json.Unmarshal(raw, &c); err != nil {
		return WidgetConfig{}, err
	}
	cfg := WidgetConfig(c)

	opts, err := decodeOptions(t, raw)
	if err != nil {
		return WidgetConfig{}, err
	}
	cfg.Options = opts
	return cfg, nil
}

func decodeOptions(t WidgetType, raw []byte) (WidgetOptions, error) {
	switch t {
	case WidgetTypeBar:
		return decodeAs[BarOptions](raw)
	case WidgetTypeLine:
		return decodeAs[LineOptions](raw)
	case WidgetTypeArea:
		return decodeAs[AreaOptions](raw)
	case WidgetTypePie:
		return decodeAs[PieOptions](raw)
	case WidgetTypeStat:
		return decodeAs[StatOptions](raw)
	case WidgetTypeTable:
		return decodeAs[TableOptions](raw)
	case WidgetTypeHeatmap:
		return decodeAs[HeatmapOptions](raw)
	case WidgetTypeScatter:
		return decodeAs[ScatterOptions](raw)
	case WidgetTypeGauge:
		return decodeAs[GaugeOptions](raw)
	}

	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for _, key := range commonConfigKeys {
		delete(fields, key)
	}
	return RawOptions{Kind: t, Fields: fields}, nil
}

var commonConfigKeys = []string{"dataSource", "colorScheme", "showLegend", "filters", "autoRefresh", "refreshInterval"}

func decodeAs[T WidgetOptions](raw []byte) (WidgetOptions, error) {
	var o T
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode %T: %w", o, err)
	}
	return o, nil
}

// Retype converts the config for a widget whose type changed. Shared fields
// are kept and options fields with matching names carry over.
func (c WidgetConfig) Retype(t WidgetType) (WidgetConfig, error) {
	if c.Options != nil && c.Options.WidgetType() == t {
		return c.Clone(), nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return WidgetConfig{}, err
	}
	return DecodeWidgetConfig(t, raw)
}

func (c WidgetConfig) Clone() WidgetConfig {
	out := c
	if c.ColorScheme != nil {
		out.ColorScheme = append([]string(nil), c.ColorScheme...)
	}
	if c.ShowLegend != nil {
		v := *c.ShowLegend
		out.ShowLegend = &v
	}
	out.Filters = cloneFilters(c.Filters)

	switch o := c.Options.(type) {
	case TableOptions:
		if o.Columns != nil {
			o.Columns = append([]string(nil), o.Columns...)
		}
		out.Options = o
	case GaugeOptions:
		o.Min = cloneFloat(o.Min)
		o.Max = cloneFloat(o.Max)
		out.Options = o
	case RawOptions:
		fields := make(map[string]any, len(o.Fields))
		for k, v := range o.Fields {
			fields[k] = v
		}
		out.Options = RawOptions{Kind: o.Kind, Fields: fields}
	}
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func or(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
