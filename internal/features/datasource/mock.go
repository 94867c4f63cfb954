package datasource

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/pkg/filter"
)

var (
	mockCategories = []string{"Critical", "High", "Medium", "Low", "Info"}
	mockChains     = []string{"ethereum", "polygon", "arbitrum", "optimism", "bsc"}
	mockStatuses   = []string{"open", "investigating", "resolved"}
	mockDays       = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
)

// MockGenerator synthesizes rows shaped for a widget type. Values are
// random but the shape only depends on the widget.
type MockGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewMockGenerator(seed int64) *MockGenerator {
	return &MockGenerator{
		rnd: rand.New(rand.NewSource(seed)),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *MockGenerator) Generate(w dashboard.Widget) []filter.Row {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := w.Config.Mapping()
	switch w.Type {
	case dashboard.WidgetTypeLine, dashboard.WidgetTypeArea:
		return g.series(m)
	case dashboard.WidgetTypePie:
		return g.categories(m.NameKey, m.DataKey)
	case dashboard.WidgetTypeStat:
		return g.stat(w)
	case dashboard.WidgetTypeTable:
		return g.alerts()
	case dashboard.WidgetTypeHeatmap:
		return g.heatmap(m)
	case dashboard.WidgetTypeScatter:
		return g.scatter(m)
	case dashboard.WidgetTypeGauge:
		return g.gauge(w)
	}
	return g.categories(or(m.XDataKey, "name"), or(m.DataKey, "value"))
}

func (g *MockGenerator) categories(nameKey, valueKey string) []filter.Row {
	rows := make([]filter.Row, 0, len(mockCategories))
	for _, c := range mockCategories {
		rows = append(rows, filter.Row{
			nameKey:  c,
			valueKey: float64(g.rnd.Intn(91) + 10),
		})
	}
	return rows
}

// series is a twelve point hourly random walk ending at the current hour.
func (g *MockGenerator) series(m dashboard.FieldMapping) []filter.Row {
	end := g.now().Truncate(time.Hour)
	value := float64(g.rnd.Intn(50) + 50)

	rows := make([]filter.Row, 0, 12)
	for i := 11; i >= 0; i-- {
		value = math.Max(0, value+float64(g.rnd.Intn(21)-10))
		rows = append(rows, filter.Row{
			m.XDataKey: end.Add(-time.Duration(i) * time.Hour).Format("15:04"),
			m.DataKey:  value,
		})
	}
	return rows
}

func (g *MockGenerator) stat(w dashboard.Widget) []filter.Row {
	key := w.Config.Mapping().DataKey
	prevKey := "previousValue"
	if o, ok := w.Config.Options.(dashboard.StatOptions); ok {
		prevKey = o.PreviousKey()
	}
	return []filter.Row{{
		key:     float64(g.rnd.Intn(1000)),
		prevKey: float64(g.rnd.Intn(1000)),
	}}
}

func (g *MockGenerator) alerts() []filter.Row {
	start := g.now()
	rows := make([]filter.Row, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, filter.Row{
			"id":        fmt.Sprintf("alert-%d", i+1),
			"address":   g.address(),
			"chain":     mockChains[g.rnd.Intn(len(mockChains))],
			"severity":  mockCategories[g.rnd.Intn(4)],
			"status":    mockStatuses[g.rnd.Intn(len(mockStatuses))],
			"riskScore": float64(g.rnd.Intn(101)),
			"timestamp": start.Add(-time.Duration(i*17) * time.Minute).Format(time.RFC3339),
		})
	}
	return rows
}

func (g *MockGenerator) address() string {
	b := make([]byte, 20)
	g.rnd.Read(b)
	return fmt.Sprintf("0x%x", b)
}

func (g *MockGenerator) heatmap(m dashboard.FieldMapping) []filter.Row {
	rows := make([]filter.Row, 0, len(mockDays)*24)
	for _, day := range mockDays {
		for hour := 0; hour < 24; hour++ {
			rows = append(rows, filter.Row{
				m.YDataKey: day,
				m.XDataKey: float64(hour),
				m.DataKey:  float64(g.rnd.Intn(101)),
			})
		}
	}
	return rows
}

func (g *MockGenerator) scatter(m dashboard.FieldMapping) []filter.Row {
	rows := make([]filter.Row, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, filter.Row{
			m.XDataKey: float64(g.rnd.Intn(100)),
			m.DataKey:  float64(g.rnd.Intn(100)),
			m.ZDataKey: float64(g.rnd.Intn(50) + 1),
			m.NameKey:  fmt.Sprintf("Wallet %d", i+1),
		})
	}
	return rows
}

func (g *MockGenerator) gauge(w dashboard.Widget) []filter.Row {
	lo, hi := 0.0, 100.0
	if o, ok := w.Config.Options.(dashboard.GaugeOptions); ok {
		lo, hi = o.Range()
	}
	value := lo + g.rnd.Float64()*(hi-lo)
	return []filter.Row{{w.Config.Mapping().DataKey: math.Round(value*10) / 10}}
}

func or(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
