package binder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/datasource"
	"go-chainwatch/pkg/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var seedRows = []filter.Row{
	{"region": "us", "value": float64(120)},
	{"region": "eu", "value": float64(40)},
	{"region": "us", "value": float64(5)},
}

type fakeSource struct {
	mu        sync.Mutex
	rows      []filter.Row
	err       error
	calls     int
	vars      map[string]any
	block     chan struct{}
	transform func([]filter.Row) ([]filter.Row, error)
}

func (f *fakeSource) Resolve(ctx context.Context, req datasource.Request) ([]filter.Row, error) {
	f.mu.Lock()
	f.calls++
	f.vars = req.Variables
	rows, err, block := f.rows, f.err, f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return rows, err
}

func (f *fakeSource) Transform(ctx context.Context, script string, rows []filter.Row) ([]filter.Row, error) {
	if f.transform == nil {
		return rows, nil
	}
	return f.transform(rows)
}

func (f *fakeSource) set(rows []filter.Row, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestFactory(src *fakeSource) (*Factory, *Scheduler) {
	scheduler := NewScheduler(zap.NewNop())
	cfg := &config.Config{DefaultRefreshInterval: 5 * time.Second, MinRefreshInterval: time.Second}
	return NewFactory(src, scheduler, cfg, zap.NewNop()), scheduler
}

func barWidget(filters ...filter.Filter) dashboard.Widget {
	return dashboard.Widget{
		ID:   "w1",
		Type: dashboard.WidgetTypeBar,
		Config: dashboard.WidgetConfig{
			Filters: filters,
			Options: dashboard.BarOptions{XDataKey: "region"},
		},
		DataSourceConfig: &dashboard.DataSource{Type: dashboard.DataSourceMock},
	}
}

func TestRefreshAppliesWidgetThenGlobalFilters(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, _ := newTestFactory(src)

	local := filter.Filter{Field: "region", Operator: filter.OperatorEquals, Value: "us", IsActive: true}
	global := filter.Filter{Field: "value", Operator: filter.OperatorGt, Value: "100", IsActive: true}
	b := factory.New(barWidget(local), []filter.Filter{global}, nil)
	defer b.Close()

	assert.Nil(t, b.State().LastUpdated)
	require.NoError(t, b.Refresh(context.Background()))

	state := b.State()
	assert.Equal(t, []filter.Row{{"region": "us", "value": float64(120)}}, state.Data)
	assert.False(t, state.IsLoading)
	assert.NotNil(t, state.LastUpdated)
	assert.Empty(t, state.Error)
}

func TestRefreshErrorKeepsStaleData(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, _ := newTestFactory(src)
	b := factory.New(barWidget(), nil, nil)
	defer b.Close()

	require.NoError(t, b.Refresh(context.Background()))
	first := b.State()

	src.set(nil, errors.New("502 bad gateway"))
	err := b.Refresh(context.Background())
	require.Error(t, err)

	state := b.State()
	assert.Equal(t, seedRows, state.Data)
	assert.Equal(t, "502 bad gateway", state.Error)
	assert.Equal(t, first.LastUpdated, state.LastUpdated)
	assert.False(t, state.IsLoading)

	src.set(seedRows[:1], nil)
	require.NoError(t, b.Refresh(context.Background()))
	assert.Empty(t, b.State().Error)
	assert.Len(t, b.State().Data, 1)
}

func TestTransformFailureFallsBack(t *testing.T) {
	src := &fakeSource{
		rows:      seedRows,
		transform: func([]filter.Row) ([]filter.Row, error) { return nil, errors.New("boom") },
	}
	factory, _ := newTestFactory(src)

	w := barWidget()
	w.DataSourceConfig.TransformFunction = `rows = rows[0]`
	b := factory.New(w, nil, nil)
	defer b.Close()

	require.NoError(t, b.Refresh(context.Background()))
	assert.Equal(t, seedRows, b.State().Data)
}

func TestTransformApplied(t *testing.T) {
	src := &fakeSource{
		rows:      seedRows,
		transform: func(rows []filter.Row) ([]filter.Row, error) { return rows[:2], nil },
	}
	factory, _ := newTestFactory(src)

	w := barWidget()
	w.DataSourceConfig.TransformFunction = `rows = rows[:2]`
	b := factory.New(w, nil, nil)
	defer b.Close()

	require.NoError(t, b.Refresh(context.Background()))
	assert.Len(t, b.State().Data, 2)
}

func TestSetGlobalFiltersRefiltersWithoutFetching(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, _ := newTestFactory(src)
	b := factory.New(barWidget(), nil, nil)
	defer b.Close()

	var states []State
	b.OnChange(func(s State) { states = append(states, s) })

	require.NoError(t, b.Refresh(context.Background()))
	b.SetGlobalFilters([]filter.Filter{{Field: "value", Operator: filter.OperatorBetween, Value: "10,100", IsActive: true}})

	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, []filter.Row{{"region": "eu", "value": float64(40)}}, b.State().Data)
	require.Len(t, states, 3)
	assert.True(t, states[0].IsLoading)
	assert.Len(t, states[2].Data, 1)

	b.SetGlobalFilters(nil)
	assert.Len(t, b.State().Data, 3)
}

func TestSetWidget(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, scheduler := newTestFactory(src)
	b := factory.New(barWidget(), nil, nil)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, b.Refresh(ctx))

	moved := barWidget()
	moved.Position = dashboard.Position{I: "w1", X: 4, Y: 2, W: 6, H: 4}
	changed, err := b.SetWidget(ctx, moved)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, 4, b.Widget().Position.X)

	polling := barWidget()
	polling.Config.AutoRefresh = true
	polling.Config.RefreshInterval = 30_000
	changed, err = b.SetWidget(ctx, polling)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 2, src.callCount())
	assert.Equal(t, 30*time.Second, b.Interval())
	assert.Equal(t, 1, scheduler.Len())

	changed, err = b.SetWidget(ctx, barWidget())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, b.Interval())
	assert.Equal(t, 0, scheduler.Len())
}

func TestStaleResponseIsDropped(t *testing.T) {
	block := make(chan struct{})
	src := &fakeSource{rows: seedRows, block: block}
	factory, _ := newTestFactory(src)
	b := factory.New(barWidget(), nil, nil)

	done := make(chan error, 1)
	go func() { done <- b.Refresh(context.Background()) }()

	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, 5*time.Millisecond)
	b.Close()
	close(block)

	assert.NoError(t, <-done)
	assert.Empty(t, b.State().Data)
	assert.Nil(t, b.State().LastUpdated)
	assert.ErrorIs(t, b.Refresh(context.Background()), ErrClosed)
}

func TestCloseCancelsSchedule(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, scheduler := newTestFactory(src)

	w := barWidget()
	w.DataSourceConfig.RefreshInterval = 2000
	b := factory.New(w, nil, nil)
	assert.Equal(t, 1, scheduler.Len())
	assert.Equal(t, 2*time.Second, b.Interval())

	b.Close()
	b.Close()
	assert.Equal(t, 0, scheduler.Len())
}

func TestScheduledRefreshRuns(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, scheduler := newTestFactory(src)
	scheduler.Start()
	defer scheduler.Stop()

	w := barWidget()
	w.DataSourceConfig.RefreshInterval = 1000
	b := factory.New(w, nil, nil)
	defer b.Close()

	assert.Eventually(t, func() bool { return src.callCount() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return b.State().LastUpdated != nil }, time.Second, 10*time.Millisecond)
}

func TestTriggerRefreshesOnlyOnNewStamp(t *testing.T) {
	src := &fakeSource{rows: seedRows}
	factory, _ := newTestFactory(src)
	b := factory.New(barWidget(), nil, func() map[string]any { return map[string]any{"chain": "ethereum"} })
	defer b.Close()
	ctx := context.Background()

	ran, err := b.Trigger(ctx, 100)
	require.NoError(t, err)
	assert.True(t, ran)

	ran, _ = b.Trigger(ctx, 100)
	assert.False(t, ran)
	ran, _ = b.Trigger(ctx, 50)
	assert.False(t, ran)
	ran, _ = b.Trigger(ctx, 101)
	assert.True(t, ran)

	assert.Equal(t, 2, src.callCount())
	assert.Equal(t, map[string]any{"chain": "ethereum"}, src.vars)
}

func TestRefreshInterval(t *testing.T) {
	fallback, floor := 5*time.Second, time.Second

	tests := []struct {
		name   string
		config dashboard.WidgetConfig
		source *dashboard.DataSource
		want   time.Duration
	}{
		{"No Source", dashboard.WidgetConfig{}, nil, 0},
		{"Mock Without Interval", dashboard.WidgetConfig{}, &dashboard.DataSource{Type: dashboard.DataSourceMock}, 0},
		{"Source Interval", dashboard.WidgetConfig{}, &dashboard.DataSource{Type: dashboard.DataSourceAPI, RefreshInterval: 10_000}, 10 * time.Second},
		{"Auto Refresh Own Interval", dashboard.WidgetConfig{AutoRefresh: true, RefreshInterval: 15_000}, &dashboard.DataSource{RefreshInterval: 10_000}, 15 * time.Second},
		{"Auto Refresh Source Interval", dashboard.WidgetConfig{AutoRefresh: true}, &dashboard.DataSource{RefreshInterval: 10_000}, 10 * time.Second},
		{"Auto Refresh Fallback", dashboard.WidgetConfig{AutoRefresh: true}, nil, fallback},
		{"Live Source", dashboard.WidgetConfig{}, &dashboard.DataSource{Type: dashboard.DataSourceRealtime}, fallback},
		{"Clamped", dashboard.WidgetConfig{}, &dashboard.DataSource{RefreshInterval: 100}, floor},
		{"Rounded Up To Seconds", dashboard.WidgetConfig{}, &dashboard.DataSource{RefreshInterval: 1500}, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := dashboard.Widget{Config: tt.config, DataSourceConfig: tt.source}
			assert.Equal(t, tt.want, RefreshInterval(w, fallback, floor))
		})
	}
}

func TestScheduleInterval(t *testing.T) {
	tests := []struct {
		name     string
		in       time.Duration
		floor    time.Duration
		expected time.Duration
	}{
		{"Disabled", 0, time.Second, 0},
		{"Below Floor", 200 * time.Millisecond, time.Second, time.Second},
		{"Fractional", 1500 * time.Millisecond, time.Second, 2 * time.Second},
		{"Fractional Floor", 100 * time.Millisecond, 2500 * time.Millisecond, 3 * time.Second},
		{"Whole", 10 * time.Second, time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScheduleInterval(tt.in, tt.floor))
		})
	}
}

func TestSchedulerReplacesEntries(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	s.Every("a", time.Second, func() {})
	s.Every("a", 2*time.Second, func() {})
	s.Every("b", time.Second, func() {})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))

	assert.True(t, s.Cancel("a"))
	assert.False(t, s.Cancel("a"))
	assert.Equal(t, 1, s.Len())
}
