package binder

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/datasource"
	"go-chainwatch/pkg/filter"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("binder closed")

// State is the bound data of one widget. Data is shared with the binder and
// must be treated as read-only.
type State struct {
	Data        []filter.Row `json:"data"`
	IsLoading   bool         `json:"isLoading"`
	Error       string       `json:"error,omitempty"`
	Err         error        `json:"-"`
	LastUpdated *time.Time   `json:"lastUpdated"`
}

// Factory creates binders that share one data source service and scheduler.
type Factory struct {
	resolver        datasource.Resolver
	transformer     datasource.Transformer
	scheduler       *Scheduler
	defaultInterval time.Duration
	minInterval     time.Duration
	logger          *zap.Logger
}

func NewFactory(ds datasource.DataSourceService, scheduler *Scheduler, cfg *config.Config, logger *zap.Logger) *Factory {
	return &Factory{
		resolver:        ds,
		transformer:     ds,
		scheduler:       scheduler,
		defaultInterval: cfg.DefaultRefreshInterval,
		minInterval:     cfg.MinRefreshInterval,
		logger:          logger,
	}
}

// New binds w. variables is read on every fetch and may be nil. The binder
// does not fetch until Refresh is called.
func (f *Factory) New(w dashboard.Widget, global []filter.Filter, variables func() map[string]any) *Binder {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Binder{
		key:         uuid.NewString(),
		widget:      w.Clone(),
		global:      copyFilters(global),
		variables:   variables,
		resolver:    f.resolver,
		transformer: f.transformer,
		evaluator:   filter.NewEvaluator(f.logger),
		scheduler:   f.scheduler,
		defaultIv:   f.defaultInterval,
		minIv:       f.minInterval,
		logger:      f.logger.With(zap.String("widgetId", w.ID)),
		ctx:         ctx,
		cancel:      cancel,
		listeners:   make(map[int]func(State)),
		now:         func() time.Time { return time.Now().UTC() },
	}
	b.state.Data = []filter.Row{}

	b.mu.Lock()
	b.scheduleLocked()
	b.mu.Unlock()
	return b
}

// Binder runs the fetch, transform and filter pipeline of one widget and
// owns at most one periodic refresh entry.
type Binder struct {
	key         string
	mu          sync.Mutex
	widget      dashboard.Widget
	global      []filter.Filter
	raw         []filter.Row
	state       State
	generation  uint64
	lastTrigger int64
	interval    time.Duration
	closed      bool

	variables   func() map[string]any
	resolver    datasource.Resolver
	transformer datasource.Transformer
	evaluator   *filter.Evaluator
	scheduler   *Scheduler
	defaultIv   time.Duration
	minIv       time.Duration
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	listenerMu   sync.Mutex
	listeners    map[int]func(State)
	nextListener int

	now func() time.Time
}

func (b *Binder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Binder) Widget() dashboard.Widget {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.widget.Clone()
}

// Interval is the current auto refresh interval, zero when disabled.
func (b *Binder) Interval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interval
}

// Refresh re-runs the whole pipeline. A fetch error is recorded in the state
// and returned; the previous data is kept. Results of a fetch that was
// overtaken by a newer refresh, a config change or Close are dropped.
func (b *Binder) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.generation++
	gen := b.generation
	w := b.widget.Clone()
	b.state.IsLoading = true
	loading := b.state
	b.mu.Unlock()
	b.notify(loading)

	var vars map[string]any
	if b.variables != nil {
		vars = b.variables()
	}
	rows, err := b.resolver.Resolve(ctx, datasource.Request{Widget: w, Variables: vars})
	if err == nil {
		rows = b.transform(ctx, w, rows)
	}

	b.mu.Lock()
	if b.closed || gen != b.generation {
		b.mu.Unlock()
		return nil
	}
	b.state.IsLoading = false
	if err != nil {
		b.state.Err = err
		b.state.Error = err.Error()
		failed := b.state
		b.mu.Unlock()

		b.logger.Warn("Widget fetch failed", zap.Error(err))
		b.notify(failed)
		return err
	}

	if rows == nil {
		rows = []filter.Row{}
	}
	b.raw = rows
	b.state.Data = b.filterLocked()
	b.state.Err = nil
	b.state.Error = ""
	now := b.now()
	b.state.LastUpdated = &now
	done := b.state
	b.mu.Unlock()

	b.notify(done)
	return nil
}

// Trigger refreshes when stamp is newer than the last trigger seen.
func (b *Binder) Trigger(ctx context.Context, stamp int64) (bool, error) {
	b.mu.Lock()
	if stamp <= b.lastTrigger {
		b.mu.Unlock()
		return false, nil
	}
	b.lastTrigger = stamp
	b.mu.Unlock()
	return true, b.Refresh(ctx)
}

// transform applies the widget's transform script. Failures are logged and
// the untransformed rows are used.
func (b *Binder) transform(ctx context.Context, w dashboard.Widget, rows []filter.Row) []filter.Row {
	if w.DataSourceConfig == nil || w.DataSourceConfig.TransformFunction == "" {
		return rows
	}
	out, err := b.transformer.Transform(ctx, w.DataSourceConfig.TransformFunction, rows)
	if err != nil {
		b.logger.Warn("Transform failed, using untransformed rows", zap.Error(err))
		return rows
	}
	return out
}

// SetWidget replaces the bound widget. When anything but the position
// changed the refresh schedule is rebuilt and the pipeline re-runs; the
// returned bool reports whether that happened.
func (b *Binder) SetWidget(ctx context.Context, w dashboard.Widget) (bool, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false, ErrClosed
	}
	changed := !sameBinding(b.widget, w)
	b.widget = w.Clone()
	if !changed {
		b.mu.Unlock()
		return false, nil
	}
	b.generation++
	b.scheduleLocked()
	b.mu.Unlock()

	return true, b.Refresh(ctx)
}

// SetGlobalFilters re-filters the last fetched rows without fetching again.
func (b *Binder) SetGlobalFilters(filters []filter.Filter) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.global = copyFilters(filters)
	if b.raw == nil {
		b.mu.Unlock()
		return
	}
	b.state.Data = b.filterLocked()
	updated := b.state
	b.mu.Unlock()

	b.notify(updated)
}

// OnChange registers fn for state changes and returns its cancel func.
func (b *Binder) OnChange(fn func(State)) func() {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	id := b.nextListener
	b.nextListener++
	b.listeners[id] = fn
	return func() {
		b.listenerMu.Lock()
		defer b.listenerMu.Unlock()
		delete(b.listeners, id)
	}
}

// Close cancels the refresh entry and any fetch still in flight.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.scheduler.Cancel(b.key)
	b.interval = 0
	b.mu.Unlock()

	b.cancel()
	b.listenerMu.Lock()
	b.listeners = make(map[int]func(State))
	b.listenerMu.Unlock()
}

func (b *Binder) filterLocked() []filter.Row {
	rows := b.evaluator.Apply(b.raw, b.widget.Config.Filters)
	return b.evaluator.Apply(rows, b.global)
}

func (b *Binder) scheduleLocked() {
	interval := RefreshInterval(b.widget, b.defaultIv, b.minIv)
	if interval == b.interval && (interval == 0 || b.scheduler.Has(b.key)) {
		return
	}
	b.interval = interval
	if interval == 0 {
		b.scheduler.Cancel(b.key)
		return
	}
	b.scheduler.Every(b.key, interval, func() {
		if err := b.Refresh(b.ctx); err != nil && !errors.Is(err, ErrClosed) {
			b.logger.Debug("Scheduled refresh failed", zap.Error(err))
		}
	})
}

func (b *Binder) notify(s State) {
	b.listenerMu.Lock()
	fns := make([]func(State), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.listenerMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// RefreshInterval decides how often a widget polls. config.autoRefresh uses
// config.refreshInterval, then the data source interval, then fallback. A
// data source interval alone also enables polling, and live sources poll at
// fallback. The result is never below floor and is a whole number of
// seconds; zero disables polling.
func RefreshInterval(w dashboard.Widget, fallback, floor time.Duration) time.Duration {
	ds := w.DataSourceConfig
	var d time.Duration
	switch {
	case w.Config.AutoRefresh:
		switch {
		case w.Config.RefreshInterval > 0:
			d = time.Duration(w.Config.RefreshInterval) * time.Millisecond
		case ds != nil && ds.RefreshInterval > 0:
			d = time.Duration(ds.RefreshInterval) * time.Millisecond
		default:
			d = fallback
		}
	case ds != nil && ds.RefreshInterval > 0:
		d = time.Duration(ds.RefreshInterval) * time.Millisecond
	case ds != nil && ds.Type.Live():
		d = fallback
	}
	return ScheduleInterval(d, floor)
}

func sameBinding(a, b dashboard.Widget) bool {
	return a.ID == b.ID &&
		a.Type == b.Type &&
		reflect.DeepEqual(a.Config, b.Config) &&
		reflect.DeepEqual(a.DataSourceConfig, b.DataSourceConfig)
}

func copyFilters(in []filter.Filter) []filter.Filter {
	if in == nil {
		return nil
	}
	out := make([]filter.Filter, len(in))
	copy(out, in)
	return out
}
