package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"go-chainwatch/internal/features/binder"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/globalfilter"
	"go-chainwatch/internal/features/renderer"
	"go-chainwatch/internal/features/report"
	"go-chainwatch/pkg/filter"
	"go-chainwatch/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentRefreshes = 8

var ErrNoClickValue = errors.New("clicked element has no value for the filter field")

// View is one open dashboard: a filter context, one binder per widget and
// an optional dashboard-wide refresh job. It follows changes made to its
// dashboard until closed.
type View struct {
	id          string
	dashboardID string
	openedAt    time.Time

	dashboards  dashboard.DashboardService
	factory     *binder.Factory
	scheduler   *binder.Scheduler
	dispatcher  *renderer.Dispatcher
	reports     report.ReportService
	minInterval time.Duration
	logger      *zap.Logger

	filters *globalfilter.Context

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	title    string
	binders  map[string]*binder.Binder
	order    []string
	interval time.Duration
	closed   bool
	stops    []func()
	onClose  func()

	subMu   sync.Mutex
	subs    map[int]func(Update)
	nextSub int
}

func (v *View) ID() string          { return v.id }
func (v *View) DashboardID() string { return v.dashboardID }

func (v *View) Summary() Summary {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Summary{ID: v.id, DashboardID: v.dashboardID, OpenedAt: v.openedAt, Widgets: len(v.order)}
}

// Snapshot renders every widget in dashboard order.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	title := v.title
	binders := v.binderListLocked()
	v.mu.RUnlock()

	widgets := make([]WidgetState, 0, len(binders))
	for _, b := range binders {
		widgets = append(widgets, v.render(b))
	}
	return Snapshot{
		ID:          v.id,
		DashboardID: v.dashboardID,
		Title:       title,
		Filters:     v.filters.Filters(),
		Variables:   v.filters.Variables(),
		Widgets:     widgets,
	}
}

func (v *View) Widget(widgetID string) (WidgetState, error) {
	b, err := v.binder(widgetID)
	if err != nil {
		return WidgetState{}, err
	}
	return v.render(b), nil
}

func (v *View) Filters() []filter.Filter {
	return v.filters.Filters()
}

func (v *View) AddFilter(f filter.Filter) (filter.Filter, error) {
	if err := v.alive(); err != nil {
		return filter.Filter{}, err
	}
	return v.filters.AddGlobalFilter(f), nil
}

func (v *View) UpdateFilter(id string, patch globalfilter.FilterPatch) (filter.Filter, bool, error) {
	if err := v.alive(); err != nil {
		return filter.Filter{}, false, err
	}
	f, ok := v.filters.UpdateGlobalFilter(id, patch)
	return f, ok, nil
}

func (v *View) RemoveFilter(id string) (bool, error) {
	if err := v.alive(); err != nil {
		return false, err
	}
	return v.filters.RemoveGlobalFilter(id), nil
}

func (v *View) ClearFilters() error {
	if err := v.alive(); err != nil {
		return err
	}
	v.filters.ClearGlobalFilters()
	return nil
}

// Click turns a click on a chart element into a global filter.
func (v *View) Click(in ClickInput) (filter.Filter, error) {
	b, err := v.binder(in.WidgetID)
	if err != nil {
		return filter.Filter{}, err
	}
	f, ok := renderer.ClickFilter(b.Widget(), in.Row)
	if !ok {
		return filter.Filter{}, ErrNoClickValue
	}
	return v.filters.AddGlobalFilter(f), nil
}

func (v *View) SetVariable(key string, value any) error {
	if err := v.alive(); err != nil {
		return err
	}
	v.filters.SetVariable(key, value)
	return nil
}

// RefreshWidget refetches one widget and returns its new state.
func (v *View) RefreshWidget(widgetID string) (WidgetState, error) {
	b, err := v.binder(widgetID)
	if err != nil {
		return WidgetState{}, err
	}
	v.filters.RefreshWidget(widgetID)
	return v.render(b), nil
}

// RefreshAll refetches every widget.
func (v *View) RefreshAll() error {
	if err := v.alive(); err != nil {
		return err
	}
	v.filters.RefreshAllWidgets()
	return nil
}

// ExportWidget writes the filtered rows of one widget to a workbook.
func (v *View) ExportWidget(ctx context.Context, widgetID string) ([]byte, string, error) {
	b, err := v.binder(widgetID)
	if err != nil {
		return nil, "", err
	}
	w := b.Widget()
	return v.reports.ExportToExcel(ctx, b.State().Data, exportColumns(w), exportName(w.Title, w.ID))
}

// Export writes one sheet per widget.
func (v *View) Export(ctx context.Context) ([]byte, string, error) {
	if err := v.alive(); err != nil {
		return nil, "", err
	}
	v.mu.RLock()
	title := v.title
	binders := v.binderListLocked()
	v.mu.RUnlock()

	sheets := make([]report.Sheet, 0, len(binders))
	for _, b := range binders {
		w := b.Widget()
		sheets = append(sheets, report.Sheet{Name: w.Title, Columns: exportColumns(w), Rows: b.State().Data})
	}
	if len(sheets) == 0 {
		sheets = append(sheets, report.Sheet{Name: title})
	}
	return v.reports.ExportWorkbook(ctx, sheets, exportName(title, v.dashboardID))
}

// Subscribe registers fn for view updates and returns its cancel func.
func (v *View) Subscribe(fn func(Update)) func() {
	v.subMu.Lock()
	defer v.subMu.Unlock()
	id := v.nextSub
	v.nextSub++
	v.subs[id] = fn
	return func() {
		v.subMu.Lock()
		defer v.subMu.Unlock()
		delete(v.subs, id)
	}
}

func (v *View) Closed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.closed
}

// Close stops every binder and the refresh job. Subscribers receive a final
// closed update.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.scheduler.Cancel(v.jobKey())
	for _, b := range v.binders {
		b.Close()
	}
	stops, onClose := v.stops, v.onClose
	v.stops = nil
	v.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	v.cancel()
	v.publish(Update{Kind: UpdateClosed})

	v.subMu.Lock()
	v.subs = make(map[int]func(Update))
	v.subMu.Unlock()

	if onClose != nil {
		onClose()
	}
	v.logger.Info("View closed")
}

// load fetches every widget once.
func (v *View) load(ctx context.Context) error {
	v.mu.RLock()
	binders := v.binderListLocked()
	v.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(maxConcurrentRefreshes)
	for _, b := range binders {
		g.Go(func() error { return ignoreClosed(b.Refresh(ctx)) })
	}
	return g.Wait()
}

func (v *View) handleContextEvent(e globalfilter.Event) {
	switch e.Kind {
	case globalfilter.EventFiltersChanged:
		v.publish(Update{Kind: UpdateFilters, Filters: e.Filters})
	case globalfilter.EventVariableChanged:
		v.publish(Update{Kind: UpdateVariables, Variables: v.filters.Variables()})
		v.filters.RefreshAllWidgets()
	case globalfilter.EventRefreshRequested:
		if err := v.trigger(e.WidgetID, e.Stamp); err != nil {
			v.logger.Debug("Refresh finished with errors", zap.Error(err))
		}
	}
}

// trigger hands a refresh stamp to one binder, or to all of them when
// widgetID is empty.
func (v *View) trigger(widgetID string, stamp int64) error {
	v.mu.RLock()
	var binders []*binder.Binder
	if widgetID == "" {
		binders = v.binderListLocked()
	} else if b, ok := v.binders[widgetID]; ok {
		binders = []*binder.Binder{b}
	}
	v.mu.RUnlock()

	var g errgroup.Group
	g.SetLimit(maxConcurrentRefreshes)
	for _, b := range binders {
		g.Go(func() error {
			_, err := b.Trigger(v.ctx, stamp)
			return ignoreClosed(err)
		})
	}
	return g.Wait()
}

// persistFilters pushes the new filter list to every binder and stores it
// on the dashboard.
func (v *View) persistFilters(filters []filter.Filter) {
	v.mu.RLock()
	if v.closed {
		v.mu.RUnlock()
		return
	}
	binders := v.binderListLocked()
	v.mu.RUnlock()

	for _, b := range binders {
		b.SetGlobalFilters(filters)
	}
	if _, err := v.dashboards.UpdateDashboard(v.ctx, v.dashboardID, dashboard.DashboardPatch{GlobalFilters: &filters}); err != nil {
		v.logger.Warn("Failed to persist global filters", zap.Error(err))
	}
}

func (v *View) handleDashboardEvent(e dashboard.ChangeEvent) {
	if e.DashboardID != v.dashboardID {
		return
	}
	switch e.Kind {
	case dashboard.ChangeRemoved:
		v.Close()
	case dashboard.ChangeUpdated:
		v.sync(v.ctx)
	}
}

// sync rebinds the view to the stored dashboard. Binders of removed widgets
// are closed, new widgets are bound and fetched, and the rest re-run only
// when their binding changed.
func (v *View) sync(ctx context.Context) {
	d := v.dashboards.GetDashboard(v.dashboardID)
	if d == nil {
		return
	}

	type rebind struct {
		b *binder.Binder
		w dashboard.Widget
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.title = d.Title
	var existing []rebind
	var added []*binder.Binder
	order := make([]string, 0, len(d.Widgets))
	seen := make(map[string]bool, len(d.Widgets))
	for _, w := range d.Widgets {
		order = append(order, w.ID)
		seen[w.ID] = true
		if b, ok := v.binders[w.ID]; ok {
			existing = append(existing, rebind{b: b, w: w})
			continue
		}
		added = append(added, v.bindLocked(w))
	}
	for id, b := range v.binders {
		if !seen[id] {
			b.Close()
			delete(v.binders, id)
		}
	}
	v.order = order
	v.scheduleLocked(*d)
	v.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(maxConcurrentRefreshes)
	for _, r := range existing {
		g.Go(func() error {
			_, err := r.b.SetWidget(ctx, r.w)
			return ignoreClosed(err)
		})
	}
	for _, b := range added {
		g.Go(func() error { return ignoreClosed(b.Refresh(ctx)) })
	}
	if err := g.Wait(); err != nil {
		v.logger.Debug("Resync finished with errors", zap.Error(err))
	}

	snapshot := v.Snapshot()
	v.publish(Update{Kind: UpdateLayout, Snapshot: &snapshot})
}

func (v *View) bindLocked(w dashboard.Widget) *binder.Binder {
	b := v.factory.New(w, v.filters.Filters(), v.filters.Variables)
	id := w.ID
	b.OnChange(func(binder.State) { v.widgetChanged(id) })
	v.binders[id] = b
	return b
}

// scheduleLocked keeps the dashboard-wide refresh job in line with the
// dashboard's autoRefresh settings.
func (v *View) scheduleLocked(d dashboard.Dashboard) {
	var interval time.Duration
	if d.AutoRefresh && d.RefreshInterval > 0 {
		interval = binder.ScheduleInterval(time.Duration(d.RefreshInterval)*time.Millisecond, v.minInterval)
	}
	if interval == v.interval {
		return
	}
	v.interval = interval
	if interval == 0 {
		v.scheduler.Cancel(v.jobKey())
		return
	}
	v.scheduler.Every(v.jobKey(), interval, func() { v.filters.RefreshAllWidgets() })
}

func (v *View) widgetChanged(widgetID string) {
	state, err := v.Widget(widgetID)
	if err != nil {
		return
	}
	v.publish(Update{Kind: UpdateWidget, Widget: &state})
}

func (v *View) publish(u Update) {
	v.subMu.Lock()
	subs := make([]func(Update), 0, len(v.subs))
	for _, fn := range v.subs {
		subs = append(subs, fn)
	}
	v.subMu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

func (v *View) render(b *binder.Binder) WidgetState {
	s := b.State()
	return WidgetState{
		View:        v.dispatcher.Render(b.Widget(), s.Data),
		IsLoading:   s.IsLoading,
		Error:       s.Error,
		LastUpdated: s.LastUpdated,
	}
}

func (v *View) binder(widgetID string) (*binder.Binder, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrViewClosed
	}
	b, ok := v.binders[widgetID]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	return b, nil
}

func (v *View) binderListLocked() []*binder.Binder {
	out := make([]*binder.Binder, 0, len(v.order))
	for _, id := range v.order {
		if b, ok := v.binders[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

func (v *View) alive() error {
	if v.Closed() {
		return ErrViewClosed
	}
	return nil
}

func (v *View) jobKey() string {
	return "view:" + v.id
}

func exportColumns(w dashboard.Widget) []string {
	if o, ok := w.Config.Options.(dashboard.TableOptions); ok {
		return o.Columns
	}
	return nil
}

func exportName(title, fallback string) string {
	if slug := utils.Slugify(title); slug != "" {
		return slug
	}
	return fallback
}

func ignoreClosed(err error) error {
	if errors.Is(err, binder.ErrClosed) {
		return nil
	}
	return err
}
