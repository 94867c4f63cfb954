package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-chainwatch/internal/config"
	"go-chainwatch/internal/features/binder"
	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/globalfilter"
	"go-chainwatch/internal/features/renderer"
	"go-chainwatch/internal/features/report"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ViewService interface {
	// Open binds every widget of a dashboard and loads their data once.
	Open(ctx context.Context, dashboardID string) (*View, error)
	Get(id string) (*View, error)
	List() []Summary
	Close(id string) bool
	CloseAll()
	Len() int
}

type ViewServiceImpl struct {
	dashboards dashboard.DashboardService
	factory    *binder.Factory
	scheduler  *binder.Scheduler
	dispatcher *renderer.Dispatcher
	reports    report.ReportService
	cfg        *config.Config
	logger     *zap.Logger

	mu    sync.RWMutex
	views map[string]*View
}

func NewViewService(
	dashboards dashboard.DashboardService,
	factory *binder.Factory,
	scheduler *binder.Scheduler,
	dispatcher *renderer.Dispatcher,
	reports report.ReportService,
	cfg *config.Config,
	logger *zap.Logger,
) ViewService {
	return &ViewServiceImpl{
		dashboards: dashboards,
		factory:    factory,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		reports:    reports,
		cfg:        cfg,
		logger:     logger,
		views:      make(map[string]*View),
	}
}

func (s *ViewServiceImpl) Open(ctx context.Context, dashboardID string) (*View, error) {
	d := s.dashboards.GetDashboard(dashboardID)
	if d == nil {
		return nil, dashboard.ErrDashboardNotFound
	}

	v := s.newView(*d)
	s.mu.Lock()
	s.views[v.id] = v
	s.mu.Unlock()

	if err := v.load(ctx); err != nil {
		v.logger.Warn("Some widgets failed to load", zap.Error(err))
	}
	v.logger.Info("View opened", zap.Int("widgets", len(d.Widgets)))
	return v, nil
}

func (s *ViewServiceImpl) newView(d dashboard.Dashboard) *View {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	v := &View{
		id:          id,
		dashboardID: d.ID,
		openedAt:    time.Now().UTC(),
		dashboards:  s.dashboards,
		factory:     s.factory,
		scheduler:   s.scheduler,
		dispatcher:  s.dispatcher,
		reports:     s.reports,
		minInterval: s.cfg.MinRefreshInterval,
		logger:      s.logger.With(zap.String("viewId", id), zap.String("dashboardId", d.ID)),
		ctx:         ctx,
		cancel:      cancel,
		title:       d.Title,
		binders:     make(map[string]*binder.Binder, len(d.Widgets)),
		subs:        make(map[int]func(Update)),
	}
	v.onClose = func() { s.forget(id) }
	v.filters = globalfilter.NewContext(d.GlobalFilters, d.Variables, v.persistFilters)

	v.mu.Lock()
	for _, w := range d.Widgets {
		v.order = append(v.order, w.ID)
		v.bindLocked(w)
	}
	v.scheduleLocked(d)
	v.stops = append(v.stops,
		v.filters.Subscribe(v.handleContextEvent),
		s.dashboards.Subscribe(v.handleDashboardEvent),
	)
	v.mu.Unlock()
	return v
}

func (s *ViewServiceImpl) Get(id string) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

func (s *ViewServiceImpl) List() []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.views))
	for _, v := range s.views {
		out = append(out, v.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

func (s *ViewServiceImpl) Close(id string) bool {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()

	if ok {
		v.Close()
	}
	return ok
}

func (s *ViewServiceImpl) CloseAll() {
	s.mu.Lock()
	views := make([]*View, 0, len(s.views))
	for _, v := range s.views {
		views = append(views, v)
	}
	s.views = make(map[string]*View)
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

func (s *ViewServiceImpl) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

func (s *ViewServiceImpl) forget(id string) {
	s.mu.Lock()
	delete(s.views, id)
	s.mu.Unlock()
}
