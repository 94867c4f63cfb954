package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-chainwatch/pkg/filter"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultWidgetWidth  = 6
	DefaultWidgetHeight = 4
)

var (
	ErrDashboardNotFound = errors.New("dashboard not found")
	ErrInvalidImport     = errors.New("invalid dashboard import")
)

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// ChangeEvent is published after a mutation has been persisted.
type ChangeEvent struct {
	Kind        ChangeKind
	DashboardID string
}

// DashboardService owns the dashboard collection. Mutations on a missing
// dashboard or widget are no-ops that return a nil result and no error.
type DashboardService interface {
	Hydrate(ctx context.Context) error

	ListDashboards() []Dashboard
	GetDashboard(id string) *Dashboard
	GetPrimaryDashboard() *Dashboard

	AddDashboard(ctx context.Context, input DashboardInput) (*Dashboard, error)
	UpdateDashboard(ctx context.Context, id string, patch DashboardPatch) (*Dashboard, error)
	RemoveDashboard(ctx context.Context, id string) (bool, error)
	SetPrimaryDashboard(ctx context.Context, id string) (bool, error)
	DuplicateDashboard(ctx context.Context, id string) (*Dashboard, error)

	AddWidget(ctx context.Context, dashboardID string, input WidgetInput) (*Widget, error)
	UpdateWidget(ctx context.Context, dashboardID, widgetID string, patch WidgetPatch) (*Widget, error)
	RemoveWidget(ctx context.Context, dashboardID, widgetID string) (bool, error)
	UpdateWidgetPositions(ctx context.Context, dashboardID string, layout []LayoutItem) (*Dashboard, error)

	ExportDashboard(id string) (string, error)
	ImportDashboard(ctx context.Context, data []byte) (*Dashboard, error)

	// Subscribe registers fn for change events and returns its cancel func.
	Subscribe(fn func(ChangeEvent)) func()
}

type DashboardServiceImpl struct {
	repo     DashboardRepository
	logger   *zap.Logger
	validate *validator.Validate

	mu         sync.RWMutex
	dashboards []Dashboard

	subMu       sync.Mutex
	subscribers map[int]func(ChangeEvent)
	nextSub     int

	now   func() time.Time
	newID func() string
}

func NewDashboardService(repo DashboardRepository, logger *zap.Logger) DashboardService {
	return newDashboardService(repo, logger)
}

func newDashboardService(repo DashboardRepository, logger *zap.Logger) *DashboardServiceImpl {
	return &DashboardServiceImpl{
		repo:        repo,
		logger:      logger,
		validate:    validator.New(),
		dashboards:  []Dashboard{},
		subscribers: make(map[int]func(ChangeEvent)),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Hydrate loads the persisted collection, repairing widget identities and
// duplicate primary flags.
func (s *DashboardServiceImpl) Hydrate(ctx context.Context) error {
	loaded, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dashboards: %w", err)
	}

	primarySeen := false
	for i := range loaded {
		d := &loaded[i]
		if d.IsPrimary {
			if primarySeen {
				d.IsPrimary = false
			}
			primarySeen = true
		}
		if d.Widgets == nil {
			d.Widgets = []Widget{}
		}
		for j := range d.Widgets {
			d.Widgets[j] = s.normalizeWidget(d.Widgets[j])
		}
	}
	if loaded == nil {
		loaded = []Dashboard{}
	}

	s.mu.Lock()
	s.dashboards = loaded
	s.mu.Unlock()

	s.logger.Info("Dashboards loaded", zap.String("driver", s.repo.Driver()), zap.Int("count", len(loaded)))
	return nil
}

func (s *DashboardServiceImpl) ListDashboards() []Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.dashboards)
}

func (s *DashboardServiceImpl) GetDashboard(id string) *Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.dashboards, id); i >= 0 {
		d := s.dashboards[i].Clone()
		return &d
	}
	return nil
}

func (s *DashboardServiceImpl) GetPrimaryDashboard() *Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.dashboards {
		if d.IsPrimary {
			c := d.Clone()
			return &c
		}
	}
	return nil
}

func (s *DashboardServiceImpl) AddDashboard(ctx context.Context, input DashboardInput) (*Dashboard, error) {
	var created Dashboard
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		created = s.newDashboard(input)
		return append(next, created), []ChangeEvent{{Kind: ChangeCreated, DashboardID: created.ID}}
	})
	if err != nil {
		return nil, err
	}
	out := created.Clone()
	return &out, nil
}

func (s *DashboardServiceImpl) newDashboard(input DashboardInput) Dashboard {
	now := s.now()
	d := Dashboard{
		ID:              s.newID(),
		Title:           input.Title,
		Description:     input.Description,
		CreatedAt:       now,
		UpdatedAt:       now,
		Widgets:         []Widget{},
		RefreshInterval: input.RefreshInterval,
		AutoRefresh:     input.AutoRefresh,
	}
	for _, w := range input.Widgets {
		d.Widgets = append(d.Widgets, s.normalizeWidget(w.Clone()))
	}
	if input.Variables != nil {
		d.Variables = make(map[string]any, len(input.Variables))
		for k, v := range input.Variables {
			d.Variables[k] = v
		}
	}
	d.GlobalFilters = cloneFilters(input.GlobalFilters)
	return d
}

func (s *DashboardServiceImpl) UpdateDashboard(ctx context.Context, id string, patch DashboardPatch) (*Dashboard, error) {
	var updated *Dashboard
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, id)
		if i < 0 {
			return next, nil
		}
		d := &next[i]
		if patch.Title != nil {
			d.Title = *patch.Title
		}
		if patch.Description != nil {
			d.Description = *patch.Description
		}
		if patch.Widgets != nil {
			widgets := make([]Widget, 0, len(*patch.Widgets))
			for _, w := range *patch.Widgets {
				widgets = append(widgets, s.normalizeWidget(w.Clone()))
			}
			d.Widgets = widgets
		}
		if patch.Variables != nil {
			d.Variables = make(map[string]any, len(patch.Variables))
			for k, v := range patch.Variables {
				d.Variables[k] = v
			}
		}
		if patch.RefreshInterval != nil {
			d.RefreshInterval = *patch.RefreshInterval
		}
		if patch.AutoRefresh != nil {
			d.AutoRefresh = *patch.AutoRefresh
		}
		if patch.GlobalFilters != nil {
			d.GlobalFilters = cloneFilters(*patch.GlobalFilters)
		}
		d.UpdatedAt = s.now()

		c := d.Clone()
		updated = &c
		return next, []ChangeEvent{{Kind: ChangeUpdated, DashboardID: id}}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DashboardServiceImpl) RemoveDashboard(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, id)
		if i < 0 {
			return next, nil
		}
		removed = true
		return append(next[:i], next[i+1:]...), []ChangeEvent{{Kind: ChangeRemoved, DashboardID: id}}
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// SetPrimaryDashboard marks id as primary and clears the flag on every other
// dashboard in the same save. An unknown id leaves all flags untouched.
func (s *DashboardServiceImpl) SetPrimaryDashboard(ctx context.Context, id string) (bool, error) {
	found := false
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		if indexOf(next, id) < 0 {
			return next, nil
		}
		found = true
		var events []ChangeEvent
		for i := range next {
			want := next[i].ID == id
			if next[i].IsPrimary != want {
				next[i].IsPrimary = want
				events = append(events, ChangeEvent{Kind: ChangeUpdated, DashboardID: next[i].ID})
			}
		}
		return next, events
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *DashboardServiceImpl) DuplicateDashboard(ctx context.Context, id string) (*Dashboard, error) {
	var created *Dashboard
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, id)
		if i < 0 {
			return next, nil
		}
		src := next[i].Clone()
		now := s.now()
		dup := src
		dup.ID = s.newID()
		dup.Title = src.Title + " (Copy)"
		dup.IsPrimary = false
		dup.CreatedAt = now
		dup.UpdatedAt = now
		for j := range dup.Widgets {
			dup.Widgets[j].ID = s.newID()
			dup.Widgets[j].Position.I = dup.Widgets[j].ID
		}
		c := dup.Clone()
		created = &c
		return append(next, dup), []ChangeEvent{{Kind: ChangeCreated, DashboardID: dup.ID}}
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AddWidget appends a widget below the existing layout. Zero width or height
// fall back to the defaults and the id doubles as the grid item id.
func (s *DashboardServiceImpl) AddWidget(ctx context.Context, dashboardID string, input WidgetInput) (*Widget, error) {
	var added *Widget
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, dashboardID)
		if i < 0 {
			return next, nil
		}
		d := &next[i]

		w := Widget{
			ID:       s.newID(),
			Type:     input.Type,
			Title:    input.Title,
			Position: input.Position.clone(),
			Config:   input.Config.Clone(),
		}
		if input.DataSourceConfig != nil {
			ds := *input.DataSourceConfig
			ds.MockData = cloneRows(input.DataSourceConfig.MockData)
			w.DataSourceConfig = &ds
		}
		w = s.normalizeWidget(w)
		place(&w.Position, d.Bottom())

		d.Widgets = append(d.Widgets, w)
		d.UpdatedAt = s.now()

		c := w.Clone()
		added = &c
		return next, []ChangeEvent{{Kind: ChangeUpdated, DashboardID: dashboardID}}
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

func place(p *Position, bottom int) {
	if p.W <= 0 {
		p.W = DefaultWidgetWidth
	}
	if p.H <= 0 {
		p.H = DefaultWidgetHeight
	}
	if p.MinW != nil && p.W < *p.MinW {
		p.W = *p.MinW
	}
	if p.MinH != nil && p.H < *p.MinH {
		p.H = *p.MinH
	}
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < bottom {
		p.Y = bottom
	}
}

func (s *DashboardServiceImpl) UpdateWidget(ctx context.Context, dashboardID, widgetID string, patch WidgetPatch) (*Widget, error) {
	var updated *Widget
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, dashboardID)
		if i < 0 {
			return next, nil
		}
		d := &next[i]
		w := d.Widget(widgetID)
		if w == nil {
			return next, nil
		}

		if patch.Title != nil {
			w.Title = *patch.Title
		}
		if patch.Type != nil && *patch.Type != w.Type {
			w.Type = *patch.Type
			if cfg, err := w.Config.Retype(w.Type); err == nil {
				w.Config = cfg
			} else {
				s.logger.Warn("Widget config could not be converted", zap.String("widgetId", w.ID), zap.Error(err))
				w.Config = WidgetConfig{Options: NewOptions(w.Type)}
			}
		}
		if patch.Config != nil {
			w.Config = patch.Config.Clone()
		}
		if patch.Position != nil {
			w.Position = patch.Position.clone()
		}
		if patch.DataSourceConfig != nil {
			ds := *patch.DataSourceConfig
			ds.MockData = cloneRows(patch.DataSourceConfig.MockData)
			w.DataSourceConfig = &ds
		}
		*w = s.normalizeWidget(*w)
		d.UpdatedAt = s.now()

		c := w.Clone()
		updated = &c
		return next, []ChangeEvent{{Kind: ChangeUpdated, DashboardID: dashboardID}}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *DashboardServiceImpl) RemoveWidget(ctx context.Context, dashboardID, widgetID string) (bool, error) {
	removed := false
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, dashboardID)
		if i < 0 {
			return next, nil
		}
		d := &next[i]
		for j := range d.Widgets {
			if d.Widgets[j].ID == widgetID {
				d.Widgets = append(d.Widgets[:j], d.Widgets[j+1:]...)
				d.UpdatedAt = s.now()
				removed = true
				return next, []ChangeEvent{{Kind: ChangeUpdated, DashboardID: dashboardID}}
			}
		}
		return next, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// UpdateWidgetPositions copies x, y, w and h from layout entries onto the
// widgets whose id matches the entry's i. Other widgets are left as they are.
func (s *DashboardServiceImpl) UpdateWidgetPositions(ctx context.Context, dashboardID string, layout []LayoutItem) (*Dashboard, error) {
	var updated *Dashboard
	err := s.commit(ctx, func(next []Dashboard) ([]Dashboard, []ChangeEvent) {
		i := indexOf(next, dashboardID)
		if i < 0 {
			return next, nil
		}
		d := &next[i]

		byID := make(map[string]LayoutItem, len(layout))
		for _, item := range layout {
			byID[item.I] = item
		}

		changed := false
		for j := range d.Widgets {
			item, ok := byID[d.Widgets[j].ID]
			if !ok {
				continue
			}
			p := &d.Widgets[j].Position
			if p.X != item.X || p.Y != item.Y || p.W != item.W || p.H != item.H {
				p.X, p.Y, p.W, p.H = item.X, item.Y, item.W, item.H
				changed = true
			}
		}

		c := d.Clone()
		updated = &c
		if !changed {
			return next, nil
		}
		d.UpdatedAt = s.now()
		updated.UpdatedAt = d.UpdatedAt
		return next, []ChangeEvent{{Kind: ChangeUpdated, DashboardID: dashboardID}}
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ExportDashboard renders the dashboard as indented JSON.
func (s *DashboardServiceImpl) ExportDashboard(id string) (string, error) {
	d := s.GetDashboard(id)
	if d == nil {
		return "", ErrDashboardNotFound
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type importPayload struct {
	Title           string          `json:"title" validate:"required"`
	Description     string          `json:"description"`
	Widgets         []Widget        `json:"widgets" validate:"required"`
	Variables       map[string]any  `json:"variables"`
	RefreshInterval int64           `json:"refreshInterval"`
	AutoRefresh     bool            `json:"autoRefresh"`
	GlobalFilters   []filter.Filter `json:"globalFilters"`
}

// ImportDashboard inserts an exported dashboard as a new, non-primary
// dashboard with a fresh id. Invalid input leaves the collection unchanged.
func (s *DashboardServiceImpl) ImportDashboard(ctx context.Context, data []byte) (*Dashboard, error) {
	var payload importPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if err := s.validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	return s.AddDashboard(ctx, DashboardInput{
		Title:           payload.Title,
		Description:     payload.Description,
		Widgets:         payload.Widgets,
		Variables:       payload.Variables,
		RefreshInterval: payload.RefreshInterval,
		AutoRefresh:     payload.AutoRefresh,
		GlobalFilters:   payload.GlobalFilters,
	})
}

func (s *DashboardServiceImpl) Subscribe(fn func(ChangeEvent)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// commit runs fn against a private copy of the collection. When fn reports
// changes the copy is saved and then swapped in; a failed save leaves the
// current collection untouched. Subscribers run after the lock is released.
func (s *DashboardServiceImpl) commit(ctx context.Context, fn func(next []Dashboard) ([]Dashboard, []ChangeEvent)) error {
	s.mu.Lock()
	next, events := fn(cloneAll(s.dashboards))
	if len(events) == 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.repo.Save(ctx, next); err != nil {
		s.mu.Unlock()
		s.logger.Error("Failed to persist dashboards", zap.Error(err))
		return fmt.Errorf("persist dashboards: %w", err)
	}
	s.dashboards = next
	s.mu.Unlock()

	s.publish(events)
	return nil
}

func (s *DashboardServiceImpl) publish(events []ChangeEvent) {
	s.subMu.Lock()
	subs := make([]func(ChangeEvent), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, e := range events {
		for _, fn := range subs {
			fn(e)
		}
	}
}

// normalizeWidget assigns a missing id, keeps position.i equal to the id and
// makes sure the config options match the widget type.
func (s *DashboardServiceImpl) normalizeWidget(w Widget) Widget {
	if w.ID == "" {
		w.ID = s.newID()
	}
	w.Position.I = w.ID
	if w.Config.Options == nil || w.Config.Options.WidgetType() != w.Type {
		cfg, err := w.Config.Retype(w.Type)
		if err != nil {
			cfg = WidgetConfig{Options: NewOptions(w.Type)}
		}
		w.Config = cfg
	}
	return w
}

func cloneAll(in []Dashboard) []Dashboard {
	out := make([]Dashboard, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

func indexOf(dashboards []Dashboard, id string) int {
	for i := range dashboards {
		if dashboards[i].ID == id {
			return i
		}
	}
	return -1
}
