package globalfilter

import (
	"sync"
	"time"

	"go-chainwatch/pkg/filter"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventFiltersChanged   EventKind = "filters_changed"
	EventRefreshRequested EventKind = "refresh_requested"
	EventVariableChanged  EventKind = "variable_changed"
)

// Event describes one change to a Context. WidgetID is empty for a refresh
// of every widget.
type Event struct {
	Kind     EventKind
	Filters  []filter.Filter
	WidgetID string
	Stamp    int64
	Key      string
	Value    any
}

// FilterPatch holds the fields UpdateGlobalFilter merges into a filter.
// A nil Value leaves the value unchanged.
type FilterPatch struct {
	Field    *string          `json:"field,omitempty"`
	Operator *filter.Operator `json:"operator,omitempty"`
	Value    any              `json:"value,omitempty"`
	IsActive *bool            `json:"isActive,omitempty"`
	Label    *string          `json:"label,omitempty"`
}

// Context is the click-derived filter registry of one open dashboard view,
// together with its variables and per-widget refresh triggers.
type Context struct {
	mu        sync.Mutex
	filters   []filter.Filter
	variables map[string]any
	triggers  map[string]int64
	all       int64
	lastStamp int64
	version   uint64

	// notifyMu serializes filter-change delivery; delivered is the newest
	// version handed to onFiltersChange and subscribers.
	notifyMu        sync.Mutex
	delivered       uint64
	onFiltersChange func([]filter.Filter)

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	now   func() time.Time
	newID func() string
}

// NewContext seeds a context with a dashboard's persisted filters and
// variables. onFiltersChange may be nil.
func NewContext(initial []filter.Filter, variables map[string]any, onFiltersChange func([]filter.Filter)) *Context {
	c := &Context{
		filters:         copyFilters(initial),
		variables:       make(map[string]any, len(variables)),
		triggers:        make(map[string]int64),
		onFiltersChange: onFiltersChange,
		subs:            make(map[int]func(Event)),
		now:             time.Now,
		newID:           uuid.NewString,
	}
	if c.filters == nil {
		c.filters = []filter.Filter{}
	}
	for k, v := range variables {
		c.variables[k] = v
	}
	return c
}

// AddGlobalFilter inserts f with a fresh id. When a filter with the same
// field, operator and value exists it is reactivated in place instead.
func (c *Context) AddGlobalFilter(f filter.Filter) filter.Filter {
	c.mu.Lock()
	for i := range c.filters {
		if filter.SameCriteria(c.filters[i], f) {
			existing := &c.filters[i]
			if existing.IsActive {
				out := *existing
				c.mu.Unlock()
				return out
			}
			existing.IsActive = true
			out := *existing
			snapshot, version := c.snapshotLocked(), c.bumpLocked()
			c.mu.Unlock()
			c.filtersChanged(snapshot, version)
			return out
		}
	}

	f.ID = c.newID()
	c.filters = append(c.filters, f)
	snapshot, version := c.snapshotLocked(), c.bumpLocked()
	c.mu.Unlock()

	c.filtersChanged(snapshot, version)
	return f
}

// UpdateGlobalFilter merges patch into the filter with the given id.
func (c *Context) UpdateGlobalFilter(id string, patch FilterPatch) (filter.Filter, bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return filter.Filter{}, false
	}

	f := &c.filters[i]
	if patch.Field != nil {
		f.Field = *patch.Field
	}
	if patch.Operator != nil {
		f.Operator = *patch.Operator
	}
	if patch.Value != nil {
		f.Value = patch.Value
	}
	if patch.IsActive != nil {
		f.IsActive = *patch.IsActive
	}
	if patch.Label != nil {
		f.Label = *patch.Label
	}
	out := *f
	snapshot, version := c.snapshotLocked(), c.bumpLocked()
	c.mu.Unlock()

	c.filtersChanged(snapshot, version)
	return out, true
}

func (c *Context) RemoveGlobalFilter(id string) bool {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return false
	}
	c.filters = append(c.filters[:i], c.filters[i+1:]...)
	snapshot, version := c.snapshotLocked(), c.bumpLocked()
	c.mu.Unlock()

	c.filtersChanged(snapshot, version)
	return true
}

func (c *Context) ClearGlobalFilters() {
	c.mu.Lock()
	if len(c.filters) == 0 {
		c.mu.Unlock()
		return
	}
	c.filters = []filter.Filter{}
	snapshot, version := c.snapshotLocked(), c.bumpLocked()
	c.mu.Unlock()

	c.filtersChanged(snapshot, version)
}

// RefreshWidget bumps the refresh trigger of one widget and returns it.
func (c *Context) RefreshWidget(widgetID string) int64 {
	c.mu.Lock()
	stamp := c.stampLocked()
	c.triggers[widgetID] = stamp
	c.mu.Unlock()

	c.publish(Event{Kind: EventRefreshRequested, WidgetID: widgetID, Stamp: stamp})
	return stamp
}

// RefreshAllWidgets bumps the trigger shared by every widget.
func (c *Context) RefreshAllWidgets() int64 {
	c.mu.Lock()
	stamp := c.stampLocked()
	c.all = stamp
	c.mu.Unlock()

	c.publish(Event{Kind: EventRefreshRequested, Stamp: stamp})
	return stamp
}

// RefreshTrigger is the latest refresh stamp that applies to widgetID, or
// zero when no refresh was requested.
func (c *Context) RefreshTrigger(widgetID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.triggers[widgetID]; t > c.all {
		return t
	}
	return c.all
}

func (c *Context) SetVariable(key string, value any) {
	c.mu.Lock()
	c.variables[key] = value
	c.mu.Unlock()

	c.publish(Event{Kind: EventVariableChanged, Key: key, Value: value})
}

func (c *Context) Variable(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.variables[key]
	return v, ok
}

func (c *Context) Variables() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

func (c *Context) Filters() []filter.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Context) ActiveFilters() []filter.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []filter.Filter{}
	for _, f := range c.filters {
		if f.IsActive {
			out = append(out, f)
		}
	}
	return out
}

// Subscribe registers fn for context events and returns its cancel func.
func (c *Context) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// filtersChanged delivers snapshots in version order. A snapshot older than
// one already delivered is dropped.
func (c *Context) filtersChanged(snapshot []filter.Filter, version uint64) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version

	if c.onFiltersChange != nil {
		c.onFiltersChange(copyFilters(snapshot))
	}
	c.publish(Event{Kind: EventFiltersChanged, Filters: snapshot})
}

func (c *Context) publish(e Event) {
	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

// stampLocked returns a millisecond timestamp strictly greater than every
// stamp handed out before.
func (c *Context) stampLocked() int64 {
	ms := c.now().UnixMilli()
	if ms <= c.lastStamp {
		ms = c.lastStamp + 1
	}
	c.lastStamp = ms
	return ms
}

func (c *Context) bumpLocked() uint64 {
	c.version++
	return c.version
}

func (c *Context) indexLocked(id string) int {
	for i := range c.filters {
		if c.filters[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Context) snapshotLocked() []filter.Filter {
	return copyFilters(c.filters)
}

func copyFilters(in []filter.Filter) []filter.Filter {
	if in == nil {
		return nil
	}
	out := make([]filter.Filter, len(in))
	copy(out, in)
	return out
}
