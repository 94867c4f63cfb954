package view

import (
	"errors"
	"time"

	"go-chainwatch/internal/features/renderer"
	"go-chainwatch/pkg/filter"
)

var (
	ErrViewNotFound   = errors.New("view not found")
	ErrWidgetNotFound = errors.New("widget not found")
	ErrViewClosed     = errors.New("view closed")
)

type UpdateKind string

const (
	UpdateWidget    UpdateKind = "widget"
	UpdateFilters   UpdateKind = "filters"
	UpdateVariables UpdateKind = "variables"
	UpdateLayout    UpdateKind = "layout"
	UpdateClosed    UpdateKind = "closed"
)

// WidgetState is a rendered widget together with its loading state.
type WidgetState struct {
	renderer.View
	IsLoading   bool       `json:"isLoading"`
	Error       string     `json:"error,omitempty"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// Snapshot is the full state of an open view.
type Snapshot struct {
	ID          string          `json:"id"`
	DashboardID string          `json:"dashboardId"`
	Title       string          `json:"title"`
	Filters     []filter.Filter `json:"filters"`
	Variables   map[string]any  `json:"variables"`
	Widgets     []WidgetState   `json:"widgets"`
}

// Summary lists an open view without its widget data.
type Summary struct {
	ID          string    `json:"id"`
	DashboardID string    `json:"dashboardId"`
	OpenedAt    time.Time `json:"openedAt"`
	Widgets     int       `json:"widgets"`
}

// Update is pushed to view subscribers. Only the fields of its kind are set.
type Update struct {
	Kind      UpdateKind      `json:"kind"`
	Widget    *WidgetState    `json:"widget,omitempty"`
	Filters   []filter.Filter `json:"filters,omitempty"`
	Variables map[string]any  `json:"variables,omitempty"`
	Snapshot  *Snapshot       `json:"snapshot,omitempty"`
}

// ClickInput identifies the chart element a user clicked.
type ClickInput struct {
	WidgetID string     `json:"widgetId"`
	Row      filter.Row `json:"row"`
}

type VariableInput struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Command is a message a websocket client sends to its view.
type Command struct {
	Action   string     `json:"action"`
	WidgetID string     `json:"widgetId,omitempty"`
	FilterID string     `json:"filterId,omitempty"`
	Row      filter.Row `json:"row,omitempty"`
	Key      string     `json:"key,omitempty"`
	Value    any        `json:"value,omitempty"`
}
