package dashboard

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-chainwatch/pkg/filter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*DashboardServiceImpl, *MemoryDashboardRepository) {
	t.Helper()
	repo := NewMemoryDashboardRepository()
	svc := newDashboardService(repo, zap.NewNop())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	require.NoError(t, svc.Hydrate(context.Background()))
	return svc, repo
}

func barInput(title string, pos Position) WidgetInput {
	return WidgetInput{
		Type:     WidgetTypeBar,
		Title:    title,
		Position: pos,
		Config:   WidgetConfig{Options: BarOptions{DataKey: "count", XDataKey: "severity"}},
	}
}

func TestAddDashboard(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	d, err := svc.AddDashboard(ctx, DashboardInput{Title: "Security Overview", Description: "Alerts"})
	require.NoError(t, err)

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, []Widget{}, d.Widgets)
	assert.Equal(t, d.CreatedAt, d.UpdatedAt)
	assert.False(t, d.IsPrimary)

	// persisted before the next read
	stored, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Security Overview", stored[0].Title)
}

func TestUpdateDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.AddDashboard(ctx, DashboardInput{Title: "Before"})
	require.NoError(t, err)

	title := "After"
	auto := true
	updated, err := svc.UpdateDashboard(ctx, d.ID, DashboardPatch{Title: &title, AutoRefresh: &auto})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "After", updated.Title)
	assert.True(t, updated.AutoRefresh)
	assert.True(t, updated.UpdatedAt.After(d.UpdatedAt))
	assert.Equal(t, d.CreatedAt, updated.CreatedAt)

	missing, err := svc.UpdateDashboard(ctx, "nope", DashboardPatch{Title: &title})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetPrimaryDashboardKeepsOnePrimary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		d, err := svc.AddDashboard(ctx, DashboardInput{Title: fmt.Sprintf("D%d", i)})
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	sequence := []string{ids[2], ids[0], "missing", ids[3], ids[3], ids[1]}
	for _, id := range sequence {
		_, err := svc.SetPrimaryDashboard(ctx, id)
		require.NoError(t, err)

		primaries := 0
		for _, d := range svc.ListDashboards() {
			if d.IsPrimary {
				primaries++
			}
		}
		assert.Equal(t, 1, primaries, "after setting %s", id)
	}

	assert.Equal(t, ids[1], svc.GetPrimaryDashboard().ID)

	found, err := svc.SetPrimaryDashboard(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, ids[1], svc.GetPrimaryDashboard().ID)
}

func TestAddWidget(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	require.NoError(t, err)

	first, err := svc.AddWidget(ctx, d.ID, barInput("Existing", Position{X: 0, Y: 0, W: 6, H: 4}))
	require.NoError(t, err)
	assert.Equal(t, first.ID, first.Position.I)
	assert.Equal(t, 0, first.Position.Y)

	second, err := svc.AddWidget(ctx, d.ID, barInput("X", Position{X: 0, Y: 0, W: 6, H: 4}))
	require.NoError(t, err)
	assert.Equal(t, second.ID, second.Position.I)
	assert.GreaterOrEqual(t, second.Position.Y, 4)

	third, err := svc.AddWidget(ctx, d.ID, WidgetInput{Type: WidgetTypeGauge, Title: "Risk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultWidgetWidth, third.Position.W)
	assert.Equal(t, DefaultWidgetHeight, third.Position.H)
	assert.Equal(t, 8, third.Position.Y)
	assert.IsType(t, GaugeOptions{}, third.Config.Options)

	stored := svc.GetDashboard(d.ID)
	require.Len(t, stored.Widgets, 3)
	assert.True(t, stored.UpdatedAt.After(d.UpdatedAt))

	missing, err := svc.AddWidget(ctx, "nope", barInput("X", Position{}))
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUpdateWidgetPositionsPartialLayout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	minW := 2
	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Layout"})
	a, _ := svc.AddWidget(ctx, d.ID, barInput("A", Position{W: 6, H: 4}))
	b, _ := svc.AddWidget(ctx, d.ID, barInput("B", Position{X: 6, W: 6, H: 4, MinW: &minW}))

	before := svc.GetDashboard(d.ID).Widget(b.ID).Position

	updated, err := svc.UpdateWidgetPositions(ctx, d.ID, []LayoutItem{
		{I: a.ID, X: 3, Y: 10, W: 4, H: 2},
		{I: "unknown", X: 1, Y: 1, W: 1, H: 1},
	})
	require.NoError(t, err)
	require.Len(t, updated.Widgets, 2)

	pa := updated.Widget(a.ID)
	assert.Equal(t, Position{I: a.ID, X: 3, Y: 10, W: 4, H: 2}, pa.Position)
	assert.Equal(t, "A", pa.Title)
	assert.Equal(t, BarOptions{DataKey: "count", XDataKey: "severity"}, pa.Config.Options)

	assert.Equal(t, before, updated.Widget(b.ID).Position)
}

func TestUpdateWidget(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	w, _ := svc.AddWidget(ctx, d.ID, barInput("Alerts", Position{W: 6, H: 4}))

	lineType := WidgetTypeLine
	title := "Alerts over time"
	updated, err := svc.UpdateWidget(ctx, d.ID, w.ID, WidgetPatch{
		Type:     &lineType,
		Title:    &title,
		Position: &Position{I: "stale", X: 1, Y: 2, W: 3, H: 4},
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "Alerts over time", updated.Title)
	assert.Equal(t, w.ID, updated.Position.I)
	// options with matching names survive the type change
	assert.Equal(t, LineOptions{DataKey: "count", XDataKey: "severity"}, updated.Config.Options)

	missing, err := svc.UpdateWidget(ctx, d.ID, "nope", WidgetPatch{Title: &title})
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRemoveWidgetAndDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	w, _ := svc.AddWidget(ctx, d.ID, barInput("A", Position{}))

	removed, err := svc.RemoveWidget(ctx, d.ID, w.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, svc.GetDashboard(d.ID).Widgets)

	removed, err = svc.RemoveWidget(ctx, d.ID, w.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = svc.RemoveDashboard(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Nil(t, svc.GetDashboard(d.ID))
	assert.Empty(t, svc.ListDashboards())
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Risk", Description: "Watched wallets"})
	_, _ = svc.AddWidget(ctx, d.ID, barInput("By severity", Position{W: 6, H: 4}))
	_, _ = svc.AddWidget(ctx, d.ID, WidgetInput{
		Type:  WidgetTypeTable,
		Title: "Addresses",
		Config: WidgetConfig{
			Filters: []filter.Filter{{ID: "f1", Field: "chain", Operator: filter.OperatorEquals, Value: "ethereum", IsActive: true}},
			Options: TableOptions{Columns: []string{"address", "chain"}},
		},
		DataSourceConfig: &DataSource{Type: DataSourceAPI, URL: "http://backend/api/addresses", ResultPath: "data"},
	})
	_, _ = svc.SetPrimaryDashboard(ctx, d.ID)
	original := svc.GetDashboard(d.ID)

	text, err := svc.ExportDashboard(d.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "\n  \"title\": \"Risk\"")

	imported, err := svc.ImportDashboard(ctx, []byte(text))
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, imported.ID)
	assert.False(t, imported.IsPrimary)
	assert.Equal(t, original.Title, imported.Title)
	assert.Equal(t, original.Description, imported.Description)
	assert.Equal(t, original.Widgets, imported.Widgets)
	assert.Len(t, svc.ListDashboards(), 2)
}

func TestImportDashboardInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Malformed JSON", `{"title": "x", "widgets": [`},
		{"Missing Title", `{"widgets": []}`},
		{"Empty Title", `{"title": "", "widgets": []}`},
		{"Missing Widgets", `{"title": "No widgets"}`},
		{"Null Widgets", `{"title": "Null", "widgets": null}`},
		{"Not An Object", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			ctx := context.Background()
			_, err := svc.AddDashboard(ctx, DashboardInput{Title: "Existing"})
			require.NoError(t, err)
			snapshot := repo.Raw()

			d, err := svc.ImportDashboard(ctx, []byte(tt.input))
			assert.Nil(t, d)
			assert.ErrorIs(t, err, ErrInvalidImport)
			assert.Len(t, svc.ListDashboards(), 1)
			assert.Equal(t, snapshot, repo.Raw())
		})
	}
}

func TestDuplicateDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	w, _ := svc.AddWidget(ctx, d.ID, barInput("A", Position{}))
	_, _ = svc.SetPrimaryDashboard(ctx, d.ID)

	dup, err := svc.DuplicateDashboard(ctx, d.ID)
	require.NoError(t, err)

	assert.Equal(t, "Ops (Copy)", dup.Title)
	assert.False(t, dup.IsPrimary)
	require.Len(t, dup.Widgets, 1)
	assert.NotEqual(t, w.ID, dup.Widgets[0].ID)
	assert.Equal(t, dup.Widgets[0].ID, dup.Widgets[0].Position.I)
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	repo.FailSave = errors.New("disk full")

	title := "Renamed"
	updated, err := svc.UpdateDashboard(ctx, d.ID, DashboardPatch{Title: &title})
	assert.Error(t, err)
	assert.Nil(t, updated)
	assert.Equal(t, "Ops", svc.GetDashboard(d.ID).Title)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	_, _ = svc.AddWidget(ctx, d.ID, barInput("A", Position{}))

	got := svc.GetDashboard(d.ID)
	got.Widgets[0].Title = "mutated"
	got.Title = "mutated"

	assert.Equal(t, "A", svc.GetDashboard(d.ID).Widgets[0].Title)
	assert.Equal(t, "Ops", svc.GetDashboard(d.ID).Title)
}

func TestSubscribeReceivesChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var events []ChangeEvent
	cancel := svc.Subscribe(func(e ChangeEvent) { events = append(events, e) })

	d, _ := svc.AddDashboard(ctx, DashboardInput{Title: "Ops"})
	_, _ = svc.RemoveDashboard(ctx, "missing")
	_, _ = svc.RemoveDashboard(ctx, d.ID)
	cancel()
	_, _ = svc.AddDashboard(ctx, DashboardInput{Title: "Ignored"})

	assert.Equal(t, []ChangeEvent{
		{Kind: ChangeCreated, DashboardID: d.ID},
		{Kind: ChangeRemoved, DashboardID: d.ID},
	}, events)
}

func TestHydrateRepairsInvariants(t *testing.T) {
	repo := NewMemoryDashboardRepository()
	require.NoError(t, repo.Save(context.Background(), []Dashboard{
		{ID: "a", Title: "A", IsPrimary: true, Widgets: []Widget{{ID: "w1", Type: WidgetTypePie, Position: Position{I: "other"}}}},
		{ID: "b", Title: "B", IsPrimary: true},
	}))

	svc := newDashboardService(repo, zap.NewNop())
	require.NoError(t, svc.Hydrate(context.Background()))

	assert.True(t, svc.GetDashboard("a").IsPrimary)
	assert.False(t, svc.GetDashboard("b").IsPrimary)
	assert.Equal(t, []Widget{}, svc.GetDashboard("b").Widgets)

	w := svc.GetDashboard("a").Widgets[0]
	assert.Equal(t, "w1", w.Position.I)
	assert.IsType(t, PieOptions{}, w.Config.Options)
}
