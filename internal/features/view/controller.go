package view

import (
	"errors"
	"fmt"

	"go-chainwatch/internal/features/dashboard"
	"go-chainwatch/internal/features/globalfilter"
	"go-chainwatch/pkg/filter"

	"github.com/gofiber/fiber/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ViewController struct {
	ViewService ViewService
}

func NewViewController(viewService ViewService) *ViewController {
	return &ViewController{
		ViewService: viewService,
	}
}

type OpenViewInput struct {
	DashboardID string `json:"dashboardId"`
}

func viewError(ctx *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrViewNotFound), errors.Is(err, ErrWidgetNotFound), errors.Is(err, dashboard.ErrDashboardNotFound):
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrViewClosed):
		return ctx.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNoClickValue):
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

func (ctrl *ViewController) view(ctx *fiber.Ctx) (*View, error) {
	return ctrl.ViewService.Get(ctx.Params("id"))
}

// ListViews godoc
// @Summary List open views
// @Tags view
// @Produce json
// @Success 200 {array} Summary
// @Router /api/views [get]
func (ctrl *ViewController) ListViews(ctx *fiber.Ctx) error {
	return ctx.JSON(ctrl.ViewService.List())
}

// OpenView godoc
// @Summary Open a dashboard view
// @Description Bind every widget of a dashboard and load its data
// @Tags view
// @Accept json
// @Produce json
// @Param input body OpenViewInput true "Dashboard to open"
// @Success 201 {object} Snapshot
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/views [post]
func (ctrl *ViewController) OpenView(ctx *fiber.Ctx) error {
	var input OpenViewInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if input.DashboardID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dashboardId is required"})
	}

	v, err := ctrl.ViewService.Open(ctx.UserContext(), input.DashboardID)
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(v.Snapshot())
}

// GetView godoc
// @Summary Get view snapshot
// @Tags view
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} Snapshot
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id} [get]
func (ctrl *ViewController) GetView(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(v.Snapshot())
}

// CloseView godoc
// @Summary Close view
// @Tags view
// @Param id path string true "View ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id} [delete]
func (ctrl *ViewController) CloseView(ctx *fiber.Ctx) error {
	if !ctrl.ViewService.Close(ctx.Params("id")) {
		return viewError(ctx, ErrViewNotFound)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// RefreshView godoc
// @Summary Refresh every widget
// @Tags view
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {object} Snapshot
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/refresh [post]
func (ctrl *ViewController) RefreshView(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	if err := v.RefreshAll(); err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(v.Snapshot())
}

// GetWidget godoc
// @Summary Get rendered widget
// @Tags view
// @Produce json
// @Param id path string true "View ID"
// @Param widgetId path string true "Widget ID"
// @Success 200 {object} WidgetState
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/widgets/{widgetId} [get]
func (ctrl *ViewController) GetWidget(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	state, err := v.Widget(ctx.Params("widgetId"))
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(state)
}

// RefreshWidget godoc
// @Summary Refresh one widget
// @Tags view
// @Produce json
// @Param id path string true "View ID"
// @Param widgetId path string true "Widget ID"
// @Success 200 {object} WidgetState
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/widgets/{widgetId}/refresh [post]
func (ctrl *ViewController) RefreshWidget(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	state, err := v.RefreshWidget(ctx.Params("widgetId"))
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(state)
}

// ExportWidget godoc
// @Summary Export widget data
// @Description Download the filtered rows of a widget as an Excel workbook
// @Tags view
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "View ID"
// @Param widgetId path string true "Widget ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/widgets/{widgetId}/export [get]
func (ctrl *ViewController) ExportWidget(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	data, filename, err := v.ExportWidget(ctx.UserContext(), ctx.Params("widgetId"))
	if err != nil {
		return viewError(ctx, err)
	}

	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

// ExportView godoc
// @Summary Export view data
// @Description Download every widget as one sheet of an Excel workbook
// @Tags view
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "View ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/export [get]
func (ctrl *ViewController) ExportView(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	data, filename, err := v.Export(ctx.UserContext())
	if err != nil {
		return viewError(ctx, err)
	}

	ctx.Set("Content-Type", xlsxContentType)
	ctx.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return ctx.Send(data)
}

// ListFilters godoc
// @Summary List global filters
// @Tags view
// @Produce json
// @Param id path string true "View ID"
// @Success 200 {array} filter.Filter
// @Router /api/views/{id}/filters [get]
func (ctrl *ViewController) ListFilters(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(v.Filters())
}

// AddFilter godoc
// @Summary Add global filter
// @Description Add a filter to every widget of the view. Re-adding an existing criterion reactivates it.
// @Tags view
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param filter body filter.Filter true "Filter"
// @Success 201 {object} filter.Filter
// @Failure 400 {object} map[string]interface{}
// @Router /api/views/{id}/filters [post]
func (ctrl *ViewController) AddFilter(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	var input filter.Filter
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if input.Field == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "field is required"})
	}

	added, err := v.AddFilter(input)
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(added)
}

// UpdateFilter godoc
// @Summary Update global filter
// @Tags view
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param filterId path string true "Filter ID"
// @Param patch body globalfilter.FilterPatch true "Fields to change"
// @Success 200 {object} filter.Filter
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/filters/{filterId} [put]
func (ctrl *ViewController) UpdateFilter(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	var patch globalfilter.FilterPatch
	if err := ctx.BodyParser(&patch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	updated, ok, err := v.UpdateFilter(ctx.Params("filterId"), patch)
	if err != nil {
		return viewError(ctx, err)
	}
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "filter not found"})
	}
	return ctx.JSON(updated)
}

// RemoveFilter godoc
// @Summary Remove global filter
// @Tags view
// @Param id path string true "View ID"
// @Param filterId path string true "Filter ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/filters/{filterId} [delete]
func (ctrl *ViewController) RemoveFilter(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	removed, err := v.RemoveFilter(ctx.Params("filterId"))
	if err != nil {
		return viewError(ctx, err)
	}
	if !removed {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "filter not found"})
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// ClearFilters godoc
// @Summary Clear global filters
// @Tags view
// @Param id path string true "View ID"
// @Success 204
// @Router /api/views/{id}/filters [delete]
func (ctrl *ViewController) ClearFilters(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	if err := v.ClearFilters(); err != nil {
		return viewError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// Click godoc
// @Summary Filter by chart element
// @Description Turn a click on a chart element into a global filter
// @Tags view
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param click body ClickInput true "Clicked element"
// @Success 201 {object} filter.Filter
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/views/{id}/click [post]
func (ctrl *ViewController) Click(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	var input ClickInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	added, err := v.Click(input)
	if err != nil {
		return viewError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(added)
}

// SetVariable godoc
// @Summary Set dashboard variable
// @Description Set a variable and refetch every widget
// @Tags view
// @Accept json
// @Produce json
// @Param id path string true "View ID"
// @Param variable body VariableInput true "Variable"
// @Success 200 {object} Snapshot
// @Failure 400 {object} map[string]interface{}
// @Router /api/views/{id}/variables [put]
func (ctrl *ViewController) SetVariable(ctx *fiber.Ctx) error {
	v, err := ctrl.view(ctx)
	if err != nil {
		return viewError(ctx, err)
	}
	var input VariableInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if input.Key == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key is required"})
	}

	if err := v.SetVariable(input.Key, input.Value); err != nil {
		return viewError(ctx, err)
	}
	return ctx.JSON(v.Snapshot())
}
