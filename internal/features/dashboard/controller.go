package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-chainwatch/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type DashboardController struct {
	DashboardService DashboardService
}

func NewDashboardController(dashboardService DashboardService) *DashboardController {
	return &DashboardController{
		DashboardService: dashboardService,
	}
}

func notFound(ctx *fiber.Ctx, what string) error {
	return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": what + " not found"})
}

// ListDashboards godoc
// @Summary List dashboards
// @Description List every dashboard in the collection
// @Tags dashboard
// @Produce json
// @Success 200 {array} Dashboard
// @Router /api/dashboards [get]
func (ctrl *DashboardController) ListDashboards(ctx *fiber.Ctx) error {
	return ctx.JSON(ctrl.DashboardService.ListDashboards())
}

// CreateDashboard godoc
// @Summary Create dashboard
// @Description Create a new, empty-by-default dashboard
// @Tags dashboard
// @Accept json
// @Produce json
// @Param dashboard body DashboardInput true "Dashboard"
// @Success 201 {object} Dashboard
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/dashboards [post]
func (ctrl *DashboardController) CreateDashboard(ctx *fiber.Ctx) error {
	var input DashboardInput
	if err := ctx.BodyParser(&input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	dashboard, err := ctrl.DashboardService.AddDashboard(ctx.UserContext(), input)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.Status(fiber.StatusCreated).JSON(dashboard)
}

// GetPrimaryDashboard godoc
// @Summary Get primary dashboard
// @Tags dashboard
// @Produce json
// @Success 200 {object} Dashboard
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/primary [get]
func (ctrl *DashboardController) GetPrimaryDashboard(ctx *fiber.Ctx) error {
	dashboard := ctrl.DashboardService.GetPrimaryDashboard()
	if dashboard == nil {
		return notFound(ctx, "primary dashboard")
	}
	return ctx.JSON(dashboard)
}

// GetDashboard godoc
// @Summary Get dashboard
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} Dashboard
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id} [get]
func (ctrl *DashboardController) GetDashboard(ctx *fiber.Ctx) error {
	dashboard := ctrl.DashboardService.GetDashboard(ctx.Params("id"))
	if dashboard == nil {
		return notFound(ctx, "dashboard")
	}
	return ctx.JSON(dashboard)
}

// UpdateDashboard godoc
// @Summary Update dashboard
// @Description Merge the given fields into a dashboard
// @Tags dashboard
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param dashboard body DashboardPatch true "Fields to change"
// @Success 200 {object} Dashboard
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/dashboards/{id} [put]
func (ctrl *DashboardController) UpdateDashboard(ctx *fiber.Ctx) error {
	var patch DashboardPatch
	if err := ctx.BodyParser(&patch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	dashboard, err := ctrl.DashboardService.UpdateDashboard(ctx.UserContext(), ctx.Params("id"), patch)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if dashboard == nil {
		return notFound(ctx, "dashboard")
	}
	return ctx.JSON(dashboard)
}

// DeleteDashboard godoc
// @Summary Delete dashboard
// @Tags dashboard
// @Param id path string true "Dashboard ID"
// @Success 204 {object} nil
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/dashboards/{id} [delete]
func (ctrl *DashboardController) DeleteDashboard(ctx *fiber.Ctx) error {
	removed, err := ctrl.DashboardService.RemoveDashboard(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !removed {
		return notFound(ctx, "dashboard")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// SetPrimaryDashboard godoc
// @Summary Set primary dashboard
// @Description Mark a dashboard as primary and clear the flag on all others
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/dashboards/{id}/set-primary [post]
func (ctrl *DashboardController) SetPrimaryDashboard(ctx *fiber.Ctx) error {
	found, err := ctrl.DashboardService.SetPrimaryDashboard(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !found {
		return notFound(ctx, "dashboard")
	}
	return ctx.JSON(fiber.Map{"message": "Primary dashboard set successfully"})
}

// DuplicateDashboard godoc
// @Summary Duplicate dashboard
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 201 {object} Dashboard
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/duplicate [post]
func (ctrl *DashboardController) DuplicateDashboard(ctx *fiber.Ctx) error {
	dashboard, err := ctrl.DashboardService.DuplicateDashboard(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if dashboard == nil {
		return notFound(ctx, "dashboard")
	}
	return ctx.Status(fiber.StatusCreated).JSON(dashboard)
}

// ExportDashboard godoc
// @Summary Export dashboard
// @Description Download a dashboard as an indented JSON document
// @Tags dashboard
// @Produce json
// @Param id path string true "Dashboard ID"
// @Success 200 {object} Dashboard
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/export [get]
func (ctrl *DashboardController) ExportDashboard(ctx *fiber.Ctx) error {
	id := ctx.Params("id")
	text, err := ctrl.DashboardService.ExportDashboard(id)
	if errors.Is(err, ErrDashboardNotFound) {
		return notFound(ctx, "dashboard")
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	name := "dashboard"
	if d := ctrl.DashboardService.GetDashboard(id); d != nil && utils.Slugify(d.Title) != "" {
		name = utils.Slugify(d.Title)
	}
	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.json"`, name))
	return ctx.SendString(text)
}

// ImportDashboard godoc
// @Summary Import dashboard
// @Description Create a new dashboard from an exported JSON document
// @Tags dashboard
// @Accept json
// @Produce json
// @Param dashboard body Dashboard true "Exported dashboard"
// @Success 201 {object} Dashboard
// @Failure 400 {object} map[string]interface{}
// @Router /api/dashboards/import [post]
func (ctrl *DashboardController) ImportDashboard(ctx *fiber.Ctx) error {
	dashboard, err := ctrl.DashboardService.ImportDashboard(ctx.UserContext(), ctx.Body())
	if errors.Is(err, ErrInvalidImport) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(dashboard)
}

// AddWidget godoc
// @Summary Add widget
// @Description Add a widget below the existing layout of a dashboard
// @Tags widget
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param widget body WidgetInput true "Widget"
// @Success 201 {object} Widget
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/widgets [post]
func (ctrl *DashboardController) AddWidget(ctx *fiber.Ctx) error {
	var input WidgetInput
	if err := json.Unmarshal(ctx.Body(), &input); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if input.Type == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "widget type is required"})
	}

	widget, err := ctrl.DashboardService.AddWidget(ctx.UserContext(), ctx.Params("id"), input)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if widget == nil {
		return notFound(ctx, "dashboard")
	}
	return ctx.Status(fiber.StatusCreated).JSON(widget)
}

type widgetPatchRequest struct {
	Type             *WidgetType     `json:"type"`
	Title            *string         `json:"title"`
	Position         *Position       `json:"position"`
	Config           json.RawMessage `json:"config"`
	DataSourceConfig *DataSource     `json:"dataSourceConfig"`
}

// toPatch decodes the config against the widget type it will end up with.
func (r widgetPatchRequest) toPatch(current WidgetType) (WidgetPatch, error) {
	patch := WidgetPatch{
		Type:             r.Type,
		Title:            r.Title,
		Position:         r.Position,
		DataSourceConfig: r.DataSourceConfig,
	}
	if len(r.Config) > 0 {
		t := current
		if r.Type != nil {
			t = *r.Type
		}
		cfg, err := DecodeWidgetConfig(t, r.Config)
		if err != nil {
			return WidgetPatch{}, err
		}
		patch.Config = &cfg
	}
	return patch, nil
}

// UpdateWidget godoc
// @Summary Update widget
// @Tags widget
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param widgetId path string true "Widget ID"
// @Param widget body WidgetInput true "Fields to replace"
// @Success 200 {object} Widget
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/widgets/{widgetId} [put]
func (ctrl *DashboardController) UpdateWidget(ctx *fiber.Ctx) error {
	dashboardID, widgetID := ctx.Params("id"), ctx.Params("widgetId")

	dashboard := ctrl.DashboardService.GetDashboard(dashboardID)
	if dashboard == nil {
		return notFound(ctx, "dashboard")
	}
	current := dashboard.Widget(widgetID)
	if current == nil {
		return notFound(ctx, "widget")
	}

	var req widgetPatchRequest
	if err := json.Unmarshal(ctx.Body(), &req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	patch, err := req.toPatch(current.Type)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	widget, err := ctrl.DashboardService.UpdateWidget(ctx.UserContext(), dashboardID, widgetID, patch)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if widget == nil {
		return notFound(ctx, "widget")
	}
	return ctx.JSON(widget)
}

// RemoveWidget godoc
// @Summary Remove widget
// @Tags widget
// @Param id path string true "Dashboard ID"
// @Param widgetId path string true "Widget ID"
// @Success 204 {object} nil
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/widgets/{widgetId} [delete]
func (ctrl *DashboardController) RemoveWidget(ctx *fiber.Ctx) error {
	removed, err := ctrl.DashboardService.RemoveWidget(ctx.UserContext(), ctx.Params("id"), ctx.Params("widgetId"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !removed {
		return notFound(ctx, "widget")
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// UpdateLayout godoc
// @Summary Update widget positions
// @Description Apply a grid layout-change event; widgets absent from the layout keep their position
// @Tags widget
// @Accept json
// @Produce json
// @Param id path string true "Dashboard ID"
// @Param layout body []LayoutItem true "Layout"
// @Success 200 {object} Dashboard
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/dashboards/{id}/layout [put]
func (ctrl *DashboardController) UpdateLayout(ctx *fiber.Ctx) error {
	var layout []LayoutItem
	if err := ctx.BodyParser(&layout); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	dashboard, err := ctrl.DashboardService.UpdateWidgetPositions(ctx.UserContext(), ctx.Params("id"), layout)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if dashboard == nil {
		return notFound(ctx, "dashboard")
	}
	return ctx.JSON(dashboard)
}
