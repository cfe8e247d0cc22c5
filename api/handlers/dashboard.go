package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querystream-gateway/backend/internal/dashboards"
	"github.com/querystream-gateway/backend/internal/model"
)

// DashboardHandler handles HTTP requests for dashboard management.
type DashboardHandler struct {
	service *dashboards.Service
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(service *dashboards.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// folderParam returns the folder scoping query parameter, defaulting to the
// default folder.
func folderParam(c *gin.Context) string {
	if folder := c.Query("folder"); folder != "" {
		return folder
	}
	return model.DefaultFolder
}

// Create handles POST /api/orgs/:org_id/dashboards — stores the raw body as
// a new dashboard definition under a server-generated id.
func (h *DashboardHandler) Create(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 || !json.Valid(body) {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON dashboard definition")
		return
	}

	d, err := h.service.CreateDashboard(c.Request.Context(), c.Param("org_id"), folderParam(c), body)
	if err != nil {
		if errors.Is(err, model.ErrFolderNotFound) {
			sendError(c, http.StatusNotFound, "FOLDER_NOT_FOUND", "Folder not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create dashboard: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, d)
}

// Get handles GET /api/orgs/:org_id/dashboards/:dashboard_id.
func (h *DashboardHandler) Get(c *gin.Context) {
	d, err := h.service.GetDashboard(c.Request.Context(), c.Param("org_id"), c.Param("dashboard_id"))
	if err != nil {
		if errors.Is(err, model.ErrDashboardNotFound) {
			sendError(c, http.StatusNotFound, "DASHBOARD_NOT_FOUND", "Dashboard not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get dashboard: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, d)
}

// List handles GET /api/orgs/:org_id/dashboards.
func (h *DashboardHandler) List(c *gin.Context) {
	list, err := h.service.ListDashboards(c.Request.Context(), c.Param("org_id"), folderParam(c))
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list dashboards: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"dashboards": list})
}

// Update handles PUT /api/orgs/:org_id/dashboards/:dashboard_id.
func (h *DashboardHandler) Update(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil || len(body) == 0 || !json.Valid(body) {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON dashboard definition")
		return
	}

	d, err := h.service.UpdateDashboard(c.Request.Context(), c.Param("org_id"), c.Param("dashboard_id"), body)
	if err != nil {
		if errors.Is(err, model.ErrDashboardNotFound) {
			sendError(c, http.StatusNotFound, "DASHBOARD_NOT_FOUND", "Dashboard not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update dashboard: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /api/orgs/:org_id/dashboards/:dashboard_id.
func (h *DashboardHandler) Delete(c *gin.Context) {
	err := h.service.DeleteDashboard(c.Request.Context(), c.Param("org_id"), c.Param("dashboard_id"))
	if err != nil {
		if errors.Is(err, model.ErrDashboardNotFound) {
			sendError(c, http.StatusNotFound, "DASHBOARD_NOT_FOUND", "Dashboard not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete dashboard: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Move handles PUT /api/orgs/:org_id/dashboards/:dashboard_id/move?to=<folder>.
func (h *DashboardHandler) Move(c *gin.Context) {
	toFolder := c.Query("to")
	if toFolder == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "to query parameter is required")
		return
	}

	err := h.service.MoveDashboard(c.Request.Context(), c.Param("org_id"), c.Param("dashboard_id"), toFolder)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrDashboardNotFound):
			sendError(c, http.StatusNotFound, "DASHBOARD_NOT_FOUND", "Dashboard not found")
		case errors.Is(err, model.ErrFolderNotFound):
			sendError(c, http.StatusNotFound, "FOLDER_NOT_FOUND", "Target folder not found")
		default:
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to move dashboard: "+err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "moved"})
}

// RegisterRoutes registers the dashboard routes on a Gin router group.
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orgs/:org_id/dashboards", h.Create)
	rg.GET("/orgs/:org_id/dashboards", h.List)
	rg.GET("/orgs/:org_id/dashboards/:dashboard_id", h.Get)
	rg.PUT("/orgs/:org_id/dashboards/:dashboard_id", h.Update)
	rg.DELETE("/orgs/:org_id/dashboards/:dashboard_id", h.Delete)
	rg.PUT("/orgs/:org_id/dashboards/:dashboard_id/move", h.Move)
}
