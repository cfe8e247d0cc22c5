package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/querystream-gateway/backend/internal/dashboards"
	"github.com/querystream-gateway/backend/internal/model"
)

// FolderHandler handles HTTP requests for folder management.
type FolderHandler struct {
	service *dashboards.Service
}

// NewFolderHandler creates a new FolderHandler.
func NewFolderHandler(service *dashboards.Service) *FolderHandler {
	return &FolderHandler{service: service}
}

// FolderRequest represents the request body for creating or updating a folder.
type FolderRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create handles POST /api/orgs/:org_id/folders.
func (h *FolderHandler) Create(c *gin.Context) {
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	folder, err := h.service.CreateFolder(c.Request.Context(), c.Param("org_id"), model.Folder{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create folder: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, folder)
}

// Get handles GET /api/orgs/:org_id/folders/:folder_id.
func (h *FolderHandler) Get(c *gin.Context) {
	folder, err := h.service.GetFolder(c.Request.Context(), c.Param("org_id"), c.Param("folder_id"))
	if err != nil {
		if errors.Is(err, model.ErrFolderNotFound) {
			sendError(c, http.StatusNotFound, "FOLDER_NOT_FOUND", "Folder not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get folder: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, folder)
}

// List handles GET /api/orgs/:org_id/folders.
func (h *FolderHandler) List(c *gin.Context) {
	folders, err := h.service.ListFolders(c.Request.Context(), c.Param("org_id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list folders: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// Update handles PUT /api/orgs/:org_id/folders/:folder_id.
func (h *FolderHandler) Update(c *gin.Context) {
	var req FolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	folder, err := h.service.UpdateFolder(c.Request.Context(), c.Param("org_id"), c.Param("folder_id"), model.Folder{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, model.ErrFolderNotFound) {
			sendError(c, http.StatusNotFound, "FOLDER_NOT_FOUND", "Folder not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update folder: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, folder)
}

// Delete handles DELETE /api/orgs/:org_id/folders/:folder_id.
func (h *FolderHandler) Delete(c *gin.Context) {
	err := h.service.DeleteFolder(c.Request.Context(), c.Param("org_id"), c.Param("folder_id"))
	if err != nil {
		switch {
		case errors.Is(err, model.ErrFolderNotFound):
			sendError(c, http.StatusNotFound, "FOLDER_NOT_FOUND", "Folder not found")
		case errors.Is(err, model.ErrFolderNotEmpty):
			sendError(c, http.StatusConflict, "FOLDER_NOT_EMPTY", "Folder still contains dashboards")
		default:
			sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete folder: "+err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// RegisterRoutes registers the folder routes on a Gin router group.
func (h *FolderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orgs/:org_id/folders", h.Create)
	rg.GET("/orgs/:org_id/folders", h.List)
	rg.GET("/orgs/:org_id/folders/:folder_id", h.Get)
	rg.PUT("/orgs/:org_id/folders/:folder_id", h.Update)
	rg.DELETE("/orgs/:org_id/folders/:folder_id", h.Delete)
}
