package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/models"
)

type CollaboratorHandler struct {
	db *gorm.DB
}

func NewCollaboratorHandler(db *gorm.DB) *CollaboratorHandler {
	return &CollaboratorHandler{db: db}
}

func (h *CollaboratorHandler) ListCollaborators(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var collaborators []models.CollectionCollaborator
	if err := h.db.Where("owner_id = ?", userID).Find(&collaborators).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, collaborators)
}

type addCollaboratorRequest struct {
	GroupName      string                 `json:"group_name"`
	CollaboratorID string                 `json:"collaborator_id" binding:"required"`
	Permission     models.SharePermission `json:"permission"`
}

func (h *CollaboratorHandler) AddCollaborator(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req addCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CollaboratorID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add yourself as a collaborator"})
		return
	}
	if req.GroupName == "" {
		req.GroupName = models.DefaultGroupName
	}
	permission := req.Permission
	if permission != models.PermissionEdit {
		permission = models.PermissionView
	}

	collaborator := models.CollectionCollaborator{
		OwnerID:        userID,
		GroupName:      req.GroupName,
		CollaboratorID: req.CollaboratorID,
		Permission:     permission,
	}
	if err := h.db.Create(&collaborator).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "collaborator already exists for this group"})
		return
	}
	c.JSON(http.StatusCreated, collaborator)
}

func (h *CollaboratorHandler) RemoveCollaborator(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	result := h.db.Delete(&models.CollectionCollaborator{}, "id = ? AND owner_id = ?", c.Param("id"), userID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "collaborator not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
