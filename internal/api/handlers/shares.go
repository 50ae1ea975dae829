package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/models"
	"github.com/stubbs41/collectthemall/backend/internal/services"
)

type ShareHandler struct {
	db        *gorm.DB
	shares    *services.ShareService
	analytics *services.AnalyticsService
	presence  *services.PresenceService
}

func NewShareHandler(db *gorm.DB, shares *services.ShareService, analytics *services.AnalyticsService, presence *services.PresenceService) *ShareHandler {
	return &ShareHandler{db: db, shares: shares, analytics: analytics, presence: presence}
}

type createShareRequest struct {
	GroupName string `json:"group_name"`
	ExpiresIn string `json:"expires_in"` // 1h, 24h, 7d, 30d
}

func (h *ShareHandler) CreateShare(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	share, err := h.shares.CreateShare(userID, req.GroupName, req.ExpiresIn)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, share)
}

func (h *ShareHandler) ListShares(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	shares, err := h.shares.ListShares(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, shares)
}

func (h *ShareHandler) RevokeShare(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	err := h.shares.RevokeShare(userID, c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrShareNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "revoked"})
}

// GetSharedCollection is the public entry point for a share link: it
// resolves the token, records the view, and returns the shared group's
// items.
func (h *ShareHandler) GetSharedCollection(c *gin.Context) {
	share, err := h.shares.ResolveShare(c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrShareNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "share not found or expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.analytics.RecordView(share.ShareToken)

	var items []models.CollectionItem
	if err := h.db.Where("user_id = ? AND group_name = ?", share.UserID, share.GroupName).
		Order("added_at DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"group_name": share.GroupName,
		"expires_at": share.ExpiresAt,
		"view_count": share.ViewCount,
		"items":      items,
	})
}

// GetShareAnalytics returns view totals for one of the caller's shares.
func (h *ShareHandler) GetShareAnalytics(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	token := c.Param("token")
	var share models.SharedCollection
	if err := h.db.First(&share, "share_token = ? AND user_id = ?", token, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found"})
		return
	}

	counter, err := h.analytics.GetCounter(token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counter)
}

type commentRequest struct {
	Author  string `json:"author"`
	Content string `json:"content" binding:"required"`
}

func (h *ShareHandler) ListComments(c *gin.Context) {
	token := c.Param("token")
	if _, err := h.shares.ResolveShare(token); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found or expired"})
		return
	}

	var comments []models.CollectionComment
	if err := h.db.Where("share_token = ?", token).Order("created_at ASC").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (h *ShareHandler) AddComment(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	token := c.Param("token")
	if _, err := h.shares.ResolveShare(token); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "share not found or expired"})
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment := models.CollectionComment{
		ShareToken: token,
		UserID:     userID,
		Author:     req.Author,
		Content:    req.Content,
	}
	if err := h.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment; only its author may delete it.
func (h *ShareHandler) DeleteComment(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	result := h.db.Delete(&models.CollectionComment{},
		"id = ? AND share_token = ? AND user_id = ?", c.Param("id"), c.Param("token"), userID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "comment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type heartbeatRequest struct {
	ViewerID string `json:"viewer_id" binding:"required"`
	Name     string `json:"name"`
}

// Heartbeat marks a viewer as present on a shared collection.
func (h *ShareHandler) Heartbeat(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence not available"})
		return
	}

	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.presence.Heartbeat(c.Request.Context(), c.Param("token"), req.ViewerID, req.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// ActiveViewers lists viewers with a live heartbeat.
func (h *ShareHandler) ActiveViewers(c *gin.Context) {
	if h.presence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "presence not available"})
		return
	}

	viewers, err := h.presence.ActiveViewers(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"viewers": viewers})
}
