package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/models"
	"github.com/stubbs41/collectthemall/backend/internal/store"
	"github.com/stubbs41/collectthemall/backend/internal/syncer"
)

type CollectionHandler struct {
	store    *store.Store
	registry *syncer.Registry
}

func NewCollectionHandler(st *store.Store, registry *syncer.Registry) *CollectionHandler {
	return &CollectionHandler{store: st, registry: registry}
}

// GetCollection returns the caller's snapshot, served from cache while
// it is fresh.
func (h *CollectionHandler) GetCollection(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	if orch := h.registry.Get(userID); orch != nil {
		c.JSON(http.StatusOK, orch.Snapshot(c.Request.Context()))
		return
	}
	c.JSON(http.StatusOK, h.store.Snapshot(c.Request.Context(), userID))
}

// Refresh forces a full re-fetch regardless of TTL.
func (h *CollectionHandler) Refresh(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	if orch := h.registry.Get(userID); orch != nil {
		c.JSON(http.StatusOK, orch.Refresh(c.Request.Context()))
		return
	}
	c.JSON(http.StatusOK, h.store.FetchAll(c.Request.Context(), userID))
}

type addCardRequest struct {
	Card           models.CardRef        `json:"card" binding:"required"`
	CollectionType models.CollectionType `json:"collection_type" binding:"required"`
	GroupName      string                `json:"group_name"`
}

// AddCard inserts or increments one collection row.
func (h *CollectionHandler) AddCard(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req addCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result models.AddResult
	if orch := h.registry.Get(userID); orch != nil {
		result = orch.AddCard(c.Request.Context(), req.Card, req.CollectionType, req.GroupName)
	} else {
		result = h.store.AddCard(c.Request.Context(), userID, req.Card, req.CollectionType, req.GroupName)
	}

	c.JSON(statusForAdd(result), result)
}

type removeCardRequest struct {
	CardID         string                `json:"card_id" binding:"required"`
	CollectionType models.CollectionType `json:"collection_type" binding:"required"`
	GroupName      string                `json:"group_name"`
	DecrementOnly  bool                  `json:"decrement_only"`
}

// RemoveCard decrements or deletes one collection row. A not_found
// status is a successful no-op, not an error.
func (h *CollectionHandler) RemoveCard(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req removeCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result models.RemoveResult
	if orch := h.registry.Get(userID); orch != nil {
		result = orch.RemoveCard(c.Request.Context(), req.CardID, req.CollectionType, req.GroupName, req.DecrementOnly)
	} else {
		result = h.store.RemoveCard(c.Request.Context(), userID, req.CardID, req.CollectionType, req.GroupName, req.DecrementOnly)
	}

	c.JSON(statusForRemove(result), result)
}

type createGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *CollectionHandler) CreateGroup(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.store.CreateGroup(c.Request.Context(), userID, req.Name, req.Description)
	c.JSON(statusForGroup(result), result)
}

type renameGroupRequest struct {
	NewName string `json:"new_name" binding:"required"`
}

func (h *CollectionHandler) RenameGroup(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	var req renameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.store.RenameGroup(c.Request.Context(), userID, c.Param("name"), req.NewName)
	c.JSON(statusForGroup(result), result)
}

func (h *CollectionHandler) DeleteGroup(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	result := h.store.DeleteGroup(c.Request.Context(), userID, c.Param("name"))
	c.JSON(statusForGroup(result), result)
}

// GetGroupValues recomputes and returns value aggregates for every
// group. Recomputation is always full, never incremental.
func (h *CollectionHandler) GetGroupValues(c *gin.Context) {
	userID, ok := auth.RequireUser(c)
	if !ok {
		return
	}

	groups, err := h.store.RecomputeGroupValues(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func statusForAdd(result models.AddResult) int {
	if result.Status != models.AddStatusError {
		return http.StatusOK
	}
	return statusForKind(result.Kind)
}

// statusForRemove treats not_found as a successful no-op, not an error.
func statusForRemove(result models.RemoveResult) int {
	if result.Status != models.RemoveStatusError {
		return http.StatusOK
	}
	return statusForKind(result.Kind)
}

func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrKindAuth:
		return http.StatusUnauthorized
	case models.ErrKindBackend:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func statusForGroup(result models.GroupResult) int {
	switch result.Status {
	case models.GroupStatusInvalid:
		return http.StatusBadRequest
	case models.GroupStatusNotFound:
		return http.StatusNotFound
	case models.GroupStatusError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
