package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/syncer"
)

type AuthHandler struct {
	sessions *auth.SessionManager
	registry *syncer.Registry
}

func NewAuthHandler(sessions *auth.SessionManager, registry *syncer.Registry) *AuthHandler {
	return &AuthHandler{sessions: sessions, registry: registry}
}

type signInRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// SignIn exchanges an externally-verified user identity for a bearer
// token and warms the user's collection snapshot. Identity verification
// itself belongs to the hosted auth provider in front of this service.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.sessions.CreateSession(req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	orch := h.registry.SignIn(c.Request.Context(), req.UserID)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"state": orch.State(),
	})
}

// SignOut revokes the caller's token and tears down their orchestrator.
func (h *AuthHandler) SignOut(c *gin.Context) {
	userID := auth.UserID(c)

	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token != header {
		h.sessions.Revoke(token)
	}

	if userID != "" {
		h.registry.SignOut(userID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}
