package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stubbs41/collectthemall/backend/internal/catalog"
)

type CardHandler struct {
	catalog *catalog.Client
}

func NewCardHandler(client *catalog.Client) *CardHandler {
	return &CardHandler{catalog: client}
}

// SearchCards proxies a paged catalog query.
func (h *CardHandler) SearchCards(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "30"))

	result, err := h.catalog.FindCardsByQueries(c.Request.Context(), catalog.QueryOptions{
		Query:    query,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type batchCardsRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

// BatchCards resolves card metadata for a list of IDs. Cards the catalog
// could not return are simply absent from the response; callers render
// placeholders for them.
func (h *CardHandler) BatchCards(c *gin.Context) {
	var req batchCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cards, err := h.catalog.FindCardsByIDs(c.Request.Context(), req.IDs)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": cards, "requested": len(req.IDs), "found": len(cards)})
}

// GetCard fetches one card by ID.
func (h *CardHandler) GetCard(c *gin.Context) {
	card, err := h.catalog.GetCard(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}
	c.JSON(http.StatusOK, card)
}
