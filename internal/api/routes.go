package api

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/stubbs41/collectthemall/backend/internal/api/handlers"
	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/catalog"
	"github.com/stubbs41/collectthemall/backend/internal/metrics"
	"github.com/stubbs41/collectthemall/backend/internal/services"
	"github.com/stubbs41/collectthemall/backend/internal/store"
	"github.com/stubbs41/collectthemall/backend/internal/syncer"
)

// Deps is everything the router needs, injected by the composition root.
type Deps struct {
	DB        *gorm.DB
	Sessions  *auth.SessionManager
	Store     *store.Store
	Registry  *syncer.Registry
	Catalog   *catalog.Client
	Shares    *services.ShareService
	Analytics *services.AnalyticsService
	Presence  *services.PresenceService
}

func SetupRouter(deps Deps) *gin.Engine {
	router := gin.Default()

	// CORS configuration - allow origins from environment or use defaults
	config := cors.DefaultConfig()
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.AllowOrigins = strings.Split(corsOrigins, ",")
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	router.Use(metricsMiddleware())
	router.Use(auth.Middleware(deps.Sessions))

	authHandler := handlers.NewAuthHandler(deps.Sessions, deps.Registry)
	collectionHandler := handlers.NewCollectionHandler(deps.Store, deps.Registry)
	cardHandler := handlers.NewCardHandler(deps.Catalog)
	shareHandler := handlers.NewShareHandler(deps.DB, deps.Shares, deps.Analytics, deps.Presence)
	collaboratorHandler := handlers.NewCollaboratorHandler(deps.DB)

	api := router.Group("/api")
	{
		// Auth routes
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/signin", authHandler.SignIn)
			authRoutes.POST("/signout", authHandler.SignOut)
		}

		// Card catalog routes
		cards := api.Group("/cards")
		{
			cards.GET("/search", cardHandler.SearchCards)
			cards.POST("/batch", cardHandler.BatchCards)
			cards.GET("/:id", cardHandler.GetCard)
		}

		// Collection routes
		collection := api.Group("/collection")
		{
			collection.GET("", collectionHandler.GetCollection)
			collection.POST("/refresh", collectionHandler.Refresh)
			collection.POST("/cards", collectionHandler.AddCard)
			collection.DELETE("/cards", collectionHandler.RemoveCard)
			collection.GET("/values", collectionHandler.GetGroupValues)
			collection.POST("/groups", collectionHandler.CreateGroup)
			collection.PUT("/groups/:name", collectionHandler.RenameGroup)
			collection.DELETE("/groups/:name", collectionHandler.DeleteGroup)
			collection.GET("/collaborators", collaboratorHandler.ListCollaborators)
			collection.POST("/collaborators", collaboratorHandler.AddCollaborator)
			collection.DELETE("/collaborators/:id", collaboratorHandler.RemoveCollaborator)
		}

		// Share management (owner side)
		shares := api.Group("/shares")
		{
			shares.POST("", shareHandler.CreateShare)
			shares.GET("", shareHandler.ListShares)
			shares.DELETE("/:token", shareHandler.RevokeShare)
			shares.GET("/:token/analytics", shareHandler.GetShareAnalytics)
		}

		// Shared collection access (viewer side)
		shared := api.Group("/shared")
		{
			shared.GET("/:token", shareHandler.GetSharedCollection)
			shared.GET("/:token/comments", shareHandler.ListComments)
			shared.POST("/:token/comments", shareHandler.AddComment)
			shared.DELETE("/:token/comments/:id", shareHandler.DeleteComment)
			shared.POST("/:token/presence", shareHandler.Heartbeat)
			shared.GET("/:token/presence", shareHandler.ActiveViewers)
		}
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// metricsMiddleware records request counts and latency per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
