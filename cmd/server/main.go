package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stubbs41/collectthemall/backend/internal/api"
	"github.com/stubbs41/collectthemall/backend/internal/auth"
	"github.com/stubbs41/collectthemall/backend/internal/catalog"
	"github.com/stubbs41/collectthemall/backend/internal/database"
	"github.com/stubbs41/collectthemall/backend/internal/localstore"
	"github.com/stubbs41/collectthemall/backend/internal/services"
	"github.com/stubbs41/collectthemall/backend/internal/store"
	"github.com/stubbs41/collectthemall/backend/internal/syncer"
)

func main() {
	// Optional .env for local development
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	// Database path
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./collectthemall.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Collection store with durable price fallback cache
	prices := store.NewPriceCache(localstore.NewDBStore(db))
	collectionStore := store.NewStore(db, prices)
	registry := syncer.NewRegistry(collectionStore)

	// Sessions
	sessions := auth.NewSessionManager(db)

	// Card catalog client
	catalogClient := catalog.NewClient(os.Getenv("POKEMONTCG_API_KEY"))

	// Sharing, analytics
	shareService := services.NewShareService(db)
	analyticsService := services.NewAnalyticsService(db)

	// Presence is optional: without Redis the endpoints report unavailable
	var presenceService *services.PresenceService
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unavailable at %s, presence disabled: %v", redisAddr, err)
		} else {
			presenceService = services.NewPresenceService(rdb)
			log.Printf("Presence enabled via Redis at %s", redisAddr)
		}
	}

	// Background value recomputation and price refresh
	valueWorker := services.NewValueWorker(db, collectionStore)
	priceWorker := services.NewPriceWorker(db, catalogClient, prices, valueWorker)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go valueWorker.Start(ctx)
	go priceWorker.Start(ctx)
	go shareService.Start(ctx)

	// Expired sessions age out slowly; sweep them daily
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.PurgeExpired(); n > 0 {
					log.Printf("Purged %d expired sessions", n)
				}
			}
		}
	}()

	// Setup router
	router := api.SetupRouter(api.Deps{
		DB:        db,
		Sessions:  sessions,
		Store:     collectionStore,
		Registry:  registry,
		Catalog:   catalogClient,
		Shares:    shareService,
		Analytics: analyticsService,
		Presence:  presenceService,
	})

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Stop the background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
