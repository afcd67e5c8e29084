package main

import (
	"context"
	"log"
	"net/http"

	"coincompare/internal/api"
	"coincompare/internal/cache"
	"coincompare/internal/coingecko"
	"coincompare/internal/compare"
	"coincompare/internal/config"
	"coincompare/internal/database"
	"coincompare/internal/schedule"
	"coincompare/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize Redis cache
	cacheStore, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer cacheStore.Close()

	// Wire stores and services
	coins := store.NewCoinStore(db)
	exchanges := store.NewExchangeStore(db)
	prices := store.NewPriceStore(db)
	market := coingecko.NewClient(cfg.CoingeckoAPIURL, cacheStore)
	comparer := compare.NewService(coins, exchanges, prices, market)

	syncer := schedule.NewSyncer(coins, exchanges, prices, market)
	syncer.CoinLimit = cfg.CoinSyncLimit
	syncer.ExchangeLimit = cfg.ExchangeSyncLimit

	// Repair any duplicate price rows left over from previous runs
	if report, err := prices.CleanupDuplicates(context.Background()); err != nil {
		log.Printf("Startup duplicate cleanup failed: %v", err)
	} else if report.TotalRecordsRemoved > 0 {
		log.Printf("Startup cleanup removed %d duplicate price rows", report.TotalRecordsRemoved)
	}

	// Periodic background sync
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go syncer.Run(ctx, cfg.SyncInterval)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api.SetupRoutes(r, coins, exchanges, prices, comparer, syncer, cacheStore, market)

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
