package main

import (
	"context"
	"log"
	"time"

	"go-ticket-reservation/config"
	"go-ticket-reservation/internal/database"
	"go-ticket-reservation/internal/handler"
	"go-ticket-reservation/internal/inventory"
	"go-ticket-reservation/internal/middleware"
	"go-ticket-reservation/internal/queue"
	"go-ticket-reservation/internal/repository"
	"go-ticket-reservation/internal/service"
	"go-ticket-reservation/internal/store"
	"go-ticket-reservation/internal/worker"
	"go-ticket-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()
	defer logger.Sync()

	pool, err := database.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer pool.Close()

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	documentStore := store.NewRedisDocumentStore(rdb, cfg.Reservation.TxMaxRetries)
	inventoryManager := inventory.NewInventoryManager(documentStore)

	purchaseQueue, err := queue.NewRedisStreamPurchaseQueue(rdb, "", nil)
	if err != nil {
		log.Fatalf("Failed to initialize purchase queue: %v", err)
	}

	purchaseRepo := repository.NewPurchaseRepository(pool)
	purchaseService := service.NewPurchaseService(pool, purchaseRepo, documentStore)

	reservationService := service.NewReservationService(
		inventoryManager,
		service.NewContextIdentityProvider(),
		purchaseQueue,
		cfg.Reservation.HoldSeconds,
		time.Second,
		time.Duration(cfg.Reservation.SessionRetentionSeconds)*time.Second,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	purchaseWorker := worker.NewPurchaseWorker(purchaseService, purchaseQueue)
	if err := purchaseWorker.Start(ctx); err != nil {
		log.Fatalf("Failed to start purchase worker: %v", err)
	}

	router := gin.Default()
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	authMiddleware := middleware.BearerAuth(cfg.Auth.JWTSecret)
	handler.NewInventoryHandler(inventoryManager).RegisterRoutes(router)
	handler.NewPurchaseHandler(purchaseService).RegisterRoutes(router, authMiddleware)
	handler.NewReservationHandler(reservationService).RegisterRoutes(router, authMiddleware)

	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
