package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"clinic-queue-server/internal/config"
	"clinic-queue-server/internal/models"
	"clinic-queue-server/internal/notify"
	"clinic-queue-server/internal/queue"
	"clinic-queue-server/internal/routes"
)

func main() {
	sweepOnce := flag.Bool("sweep", false, "relocate stale appointments once and exit")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	// Wire up the scheduling engine
	store := queue.NewStore(db)
	clock := queue.NewClock(cfg.Queue.Location)
	notifier := notify.NewStoreNotifier(db)
	finder := queue.NewSlotFinder(store, cfg.Queue.DefaultSlotMinutes, cfg.Queue.MinSlotMinutes, cfg.Queue.SearchHorizonDays)
	recalc := queue.NewRecalculator(store, clock, cfg.Queue.DefaultSlotMinutes, cfg.Queue.MinSlotMinutes)
	sweeper := queue.NewSweeper(store, finder, recalc, notifier, clock)
	service := queue.NewService(store, finder, recalc, notifier, clock)

	// One-shot mode for running the sweep from cron instead of the API.
	if *sweepOnce {
		result, err := sweeper.Sweep()
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode sweep result: %v", err)
		}
		fmt.Println(string(out))
		if len(result.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	// Initialize Gin router
	router := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Set up routes
	routes.SetupRoutes(router, db, cfg, service, finder, sweeper, clock)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	fmt.Printf("Server running on port %s\n", cfg.Port)
	if err := router.Run(serverAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
