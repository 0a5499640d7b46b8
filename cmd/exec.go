package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"reservation-system/config"
	"reservation-system/handlers"
	"reservation-system/monitoring"
	"reservation-system/notify"
	"reservation-system/security"
	"reservation-system/services"
	"reservation-system/store"
	"reservation-system/tasks"
	"reservation-system/utils"

	_ "reservation-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPoolSize, cfg.RedisMinIdleConns)
	defer redisClient.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Notification sink: PubNub when configured, log output otherwise
	var sink services.Sink
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		sink = notify.NewPubNubSink(pubnub.NewPubNub(pnConfig), utils.BreakerSettings{
			Timeout:      cfg.NotifyBreakerTimeout,
			FailureRatio: cfg.NotifyBreakerFailureRatio,
		})
	} else {
		log.Println("PubNub keys not set, notifications go to the process log")
		sink = notify.NewLogSink()
	}

	// Initialize services
	inventory := services.NewPBInventory(app)
	redisStore := store.NewRedisStore(redisClient)
	scheduler := tasks.NewScheduler(redisOpt)
	defer scheduler.Close()

	engine := services.NewQueueEngine(cfg, inventory, redisStore, scheduler, sink)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(app, engine, cfg, inventory)
	leaseHandler := handlers.NewLeaseHandler(app, engine, cfg, inventory)
	adminHandler := handlers.NewAdminHandler(app, engine, inventory)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.QueueRatePerMinute)
	adminGuard := security.NewAdminGuard(cfg.AdminTokenHash)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Background task worker for lease expiry and warning checks
	go tasks.StartServer(redisOpt, engine)

	// Metrics and system stats
	stopStats := make(chan struct{})
	if cfg.EnableMetrics {
		go monitoring.StartServer(cfg.MetricsPort, func() error {
			return utils.RedisHealthCheck(redisClient)
		})
		go monitoring.CollectSystemStats(cfg.SystemStatsTick, stopStats)
	}

	go handleShutdown()

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		go func() {
			if err := engine.Restore(context.Background()); err != nil {
				log.Printf("Error restoring reservation state: %v", err)
			}
		}()

		// Queue endpoints
		queue := e.Router.Group("/api/v1/queue")
		queue.BindFunc(rateLimiter.QueueRateLimit())
		queue.POST("/join", queueHandler.JoinQueue)
		queue.POST("/leave", queueHandler.LeaveQueue)
		queue.GET("/position", queueHandler.GetPosition)

		// Lease endpoints
		lease := e.Router.Group("/api/v1/lease")
		lease.BindFunc(rateLimiter.QueueRateLimit())
		lease.POST("/extend", leaseHandler.Extend)
		lease.POST("/release", leaseHandler.Release)

		// Fleet status
		e.Router.GET("/api/v1/resources/status", leaseHandler.GetStatus)

		// Admin endpoints
		admin := e.Router.Group("/api/v1/admin")
		admin.BindFunc(adminGuard.Require())
		admin.GET("/dashboard", adminHandler.GetDashboard)
		admin.POST("/force-expire", adminHandler.ForceExpire)
		admin.POST("/remove-waiter", adminHandler.RemoveWaiter)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		close(stopStats)
		engine.Shutdown()
		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown logs the signal; PocketBase handles the actual stop.
func handleShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}
