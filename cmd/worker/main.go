package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/voltcycle/payments/internal/config"
	"github.com/voltcycle/payments/internal/daraja"
	"github.com/voltcycle/payments/internal/database"
	"github.com/voltcycle/payments/internal/jobs"
	"github.com/voltcycle/payments/internal/notify"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/queue"
	"github.com/voltcycle/payments/internal/receipt"
	"github.com/voltcycle/payments/internal/store"
	"github.com/voltcycle/payments/internal/worker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("VoltCycle payment worker starting...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	db, err := database.NewDatabase(ctx, cfg.DatabaseURL, cfg.DBMinConns, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize queue
	q, err := queue.NewQueue(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to initialize queue: %v", err)
	}
	defer q.Close()

	// Initialize gateway client (the worker queries push statuses)
	tokens := daraja.NewTokenService(
		cfg.DarajaConsumerKey,
		cfg.DarajaConsumerSecret,
		cfg.DarajaAuthURL,
	)
	gateway := daraja.NewClient(daraja.Config{
		ShortCode:   cfg.DarajaShortCode,
		Passkey:     cfg.DarajaPasskey,
		STKPushURL:  cfg.DarajaSTKPushURL,
		QueryURL:    cfg.DarajaQueryURL,
		CallbackURL: cfg.DarajaCallbackURL,
	}, tokens)

	// Initialize stores and services
	orders := store.NewOrderStore(db.Pool)
	transactions := store.NewMpesaStore(db.Pool)
	transfers := store.NewTransferStore(db.Pool)
	receiptRows := store.NewReceiptStore(db.Pool)

	mailer := notify.NewBrevoMailer(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, "")
	receipts := receipt.NewGenerator(orders)

	paymentService := payment.NewService(gateway, orders, transactions, transfers, receipts, q, payment.Config{
		StaleAfter: cfg.StaleAfter,
	})

	// Register task handlers
	processor := worker.NewProcessor(paymentService, receiptRows, orders, mailer)
	processor.Register(q.Mux)

	// Schedule the reconciliation sweep
	scheduler := jobs.NewScheduler(q)
	if err := scheduler.Start(cfg.ReconcileSpec); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	// Start the asynq server
	redisOpt, serverCfg, err := queue.ServerConfig(cfg.RedisURL, cfg.WorkerConcurrency)
	if err != nil {
		log.Fatalf("Failed to create worker config: %v", err)
	}
	asynqServer := asynq.NewServer(redisOpt, serverCfg)

	// Handle shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down worker...")
		asynqServer.Shutdown()
	}()

	log.Println("Worker started, processing tasks...")
	if err := asynqServer.Run(q.Mux); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}

	log.Println("Worker shutdown complete")
}
