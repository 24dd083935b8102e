package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/voltcycle/payments/internal/config"
	"github.com/voltcycle/payments/internal/daraja"
	"github.com/voltcycle/payments/internal/database"
	"github.com/voltcycle/payments/internal/handlers"
	"github.com/voltcycle/payments/internal/notify"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/queue"
	"github.com/voltcycle/payments/internal/receipt"
	"github.com/voltcycle/payments/internal/server"
	"github.com/voltcycle/payments/internal/store"
	"github.com/voltcycle/payments/internal/transfer"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("VoltCycle payment service starting...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.LogSafeConfig()

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

	// Initialize gateway client
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

	mailer := notify.NewBrevoMailer(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, "")
	receipts := receipt.NewGenerator(orders)

	paymentService := payment.NewService(gateway, orders, transactions, transfers, receipts, q, payment.Config{
		StaleAfter: cfg.StaleAfter,
	})
	transferService := transfer.NewService(transfers, orders, receipts, q, mailer, cfg.OpsEmail)

	// Initialize HTTP server
	httpHandlers := handlers.NewHandler(paymentService, transferService, q, db.Pool)
	httpServer := server.NewServer(cfg, httpHandlers)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")
	log.Println("Shutdown complete")
}
