package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/agrilink/agrilink-api/internal/config"
	"github.com/agrilink/agrilink-api/internal/database"
	"github.com/agrilink/agrilink-api/internal/delivery"
	"github.com/agrilink/agrilink-api/internal/handler"
	"github.com/agrilink/agrilink-api/internal/queue"
	"github.com/agrilink/agrilink-api/internal/repository"
	"github.com/agrilink/agrilink-api/internal/router"
)

func main() {
	// Missing .env is fine in deployed environments.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	migCtx, migCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := database.Migrate(migCtx, db); err != nil {
		migCancel()
		log.Fatalf("migrations: %v", err)
	}
	migCancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and response cache disabled")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	listings := repository.NewListingRepo(db)
	offers := repository.NewOfferRepo(db)
	orders := repository.NewOrderRepo(db)
	wallets := repository.NewWalletRepo(db)
	prices := repository.NewMarketPriceRepo(db)
	notifications := repository.NewNotificationRepo(db)
	shipments := repository.NewShipmentRepo(db)
	disputes := repository.NewDisputeRepo(db)

	sender := &delivery.Dispatcher{
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPUser: cfg.SMTPUser,
		SMTPPass: cfg.SMTPPass,
		SMTPFrom: cfg.SMTPFrom,
		BotToken: cfg.TelegramBotToken,
	}

	h := router.Handlers{
		Health:        handler.NewHealthHandler(db, rdb),
		Auth:          handler.NewAuthHandler(cfg, users, tokens, sender),
		Telegram:      handler.NewTelegramHandler(cfg, users, sender),
		Listings:      handler.NewListingHandler(listings),
		Offers:        handler.NewOfferHandler(offers, listings),
		Orders:        handler.NewOrderHandler(orders),
		Wallets:       handler.NewWalletHandler(wallets),
		Prices:        handler.NewMarketPriceHandler(prices),
		Notifications: handler.NewNotificationHandler(notifications),
		Shipments:     handler.NewShipmentHandler(shipments, orders),
		Disputes:      handler.NewDisputeHandler(disputes, orders),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.Register(e, cfg, h, rdb)

	// Consumes order and audit events published by the handlers. Runs its
	// own reconnect loop, so a broker outage only delays notifications.
	go func() {
		if err := queue.StartEventConsumer(notifications); err != nil {
			log.Printf("event consumer stopped: %v", err)
		}
	}()

	// Housekeeping for refresh tokens well past expiry. Revocation is what
	// actually ends sessions; this just keeps the table small.
	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if n, err := tokens.DeleteExpired(ctx, 24*time.Hour); err != nil {
				log.Printf("token cleanup failed: %v", err)
			} else if n > 0 {
				log.Printf("token cleanup removed %d rows", n)
			}
			cancel()
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
