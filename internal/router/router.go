// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/agrilink/agrilink-api/internal/config"
	"github.com/agrilink/agrilink-api/internal/handler"
	"github.com/agrilink/agrilink-api/internal/middleware"
	"github.com/agrilink/agrilink-api/internal/model"
)

// Handlers collects every handler the router mounts.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Telegram      *handler.TelegramHandler
	Listings      *handler.ListingHandler
	Offers        *handler.OfferHandler
	Orders        *handler.OrderHandler
	Wallets       *handler.WalletHandler
	Prices        *handler.MarketPriceHandler
	Notifications *handler.NotificationHandler
	Shipments     *handler.ShipmentHandler
	Disputes      *handler.DisputeHandler
}

// Register mounts every route. rdb may be nil, in which case rate limiting
// and response caching are skipped entirely.
func Register(e *echo.Echo, cfg config.Config, h Handlers, rdb *redis.Client) {
	if rdb != nil {
		rl := config.LoadRateLimitConfig()
		if rl.Enabled {
			e.Use(middleware.NewTokenBucket(rl, rdb))
		}
	}

	e.GET("/healthz", h.Health.Check)

	// Session lifecycle. None of these carry an access token.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/verify-registration", h.Auth.VerifyRegistration)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/verify-otp", h.Auth.VerifyOTP)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Bot callback plus link status, also unauthenticated: the bot calls
	// Link before the user has any session at all.
	tg := e.Group("/v1/telegram")
	tg.POST("/link", h.Telegram.Link)
	tg.POST("/unlink/:userId", h.Telegram.Unlink)
	tg.GET("/status/:userId", h.Telegram.Status)

	// Public browse endpoints, cached when redis is available.
	pub := e.Group("/v1")
	if rdb != nil {
		cc := config.LoadCacheConfig()
		if cc.Enabled {
			pub.Use(middleware.NewRedisCache(cc, rdb))
		}
	}
	pub.GET("/listings", h.Listings.ListActive)
	pub.GET("/listings/:id", h.Listings.Get)
	pub.GET("/market-prices", h.Prices.List)

	// Everything below needs a valid access token.
	api := e.Group("/v1")
	api.Use(middleware.JWTAuth(cfg.JWTAccessSecret))

	farmer := middleware.RequireRole(model.RoleFarmer, model.RoleCooperative)
	buyer := middleware.RequireRole(model.RoleBuyer, model.RoleCooperative)
	admin := middleware.RequireRole(model.RoleAdmin)

	api.POST("/listings", h.Listings.Create, farmer)
	api.GET("/listings/mine", h.Listings.ListMine, farmer)
	api.PATCH("/listings/:id/status", h.Listings.UpdateStatus, farmer)

	api.POST("/offers", h.Offers.Create, buyer)
	api.GET("/listings/:listingId/offers", h.Offers.ListByListing, farmer)
	api.POST("/offers/:id/accept", h.Offers.Accept, farmer)
	api.POST("/offers/:id/reject", h.Offers.Reject, farmer)
	api.POST("/offers/:id/withdraw", h.Offers.Withdraw, buyer)

	api.GET("/orders", h.Orders.ListMine)
	api.GET("/orders/:id", h.Orders.Get)
	api.PATCH("/orders/:id/status", h.Orders.UpdateStatus)

	api.GET("/wallet", h.Wallets.Get)
	api.POST("/wallet/credit", h.Wallets.Credit)
	api.POST("/wallet/debit", h.Wallets.Debit)
	api.GET("/wallet/transactions", h.Wallets.Transactions)

	api.POST("/market-prices", h.Prices.Create, admin)

	logistics := middleware.RequireRole(model.RoleLogisticsPartner)

	api.POST("/shipments", h.Shipments.Create, logistics)
	api.GET("/shipments/mine", h.Shipments.ListMine, logistics)
	api.GET("/shipments/:id", h.Shipments.Get)
	api.GET("/shipments/track/:trackingCode", h.Shipments.Track)
	api.PATCH("/shipments/:id/status", h.Shipments.UpdateStatus, logistics)
	api.POST("/shipments/:id/deliver", h.Shipments.ConfirmDelivery, logistics)
	api.GET("/orders/:orderId/shipments", h.Shipments.ListByOrder)

	api.POST("/disputes", h.Disputes.Create)
	api.GET("/disputes/mine", h.Disputes.ListMine)
	api.GET("/disputes/:id", h.Disputes.Get)
	api.PATCH("/disputes/:id/status", h.Disputes.UpdateStatus)
	api.POST("/disputes/:id/evidence", h.Disputes.AddEvidence)
	api.GET("/orders/:orderId/dispute", h.Disputes.GetByOrder)

	api.GET("/notifications", h.Notifications.ListMine)
	api.PATCH("/notifications/:id/read", h.Notifications.MarkRead)
}
