package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/handler"
	"ridecore/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	DriverHandler  *handler.DriverHandler
	WalletHandler  *handler.WalletHandler
	UserHandler    *handler.UserHandler
	PaymentHandler *handler.PaymentHandler
	RedisClient    *redis.Client
	NewRelicApp    *newrelic.Application
	MetricsPath    string
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.MetricsMiddleware(deps.Logger))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributes())
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.MetricsPath != "" {
		router.GET(deps.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	{
		rides := v1.Group("/rides")
		{
			rides.POST("", deps.RideHandler.BookRide)
			rides.GET("/:id", deps.RideHandler.GetRide)
			rides.POST("/:id/transitions", deps.RideHandler.Transition)
			rides.POST("/:id/cancel", deps.RideHandler.CancelRide)
			rides.POST("/:id/refund", deps.RideHandler.RefundRide)
			rides.GET("/:id/payment", deps.PaymentHandler.GetRidePayment)
			rides.GET("/:id/receipt", deps.PaymentHandler.Receipt)
		}

		v1.GET("/riders/:id/rides", deps.RideHandler.RiderHistory)

		drivers := v1.Group("/drivers")
		{
			drivers.GET("/nearest", deps.DriverHandler.Nearest)
			drivers.GET("/live", deps.DriverHandler.Live)
			drivers.GET("/:id/rides", deps.RideHandler.DriverHistory)
			drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
			drivers.GET("/:id/location", deps.DriverHandler.GetLocation)
			drivers.POST("/:id/status", deps.DriverHandler.UpdateStatus)
			drivers.POST("/:id/payout", deps.DriverHandler.Payout)
			drivers.GET("/:id/ws", deps.DriverHandler.Stream)
		}

		wallets := v1.Group("/wallets")
		{
			wallets.GET("/:owner", deps.WalletHandler.Balance)
			wallets.GET("/:owner/transactions", deps.WalletHandler.Transactions)
			wallets.POST("/:owner/deposit", deps.WalletHandler.Deposit)
			wallets.POST("/:owner/withdraw", deps.WalletHandler.Withdraw)
		}

		v1.GET("/platform/wallet", deps.WalletHandler.Platform)

		users := v1.Group("/users")
		{
			users.GET("/:id", deps.UserHandler.Get)
			users.PUT("/:id/push-token", deps.UserHandler.UpdatePushToken)
		}

		v1.POST("/payments/confirm", deps.PaymentHandler.ConfirmPayment)
	}

	return router
}
