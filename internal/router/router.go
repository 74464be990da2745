package router

import (
	"idempotent-payments/internal/config"
	"idempotent-payments/internal/handler"
	"idempotent-payments/internal/logger"
	"idempotent-payments/internal/middleware"
	"idempotent-payments/internal/service"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func Setup(
	cfg *config.Config,
	paymentSvc service.PaymentService,
	health handler.HealthChecker,
	limiter *middleware.IPRateLimiter,
	log logrus.FieldLogger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSAllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handler.IdempotencyKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	if limiter != nil {
		r.Use(middleware.RateLimit(limiter))
	}

	paymentHandler := handler.NewPaymentHandler(paymentSvc, log)
	healthHandler := handler.NewHealthHandler(health)

	r.GET("/health", healthHandler.Health)

	payments := r.Group("/payments")
	{
		payments.POST("", paymentHandler.CreatePayment)
		payments.GET("/:id", paymentHandler.GetPayment)
	}

	return r
}
