package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/auth"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted by the router.
type Handlers struct {
	Records  *handlers.RecordsHandler
	Finance  *handlers.FinanceHandler
	Messages *handlers.MessageHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, jwtSecret []byte, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(metricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", auth.Middleware(jwtSecret, logger.Named("auth")))

	writers := auth.RequireRoles(auth.RoleFarmer, auth.RoleCommittee)
	records := api.Group("/records")
	records.POST("", writers, h.Records.Create)
	records.GET("", h.Records.List)
	records.GET("/:id", h.Records.Get)
	records.PUT("/:id", writers, h.Records.Update)
	records.DELETE("/:id", writers, h.Records.Delete)
	records.POST("/:id/weight", auth.RequireRoles(auth.RoleWeighing, auth.RoleCommittee), h.Records.ConfirmWeight)
	records.POST("/:id/splits", auth.RequireRoles(auth.RoleLilav, auth.RoleCommittee), h.Records.AddSplit)
	records.GET("/:id/invoice", h.Records.Invoice)
	records.GET("/:id/invoice.pdf", h.Records.InvoicePDF)

	committee := auth.RequireRoles(auth.RoleCommittee)
	reporting := auth.RequireRoles(auth.RoleCommittee, auth.RoleLilav)
	finance := api.Group("/finance")
	finance.POST("/records/:id/farmer-payment", committee, h.Finance.FarmerPayment)
	finance.POST("/records/:id/splits/:splitId/trader-payment", committee, h.Finance.TraderPayment)
	finance.GET("/billing", reporting, h.Finance.Billing)
	finance.GET("/billing.csv", committee, h.Finance.BillingCSV)
	finance.GET("/billing.xlsx", committee, h.Finance.BillingXLSX)
	finance.POST("/billing/sheet", committee, h.Finance.BillingSheet)
	finance.GET("/traders/:traderId/statement", reporting, h.Finance.TraderStatement)
	if h.Messages != nil {
		finance.POST("/messages", committee, h.Messages.SendMessage)
	}

	logger.Info("router initialized")

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
