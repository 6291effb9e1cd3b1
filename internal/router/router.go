// Package router wires the HTTP surface: public settlement endpoints, the
// collaborator ledger endpoints, the JWT-guarded admin API, metrics and the
// websocket event stream.
package router

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"settlement-backend/internal/config"
	"settlement-backend/internal/handlers"
	"settlement-backend/internal/metrics"
	"settlement-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the configured browser access policy. With no
// configured origins everything is allowed.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var allowedOrigins []string
		allowCredentials := false
		maxAge := 3600
		if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		origin := c.GetHeader("Origin")
		if len(allowedOrigins) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, Accept")
			if allowCredentials {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// metricsMiddleware records request durations per route.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			path,
			c.Request.Method,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

// Handlers collects everything the router exposes. Settlement is nil on
// nodes that only run locker roles.
type Handlers struct {
	Locker     *handlers.LockerHandler
	Settlement *handlers.SettlementHandler
	Admin      *handlers.AdminHandler
	AdminAuth  *handlers.AdminAuthHandler
	WebSocket  *handlers.WebSocketHandler
}

// SetupRouter builds the gin engine with all routes and middleware.
func SetupRouter(h *Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	r.GET("/health", handlers.HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", gin.WrapF(h.WebSocket.HandleWebSocket))

	api := r.Group("/api")
	{
		if h.Locker != nil {
			api.POST("/deposits", h.Locker.DepositHandler)
			api.GET("/lockers/:chain_id/tokens", h.Locker.ListTokensHandler)
		}
		if h.Settlement != nil {
			api.POST("/withdrawals", h.Settlement.WithdrawHandler)
			api.GET("/balances/:user", h.Settlement.ListBalancesHandler)
			api.GET("/balances/:user/:token", h.Settlement.GetBalanceHandler)
			api.POST("/ledger/lock", h.Settlement.LockHandler)
			api.POST("/ledger/unlock", h.Settlement.UnlockHandler)
			api.GET("/messages/:id", h.Settlement.GetMessageHandler)
		}
	}

	var allowedIPs []string
	if config.AppConfig != nil {
		allowedIPs = config.AppConfig.Admin.AllowedIPs
	}
	ipAllowlist := middleware.NewIPAllowlist(logger, allowedIPs)
	adminAuth := middleware.NewAdminAuthMiddleware(logger)

	api.POST("/admin/login", ipAllowlist.Restrict(), h.AdminAuth.AdminLoginHandler)

	admin := api.Group("/admin")
	admin.Use(ipAllowlist.Restrict(), adminAuth.RequireAdminAuth())
	{
		admin.GET("/mappings", h.Admin.ListMappingsHandler)
		admin.POST("/mappings", h.Admin.CreateMappingHandler)
		admin.PUT("/mappings", h.Admin.UpdateMappingHandler)

		admin.GET("/tokens", h.Admin.ListSyntheticTokensHandler)
		admin.POST("/tokens", h.Admin.CreateSyntheticTokenHandler)

		admin.GET("/chains", h.Admin.ListChainsHandler)
		admin.GET("/chains/:chain_id", h.Admin.GetChainHandler)
		admin.PUT("/chains", h.Admin.UpsertChainHandler)

		admin.GET("/balance-managers", h.Admin.ListBalanceManagersHandler)
		admin.PUT("/balance-managers", h.Admin.SetBalanceManagerHandler)

		admin.GET("/settlement/config", h.Admin.SettlementConfigHandler)

		admin.POST("/reconcile/diff", h.Admin.ReconcileDiffHandler)
		admin.POST("/reconcile/apply", h.Admin.ReconcileApplyHandler)

		if h.Locker != nil {
			admin.POST("/lockers/:chain_id/tokens", h.Locker.AddTokenHandler)
			admin.DELETE("/lockers/:chain_id/tokens/:token", h.Locker.RemoveTokenHandler)
			admin.PUT("/lockers/:chain_id/destination", h.Locker.UpdateDestinationHandler)
			admin.GET("/lockers/:chain_id/config", h.Locker.LockerConfigHandler)
		}
	}

	return r
}
