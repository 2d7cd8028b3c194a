package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/nota-esign/internal/auth"
	"github.com/mautops/nota-esign/internal/config"
	"github.com/mautops/nota-esign/internal/container"
	"github.com/mautops/nota-esign/internal/model"
)

// SetupRoutes 配置路由
func SetupRoutes(c *container.Container) *gin.Engine {
	cfg := c.Config()
	logger := c.Logger()

	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	if TracingEnabled() {
		router.Use(TracingMiddleware())
	}
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(ErrorHandlerMiddleware(logger))
	router.MaxMultipartMemory = 8 << 20

	// 健康检查与指标
	healthController := NewHealthController(c.DB(), c.Disk())
	router.GET("/health", healthController.Check)
	router.GET("/metrics", MetricsHandler())

	// 公开路由 (限流, 无需登录)
	publicController := NewPublicController(c.PublicDocumentService())
	public := router.Group("", RateLimitMiddleware(cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst))
	{
		public.GET("/qr/:code", publicController.QR)
		public.GET("/public/document/:token", publicController.Document)
		public.GET("/public/document/pdf/:token", publicController.PDF)
	}

	notaController := NewNotaController(c.NotaService(), c.RoutingService())
	lampiranController := NewLampiranController(c.LampiranService(), c.SignatureService())
	esignController := NewEsignController(c.SignatureService(), c.EsignService())
	profileController := NewProfileController(c.UserService())
	apiLogController := NewApiLogController(c.ApiLogService())
	auditLogController := NewAuditLogController(c.AuditLogService())
	statisticsController := NewStatisticsController(c.StatisticsService())

	// API v1 路由组
	v1 := router.Group("/api/v1", auth.KeycloakAuthMiddleware(c.TokenValidator(), c.UserResolver(), logger))
	{
		nota := v1.Group("/nota")
		{
			nota.GET("", notaController.List)
			nota.POST("", notaController.Create)
			nota.GET("/:id", notaController.Get)
			nota.PUT("/:id", notaController.Update)
			nota.DELETE("/:id", notaController.Delete)
			nota.POST("/:id/send", notaController.Send)
			nota.POST("/:id/return", notaController.Return)
			nota.POST("/:id/decide", notaController.Decide)
			nota.GET("/:id/history", notaController.History)
			nota.GET("/:id/approvals", notaController.Approvals)
			nota.GET("/:id/lampiran", notaController.Attachments)
		}
		v1.GET("/pengiriman/:id/lampiran", notaController.TransmittalAttachments)

		lampiran := v1.Group("/lampiran")
		{
			lampiran.GET("/:id", lampiranController.View)
			lampiran.GET("/:id/status", lampiranController.Status)
			lampiran.POST("/:id/sign", lampiranController.Sign)
			lampiran.GET("/:id/share", lampiranController.Share)
		}

		documents := v1.Group("/documents")
		{
			documents.POST("/:id/original", lampiranController.UploadOriginal)
			documents.POST("/:id/signed", lampiranController.UploadSigned)
			documents.GET("/:id/download", lampiranController.Download)
			documents.GET("/:id/manifest", lampiranController.Manifest)
			documents.GET("/:id/versions", lampiranController.Versions)
		}

		esign := v1.Group("/esign")
		{
			esign.POST("/sign", esignController.Sign)
			esign.POST("/totp", esignController.TOTP)
			esign.POST("/verify", esignController.Verify)
			esign.POST("/seal", esignController.Seal)
			esign.POST("/seal/activation", esignController.SealActivation)
			esign.POST("/seal/totp", esignController.SealTOTP)
		}

		v1.GET("/profile", profileController.Me)
		v1.PATCH("/profile/esign", profileController.UpdateEsign)

		admin := v1.Group("", auth.RequireRole(model.RoleAdmin))
		{
			admin.GET("/api-logs", apiLogController.List)
			admin.GET("/audit-logs", auditLogController.List)
			admin.GET("/statistics/nota", statisticsController.Nota)
			admin.GET("/statistics/approvals", statisticsController.Approvals)
		}
	}

	return router
}
