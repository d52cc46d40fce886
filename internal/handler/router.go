package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inspeaker/smartlink/internal/middleware"
	"github.com/inspeaker/smartlink/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(
	campaignService service.CampaignService,
	resolver service.Resolver,
	reporter service.ErrorReporter,
	rateLimiter *middleware.RateLimiter,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting для всех запросов
	router.Use(rateLimiter.Middleware())

	campaignHandler := NewCampaignHandler(campaignService, baseURL, logger)
	redirectHandler := NewRedirectHandler(resolver, reporter, logger)

	// API v.1 — поверхность дашборда
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor())
	{
		v1.GET("/health", HealthCheck)

		v1.POST("/groups", campaignHandler.CreateGroup)
		v1.GET("/groups", campaignHandler.ListGroups)
		v1.PUT("/groups/:id", campaignHandler.RenameGroup)
		v1.PUT("/groups/:id/status", campaignHandler.SetGroupStatus)
		v1.DELETE("/groups/:id", campaignHandler.DeleteGroup)

		v1.POST("/groups/:id/subgroups", campaignHandler.CreateSubgroup)
		v1.PUT("/subgroups/:id", campaignHandler.RenameSubgroup)
		v1.DELETE("/subgroups/:id", campaignHandler.DeleteSubgroup)

		v1.POST("/subgroups/:id/links", campaignHandler.CreateLinks)
		v1.PUT("/links/:id", campaignHandler.UpdateLink)
		v1.DELETE("/links/:id", campaignHandler.DeleteLink)
	}

	// Публичный редирект — без атрибуции актора
	router.GET("/l/:token", redirectHandler.Redirect)

	// Метрики Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// HealthCheck godoc
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/v1/health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
