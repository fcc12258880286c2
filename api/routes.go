package api

import (
	"net/http"

	"tokescope/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	// 健康检查（公开，不需要认证）
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标（公开）
	router.GET("/prometheus", gin.WrapH(promhttp.Handler()))

	// 事件上报
	ingestGroup := router.Group("/ingest")
	ingestGroup.Use(auth.APIKeyAuthMiddleware())
	{
		ingestGroup.POST("", h.Ingest.Ingest)
	}

	// 用量查询
	metricsGroup := router.Group("/metrics")
	metricsGroup.Use(auth.APIKeyAuthMiddleware())
	{
		metricsGroup.GET("/summary", h.Usage.Summary)
		metricsGroup.GET("/calls", h.Usage.RecentCalls)
	}
}
