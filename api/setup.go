package api

import (
	"fmt"
	"time"

	ingestHandlers "tokescope/api/handlers/ingest"
	usageHandlers "tokescope/api/handlers/usage"
	"tokescope/internal/cache"
	"tokescope/internal/config"
	"tokescope/internal/logger"
	"tokescope/internal/metrics"
	"tokescope/internal/pricing"
	"tokescope/internal/usage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter 组装依赖并返回 Gin 路由
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(), CORS())

	// 存储层
	store := usage.NewGormStore(db)
	if cfg.Database.AutoMigrate {
		if err := store.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("迁移表结构失败: %w", err)
		}
	}

	// 定价表（内置 + 配置覆盖）
	table := pricing.NewTable(&cfg.Pricing)

	// 汇总缓存（可选）
	var cacheMgr *cache.Manager
	if cfg.Redis.Enabled {
		var err error
		cacheMgr, err = cache.NewManager(cache.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.SummaryTTL) * time.Second,
		}, logger.Get())
		if err != nil {
			// 缓存是可选组件，连不上时降级为直查存储
			logger.Warn("汇总缓存初始化失败，已降级为直查", zap.Error(err))
			cacheMgr = nil
		}
	}

	// 指标收集器
	collector := metrics.NewCollector("tokescope")

	// 用量服务
	service := usage.NewService(store, table, cacheMgr, collector, logger.Get())

	// 处理器
	handlers := &Handlers{
		Ingest: ingestHandlers.NewHandler(service),
		Usage:  usageHandlers.NewHandler(service),
	}

	RegisterRoutes(router, handlers)

	return router, nil
}

// Handlers 所有 API 处理器
type Handlers struct {
	Ingest *ingestHandlers.Handler
	Usage  *usageHandlers.Handler
}
