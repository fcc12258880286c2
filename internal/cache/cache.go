package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Manager 汇总缓存管理器（基于 Redis，可选组件）
//
// 汇总接口每次请求都做全表聚合，事件量增长后这里是第一个
// 需要物化的扩展点。当前实现只做短 TTL 的结果缓存，
// 入库时按工作区失效。
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Config 缓存配置
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 缓存过期时间，默认 30 秒
}

// NewManager 创建缓存管理器并测试连接
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	logger.Info("汇总缓存已启用",
		zap.String("addr", cfg.Addr),
		zap.Duration("ttl", ttl),
	)

	return &Manager{
		redis:  client,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "cache")),
	}, nil
}

// GetJSON 获取 JSON 缓存值
func (m *Manager) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := m.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("读取缓存失败: %w", err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("反序列化缓存值失败: %w", err)
	}
	return nil
}

// SetJSON 设置 JSON 缓存值
func (m *Manager) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存值失败: %w", err)
	}
	if err := m.redis.Set(ctx, key, string(data), m.ttl).Err(); err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// Delete 删除缓存值
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (m *Manager) Close() error {
	return m.redis.Close()
}
