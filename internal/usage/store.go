package usage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Store 调用记录存储接口
//
// 核心逻辑不依赖具体存储引擎，只依赖这三个操作：
// 追加、按时间倒序查询、按工作区聚合。
type Store interface {
	// AppendBatch 以单个事务追加一批记录，要么全部入库要么全部失败
	AppendBatch(ctx context.Context, calls []*LLMCall) error
	// Recent 返回工作区内按 created_at 倒序的最近 limit 条记录
	Recent(ctx context.Context, workspaceKey string, limit int) ([]LLMCall, error)
	// Summarize 计算工作区的用量汇总（全表聚合，未做四舍五入）
	Summarize(ctx context.Context, workspaceKey string) (*Summary, error)
}

// GormStore 基于 GORM 的存储实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 迁移表结构
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&LLMCall{})
}

// AppendBatch 以事务方式追加一批记录
func (s *GormStore) AppendBatch(ctx context.Context, calls []*LLMCall) error {
	if len(calls) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&calls).Error
	})
	if err != nil {
		return fmt.Errorf("批量写入调用记录失败: %w", err)
	}
	return nil
}

// Recent 查询最近调用
func (s *GormStore) Recent(ctx context.Context, workspaceKey string, limit int) ([]LLMCall, error) {
	var calls []LLMCall
	err := s.db.WithContext(ctx).
		Where("workspace_key = ?", workspaceKey).
		Order("created_at DESC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("查询最近调用失败: %w", err)
	}
	return calls, nil
}

// Summarize 聚合工作区用量
func (s *GormStore) Summarize(ctx context.Context, workspaceKey string) (*Summary, error) {
	var totals struct {
		TotalCalls   int64
		TotalCostUSD float64
		AvgLatencyMs float64
	}
	err := s.db.WithContext(ctx).
		Model(&LLMCall{}).
		Select("COUNT(*) AS total_calls, COALESCE(SUM(cost_usd), 0) AS total_cost_usd, COALESCE(AVG(latency_ms), 0) AS avg_latency_ms").
		Where("workspace_key = ?", workspaceKey).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("聚合用量失败: %w", err)
	}

	byModel := make([]ModelUsage, 0)
	err = s.db.WithContext(ctx).
		Model(&LLMCall{}).
		Select("model, COUNT(*) AS calls, COALESCE(SUM(cost_usd), 0) AS cost_usd").
		Where("workspace_key = ?", workspaceKey).
		Group("model").
		Order("model").
		Scan(&byModel).Error
	if err != nil {
		return nil, fmt.Errorf("按模型聚合失败: %w", err)
	}

	return &Summary{
		TotalCalls:   totals.TotalCalls,
		TotalCostUSD: totals.TotalCostUSD,
		AvgLatencyMs: totals.AvgLatencyMs,
		ByModel:      byModel,
	}, nil
}
