package usage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// initTestDB 创建内存数据库用于测试
func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:usage_store_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "打开内存数据库失败")
	require.NoError(t, db.AutoMigrate(&LLMCall{}), "迁移表结构失败")
	return db
}

func strPtr(s string) *string { return &s }

// newCall 构造一条测试记录
func newCall(workspace string, model *string, cost float64, latency int64, createdAt time.Time) *LLMCall {
	return &LLMCall{
		ID:           uuid.New().String(),
		WorkspaceKey: workspace,
		Provider:     "openai",
		EndpointType: "chat.completions",
		Model:        model,
		CostUSD:      cost,
		LatencyMs:    latency,
		Status:       "ok",
		RequestID:    uuid.New().String(),
		ClientTS:     createdAt.Format(time.RFC3339Nano),
		CreatedAt:    createdAt,
	}
}

func TestGormStoreAppendAndRecent(t *testing.T) {
	store := NewGormStore(initTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var calls []*LLMCall
	for i := 0; i < 5; i++ {
		calls = append(calls, newCall("ws-1", strPtr("gpt-4o"), 0.1, 100, base.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, store.AppendBatch(ctx, calls))

	t.Run("按创建时间倒序返回", func(t *testing.T) {
		got, err := store.Recent(ctx, "ws-1", 10)
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i := 1; i < len(got); i++ {
			assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt))
		}
	})

	t.Run("limit 生效", func(t *testing.T) {
		got, err := store.Recent(ctx, "ws-1", 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		// 最新的两条
		assert.Equal(t, base.Add(4*time.Second).Unix(), got[0].CreatedAt.Unix())
	})

	t.Run("超出现有条数时返回全部", func(t *testing.T) {
		got, err := store.Recent(ctx, "ws-1", 100)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("空批次为 no-op", func(t *testing.T) {
		require.NoError(t, store.AppendBatch(ctx, nil))
	})
}

func TestGormStoreSummarize(t *testing.T) {
	store := NewGormStore(initTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("零事件时各项为零", func(t *testing.T) {
		s, err := store.Summarize(ctx, "ws-empty")
		require.NoError(t, err)
		assert.Equal(t, int64(0), s.TotalCalls)
		assert.Zero(t, s.TotalCostUSD)
		assert.Zero(t, s.AvgLatencyMs)
		assert.Empty(t, s.ByModel)
	})

	t.Run("按模型字面值分组，空模型单独成组", func(t *testing.T) {
		require.NoError(t, store.AppendBatch(ctx, []*LLMCall{
			newCall("ws-2", strPtr("gpt-4o"), 1.0, 100, now),
			newCall("ws-2", strPtr("gpt-4o"), 2.0, 200, now),
			newCall("ws-2", nil, 0.5, 300, now),
		}))

		s, err := store.Summarize(ctx, "ws-2")
		require.NoError(t, err)
		assert.Equal(t, int64(3), s.TotalCalls)
		assert.InDelta(t, 3.5, s.TotalCostUSD, 1e-9)
		assert.InDelta(t, 200.0, s.AvgLatencyMs, 1e-9)

		require.Len(t, s.ByModel, 2)
		groups := make(map[string]ModelUsage)
		for _, g := range s.ByModel {
			key := ""
			if g.Model != nil {
				key = *g.Model
			}
			groups[key] = g
		}
		assert.Equal(t, int64(2), groups["gpt-4o"].Calls)
		assert.InDelta(t, 3.0, groups["gpt-4o"].CostUSD, 1e-9)
		assert.Equal(t, int64(1), groups[""].Calls)
		assert.InDelta(t, 0.5, groups[""].CostUSD, 1e-9)
	})
}

func TestGormStoreWorkspaceIsolation(t *testing.T) {
	store := NewGormStore(initTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.AppendBatch(ctx, []*LLMCall{
		newCall("ws-a", strPtr("gpt-4o"), 1.0, 100, now),
		newCall("ws-b", strPtr("gpt-4o"), 9.0, 900, now),
	}))

	t.Run("汇总互不可见", func(t *testing.T) {
		sa, err := store.Summarize(ctx, "ws-a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), sa.TotalCalls)
		assert.InDelta(t, 1.0, sa.TotalCostUSD, 1e-9)

		sb, err := store.Summarize(ctx, "ws-b")
		require.NoError(t, err)
		assert.Equal(t, int64(1), sb.TotalCalls)
		assert.InDelta(t, 9.0, sb.TotalCostUSD, 1e-9)
	})

	t.Run("最近调用互不可见", func(t *testing.T) {
		got, err := store.Recent(ctx, "ws-a", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ws-a", got[0].WorkspaceKey)
	})
}
