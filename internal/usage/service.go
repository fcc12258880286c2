package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tokescope/internal/cache"
	"tokescope/internal/metrics"
	"tokescope/internal/pricing"
	"tokescope/pkg/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// ErrMissingWorkspaceKey 工作区 Key 缺失（对应 HTTP 401）
var ErrMissingWorkspaceKey = errors.New("missing workspace key")

// DefaultRecentLimit 最近调用列表默认条数
const DefaultRecentLimit = 50

// Service 用量遥测服务：入库归一化 + 汇总读取
type Service struct {
	store   Store
	pricing *pricing.Table
	cache   *cache.Manager // 可选，为 nil 时直查存储
	metrics *metrics.Collector
	logger  *zap.Logger

	// 可在测试中替换的时钟
	now func() time.Time
}

// NewService 创建用量服务
// cacheMgr 与 collector 均可为 nil（关闭对应能力）
func NewService(store Store, table *pricing.Table, cacheMgr *cache.Manager, collector *metrics.Collector, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		pricing: table,
		cache:   cacheMgr,
		metrics: collector,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ingest 入库一批事件
//
// 对每条事件独立做归一化：
//   - request_id 缺失时生成 uuid，一经设置不再变化
//   - client_ts 缺失时取入库时刻（UTC，ISO-8601）
//   - cost_usd 由定价表计算，不信任客户端
//   - workspace_key 由认证头覆盖写入
//
// 整批以事务入库：存储失败时整体失败，不做部分提交。
func (s *Service) Ingest(ctx context.Context, workspaceKey string, batch []telemetry.Event) (*IngestResult, error) {
	if workspaceKey == "" {
		return nil, ErrMissingWorkspaceKey
	}

	ingestedAt := s.now()
	calls := make([]*LLMCall, 0, len(batch))
	batchCost := 0.0

	for _, e := range batch {
		call, cost := s.normalize(workspaceKey, e, ingestedAt)
		batchCost += cost
		calls = append(calls, call)
	}

	if err := s.store.AppendBatch(ctx, calls); err != nil {
		s.metrics.ObserveIngestError()
		return nil, err
	}

	// 入库成功后失效该工作区的汇总缓存
	if s.cache != nil {
		if err := s.cache.Delete(ctx, summaryCacheKey(workspaceKey)); err != nil {
			s.logger.Warn("失效汇总缓存失败", zap.Error(err))
		}
	}

	for _, c := range calls {
		model := ""
		if c.Model != nil {
			model = *c.Model
		}
		s.metrics.ObserveEvent(c.Provider, model, c.Status)
	}
	s.metrics.ObserveBatch(len(calls), batchCost)

	// 批次级进度日志（可观测性用，不影响正确性）
	s.logger.Info("批次入库完成",
		zap.String("workspace", workspaceKey),
		zap.Int("count", len(calls)),
		zap.Float64("batch_cost_usd", pricing.Round6(batchCost)),
	)

	return &IngestResult{
		Received:     len(calls),
		BatchCostUSD: pricing.Round6(batchCost),
	}, nil
}

// normalize 填充默认字段并计算成本，返回入库记录与该条成本
func (s *Service) normalize(workspaceKey string, e telemetry.Event, ingestedAt time.Time) (*LLMCall, float64) {
	provider := e.Provider
	if provider == "" {
		provider = telemetry.DefaultProvider
	}
	endpointType := e.EndpointType
	if endpointType == "" {
		endpointType = telemetry.DefaultEndpointType
	}

	requestID := e.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	clientTS := e.ClientTS
	if clientTS == "" {
		clientTS = ingestedAt.Format(time.RFC3339Nano)
	}

	model := ""
	if e.Model != nil {
		model = *e.Model
	}
	cost := s.pricing.EstimateCostUSD(model, e.PromptTokens, e.CompletionTokens)

	status := string(e.Status)
	if status == "" {
		status = string(telemetry.StatusOK)
	}

	call := &LLMCall{
		ID:               uuid.New().String(),
		WorkspaceKey:     workspaceKey,
		Provider:         provider,
		EndpointType:     endpointType,
		Model:            e.Model,
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
		LatencyMs:        e.LatencyMs,
		CostUSD:          cost,
		Status:           status,
		ErrorType:        e.ErrorType,
		RequestID:        requestID,
		ClientTS:         clientTS,
		AppID:            e.AppID,
		CaptureContent:   e.CaptureContent,
		CreatedAt:        ingestedAt,
	}

	// 内容采集开关关闭时不落原文
	if e.CaptureContent {
		call.Response = e.Response
		if len(e.Messages) > 0 {
			if data, err := json.Marshal(e.Messages); err == nil {
				call.Messages = datatypes.JSON(data)
			}
		}
	}

	return call, cost
}

// Summary 计算工作区用量汇总
func (s *Service) Summary(ctx context.Context, workspaceKey string) (*Summary, error) {
	if workspaceKey == "" {
		return nil, ErrMissingWorkspaceKey
	}

	cacheKey := summaryCacheKey(workspaceKey)
	if s.cache != nil {
		var cached Summary
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("读取汇总缓存失败", zap.Error(err))
		}
	}

	summary, err := s.store.Summarize(ctx, workspaceKey)
	if err != nil {
		return nil, err
	}

	// 输出口径：金额 6 位小数，延迟均值 2 位小数
	summary.TotalCostUSD = pricing.Round6(summary.TotalCostUSD)
	summary.AvgLatencyMs = pricing.Round2(summary.AvgLatencyMs)
	for i := range summary.ByModel {
		summary.ByModel[i].CostUSD = pricing.Round6(summary.ByModel[i].CostUSD)
	}
	if summary.ByModel == nil {
		summary.ByModel = []ModelUsage{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, summary); err != nil {
			s.logger.Warn("写入汇总缓存失败", zap.Error(err))
		}
	}

	return summary, nil
}

// RecentCalls 查询最近调用（固定投影，按 created_at 倒序）
func (s *Service) RecentCalls(ctx context.Context, workspaceKey string, limit int) ([]CallRecord, error) {
	if workspaceKey == "" {
		return nil, ErrMissingWorkspaceKey
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	calls, err := s.store.Recent(ctx, workspaceKey, limit)
	if err != nil {
		return nil, err
	}

	records := make([]CallRecord, 0, len(calls))
	for _, c := range calls {
		records = append(records, CallRecord{
			Model:            c.Model,
			Provider:         c.Provider,
			PromptTokens:     c.PromptTokens,
			CompletionTokens: c.CompletionTokens,
			LatencyMs:        c.LatencyMs,
			CostUSD:          pricing.Round6(c.CostUSD),
			CreatedAt:        c.CreatedAt,
		})
	}
	return records, nil
}

func summaryCacheKey(workspaceKey string) string {
	return fmt.Sprintf("tokescope:summary:%s", workspaceKey)
}
