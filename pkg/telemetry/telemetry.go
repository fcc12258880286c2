// Package telemetry 提供模型 API 调用的客户端埋点能力：
// 事件结构、非阻塞批处理队列、批次发送与调用包装。
//
// 调用点先 Init 一次，之后通过适配器（或直接 Enqueue）上报事件。
// 整个进程共享一个后台消费 goroutine，所有出站发送由它串行完成。
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config SDK 配置
type Config struct {
	// APIKey 工作区 Key，必填
	APIKey string
	// Endpoint 采集端地址，默认 http://localhost:8000/ingest
	Endpoint string
	// CaptureContent 是否采集提示词与回复原文（隐私开关），默认关闭
	CaptureContent bool
	// AppID 可选的调用方应用标识
	AppID string
	// Debug 是否输出调试日志
	Debug bool

	// MaxBatch 批次大小阈值，默认 50
	MaxBatch int
	// FlushInterval 冲刷间隔，默认 1 秒
	FlushInterval time.Duration

	// Logger 可选，默认为 Nop
	Logger *zap.Logger
}

// Pipeline 一条完整的上报管线：队列 + 发送器 + 配置
//
// 通常通过 Init 使用进程级单例；测试或多实例场景
// 可用 NewPipeline 显式构造。
type Pipeline struct {
	cfg    Config
	queue  *Queue
	logger *zap.Logger
}

// NewPipeline 显式构造管线并启动消费者
func NewPipeline(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sender := NewHTTPSender(cfg.Endpoint, cfg.APIKey)
	queue := NewQueue(sender, cfg.MaxBatch, cfg.FlushInterval, logger, cfg.Debug)
	queue.Start()

	return &Pipeline{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
	}
}

// newPipelineWithSender 测试注入发送器用
func newPipelineWithSender(cfg Config, sender Sender) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := NewQueue(sender, cfg.MaxBatch, cfg.FlushInterval, logger, cfg.Debug)
	queue.Start()
	return &Pipeline{cfg: cfg, queue: queue, logger: logger}
}

// Enqueue 上报一个事件（非阻塞）
func (p *Pipeline) Enqueue(e Event) {
	p.queue.Enqueue(e)
}

// Config 返回管线配置
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Stats 返回队列运行统计
func (p *Pipeline) Stats() QueueStats {
	return p.queue.Stats()
}

// Shutdown 关闭管线，尽力排空剩余事件
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.queue.Shutdown(ctx)
}

// ============================================================================
// 进程级单例
// ============================================================================

var (
	globalMu       sync.Mutex
	globalPipeline *Pipeline
)

// Init 初始化进程级管线
//
// 首次调用创建并启动单例，之后的调用为 no-op 并返回已有实例
// （单次启动守卫）。需要重新配置时先 Shutdown 再 Init。
func Init(cfg Config) *Pipeline {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPipeline != nil {
		return globalPipeline
	}

	globalPipeline = NewPipeline(cfg)
	return globalPipeline
}

// Active 返回当前进程级管线，未初始化时为 nil
func Active() *Pipeline {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalPipeline
}

// Enqueue 通过进程级管线上报事件，未初始化时静默丢弃
func Enqueue(e Event) {
	if p := Active(); p != nil {
		p.Enqueue(e)
	}
}

// Shutdown 关闭进程级管线并清除单例
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	p := globalPipeline
	globalPipeline = nil
	globalMu.Unlock()

	if p == nil {
		return nil
	}
	return p.Shutdown(ctx)
}
