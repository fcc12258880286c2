package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CallInfo 请求侧的已知信息，失败时也会随事件上报
type CallInfo struct {
	Model    *string
	Messages []Message
}

// CallResult 响应侧的观测产出，由委托返回
type CallResult struct {
	PromptTokens     int
	CompletionTokens int
	Response         *string
}

// Delegate 执行一次真实的模型调用
type Delegate func(ctx context.Context) (*CallResult, error)

// Instrumenter 调用包装器
//
// 对委托做计时与错误捕获，成功与失败都恰好产出一个事件；
// 失败时事件带 status=error 与错误类型，token 计数归零，
// 原始错误原样返回调用方。埋点自身的任何失败都不影响
// 被包装调用的结果。
type Instrumenter struct {
	pipeline *Pipeline

	provider     string
	endpointType string
}

// NewInstrumenter 创建调用包装器
func NewInstrumenter(pipeline *Pipeline) *Instrumenter {
	return &Instrumenter{
		pipeline:     pipeline,
		provider:     DefaultProvider,
		endpointType: DefaultEndpointType,
	}
}

// WithSurface 覆盖调用面分类（provider / endpoint_type）
func (i *Instrumenter) WithSurface(provider, endpointType string) *Instrumenter {
	clone := *i
	if provider != "" {
		clone.provider = provider
	}
	if endpointType != "" {
		clone.endpointType = endpointType
	}
	return &clone
}

// Execute 执行并观测一次调用
func (i *Instrumenter) Execute(ctx context.Context, info CallInfo, delegate Delegate) (*CallResult, error) {
	cfg := i.pipeline.Config()

	start := time.Now()
	requestID := uuid.New().String()
	clientTS := start.UTC().Format(time.RFC3339Nano)

	result, err := delegate(ctx)
	latencyMs := time.Since(start).Milliseconds()

	ev := Event{
		Provider:       i.provider,
		EndpointType:   i.endpointType,
		Model:          info.Model,
		LatencyMs:      latencyMs,
		Status:         StatusOK,
		RequestID:      requestID,
		ClientTS:       clientTS,
		CaptureContent: cfg.CaptureContent,
	}
	if cfg.AppID != "" {
		appID := cfg.AppID
		ev.AppID = &appID
	}
	if cfg.CaptureContent {
		ev.Messages = info.Messages
	}

	if err != nil {
		// 失败也上报：status=error，token 归零，原错误原样抛回
		errType := errorType(err)
		ev.Status = StatusError
		ev.ErrorType = &errType
		i.pipeline.Enqueue(ev)
		return nil, err
	}

	if result != nil {
		ev.PromptTokens = result.PromptTokens
		ev.CompletionTokens = result.CompletionTokens
		if cfg.CaptureContent {
			ev.Response = result.Response
		}
	}

	i.pipeline.Enqueue(ev)
	return result, nil
}

// errorType 从错误值提取类型标签
func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}
