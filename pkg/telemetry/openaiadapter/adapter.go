// Package openaiadapter 把 openai 客户端接到遥测管线上：
// 包装 CreateChatCompletion，记录延迟、token 用量与结果状态。
// 不做运行时替换，调用方显式使用包装后的客户端。
package openaiadapter

import (
	"context"

	"tokescope/pkg/telemetry"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

// Client 带埋点的 openai 客户端包装器
type Client struct {
	inner *openai.Client
	inst  *telemetry.Instrumenter
}

// Wrap 包装一个已有的 openai 客户端
func Wrap(inner *openai.Client, pipeline *telemetry.Pipeline) *Client {
	return &Client{
		inner: inner,
		inst:  telemetry.NewInstrumenter(pipeline),
	}
}

// CreateChatCompletion 对话补全（带埋点）
//
// 成功与失败都恰好上报一个事件，原响应与原错误原样返回。
func (c *Client) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	model := req.Model
	info := telemetry.CallInfo{
		Messages: convertMessages(req.Messages),
	}
	if model != "" {
		info.Model = &model
	}

	var resp openai.ChatCompletionResponse
	_, err := c.inst.Execute(ctx, info, func(ctx context.Context) (*telemetry.CallResult, error) {
		r, err := c.inner.CreateChatCompletion(ctx, req)
		if err != nil {
			return nil, err
		}
		resp = r

		result := &telemetry.CallResult{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
		}
		// 个别兼容端点不返回 usage，此时用 tiktoken 估算提示词 token
		if result.PromptTokens == 0 && len(req.Messages) > 0 {
			result.PromptTokens = estimatePromptTokens(model, req.Messages)
		}
		if len(r.Choices) > 0 {
			content := r.Choices[0].Message.Content
			result.Response = &content
		}
		return result, nil
	})

	return resp, err
}

// convertMessages 转换请求消息为事件消息
func convertMessages(messages []openai.ChatCompletionMessage) []telemetry.Message {
	if len(messages) == 0 {
		return nil
	}
	out := make([]telemetry.Message, len(messages))
	for i, m := range messages {
		out[i] = telemetry.Message{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}

// estimatePromptTokens 用 tiktoken 估算提示词 token 数
func estimatePromptTokens(model string, messages []openai.ChatCompletionMessage) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0
		}
	}

	total := 0
	for _, m := range messages {
		total += len(tkm.Encode(m.Content, nil, nil))
	}
	return total
}
