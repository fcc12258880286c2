package telemetry

import "time"

// Status 调用结果状态
type Status string

const (
	// StatusOK 调用成功
	StatusOK Status = "ok"
	// StatusError 调用失败
	StatusError Status = "error"
)

// 默认的调用面分类
const (
	DefaultProvider     = "openai"
	DefaultEndpointType = "chat.completions"
)

// Message 提示词消息（仅在开启内容采集时上报）
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Event 一次模型 API 调用的观测记录
//
// SDK 端与采集端共享同一结构，字段在边界处校验一次。
// cost_usd 与 workspace_key 由服务端在入库时计算/覆盖，客户端不上报。
type Event struct {
	Provider     string  `json:"provider"`
	EndpointType string  `json:"endpoint_type"`
	Model        *string `json:"model"`

	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	LatencyMs        int64 `json:"latency_ms"`

	Status    Status  `json:"status"`
	ErrorType *string `json:"error_type,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	ClientTS  string `json:"client_ts,omitempty"`

	AppID          *string   `json:"app_id,omitempty"`
	CaptureContent bool      `json:"capture_content"`
	Messages       []Message `json:"messages,omitempty"`
	Response       *string   `json:"response,omitempty"`
}

// NewEvent 创建带默认分类的事件
func NewEvent() Event {
	return Event{
		Provider:     DefaultProvider,
		EndpointType: DefaultEndpointType,
		Status:       StatusOK,
		ClientTS:     time.Now().UTC().Format(time.RFC3339Nano),
	}
}
