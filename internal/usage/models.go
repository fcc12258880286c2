package usage

import (
	"time"

	"gorm.io/datatypes"
)

// LLMCall 一条已入库的模型调用记录
//
// 记录不可变：只有追加与读取，没有更新路径。
// workspace_key 在入库时由认证头一次性写入，之后不再变化。
type LLMCall struct {
	ID           string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WorkspaceKey string `json:"workspace_key" gorm:"index;not null"`

	Provider     string  `json:"provider" gorm:"not null;default:openai"`
	EndpointType string  `json:"endpoint_type" gorm:"not null;default:chat.completions"`
	Model        *string `json:"model" gorm:"index"`

	PromptTokens     int     `json:"prompt_tokens" gorm:"not null;default:0"`
	CompletionTokens int     `json:"completion_tokens" gorm:"not null;default:0"`
	LatencyMs        int64   `json:"latency_ms" gorm:"not null;default:0"`
	CostUSD          float64 `json:"cost_usd" gorm:"not null;default:0"`

	Status    string  `json:"status" gorm:"not null;default:ok"`
	ErrorType *string `json:"error_type"`

	RequestID string `json:"request_id" gorm:"index;not null"`
	ClientTS  string `json:"client_ts" gorm:"not null"`

	AppID          *string        `json:"app_id"`
	CaptureContent bool           `json:"capture_content" gorm:"not null;default:false"`
	Messages       datatypes.JSON `json:"messages,omitempty"`
	Response       *string        `json:"response,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName 指定表名
func (LLMCall) TableName() string {
	return "llm_calls"
}

// ModelUsage 按模型分组的用量汇总
// 分组按 model 字段字面值进行，model 为空（NULL）时单独成组
type ModelUsage struct {
	Model   *string `json:"model"`
	Calls   int64   `json:"calls"`
	CostUSD float64 `json:"cost_usd"`
}

// Summary 工作区用量汇总
type Summary struct {
	TotalCalls   int64        `json:"total_calls"`
	TotalCostUSD float64      `json:"total_cost_usd"`
	AvgLatencyMs float64      `json:"avg_latency_ms"`
	ByModel      []ModelUsage `json:"by_model"`
}

// CallRecord 最近调用列表的固定投影
// 无论 capture_content 如何，messages/response 原文都不经此读路径暴露
type CallRecord struct {
	Model            *string   `json:"model"`
	Provider         string    `json:"provider"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

// IngestResult 批量入库确认
type IngestResult struct {
	Received     int     `json:"received"`
	BatchCostUSD float64 `json:"batch_cost_usd"`
}
