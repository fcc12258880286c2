package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 发送超时：短而固定，超时即认为该批次失败
const sendTimeout = 2 * time.Second

// DefaultEndpoint 默认的采集端地址
const DefaultEndpoint = "http://localhost:8000/ingest"

// HTTPSender 把批次以单个 POST 请求发往采集端
type HTTPSender struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPSender 创建发送器
func NewHTTPSender(endpoint, apiKey string) *HTTPSender {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &HTTPSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

// SendBatch 发送一个批次，失败返回错误（由消费循环记录并丢弃）
func (s *HTTPSender) SendBatch(ctx context.Context, batch []Event) error {
	if s.apiKey == "" {
		return fmt.Errorf("API Key 未配置")
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("序列化批次失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送批次失败: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("采集端返回非成功状态: %d", resp.StatusCode)
	}

	return nil
}
