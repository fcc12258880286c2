package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSenderSendBatch(t *testing.T) {
	t.Run("单个 POST 请求携带 Key 与批次", func(t *testing.T) {
		var gotKey string
		var gotBatch []Event
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("X-API-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBatch))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		sender := NewHTTPSender(srv.URL, "ws-key")
		batch := []Event{eventWithID("r1"), eventWithID("r2")}
		require.NoError(t, sender.SendBatch(context.Background(), batch))

		assert.Equal(t, "ws-key", gotKey)
		require.Len(t, gotBatch, 2)
		assert.Equal(t, "r1", gotBatch[0].RequestID)
		assert.Equal(t, "r2", gotBatch[1].RequestID)
	})

	t.Run("非成功状态视为发送失败", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		sender := NewHTTPSender(srv.URL, "ws-key")
		err := sender.SendBatch(context.Background(), []Event{NewEvent()})
		assert.Error(t, err)
	})

	t.Run("Key 未配置时直接失败", func(t *testing.T) {
		sender := NewHTTPSender("http://localhost:1", "")
		err := sender.SendBatch(context.Background(), []Event{NewEvent()})
		assert.Error(t, err)
	})

	t.Run("采集端不可达时返回错误", func(t *testing.T) {
		// 未监听的端口
		sender := NewHTTPSender("http://127.0.0.1:1", "ws-key")
		err := sender.SendBatch(context.Background(), []Event{NewEvent()})
		assert.Error(t, err)
	})
}

func TestInitIdempotent(t *testing.T) {
	t.Cleanup(func() {
		_ = Shutdown(context.Background())
	})

	p1 := Init(Config{APIKey: "k"})
	p2 := Init(Config{APIKey: "other"})
	assert.Same(t, p1, p2, "重复 Init 为 no-op，返回已有实例")
	assert.Same(t, p1, Active())

	require.NoError(t, Shutdown(context.Background()))
	assert.Nil(t, Active())
}
