package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tokescope/internal/auth"
	"tokescope/internal/pricing"
	"tokescope/internal/usage"
	"tokescope/pkg/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestRouter 构造带认证中间件的测试路由
func newTestRouter(t *testing.T) (*gin.Engine, *usage.GormStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:ingest_handler_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	store := usage.NewGormStore(db)
	require.NoError(t, store.AutoMigrate())

	service := usage.NewService(store, pricing.NewTable(nil), nil, nil, nil)
	handler := NewHandler(service)

	router := gin.New()
	group := router.Group("/ingest")
	group.Use(auth.APIKeyAuthMiddleware())
	group.POST("", handler.Ingest)

	return router, store
}

func postBatch(router *gin.Engine, apiKey string, batch []telemetry.Event) *httptest.ResponseRecorder {
	body, _ := json.Marshal(batch)
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestEndpoint(t *testing.T) {
	t.Run("缺少 X-API-Key 时返回 401 且不入库", func(t *testing.T) {
		router, store := newTestRouter(t)
		w := postBatch(router, "", []telemetry.Event{telemetry.NewEvent()})
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		calls, err := store.Recent(context.Background(), "ws-1", 10)
		require.NoError(t, err)
		assert.Empty(t, calls)
	})

	t.Run("正常批次返回计数与批次成本", func(t *testing.T) {
		router, store := newTestRouter(t)
		model := "gpt-4o-mini"
		e := telemetry.NewEvent()
		e.Model = &model
		e.PromptTokens = 1_000_000
		e.CompletionTokens = 1_000_000

		w := postBatch(router, "ws-1", []telemetry.Event{e, telemetry.NewEvent()})
		require.Equal(t, http.StatusOK, w.Code)

		var resp IngestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, 2, resp.Received)
		assert.InDelta(t, 0.75, resp.BatchCostUSD, 1e-9)

		calls, err := store.Recent(context.Background(), "ws-1", 10)
		require.NoError(t, err)
		assert.Len(t, calls, 2)
	})

	t.Run("workspace_key 由认证头决定，客户端无法伪造", func(t *testing.T) {
		router, store := newTestRouter(t)
		w := postBatch(router, "ws-real", []telemetry.Event{telemetry.NewEvent()})
		require.Equal(t, http.StatusOK, w.Code)

		calls, err := store.Recent(context.Background(), "ws-real", 10)
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "ws-real", calls[0].WorkspaceKey)
	})

	t.Run("请求体不是合法 JSON 时返回 400", func(t *testing.T) {
		router, _ := newTestRouter(t)
		req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte("not json")))
		req.Header.Set("X-API-Key", "ws-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("空批次合法，received 为 0", func(t *testing.T) {
		router, _ := newTestRouter(t)
		w := postBatch(router, "ws-1", []telemetry.Event{})
		require.Equal(t, http.StatusOK, w.Code)

		var resp IngestResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.Received)
		assert.Zero(t, resp.BatchCostUSD)
	})
}
