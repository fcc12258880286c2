package ingest

import (
	"errors"
	"net/http"

	response "tokescope/api/handlers/common"
	"tokescope/internal/auth"
	"tokescope/internal/usage"
	"tokescope/pkg/telemetry"

	"github.com/gin-gonic/gin"
)

// Handler 事件入库 API 处理器
type Handler struct {
	service *usage.Service
}

// NewHandler 创建处理器
func NewHandler(service *usage.Service) *Handler {
	return &Handler{service: service}
}

// IngestResponse 入库确认响应
type IngestResponse struct {
	Status       string  `json:"status"`
	Received     int     `json:"received"`
	BatchCostUSD float64 `json:"batch_cost_usd"`
}

// Ingest 接收一批调用事件
// @Summary 批量上报调用事件
// @Tags Ingest
// @Accept json
// @Produce json
// @Param X-API-Key header string true "工作区 Key"
// @Param batch body []telemetry.Event true "事件批次（有序）"
// @Success 200 {object} IngestResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /ingest [post]
func (h *Handler) Ingest(c *gin.Context) {
	workspaceKey, ok := auth.GetWorkspaceKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Success: false, Message: "缺少 X-API-Key"})
		return
	}

	var batch []telemetry.Event
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: "请求体解析失败: " + err.Error()})
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), workspaceKey, batch)
	if err != nil {
		if errors.Is(err, usage.ErrMissingWorkspaceKey) {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{Success: false, Message: "缺少 X-API-Key"})
			return
		}
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "事件入库失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, IngestResponse{
		Status:       "ok",
		Received:     result.Received,
		BatchCostUSD: result.BatchCostUSD,
	})
}
