package usage

import (
	"net/http"
	"strconv"

	response "tokescope/api/handlers/common"
	"tokescope/internal/auth"
	usageSvc "tokescope/internal/usage"

	"github.com/gin-gonic/gin"
)

// Handler 用量查询 API 处理器
type Handler struct {
	service *usageSvc.Service
}

// NewHandler 创建处理器
func NewHandler(service *usageSvc.Service) *Handler {
	return &Handler{service: service}
}

// Summary 获取工作区用量汇总
// @Summary 获取工作区用量汇总
// @Tags Metrics
// @Produce json
// @Param X-API-Key header string true "工作区 Key"
// @Success 200 {object} usageSvc.Summary
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /metrics/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	workspaceKey, ok := auth.GetWorkspaceKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Success: false, Message: "缺少 X-API-Key"})
		return
	}

	summary, err := h.service.Summary(c.Request.Context(), workspaceKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "获取汇总失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// RecentCalls 获取最近调用列表
// @Summary 获取最近调用列表
// @Tags Metrics
// @Produce json
// @Param X-API-Key header string true "工作区 Key"
// @Param limit query int false "返回条数（默认50）"
// @Success 200 {array} usageSvc.CallRecord
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /metrics/calls [get]
func (h *Handler) RecentCalls(c *gin.Context) {
	workspaceKey, ok := auth.GetWorkspaceKey(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Success: false, Message: "缺少 X-API-Key"})
		return
	}

	limit := usageSvc.DefaultRecentLimit
	if l := c.Query("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.service.RecentCalls(c.Request.Context(), workspaceKey, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: "获取最近调用失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}
