package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// 工作区 Key 在 gin 上下文中的键名
const workspaceKeyContextKey = "workspace_key"

// ============================================================================
// Gin 中间件
// ============================================================================

// APIKeyAuthMiddleware API Key 认证中间件
//
// 只校验 Key 是否存在：X-API-Key 即工作区的租户分区键，
// 进一步的密钥有效性校验不在范围内。
func APIKeyAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "缺少 X-API-Key",
				"code":  "API_KEY_MISSING",
			})
			return
		}

		// 设置上下文
		c.Set(workspaceKeyContextKey, apiKey)
		c.Next()
	}
}

// GetWorkspaceKey 从 gin 上下文取出认证后的工作区 Key
func GetWorkspaceKey(c *gin.Context) (string, bool) {
	key := c.GetString(workspaceKeyContextKey)
	return key, key != ""
}
