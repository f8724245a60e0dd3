package leaderboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler 聚合排行榜相关的HTTP处理函数。
type Handler struct {
	svc *Service
}

// NewHandler 创建排行榜Handler。
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get 处理 GET /api/leaderboard?limit=N。
// 返回三个范围的Top-N榜单；携带有效令牌时附带调用者自己的统计。
func (h *Handler) Get(c *gin.Context) {
	limit := DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit参数必须是正整数"})
			return
		}
		limit = parsed
	}

	response := gin.H{}
	for _, scope := range AllScopes {
		entries, err := h.svc.Top(c.Request.Context(), scope, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "读取排行榜失败"})
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		response[string(scope)] = entries
	}

	// 已认证的调用者额外返回自己的统计
	if userID, ok := c.Get("userID"); ok {
		username, _ := c.Get("username")
		overview, err := h.svc.UserOverview(c.Request.Context(), userID.(string), username.(string))
		if err == nil {
			response["me"] = overview
		}
	}

	c.JSON(http.StatusOK, response)
}
