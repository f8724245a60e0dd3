package user

import (
	"net/http"

	"github.com/MoliStudio/moli-dictation-backend/internal/leaderboard"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Handler 聚合用户相关的HTTP处理函数。
type Handler struct {
	svc   *Service
	board *leaderboard.Service
}

// NewHandler 创建用户Handler。
func NewHandler(svc *Service, board *leaderboard.Service) *Handler {
	return &Handler{svc: svc, board: board}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// Login 处理 POST /api/login，按"首次登录即注册"语义认证用户。
func (h *Handler) Login(c *gin.Context) {
	var body loginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := h.svc.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}

	overview, err := h.board.UserOverview(c.Request.Context(), result.Profile.UserID, result.Profile.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取用户统计失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      result.Profile,
		"stats":     overview,
		"token":     result.Session.Token,
		"expiresAt": result.Session.ExpiresAt,
		"isNewUser": result.IsNewUser,
	})
}

// Me 处理 GET /api/me，返回当前用户资料和统计。
func (h *Handler) Me(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		abortUnauthenticated(c)
		return
	}

	profile, err := h.svc.GetProfile(c.Request.Context(), session.UserID)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}
	overview, err := h.board.UserOverview(c.Request.Context(), session.UserID, session.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取用户统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile, "stats": overview})
}

// Logout 处理 POST /api/logout，使当前会话失效。
func (h *Handler) Logout(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		abortUnauthenticated(c)
		return
	}
	if err := h.svc.Logout(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "退出登录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// ChangePassword 处理 POST /api/change_password，轮换密码和会话。
func (h *Handler) ChangePassword(c *gin.Context) {
	session := CurrentSession(c)
	if session == nil {
		abortUnauthenticated(c)
		return
	}

	var body changePasswordRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	newSession, err := h.svc.ChangePassword(c.Request.Context(), session.UserID, body.OldPassword, body.NewPassword)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "密码修改成功",
		"token":     newSession.Token,
		"expiresAt": newSession.ExpiresAt,
	})
}
