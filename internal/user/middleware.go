package user

import (
	"net/http"
	"strings"

	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Gin上下文中存放当前用户信息的键名
const (
	UserIDKey   = "userID"
	UsernameKey = "username"
	SessionKey  = "session"
)

// bearerToken 从Authorization头中提取Bearer令牌。
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth 校验Bearer令牌并将用户信息放入Gin上下文，失败时中断请求。
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := svc.ValidateSession(c.Request.Context(), bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
			return
		}
		c.Set(UserIDKey, session.UserID)
		c.Set(UsernameKey, session.Username)
		c.Set(SessionKey, session)
		c.Next()
	}
}

// OptionalAuth 尝试校验Bearer令牌，但无论成功与否都放行请求。
// 用于排行榜这类对匿名用户也开放的接口。
func OptionalAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if session, err := svc.ValidateSession(c.Request.Context(), tok); err == nil {
				c.Set(UserIDKey, session.UserID)
				c.Set(UsernameKey, session.Username)
				c.Set(SessionKey, session)
			}
		}
		c.Next()
	}
}

// CurrentSession 从Gin上下文中取出已校验的会话，不存在时返回nil。
func CurrentSession(c *gin.Context) *Session {
	val, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	session, _ := val.(*Session)
	return session
}

// abortUnauthenticated 是handler在上下文缺少会话时的兜底。
func abortUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证信息"})
}
