package api

import (
	"net/http"

	"github.com/MoliStudio/moli-dictation-backend/internal/leaderboard"
	"github.com/MoliStudio/moli-dictation-backend/internal/question"
	"github.com/MoliStudio/moli-dictation-backend/internal/submission"
	"github.com/MoliStudio/moli-dictation-backend/internal/user"
	"github.com/gin-gonic/gin"
)

// Handlers 聚合各领域的HTTP处理器，由main装配后传入SetupRoutes。
type Handlers struct {
	Users       *user.Service
	User        *user.Handler
	Question    *question.Handler
	Submission  *submission.Handler
	Leaderboard *leaderboard.Handler
}

// SetupRoutes 注册项目的所有API路由
func SetupRoutes(router *gin.Engine, h *Handlers) {
	api := router.Group("/api")
	{
		// 存活探针
		api.GET("/hello", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "墨力全开后端运行中"})
		})

		// 身份相关的路由
		api.POST("/login", h.User.Login)
		api.GET("/me", user.RequireAuth(h.Users), h.User.Me)
		api.POST("/logout", user.RequireAuth(h.Users), h.User.Logout)
		api.POST("/change_password", user.RequireAuth(h.Users), h.User.ChangePassword)

		// 题库相关的路由
		api.GET("/start_gaokao_set", user.RequireAuth(h.Users), h.Question.StartGaokaoSet)
		api.GET("/get_chapters", user.RequireAuth(h.Users), h.Question.GetChapters)
		api.GET("/get_chapter_questions", user.RequireAuth(h.Users), h.Question.GetChapterQuestions)

		// 提交相关的路由
		api.POST("/submit", user.RequireAuth(h.Users), h.Submission.Submit)

		// 排行榜：登录用户额外返回自己的名次
		api.GET("/leaderboard", user.OptionalAuth(h.Users), h.Leaderboard.Get)
	}
}
