package question

import (
	"net/http"
	"strconv"

	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Handler 聚合题目相关的HTTP处理函数。
type Handler struct {
	svc *Service
}

// NewHandler 创建题目Handler。
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// StartGaokaoSet 处理 GET /api/start_gaokao_set。
// 创建一个绑定当前用户的单次使用题目集，响应中剥离答案。
func (h *Handler) StartGaokaoSet(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证信息"})
		return
	}

	set, err := h.svc.StartGaokaoSet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}

	public := make([]Info, 0, len(set.Questions))
	for _, q := range set.Questions {
		public = append(public, q.Public())
	}
	c.JSON(http.StatusOK, gin.H{
		"setId":     set.SetID,
		"questions": public,
		"createdAt": set.CreatedAt,
	})
}

// GetChapters 处理 GET /api/get_chapters，返回章节索引。
func (h *Handler) GetChapters(c *gin.Context) {
	summaries, err := h.svc.ChapterList()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取章节索引失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": summaries})
}

// GetChapterQuestions 处理 GET /api/get_chapter_questions?order=N。
// 返回一个章节的题目，答案被剥离。
func (h *Handler) GetChapterQuestions(c *gin.Context) {
	order, err := strconv.Atoi(c.Query("order"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order参数必须是整数"})
		return
	}

	questions, err := h.svc.ChapterQuestions(order)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}

	public := make([]Info, 0, len(questions))
	for _, q := range questions {
		public = append(public, q.Public())
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "questions": public})
}
