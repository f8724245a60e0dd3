package submission

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// Handler 聚合提交相关的HTTP处理函数。
type Handler struct {
	pipeline *Pipeline
	limits   Limits
}

// NewHandler 创建提交Handler。
func NewHandler(pipeline *Pipeline, limits Limits) *Handler {
	return &Handler{pipeline: pipeline, limits: limits}
}

// 接受的图片MIME类型
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Submit 处理 POST /api/submit (multipart表单)。
// 表单字段：setId 或 chapterOrder 二选一，handwritingImage 为图片文件。
func (h *Handler) Submit(c *gin.Context) {
	userID := c.GetString("userID")
	username := c.GetString("username")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证信息"})
		return
	}

	req := &Request{UserID: userID, Username: username}

	// 1. 解析挑战标识
	req.SetID = strings.TrimSpace(c.PostForm("setId"))
	if raw := strings.TrimSpace(c.PostForm("chapterOrder")); raw != "" {
		order, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chapterOrder必须是整数"})
			return
		}
		req.ChapterOrder = order
		req.HasChapter = true
	}

	// 2. 解析图片文件
	file, header, err := c.Request.FormFile("handwritingImage")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少handwritingImage文件"})
		return
	}
	defer file.Close()

	if header.Size > h.limits.MaxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "图片大小超出限制"})
		return
	}
	// 多读一个字节以检测超限的流
	image, err := io.ReadAll(io.LimitReader(file, h.limits.MaxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取图片失败"})
		return
	}
	if int64(len(image)) > h.limits.MaxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "图片大小超出限制"})
		return
	}
	req.Image = image

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		contentType = "image/jpeg"
	}
	req.ContentType = contentType

	// 3. 交给流水线处理
	outcome, err := h.pipeline.Process(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperr.StatusOf(err), gin.H{"error": apperr.MessageOf(err)})
		return
	}
	c.JSON(http.StatusOK, outcome)
}
