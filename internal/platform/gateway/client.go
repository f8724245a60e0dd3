package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/config"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
)

// FinishStop 是表示模型正常结束生成的finish reason。
// 其他取值（安全过滤、复述检测、截断等）都应被调用方视为软失败信号，
// 即使此时仍然返回了部分文本。
const FinishStop = "STOP"

// Part 是一次请求或响应中的内容片段：纯文本或内联的Base64图片。
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob 是带MIME类型的内联二进制数据，Data为Base64编码。
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// GenerationConfig 控制生成行为。
type GenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

// Request 是一次生成调用的完整输入。Model为空时使用客户端的默认模型。
type Request struct {
	Model  string
	Parts  []Part
	Config GenerationConfig
}

// Candidate 是模型返回的一个候选结果。
type Candidate struct {
	Content struct {
		Parts []Part `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// Response 是生成调用的成功响应。
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// FirstText 提取第一个候选的文本内容和finish reason。
// 没有任何可用文本时ok为false。
func (r *Response) FirstText() (text string, finishReason string, ok bool) {
	if r == nil || len(r.Candidates) == 0 {
		return "", "", false
	}
	cand := r.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}
	text = sb.String()
	return text, cand.FinishReason, text != ""
}

// APIError 是网关返回的显式错误对象。
type APIError struct {
	StatusCode int    `json:"code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AI网关错误 (HTTP %d, %s): %s", e.StatusCode, e.Status, e.Message)
}

// Caller 是提交流水线依赖的最小接口，便于测试中替换为脚本化的假客户端。
type Caller interface {
	GenerateContent(ctx context.Context, req *Request) (*Response, error)
}

// Client 封装对外部生成式模型端点的调用。
// 对一组明确分类的瞬时故障（限流、过载、服务端错误）做有界的指数退避重试，
// 其余失败立即向上传播。
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
	log         *logger.Logger
}

// NewClient 根据配置创建网关客户端。API密钥从环境变量 GEMINI_API_KEY 读取。
func NewClient(cfg config.GeminiConfig, log *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("缺少环境变量 GEMINI_API_KEY")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		httpClient:  &http.Client{Timeout: timeout},
		maxRetries:  maxRetries,
		baseBackoff: 500 * time.Millisecond,
		log:         log.With("component", "gateway"),
	}, nil
}

// DefaultModel 返回客户端的默认模型名。
func (c *Client) DefaultModel() string {
	return c.model
}

// 请求体和错误响应的wire格式
type wireRequest struct {
	Contents         []wireContent    `json:"contents"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type wireContent struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// isRetryableStatus 判断一个HTTP状态码是否属于可重试的瞬时故障类别。
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusServiceUnavailable
}

// GenerateContent 执行一次生成调用，对瞬时故障做有界重试。
func (c *Client) GenerateContent(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)

	body, err := json.Marshal(wireRequest{
		Contents:         []wireContent{{Role: "user", Parts: req.Parts}},
		GenerationConfig: req.Config,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化网关请求失败: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避: 500ms, 1s, 2s, ...
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			c.log.Warn("重试AI网关调用", "attempt", attempt, "model", model)
		}

		resp, err := c.doOnce(ctx, url, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// 只有被分类为瞬时故障的HTTP状态才重试，其余立即传播
		apiErr, ok := err.(*APIError)
		if !ok || !isRetryableStatus(apiErr.StatusCode) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("AI网关重试次数耗尽: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, url string, body []byte) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构建网关请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("网关请求发送失败: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("读取网关响应失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var we wireError
		apiErr := &APIError{StatusCode: httpResp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, &we); jsonErr == nil && we.Error.Message != "" {
			apiErr.Status = we.Error.Status
			apiErr.Message = we.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		// 结构异常的响应记录完整上下文，按失败处理，由上层降级
		c.log.Error("网关响应结构异常", "body", string(respBody), "error", err)
		return nil, fmt.Errorf("解析网关响应失败: %w", err)
	}
	return &resp, nil
}
