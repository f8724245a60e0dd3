package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/config"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, serverURL string, maxRetries int) *Client {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	c, err := NewClient(config.GeminiConfig{
		BaseURL:    serverURL,
		Model:      "test-model",
		MaxRetries: maxRetries,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewClient 返回错误: %v", err)
	}
	// 缩短退避，避免测试等待真实的指数退避
	c.baseBackoff = time.Millisecond
	return c
}

const okBody = `{"candidates":[{"content":{"parts":[{"text":"疑是地上霜"}]},"finishReason":"STOP"}]}`

func TestGenerateContentSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost {
			t.Errorf("请求方法 = %s, 期望 POST", r.Method)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("缺少API密钥查询参数")
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	resp, err := c.GenerateContent(context.Background(), &Request{Parts: []Part{{Text: "hi"}}})
	if err != nil {
		t.Fatalf("GenerateContent 返回错误: %v", err)
	}
	text, finishReason, ok := resp.FirstText()
	if !ok || text != "疑是地上霜" || finishReason != FinishStop {
		t.Errorf("FirstText() = (%q, %q, %v), 期望 (疑是地上霜, STOP, true)", text, finishReason, ok)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("成功路径调用了 %d 次, 期望 1 次", calls)
	}
}

func TestGenerateContentRetryThenSuccess(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	if _, err := c.GenerateContent(context.Background(), &Request{Parts: []Part{{Text: "hi"}}}); err != nil {
		t.Fatalf("两次503后应重试成功, 实际错误: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("共调用 %d 次, 期望 3 次", calls)
	}
}

func TestGenerateContentNoRetryOnBadRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid argument","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	_, err := c.GenerateContent(context.Background(), &Request{Parts: []Part{{Text: "hi"}}})
	if err == nil {
		t.Fatal("400响应应当返回错误")
	}
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("错误类型 = %T (%v), 期望 *APIError 且状态码400", err, err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("400不可重试, 共调用 %d 次, 期望 1 次", calls)
	}
}

func TestGenerateContentRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"rate limited","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2)
	_, err := c.GenerateContent(context.Background(), &Request{Parts: []Part{{Text: "hi"}}})
	if err == nil {
		t.Fatal("重试耗尽后应当返回错误")
	}
	// 首次 + 2次重试
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("共调用 %d 次, 期望 3 次", calls)
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	if _, err := NewClient(config.GeminiConfig{}, logger.NewNop()); err == nil {
		t.Fatal("缺少API密钥时NewClient应当失败")
	}
}

func TestFirstTextEmptyResponse(t *testing.T) {
	var resp Response
	if _, _, ok := resp.FirstText(); ok {
		t.Error("空响应的FirstText应返回ok=false")
	}
}
