package token

import (
	"encoding/base64"
	"testing"
	"time"
)

func TestNewSessionToken(t *testing.T) {
	tok, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken() 返回错误: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("令牌不是合法的URL安全Base64: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("令牌解码后长度 = %d, 期望 32", len(raw))
	}

	other, _ := NewSessionToken()
	if tok == other {
		t.Error("两次生成的会话令牌不应相同")
	}
}

func TestNewSetID(t *testing.T) {
	id, err := NewSetID()
	if err != nil {
		t.Fatalf("NewSetID() 返回错误: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		t.Fatalf("ID不是合法的URL安全Base64: %v", err)
	}
	if len(raw) != 16 {
		t.Errorf("ID解码后长度 = %d, 期望 16", len(raw))
	}
}

func TestNewVersionTokenUnique(t *testing.T) {
	now := time.Now()
	a, err := NewVersionToken(now)
	if err != nil {
		t.Fatalf("NewVersionToken() 返回错误: %v", err)
	}
	b, err := NewVersionToken(now)
	if err != nil {
		t.Fatalf("NewVersionToken() 返回错误: %v", err)
	}
	// 同一时间戳下随机后缀仍保证唯一
	if a == b {
		t.Error("同一时刻生成的两个版本令牌不应相同")
	}
}
