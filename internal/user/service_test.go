package user

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
)

func newTestService() (*Service, *kv.MemoryStore, *time.Time) {
	store := kv.NewMemoryStore()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	svc := NewService(store, logger.NewNop())
	svc.now = func() time.Time { return now }
	return svc, store, &now
}

func TestLoginRegistersNewUser(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Login(ctx, "  MoXia ", "secret123")
	if err != nil {
		t.Fatalf("首次登录应自动注册, 实际错误: %v", err)
	}
	if !result.IsNewUser {
		t.Error("首次登录的IsNewUser应为true")
	}
	// 用户名规范化为主键，展示名保留原始大小写
	if result.Profile.UserID != "moxia" {
		t.Errorf("UserID = %q, 期望 moxia", result.Profile.UserID)
	}
	if result.Profile.Username != "MoXia" {
		t.Errorf("Username = %q, 期望 MoXia", result.Profile.Username)
	}
	if result.Session.Token == "" {
		t.Error("登录应签发会话令牌")
	}

	// 再次登录不再是新用户
	again, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("二次登录失败: %v", err)
	}
	if again.IsNewUser {
		t.Error("二次登录的IsNewUser应为false")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Login(ctx, "moxia", "secret123"); err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	_, err := svc.Login(ctx, "moxia", "wrong-password")
	if apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Fatalf("错误密码应返回401, 实际: %v", err)
	}
}

func TestLoginValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"空用户名", "   ", "secret123"},
		{"用户名过长", "这是一个非常非常非常非常非常非常非常非常非常长的用户名啊", "secret123"},
		{"密码过短", "moxia", "12345"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.username, tt.password)
			if apperr.StatusOf(err) != http.StatusBadRequest {
				t.Errorf("期望400, 实际: %v", err)
			}
		})
	}
}

func TestSessionSupersession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, first.Session.Token); err != nil {
		t.Fatalf("新会话校验失败: %v", err)
	}

	// 第二次登录挤掉第一个会话
	second, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("二次登录失败: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, first.Session.Token); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("被挤掉的旧会话应返回401, 实际: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, second.Session.Token); err != nil {
		t.Errorf("新会话应保持有效, 实际: %v", err)
	}
}

func TestValidateSessionExpiry(t *testing.T) {
	svc, _, now := newTestService()
	ctx := context.Background()

	result, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}

	*now = now.Add(SessionTTL + time.Minute)
	if _, err := svc.ValidateSession(ctx, result.Session.Token); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("过期会话应返回401, 实际: %v", err)
	}
}

func TestValidateSessionMissingToken(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.ValidateSession(context.Background(), ""); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("空令牌应返回401, 实际: %v", err)
	}
}

func TestLogout(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	result, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if err := svc.Logout(ctx, result.Session); err != nil {
		t.Fatalf("登出失败: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, result.Session.Token); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("登出后的会话应返回401, 实际: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	old, err := svc.Login(ctx, "moxia", "secret123")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}

	session, err := svc.ChangePassword(ctx, "moxia", "secret123", "newsecret456")
	if err != nil {
		t.Fatalf("修改密码失败: %v", err)
	}

	// 旧会话立即失效，新会话有效
	if _, err := svc.ValidateSession(ctx, old.Session.Token); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("改密后旧会话应失效, 实际: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, session.Token); err != nil {
		t.Errorf("改密签发的新会话应有效, 实际: %v", err)
	}

	// 旧密码不再可用，新密码可以登录
	if _, err := svc.Login(ctx, "moxia", "secret123"); apperr.StatusOf(err) != http.StatusUnauthorized {
		t.Errorf("旧密码应登录失败, 实际: %v", err)
	}
	if _, err := svc.Login(ctx, "moxia", "newsecret456"); err != nil {
		t.Errorf("新密码应登录成功, 实际: %v", err)
	}
}

func TestChangePasswordFailureLimit(t *testing.T) {
	svc, _, now := newTestService()
	ctx := context.Background()

	if _, err := svc.Login(ctx, "moxia", "secret123"); err != nil {
		t.Fatalf("登录失败: %v", err)
	}

	// 连续验证失败直到耗尽限制
	for i := 0; i < pwFailLimit; i++ {
		if _, err := svc.ChangePassword(ctx, "moxia", "wrong", "newsecret456"); apperr.StatusOf(err) != http.StatusUnauthorized {
			t.Fatalf("第%d次错误旧密码应返回401, 实际: %v", i+1, err)
		}
	}

	// 限制耗尽后即使旧密码正确也被拒绝
	if _, err := svc.ChangePassword(ctx, "moxia", "secret123", "newsecret456"); apperr.StatusOf(err) != http.StatusTooManyRequests {
		t.Fatalf("限制耗尽后应返回429, 实际: %v", err)
	}

	// 窗口过期后恢复
	*now = now.Add(pwFailWindow + time.Minute)
	if _, err := svc.ChangePassword(ctx, "moxia", "secret123", "newsecret456"); err != nil {
		t.Fatalf("窗口过期后修改密码应成功, 实际: %v", err)
	}
}
