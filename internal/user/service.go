package user

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/MoliStudio/moli-dictation-backend/pkg/token"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SessionTTL 是会话从签发起的固定生存时间
	SessionTTL = 7 * 24 * time.Hour

	// PBKDF2的代价参数，足以抵御离线暴力破解
	pbkdf2Iterations = 120000
	saltBytes        = 16
	hashBytes        = 32

	// 修改密码时旧密码验证失败的滚动窗口限制
	pwFailLimit  = 5
	pwFailWindow = 15 * time.Minute

	maxUsernameRunes = 24
	minPasswordLen   = 6
	maxPasswordLen   = 72
)

// Service 负责登录注册、会话校验和密码修改。
type Service struct {
	kv  kv.Store
	log *logger.Logger
	now func() time.Time
}

// NewService 创建用户服务。
func NewService(store kv.Store, log *logger.Logger) *Service {
	return &Service{
		kv:  store,
		log: log.With("component", "user"),
		now: time.Now,
	}
}

// NormalizeUsername 规范化用户名：去空白并转小写，作为用户的主键。
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// hashPassword 用PBKDF2-SHA256计算加盐密码哈希。
func hashPassword(password string, salt []byte) string {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, hashBytes, sha256.New)
	return base64.RawStdEncoding.EncodeToString(derived)
}

// LoginResult 是一次登录的完整产物。
type LoginResult struct {
	Session   *Session
	Profile   *Profile
	IsNewUser bool
}

// Login 验证用户名密码并签发新会话。
// 账号不存在时按"首次登录即注册"语义自动创建。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	displayName := strings.TrimSpace(username)
	userID := NormalizeUsername(username)
	if userID == "" || utf8.RuneCountInString(userID) > maxUsernameRunes {
		return nil, apperr.New(http.StatusBadRequest, "用户名不能为空且长度不能超过24个字符")
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return nil, apperr.New(http.StatusBadRequest, "密码长度必须在6到72个字符之间")
	}

	now := s.now()
	record, found, err := s.loadAuthRecord(ctx, userID)
	if err != nil {
		return nil, err
	}

	isNew := false
	if !found {
		// 1. 首次登录即注册：生成随机盐并计算慢哈希
		salt := make([]byte, saltBytes)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("生成密码盐失败: %w", err)
		}
		record = &AuthRecord{
			UserID:       userID,
			Username:     displayName,
			PasswordSalt: base64.RawStdEncoding.EncodeToString(salt),
			PasswordHash: hashPassword(password, salt),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		profile := &Profile{UserID: userID, Username: displayName, CreatedAt: now, UpdatedAt: now}
		if err := s.putJSON(ctx, profileKey(userID), profile, 0); err != nil {
			return nil, err
		}
		isNew = true
	} else {
		// 2. 已有账号：用存储的盐重算哈希并做恒定时间比较
		salt, err := base64.RawStdEncoding.DecodeString(record.PasswordSalt)
		if err != nil {
			return nil, fmt.Errorf("解析用户 %s 的密码盐失败: %w", userID, err)
		}
		expected := hashPassword(password, salt)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(record.PasswordHash)) != 1 {
			return nil, apperr.New(http.StatusUnauthorized, "用户名或密码错误")
		}
	}

	// 3. 签发新会话并作废旧会话
	session, err := s.issueSession(ctx, record, now)
	if err != nil {
		return nil, err
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: session, Profile: profile, IsNewUser: isNew}, nil
}

// issueSession 为用户签发一个全新的会话令牌，并使之前的会话立即失效。
func (s *Service) issueSession(ctx context.Context, record *AuthRecord, now time.Time) (*Session, error) {
	// 1. 先删除旧会话记录（如果有）
	if record.ActiveSessionToken != "" {
		if err := s.kv.Delete(ctx, sessionKey(record.ActiveSessionToken)); err != nil {
			s.log.Warn("删除旧会话记录失败", "userId", record.UserID, "error", err)
		}
	}

	// 2. 生成高熵随机令牌并持久化会话
	tok, err := token.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("生成会话令牌失败: %w", err)
	}
	session := &Session{
		Token:     tok,
		UserID:    record.UserID,
		Username:  record.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(SessionTTL),
	}
	if err := s.putJSON(ctx, sessionKey(tok), session, SessionTTL); err != nil {
		return nil, err
	}

	// 3. 更新认证记录的活跃会话指针
	record.ActiveSessionToken = tok
	record.UpdatedAt = now
	if err := s.putJSON(ctx, authKey(record.UserID), record, 0); err != nil {
		return nil, err
	}
	return session, nil
}

// ValidateSession 校验会话令牌并返回会话记录。
// 令牌缺失、过期、记录不存在、或不等于认证记录当前的活跃令牌都视为认证失败，
// 最后一条覆盖了"新登录挤掉旧设备"的情形。
func (s *Service) ValidateSession(ctx context.Context, tok string) (*Session, error) {
	if tok == "" {
		return nil, apperr.New(http.StatusUnauthorized, "缺少认证令牌")
	}

	var session Session
	found, err := s.getJSON(ctx, sessionKey(tok), &session)
	if err != nil {
		return nil, err
	}
	if !found || !s.now().Before(session.ExpiresAt) {
		return nil, apperr.New(http.StatusUnauthorized, "会话已过期，请重新登录")
	}

	// 交叉校验：KV记录存在不足以证明会话有效，指针才是权威
	record, found, err := s.loadAuthRecord(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if !found || record.ActiveSessionToken != tok {
		return nil, apperr.New(http.StatusUnauthorized, "会话已失效，请重新登录")
	}
	return &session, nil
}

// Logout 使给定会话立即失效。
func (s *Service) Logout(ctx context.Context, session *Session) error {
	if err := s.kv.Delete(ctx, sessionKey(session.Token)); err != nil {
		return err
	}
	record, found, err := s.loadAuthRecord(ctx, session.UserID)
	if err != nil || !found {
		return err
	}
	if record.ActiveSessionToken == session.Token {
		record.ActiveSessionToken = ""
		record.UpdatedAt = s.now()
		return s.putJSON(ctx, authKey(session.UserID), record, 0)
	}
	return nil
}

// ChangePassword 验证旧密码后轮换盐和哈希，并签发全新会话（旧令牌立即失效）。
// 滚动窗口内验证失败超过限制后，即使旧密码正确也会被拒绝，直到窗口过期。
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (*Session, error) {
	if len(newPassword) < minPasswordLen || len(newPassword) > maxPasswordLen {
		return nil, apperr.New(http.StatusBadRequest, "新密码长度必须在6到72个字符之间")
	}

	// 1. 检查失败计数是否已耗尽
	failVal, _, err := s.kv.Get(ctx, pwFailKey(userID))
	if err != nil {
		return nil, err
	}
	failCount, _ := strconv.Atoi(failVal)
	if failCount >= pwFailLimit {
		return nil, apperr.New(http.StatusTooManyRequests, "尝试次数过多，请稍后再试")
	}

	record, found, err := s.loadAuthRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(http.StatusUnauthorized, "用户不存在")
	}

	// 2. 验证旧密码，失败则累加计数
	salt, err := base64.RawStdEncoding.DecodeString(record.PasswordSalt)
	if err != nil {
		return nil, fmt.Errorf("解析用户 %s 的密码盐失败: %w", userID, err)
	}
	if subtle.ConstantTimeCompare([]byte(hashPassword(oldPassword, salt)), []byte(record.PasswordHash)) != 1 {
		if err := s.kv.Put(ctx, pwFailKey(userID), strconv.Itoa(failCount+1), pwFailWindow); err != nil {
			s.log.Warn("写入密码失败计数失败", "userId", userID, "error", err)
		}
		return nil, apperr.New(http.StatusUnauthorized, "旧密码错误")
	}

	// 3. 轮换盐和哈希
	now := s.now()
	newSalt := make([]byte, saltBytes)
	if _, err := rand.Read(newSalt); err != nil {
		return nil, fmt.Errorf("生成密码盐失败: %w", err)
	}
	record.PasswordSalt = base64.RawStdEncoding.EncodeToString(newSalt)
	record.PasswordHash = hashPassword(newPassword, newSalt)

	// 4. 签发全新会话并清除失败计数
	session, err := s.issueSession(ctx, record, now)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Delete(ctx, pwFailKey(userID)); err != nil {
		s.log.Warn("清除密码失败计数失败", "userId", userID, "error", err)
	}
	return session, nil
}

// GetProfile 读取用户资料。
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	found, err := s.getJSON(ctx, profileKey(userID), &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(http.StatusNotFound, "用户不存在")
	}
	return &profile, nil
}

// --- KV序列化辅助 ---

func (s *Service) loadAuthRecord(ctx context.Context, userID string) (*AuthRecord, bool, error) {
	var record AuthRecord
	found, err := s.getJSON(ctx, authKey(userID), &record)
	if err != nil || !found {
		return nil, found, err
	}
	return &record, true, nil
}

func (s *Service) getJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	val, found, err := s.kv.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, fmt.Errorf("解析键 %s 的内容失败: %w", key, err)
	}
	return true, nil
}

func (s *Service) putJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化键 %s 的内容失败: %w", key, err)
	}
	return s.kv.Put(ctx, key, string(data), ttl)
}
