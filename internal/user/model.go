package user

import "time"

// Profile 是用户对外展示的身份信息。
// UserID 是规范化（去空白、转小写）后的用户名，它本身就是主键，
// 因此大小写不同的两次输入会命中同一个账号，这是有意的设计。
type Profile struct {
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AuthRecord 存储认证所需的全部信息。
// ActiveSessionToken 保证每个用户最多只有一个有效会话：
// 新登录签发会话时会删除旧会话记录并覆盖这个指针。
type AuthRecord struct {
	UserID             string    `json:"userId"`
	Username           string    `json:"username"`
	PasswordSalt       string    `json:"passwordSalt"`
	PasswordHash       string    `json:"passwordHash"`
	ActiveSessionToken string    `json:"activeSessionToken,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Session 是以不透明随机令牌为键的会话记录。
// 有效性除了TTL之外，还要求所属AuthRecord的ActiveSessionToken仍然等于
// 这个令牌——KV记录可能被独立淘汰，指针交叉校验才是真正的权威。
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
