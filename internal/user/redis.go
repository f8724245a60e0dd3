package user

// 定义与用户相关的KV键名
const (
	// authKeyPrefix + userId -> AuthRecord JSON
	authKeyPrefix = "user:auth:"
	// profileKeyPrefix + userId -> Profile JSON
	profileKeyPrefix = "user:profile:"
	// sessionKeyPrefix + token -> Session JSON (带TTL)
	sessionKeyPrefix = "session:"
	// pwFailKeyPrefix + userId -> 滚动窗口内修改密码验证失败的次数 (带TTL)
	pwFailKeyPrefix = "user:pwfail:"
)

func authKey(userID string) string {
	return authKeyPrefix + userID
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func pwFailKey(userID string) string {
	return pwFailKeyPrefix + userID
}
