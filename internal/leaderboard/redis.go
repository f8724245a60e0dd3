package leaderboard

import "fmt"

// 定义排行榜相关的KV键名
const (
	// versionKey 存放当前排行榜版本令牌。
	// 每次成功提交后写入新令牌，旧缓存键因此必然失效，无需显式删除。
	versionKey = "leaderboard:version"

	statsKeyPrefix = "stats:"
	cacheKeyPrefix = "leaderboard:cache:"
)

// statsKey 生成 (scope, period, user) 维度统计记录的键名。
// total范围没有周期，period为空字符串。
func statsKey(scope Scope, period, userID string) string {
	if period == "" {
		return fmt.Sprintf("%s%s:user:%s", statsKeyPrefix, scope, userID)
	}
	return fmt.Sprintf("%s%s:%s:user:%s", statsKeyPrefix, scope, period, userID)
}

// statsPrefix 是排行榜全量扫描使用的前缀。
func statsPrefix(scope Scope, period string) string {
	if period == "" {
		return fmt.Sprintf("%s%s:user:", statsKeyPrefix, scope)
	}
	return fmt.Sprintf("%s%s:%s:user:", statsKeyPrefix, scope, period)
}

// cacheKey 生成缓存的Top-N快照的键名。版本令牌是键的一部分，
// 新版本意味着新键，旧缓存靠TTL自然回收。
func cacheKey(scope Scope, period string, limit int, version string) string {
	return fmt.Sprintf("%s%s:%s:%d:%s", cacheKeyPrefix, scope, period, limit, version)
}
