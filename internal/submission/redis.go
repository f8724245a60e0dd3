package submission

import "fmt"

// 定义提交流水线使用的KV键名。
// 所有锁都是带TTL的建议性标记：显式释放是主要路径，
// TTL只是持有者崩溃后的安全网。
const (
	// submitLockKeyPrefix + userId：每用户提交互斥锁
	submitLockKeyPrefix = "submit:lock:"
	// cooldownKeyPrefix + userId：每用户提交冷却标记
	cooldownKeyPrefix = "submit:cooldown:"
	// setLockKeyPrefix + setId：高考题目集的评分期间锁
	setLockKeyPrefix = "gaokao:lock:"
	// fingerprintKeyPrefix + userId + ":" + sha256hex：图片指纹防重放记录
	fingerprintKeyPrefix = "submit:imgfp:"
)

func submitLockKey(userID string) string {
	return submitLockKeyPrefix + userID
}

func cooldownKey(userID string) string {
	return cooldownKeyPrefix + userID
}

func setLockKey(setID string) string {
	return setLockKeyPrefix + setID
}

func fingerprintKey(userID, hash string) string {
	return fingerprintKeyPrefix + userID + ":" + hash
}

// 章节模式的每日/每周尝试次数配额键。周期键是键名的一部分，
// TTL只负责垃圾回收，不承担周期重置。
func dailyQuotaKey(dayKey, userID string, order int) string {
	return fmt.Sprintf("quota:daily:%s:%s:%d", dayKey, userID, order)
}

func weeklyQuotaKey(weekKey, userID string, order int) string {
	return fmt.Sprintf("quota:weekly:%s:%s:%d", weekKey, userID, order)
}
