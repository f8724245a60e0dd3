package question

// 定义与题目集相关的KV键名
const (
	// setKeyPrefix + setId -> GaokaoSet JSON (带TTL)
	setKeyPrefix = "gaokao:set:"
)

func setKey(setID string) string {
	return setKeyPrefix + setID
}
