package leaderboard

import "time"

// Scope 是统计数据的聚合范围。
type Scope string

const (
	ScopeTotal  Scope = "total"
	ScopeWeekly Scope = "weekly"
	ScopeDaily  Scope = "daily"
)

// AllScopes 按固定顺序列出全部范围，排行榜响应和提交记账都遍历它。
var AllScopes = []Scope{ScopeTotal, ScopeWeekly, ScopeDaily}

// UserStats 是一个 (scope, period, user) 维度的累计统计记录。
// 积分、次数和总分只增不减，正常流程中从不被整体覆盖或删除。
type UserStats struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Points     float64   `json:"points"`
	Attempts   int       `json:"attempts"`
	TotalScore float64   `json:"totalScore"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TierInfo 是根据积分计算出的段位信息。
type TierInfo struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
	// Progress 是向下一段位推进的百分比，已到顶时恒为100
	Progress float64 `json:"progress"`
}

// Entry 是排行榜上的一行：统计数据加上派生的平均分和段位。
type Entry struct {
	Rank     int      `json:"rank"`
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Points   float64  `json:"points"`
	Attempts int      `json:"attempts"`
	AvgScore float64  `json:"avgScore"`
	Tier     TierInfo `json:"tier"`
}

// tierStep 是段位表中的一级。
type tierStep struct {
	minPoints float64
	name      string
	mode      string
}

// tierTable 按积分门槛升序排列，用户的段位是满足门槛的最高一级。
var tierTable = []tierStep{
	{0, "墨童", "启蒙"},
	{150, "墨生", "勤学"},
	{400, "墨士", "精进"},
	{900, "墨客", "融会"},
	{1800, "墨侠", "贯通"},
	{3200, "墨圣", "登峰"},
}

// TierFor 计算给定积分对应的段位和推进度。
// 推进度是向下一段位门槛的线性插值，已在最高段位时为100。
func TierFor(points float64) TierInfo {
	idx := 0
	for i, step := range tierTable {
		if points >= step.minPoints {
			idx = i
		}
	}
	info := TierInfo{Name: tierTable[idx].name, Mode: tierTable[idx].mode, Progress: 100}
	if idx+1 < len(tierTable) {
		lo := tierTable[idx].minPoints
		hi := tierTable[idx+1].minPoints
		info.Progress = (points - lo) / (hi - lo) * 100
	}
	return info
}
