package period

import (
	"fmt"
	"time"
)

// 所有周期边界都以上海时区计算，保证每日/每周的重置时刻与用户感知一致。
var shanghai *time.Location

func init() {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		// 容器镜像缺少tzdata时退化为固定的UTC+8
		loc = time.FixedZone("CST", 8*60*60)
	}
	shanghai = loc
}

// DayKey 返回给定时间所在自然日的周期键，例如 "20260831"。
func DayKey(t time.Time) string {
	return t.In(shanghai).Format("20060102")
}

// WeekKey 返回给定时间所在ISO周的周期键，例如 "2026-W36"。
func WeekKey(t time.Time) string {
	year, week := t.In(shanghai).ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
