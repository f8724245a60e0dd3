package period

import (
	"testing"
	"time"
)

func TestDayKeyUsesShanghaiBoundary(t *testing.T) {
	// UTC的2026-08-30 17:00 已经是上海的2026-08-31 01:00
	utc := time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC)
	if got := DayKey(utc); got != "20260831" {
		t.Fatalf("DayKey(%v) = %q, 期望 20260831", utc, got)
	}

	// 上海午夜前一刻仍属于前一天
	beforeMidnight := time.Date(2026, 8, 30, 15, 59, 59, 0, time.UTC)
	if got := DayKey(beforeMidnight); got != "20260830" {
		t.Fatalf("DayKey(%v) = %q, 期望 20260830", beforeMidnight, got)
	}
}

func TestWeekKeyISOWeek(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"周中", time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), "2026-W35"},
		{"跨年属于前一年的最后一周", time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), "2026-W53"},
		{"个位数周补零", time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC), "2026-W02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekKey(tt.t); got != tt.want {
				t.Errorf("WeekKey(%v) = %q, 期望 %q", tt.t, got, tt.want)
			}
		})
	}
}
