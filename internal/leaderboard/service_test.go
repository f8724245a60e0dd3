package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
)

func newTestService() (*Service, *kv.MemoryStore, *time.Time) {
	store := kv.NewMemoryStore()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	svc := NewService(store, logger.NewNop())
	svc.now = func() time.Time { return now }
	return svc, store, &now
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		points       float64
		wantName     string
		wantProgress float64
	}{
		{0, "墨童", 0},
		{75, "墨童", 50},
		{150, "墨生", 0},
		{400, "墨士", 0},
		{900, "墨客", 0},
		{1800, "墨侠", 0},
		{3200, "墨圣", 100},
		{9999, "墨圣", 100},
	}
	for _, tt := range tests {
		got := TierFor(tt.points)
		if got.Name != tt.wantName {
			t.Errorf("TierFor(%.0f).Name = %q, 期望 %q", tt.points, got.Name, tt.wantName)
		}
		if got.Progress != tt.wantProgress {
			t.Errorf("TierFor(%.0f).Progress = %.1f, 期望 %.1f", tt.points, got.Progress, tt.wantProgress)
		}
	}
}

func TestRecordAccumulatesAllScopes(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Record(ctx, "u1", "墨侠", 90, 80); err != nil {
		t.Fatalf("Record 返回错误: %v", err)
	}
	if err := svc.Record(ctx, "u1", "墨侠", 30, 20); err != nil {
		t.Fatalf("Record 返回错误: %v", err)
	}

	overview, err := svc.UserOverview(ctx, "u1", "墨侠")
	if err != nil {
		t.Fatalf("UserOverview 返回错误: %v", err)
	}
	for name, stats := range map[string]UserStats{
		"total": overview.Total, "weekly": overview.Weekly, "daily": overview.Daily,
	} {
		if stats.Points != 120 || stats.Attempts != 2 || stats.TotalScore != 100 {
			t.Errorf("%s范围 = {points:%.0f attempts:%d totalScore:%.0f}, 期望 {120 2 100}",
				name, stats.Points, stats.Attempts, stats.TotalScore)
		}
	}
	if overview.Tier.Name != "墨童" {
		t.Errorf("Tier = %q, 期望 墨童", overview.Tier.Name)
	}
}

func TestUserOverviewZeroStats(t *testing.T) {
	svc, _, _ := newTestService()
	overview, err := svc.UserOverview(context.Background(), "nobody", "无名")
	if err != nil {
		t.Fatalf("UserOverview 返回错误: %v", err)
	}
	if overview.Total.Attempts != 0 || overview.Total.Points != 0 {
		t.Errorf("无记录用户应返回零值统计: %+v", overview.Total)
	}
	if overview.Total.UserID != "nobody" {
		t.Errorf("零值统计也应携带UserID: %+v", overview.Total)
	}
}

func TestTopSortOrder(t *testing.T) {
	svc, _, now := newTestService()
	ctx := context.Background()

	// u1: 高积分; u2和u3同积分, u3次数更多; u4和u2完全同分但更晚达到
	if err := svc.Record(ctx, "u1", "甲", 300, 80); err != nil {
		t.Fatal(err)
	}
	if err := svc.Record(ctx, "u2", "乙", 100, 70); err != nil {
		t.Fatal(err)
	}
	if err := svc.Record(ctx, "u3", "丙", 50, 60); err != nil {
		t.Fatal(err)
	}
	if err := svc.Record(ctx, "u3", "丙", 50, 60); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(time.Minute)
	if err := svc.Record(ctx, "u4", "丁", 100, 70); err != nil {
		t.Fatal(err)
	}

	entries, err := svc.Top(ctx, ScopeTotal, 10)
	if err != nil {
		t.Fatalf("Top 返回错误: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("条目数 = %d, 期望 4", len(entries))
	}

	wantOrder := []string{"u1", "u3", "u2", "u4"}
	for i, want := range wantOrder {
		if entries[i].UserID != want {
			t.Errorf("第%d名 = %s, 期望 %s", i+1, entries[i].UserID, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("第%d行的Rank = %d", i+1, entries[i].Rank)
		}
	}

	// 平均分保留一位小数
	if entries[1].AvgScore != 60.0 {
		t.Errorf("u3的平均分 = %.1f, 期望 60.0", entries[1].AvgScore)
	}
}

func TestTopCacheInvalidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.Record(ctx, "u1", "甲", 100, 80); err != nil {
		t.Fatal(err)
	}
	first, err := svc.Top(ctx, ScopeTotal, 10)
	if err != nil {
		t.Fatalf("Top 返回错误: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("条目数 = %d, 期望 1", len(first))
	}

	// 版本不变时读到的是缓存快照，看不到新记录
	if err := svc.Record(ctx, "u2", "乙", 200, 90); err != nil {
		t.Fatal(err)
	}
	cached, err := svc.Top(ctx, ScopeTotal, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 {
		t.Fatalf("版本未更新时应命中旧缓存, 条目数 = %d", len(cached))
	}

	// 换版本后缓存失效，重建的快照包含新记录
	if err := svc.BumpVersion(ctx); err != nil {
		t.Fatal(err)
	}
	rebuilt, err := svc.Top(ctx, ScopeTotal, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rebuilt) != 2 {
		t.Fatalf("版本更新后应重建, 条目数 = %d, 期望 2", len(rebuilt))
	}
	if rebuilt[0].UserID != "u2" {
		t.Errorf("第1名 = %s, 期望 u2", rebuilt[0].UserID)
	}
}

func TestTopScopesAreIndependent(t *testing.T) {
	svc, _, now := newTestService()
	ctx := context.Background()

	if err := svc.Record(ctx, "u1", "甲", 100, 80); err != nil {
		t.Fatal(err)
	}

	// 跨到下一天：daily换周期，total仍累计
	*now = now.Add(24 * time.Hour)
	if err := svc.Record(ctx, "u1", "甲", 50, 70); err != nil {
		t.Fatal(err)
	}
	svc.Refresh(ctx)

	total, err := svc.Top(ctx, ScopeTotal, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(total) != 1 || total[0].Points != 150 {
		t.Errorf("total范围 = %+v, 期望积分150", total)
	}

	daily, err := svc.Top(ctx, ScopeDaily, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(daily) != 1 || daily[0].Points != 50 {
		t.Errorf("daily范围只应包含当天的记录: %+v", daily)
	}
}

func TestTopLimitClamping(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := svc.Record(ctx, string(rune('a'+i)), "用户", float64(100-i), 80); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := svc.Top(ctx, ScopeTotal, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("limit=2时条目数 = %d", len(entries))
	}

	// 非法limit回退到默认值
	entries, err = svc.Top(ctx, ScopeTotal, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("limit=-1时应使用默认limit, 条目数 = %d", len(entries))
	}
}
