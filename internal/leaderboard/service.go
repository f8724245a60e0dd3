package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/pkg/period"
	"github.com/MoliStudio/moli-dictation-backend/pkg/token"
)

const (
	// 缓存的Top-N快照的生存时间，过期的旧版本快照靠它回收
	cacheTTL = 60 * time.Second

	// 周期性统计记录的保留时间，周期键本身已经区分了不同周期
	weeklyStatsTTL = 15 * 24 * time.Hour
	dailyStatsTTL  = 3 * 24 * time.Hour

	// List分页扫描每页的键数
	scanPageSize = 200

	DefaultLimit = 20
	MaxLimit     = 100
)

// Service 维护三个范围的用户统计并生成带缓存的排行榜。
type Service struct {
	kv  kv.Store
	log *logger.Logger
	now func() time.Time
}

// NewService 创建排行榜服务。
func NewService(store kv.Store, log *logger.Logger) *Service {
	return &Service{
		kv:  store,
		log: log.With("component", "leaderboard"),
		now: time.Now,
	}
}

// periodOf 返回某范围当前的周期键。total范围没有周期。
func (s *Service) periodOf(scope Scope, t time.Time) string {
	switch scope {
	case ScopeWeekly:
		return period.WeekKey(t)
	case ScopeDaily:
		return period.DayKey(t)
	default:
		return ""
	}
}

func statsTTL(scope Scope) time.Duration {
	switch scope {
	case ScopeWeekly:
		return weeklyStatsTTL
	case ScopeDaily:
		return dailyStatsTTL
	default:
		return 0
	}
}

// Record 在三个范围上为一次已评分的提交累加统计。
// 更新是纯累加的，并发提交之间不存在需要互斥的读改写竞争。
func (s *Service) Record(ctx context.Context, userID, username string, points, score float64) error {
	now := s.now()
	for _, scope := range AllScopes {
		key := statsKey(scope, s.periodOf(scope, now), userID)

		stats := UserStats{UserID: userID, Username: username}
		if val, found, err := s.kv.Get(ctx, key); err != nil {
			return err
		} else if found {
			if err := json.Unmarshal([]byte(val), &stats); err != nil {
				s.log.Warn("统计记录损坏，重新开始累计", "key", key, "error", err)
				stats = UserStats{UserID: userID, Username: username}
			}
		}

		stats.Username = username
		stats.Points += points
		stats.Attempts++
		stats.TotalScore += score
		stats.UpdatedAt = now

		data, err := json.Marshal(&stats)
		if err != nil {
			return fmt.Errorf("序列化统计记录失败: %w", err)
		}
		if err := s.kv.Put(ctx, key, string(data), statsTTL(scope)); err != nil {
			return fmt.Errorf("写入统计记录 %s 失败: %w", key, err)
		}
	}
	return nil
}

// BumpVersion 生成新的版本令牌，使所有旧的排行榜缓存键失效。
func (s *Service) BumpVersion(ctx context.Context) error {
	ver, err := token.NewVersionToken(s.now())
	if err != nil {
		return fmt.Errorf("生成版本令牌失败: %w", err)
	}
	return s.kv.Put(ctx, versionKey, ver, 0)
}

// currentVersion 读取当前版本令牌，不存在时初始化一个。
func (s *Service) currentVersion(ctx context.Context) (string, error) {
	ver, found, err := s.kv.Get(ctx, versionKey)
	if err != nil {
		return "", err
	}
	if found {
		return ver, nil
	}
	ver, err = token.NewVersionToken(s.now())
	if err != nil {
		return "", err
	}
	if err := s.kv.Put(ctx, versionKey, ver, 0); err != nil {
		return "", err
	}
	return ver, nil
}

// Top 返回某范围当前周期的Top-N排行。
// 先查版本化的缓存快照；未命中时全量扫描该范围的统计记录重建，
// 排序规则: 积分降序 -> 次数降序 -> 更新时间升序（先达到者靠前）。
func (s *Service) Top(ctx context.Context, scope Scope, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	curPeriod := s.periodOf(scope, s.now())
	version, err := s.currentVersion(ctx)
	if err != nil {
		return nil, err
	}

	// 1. 缓存命中则直接返回
	ck := cacheKey(scope, curPeriod, limit, version)
	if val, found, err := s.kv.Get(ctx, ck); err != nil {
		return nil, err
	} else if found {
		var cached []Entry
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return cached, nil
		}
		s.log.Warn("排行榜缓存损坏，触发重建", "key", ck, "error", err)
	}

	// 2. 全量扫描该范围的统计记录
	statsList, err := s.scanStats(ctx, scope, curPeriod)
	if err != nil {
		return nil, err
	}

	// 3. 排序并截断
	sort.Slice(statsList, func(i, j int) bool {
		a, b := statsList[i], statsList[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Attempts != b.Attempts {
			return a.Attempts > b.Attempts
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})
	if len(statsList) > limit {
		statsList = statsList[:limit]
	}

	// 4. 装饰派生字段
	entries := make([]Entry, 0, len(statsList))
	for i, stats := range statsList {
		entries = append(entries, decorate(i+1, stats))
	}

	// 5. 写回缓存，失败不影响本次结果
	if data, err := json.Marshal(entries); err == nil {
		if err := s.kv.Put(ctx, ck, string(data), cacheTTL); err != nil {
			s.log.Warn("写入排行榜缓存失败", "key", ck, "error", err)
		}
	}
	return entries, nil
}

// scanStats 分页列举并读取某 (scope, period) 下的全部统计记录。
// 单条损坏的记录跳过并告警，不影响整体扫描。
func (s *Service) scanStats(ctx context.Context, scope Scope, curPeriod string) ([]UserStats, error) {
	prefix := statsPrefix(scope, curPeriod)
	seen := make(map[string]bool)
	var result []UserStats

	var cursor uint64
	for {
		keys, next, err := s.kv.List(ctx, prefix, cursor, scanPageSize)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			// SCAN可能重复返回键，去重
			if seen[key] {
				continue
			}
			seen[key] = true

			val, found, err := s.kv.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if !found {
				continue
			}
			var stats UserStats
			if err := json.Unmarshal([]byte(val), &stats); err != nil || stats.UserID == "" {
				s.log.Warn("跳过损坏的统计记录", "key", key, "error", err)
				continue
			}
			result = append(result, stats)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}

// decorate 把统计记录转换成带排名、平均分和段位的排行榜行。
func decorate(rank int, stats UserStats) Entry {
	avg := 0.0
	if stats.Attempts > 0 {
		avg = math.Round(stats.TotalScore/float64(stats.Attempts)*10) / 10
	}
	return Entry{
		Rank:     rank,
		UserID:   stats.UserID,
		Username: stats.Username,
		Points:   stats.Points,
		Attempts: stats.Attempts,
		AvgScore: avg,
		Tier:     TierFor(stats.Points),
	}
}

// Overview 是单个用户在三个范围上的统计汇总，供登录和/api/me使用。
type Overview struct {
	Total  UserStats `json:"total"`
	Weekly UserStats `json:"weekly"`
	Daily  UserStats `json:"daily"`
	Tier   TierInfo  `json:"tier"`
}

// UserOverview 读取单个用户三个范围的统计。尚无记录的范围返回零值统计。
func (s *Service) UserOverview(ctx context.Context, userID, username string) (*Overview, error) {
	now := s.now()
	overview := &Overview{}
	targets := map[Scope]*UserStats{
		ScopeTotal:  &overview.Total,
		ScopeWeekly: &overview.Weekly,
		ScopeDaily:  &overview.Daily,
	}
	for scope, target := range targets {
		*target = UserStats{UserID: userID, Username: username}
		val, found, err := s.kv.Get(ctx, statsKey(scope, s.periodOf(scope, now), userID))
		if err != nil {
			return nil, err
		}
		if found {
			if err := json.Unmarshal([]byte(val), target); err != nil {
				s.log.Warn("用户统计记录损坏", "userId", userID, "scope", scope, "error", err)
			}
		}
	}
	overview.Tier = TierFor(overview.Total.Points)
	return overview, nil
}

// Refresh 在提交成功后刷新排行榜：换版本令牌并重建默认快照。
// 这是尽力而为的操作——提交本身已经记账成功，这里失败只记日志。
func (s *Service) Refresh(ctx context.Context) {
	if err := s.BumpVersion(ctx); err != nil {
		s.log.Error("更新排行榜版本失败", "error", err)
		return
	}
	for _, scope := range AllScopes {
		if _, err := s.Top(ctx, scope, DefaultLimit); err != nil {
			s.log.Error("重建排行榜快照失败", "scope", scope, "error", err)
		}
	}
}
