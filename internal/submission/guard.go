package submission

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/MoliStudio/moli-dictation-backend/pkg/period"
)

const (
	// submitLockTTL 要大于流水线的预期最长耗时（两次AI调用可能各花数秒）
	submitLockTTL = 2 * time.Minute
	setLockTTL    = 2 * time.Minute

	// 图片指纹的两阶段TTL：pending只需覆盖OCR调用期间，
	// 终态记录长期保留以拦截重放
	fpPendingTTL = 5 * time.Minute
	fpFinalTTL   = 7 * 24 * time.Hour

	// 配额计数键的回收时间，必须长于对应周期
	dailyQuotaTTL  = 48 * time.Hour
	weeklyQuotaTTL = 15 * 24 * time.Hour
)

// Limits 是提交频率和配额的可配置限制。
type Limits struct {
	Cooldown       time.Duration
	DailyAttempts  int
	WeeklyAttempts int
	MaxImageBytes  int64
}

// DefaultLimits 返回默认限制。
func DefaultLimits() Limits {
	return Limits{
		Cooldown:       60 * time.Second,
		DailyAttempts:  3,
		WeeklyAttempts: 10,
		MaxImageBytes:  6 << 20,
	}
}

// --- 提交准入：冷却与互斥锁 ---

// checkAdmission 检查冷却和互斥锁，并占用互斥锁。
// 锁是带短TTL的标记，TTL是请求崩溃后的安全网，显式释放才是主要路径。
func (p *Pipeline) checkAdmission(ctx context.Context, userID string) error {
	if _, found, err := p.kv.Get(ctx, cooldownKey(userID)); err != nil {
		return err
	} else if found {
		return apperr.New(http.StatusTooManyRequests, "提交过于频繁，请稍后再试")
	}

	if _, found, err := p.kv.Get(ctx, submitLockKey(userID)); err != nil {
		return err
	} else if found {
		return apperr.New(http.StatusTooManyRequests, "已有一次提交正在处理中")
	}

	return p.kv.Put(ctx, submitLockKey(userID), strconv.FormatInt(p.now().UnixMilli(), 10), submitLockTTL)
}

func (p *Pipeline) releaseSubmitLock(ctx context.Context, userID string) {
	if err := p.kv.Delete(ctx, submitLockKey(userID)); err != nil {
		p.log.Warn("释放提交锁失败", "userId", userID, "error", err)
	}
}

func (p *Pipeline) armCooldown(ctx context.Context, userID string) {
	if p.limits.Cooldown <= 0 {
		return
	}
	if err := p.kv.Put(ctx, cooldownKey(userID), strconv.FormatInt(p.now().UnixMilli(), 10), p.limits.Cooldown); err != nil {
		p.log.Warn("写入提交冷却标记失败", "userId", userID, "error", err)
	}
}

// --- 高考题目集锁 ---

// acquireSetLock 占用题目集的评分期间锁，已被占用时以冲突错误拒绝，
// 防止同一题目集上的双重提交竞争。
func (p *Pipeline) acquireSetLock(ctx context.Context, setID string) error {
	if _, found, err := p.kv.Get(ctx, setLockKey(setID)); err != nil {
		return err
	} else if found {
		return apperr.New(http.StatusConflict, "该题目集正在被评分中")
	}
	return p.kv.Put(ctx, setLockKey(setID), strconv.FormatInt(p.now().UnixMilli(), 10), setLockTTL)
}

func (p *Pipeline) releaseSetLock(ctx context.Context, setID string) {
	if err := p.kv.Delete(ctx, setLockKey(setID)); err != nil {
		p.log.Warn("释放题目集锁失败", "setId", setID, "error", err)
	}
}

// --- 章节配额：占用-确认式计数 ---

// quotaReservation 封装一次配额占用的回滚逻辑。
// 它被设计为在业务流程失败时，通过defer语句安全地执行补偿。
type quotaReservation struct {
	kv        kv.Store
	log       *logger.Logger
	dailyKey  string
	weeklyKey string
	prevDaily int
	prevWeek  int
	committed bool
}

// reserveQuota 检查并预占 (用户, 章节) 的每日/每周尝试配额。
// 任一配额耗尽时拒绝，此时还没有发生任何图片上传或AI调用。
func (p *Pipeline) reserveQuota(ctx context.Context, userID string, order int) (*quotaReservation, error) {
	now := p.now()
	dKey := dailyQuotaKey(period.DayKey(now), userID, order)
	wKey := weeklyQuotaKey(period.WeekKey(now), userID, order)

	daily, err := p.readCounter(ctx, dKey)
	if err != nil {
		return nil, err
	}
	if daily >= p.limits.DailyAttempts {
		return nil, apperr.New(http.StatusTooManyRequests, "今日该章节的默写次数已用完")
	}
	weekly, err := p.readCounter(ctx, wKey)
	if err != nil {
		return nil, err
	}
	if weekly >= p.limits.WeeklyAttempts {
		return nil, apperr.New(http.StatusTooManyRequests, "本周该章节的默写次数已用完")
	}

	// 在昂贵的外部调用之前预占名额，失败时由补偿回滚
	if err := p.kv.Put(ctx, dKey, strconv.Itoa(daily+1), dailyQuotaTTL); err != nil {
		return nil, err
	}
	if err := p.kv.Put(ctx, wKey, strconv.Itoa(weekly+1), weeklyQuotaTTL); err != nil {
		return nil, err
	}

	return &quotaReservation{
		kv:        p.kv,
		log:       p.log,
		dailyKey:  dKey,
		weeklyKey: wKey,
		prevDaily: daily,
		prevWeek:  weekly,
	}, nil
}

func (p *Pipeline) readCounter(ctx context.Context, key string) (int, error) {
	val, found, err := p.kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("配额计数 %s 的内容损坏: %w", key, err)
	}
	return count, nil
}

// Commit 标记上层业务已成功提交，阻止后续的回滚操作。
func (r *quotaReservation) Commit() {
	r.committed = true
}

// RollbackUnlessCommitted 在提交未完成时把配额计数恢复到占用前的值。
func (r *quotaReservation) RollbackUnlessCommitted(ctx context.Context) {
	if r == nil || r.committed {
		return
	}
	if err := r.kv.Put(ctx, r.dailyKey, strconv.Itoa(r.prevDaily), dailyQuotaTTL); err != nil {
		r.log.Warn("回滚每日配额计数失败", "key", r.dailyKey, "error", err)
	}
	if err := r.kv.Put(ctx, r.weeklyKey, strconv.Itoa(r.prevWeek), weeklyQuotaTTL); err != nil {
		r.log.Warn("回滚每周配额计数失败", "key", r.weeklyKey, "error", err)
	}
}

// --- 图片指纹：两阶段防重放 ---

// fingerprintReservation 封装指纹预占记录的终态提升与回滚。
type fingerprintReservation struct {
	kv        kv.Store
	log       *logger.Logger
	key       string
	committed bool
}

// reserveFingerprint 为 (用户, 图片内容哈希) 预占指纹记录。
// 已存在的记录（无论pending还是终态）都视为重复提交。
// 预占必须发生在昂贵的OCR调用之前，这样并发的相同图片提交会被立即挡下。
func (p *Pipeline) reserveFingerprint(ctx context.Context, userID, hash string) (*fingerprintReservation, error) {
	key := fingerprintKey(userID, hash)
	if _, found, err := p.kv.Get(ctx, key); err != nil {
		return nil, err
	} else if found {
		return nil, apperr.New(http.StatusConflict, "检测到重复的图片提交")
	}

	pending := fmt.Sprintf("pending:%d", p.now().Unix())
	if err := p.kv.Put(ctx, key, pending, fpPendingTTL); err != nil {
		return nil, err
	}
	return &fingerprintReservation{kv: p.kv, log: p.log, key: key}, nil
}

// Finalize 把指纹从pending提升为长期保留的终态记录。
func (r *fingerprintReservation) Finalize(ctx context.Context, at int64) {
	r.committed = true
	if err := r.kv.Put(ctx, r.key, strconv.FormatInt(at, 10), fpFinalTTL); err != nil {
		r.log.Warn("写入指纹终态记录失败", "key", r.key, "error", err)
	}
}

// RollbackUnlessCommitted 在提交未完成时删除预占记录，
// 避免失败的提交永久挡住同一张图片的重试。
func (r *fingerprintReservation) RollbackUnlessCommitted(ctx context.Context) {
	if r == nil || r.committed {
		return
	}
	if err := r.kv.Delete(ctx, r.key); err != nil {
		r.log.Warn("回滚指纹预占记录失败", "key", r.key, "error", err)
	}
}

// --- 图片存证补偿 ---

// evidenceRecord 封装已写入对象存储的图片在失败路径上的删除。
type evidenceRecord struct {
	objects   objectDeleter
	log       *logger.Logger
	key       string
	committed bool
}

type objectDeleter interface {
	Delete(ctx context.Context, key string) error
}

func (e *evidenceRecord) Commit() {
	e.committed = true
}

func (e *evidenceRecord) RollbackUnlessCommitted(ctx context.Context) {
	if e == nil || e.committed {
		return
	}
	if err := e.objects.Delete(ctx, e.key); err != nil {
		e.log.Warn("删除失败提交的图片存证失败", "key", e.key, "error", err)
	}
}
