package submission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/leaderboard"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/gateway"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/logger"
	"github.com/MoliStudio/moli-dictation-backend/internal/platform/storage"
	"github.com/MoliStudio/moli-dictation-backend/internal/question"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/google/uuid"
)

// Pipeline 端到端地编排一次提交：准入控制、挑战解析、防重放、
// 图片存证、OCR、评分、点评、积分入账，以及每条退出路径上的清理。
//
// 跨请求的所有协调都通过KV存储完成，这里的锁都是带TTL的建议性标记。
// 流水线内的步骤严格按序执行：指纹预占和图片存证发生在OCR之前，
// 指纹终态化和统计入账只在评分完成之后，锁释放永远在最后。
type Pipeline struct {
	kv        kv.Store
	objects   storage.ObjectStore
	ai        gateway.Caller
	questions *question.Service
	board     *leaderboard.Service
	log       *logger.Logger
	limits    Limits
	now       func() time.Time
}

// NewPipeline 创建提交流水线。
func NewPipeline(store kv.Store, objects storage.ObjectStore, ai gateway.Caller,
	questions *question.Service, board *leaderboard.Service, log *logger.Logger, limits Limits) *Pipeline {
	return &Pipeline{
		kv:        store,
		objects:   objects,
		ai:        ai,
		questions: questions,
		board:     board,
		log:       log.With("component", "submission"),
		limits:    limits,
		now:       time.Now,
	}
}

// Process 处理一次完整的提交。
func (p *Pipeline) Process(ctx context.Context, req *Request) (*Outcome, error) {
	userID := req.UserID

	// 1. 准入控制：冷却检查 + 每用户提交互斥锁
	if err := p.checkAdmission(ctx, userID); err != nil {
		return nil, err
	}
	// 清理阶段在每条退出路径上都会执行：释放锁；
	// 冷却标记只在产生了已评分结果后写入，早期拒绝不消耗用户的时间窗口
	completed := false
	defer func() {
		if completed {
			p.armCooldown(ctx, userID)
		}
		p.releaseSubmitLock(ctx, userID)
	}()

	// 2. 请求校验：此时还没有任何外部调用
	if err := p.validate(req); err != nil {
		return nil, err
	}

	// 3. 挑战解析
	var questions []question.Info
	var set *question.GaokaoSet
	var quota *quotaReservation
	mode := "chapter"
	if req.SetID != "" {
		mode = "gaokao"
		// 先占题目集锁，关闭"读取集合"到"标记已用"之间的竞争窗口
		if err := p.acquireSetLock(ctx, req.SetID); err != nil {
			return nil, err
		}
		defer p.releaseSetLock(ctx, req.SetID)

		var err error
		set, err = p.questions.ConsumeGaokaoSet(ctx, req.SetID, userID)
		if err != nil {
			return nil, err
		}
		questions = set.Questions
	} else {
		var err error
		questions, err = p.questions.ChapterQuestions(req.ChapterOrder)
		if err != nil {
			return nil, err
		}
		// 检查并预占每日/每周配额，失败路径由补偿回滚
		quota, err = p.reserveQuota(ctx, userID, req.ChapterOrder)
		if err != nil {
			return nil, err
		}
		defer quota.RollbackUnlessCommitted(ctx)
	}
	if len(questions) == 0 {
		return nil, apperr.New(http.StatusUnprocessableEntity, "挑战中没有可评分的题目")
	}

	// 4. 防重放：在昂贵的OCR调用之前预占图片指纹
	hash := sha256.Sum256(req.Image)
	fp, err := p.reserveFingerprint(ctx, userID, hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, err
	}
	defer fp.RollbackUnlessCommitted(ctx)

	// 5. 图片存证：OCR失败时证据仍然保留；写入失败则无从评分，中止
	objectKey := fmt.Sprintf("submissions/%s/%d-%s%s",
		userID, p.now().UnixMilli(), uuid.NewString()[:8], extensionFor(req.ContentType))
	if err := p.objects.Put(ctx, objectKey, req.Image, req.ContentType); err != nil {
		p.log.Error("图片存证写入失败", "key", objectKey, "error", err)
		return nil, apperr.New(http.StatusInternalServerError, "图片保存失败，请重试")
	}
	evidence := &evidenceRecord{objects: p.objects, log: p.log, key: objectKey}
	defer evidence.RollbackUnlessCommitted(ctx)

	// 6. OCR阶段（独立失败域，内部降级，不中止提交）
	answers, ocrIssue := p.recognize(ctx, req.Image, req.ContentType, len(questions))

	// 7. 评分（纯函数，无外部调用）
	results, totalScore, correctCount := scoreAll(questions, answers)
	outcome := &Outcome{
		Mode:          mode,
		QuestionCount: len(questions),
		CorrectCount:  correctCount,
		TotalScore:    totalScore,
		ScoreTarget:   float64(len(questions)) * PerQuestionScore,
		Results:       results,
		OCRIssue:      ocrIssue,
		SubmittedAt:   p.now(),
	}

	// 8. 点评阶段（独立失败域，回退到模板点评，永不为空）
	outcome.Feedback = p.generateFeedback(ctx, outcome)

	// 9. 提交阶段
	perfect := correctCount == len(questions)
	outcome.PointsAwarded = computePoints(totalScore, len(questions), perfect)

	// 积分入账失败时没有安全的降级方式：补偿会回滚配额和指纹，
	// 用户可以安全重试
	if err := p.board.Record(ctx, userID, req.Username, outcome.PointsAwarded, totalScore); err != nil {
		p.log.Error("统计入账失败", "userId", userID, "error", err)
		return nil, apperr.New(http.StatusInternalServerError, "成绩保存失败，请重试")
	}
	completed = true
	if quota != nil {
		quota.Commit()
	}
	evidence.Commit()
	fp.Finalize(ctx, p.now().Unix())

	// 高考题目集在此删除，关闭步骤3打开的单次使用窗口
	if set != nil {
		if err := p.questions.DeleteSet(ctx, set.SetID); err != nil {
			p.log.Warn("删除已消耗的题目集失败", "setId", set.SetID, "error", err)
		}
	}

	// 排行榜刷新是尽力而为的：提交已经入账，这里失败不影响本次请求
	p.board.Refresh(ctx)

	// 10. 冷却与解锁由defer统一执行
	return outcome, nil
}

// validate 校验请求本身：挑战标识必须恰好提供一个，图片非空且不超限。
func (p *Pipeline) validate(req *Request) error {
	if (req.SetID != "") == req.HasChapter {
		return apperr.New(http.StatusBadRequest, "必须且只能提供setId或chapterOrder中的一个")
	}
	if len(req.Image) == 0 {
		return apperr.New(http.StatusBadRequest, "缺少手写图片")
	}
	if int64(len(req.Image)) > p.limits.MaxImageBytes {
		return apperr.New(http.StatusRequestEntityTooLarge, "图片大小超出限制")
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
