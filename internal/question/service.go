package question

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/kv"
	"github.com/MoliStudio/moli-dictation-backend/pkg/apperr"
	"github.com/MoliStudio/moli-dictation-backend/pkg/token"
)

const (
	// GaokaoSetSize 是一个高考挑战题目集的固定题目数
	GaokaoSetSize = 8
	// gaokaoSetTTL 是题目集从创建到失效的有限生存时间
	gaokaoSetTTL = 30 * time.Minute
)

// Service 负责题目集的创建、解析和单次使用校验。
type Service struct {
	kv  kv.Store
	now func() time.Time
}

// NewService 创建题目服务。
func NewService(store kv.Store) *Service {
	return &Service{kv: store, now: time.Now}
}

// StartGaokaoSet 为用户创建一个新的高考挑战题目集：
// 从全语料展开的 (章节, 填空) 对中无放回地均匀抽取固定数量的题目，
// 生成随机setId，以拥有者和创建时间标记后带TTL持久化。
// 返回的题目集包含答案，handler负责在响应前剥离。
func (s *Service) StartGaokaoSet(ctx context.Context, ownerUserID string) (*GaokaoSet, error) {
	chapters, err := Corpus()
	if err != nil {
		return nil, err
	}

	// 1. 展开语料为 (章节, 填空) 对
	type flatBlank struct {
		chapter *Chapter
		blank   Blank
	}
	var pool []flatBlank
	for i := range chapters {
		for _, blank := range chapters[i].Blanks {
			pool = append(pool, flatBlank{chapter: &chapters[i], blank: blank})
		}
	}
	size := GaokaoSetSize
	if len(pool) < size {
		size = len(pool)
	}
	if size == 0 {
		return nil, fmt.Errorf("语料为空，无法生成题目集")
	}

	// 2. 打乱后取前size个，即无放回均匀抽样
	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	questions := make([]Info, 0, size)
	for _, item := range pool[:size] {
		qid, err := token.NewSetID()
		if err != nil {
			return nil, fmt.Errorf("生成题目ID失败: %w", err)
		}
		questions = append(questions, Info{
			ID:             qid,
			Question:       item.blank.Question,
			Answer:         item.blank.Answer,
			SourceTitle:    item.chapter.Title,
			SourceAuthor:   item.chapter.Author,
			SourceCategory: item.chapter.Category,
			SourceOrder:    item.chapter.Order,
		})
	}

	// 3. 持久化题目集
	setID, err := token.NewSetID()
	if err != nil {
		return nil, fmt.Errorf("生成题目集ID失败: %w", err)
	}
	set := &GaokaoSet{
		SetID:       setID,
		Questions:   questions,
		CreatedAt:   s.now(),
		OwnerUserID: ownerUserID,
	}
	data, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("序列化题目集失败: %w", err)
	}
	if err := s.kv.Put(ctx, setKey(setID), string(data), gaokaoSetTTL); err != nil {
		return nil, err
	}
	return set, nil
}

// ChapterList 返回章节索引。
func (s *Service) ChapterList() ([]ChapterSummary, error) {
	chapters, err := Corpus()
	if err != nil {
		return nil, err
	}
	summaries := make([]ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		summaries = append(summaries, ChapterSummary{
			Order:         ch.Order,
			Title:         ch.Title,
			Author:        ch.Author,
			Category:      ch.Category,
			QuestionCount: len(ch.Blanks),
		})
	}
	return summaries, nil
}

// ChapterQuestions 按章节序号返回该章节的全部题目（含答案）。
// 章节模式的题目集不持久化，按需从静态语料计算；题目ID由章节序号和
// 下标确定性派生，同一章节总是产生相同的ID。
func (s *Service) ChapterQuestions(order int) ([]Info, error) {
	chapter, err := chapterByOrder(order)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperr.New(http.StatusNotFound, "章节不存在")
	}

	questions := make([]Info, 0, len(chapter.Blanks))
	for i, blank := range chapter.Blanks {
		questions = append(questions, Info{
			ID:             fmt.Sprintf("ch-%d-%d", order, i),
			Question:       blank.Question,
			Answer:         blank.Answer,
			SourceTitle:    chapter.Title,
			SourceAuthor:   chapter.Author,
			SourceCategory: chapter.Category,
			SourceOrder:    order,
		})
	}
	return questions, nil
}

// ConsumeGaokaoSet 取出题目集并校验本次消耗是否合法：
// 记录不存在（过期或从未存在）、拥有者不匹配、或已被消耗都会拒绝。
// 单次使用的竞争窗口由提交流水线持有的per-set锁关闭，评分成功后
// 调用方负责通过DeleteSet让它不可再次消耗。
func (s *Service) ConsumeGaokaoSet(ctx context.Context, setID, requestingUserID string) (*GaokaoSet, error) {
	val, found, err := s.kv.Get(ctx, setKey(setID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperr.New(http.StatusNotFound, "题目集不存在或已过期")
	}

	var set GaokaoSet
	if err := json.Unmarshal([]byte(val), &set); err != nil {
		return nil, fmt.Errorf("解析题目集 %s 失败: %w", setID, err)
	}
	if set.OwnerUserID != requestingUserID {
		return nil, apperr.New(http.StatusForbidden, "无权使用他人的题目集")
	}
	if set.UsedAt != nil {
		return nil, apperr.New(http.StatusConflict, "题目集已被使用")
	}
	return &set, nil
}

// DeleteSet 删除题目集，关闭单次使用窗口。
func (s *Service) DeleteSet(ctx context.Context, setID string) error {
	return s.kv.Delete(ctx, setKey(setID))
}
