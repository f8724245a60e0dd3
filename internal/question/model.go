package question

import "time"

// Chapter 是静态语料中的一个章节（一首诗文）。
type Chapter struct {
	Order    int     `json:"order"`
	Title    string  `json:"title"`
	Author   string  `json:"author"`
	Category string  `json:"category"`
	Blanks   []Blank `json:"blanks"`
}

// Blank 是章节中的一个填空。
type Blank struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Info 唯一标识题目集中的一个填空，并携带出处信息。
// 章节模式的ID由章节序号和下标确定性派生，高考模式的ID是随机令牌。
type Info struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	Answer         string `json:"answer,omitempty"`
	SourceTitle    string `json:"sourceTitle,omitempty"`
	SourceAuthor   string `json:"sourceAuthor,omitempty"`
	SourceCategory string `json:"sourceCategory,omitempty"`
	SourceOrder    int    `json:"sourceOrder,omitempty"`
}

// Public 返回去掉答案的副本，用于发给客户端。
func (q Info) Public() Info {
	q.Answer = ""
	return q
}

// GaokaoSet 是高考模式的临时题目集：归属于唯一的拥有者，只能被评分一次，
// 有有限的生存时间。UsedAt非空或记录被删除都表示已被消耗。
type GaokaoSet struct {
	SetID       string     `json:"setId"`
	Questions   []Info     `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`
	OwnerUserID string     `json:"ownerUserId"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
}

// ChapterSummary 是章节索引接口返回的条目。
type ChapterSummary struct {
	Order         int    `json:"order"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Category      string `json:"category"`
	QuestionCount int    `json:"questionCount"`
}
