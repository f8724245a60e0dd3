package submission

import "time"

// Request 是提交流水线的输入，由handler从multipart表单解析而来。
// SetID 和 ChapterOrder 必须恰好提供一个。
type Request struct {
	UserID       string
	Username     string
	SetID        string
	ChapterOrder int
	HasChapter   bool
	Image        []byte
	ContentType  string
}

// Result 是单个填空的评分结果，仅存在于响应中，从不持久化。
type Result struct {
	QuestionIndex  int     `json:"questionIndex"`
	QuestionID     string  `json:"questionId"`
	Success        bool    `json:"success"`
	RecognizedText string  `json:"recognizedText"`
	CorrectAnswer  string  `json:"correctAnswer"`
	IsCorrect      bool    `json:"isCorrect"`
	Score          float64 `json:"score"`
	Error          string  `json:"error,omitempty"`
}

// Outcome 是一次完整提交的最终产物。
type Outcome struct {
	Mode          string    `json:"mode"`
	QuestionCount int       `json:"questionCount"`
	CorrectCount  int       `json:"correctCount"`
	TotalScore    float64   `json:"totalScore"`
	ScoreTarget   float64   `json:"scoreTarget"`
	Results       []Result  `json:"results"`
	OCRIssue      string    `json:"ocrIssue,omitempty"`
	Feedback      string    `json:"feedback"`
	PointsAwarded float64   `json:"pointsAwarded"`
	SubmittedAt   time.Time `json:"submittedAt"`
}
