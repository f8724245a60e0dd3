package submission

import (
	"math"
	"strings"
	"unicode"

	"github.com/MoliStudio/moli-dictation-backend/internal/question"
)

// PerQuestionScore 是每个填空的固定分值。
const PerQuestionScore = 10.0

// OCR各失败域对应的占位答案。它们互不相同，
// 评分时据此映射为不同的人类可读错误原因。
const (
	placeholderCallFailed    = "[识别调用失败]"
	placeholderExtractFailed = "[提取失败]"
	placeholderMissing       = "[答案缺失]"
)

// 各占位答案和空识别结果对应的错误原因
const (
	reasonCallFailed    = "识别服务调用失败，本题按错误计分"
	reasonExtractFailed = "识别结果提取失败，本题按错误计分"
	reasonMissing       = "未检测到该题的作答内容"
	reasonUnrecognized  = "未能识别出文字"
	reasonNoReference   = "该题缺少参考答案"
)

// normalizeAnswer 做Unicode感知的规整：去掉所有空白、标点和符号。
// 评分只比较规整后的文本，因此书写中的顿号、句号和空格不影响判分。
func normalizeAnswer(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// round1 保留一位小数。
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

// scoreSlot 对一个对齐后的答案槽位评分。
// 这是纯函数：结果只取决于识别文本和参考答案两个字符串。
// 规整后为空的识别文本永远不算正确，即使参考答案规整后也为空。
func scoreSlot(recognized, reference string) (isCorrect bool, reason string) {
	// 1. 占位答案直接映射为对应的错误原因
	switch recognized {
	case placeholderCallFailed:
		return false, reasonCallFailed
	case placeholderExtractFailed:
		return false, reasonExtractFailed
	case placeholderMissing:
		return false, reasonMissing
	}

	// 2. 参考答案缺失时本题无法判定
	normRef := normalizeAnswer(reference)
	if normRef == "" {
		return false, reasonNoReference
	}

	// 3. 规整后做精确比较
	normRec := normalizeAnswer(recognized)
	if normRec == "" {
		return false, reasonUnrecognized
	}
	if normRec == normRef {
		return true, ""
	}
	return false, ""
}

// scoreAll 对N个对齐后的答案槽位逐一评分。
// 每个正确槽位得 scoreTarget/N 分，总分四舍五入到一位小数。
func scoreAll(questions []question.Info, answers []string) (results []Result, totalScore float64, correctCount int) {
	n := len(questions)
	perSlot := PerQuestionScore // scoreTarget/N == 每题固定分值

	results = make([]Result, 0, n)
	for i, q := range questions {
		recognized := ""
		if i < len(answers) {
			recognized = answers[i]
		}
		isCorrect, reason := scoreSlot(recognized, q.Answer)

		result := Result{
			QuestionIndex:  i,
			QuestionID:     q.ID,
			Success:        reason != reasonCallFailed && reason != reasonExtractFailed,
			RecognizedText: recognized,
			CorrectAnswer:  q.Answer,
			IsCorrect:      isCorrect,
			Error:          reason,
		}
		if isCorrect {
			result.Score = perSlot
			totalScore += perSlot
			correctCount++
		}
		results = append(results, result)
	}
	return results, round1(totalScore), correctCount
}

// computePoints 计算本次提交奖励的排位积分：
// 得分按题量做轻微的难度加成，外加固定的参与奖励和满分奖励。
func computePoints(totalScore float64, questionCount int, perfect bool) float64 {
	points := round1(totalScore*(1+0.02*float64(questionCount))) + 5
	if perfect {
		points += 15
	}
	return points
}
