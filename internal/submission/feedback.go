package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/gateway"
)

const (
	feedbackMaxOutputTokens = 2048
	feedbackTemperature     = 0.7

	// PerfectFeedback 是满分时的固定祝贺语，无需AI调用。
	PerfectFeedback = "满分！全部默写正确，一字不差，继续保持这份墨力！"
)

// generateFeedback 执行点评阶段：满分走固定祝贺语，否则请求文本模型
// 生成鼓励性的多段点评。这是独立的失败域——任何无法提取可用文本的情况
// 都回退到确定性的模板点评，用户收到的feedback字段永远不为空。
func (p *Pipeline) generateFeedback(ctx context.Context, outcome *Outcome) string {
	if outcome.CorrectCount == outcome.QuestionCount && outcome.QuestionCount > 0 {
		return PerfectFeedback
	}

	resp, err := p.ai.GenerateContent(ctx, &gateway.Request{
		Parts: []gateway.Part{{Text: buildFeedbackPrompt(outcome)}},
		Config: gateway.GenerationConfig{
			MaxOutputTokens: feedbackMaxOutputTokens,
			Temperature:     feedbackTemperature,
		},
	})
	if err != nil {
		p.log.Warn("点评生成调用失败，使用模板点评", "error", err)
		return fallbackFeedback(outcome)
	}

	text, finishReason, ok := resp.FirstText()
	if !ok || strings.TrimSpace(text) == "" {
		p.log.Warn("点评响应中没有可用文本，使用模板点评", "finishReason", finishReason)
		return fallbackFeedback(outcome)
	}
	if finishReason != "" && finishReason != gateway.FinishStop && strings.TrimSpace(text) == "" {
		return fallbackFeedback(outcome)
	}
	return strings.TrimSpace(text)
}

// buildFeedbackPrompt 汇总得分、逐题对错和OCR问题，构建点评提示词。
func buildFeedbackPrompt(outcome *Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "你是一位温和而专业的语文老师。一位学生刚完成了古诗文默写练习，"+
		"共%d题，得分%.1f/%.1f。以下是逐题情况：\n",
		outcome.QuestionCount, outcome.TotalScore, outcome.ScoreTarget)
	for _, r := range outcome.Results {
		if r.IsCorrect {
			fmt.Fprintf(&sb, "第%d题：正确。\n", r.QuestionIndex+1)
		} else {
			fmt.Fprintf(&sb, "第%d题：错误，正确答案是「%s」，学生写的是「%s」。\n",
				r.QuestionIndex+1, r.CorrectAnswer, r.RecognizedText)
		}
	}
	if outcome.OCRIssue != "" {
		fmt.Fprintf(&sb, "注意：本次识别存在问题（%s），点评时请体谅可能的识别误差。\n", outcome.OCRIssue)
	}
	sb.WriteString("请写一段不少于两个自然段、总计150字以上的点评：先肯定学生的努力，" +
		"再具体指出写错的句子和记忆要点，最后给出鼓励。语气亲切，不要使用列表格式。")
	return sb.String()
}

// fallbackFeedback 从得分和错题列表构建确定性的模板点评。
func fallbackFeedback(outcome *Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "本次默写共%d题，答对%d题，得分%.1f/%.1f。",
		outcome.QuestionCount, outcome.CorrectCount, outcome.TotalScore, outcome.ScoreTarget)
	for _, r := range outcome.Results {
		if !r.IsCorrect {
			fmt.Fprintf(&sb, "第%d题应为「%s」", r.QuestionIndex+1, r.CorrectAnswer)
			if r.RecognizedText != "" && !strings.HasPrefix(r.RecognizedText, "[") {
				fmt.Fprintf(&sb, "，识别到的是「%s」", r.RecognizedText)
			}
			sb.WriteString("。")
		}
	}
	if outcome.OCRIssue != "" {
		fmt.Fprintf(&sb, "（%s）", outcome.OCRIssue)
	}
	sb.WriteString("把写错的句子多读几遍再默一次，下次一定会更好！")
	return sb.String()
}
