package submission

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/MoliStudio/moli-dictation-backend/internal/platform/gateway"
)

const (
	ocrMaxOutputTokens = 1024
	ocrTemperature     = 0.1
)

// buildOCRPrompt 构建要求视觉模型按行输出N条转写结果的提示词。
func buildOCRPrompt(n int) string {
	return fmt.Sprintf(
		"这张图片是学生手写的古诗文默写作业，上面从上到下依次写有%d句作答。"+
			"请严格按照书写顺序，将每一句的文字逐字转写出来，恰好输出%d行，"+
			"每行只包含一句的内容，不要添加编号、标点解释或任何其他文字。"+
			"如果某一句无法辨认，该行输出空行。", n, n)
}

// recognize 执行OCR阶段：调用视觉模型并把结果对齐为恰好N个答案槽位。
// 这是一个独立的失败域——任何失败都降级为占位答案并记录问题说明，
// 不会中止整个提交（用户仍然得到按错误计分的结果）。
func (p *Pipeline) recognize(ctx context.Context, image []byte, contentType string, n int) (answers []string, issue string) {
	resp, err := p.ai.GenerateContent(ctx, &gateway.Request{
		Parts: []gateway.Part{
			{Text: buildOCRPrompt(n)},
			{InlineData: &gateway.Blob{
				MIMEType: contentType,
				Data:     base64.StdEncoding.EncodeToString(image),
			}},
		},
		Config: gateway.GenerationConfig{
			MaxOutputTokens: ocrMaxOutputTokens,
			Temperature:     ocrTemperature,
		},
	})

	// 1. 调用彻底失败（重试已耗尽）：合成N个调用失败占位答案
	if err != nil {
		p.log.Error("OCR调用失败", "error", err)
		return repeatPlaceholder(placeholderCallFailed, n), "识别服务调用失败，所有题目按错误计分"
	}

	// 2. 无可用文本：合成提取失败占位答案
	text, finishReason, ok := resp.FirstText()
	if !ok {
		p.log.Error("OCR响应中没有可用文本", "finishReason", finishReason)
		return repeatPlaceholder(placeholderExtractFailed, n), "识别结果提取失败，所有题目按错误计分"
	}

	// 3. 非正常结束原因（安全过滤、复述检测、截断）记为问题，但仍尝试使用已返回的文本
	if finishReason != "" && finishReason != gateway.FinishStop {
		issue = fmt.Sprintf("识别未正常完成 (finishReason=%s)，结果可能不完整", finishReason)
		p.log.Warn("OCR以非正常原因结束", "finishReason", finishReason)
	}

	// 4. 按行切分并对齐到N个槽位。
	// 行数不符时做位置性的补齐/截断，不做语义重对齐，也不触发重试；
	// 这是在健壮性与忠实性之间有意保留的取舍。
	lines := splitAnswerLines(text)
	if len(lines) != n {
		mismatch := fmt.Sprintf("识别结果行数不符：期望%d行，实际%d行", n, len(lines))
		if issue != "" {
			issue += "；" + mismatch
		} else {
			issue = mismatch
		}
		if len(lines) > n {
			lines = lines[:n]
		} else {
			for len(lines) < n {
				lines = append(lines, placeholderMissing)
			}
		}
	}
	return lines, issue
}

// splitAnswerLines 把模型输出切分为非空的答案行。
func splitAnswerLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func repeatPlaceholder(placeholder string, n int) []string {
	answers := make([]string, n)
	for i := range answers {
		answers[i] = placeholder
	}
	return answers
}
