package submission

import (
	"testing"

	"github.com/MoliStudio/moli-dictation-backend/internal/question"
)

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"原样保留汉字", "疑是地上霜", "疑是地上霜"},
		{"去除中文标点", "疑是地上霜。", "疑是地上霜"},
		{"去除空白和顿号", " 疑是 地上、霜 ", "疑是地上霜"},
		{"去除符号", "疑是地上霜★", "疑是地上霜"},
		{"全标点归空", "。，、！？", ""},
		{"空串", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeAnswer(tt.in); got != tt.want {
				t.Errorf("normalizeAnswer(%q) = %q, 期望 %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScoreSlot(t *testing.T) {
	tests := []struct {
		name        string
		recognized  string
		reference   string
		wantCorrect bool
		wantReason  string
	}{
		{"完全一致", "疑是地上霜", "疑是地上霜", true, ""},
		{"标点差异不影响判分", "疑是地上霜。", "疑是地上霜", true, ""},
		{"写错判错", "疑是天上霜", "疑是地上霜", false, ""},
		{"规整后为空判错", "。。。", "疑是地上霜", false, reasonUnrecognized},
		{"参考答案也为空时仍不算对", "", "", false, reasonNoReference},
		{"调用失败占位", placeholderCallFailed, "疑是地上霜", false, reasonCallFailed},
		{"提取失败占位", placeholderExtractFailed, "疑是地上霜", false, reasonExtractFailed},
		{"行缺失占位", placeholderMissing, "疑是地上霜", false, reasonMissing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotCorrect, gotReason := scoreSlot(tt.recognized, tt.reference)
			if gotCorrect != tt.wantCorrect || gotReason != tt.wantReason {
				t.Errorf("scoreSlot(%q, %q) = (%v, %q), 期望 (%v, %q)",
					tt.recognized, tt.reference, gotCorrect, gotReason, tt.wantCorrect, tt.wantReason)
			}
		})
	}
}

func TestScoreAll(t *testing.T) {
	questions := []question.Info{
		{ID: "q1", Answer: "疑是地上霜"},
		{ID: "q2", Answer: "低头思故乡"},
		{ID: "q3", Answer: "处处闻啼鸟"},
	}
	answers := []string{"疑是地上霜", "低头思故乡。", "写错了"}

	results, totalScore, correctCount := scoreAll(questions, answers)
	if len(results) != 3 {
		t.Fatalf("结果数 = %d, 期望 3", len(results))
	}
	if correctCount != 2 {
		t.Errorf("correctCount = %d, 期望 2", correctCount)
	}
	if totalScore != 20.0 {
		t.Errorf("totalScore = %.1f, 期望 20.0", totalScore)
	}

	if !results[0].IsCorrect || results[0].Score != PerQuestionScore {
		t.Errorf("第1题应得满分: %+v", results[0])
	}
	if !results[1].IsCorrect {
		t.Errorf("第2题标点差异应判对: %+v", results[1])
	}
	if results[2].IsCorrect || results[2].Score != 0 {
		t.Errorf("第3题应判错零分: %+v", results[2])
	}
	for i, r := range results {
		if !r.Success {
			t.Errorf("第%d题的识别本身成功, Success应为true", i+1)
		}
		if r.QuestionIndex != i {
			t.Errorf("第%d题的QuestionIndex = %d", i+1, r.QuestionIndex)
		}
	}
}

func TestScoreAllCallFailedPlaceholders(t *testing.T) {
	questions := []question.Info{
		{ID: "q1", Answer: "疑是地上霜"},
		{ID: "q2", Answer: "低头思故乡"},
	}
	answers := repeatPlaceholder(placeholderCallFailed, 2)

	results, totalScore, correctCount := scoreAll(questions, answers)
	if totalScore != 0 || correctCount != 0 {
		t.Errorf("全部调用失败时得分 = (%.1f, %d), 期望 (0, 0)", totalScore, correctCount)
	}
	for i, r := range results {
		if r.Success {
			t.Errorf("第%d题识别失败, Success应为false", i+1)
		}
		if r.Error != reasonCallFailed {
			t.Errorf("第%d题的Error = %q, 期望 %q", i+1, r.Error, reasonCallFailed)
		}
	}
}

func TestScoreAllShortAnswers(t *testing.T) {
	// answers比questions短时，缺失槽位按空识别处理
	questions := []question.Info{
		{ID: "q1", Answer: "疑是地上霜"},
		{ID: "q2", Answer: "低头思故乡"},
	}
	results, _, correctCount := scoreAll(questions, []string{"疑是地上霜"})
	if correctCount != 1 {
		t.Errorf("correctCount = %d, 期望 1", correctCount)
	}
	if results[1].IsCorrect {
		t.Error("缺失槽位不应判对")
	}
}

func TestRound1(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{10.04, 10.0},
		{10.05, 10.1},
		{10.96, 11.0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestComputePoints(t *testing.T) {
	tests := []struct {
		name          string
		totalScore    float64
		questionCount int
		perfect       bool
		want          float64
	}{
		// 80×1.16=92.8, +5
		{"普通章节提交", 80, 8, false, 97.8},
		// 20×1.04=20.8, +5+15
		{"满分章节提交", 20, 2, true, 40.8},
		{"零分提交仍有参与奖励", 0, 8, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computePoints(tt.totalScore, tt.questionCount, tt.perfect)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("computePoints(%.0f, %d, %v) = %.1f, 期望 %.1f",
					tt.totalScore, tt.questionCount, tt.perfect, got, tt.want)
			}
		})
	}
}

func TestSplitAnswerLines(t *testing.T) {
	lines := splitAnswerLines("疑是地上霜\n\n  低头思故乡  \n")
	if len(lines) != 2 || lines[0] != "疑是地上霜" || lines[1] != "低头思故乡" {
		t.Errorf("splitAnswerLines = %v", lines)
	}
}
