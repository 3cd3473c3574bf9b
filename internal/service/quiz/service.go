package quiz

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/metrics"
	"github.com/zhouzirui/dadmind/backend/internal/model/quiz"
)

// ErrUnanswered 表示有题目未作答
var ErrUnanswered = errors.New("Vui lòng chọn một đáp án trước khi nộp bài.")

// UnansweredError 指出第一道未作答的题目
type UnansweredError struct {
	QuestionID string
}

func (e *UnansweredError) Error() string { return ErrUnanswered.Error() }

func (e *UnansweredError) Unwrap() error { return ErrUnanswered }

const (
	// PointsPerQuestion 每题最高分
	PointsPerQuestion = 3

	NoDataFeedback      = "Không có dữ liệu điểm số."
	CalmAdvice          = "Chúc mừng bạn! Dường như bạn đang quản lý stress rất tốt."
	AdviceNotConfigured = "API Key is not configured for advice generation."
	AdviceUnavailable   = "Không thể tải lời khuyên lúc này."
)

// Adviser 生成个性化建议
type Adviser interface {
	GenerateAdvice(ctx context.Context, percentage int) (string, error)
}

// Service 负责题目、计分与建议
type Service struct {
	questions []quiz.Question
	adviser   Adviser
	logger    zerolog.Logger
}

// NewService 创建服务，adviser 为 nil 时不生成建议
func NewService(questions []quiz.Question, adviser Adviser, logger zerolog.Logger) *Service {
	return &Service{
		questions: questions,
		adviser:   adviser,
		logger:    logger,
	}
}

// Questions 返回题目列表
func (s *Service) Questions() []quiz.Question {
	out := make([]quiz.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// ScoreAnswer 第 1..4 个选项依次得 3..0 分，未知选项得 0 分
func ScoreAnswer(q quiz.Question, optionID string) int {
	for i, opt := range q.Options {
		if opt.ID == optionID {
			if points := PointsPerQuestion - i; points > 0 {
				return points
			}
			return 0
		}
	}
	return 0
}

// Evaluate 计算总分，每道题都必须作答
func (s *Service) Evaluate(answers map[string]string) (quiz.Result, error) {
	score := 0
	for _, q := range s.questions {
		optionID, ok := answers[q.ID]
		if !ok || optionID == "" {
			return quiz.Result{}, &UnansweredError{QuestionID: q.ID}
		}
		score += ScoreAnswer(q, optionID)
	}
	return NewResult(score, PointsPerQuestion*len(s.questions), len(s.questions)), nil
}

// NewResult 计算百分比与反馈，maxScore 缺失时按题目数估算，score 限制在 [0, maxScore]
func NewResult(score, maxScore, numQuestions int) quiz.Result {
	if maxScore <= 0 && numQuestions > 0 {
		maxScore = numQuestions * PointsPerQuestion
	}
	if maxScore <= 0 {
		return quiz.Result{Feedback: NoDataFeedback}
	}
	score = min(max(score, 0), maxScore)

	percentage := int(math.Round(float64(score) / float64(maxScore) * 100))
	return quiz.Result{
		Score:      score,
		MaxScore:   maxScore,
		Percentage: percentage,
		Feedback:   Feedback(percentage),
	}
}

// Feedback 按压力百分比分档
func Feedback(percentage int) string {
	switch {
	case percentage <= 30:
		return "Mức độ stress của bạn ở mức thấp. Hãy tiếp tục duy trì lối sống tích cực!"
	case percentage <= 60:
		return "Mức độ stress của bạn ở mức trung bình. Hãy chú ý hơn đến việc thư giãn và cân bằng cuộc sống."
	case percentage <= 80:
		return "Mức độ stress của bạn ở mức cao. Bạn nên tìm hiểu các biện pháp giảm stress và cân nhắc tìm sự hỗ trợ."
	default:
		return "Mức độ stress của bạn ở mức rất cao. Điều quan trọng là bạn cần tìm sự hỗ trợ chuyên nghiệp để cải thiện tình hình."
	}
}

// Advise 填充建议。0% 不调用模型
func (s *Service) Advise(ctx context.Context, result *quiz.Result) {
	if result.MaxScore <= 0 {
		return
	}
	if result.Percentage == 0 {
		result.Advice = CalmAdvice
		return
	}
	if s.adviser == nil {
		result.AdviceError = AdviceNotConfigured
		return
	}

	advice, err := s.adviser.GenerateAdvice(ctx, result.Percentage)
	if err != nil {
		s.logger.Warn().Err(err).Int("percentage", result.Percentage).Msg("[quiz] advice generation failed")
		result.Advice = AdviceUnavailable
		result.AdviceError = fmt.Sprintf("Không thể tạo lời khuyên: %v", err)
		return
	}
	result.Advice = strings.Join(FormatAdvice(advice), "\n")
}

// Submit 计分并生成建议
func (s *Service) Submit(ctx context.Context, answers map[string]string) (quiz.Result, error) {
	result, err := s.Evaluate(answers)
	if err != nil {
		return quiz.Result{}, err
	}
	metrics.QuizSubmissions.Inc()
	s.Advise(ctx, &result)
	return result, nil
}

// FormatAdvice 去掉空行，并保证每行以 "- " 或 "* " 开头
func FormatAdvice(text string) []string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
			line = "- " + line
		}
		lines = append(lines, line)
	}
	return lines
}
