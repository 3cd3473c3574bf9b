package quiz

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/dadmind/backend/internal/model/quiz"
)

type stubAdviser struct {
	advice string
	err    error
	calls  []int
}

func (a *stubAdviser) GenerateAdvice(_ context.Context, percentage int) (string, error) {
	a.calls = append(a.calls, percentage)
	return a.advice, a.err
}

func answersAt(questions []quiz.Question, index int) map[string]string {
	answers := make(map[string]string, len(questions))
	for _, q := range questions {
		answers[q.ID] = q.Options[index].ID
	}
	return answers
}

func TestScoreAnswer(t *testing.T) {
	q := quiz.Seed()[0]
	require.Equal(t, 3, ScoreAnswer(q, q.Options[0].ID))
	require.Equal(t, 2, ScoreAnswer(q, q.Options[1].ID))
	require.Equal(t, 1, ScoreAnswer(q, q.Options[2].ID))
	require.Equal(t, 0, ScoreAnswer(q, q.Options[3].ID))
	require.Equal(t, 0, ScoreAnswer(q, "missing"))
}

func TestEvaluateAllFirstOptions(t *testing.T) {
	svc := NewService(quiz.Seed(), nil, zerolog.Nop())
	require.Len(t, svc.Questions(), 5)

	result, err := svc.Evaluate(answersAt(svc.Questions(), 0))
	require.NoError(t, err)
	require.Equal(t, 15, result.Score)
	require.Equal(t, 15, result.MaxScore)
	require.Equal(t, 100, result.Percentage)
	require.Equal(t, Feedback(100), result.Feedback)
}

func TestEvaluateRejectsUnanswered(t *testing.T) {
	svc := NewService(quiz.Seed(), nil, zerolog.Nop())
	answers := answersAt(svc.Questions(), 1)
	delete(answers, "q3")

	_, err := svc.Evaluate(answers)
	require.ErrorIs(t, err, ErrUnanswered)
	var unanswered *UnansweredError
	require.True(t, errors.As(err, &unanswered))
	require.Equal(t, "q3", unanswered.QuestionID)
}

func TestNewResult(t *testing.T) {
	r := NewResult(7, 15, 5)
	require.Equal(t, 47, r.Percentage)

	// maxScore 缺失时按题目数估算
	r = NewResult(6, 0, 4)
	require.Equal(t, 12, r.MaxScore)
	require.Equal(t, 50, r.Percentage)

	r = NewResult(0, 0, 0)
	require.Equal(t, NoDataFeedback, r.Feedback)
	require.Zero(t, r.Percentage)
}

func TestNewResultClampsScore(t *testing.T) {
	r := NewResult(40, 15, 5)
	require.Equal(t, 15, r.Score)
	require.Equal(t, 100, r.Percentage)
	require.Equal(t, Feedback(100), r.Feedback)

	r = NewResult(-9, 0, 5)
	require.Zero(t, r.Score)
	require.Zero(t, r.Percentage)
	require.Equal(t, Feedback(0), r.Feedback)
}

func TestFeedbackBands(t *testing.T) {
	require.Equal(t, Feedback(0), Feedback(30))
	require.NotEqual(t, Feedback(30), Feedback(31))
	require.Equal(t, Feedback(31), Feedback(60))
	require.NotEqual(t, Feedback(60), Feedback(61))
	require.Equal(t, Feedback(61), Feedback(80))
	require.NotEqual(t, Feedback(80), Feedback(81))
	require.Equal(t, Feedback(81), Feedback(100))
}

func TestSubmitSkipsAdviceAtZero(t *testing.T) {
	adviser := &stubAdviser{advice: "unused"}
	svc := NewService(quiz.Seed(), adviser, zerolog.Nop())

	result, err := svc.Submit(context.Background(), answersAt(svc.Questions(), 3))
	require.NoError(t, err)
	require.Zero(t, result.Percentage)
	require.Equal(t, CalmAdvice, result.Advice)
	require.Empty(t, adviser.calls)
}

func TestSubmitFormatsAdvice(t *testing.T) {
	adviser := &stubAdviser{advice: "Ngủ đủ giấc\n\n- Đi bộ\n* Chia sẻ với vợ\n"}
	svc := NewService(quiz.Seed(), adviser, zerolog.Nop())

	result, err := svc.Submit(context.Background(), answersAt(svc.Questions(), 1))
	require.NoError(t, err)
	require.Equal(t, []int{67}, adviser.calls)
	require.Equal(t, "- Ngủ đủ giấc\n- Đi bộ\n* Chia sẻ với vợ", result.Advice)
	require.Empty(t, result.AdviceError)
}

func TestSubmitWithoutAdviser(t *testing.T) {
	svc := NewService(quiz.Seed(), nil, zerolog.Nop())

	result, err := svc.Submit(context.Background(), answersAt(svc.Questions(), 0))
	require.NoError(t, err)
	require.Equal(t, AdviceNotConfigured, result.AdviceError)
	require.Empty(t, result.Advice)
}

func TestSubmitAdviceFailure(t *testing.T) {
	adviser := &stubAdviser{err: errors.New("timeout")}
	svc := NewService(quiz.Seed(), adviser, zerolog.Nop())

	result, err := svc.Submit(context.Background(), answersAt(svc.Questions(), 2))
	require.NoError(t, err)
	require.Equal(t, 33, result.Percentage)
	require.Equal(t, AdviceUnavailable, result.Advice)
	require.Equal(t, "Không thể tạo lời khuyên: timeout", result.AdviceError)
}
