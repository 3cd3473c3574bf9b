package quiz

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/dadmind/backend/internal/model/quiz"
	quizservice "github.com/zhouzirui/dadmind/backend/internal/service/quiz"
)

func setupRouter() *chi.Mux {
	h := New(quizservice.NewService(quiz.Seed(), nil, zerolog.Nop()))
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestSubmitScoresAnswers(t *testing.T) {
	r := setupRouter()
	answers := map[string]string{}
	for _, q := range quiz.Seed() {
		answers[q.ID] = q.Options[0].ID
	}

	resp := post(r, "/quiz/submit", map[string]any{"answers": answers})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var result quiz.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Score != 15 || result.MaxScore != 15 || result.Percentage != 100 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.AdviceError != quizservice.AdviceNotConfigured {
		t.Fatalf("expected not-configured advice error, got %q", result.AdviceError)
	}
}

func TestSubmitRejectsUnanswered(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/quiz/submit", map[string]any{"answers": map[string]string{"q1": "q1o1"}})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body["questionId"] != "q2" {
		t.Fatalf("expected q2 to be reported, got %v", body)
	}
}

func TestResultEstimatesMaxScore(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/quiz/result", map[string]int{"score": 0, "numQuestions": 5})
	var result quiz.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.MaxScore != 15 || result.Advice != quizservice.CalmAdvice {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestResultClampsOutOfRangeScore(t *testing.T) {
	r := setupRouter()

	resp := post(r, "/quiz/result", map[string]int{"score": 99, "maxScore": 15})
	var result quiz.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Score != 15 || result.Percentage != 100 {
		t.Fatalf("expected score clamped to 15 (100%%), got %+v", result)
	}
}
