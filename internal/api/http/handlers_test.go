package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	api "github.com/openlearn-labs/quizengine/internal/api/http"
	auth "github.com/openlearn-labs/quizengine/internal/auth/middleware"
	"github.com/openlearn-labs/quizengine/internal/grading"
	"github.com/openlearn-labs/quizengine/internal/quiz"
)

func newTestServer(t *testing.T) (*httptest.Server, *quiz.MemoryStore, *auth.AuthService) {
	t.Helper()
	store := quiz.NewInMemoryStore()
	sessions := quiz.NewSessionManager(store, grading.NewDefaultGrader(), nil)
	authSvc := auth.NewAuthService("test-secret")

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Get("/quizzes/{quizID}", api.GetQuizHandler(sessions))
		pr.Get("/courses/{courseID}/quizzes", api.ListCourseQuizzesHandler(sessions))
		pr.Post("/quizzes/{quizID}/attempts", api.StartAttemptHandler(sessions))
		pr.Post("/attempts/{attemptID}/resume", api.ResumeAttemptHandler(sessions))
		pr.Post("/session/clear", api.ClearAttemptHandler(sessions))
		pr.Post("/quizzes/{quizID}/answers", api.SubmitAnswerHandler(sessions))
		pr.Post("/quizzes/{quizID}/finalize", api.FinalizeAttemptHandler(sessions))
		pr.Get("/quizzes/{quizID}/attempts", api.ListAttemptsHandler(sessions))
		pr.Get("/attempts/{attemptID}/answers", api.GetAttemptAnswersHandler(sessions))
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store, authSvc
}

func seedQuiz(store *quiz.MemoryStore) {
	q := quiz.Quiz{ID: "quiz-1", CourseID: "course-1", Title: "Checkpoint 1", PassingScore: 70}
	var bank []quiz.Question
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("q%d", i)
		bank = append(bank, quiz.Question{
			ID: id, QuizID: q.ID, Kind: quiz.KindChoice,
			Text: fmt.Sprintf("question %d", i), PointWeight: 1, Order: i,
			Options: []quiz.Option{
				{ID: id + "-a", QuestionID: id, Text: "a", Order: 1},
				{ID: id + "-b", QuestionID: id, Text: "b", IsCorrect: true, Order: 2},
			},
		})
	}
	store.PutQuiz(q, bank)
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestRequiresToken(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedQuiz(store)
	resp := do(t, "GET", srv.URL+"/quizzes/quiz-1", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetQuizHidesCorrectness(t *testing.T) {
	srv, store, authSvc := newTestServer(t)
	seedQuiz(store)
	token, _ := authSvc.IssueJWT("u1")

	resp := do(t, "GET", srv.URL+"/quizzes/quiz-1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var raw bytes.Buffer
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	body := raw.String()
	if strings.Contains(body, "is_correct") || strings.Contains(body, "correct") {
		t.Fatalf("answer key leaked to client: %s", body)
	}

	var view quiz.QuizView
	if err := json.Unmarshal(raw.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if len(view.Questions) != 4 || len(view.Questions[0].Options) != 2 {
		t.Fatalf("view = %+v", view)
	}
}

func TestGetQuizNotFound(t *testing.T) {
	srv, _, authSvc := newTestServer(t)
	token, _ := authSvc.IssueJWT("u1")
	resp := do(t, "GET", srv.URL+"/quizzes/missing", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAnswerAndFinalizeFlow(t *testing.T) {
	srv, store, authSvc := newTestServer(t)
	seedQuiz(store)
	token, _ := authSvc.IssueJWT("u1")

	// answering without an explicit start opens an attempt implicitly
	for _, sub := range []struct{ q, o string }{
		{"q1", "q1-b"}, {"q2", "q2-b"}, {"q3", "q3-b"}, {"q4", "q4-a"},
	} {
		resp := do(t, "POST", srv.URL+"/quizzes/quiz-1/answers", token,
			map[string]string{"question_id": sub.q, "option_id": sub.o})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit %s: status %d", sub.q, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := do(t, "POST", srv.URL+"/quizzes/quiz-1/finalize", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize status = %d", resp.StatusCode)
	}
	var result struct {
		Analysis grading.Analysis `json:"analysis"`
		Attempt  quiz.Attempt     `json:"attempt"`
	}
	decode(t, resp, &result)
	if result.Analysis.Percentage != 75 || !result.Analysis.Passed {
		t.Fatalf("analysis = %+v", result.Analysis)
	}
	if result.Attempt.State != quiz.StateCompleted {
		t.Fatalf("attempt = %+v", result.Attempt)
	}

	// the pointer is cleared: finalizing again has no active attempt
	resp = do(t, "POST", srv.URL+"/quizzes/quiz-1/finalize", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second finalize status = %d, want 404", resp.StatusCode)
	}
}

func TestGetQuizMidAttemptKeepsAttempt(t *testing.T) {
	srv, store, authSvc := newTestServer(t)
	seedQuiz(store)
	token, _ := authSvc.IssueJWT("u1")

	resp := do(t, "POST", srv.URL+"/quizzes/quiz-1/answers", token,
		map[string]string{"question_id": "q1", "option_id": "q1-b"})
	var a quiz.Answer
	decode(t, resp, &a)

	// re-fetching the quiz the session is on must not drop the attempt
	resp = do(t, "GET", srv.URL+"/quizzes/quiz-1", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}

	resp = do(t, "POST", srv.URL+"/quizzes/quiz-1/finalize", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finalize after re-fetch status = %d", resp.StatusCode)
	}
	var result struct {
		Attempt quiz.Attempt `json:"attempt"`
	}
	decode(t, resp, &result)
	if result.Attempt.ID != a.AttemptID || result.Attempt.AttemptNumber != 1 {
		t.Fatalf("finalized %+v, want attempt %s", result.Attempt, a.AttemptID)
	}
}

func TestListAttemptsAndAnswers(t *testing.T) {
	srv, store, authSvc := newTestServer(t)
	seedQuiz(store)
	token, _ := authSvc.IssueJWT("u1")

	// attempt 1: abandoned at one answer
	resp := do(t, "POST", srv.URL+"/quizzes/quiz-1/answers", token,
		map[string]string{"question_id": "q1", "option_id": "q1-a"})
	var first quiz.Answer
	decode(t, resp, &first)

	resp = do(t, "POST", srv.URL+"/session/clear", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}

	// attempt 2: answered and finalized
	resp = do(t, "POST", srv.URL+"/quizzes/quiz-1/answers", token,
		map[string]string{"question_id": "q1", "option_id": "q1-b"})
	resp.Body.Close()
	resp = do(t, "POST", srv.URL+"/quizzes/quiz-1/finalize", token, nil)
	resp.Body.Close()

	resp = do(t, "GET", srv.URL+"/quizzes/quiz-1/attempts", token, nil)
	var list []quiz.AttemptSummary
	decode(t, resp, &list)
	if len(list) != 2 || list[0].AttemptNumber != 1 || list[1].AttemptNumber != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list[0].QuizTitle != "Checkpoint 1" {
		t.Fatalf("title missing: %+v", list[0])
	}

	resp = do(t, "GET", srv.URL+"/attempts/"+first.AttemptID+"/answers", token, nil)
	var positions map[string]int
	decode(t, resp, &positions)
	if positions["q1"] != 0 || len(positions) != 1 {
		t.Fatalf("positions = %v", positions)
	}
}

func TestResumeOverHTTP(t *testing.T) {
	srv, store, authSvc := newTestServer(t)
	seedQuiz(store)
	token, _ := authSvc.IssueJWT("u1")

	resp := do(t, "POST", srv.URL+"/quizzes/quiz-1/attempts", token, nil)
	var a quiz.Attempt
	decode(t, resp, &a)
	if a.AttemptNumber != 1 || a.State != quiz.StateInProgress {
		t.Fatalf("attempt = %+v", a)
	}

	resp = do(t, "POST", srv.URL+"/session/clear", token, nil)
	resp.Body.Close()

	resp = do(t, "POST", srv.URL+"/attempts/"+a.ID+"/resume", token, nil)
	var resumed quiz.Attempt
	decode(t, resp, &resumed)
	if resumed.ID != a.ID {
		t.Fatalf("resumed = %+v", resumed)
	}

	// another user cannot resume it
	otherToken, _ := authSvc.IssueJWT("u2")
	resp = do(t, "POST", srv.URL+"/attempts/"+a.ID+"/resume", otherToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign resume status = %d, want 404", resp.StatusCode)
	}
}
