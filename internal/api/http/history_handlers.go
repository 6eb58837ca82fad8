package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn-labs/quizengine/internal/quiz"
	"github.com/openlearn-labs/quizengine/internal/warn"
)

// GET /quizzes/{quizID}/attempts
// The caller's attempts for this quiz, ascending attempt number, each
// carrying the quiz title.
func ListAttemptsHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		if err := ensureQuiz(r, s, chi.URLParam(r, "quizID")); err != nil {
			writeError(w, err)
			return
		}
		list, err := s.ListAttempts(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	}
}

// GET /attempts/{attemptID}/answers
// Question id -> selected option position within the question's current
// option ordering. Answers whose option no longer resolves are omitted.
func GetAttemptAnswersHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		m, err := s.AttemptAnswers(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, m)
	}
}

// GET /warnings?limit=50
// Recent degraded-path warnings, newest first.
func ListWarningsHandler(repo *warn.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.Recent(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 50))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	}
}
