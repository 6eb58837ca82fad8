package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/openlearn-labs/quizengine/internal/auth/middleware"
	"github.com/openlearn-labs/quizengine/internal/quiz"
)

// GET /quizzes/{quizID}
// Loads the quiz into the caller's session and returns the student-safe view:
// questions in session order (shuffled when the quiz randomizes), options in
// display order, no correctness anywhere. Re-fetching the quiz the session is
// already on reuses the loaded bank and keeps any in-progress attempt.
func GetQuizHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		view, err := s.View(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, view)
	}
}

// GET /courses/{courseID}/quizzes
func ListCourseQuizzesHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		list, err := s.ListQuizzesForCourse(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	}
}

func sessionFor(w http.ResponseWriter, r *http.Request, sessions *quiz.SessionManager) (*quiz.Session, bool) {
	sub := authmw.SubjectFromContext(r.Context())
	if sub == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return sessions.For(sub), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error kinds onto HTTP statuses. Anything not
// recognized is a transport/store failure: logged with context, surfaced as a
// single generic message inviting a retry.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quiz.ErrQuizNotFound),
		errors.Is(err, quiz.ErrQuestionNotFound),
		errors.Is(err, quiz.ErrAttemptNotFound),
		errors.Is(err, quiz.ErrOptionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, quiz.ErrAttemptCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, quiz.ErrNoActiveQuiz):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("http: operation failed: %v", err)
		http.Error(w, "the action could not complete, please try again", http.StatusInternalServerError)
	}
}
