package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openlearn-labs/quizengine/internal/quiz"
)

// POST /quizzes/{quizID}/attempts
// Starts a fresh attempt. The quiz is loaded first if the session is on a
// different one.
func StartAttemptHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		if err := ensureQuiz(r, s, chi.URLParam(r, "quizID")); err != nil {
			writeError(w, err)
			return
		}
		a, err := s.Start(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /attempts/{attemptID}/resume
func ResumeAttemptHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		a, err := s.Resume(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /session/clear
// Drops the active-attempt pointer so the next answer starts a new attempt.
func ClearAttemptHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		s.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /quizzes/{quizID}/answers  { "question_id": "...", "option_id": "..." | "free_text": "..." }
// Starts an attempt implicitly when none is active.
func SubmitAnswerHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"question_id"`
			OptionID   string `json:"option_id"`
			FreeText   string `json:"free_text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		if err := ensureQuiz(r, s, chi.URLParam(r, "quizID")); err != nil {
			writeError(w, err)
			return
		}
		a, err := s.SubmitAnswer(r.Context(), req.QuestionID, req.OptionID, req.FreeText)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}

// POST /quizzes/{quizID}/finalize
// Scores the active attempt across the full question set and returns the
// analysis. A completed attempt cannot be finalized again.
func FinalizeAttemptHandler(sessions *quiz.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFor(w, r, sessions)
		if !ok {
			return
		}
		if err := ensureQuiz(r, s, chi.URLParam(r, "quizID")); err != nil {
			writeError(w, err)
			return
		}
		analysis, attempt, err := s.Finalize(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"analysis": analysis, "attempt": attempt})
	}
}

// ensureQuiz loads the path quiz when the session is not already on it.
// Loading resets the active-attempt pointer, so a same-quiz reload is
// deliberately skipped mid-attempt.
func ensureQuiz(r *http.Request, s *quiz.Session, quizID string) error {
	if s.QuizID() == quizID {
		return nil
	}
	_, err := s.LoadQuiz(r.Context(), quizID)
	return err
}
