package quiz

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/openlearn-labs/quizengine/internal/grading"
	"github.com/openlearn-labs/quizengine/internal/warn"
)

// Session drives one user's run through quizzes: it holds the loaded question
// view (in session order) and the active-attempt pointer. Both are local to
// the session; attempt numbers and answers always come from the store, so two
// sessions racing on the same attempt resolve as last write wins.
type Session struct {
	store  Store
	grader grading.Grader
	warns  warn.Recorder
	userID string

	mu        sync.Mutex
	quiz      *Quiz
	questions []Question // full bank in session order, correctness included
	attemptID string
}

func NewSession(store Store, grader grading.Grader, warns warn.Recorder, userID string) *Session {
	if warns == nil {
		warns = warn.Nop{}
	}
	return &Session{store: store, grader: grader, warns: warns, userID: userID}
}

// LoadQuiz fetches the quiz and its question bank and makes it the session's
// active quiz. When the quiz asks for randomized questions the bank is
// shuffled once here; options keep their stored order. The returned view
// carries no correctness information.
func (s *Session) LoadQuiz(ctx context.Context, quizID string) (QuizView, error) {
	q, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return QuizView{}, err
	}
	bank, err := s.store.GetQuestions(ctx, quizID)
	if err != nil {
		return QuizView{}, fmt.Errorf("load questions for quiz %s: %w", quizID, err)
	}
	if q.RandomizeQuestions {
		rand.Shuffle(len(bank), func(i, j int) {
			bank[i], bank[j] = bank[j], bank[i]
		})
	}

	s.mu.Lock()
	s.quiz = &q
	s.questions = bank
	s.attemptID = ""
	s.mu.Unlock()

	return QuizView{Quiz: q, Questions: viewOf(bank)}, nil
}

// View returns the student-safe view of quizID. When the session is already
// on that quiz the loaded bank is reused as-is, so a mid-attempt re-fetch
// keeps the session order and the active-attempt pointer; any other quiz goes
// through LoadQuiz.
func (s *Session) View(ctx context.Context, quizID string) (QuizView, error) {
	s.mu.Lock()
	if s.quiz != nil && s.quiz.ID == quizID {
		v := QuizView{Quiz: *s.quiz, Questions: viewOf(s.questions)}
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()
	return s.LoadQuiz(ctx, quizID)
}

func (s *Session) ListQuizzesForCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	return s.store.ListQuizzesForCourse(ctx, courseID)
}

func (s *Session) QuizID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quiz == nil {
		return ""
	}
	return s.quiz.ID
}

func (s *Session) ActiveAttempt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptID
}

// Start opens a new attempt for the loaded quiz and makes it the active
// target. The attempt number is derived from stored attempts at insert time.
func (s *Session) Start(ctx context.Context) (Attempt, error) {
	s.mu.Lock()
	quiz := s.quiz
	s.mu.Unlock()
	if quiz == nil {
		return Attempt{}, ErrNoActiveQuiz
	}
	a, err := s.store.NewAttempt(ctx, quiz.ID, s.userID)
	if err != nil {
		return Attempt{}, err
	}
	s.mu.Lock()
	s.attemptID = a.ID
	s.mu.Unlock()
	return a, nil
}

// Resume makes an existing in_progress attempt the active target without
// creating a new row. The attempt must belong to this user; if it belongs to
// a quiz other than the loaded one, that quiz is loaded first.
func (s *Session) Resume(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != s.userID {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.State != StateInProgress {
		return Attempt{}, ErrAttemptCompleted
	}
	if s.QuizID() != a.QuizID {
		if _, err := s.LoadQuiz(ctx, a.QuizID); err != nil {
			return Attempt{}, err
		}
	}
	s.mu.Lock()
	s.attemptID = a.ID
	s.mu.Unlock()
	return a, nil
}

// Clear drops the active-attempt pointer so the next SubmitAnswer starts a
// fresh attempt. The attempt row itself is untouched.
func (s *Session) Clear() {
	s.mu.Lock()
	s.attemptID = ""
	s.mu.Unlock()
}

// SubmitAnswer records one response for the active attempt, starting one if
// none is active. Repeated submission for the same question overwrites the
// earlier row. Correctness is resolved here against the option bank; a
// selected option that cannot be resolved records as incorrect with a
// structured warning rather than failing the submission.
func (s *Session) SubmitAnswer(ctx context.Context, questionID, optionID, freeText string) (Answer, error) {
	s.mu.Lock()
	quiz := s.quiz
	questions := s.questions
	s.mu.Unlock()
	if quiz == nil {
		return Answer{}, ErrNoActiveQuiz
	}

	idx := -1
	var question Question
	for i, q := range questions {
		if q.ID == questionID {
			idx, question = i, q
			break
		}
	}
	if idx < 0 {
		return Answer{}, ErrQuestionNotFound
	}

	if s.ActiveAttempt() == "" {
		if _, err := s.Start(ctx); err != nil {
			return Answer{}, err
		}
	}
	attemptID := s.ActiveAttempt()

	gq := grading.Q{Kind: question.Kind, Weight: question.PointWeight, CorrectID: correctOptionID(question)}
	response := optionID
	if optionID != "" && !hasOption(question, optionID) {
		// The session bank may have been degraded to an empty option set at
		// load time; try the store directly before giving up.
		opt, err := s.store.GetOption(ctx, optionID)
		if err == nil && opt.QuestionID == questionID {
			if opt.IsCorrect {
				gq.CorrectID = opt.ID
			}
		} else {
			// Degraded path: record the answer as incorrect instead of aborting.
			log.Printf("quiz: option %s not resolvable for question %s", optionID, questionID)
			s.warns.Warn(ctx, warn.TypeOptionUnresolved, questionID,
				fmt.Sprintf("selected option %s not in bank", optionID))
			response = ""
		}
	}
	res := s.grader.Grade(gq, response)

	a, err := s.store.SaveAnswer(ctx, Answer{
		UserID:     s.userID,
		AttemptID:  attemptID,
		QuestionID: questionID,
		OptionID:   optionID,
		FreeText:   freeText,
		IsCorrect:  res.Correct,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("save answer: %w", err)
	}
	if err := s.store.SetLastAnswered(ctx, attemptID, idx); err != nil {
		return Answer{}, fmt.Errorf("update attempt progress: %w", err)
	}
	return a, nil
}

// Finalize grades the active attempt across the full question set: unanswered
// questions count toward the total and earn nothing. The attempt transitions
// to completed exactly once; finalizing an already-completed attempt fails
// with ErrAttemptCompleted. On success the active pointer is cleared.
func (s *Session) Finalize(ctx context.Context) (grading.Analysis, Attempt, error) {
	s.mu.Lock()
	quiz := s.quiz
	questions := s.questions
	attemptID := s.attemptID
	s.mu.Unlock()
	if quiz == nil {
		return grading.Analysis{}, Attempt{}, ErrNoActiveQuiz
	}
	if attemptID == "" {
		return grading.Analysis{}, Attempt{}, ErrAttemptNotFound
	}

	answers, err := s.store.GetAnswers(ctx, attemptID)
	if err != nil {
		return grading.Analysis{}, Attempt{}, fmt.Errorf("load answers: %w", err)
	}
	byQuestion := make(map[string]Answer, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	outcomes := make([]grading.Outcome, 0, len(questions))
	for _, q := range questions {
		a, answered := byQuestion[q.ID]
		outcomes = append(outcomes, grading.Outcome{
			QuestionText: q.Text,
			Weight:       q.PointWeight,
			Answered:     answered,
			Correct:      answered && a.IsCorrect,
		})
	}
	analysis := grading.Summarize(outcomes, quiz.PassingScore)

	attempt, err := s.store.FinalizeAttempt(ctx, attemptID, analysis.EarnedWeight, analysis.Passed)
	if err != nil {
		return grading.Analysis{}, Attempt{}, err
	}

	s.mu.Lock()
	if s.attemptID == attemptID {
		s.attemptID = ""
	}
	s.mu.Unlock()
	return analysis, attempt, nil
}

// ListAttempts returns this user's attempts for the loaded quiz, ascending by
// attempt number, enriched with the quiz title.
func (s *Session) ListAttempts(ctx context.Context) ([]AttemptSummary, error) {
	s.mu.Lock()
	quiz := s.quiz
	s.mu.Unlock()
	if quiz == nil {
		return nil, ErrNoActiveQuiz
	}
	return s.store.ListAttempts(ctx, AttemptListOpts{QuizID: quiz.ID, UserID: s.userID})
}

// AttemptAnswers reconstructs a past attempt as question id -> position of
// the selected option within the question's current option ordering. Answers
// whose option no longer resolves are omitted, with a structured warning.
func (s *Session) AttemptAnswers(ctx context.Context, attemptID string) (map[string]int, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != s.userID {
		return nil, ErrAttemptNotFound
	}
	if s.QuizID() != a.QuizID {
		if _, err := s.LoadQuiz(ctx, a.QuizID); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	questions := s.questions
	s.mu.Unlock()
	answers, err := s.store.GetAnswers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	out := make(map[string]int, len(answers))
	for _, a := range answers {
		if a.OptionID == "" {
			continue // open question, no position to report
		}
		q, ok := byID[a.QuestionID]
		if !ok {
			s.warns.Warn(ctx, warn.TypeOptionUnresolved, a.QuestionID, "answered question no longer in bank")
			continue
		}
		pos := optionPosition(q, a.OptionID)
		if pos < 0 {
			s.warns.Warn(ctx, warn.TypeOptionUnresolved, a.QuestionID,
				fmt.Sprintf("stored option %s no longer in bank", a.OptionID))
			continue
		}
		out[a.QuestionID] = pos
	}
	return out, nil
}

func viewOf(bank []Question) []QuestionView {
	out := make([]QuestionView, 0, len(bank))
	for _, q := range bank {
		v := QuestionView{
			ID:          q.ID,
			Kind:        q.Kind,
			Text:        q.Text,
			PointWeight: q.PointWeight,
			Explanation: q.Explanation,
			Options:     make([]OptionView, 0, len(q.Options)),
		}
		for _, o := range q.Options {
			v.Options = append(v.Options, OptionView{ID: o.ID, Text: o.Text})
		}
		out = append(out, v)
	}
	return out
}

func correctOptionID(q Question) string {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	return ""
}

func hasOption(q Question, optionID string) bool {
	return optionPosition(q, optionID) >= 0
}

func optionPosition(q Question, optionID string) int {
	for i, o := range q.Options {
		if o.ID == optionID {
			return i
		}
	}
	return -1
}
