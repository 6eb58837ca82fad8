package quiz

import (
	"context"
	"errors"
)

var (
	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrOptionNotFound   = errors.New("option not found")
	ErrAttemptCompleted = errors.New("attempt already completed")
	ErrNoActiveQuiz     = errors.New("no quiz loaded")
)

type AttemptListOpts struct {
	QuizID string
	UserID string
	Status string // optional: in_progress|completed
	Limit  int
	Offset int
}

type Store interface {
	GetQuiz(ctx context.Context, quizID string) (Quiz, error)
	ListQuizzesForCourse(ctx context.Context, courseID string) ([]Quiz, error)

	// GetQuestions returns the quiz's question bank sorted by display order,
	// each question carrying its options sorted by display order. A question
	// whose options cannot be fetched comes back with an empty option set.
	GetQuestions(ctx context.Context, quizID string) ([]Question, error)
	GetOption(ctx context.Context, optionID string) (Option, error)

	// NewAttempt creates an in_progress attempt whose number is computed from
	// the stored attempts of (user, quiz) at insert time: max+1, first = 1.
	NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error)
	GetAttempt(ctx context.Context, attemptID string) (Attempt, error)
	SetLastAnswered(ctx context.Context, attemptID string, index int) error

	// SaveAnswer upserts on (attempt, question): at most one row per pair,
	// last write wins. The original row id survives an overwrite.
	SaveAnswer(ctx context.Context, a Answer) (Answer, error)
	GetAnswers(ctx context.Context, attemptID string) ([]Answer, error)

	// FinalizeAttempt is state-guarded: it only transitions in_progress to
	// completed. A second finalize fails with ErrAttemptCompleted.
	FinalizeAttempt(ctx context.Context, attemptID string, earned int, passed bool) (Attempt, error)

	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptSummary, error)
}
