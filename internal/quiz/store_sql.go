package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/openlearn-labs/quizengine/internal/warn"
)

// SQLStore speaks the $N placeholder style, which both supported drivers
// (pgx and modernc sqlite) accept, so no per-dialect branching is needed.
type SQLStore struct {
	db    *sql.DB
	warns warn.Recorder
}

func NewSQLStore(db *sql.DB, w warn.Recorder) *SQLStore {
	if w == nil {
		w = warn.Nop{}
	}
	return &SQLStore{db: db, warns: w}
}

func (s *SQLStore) GetQuiz(ctx context.Context, quizID string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, title, description, time_limit_min, passing_score, randomize_questions, created_at
		 FROM quizzes WHERE id=$1`, quizID)
	var q Quiz
	if err := row.Scan(&q.ID, &q.CourseID, &q.Title, &q.Description, &q.TimeLimitMinutes,
		&q.PassingScore, &q.RandomizeQuestions, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) ListQuizzesForCourse(ctx context.Context, courseID string) ([]Quiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, title, description, time_limit_min, passing_score, randomize_questions, created_at
		 FROM quizzes WHERE course_id=$1 ORDER BY created_at, id`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Quiz
	for rows.Next() {
		var q Quiz
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Title, &q.Description, &q.TimeLimitMinutes,
			&q.PassingScore, &q.RandomizeQuestions, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetQuestions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, kind, text, point_weight, explanation, ord
		 FROM questions WHERE quiz_id=$1 ORDER BY ord, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Kind, &q.Text, &q.PointWeight, &q.Explanation, &q.Order); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range qs {
		opts, err := s.optionsOf(ctx, qs[i].ID)
		if err != nil {
			// Best-effort: a question without a reachable option bank degrades
			// to an empty option set instead of failing the whole load.
			log.Printf("quiz: options load failed for question %s: %v", qs[i].ID, err)
			s.warns.Warn(ctx, warn.TypeOptionBankMissing, qs[i].ID, err.Error())
			qs[i].Options = nil
			continue
		}
		qs[i].Options = opts
	}
	return qs, nil
}

func (s *SQLStore) optionsOf(ctx context.Context, questionID string) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct, ord
		 FROM options WHERE question_id=$1 ORDER BY ord, id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Order); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetOption(ctx context.Context, optionID string) (Option, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question_id, text, is_correct, ord FROM options WHERE id=$1`, optionID)
	var o Option
	if err := row.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect, &o.Order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Option{}, ErrOptionNotFound
		}
		return Option{}, err
	}
	return o, nil
}

func (s *SQLStore) NewAttempt(ctx context.Context, quizID, userID string) (Attempt, error) {
	// ensure quiz exists
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quizzes WHERE id=$1`, quizID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrQuizNotFound
		}
		return Attempt{}, err
	}
	id := uuid.NewString()
	// The attempt number derives from stored attempts at insert time, so it
	// stays strictly increasing per (user, quiz) even across sessions and
	// regardless of whether earlier attempts ever completed.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, quiz_id, attempt_number, state, earned_score, started_at)
		 SELECT $1, $2, $3, COALESCE(MAX(attempt_number),0)+1, 'in_progress', 0, $4
		 FROM attempts WHERE user_id=$2 AND quiz_id=$3`,
		id, userID, quizID, time.Now().Unix())
	if err != nil {
		return Attempt{}, err
	}
	return s.GetAttempt(ctx, id)
}

func (s *SQLStore) GetAttempt(ctx context.Context, attemptID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, quiz_id, attempt_number, state, earned_score, passed, last_answered_index, started_at, completed_at
		 FROM attempts WHERE id=$1`, attemptID)
	var a Attempt
	if err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.AttemptNumber, &a.State, &a.EarnedScore,
		&a.Passed, &a.LastAnsweredIndex, &a.StartedAt, &a.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SetLastAnswered(ctx context.Context, attemptID string, index int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET last_answered_index=$1 WHERE id=$2 AND state='in_progress'`,
		index, attemptID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return s.attemptWriteRefused(ctx, attemptID)
	}
	return nil
}

func (s *SQLStore) SaveAnswer(ctx context.Context, a Answer) (Answer, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AnsweredAt == 0 {
		a.AnsweredAt = time.Now().Unix()
	}
	// Upsert keyed by (attempt, question): repeated submission for the same
	// question within one attempt overwrites in place, last write wins.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answers (id, user_id, attempt_id, question_id, option_id, free_text, is_correct, answered_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		   option_id=EXCLUDED.option_id,
		   free_text=EXCLUDED.free_text,
		   is_correct=EXCLUDED.is_correct,
		   answered_at=EXCLUDED.answered_at`,
		a.ID, a.UserID, a.AttemptID, a.QuestionID, nullable(a.OptionID), nullable(a.FreeText), a.IsCorrect, a.AnsweredAt)
	if err != nil {
		return Answer{}, err
	}
	return s.getAnswer(ctx, a.AttemptID, a.QuestionID)
}

func (s *SQLStore) getAnswer(ctx context.Context, attemptID, questionID string) (Answer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, attempt_id, question_id, option_id, free_text, is_correct, answered_at
		 FROM answers WHERE attempt_id=$1 AND question_id=$2`, attemptID, questionID)
	return scanAnswer(row)
}

func (s *SQLStore) GetAnswers(ctx context.Context, attemptID string) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, attempt_id, question_id, option_id, free_text, is_correct, answered_at
		 FROM answers WHERE attempt_id=$1 ORDER BY answered_at, id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		var a Answer
		var optID, freeText sql.NullString
		if err := rows.Scan(&a.ID, &a.UserID, &a.AttemptID, &a.QuestionID, &optID, &freeText, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		a.OptionID, a.FreeText = optID.String, freeText.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) FinalizeAttempt(ctx context.Context, attemptID string, earned int, passed bool) (Attempt, error) {
	// State-guarded transition: only an in_progress attempt can complete, so
	// a second finalize cannot overwrite the recorded result.
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET state='completed', earned_score=$1, passed=$2, completed_at=$3
		 WHERE id=$4 AND state='in_progress'`,
		earned, passed, time.Now().Unix(), attemptID)
	if err != nil {
		return Attempt{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return Attempt{}, s.attemptWriteRefused(ctx, attemptID)
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptSummary, error) {
	query := `SELECT a.id, a.user_id, a.quiz_id, a.attempt_number, a.state, a.earned_score,
	                 a.passed, a.last_answered_index, a.started_at, a.completed_at, q.title
	          FROM attempts a JOIN quizzes q ON q.id = a.quiz_id`
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.UserID != "" {
		add("a.user_id=$%d", opts.UserID)
	}
	if opts.QuizID != "" {
		add("a.quiz_id=$%d", opts.QuizID)
	}
	if opts.Status != "" {
		add("a.state=$%d", opts.Status)
	}
	for i, c := range where {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY a.attempt_number ASC, a.started_at ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AttemptSummary
	for rows.Next() {
		var a AttemptSummary
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.AttemptNumber, &a.State, &a.EarnedScore,
			&a.Passed, &a.LastAnsweredIndex, &a.StartedAt, &a.CompletedAt, &a.QuizTitle); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// attemptWriteRefused distinguishes "row gone" from "row already completed"
// after a guarded UPDATE matched nothing.
func (s *SQLStore) attemptWriteRefused(ctx context.Context, attemptID string) error {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if a.State == StateCompleted {
		return ErrAttemptCompleted
	}
	return ErrAttemptNotFound
}

func scanAnswer(row *sql.Row) (Answer, error) {
	var a Answer
	var optID, freeText sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.AttemptID, &a.QuestionID, &optID, &freeText, &a.IsCorrect, &a.AnsweredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Answer{}, errors.New("answer not found")
		}
		return Answer{}, err
	}
	a.OptionID, a.FreeText = optID.String, freeText.String
	return a, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
