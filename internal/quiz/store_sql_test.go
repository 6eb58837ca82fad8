package quiz_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/openlearn-labs/quizengine/internal/db"
	"github.com/openlearn-labs/quizengine/internal/quiz"
	"github.com/openlearn-labs/quizengine/internal/warn"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quizengine_test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedSQLQuiz(t *testing.T, dbh *sql.DB) {
	t.Helper()
	if _, err := dbh.Exec(`INSERT INTO quizzes (id, course_id, title, passing_score, created_at)
		VALUES ('quiz-1','course-1','Checkpoint 1',70,0)`); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}
	for _, q := range []struct {
		id  string
		ord int
	}{{"q1", 1}, {"q2", 2}} {
		if _, err := dbh.Exec(`INSERT INTO questions (id, quiz_id, kind, text, point_weight, ord)
			VALUES ($1,'quiz-1','choice',$2,1,$3)`, q.id, "question "+q.id, q.ord); err != nil {
			t.Fatalf("seed question: %v", err)
		}
		if _, err := dbh.Exec(`INSERT INTO options (id, question_id, text, is_correct, ord)
			VALUES ($1,$2,'a',0,1), ($3,$2,'b',1,2)`, q.id+"-a", q.id, q.id+"-b"); err != nil {
			t.Fatalf("seed options: %v", err)
		}
	}
}

func TestSQLStoreAttemptNumbering(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	seedSQLQuiz(t, dbh)
	store := quiz.NewSQLStore(dbh, nil)

	for want := 1; want <= 3; want++ {
		a, err := store.NewAttempt(ctx, "quiz-1", "u1")
		if err != nil {
			t.Fatalf("attempt %d: %v", want, err)
		}
		if a.AttemptNumber != want {
			t.Fatalf("attempt number = %d, want %d", a.AttemptNumber, want)
		}
		if a.State != quiz.StateInProgress {
			t.Fatalf("state = %s", a.State)
		}
	}

	// numbering is scoped per (user, quiz)
	b, err := store.NewAttempt(ctx, "quiz-1", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if b.AttemptNumber != 1 {
		t.Fatalf("other user's first attempt = %d, want 1", b.AttemptNumber)
	}

	if _, err := store.NewAttempt(ctx, "missing", "u1"); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}
}

func TestSQLStoreAnswerUpsert(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	seedSQLQuiz(t, dbh)
	store := quiz.NewSQLStore(dbh, nil)

	a, err := store.NewAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.SaveAnswer(ctx, quiz.Answer{
		UserID: "u1", AttemptID: a.ID, QuestionID: "q1", OptionID: "q1-a",
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.SaveAnswer(ctx, quiz.Answer{
		UserID: "u1", AttemptID: a.ID, QuestionID: "q1", OptionID: "q1-b", IsCorrect: true,
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("row identity changed: %s -> %s", first.ID, second.ID)
	}
	if second.OptionID != "q1-b" || !second.IsCorrect {
		t.Fatalf("latest value not retained: %+v", second)
	}

	var count int
	if err := dbh.QueryRow(`SELECT COUNT(*) FROM answers WHERE attempt_id=$1 AND question_id='q1'`, a.ID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("answer rows = %d, want 1", count)
	}
}

func TestSQLStoreGuardedFinalize(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	seedSQLQuiz(t, dbh)
	store := quiz.NewSQLStore(dbh, nil)

	a, err := store.NewAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetLastAnswered(ctx, a.ID, 1); err != nil {
		t.Fatalf("set last answered: %v", err)
	}

	done, err := store.FinalizeAttempt(ctx, a.ID, 2, true)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if done.State != quiz.StateCompleted || done.EarnedScore != 2 {
		t.Fatalf("attempt = %+v", done)
	}
	if done.Passed == nil || !*done.Passed || done.CompletedAt == nil {
		t.Fatalf("completion fields missing: %+v", done)
	}
	if done.LastAnsweredIndex == nil || *done.LastAnsweredIndex != 1 {
		t.Fatalf("last answered index = %v", done.LastAnsweredIndex)
	}

	if _, err := store.FinalizeAttempt(ctx, a.ID, 0, false); !errors.Is(err, quiz.ErrAttemptCompleted) {
		t.Fatalf("double finalize err = %v, want ErrAttemptCompleted", err)
	}
	if err := store.SetLastAnswered(ctx, a.ID, 0); !errors.Is(err, quiz.ErrAttemptCompleted) {
		t.Fatalf("write after completion err = %v, want ErrAttemptCompleted", err)
	}
	if _, err := store.FinalizeAttempt(ctx, "missing", 0, false); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("err = %v, want ErrAttemptNotFound", err)
	}
}

func TestSQLStoreCatalog(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	seedSQLQuiz(t, dbh)
	store := quiz.NewSQLStore(dbh, nil)

	q, err := store.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatal(err)
	}
	if q.Title != "Checkpoint 1" || q.PassingScore != 70 {
		t.Fatalf("quiz = %+v", q)
	}
	if _, err := store.GetQuiz(ctx, "missing"); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}

	bank, err := store.GetQuestions(ctx, "quiz-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bank) != 2 || bank[0].ID != "q1" || bank[1].ID != "q2" {
		t.Fatalf("bank = %+v", bank)
	}
	if len(bank[0].Options) != 2 || bank[0].Options[0].ID != "q1-a" {
		t.Fatalf("options = %+v", bank[0].Options)
	}
	if !bank[0].Options[1].IsCorrect {
		t.Fatal("correctness flag lost on load")
	}

	opt, err := store.GetOption(ctx, "q2-b")
	if err != nil {
		t.Fatal(err)
	}
	if !opt.IsCorrect || opt.QuestionID != "q2" {
		t.Fatalf("option = %+v", opt)
	}
	if _, err := store.GetOption(ctx, "missing"); !errors.Is(err, quiz.ErrOptionNotFound) {
		t.Fatalf("err = %v, want ErrOptionNotFound", err)
	}

	quizzes, err := store.ListQuizzesForCourse(ctx, "course-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(quizzes) != 1 || quizzes[0].ID != "quiz-1" {
		t.Fatalf("quizzes = %+v", quizzes)
	}
}

func TestSQLStoreListAttempts(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	seedSQLQuiz(t, dbh)
	store := quiz.NewSQLStore(dbh, nil)

	a1, err := store.NewAttempt(ctx, "quiz-1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewAttempt(ctx, "quiz-1", "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.NewAttempt(ctx, "quiz-1", "u2"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.FinalizeAttempt(ctx, a1.ID, 1, false); err != nil {
		t.Fatal(err)
	}

	list, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1", UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].AttemptNumber != 1 || list[1].AttemptNumber != 2 {
		t.Fatalf("list = %+v", list)
	}
	if list[0].QuizTitle != "Checkpoint 1" {
		t.Fatalf("title missing: %+v", list[0])
	}

	completed, err := store.ListAttempts(ctx, quiz.AttemptListOpts{
		QuizID: "quiz-1", UserID: "u1", Status: quiz.StateCompleted,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 1 || completed[0].ID != a1.ID {
		t.Fatalf("completed = %+v", completed)
	}
}

func TestWarningsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbh := openTestDB(t)
	repo := warn.NewRepo(dbh)

	repo.Warn(ctx, warn.TypeOptionUnresolved, "q1", "selected option ghost not in bank")
	repo.Warn(ctx, warn.TypeOptionBankMissing, "q2", "options query failed")

	list, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("warnings = %d, want 2", len(list))
	}
	// newest first
	if list[0].Type != warn.TypeOptionBankMissing || list[1].Key != "q1" {
		t.Fatalf("order = %+v", list)
	}
}
