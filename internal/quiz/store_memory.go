package quiz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore backs tests and single-process dev runs. Same semantics as the
// SQL store: insert-time attempt numbering, (attempt, question) upsert,
// state-guarded finalize.
type MemoryStore struct {
	mu        sync.RWMutex
	quizzes   map[string]Quiz
	questions map[string][]Question // quizID -> ordered bank
	attempts  map[string]Attempt
	answers   map[string]map[string]Answer // attemptID -> questionID -> answer
}

func NewInMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes:   map[string]Quiz{},
		questions: map[string][]Question{},
		attempts:  map[string]Attempt{},
		answers:   map[string]map[string]Answer{},
	}
}

// PutQuiz seeds a quiz plus its question bank.
func (m *MemoryStore) PutQuiz(q Quiz, bank []Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
	sorted := append([]Question(nil), bank...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	m.questions[q.ID] = sorted
}

// DeleteOption drops one option from the bank, simulating an option that no
// longer resolves for answers recorded before the deletion.
func (m *MemoryStore) DeleteOption(quizID, optionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bank := m.questions[quizID]
	for qi := range bank {
		kept := make([]Option, 0, len(bank[qi].Options))
		for _, o := range bank[qi].Options {
			if o.ID != optionID {
				kept = append(kept, o)
			}
		}
		bank[qi].Options = kept
	}
}

func (m *MemoryStore) GetQuiz(_ context.Context, quizID string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[quizID]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *MemoryStore) ListQuizzesForCourse(_ context.Context, courseID string) ([]Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Quiz
	for _, q := range m.quizzes {
		if q.CourseID == courseID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GetQuestions(_ context.Context, quizID string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bank := m.questions[quizID]
	out := make([]Question, len(bank))
	copy(out, bank)
	return out, nil
}

func (m *MemoryStore) GetOption(_ context.Context, optionID string) (Option, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, bank := range m.questions {
		for _, q := range bank {
			for _, o := range q.Options {
				if o.ID == optionID {
					return o, nil
				}
			}
		}
	}
	return Option{}, ErrOptionNotFound
}

func (m *MemoryStore) NewAttempt(_ context.Context, quizID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[quizID]; !ok {
		return Attempt{}, ErrQuizNotFound
	}
	next := 1
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.UserID == userID && a.AttemptNumber >= next {
			next = a.AttemptNumber + 1
		}
	}
	a := Attempt{
		ID:            uuid.NewString(),
		UserID:        userID,
		QuizID:        quizID,
		AttemptNumber: next,
		State:         StateInProgress,
		StartedAt:     time.Now().Unix(),
	}
	m.attempts[a.ID] = a
	m.answers[a.ID] = map[string]Answer{}
	return a, nil
}

func (m *MemoryStore) GetAttempt(_ context.Context, attemptID string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, nil
}

func (m *MemoryStore) SetLastAnswered(_ context.Context, attemptID string, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrAttemptNotFound
	}
	if a.State != StateInProgress {
		return ErrAttemptCompleted
	}
	a.LastAnsweredIndex = &index
	m.attempts[attemptID] = a
	return nil
}

func (m *MemoryStore) SaveAnswer(_ context.Context, a Answer) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byQ, ok := m.answers[a.AttemptID]
	if !ok {
		return Answer{}, ErrAttemptNotFound
	}
	if a.AnsweredAt == 0 {
		a.AnsweredAt = time.Now().Unix()
	}
	if prev, ok := byQ[a.QuestionID]; ok {
		a.ID = prev.ID // overwrite in place, row identity survives
	} else if a.ID == "" {
		a.ID = uuid.NewString()
	}
	byQ[a.QuestionID] = a
	return a, nil
}

func (m *MemoryStore) GetAnswers(_ context.Context, attemptID string) ([]Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byQ, ok := m.answers[attemptID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	out := make([]Answer, 0, len(byQ))
	for _, a := range byQ {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnsweredAt < out[j].AnsweredAt })
	return out, nil
}

func (m *MemoryStore) FinalizeAttempt(_ context.Context, attemptID string, earned int, passed bool) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if a.State != StateInProgress {
		return Attempt{}, ErrAttemptCompleted
	}
	now := time.Now().Unix()
	a.State = StateCompleted
	a.EarnedScore = earned
	a.Passed = &passed
	a.CompletedAt = &now
	m.attempts[attemptID] = a
	return a, nil
}

func (m *MemoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]AttemptSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AttemptSummary
	for _, a := range m.attempts {
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.Status != "" && a.State != opts.Status {
			continue
		}
		out = append(out, AttemptSummary{Attempt: a, QuizTitle: m.quizzes[a.QuizID].Title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
