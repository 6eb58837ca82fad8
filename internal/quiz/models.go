package quiz

// Attempt lifecycle states. An attempt is created in_progress and reaches
// completed only through Finalize; there is no expiry transition.
const (
	StateInProgress = "in_progress"
	StateCompleted  = "completed"
)

// Question kinds. Choice questions are auto-graded against the option bank;
// open questions record free text and stay ungraded.
const (
	KindChoice = "choice"
	KindOpen   = "open"
)

type Quiz struct {
	ID                 string `json:"id"`
	CourseID           string `json:"course_id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	TimeLimitMinutes   int    `json:"time_limit_minutes"`
	PassingScore       int    `json:"passing_score"` // percentage, 0-100
	RandomizeQuestions bool   `json:"randomize_questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"is_correct"`
	Order      int    `json:"order"`
}

type Question struct {
	ID          string   `json:"id"`
	QuizID      string   `json:"quiz_id"`
	Kind        string   `json:"kind"` // choice|open
	Text        string   `json:"text"`
	PointWeight int      `json:"point_weight"` // >= 1
	Explanation string   `json:"explanation,omitempty"`
	Order       int      `json:"order"`
	Options     []Option `json:"options,omitempty"`
}

type Attempt struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	QuizID            string `json:"quiz_id"`
	AttemptNumber     int    `json:"attempt_number"`
	State             string `json:"state"` // in_progress|completed
	EarnedScore       int    `json:"earned_score"`
	Passed            *bool  `json:"passed,omitempty"`
	LastAnsweredIndex *int   `json:"last_answered_index,omitempty"`
	StartedAt         int64  `json:"started_at"`
	CompletedAt       *int64 `json:"completed_at,omitempty"`
}

// AttemptSummary is an Attempt enriched with the quiz title for display.
type AttemptSummary struct {
	Attempt
	QuizTitle string `json:"quiz_title"`
}

type Answer struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AttemptID  string `json:"attempt_id"`
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id,omitempty"`
	FreeText   string `json:"free_text,omitempty"`
	IsCorrect  bool   `json:"is_correct"`
	AnsweredAt int64  `json:"answered_at"`
}

// OptionView and QuestionView are the client-facing shapes: correctness never
// leaves the server, only texts and identities in display order.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type QuestionView struct {
	ID          string       `json:"id"`
	Kind        string       `json:"kind"`
	Text        string       `json:"text"`
	PointWeight int          `json:"point_weight"`
	Explanation string       `json:"explanation,omitempty"`
	Options     []OptionView `json:"options"`
}

// QuizView pairs the quiz record with its question list in session order
// (shuffled once at load time when the quiz asks for it).
type QuizView struct {
	Quiz      Quiz           `json:"quiz"`
	Questions []QuestionView `json:"questions"`
}
