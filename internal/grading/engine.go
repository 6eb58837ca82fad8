// Package grading evaluates single responses and summarizes whole attempts.
// Correctness is always resolved here, server-side, against the option bank;
// clients only ever send a selected option identity.
package grading

// Q is the minimal view of a question needed for grading.
type Q struct {
	Kind      string // choice|open
	Weight    int
	CorrectID string // correct option id; "" when the bank is unavailable
}

// Result is the outcome of grading a single response.
type Result struct {
	Correct bool
	Weight  int
}

// Strategy grades one response for one question kind.
type Strategy interface {
	Grade(q Q, response string) Result
}

// Grader routes by question kind to the right Strategy.
type Grader interface {
	Grade(q Q, response string) Result
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(q Q, response string) Result {
	s, ok := g.strategies[q.Kind]
	if !ok {
		// unknown kind: no auto credit
		return Result{Weight: q.Weight}
	}
	return s.Grade(q, response)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"choice": choiceStrategy{},
			"open":   openStrategy{},
		},
	}
}

type choiceStrategy struct{}

func (choiceStrategy) Grade(q Q, response string) Result {
	res := Result{Weight: q.Weight}
	if response != "" && q.CorrectID != "" && response == q.CorrectID {
		res.Correct = true
	}
	return res
}

type openStrategy struct{}

// Open questions have no automated grading; they score zero until a human
// reviews them.
func (openStrategy) Grade(q Q, _ string) Result {
	return Result{Weight: q.Weight}
}
