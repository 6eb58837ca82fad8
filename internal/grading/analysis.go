package grading

import "math"

type Band string

const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs_improvement"
	BandCritical         Band = "critical"
)

// BandFor maps a rounded percentage to its performance band.
func BandFor(percentage int) Band {
	switch {
	case percentage >= 90:
		return BandExcellent
	case percentage >= 75:
		return BandGood
	case percentage >= 60:
		return BandNeedsImprovement
	default:
		return BandCritical
	}
}

// Outcome is one question's graded result within an attempt. Unanswered
// questions appear with Answered=false and count as incorrect.
type Outcome struct {
	QuestionText string
	Weight       int
	Answered     bool
	Correct      bool
}

// Analysis is the compact performance report returned by finalize.
type Analysis struct {
	EarnedWeight int      `json:"earned_weight"`
	TotalWeight  int      `json:"total_weight"`
	Percentage   int      `json:"percentage"`
	Passed       bool     `json:"passed"`
	Band         Band     `json:"band"`
	Strengths    []string `json:"strengths,omitempty"`
	Weaknesses   []string `json:"weaknesses,omitempty"`
}

const maxHighlights = 3

// Summarize folds per-question outcomes into the final analysis. Every
// question contributes its weight to the total; only correct ones earn.
// Strengths and weaknesses list the first few question texts in iteration
// order, not ranked by weight.
func Summarize(outcomes []Outcome, passingScore int) Analysis {
	var a Analysis
	for _, o := range outcomes {
		a.TotalWeight += o.Weight
		if o.Correct {
			a.EarnedWeight += o.Weight
			if len(a.Strengths) < maxHighlights {
				a.Strengths = append(a.Strengths, o.QuestionText)
			}
		} else if len(a.Weaknesses) < maxHighlights {
			a.Weaknesses = append(a.Weaknesses, o.QuestionText)
		}
	}
	if a.TotalWeight > 0 {
		a.Percentage = int(math.Round(100 * float64(a.EarnedWeight) / float64(a.TotalWeight)))
	}
	a.Passed = a.Percentage >= passingScore
	a.Band = BandFor(a.Percentage)
	return a
}
