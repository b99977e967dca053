package quiz

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/somo/core"
)

type (
	// Grader decides whether a submitted answer is correct for a question of its type.
	Grader interface {
		Correct(q Question, answer string) bool
	}

	// GraderFunc adapts a function to the Grader interface.
	GraderFunc func(q Question, answer string) bool

	Score struct {
		SubmissionID string `json:"submission_id,omitempty"`
		QuestionID   string `json:"question_id"`
		Correct      bool   `json:"correct"`
		Points       int    `json:"points"`
	}

	// Engine grades questions with a Grader per QuestionType.
	Engine struct {
		mu      sync.RWMutex
		graders map[QuestionType]Grader
	}
)

func (f GraderFunc) Correct(q Question, answer string) bool { return f(q, answer) }

// Default policies. There is no partial credit.
var (
	// ShortAnswerGrader ignores case and surrounding whitespace.
	ShortAnswerGrader = GraderFunc(func(q Question, answer string) bool {
		return strings.EqualFold(strings.TrimSpace(q.Answer), strings.TrimSpace(answer))
	})

	// TrueFalseGrader is case-sensitive on the "True"/"False" tokens.
	TrueFalseGrader = GraderFunc(exactMatch)

	// MultipleChoiceGrader matches the selected option label exactly.
	MultipleChoiceGrader = GraderFunc(exactMatch)
)

func exactMatch(q Question, answer string) bool {
	return strings.TrimSpace(q.Answer) == strings.TrimSpace(answer)
}

// NewEngine returns an Engine with the default policies registered.
func NewEngine() *Engine {
	return &Engine{
		graders: map[QuestionType]Grader{
			ShortAnswer:    ShortAnswerGrader,
			TrueFalse:      TrueFalseGrader,
			MultipleChoice: MultipleChoiceGrader,
		},
	}
}

// Register sets the Grader of typ, replacing any previous one.
func (e *Engine) Register(typ QuestionType, g Grader) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.graders[typ] = g
}

func (e *Engine) grader(typ QuestionType) (Grader, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.graders[typ]
	return g, ok
}

// Grade scores sub against q. It is pure: the Score is not persisted.
func (e *Engine) Grade(q Question, sub Submission) (Score, error) {
	g, ok := e.grader(q.Type)
	if !ok {
		return Score{}, core.NewValidationError(
			errors.Errorf("no grader for question type %q", q.Type),
			core.FieldError{Field: "questionType", Error: questionTypeText},
		)
	}
	score := Score{
		SubmissionID: sub.ID,
		QuestionID:   q.ID,
	}
	if g.Correct(q, sub.Answer) {
		score.Correct = true
		score.Points = q.Points
	}
	return score, nil
}
