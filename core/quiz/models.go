package quiz

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
)

type QuestionType string

// Question types
const (
	ShortAnswer    QuestionType = "SHORT_ANSWER"
	TrueFalse      QuestionType = "TRUE_FALSE"
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

var (
	QuestionTypes = []QuestionType{ShortAnswer, TrueFalse, MultipleChoice}

	trueFalseOptions = []string{"True", "False"}
)

func (t QuestionType) IsValid() bool {
	for _, qt := range QuestionTypes {
		if t == qt {
			return true
		}
	}
	return false
}

type (
	Question struct {
		ID        string       `json:"id"`
		Prompt    string       `json:"question"`
		Type      QuestionType `json:"questionType"`
		Options   []string     `json:"options"`
		Answer    string       `json:"answer,omitempty"`
		Points    int          `json:"points"`
		CreatedAt time.Time    `json:"created_at"`
		UpdatedAt time.Time    `json:"updated_at"`
	}

	// NewQuestion is the authoring payload of a Question, used on create and update.
	NewQuestion struct {
		Prompt  string       `json:"question"`
		Type    QuestionType `json:"questionType"`
		Options []string     `json:"options"`
		Answer  string       `json:"answer"`
		Points  int          `json:"points"`
	}

	QueryFilter struct {
		Type      QuestionType
		Orderings []core.DBOrdering
	}
)

// LearnerView hides the answer key.
func (q Question) LearnerView() Question {
	q.Answer = ""
	if q.Options != nil {
		q.Options = append([]string(nil), q.Options...)
	}
	return q
}

// normalize trims every string and applies the per-type defaults.
func (nq *NewQuestion) normalize() {
	nq.Prompt = core.CleanString(nq.Prompt)
	nq.Type = QuestionType(core.CleanString(string(nq.Type)))
	nq.Answer = core.CleanString(nq.Answer)
	nq.Options = core.CleanStrings(nq.Options)
	nq.Points = 1

	if len(nq.Options) == 0 {
		switch nq.Type {
		case TrueFalse:
			nq.Options = append([]string(nil), trueFalseOptions...)
		default:
			nq.Options = nil
		}
	}
}

// Validate normalizes the question then checks it against its type's shape rules.
// Failures are returned as a *core.ValidationError whose message is the first failed rule.
func (nq *NewQuestion) Validate(validate *validator.Validate, translator ut.Translator) error {
	nq.normalize()
	if err := validate.Struct(nq); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}
