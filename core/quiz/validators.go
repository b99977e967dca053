package quiz

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
)

var (
	emptyPromptTag  = "emptyprompt"
	emptyPromptText = "empty prompt"

	questionTypeTag  = "questiontype"
	questionTypeText = "unknown question type"

	emptyAnswerTag  = "emptyanswer"
	emptyAnswerText = "empty answer"

	saOptionsTag  = "saoptions"
	saOptionsText = "short answer questions take no options"

	tfOptionsTag  = "tfoptions"
	tfOptionsText = `options must be exactly ["True", "False"]`

	tfAnswerTag  = "tfanswer"
	tfAnswerText = `answer must be "True" or "False"`

	mcNoOptionsTag  = "mcnooptions"
	mcNoOptionsText = "multiple choice questions need options"

	mcOptionsTag  = "mcoptions"
	mcOptionsText = "options must be distinct and not blank"

	mcAnswerTag  = "mcanswer"
	mcAnswerText = "answer must be one of the options"
)

// InitValidators registers the question shape rules and their messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newQuestionStructValidation, NewQuestion{})

	core.RegisterCustomTranslation(validate, translator, emptyPromptTag, emptyPromptText)
	core.RegisterCustomTranslation(validate, translator, questionTypeTag, questionTypeText)
	core.RegisterCustomTranslation(validate, translator, emptyAnswerTag, emptyAnswerText)
	core.RegisterCustomTranslation(validate, translator, saOptionsTag, saOptionsText)
	core.RegisterCustomTranslation(validate, translator, tfOptionsTag, tfOptionsText)
	core.RegisterCustomTranslation(validate, translator, tfAnswerTag, tfAnswerText)
	core.RegisterCustomTranslation(validate, translator, mcNoOptionsTag, mcNoOptionsText)
	core.RegisterCustomTranslation(validate, translator, mcOptionsTag, mcOptionsText)
	core.RegisterCustomTranslation(validate, translator, mcAnswerTag, mcAnswerText)
}

// newQuestionStructValidation reports failures in rule order: prompt, type, answer, then the type's own rules.
func newQuestionStructValidation(sl validator.StructLevel) {
	nq := sl.Current().Interface().(NewQuestion)

	if nq.Prompt == "" {
		sl.ReportError(nq.Prompt, "question", "Prompt", emptyPromptTag, "")
	}
	if !nq.Type.IsValid() {
		sl.ReportError(nq.Type, "questionType", "Type", questionTypeTag, "")
		return
	}
	if nq.Answer == "" {
		sl.ReportError(nq.Answer, "answer", "Answer", emptyAnswerTag, "")
	}

	switch nq.Type {
	case ShortAnswer:
		if len(nq.Options) > 0 {
			sl.ReportError(nq.Options, "options", "Options", saOptionsTag, "")
		}
	case TrueFalse:
		if !equalOptions(nq.Options, trueFalseOptions) {
			sl.ReportError(nq.Options, "options", "Options", tfOptionsTag, "")
		}
		if nq.Answer != "" && !contains(trueFalseOptions, nq.Answer) {
			sl.ReportError(nq.Answer, "answer", "Answer", tfAnswerTag, "")
		}
	case MultipleChoice:
		switch {
		case len(nq.Options) == 0:
			sl.ReportError(nq.Options, "options", "Options", mcNoOptionsTag, "")
		case !distinctLabels(nq.Options):
			sl.ReportError(nq.Options, "options", "Options", mcOptionsTag, "")
		case nq.Answer != "" && !contains(nq.Options, nq.Answer):
			sl.ReportError(nq.Answer, "answer", "Answer", mcAnswerTag, "")
		}
	}
}

func equalOptions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func distinctLabels(options []string) bool {
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if opt == "" || seen[opt] {
			return false
		}
		seen[opt] = true
	}
	return true
}
