package quiz

import (
	"errors"
	"reflect"
	"testing"

	"github.com/trezcool/somo/core"
)

func TestNewQuestion_Validate(t *testing.T) {
	validate, translator := core.NewValidator()
	InitValidators(validate, translator)

	tests := []struct {
		name        string
		nq          NewQuestion
		wantErr     string
		wantField   string
		wantOptions []string
		wantAnswer  string
	}{
		// prompt & answer
		{name: "empty prompt", nq: NewQuestion{Prompt: "   ", Type: ShortAnswer, Answer: "42"}, wantErr: "empty prompt", wantField: "question"},
		{name: "empty prompt reported first", nq: NewQuestion{Type: ShortAnswer}, wantErr: "empty prompt", wantField: "question"},
		{name: "unknown type", nq: NewQuestion{Prompt: "Q", Type: "ESSAY", Answer: "x"}, wantErr: "unknown question type", wantField: "questionType"},
		{name: "missing type", nq: NewQuestion{Prompt: "Q", Answer: "x"}, wantErr: "unknown question type", wantField: "questionType"},

		// SHORT_ANSWER
		{name: "short answer", nq: NewQuestion{Prompt: " Capital of France? ", Type: ShortAnswer, Answer: " Paris ", Points: 5}, wantAnswer: "Paris"},
		{name: "short answer empty options", nq: NewQuestion{Prompt: "Q", Type: ShortAnswer, Answer: "a", Options: []string{}}, wantAnswer: "a"},
		{name: "short answer blank answer", nq: NewQuestion{Prompt: "Q", Type: ShortAnswer, Answer: "  "}, wantErr: "empty answer", wantField: "answer"},
		{name: "short answer with options", nq: NewQuestion{Prompt: "Q", Type: ShortAnswer, Answer: "a", Options: []string{"a"}}, wantErr: saOptionsText, wantField: "options"},

		// TRUE_FALSE
		{name: "true false default options", nq: NewQuestion{Prompt: "Q", Type: TrueFalse, Answer: "True"}, wantOptions: []string{"True", "False"}, wantAnswer: "True"},
		{name: "true false explicit options", nq: NewQuestion{Prompt: "Q", Type: TrueFalse, Answer: " False ", Options: []string{" True", "False "}}, wantOptions: []string{"True", "False"}, wantAnswer: "False"},
		{name: "true false no answer", nq: NewQuestion{Prompt: "Q", Type: TrueFalse}, wantErr: "empty answer", wantField: "answer"},
		{name: "true false lowercase answer", nq: NewQuestion{Prompt: "Q", Type: TrueFalse, Answer: "true"}, wantErr: tfAnswerText, wantField: "answer"},
		{name: "true false swapped options", nq: NewQuestion{Prompt: "Q", Type: TrueFalse, Answer: "True", Options: []string{"False", "True"}}, wantErr: tfOptionsText, wantField: "options"},
		{name: "true false extra option", nq: NewQuestion{Prompt: "Q", Type: TrueFalse, Answer: "True", Options: []string{"True", "False", "Maybe"}}, wantErr: tfOptionsText, wantField: "options"},

		// MULTIPLE_CHOICE
		{name: "multiple choice", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: " b", Options: []string{"a ", " b", "c"}}, wantOptions: []string{"a", "b", "c"}, wantAnswer: "b"},
		{name: "multiple choice no options", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: "b"}, wantErr: mcNoOptionsText, wantField: "options"},
		{name: "multiple choice blank option", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: "b", Options: []string{"b", " "}}, wantErr: mcOptionsText, wantField: "options"},
		{name: "multiple choice duplicate options", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: "b", Options: []string{"b", "b "}}, wantErr: mcOptionsText, wantField: "options"},
		{name: "multiple choice answer not an option", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: "d", Options: []string{"a", "b"}}, wantErr: mcAnswerText, wantField: "answer"},
		{name: "multiple choice answer case matters", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Answer: "A", Options: []string{"a", "b"}}, wantErr: mcAnswerText, wantField: "answer"},
		{name: "multiple choice empty answer", nq: NewQuestion{Prompt: "Q", Type: MultipleChoice, Options: []string{"a"}}, wantErr: "empty answer", wantField: "answer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nq := tt.nq
			err := nq.Validate(validate, translator)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error = %v", err)
				}
				if nq.Points != 1 {
					t.Errorf("Validate() points = %d, want 1", nq.Points)
				}
				if !reflect.DeepEqual(nq.Options, tt.wantOptions) {
					t.Errorf("Validate() options = %#v, want %#v", nq.Options, tt.wantOptions)
				}
				if nq.Answer != tt.wantAnswer {
					t.Errorf("Validate() answer = %q, want %q", nq.Answer, tt.wantAnswer)
				}
				return
			}

			var vErr *core.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Validate() error = %v, want *core.ValidationError", err)
			}
			if vErr.Error() != tt.wantErr {
				t.Errorf("Validate() error = %q, want %q", vErr.Error(), tt.wantErr)
			}
			if len(vErr.Fields) == 0 || vErr.Fields[0].Field != tt.wantField {
				t.Errorf("Validate() fields = %+v, want first field %q", vErr.Fields, tt.wantField)
			}
		})
	}
}
