package course

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/somo/core"
)

type (
	// Module is an ordered curriculum unit composed of Steps.
	Module struct {
		ID        string    `json:"id" yaml:"id" validate:"required,ident,max=64"`
		Name      string    `json:"name" yaml:"name" validate:"notblank,max=255"`
		Steps     []Step    `json:"courses" yaml:"steps" validate:"required,min=1,unique=ID,dive"`
		CreatedAt time.Time `json:"created_at" yaml:"-"`
	}

	// Step is one unit of content within a Module, at a fixed position.
	Step struct {
		ID          string `json:"id" yaml:"id" validate:"required,ident,max=64"`
		ModuleID    string `json:"course_module_id" yaml:"-"`
		Position    int    `json:"position" yaml:"-"`
		Title       string `json:"title" yaml:"title" validate:"notblank,max=255"`
		Description string `json:"description" yaml:"description"`
	}

	// ProgressRecord is the durable fact that a learner completed a Step.
	ProgressRecord struct {
		LearnerID   string    `json:"user_id"`
		ModuleID    string    `json:"course_module_id"`
		StepID      string    `json:"course_id"`
		CompletedAt time.Time `json:"completed_at"`
	}

	// ModuleState is a Module as seen by one learner.
	ModuleState struct {
		Module
		Progress    []ProgressRecord `json:"progress"`
		CurrentStep int              `json:"current_step"`
		Finished    bool             `json:"finished"`
	}
)

// StepIDs returns the ordered step identities.
func (m Module) StepIDs() []string {
	ids := make([]string, len(m.Steps))
	for i, s := range m.Steps {
		ids[i] = s.ID
	}
	return ids
}

func (m Module) HasStep(stepID string) bool {
	for _, s := range m.Steps {
		if s.ID == stepID {
			return true
		}
	}
	return false
}

// normalize trims the module's strings and numbers its steps by declared order.
func (m *Module) normalize() {
	m.ID = core.CleanString(m.ID)
	m.Name = core.CleanString(m.Name)
	for i := range m.Steps {
		s := &m.Steps[i]
		s.ID = core.CleanString(s.ID)
		s.ModuleID = m.ID
		s.Position = i
		s.Title = core.CleanString(s.Title)
		s.Description = core.CleanString(s.Description)
	}
}

// Validate normalizes then validates the module.
func (m *Module) Validate(validate *validator.Validate, translator ut.Translator) error {
	m.normalize()
	if err := validate.Struct(m); err != nil {
		return core.TranslateValidationErrors(err, translator)
	}
	return nil
}

// CompletedSet returns the step identities present in records.
func CompletedSet(records []ProgressRecord) map[string]bool {
	completed := make(map[string]bool, len(records))
	for _, r := range records {
		completed[r.StepID] = true
	}
	return completed
}

// NewState derives the learner's view of mod from its progress records.
func NewState(mod Module, records []ProgressRecord) ModuleState {
	if records == nil {
		records = []ProgressRecord{}
	}
	if mod.Steps == nil {
		mod.Steps = []Step{}
	}
	idx := CurrentStepIndex(mod.Steps, CompletedSet(records))
	return ModuleState{
		Module:      mod,
		Progress:    records,
		CurrentStep: idx,
		Finished:    IsFinished(mod.Steps, idx),
	}
}
