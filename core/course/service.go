package course

import (
	"context"
	"expvar"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/somo/core"
)

var (
	nowFunc = time.Now // mockable
	tracer  = otel.Tracer("github.com/trezcool/somo/core/course")

	completionsRecorded = expvar.NewInt("completions_recorded")

	// ErrImmutableSteps is returned by SaveModule when the step order of a module with progress would change.
	ErrImmutableSteps = core.NewStateError("steps cannot be reordered once learners have progress")
)

type (
	// Store persists modules and learners' completions.
	Store interface {
		// GetModule returns a core.NotFoundError when the module does not exist.
		GetModule(ctx context.Context, moduleID string) (Module, error)
		// GetModuleWithProgress returns the module and the learner's completions, oldest first.
		GetModuleWithProgress(ctx context.Context, moduleID, learnerID string) (Module, []ProgressRecord, error)
		// RecordCompletion inserts rec if absent. created is false when it already existed.
		RecordCompletion(ctx context.Context, rec ProgressRecord) (created bool, err error)
		// SaveModule upserts mod. It returns ErrImmutableSteps when the ordered step identities would change
		// while the module has progress, checked atomically with the write. Progress records are never deleted.
		SaveModule(ctx context.Context, mod Module) (Module, error)
		HasProgress(ctx context.Context, moduleID string) (bool, error)
	}

	Service struct {
		store      Store
		events     core.EventPublisher
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(
	store Store,
	events core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		store:      store,
		events:     events,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

func requiredField(field string) error {
	return core.NewValidationError(
		errors.New(field+" is required"),
		core.FieldError{Field: field, Error: "this field is required"},
	)
}

// GetModule returns the module and the learner's progress through it.
func (svc *Service) GetModule(ctx context.Context, moduleID, learnerID string) (ModuleState, error) {
	ctx, span := tracer.Start(ctx, "course.GetModule", trace.WithAttributes(attribute.String("module.id", moduleID)))
	defer span.End()

	moduleID = core.CleanString(moduleID)
	if moduleID == "" {
		return ModuleState{}, requiredField("course_module_id")
	}
	mod, records, err := svc.store.GetModuleWithProgress(ctx, moduleID, learnerID)
	if err != nil {
		return ModuleState{}, errors.Wrap(err, "getting module with progress")
	}
	return NewState(mod, records), nil
}

// MarkComplete records that lrn completed the step and returns the refreshed current-step index.
// Completing an already completed step is a no-op.
// A step that does not belong to the module is a core.NotFoundError, like an unknown module.
func (svc *Service) MarkComplete(ctx context.Context, lrn core.Learner, moduleID, stepID string) (int, error) {
	state, err := svc.Complete(ctx, lrn, moduleID, stepID)
	if err != nil {
		return 0, err
	}
	return state.CurrentStep, nil
}

// Complete is MarkComplete returning the whole refreshed ModuleState.
// It fails with a core.NotFoundError when the module is unknown or the step is not one of its steps.
func (svc *Service) Complete(ctx context.Context, lrn core.Learner, moduleID, stepID string) (ModuleState, error) {
	ctx, span := tracer.Start(ctx, "course.MarkComplete", trace.WithAttributes(
		attribute.String("module.id", moduleID),
		attribute.String("step.id", stepID),
	))
	defer span.End()

	moduleID = core.CleanString(moduleID)
	stepID = core.CleanString(stepID)
	switch {
	case lrn.ID == "":
		return ModuleState{}, requiredField("user_id")
	case moduleID == "":
		return ModuleState{}, requiredField("course_module_id")
	case stepID == "":
		return ModuleState{}, requiredField("course_id")
	}

	mod, err := svc.store.GetModule(ctx, moduleID)
	if err != nil {
		return ModuleState{}, errors.Wrap(err, "getting module")
	}
	if !mod.HasStep(stepID) {
		return ModuleState{}, core.NewNotFoundError("step", stepID)
	}

	created, err := svc.store.RecordCompletion(ctx, ProgressRecord{
		LearnerID:   lrn.ID,
		ModuleID:    moduleID,
		StepID:      stepID,
		CompletedAt: nowFunc().UTC(),
	})
	if err != nil {
		return ModuleState{}, errors.Wrap(err, "recording completion")
	}

	mod, records, err := svc.store.GetModuleWithProgress(ctx, moduleID, lrn.ID)
	if err != nil {
		return ModuleState{}, errors.Wrap(err, "refreshing module progress")
	}
	state := NewState(mod, records)

	if created {
		completionsRecorded.Add(1)
		svc.publish(ctx, core.NewEvent(core.EventStepCompleted, lrn, map[string]interface{}{
			"module_id":    moduleID,
			"step_id":      stepID,
			"current_step": state.CurrentStep,
		}))
		if state.Finished {
			svc.publish(ctx, core.NewEvent(core.EventModuleFinished, lrn, map[string]interface{}{
				"module_id":   moduleID,
				"module_name": mod.Name,
			}))
		}
	}
	return state, nil
}

// SaveModule creates or updates a module.
// Once a learner has progress, the ordered step identities cannot change anymore.
func (svc *Service) SaveModule(ctx context.Context, mod Module) (Module, error) {
	ctx, span := tracer.Start(ctx, "course.SaveModule")
	defer span.End()

	if err := mod.Validate(svc.validate, svc.translator); err != nil {
		return Module{}, err
	}

	existing, err := svc.store.GetModule(ctx, mod.ID)
	switch {
	case err == nil:
		// early refusal; the store checks again under its write lock
		if !SameOrder(existing.StepIDs(), mod.StepIDs()) {
			hasProgress, err := svc.store.HasProgress(ctx, mod.ID)
			if err != nil {
				return Module{}, errors.Wrap(err, "checking module progress")
			}
			if hasProgress {
				return Module{}, ErrImmutableSteps
			}
		}
		mod.CreatedAt = existing.CreatedAt
	case core.IsNotFound(err):
		mod.CreatedAt = nowFunc().UTC()
	default:
		return Module{}, errors.Wrap(err, "getting module")
	}

	saved, err := svc.store.SaveModule(ctx, mod)
	if err != nil {
		return Module{}, errors.Wrap(err, "saving module")
	}
	return saved, nil
}

func (svc *Service) publish(ctx context.Context, evt core.Event) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(ctx, evt); err != nil {
		svc.logger.Warn("publishing "+evt.Type, errors.Wrap(err, "publishing event"), core.Learner{ID: evt.LearnerID})
	}
}

// SameOrder reports whether both step identity lists are equal, position by position.
func SameOrder(a, b []string) bool {
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
