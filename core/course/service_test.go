package course_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/storage/database/inmem"
	"github.com/trezcool/somo/tests"
)

type fixture struct {
	svc    *course.Service
	store  course.Store
	events *testutil.Publisher
	logger *testutil.Logger
}

func setup(t *testing.T) fixture {
	t.Helper()
	store := inmemdb.NewCourseStore(inmemdb.Open())
	events := new(testutil.Publisher)
	logger := new(testutil.Logger)
	validate, translator := testutil.NewValidator()
	return fixture{
		svc:    course.NewService(store, events, logger, validate, translator),
		store:  store,
		events: events,
		logger: logger,
	}
}

func TestService_MarkComplete_endToEnd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lrn := core.Learner{ID: "learner-1", Email: "l1@test.cd"}
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A", "B", "C")

	state, err := f.svc.GetModule(ctx, "m1", lrn.ID)
	if err != nil {
		t.Fatalf("GetModule() error = %v", err)
	}
	if state.CurrentStep != 0 {
		t.Errorf("initial current step = %d, want 0", state.CurrentStep)
	}

	steps := []struct {
		step string
		want int
	}{
		{step: "A", want: 1},
		{step: "C", want: 1}, // B is still the first incomplete step
		{step: "B", want: 3},
	}
	for _, tt := range steps {
		got, err := f.svc.MarkComplete(ctx, lrn, "m1", tt.step)
		if err != nil {
			t.Fatalf("MarkComplete(%s) error = %v", tt.step, err)
		}
		if got != tt.want {
			t.Errorf("MarkComplete(%s) = %d, want %d", tt.step, got, tt.want)
		}
	}

	state, err = f.svc.GetModule(ctx, "m1", lrn.ID)
	if err != nil {
		t.Fatalf("GetModule() error = %v", err)
	}
	if !state.Finished || len(state.Progress) != 3 {
		t.Errorf("GetModule() finished = %v, progress = %d; want true, 3", state.Finished, len(state.Progress))
	}

	wantTypes := []string{
		core.EventStepCompleted,
		core.EventStepCompleted,
		core.EventStepCompleted,
		core.EventModuleFinished,
	}
	gotTypes := f.events.Types()
	if len(gotTypes) != len(wantTypes) {
		t.Fatalf("published %v, want %v", gotTypes, wantTypes)
	}
	for i := range wantTypes {
		if gotTypes[i] != wantTypes[i] {
			t.Errorf("event[%d] = %s, want %s", i, gotTypes[i], wantTypes[i])
		}
	}
	if evt := f.events.Events()[3]; evt.Email != lrn.Email || evt.Payload["module_name"] != "Module 1" {
		t.Errorf("module finished event = %+v", evt)
	}
}

func TestService_MarkComplete_idempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lrn := core.Learner{ID: "learner-1"}
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A", "B")

	first, err := f.svc.MarkComplete(ctx, lrn, "m1", "A")
	if err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	second, err := f.svc.MarkComplete(ctx, lrn, "m1", "A")
	if err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	if first != second {
		t.Errorf("MarkComplete() twice = %d then %d, want equal", first, second)
	}

	state, _ := f.svc.GetModule(ctx, "m1", lrn.ID)
	if len(state.Progress) != 1 {
		t.Errorf("progress records = %d, want 1", len(state.Progress))
	}
	if n := len(f.events.Events()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestService_MarkComplete_commutative(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A", "B", "C")

	orders := map[string][]string{
		"in-order":  {"A", "B", "C"},
		"reversed":  {"C", "B", "A"},
		"scrambled": {"B", "C", "A"},
	}
	for learnerID, order := range orders {
		lrn := core.Learner{ID: learnerID}
		var idx int
		for _, step := range order {
			var err error
			if idx, err = f.svc.MarkComplete(ctx, lrn, "m1", step); err != nil {
				t.Fatalf("MarkComplete(%s, %s) error = %v", learnerID, step, err)
			}
		}
		if idx != 3 {
			t.Errorf("%s: final current step = %d, want 3", learnerID, idx)
		}
		state, _ := f.svc.GetModule(ctx, "m1", learnerID)
		if got := course.CompletedSet(state.Progress); len(got) != 3 || !got["A"] || !got["B"] || !got["C"] {
			t.Errorf("%s: completion set = %v", learnerID, got)
		}
	}
}

func TestService_MarkComplete_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A")
	testutil.CreateModule(t, f.store, "m2", "Module 2", "X")

	tests := []struct {
		name      string
		learner   string
		module    string
		step      string
		wantCheck func(error) bool
	}{
		{name: "unknown module", learner: "l", module: "nope", step: "A", wantCheck: core.IsNotFound},
		{name: "step of another module", learner: "l", module: "m1", step: "X", wantCheck: core.IsNotFound},
		{name: "unknown step", learner: "l", module: "m1", step: "Z", wantCheck: core.IsNotFound},
		{name: "blank module", learner: "l", module: "  ", step: "A", wantCheck: isValidationError},
		{name: "blank step", learner: "l", module: "m1", step: "", wantCheck: isValidationError},
		{name: "no learner", learner: "", module: "m1", step: "A", wantCheck: isValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.MarkComplete(ctx, core.Learner{ID: tt.learner}, tt.module, tt.step)
			if !tt.wantCheck(err) {
				t.Errorf("MarkComplete() error = %v", err)
			}
		})
	}

	if has, _ := f.store.HasProgress(ctx, "m1"); has {
		t.Error("failed completions must not record progress")
	}
}

func TestService_MarkComplete_publishFailure(t *testing.T) {
	f := setup(t)
	f.events.Err = errors.New("bus down")
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A")

	idx, err := f.svc.MarkComplete(context.Background(), core.Learner{ID: "l"}, "m1", "A")
	if err != nil {
		t.Fatalf("MarkComplete() error = %v, publish failures must not fail the call", err)
	}
	if idx != 1 {
		t.Errorf("MarkComplete() = %d, want 1", idx)
	}
	var warned int
	for _, e := range f.logger.Entries() {
		if e.Level == "warn" {
			warned++
		}
	}
	if warned != 2 { // step completed + module finished
		t.Errorf("warnings logged = %d, want 2", warned)
	}
}

func TestService_MarkComplete_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	lrn := core.Learner{ID: "l"}
	testutil.CreateModule(t, f.store, "m1", "Module 1", "A", "B")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.MarkComplete(ctx, lrn, "m1", "A"); err != nil {
				t.Errorf("MarkComplete() error = %v", err)
			}
		}()
	}
	wg.Wait()

	state, _ := f.svc.GetModule(ctx, "m1", lrn.ID)
	if len(state.Progress) != 1 {
		t.Errorf("progress records = %d, want 1", len(state.Progress))
	}
	if n := len(f.events.Types()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestService_SaveModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	step := func(id, title string) course.Step { return course.Step{ID: id, Title: title} }

	tests := []struct {
		name      string
		mod       course.Module
		wantField string
	}{
		{name: "blank name", mod: course.Module{ID: "m", Name: " ", Steps: []course.Step{step("a", "A")}}, wantField: "name"},
		{name: "no steps", mod: course.Module{ID: "m", Name: "M"}, wantField: "courses"},
		{name: "blank title", mod: course.Module{ID: "m", Name: "M", Steps: []course.Step{step("a", "  ")}}, wantField: "title"},
		{name: "duplicate step", mod: course.Module{ID: "m", Name: "M", Steps: []course.Step{step("a", "A"), step("a", "B")}}, wantField: "courses"},
		{name: "bad id", mod: course.Module{ID: "m 1", Name: "M", Steps: []course.Step{step("a", "A")}}, wantField: "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SaveModule(ctx, tt.mod)
			var vErr *core.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("SaveModule() error = %v, want ValidationError", err)
			}
			if vErr.Fields[0].Field != tt.wantField {
				t.Errorf("SaveModule() field = %s, want %s", vErr.Fields[0].Field, tt.wantField)
			}
		})
	}

	mod, err := f.svc.SaveModule(ctx, course.Module{ID: " m ", Name: " M ", Steps: []course.Step{step("a", "A"), step("b", "B")}})
	if err != nil {
		t.Fatalf("SaveModule() error = %v", err)
	}
	if mod.ID != "m" || mod.Name != "M" || mod.Steps[1].Position != 1 || mod.Steps[1].ModuleID != "m" {
		t.Errorf("SaveModule() did not normalize: %+v", mod)
	}

	// reordering is allowed until someone has progress
	if _, err = f.svc.SaveModule(ctx, course.Module{ID: "m", Name: "M", Steps: []course.Step{step("b", "B"), step("a", "A")}}); err != nil {
		t.Fatalf("SaveModule() reorder without progress error = %v", err)
	}
	if _, err = f.svc.MarkComplete(ctx, core.Learner{ID: "l"}, "m", "b"); err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}

	_, err = f.svc.SaveModule(ctx, course.Module{ID: "m", Name: "M", Steps: []course.Step{step("a", "A"), step("b", "B")}})
	if !core.IsStateError(err) {
		t.Errorf("SaveModule() reorder with progress error = %v, want StateError", err)
	}
	_, err = f.svc.SaveModule(ctx, course.Module{ID: "m", Name: "M", Steps: []course.Step{step("b", "B"), step("a", "A"), step("c", "C")}})
	if !core.IsStateError(err) {
		t.Errorf("SaveModule() adding a step with progress error = %v, want StateError", err)
	}

	updated, err := f.svc.SaveModule(ctx, course.Module{ID: "m", Name: "Renamed", Steps: []course.Step{step("b", "Bee"), step("a", "A")}})
	if err != nil {
		t.Fatalf("SaveModule() retitle error = %v", err)
	}
	if updated.Steps[0].Title != "Bee" || !updated.CreatedAt.Equal(mod.CreatedAt) {
		t.Errorf("SaveModule() retitle = %+v", updated)
	}
}

func TestService_SaveModule_completionDuringUpdate(t *testing.T) {
	testutil.CheckStepsLockedByProgress(t, setup(t).store)
}

func isValidationError(err error) bool {
	var vErr *core.ValidationError
	return errors.As(err, &vErr)
}
