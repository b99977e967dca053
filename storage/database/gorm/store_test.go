package gormrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/core/quiz"
	"github.com/trezcool/somo/storage/database/gorm"
	"github.com/trezcool/somo/tests"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.OpenDB(t)
	gdb, err := gormrepos.New(sqlite.Dialector{DriverName: testutil.SQLiteDriver, Conn: db.DB}, false)
	require.NoError(t, err)
	return gdb
}

func TestCourseStore(t *testing.T) {
	store := gormrepos.NewCourseStore(openDB(t))
	ctx := context.Background()
	created := testutil.CreateModule(t, store, "m1", "Module 1", "A", "B")

	_, err := store.GetModule(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := course.ProgressRecord{LearnerID: "l1", ModuleID: "m1", StepID: "A", CompletedAt: now}
	ok, err := store.RecordCompletion(ctx, rec)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.RecordCompletion(ctx, rec)
	require.NoError(t, err)
	assert.False(t, ok, "completions are recorded once")

	mod, records, err := store.GetModuleWithProgress(ctx, "m1", "l1")
	require.NoError(t, err)
	assert.Equal(t, created, mod)
	assert.Equal(t, []course.ProgressRecord{rec}, records)

	has, err := store.HasProgress(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, has)

	// same order: updated in place
	mod.Steps[1].Title = "Second"
	saved, err := store.SaveModule(ctx, mod)
	require.NoError(t, err)
	assert.Equal(t, "Second", saved.Steps[1].Title)
	_, records, err = store.GetModuleWithProgress(ctx, "m1", "l1")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// new order: replaced
	other := testutil.CreateModule(t, store, "m2", "Module 2", "X", "Y")
	other.Steps = []course.Step{other.Steps[1], other.Steps[0]}
	saved, err = store.SaveModule(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "X"}, saved.StepIDs())
}

func TestCourseStore_RecordCompletion_concurrent(t *testing.T) {
	store := gormrepos.NewCourseStore(openDB(t))
	testutil.CreateModule(t, store, "m1", "Module 1", "A")
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.RecordCompletion(ctx, course.ProgressRecord{LearnerID: "l1", ModuleID: "m1", StepID: "A", CompletedAt: time.Now().UTC()})
			if err != nil {
				t.Errorf("RecordCompletion() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func TestCourseStore_immutableOrder(t *testing.T) {
	store := gormrepos.NewCourseStore(openDB(t))
	validate, translator := testutil.NewValidator()
	svc := course.NewService(store, new(testutil.Publisher), new(testutil.Logger), validate, translator)
	ctx := context.Background()
	testutil.CreateModule(t, store, "m1", "Module 1", "A", "B")

	_, err := svc.MarkComplete(ctx, core.Learner{ID: "l1"}, "m1", "A")
	require.NoError(t, err)

	_, err = svc.SaveModule(ctx, course.Module{ID: "m1", Name: "Module 1", Steps: []course.Step{{ID: "B", Title: "B"}, {ID: "A", Title: "A"}}})
	assert.True(t, core.IsStateError(err))
}

func TestCourseStore_stepsLockedByProgress(t *testing.T) {
	testutil.CheckStepsLockedByProgress(t, gormrepos.NewCourseStore(openDB(t)))
}

func TestQuizStore(t *testing.T) {
	store := gormrepos.NewQuizStore(openDB(t))
	ctx := context.Background()

	sa := testutil.CreateQuestion(t, store, quiz.ShortAnswer, "6 x 7?", "42")
	time.Sleep(time.Millisecond)
	tf := testutil.CreateQuestion(t, store, quiz.TrueFalse, "Sky is green", "False", "True", "False")

	got, err := store.GetQuestion(ctx, tf.ID)
	require.NoError(t, err)
	assert.Equal(t, tf, got)
	_, err = store.GetQuestion(ctx, "nope")
	assert.True(t, core.IsNotFound(err))

	qs, err := store.QueryQuestions(ctx, quiz.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, tf.ID, qs[0].ID)

	qs, err = store.QueryQuestions(ctx, quiz.QueryFilter{Type: quiz.ShortAnswer})
	require.NoError(t, err)
	require.Len(t, qs, 1)

	qs, err = store.GetQuestions(ctx, []string{sa.ID, tf.ID})
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	sa.Answer = "forty-two"
	updated, err := store.UpdateQuestion(ctx, sa)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", updated.Answer)
	sa.ID = "nope"
	_, err = store.UpdateQuestion(ctx, sa)
	assert.True(t, core.IsNotFound(err))
}

func TestQuizStore_attempts(t *testing.T) {
	store := gormrepos.NewQuizStore(openDB(t))
	ctx := context.Background()
	q := testutil.CreateQuestion(t, store, quiz.ShortAnswer, "6 x 7?", "42")

	a, err := store.CreateAttempt(ctx, quiz.Attempt{
		ID:          core.NewID(),
		LearnerID:   "l1",
		QuestionIDs: []string{q.ID},
		Status:      quiz.NotStarted,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, a.Answer(q.ID, "41", now))
	a, err = store.SaveAttempt(ctx, a, quiz.NotStarted)
	require.NoError(t, err)
	require.NoError(t, a.Answer(q.ID, "42", now))
	require.NoError(t, a.Submit(now))
	a, err = store.SaveAttempt(ctx, a, quiz.InProgress)
	require.NoError(t, err)
	require.Len(t, a.Submissions, 1)
	assert.Equal(t, "42", a.Submissions[0].Answer)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		saved     int
		conflicts int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := a
			if err := cp.Grade(map[string]quiz.Question{q.ID: q}, quiz.NewEngine(), time.Now().UTC()); err != nil {
				t.Errorf("Grade() error = %v", err)
				return
			}
			_, err := store.SaveAttempt(ctx, cp, quiz.Submitted)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				saved++
			case core.IsStateError(err):
				conflicts++
			default:
				t.Errorf("SaveAttempt() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, saved)
	assert.Equal(t, 4, conflicts)

	graded, err := store.GetAttempt(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.Graded, graded.Status)
	assert.Equal(t, 1, graded.TotalPoints)
	require.Len(t, graded.Scores, 1)
	assert.True(t, graded.Scores[0].Correct)
}
