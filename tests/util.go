package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/core/quiz"
	"github.com/trezcool/somo/storage/database"
)

// SQLiteDriver is the modernc.org/sqlite driver name.
const SQLiteDriver = "sqlite"

// SQLiteDSN returns the DSN of a sqlite file with foreign keys on.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// OpenDB returns a migrated sqlite database, removed at the end of the test.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "somo.db")
	db, err := sql.Open(SQLiteDriver, SQLiteDSN(path))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("OpenDB() failed to migrate: %v", err)
	}
	return sqlx.NewDb(db, SQLiteDriver)
}

// OpenPostgres returns a migrated postgres database from TEST_DATABASE_URL. The test is skipped when unset.
func OpenPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "postgres"); err != nil {
		t.Fatalf("OpenPostgres() failed to migrate: %v", err)
	}
	for _, table := range []string{"attempt_submissions", "attempts", "questions", "progress_records", "steps", "modules"} {
		if _, err = db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("OpenPostgres() failed to reset %s: %v", table, err)
		}
	}
	return db
}

// NewValidator returns a validator with the core and quiz rules registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	quiz.InitValidators(validate, translator)
	return validate, translator
}

// CreateModule saves a module whose steps are titled after their IDs.
func CreateModule(t *testing.T, store course.Store, id, name string, stepIDs ...string) course.Module {
	t.Helper()

	mod := course.Module{ID: id, Name: name}
	for i, sid := range stepIDs {
		mod.Steps = append(mod.Steps, course.Step{
			ID:       sid,
			ModuleID: id,
			Position: i,
			Title:    "Step " + sid,
		})
	}
	mod.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	mod, err := store.SaveModule(context.Background(), mod)
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

// completionAfterCheck records rec right after HasProgress answers,
// as a learner completing a step between a module update's check and its write would.
type completionAfterCheck struct {
	course.Store
	rec course.ProgressRecord
}

func (s *completionAfterCheck) HasProgress(ctx context.Context, moduleID string) (bool, error) {
	found, err := s.Store.HasProgress(ctx, moduleID)
	if err != nil {
		return false, err
	}
	if _, err = s.Store.RecordCompletion(ctx, s.rec); err != nil {
		return false, err
	}
	return found, nil
}

// CheckStepsLockedByProgress asserts that store refuses to change a module's step order once it has progress,
// even when the first completion lands after the service checked, and that no progress record is lost.
func CheckStepsLockedByProgress(t *testing.T, store course.Store) {
	t.Helper()
	ctx := context.Background()

	mod := CreateModule(t, store, "locked", "Locked", "A", "B", "C")
	rec := course.ProgressRecord{
		LearnerID:   "l1",
		ModuleID:    mod.ID,
		StepID:      "A",
		CompletedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	validate, translator := NewValidator()
	svc := course.NewService(&completionAfterCheck{Store: store, rec: rec}, new(Publisher), new(Logger), validate, translator)

	update := mod
	update.Steps = append([]course.Step(nil), mod.Steps[1:]...) // drops A
	if _, err := svc.SaveModule(ctx, update); !core.IsStateError(err) {
		t.Errorf("SaveModule() error = %v, want a state error", err)
	}

	// the store alone refuses too
	update.Steps = []course.Step{mod.Steps[2], mod.Steps[1], mod.Steps[0]}
	if _, err := store.SaveModule(ctx, update); !core.IsStateError(err) {
		t.Errorf("store.SaveModule() error = %v, want a state error", err)
	}

	got, records, err := store.GetModuleWithProgress(ctx, mod.ID, rec.LearnerID)
	if err != nil {
		t.Fatalf("GetModuleWithProgress() error = %v", err)
	}
	if ids := got.StepIDs(); !course.SameOrder(ids, mod.StepIDs()) {
		t.Errorf("steps = %v, want %v", ids, mod.StepIDs())
	}
	if len(records) != 1 || records[0].StepID != rec.StepID || records[0].LearnerID != rec.LearnerID {
		t.Errorf("progress = %+v, want the completion of %s", records, rec.StepID)
	}
}

// CreateQuestion saves a question as is, without validation.
func CreateQuestion(t *testing.T, store quiz.Store, typ quiz.QuestionType, prompt, answer string, options ...string) quiz.Question {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	q := quiz.Question{
		ID:        core.NewID(),
		Prompt:    prompt,
		Type:      typ,
		Options:   options,
		Answer:    answer,
		Points:    1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q, err := store.CreateQuestion(context.Background(), q)
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q
}

// LogEntry is a message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records messages instead of reporting them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("fatal", msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Publisher records published events. Err, when set, is returned by Publish.
type Publisher struct {
	mu     sync.Mutex
	events []core.Event
	Err    error
}

var _ core.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(_ context.Context, evt core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *Publisher) Events() []core.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Event(nil), p.events...)
}

// Types returns the types of the published events, in order.
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, evt := range p.events {
		types = append(types, evt.Type)
	}
	return types
}
