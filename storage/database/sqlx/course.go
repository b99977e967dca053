package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/storage/database"
)

type (
	moduleRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}

	stepRow struct {
		ID          string `db:"id"`
		ModuleID    string `db:"module_id"`
		Position    int    `db:"position"`
		Title       string `db:"title"`
		Description string `db:"description"`
	}

	progressRow struct {
		LearnerID   string    `db:"learner_id"`
		ModuleID    string    `db:"module_id"`
		StepID      string    `db:"step_id"`
		CompletedAt time.Time `db:"completed_at"`
	}
)

func (r moduleRow) toModule(steps []stepRow) course.Module {
	mod := course.Module{
		ID:        r.ID,
		Name:      r.Name,
		Steps:     make([]course.Step, 0, len(steps)),
		CreatedAt: r.CreatedAt.UTC(),
	}
	for _, s := range steps {
		mod.Steps = append(mod.Steps, course.Step{
			ID:          s.ID,
			ModuleID:    s.ModuleID,
			Position:    s.Position,
			Title:       s.Title,
			Description: s.Description,
		})
	}
	return mod
}

func (r progressRow) toRecord() course.ProgressRecord {
	return course.ProgressRecord{
		LearnerID:   r.LearnerID,
		ModuleID:    r.ModuleID,
		StepID:      r.StepID,
		CompletedAt: r.CompletedAt.UTC(),
	}
}

type courseStore struct {
	db *sqlx.DB
}

var _ course.Store = (*courseStore)(nil)

func NewCourseStore(db *sqlx.DB) course.Store {
	return &courseStore{db: db}
}

func getModule(ctx context.Context, q queryer, moduleID string) (course.Module, error) {
	var row moduleRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT id, name, created_at FROM modules WHERE id = ?`), moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return course.Module{}, core.NewNotFoundError("module", moduleID)
		}
		return course.Module{}, core.StoreError(err, "selecting module")
	}

	var steps []stepRow
	err = sqlx.SelectContext(ctx, q, &steps, q.Rebind(`
		SELECT id, module_id, position, title, description
		FROM steps WHERE module_id = ? ORDER BY position`), moduleID)
	if err != nil {
		return course.Module{}, core.StoreError(err, "selecting steps")
	}
	return row.toModule(steps), nil
}

func (s *courseStore) GetModule(ctx context.Context, moduleID string) (course.Module, error) {
	return getModule(ctx, s.db, moduleID)
}

// GetModuleWithProgress loads the module and the learner's completions concurrently.
func (s *courseStore) GetModuleWithProgress(ctx context.Context, moduleID, learnerID string) (course.Module, []course.ProgressRecord, error) {
	var (
		mod  course.Module
		rows []progressRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		mod, err = getModule(gctx, s.db, moduleID)
		return err
	})
	g.Go(func() error {
		err := s.db.SelectContext(gctx, &rows, s.db.Rebind(`
			SELECT learner_id, module_id, step_id, completed_at
			FROM progress_records WHERE module_id = ? AND learner_id = ?
			ORDER BY completed_at, step_id`), moduleID, learnerID)
		return core.StoreError(err, "selecting progress")
	})
	if err := g.Wait(); err != nil {
		return course.Module{}, nil, err
	}

	records := make([]course.ProgressRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return mod, records, nil
}

// RecordCompletion is an atomic insert-if-absent keyed by (learner, module, step).
func (s *courseStore) RecordCompletion(ctx context.Context, rec course.ProgressRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO progress_records (learner_id, module_id, step_id, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (learner_id, module_id, step_id) DO NOTHING`),
		rec.LearnerID, rec.ModuleID, rec.StepID, rec.CompletedAt.UTC(),
	)
	if err != nil {
		return false, core.StoreError(err, "inserting progress record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.StoreError(err, "counting inserted progress records")
	}
	return n > 0, nil
}

// SaveModule upserts the module. Steps are updated in place when their order is unchanged, replaced otherwise.
// Replacing the steps of a module with progress is refused: the progress foreign key restricts the delete.
func (s *courseStore) SaveModule(ctx context.Context, mod course.Module) (course.Module, error) {
	var saved course.Module
	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO modules (id, name, created_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`),
			mod.ID, mod.Name, mod.CreatedAt.UTC(),
		)
		if err != nil {
			return core.StoreError(err, "upserting module")
		}

		var stepIDs []string
		err = tx.SelectContext(ctx, &stepIDs, tx.Rebind(`SELECT id FROM steps WHERE module_id = ? ORDER BY position`), mod.ID)
		if err != nil {
			return core.StoreError(err, "selecting step ids")
		}

		if course.SameOrder(stepIDs, mod.StepIDs()) {
			for _, st := range mod.Steps {
				_, err = tx.ExecContext(ctx, tx.Rebind(`
					UPDATE steps SET title = ?, description = ? WHERE module_id = ? AND id = ?`),
					st.Title, st.Description, mod.ID, st.ID,
				)
				if err != nil {
					return core.StoreError(err, "updating step")
				}
			}
		} else {
			found, err := hasProgress(ctx, tx, mod.ID)
			if err != nil {
				return err
			}
			if found {
				return course.ErrImmutableSteps
			}
			if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM steps WHERE module_id = ?`), mod.ID); err != nil {
				// a completion committed since the check
				if database.IsForeignKeyViolation(err) {
					return course.ErrImmutableSteps
				}
				return core.StoreError(err, "deleting steps")
			}
			for i, st := range mod.Steps {
				_, err = tx.ExecContext(ctx, tx.Rebind(`
					INSERT INTO steps (id, module_id, position, title, description) VALUES (?, ?, ?, ?, ?)`),
					st.ID, mod.ID, i, st.Title, st.Description,
				)
				if err != nil {
					return core.StoreError(err, "inserting step")
				}
			}
		}

		saved, err = getModule(ctx, tx, mod.ID)
		return err
	})
	if err != nil {
		return course.Module{}, err
	}
	return saved, nil
}

func hasProgress(ctx context.Context, q queryer, moduleID string) (bool, error) {
	var found bool
	err := sqlx.GetContext(ctx, q, &found, q.Rebind(`
		SELECT EXISTS (SELECT 1 FROM progress_records WHERE module_id = ?)`), moduleID)
	if err != nil {
		return false, core.StoreError(err, "checking progress")
	}
	return found, nil
}

func (s *courseStore) HasProgress(ctx context.Context, moduleID string) (bool, error) {
	return hasProgress(ctx, s.db, moduleID)
}
