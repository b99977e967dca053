package gormrepos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/storage/database"
)

type (
	moduleModel struct {
		ID        string    `gorm:"primaryKey"`
		Name      string
		CreatedAt time.Time `gorm:"autoCreateTime:false"`
	}

	stepModel struct {
		ModuleID    string `gorm:"primaryKey"`
		ID          string `gorm:"primaryKey"`
		Position    int
		Title       string
		Description string
	}

	progressModel struct {
		LearnerID   string `gorm:"primaryKey"`
		ModuleID    string `gorm:"primaryKey"`
		StepID      string `gorm:"primaryKey"`
		CompletedAt time.Time
	}
)

func (moduleModel) TableName() string   { return "modules" }
func (stepModel) TableName() string     { return "steps" }
func (progressModel) TableName() string { return "progress_records" }

type courseStore struct {
	db *gorm.DB
}

var _ course.Store = (*courseStore)(nil)

func NewCourseStore(db *gorm.DB) course.Store {
	return &courseStore{db: db}
}

func getModule(tx *gorm.DB, moduleID string) (course.Module, error) {
	var m moduleModel
	if err := tx.Take(&m, "id = ?", moduleID).Error; err != nil {
		return course.Module{}, storeError(err, "module", moduleID, "selecting module")
	}
	var steps []stepModel
	if err := tx.Where("module_id = ?", moduleID).Order("position").Find(&steps).Error; err != nil {
		return course.Module{}, core.StoreError(err, "selecting steps")
	}

	mod := course.Module{
		ID:        m.ID,
		Name:      m.Name,
		Steps:     make([]course.Step, 0, len(steps)),
		CreatedAt: m.CreatedAt.UTC(),
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
	return mod, nil
}

func (s *courseStore) GetModule(ctx context.Context, moduleID string) (course.Module, error) {
	return getModule(s.db.WithContext(ctx), moduleID)
}

func (s *courseStore) GetModuleWithProgress(ctx context.Context, moduleID, learnerID string) (course.Module, []course.ProgressRecord, error) {
	db := s.db.WithContext(ctx)
	mod, err := getModule(db, moduleID)
	if err != nil {
		return course.Module{}, nil, err
	}

	var rows []progressModel
	err = db.Where("module_id = ? AND learner_id = ?", moduleID, learnerID).
		Order("completed_at, step_id").
		Find(&rows).Error
	if err != nil {
		return course.Module{}, nil, core.StoreError(err, "selecting progress")
	}
	records := make([]course.ProgressRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, course.ProgressRecord{
			LearnerID:   r.LearnerID,
			ModuleID:    r.ModuleID,
			StepID:      r.StepID,
			CompletedAt: r.CompletedAt.UTC(),
		})
	}
	return mod, records, nil
}

func (s *courseStore) RecordCompletion(ctx context.Context, rec course.ProgressRecord) (bool, error) {
	row := progressModel{
		LearnerID:   rec.LearnerID,
		ModuleID:    rec.ModuleID,
		StepID:      rec.StepID,
		CompletedAt: rec.CompletedAt.UTC(),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, core.StoreError(res.Error, "inserting progress record")
	}
	return res.RowsAffected > 0, nil
}

func (s *courseStore) SaveModule(ctx context.Context, mod course.Module) (course.Module, error) {
	var saved course.Module
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := moduleModel{ID: mod.ID, Name: mod.Name, CreatedAt: mod.CreatedAt.UTC()}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&m).Error
		if err != nil {
			return core.StoreError(err, "upserting module")
		}

		var stepIDs []string
		err = tx.Model(&stepModel{}).Where("module_id = ?", mod.ID).Order("position").Pluck("id", &stepIDs).Error
		if err != nil {
			return core.StoreError(err, "selecting step ids")
		}

		if course.SameOrder(stepIDs, mod.StepIDs()) {
			for _, st := range mod.Steps {
				err = tx.Model(&stepModel{}).
					Where("module_id = ? AND id = ?", mod.ID, st.ID).
					Updates(map[string]interface{}{"title": st.Title, "description": st.Description}).Error
				if err != nil {
					return core.StoreError(err, "updating step")
				}
			}
		} else {
			found, err := hasProgress(tx, mod.ID)
			if err != nil {
				return err
			}
			if found {
				return course.ErrImmutableSteps
			}
			if err = tx.Where("module_id = ?", mod.ID).Delete(&stepModel{}).Error; err != nil {
				// a completion committed since the check
				if database.IsForeignKeyViolation(err) {
					return course.ErrImmutableSteps
				}
				return core.StoreError(err, "deleting steps")
			}
			steps := make([]stepModel, 0, len(mod.Steps))
			for i, st := range mod.Steps {
				steps = append(steps, stepModel{
					ModuleID:    mod.ID,
					ID:          st.ID,
					Position:    i,
					Title:       st.Title,
					Description: st.Description,
				})
			}
			if err = tx.Create(&steps).Error; err != nil {
				return core.StoreError(err, "inserting steps")
			}
		}

		saved, err = getModule(tx, mod.ID)
		return err
	})
	if err != nil {
		return course.Module{}, err
	}
	return saved, nil
}

func hasProgress(tx *gorm.DB, moduleID string) (bool, error) {
	var n int64
	if err := tx.Model(&progressModel{}).Where("module_id = ?", moduleID).Limit(1).Count(&n).Error; err != nil {
		return false, core.StoreError(err, "checking progress")
	}
	return n > 0, nil
}

func (s *courseStore) HasProgress(ctx context.Context, moduleID string) (bool, error) {
	return hasProgress(s.db.WithContext(ctx), moduleID)
}
