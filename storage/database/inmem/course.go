package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
)

type courseStore struct {
	db *courseTables
}

var _ course.Store = (*courseStore)(nil)

func NewCourseStore(db *DB) course.Store {
	return &courseStore{db: db.course}
}

func copyModule(mod course.Module) course.Module {
	mod.Steps = append([]course.Step{}, mod.Steps...)
	return mod
}

func (s *courseStore) GetModule(_ context.Context, moduleID string) (course.Module, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	mod, ok := s.db.modules[moduleID]
	if !ok {
		return course.Module{}, core.NewNotFoundError("module", moduleID)
	}
	return copyModule(mod), nil
}

func (s *courseStore) GetModuleWithProgress(_ context.Context, moduleID, learnerID string) (course.Module, []course.ProgressRecord, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	mod, ok := s.db.modules[moduleID]
	if !ok {
		return course.Module{}, nil, core.NewNotFoundError("module", moduleID)
	}
	records := make([]course.ProgressRecord, 0)
	for key, rec := range s.db.progress {
		if key.moduleID == moduleID && key.learnerID == learnerID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CompletedAt.Equal(records[j].CompletedAt) {
			return records[i].StepID < records[j].StepID
		}
		return records[i].CompletedAt.Before(records[j].CompletedAt)
	})
	return copyModule(mod), records, nil
}

// RecordCompletion checks and inserts under the same write lock.
func (s *courseStore) RecordCompletion(_ context.Context, rec course.ProgressRecord) (bool, error) {
	s.db.Lock()
	defer s.db.Unlock()

	mod, ok := s.db.modules[rec.ModuleID]
	if !ok {
		return false, core.NewNotFoundError("module", rec.ModuleID)
	}
	if !mod.HasStep(rec.StepID) {
		return false, core.NewNotFoundError("step", rec.StepID)
	}
	key := progressKey{learnerID: rec.LearnerID, moduleID: rec.ModuleID, stepID: rec.StepID}
	if _, exists := s.db.progress[key]; exists {
		return false, nil
	}
	s.db.progress[key] = rec
	return true, nil
}

// SaveModule checks the step order and writes under the same write lock.
func (s *courseStore) SaveModule(_ context.Context, mod course.Module) (course.Module, error) {
	s.db.Lock()
	defer s.db.Unlock()

	mod = copyModule(mod)
	if orig, ok := s.db.modules[mod.ID]; ok {
		if !course.SameOrder(orig.StepIDs(), mod.StepIDs()) && s.hasProgress(mod.ID) {
			return course.Module{}, course.ErrImmutableSteps
		}
		mod.CreatedAt = orig.CreatedAt
	}
	s.db.modules[mod.ID] = mod
	return copyModule(mod), nil
}

func (s *courseStore) HasProgress(_ context.Context, moduleID string) (bool, error) {
	s.db.RLock()
	defer s.db.RUnlock()
	return s.hasProgress(moduleID), nil
}

// hasProgress must be called with the lock held.
func (s *courseStore) hasProgress(moduleID string) bool {
	for key := range s.db.progress {
		if key.moduleID == moduleID {
			return true
		}
	}
	return false
}
