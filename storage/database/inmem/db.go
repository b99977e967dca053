package inmemdb

import (
	"sync"

	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/core/quiz"
)

type (
	DB struct {
		course *courseTables
		quiz   *quizTables
	}

	progressKey struct {
		learnerID string
		moduleID  string
		stepID    string
	}

	courseTables struct {
		sync.RWMutex
		modules  map[string]course.Module
		progress map[progressKey]course.ProgressRecord
	}

	quizTables struct {
		sync.RWMutex
		questions map[string]quiz.Question
		attempts  map[string]quiz.Attempt
	}
)

func Open() *DB {
	return &DB{
		course: &courseTables{
			modules:  make(map[string]course.Module),
			progress: make(map[progressKey]course.ProgressRecord),
		},
		quiz: &quizTables{
			questions: make(map[string]quiz.Question),
			attempts:  make(map[string]quiz.Attempt),
		},
	}
}
