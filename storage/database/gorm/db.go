package gormrepos

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/storage/database"
)

// Open connects to the app's postgres database through gorm, sharing the pinged connection pool.
func Open(conf *core.Config) (*gorm.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	gdb, err := New(postgres.New(postgres.Config{Conn: db.DB}), conf.Debug)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return gdb, nil
}

// New wraps an existing dialector. Queries are logged in debug only.
func New(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	level := logger.Silent
	if debug {
		level = logger.Info
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening gorm")
	}
	return gdb, nil
}

// storeError maps gorm's record-not-found to a NotFoundError of resource.
func storeError(err error, resource, id, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(resource, id)
	}
	return core.StoreError(err, msg)
}
