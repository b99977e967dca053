package main

import (
	"fmt"
	"os"

	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	logsvc "github.com/trezcool/somo/services/logger"
	"github.com/trezcool/somo/storage/database"
	inmemdb "github.com/trezcool/somo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/somo/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	zl = zl.Named("admin")
	logger := logsvc.NewRollbarLogger(zl, conf)
	logger.Enable(!conf.Debug)

	cli := commandLine{
		conf:       conf,
		dialect:    conf.Database.Engine,
		migrateLog: gooseLogger{zl: zl},
		out:        os.Stdout,
	}

	validate, translator := core.NewValidator()

	// set up DB & repos
	var store course.Store
	if conf.Database.Backend == "inmem" {
		store = inmemdb.NewCourseStore(inmemdb.Open())
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		cli.db = db.DB
		store = sqlxrepos.NewCourseStore(db)
	}
	cli.courseSvc = course.NewService(store, nil, logger, validate, translator)

	// start CLI
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
