package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/somo/apps/api/echo"
	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/core/quiz"
	emailsvc "github.com/trezcool/somo/services/email"
	eventsvc "github.com/trezcool/somo/services/events"
	logsvc "github.com/trezcool/somo/services/logger"
	notifysvc "github.com/trezcool/somo/services/notify"
	"github.com/trezcool/somo/storage/database"
	gormrepos "github.com/trezcool/somo/storage/database/gorm"
	inmemdb "github.com/trezcool/somo/storage/database/inmem"
	sqlxrepos "github.com/trezcool/somo/storage/database/sqlx"
)

// Database backends
const (
	BackendSQLX  = "sqlx"
	BackendGORM  = "gorm"
	BackendInMem = "inmem"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Stores are the persistence ports, backed by conf.Database.Backend.
	Stores struct {
		dig.Out
		Course course.Store
		Quiz   quiz.Store
		Closer DBCloser
	}

	// DBCloser releases the database connections.
	DBCloser func() error

	// Events routes published events: straight to the local hub, or through redis when configured.
	Events struct {
		dig.Out
		Publisher core.EventPublisher
		Hub       *eventsvc.LocalHub
		Redis     *eventsvc.RedisPublisher
	}

	serverParams struct {
		dig.In
		Conf      *core.Config
		Logger    core.Logger
		CourseSvc *course.Service
		QuizSvc   *quiz.Service
	}
)

func newZap(conf *core.Config) (*zap.SugaredLogger, error) {
	return logsvc.NewZap(conf.Debug)
}

func newLogger(conf *core.Config, zl *zap.SugaredLogger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.SugaredLogger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	quiz.InitValidators(validate, translator)
	return validate, translator
}

func newStores(conf *core.Config, loggerParam DBLoggerParam) Stores {
	logger := loggerParam.Logger

	switch conf.Database.Backend {
	case BackendInMem:
		logger.Info("using the in-memory store: data is lost on restart")
		db := inmemdb.Open()
		return Stores{
			Course: inmemdb.NewCourseStore(db),
			Quiz:   inmemdb.NewQuizStore(db),
			Closer: func() error { return nil },
		}

	case BackendSQLX, BackendGORM:
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
			logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
		}

		if conf.Database.Backend == BackendSQLX {
			return Stores{
				Course: sqlxrepos.NewCourseStore(db),
				Quiz:   sqlxrepos.NewQuizStore(db),
				Closer: db.Close,
			}
		}

		// gorm shares the migrated connection pool
		_ = db.Close()
		gdb, err := gormrepos.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening gorm: %v", err), err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			logger.Fatal(fmt.Sprintf("getting gorm pool: %v", err), err)
		}
		return Stores{
			Course: gormrepos.NewCourseStore(gdb),
			Quiz:   gormrepos.NewQuizStore(gdb),
			Closer: sqlDB.Close,
		}
	}

	logger.Fatal(fmt.Sprintf("unknown database backend %q", conf.Database.Backend))
	return Stores{}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newEvents(conf *core.Config, logger core.Logger) Events {
	hub := eventsvc.NewLocalHub(logger)
	if conf.Events.Backend != "redis" {
		return Events{Publisher: hub, Hub: hub}
	}

	rp, err := eventsvc.NewRedisPublisher(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return Events{Publisher: rp, Hub: hub, Redis: rp}
}

func newNotifier(mailSvc core.EmailService, logger core.Logger, hub *eventsvc.LocalHub) *notifysvc.Notifier {
	n := notifysvc.NewNotifier(mailSvc, logger)
	n.Register(hub)
	return n
}

func newShutdownChan() chan os.Signal {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	return shutdown
}

func newServer(shutdown chan os.Signal, p serverParams) echoapi.Server {
	return echoapi.NewServer(shutdown, &echoapi.Deps{
		Conf:      p.Conf,
		Logger:    p.Logger,
		CourseSvc: p.CourseSvc,
		QuizSvc:   p.QuizSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newValidator))
	must(c.Provide(newStores))
	must(c.Provide(newEmailService))
	must(c.Provide(newEvents))
	must(c.Provide(newNotifier))
	must(c.Provide(quiz.NewEngine))
	must(c.Provide(course.NewService))
	must(c.Provide(quiz.NewService))
	must(c.Provide(newShutdownChan))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
