package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/classcue/apps/api/echo"
	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/services/email"
	"github.com/trezcool/classcue/services/logger"
	"github.com/trezcool/classcue/storage/database"
	"github.com/trezcool/classcue/storage/database/sqlxrepos"
	"github.com/trezcool/classcue/storage/fixtures"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type DBLoggerStdParam struct {
	dig.In
	Logger *log.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

type dbLoggers struct {
	dig.Out
	Logger    core.Logger `name:"dbLogger"`
	StdLogger *log.Logger `name:"dbLogger"`
}

func newDBLoggers(conf *core.Config) dbLoggers {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return dbLoggers{Logger: logger, StdLogger: stdLogger}
}

type dbResult struct {
	dig.Out
	SQLX     *sqlx.DB
	DB       core.DB
	Executor core.DBExecutor
}

func newDB(conf *core.Config, loggerParam DBLoggerParam, stdParam DBLoggerStdParam) dbResult {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(context.Background(), conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, conf.Database.Engine, stdParam.Logger); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return dbResult{SQLX: db, DB: db, Executor: db}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newFixtures(conf *core.Config, logger core.Logger) (*fixtures.Store, error) {
	return fixtures.NewStore(context.Background(), conf.Fixtures.Dir, logger)
}

func newAttendanceService(db core.DB, repo attendance.Repository, studentRepo student.Repository, store *fixtures.Store) attendance.ServiceInterface {
	return attendance.NewService(db, repo, studentRepo, store.Weekly)
}

func newRecorder(db core.DB, svc attendance.ServiceInterface, repo qrsession.Repository, logger core.Logger) *qrsession.Recorder {
	return qrsession.NewRecorder(db, svc, repo, logger)
}

func newSessionManager(conf *core.Config, logger core.Logger, recorder *qrsession.Recorder) *qrsession.Manager {
	return qrsession.NewManager(qrsession.Options{
		Duration:    conf.Attendance.SessionDuration,
		MaxDuration: conf.Attendance.MaxSessionDuration,
		Rotation:    conf.Attendance.QRRotationInterval,
		Secret:      conf.SecretKey,
		Clock:       core.SystemClock(),
		Logger:      logger,
		RetainFor:   conf.Attendance.SessionRetention,
		OnEnd:       recorder.OnEnd,
	})
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	MailSvc       core.EmailService
	UserSvc       user.ServiceInterface
	StudentSvc    student.ServiceInterface
	AttendanceSvc attendance.ServiceInterface
	Sessions      *qrsession.Manager
	Recorder      *qrsession.Recorder
	Fixtures      *fixtures.Store
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, &echoapi.Deps{
		Validate:      p.Validate,
		Translator:    p.Translator,
		MailSvc:       p.MailSvc,
		UserSvc:       p.UserSvc,
		StudentSvc:    p.StudentSvc,
		AttendanceSvc: p.AttendanceSvc,
		Sessions:      p.Sessions,
		Recorder:      p.Recorder,
		Fixtures:      p.Fixtures,
		Clock:         core.SystemClock(),
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLoggers))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newFixtures))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewSessionRepository, dig.As(new(qrsession.Repository))))

	// validation
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))

	// services
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(student.NewService, dig.As(new(student.ServiceInterface))))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newRecorder))
	must(c.Provide(newSessionManager))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
