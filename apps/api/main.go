package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/classcue/apps/api/di/dig"
	echoapi "github.com/trezcool/classcue/apps/api/echo"
	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/qrsession"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/storage/fixtures"
)

func main() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		db *sqlx.DB,
		validate *validator.Validate,
		translator ut.Translator,
		studentRepo student.Repository,
		attRepo attendance.Repository,
		store *fixtures.Store,
		sessions *qrsession.Manager,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		core.InitValidators(validate, translator)
		user.InitValidators(validate, translator)
		student.InitValidators(validate, translator)

		core.ParseEmailTemplates(apiLogger, false /* strict */)

		user.LoadCommonPasswords(apiLogger)

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := db.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		seedIfEmpty(conf, apiLogger, db, studentRepo, attRepo, store)

		// =========================================================================
		// Start Debug Service
		//
		// /debug/vars - Added to the default mux by importing the expvar package.

		// Expose important info under /debug/vars.
		expvar.NewString("build").Set(conf.Build)
		expvar.NewString("env").Set(conf.Env)

		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				apiLogger.Error(fmt.Sprintf("debug server closed: %v", err), err)
			}
		}()

		// =========================================================================
		// Start background workers

		workers := []worker{{name: "attendance sessions", run: sessions.Run}}
		if conf.Fixtures.Watch {
			workers = append(workers, worker{name: "fixtures watcher", run: store.Watch})
		}
		workersCtx, stopWorkers := context.WithCancel(context.Background())
		waitWorkers := startWorkers(workersCtx, apiLogger, workers...)

		// =========================================================================
		// Start API Service

		go func() {
			server.Start()
		}()

		// =========================================================================
		// Shutdown

		select {
		case err := <-server.Errors():
			apiLogger.Fatal(fmt.Sprintf("server error: %v", err), err)

		case sig := <-server.ShutdownSignal():
			apiLogger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

			// give outstanding requests a deadline for completion
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()

			// asking listener to shut down and shed load
			if err := server.Shutdown(ctx); err != nil {
				apiLogger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

				if err = server.Close(); err != nil {
					apiLogger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
				}
			}

			// running sessions are recorded before the database goes away
			for _, sum := range sessions.StopAll(ctx) {
				apiLogger.Info("attendance session stopped", map[string]interface{}{"session": sum.SessionID, "attended": sum.AttendedCount})
			}
		}

		stopWorkers()
		waitWorkers()
	}))
}

// seedIfEmpty imports the fixture roster and classes into an empty database.
func seedIfEmpty(conf *core.Config, logger core.Logger, db *sqlx.DB, studentRepo student.Repository, attRepo attendance.Repository, store *fixtures.Store) {
	ctx := context.Background()
	students, err := studentRepo.QueryStudents(ctx, nil)
	if err != nil {
		logger.Fatal(fmt.Sprintf("querying students: %v", err), err)
	}
	if len(students) > 0 {
		return
	}

	imported, err := fixtures.Import(ctx, db, studentRepo, attRepo, store.Data())
	if err != nil {
		logger.Fatal(fmt.Sprintf("importing fixtures: %v", err), err)
	}
	logger.Info("fixtures imported", map[string]interface{}{
		"students": imported.Students, "classes": imported.Classes, "dir": conf.Fixtures.Dir,
	})
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
