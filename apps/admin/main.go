package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/services/logger"
	"github.com/trezcool/classcue/storage/database"
	"github.com/trezcool/classcue/storage/database/sqlxrepos"
)

var errLocked = errors.New("another admin command is running")

func main() {
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// one admin command at a time
	lock, err := acquireLock(filepath.Join(os.TempDir(), "classcue-admin.lock"))
	errAndDie(stdLogger, err)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(stdLogger, err)
	if len(os.Args) < 2 || os.Args[1] != "migrate" {
		errAndDie(stdLogger, database.Migrate(db, conf.Database.Engine, stdLogger))
	}

	// start CLI
	cli := commandLine{
		conf:        conf,
		logger:      logsvc.NewRollbarLogger(stdLogger, conf),
		stdLogger:   stdLogger,
		db:          db,
		usrRepo:     sqlxrepos.NewUserRepository(db),
		studentRepo: sqlxrepos.NewStudentRepository(db),
		attRepo:     sqlxrepos.NewAttendanceRepository(db),
	}
	err = cli.run(os.Args)

	_ = db.Close()
	_ = lock.Unlock()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

// acquireLock takes the file lock at `path` without waiting.
func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "locking "+path)
	}
	if !locked {
		return nil, errLocked
	}
	return lock, nil
}

func errAndDie(logger *log.Logger, err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
