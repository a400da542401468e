package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
	"github.com/trezcool/classcue/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.RunGoose // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf        *core.Config
	logger      core.Logger
	stdLogger   *log.Logger
	db          *sqlx.DB
	usrRepo     user.Repository
	studentRepo student.Repository
	attRepo     attendance.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -username USERNAME -email EMAIL -role student|faculty|admin - add a user or update their password")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the database")
	fmt.Println("  loadfixtures [-dir DIR] [-password PASSWORD] - import the fixture students and classes")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username, the enrollment number of a student.")
	addUserEmail := addUserCmd.String("email", "", "The user's email, required for faculty members.")
	addUserRole := addUserCmd.String("role", "student", "One of student, faculty or admin. The password will be prompted next.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	loadFixturesCmd := flag.NewFlagSet("loadfixtures", flag.ContinueOnError)
	loadFixturesDir := loadFixturesCmd.String("dir", cli.conf.Fixtures.Dir, "The fixtures directory. The embedded fixtures are used when empty.")
	loadFixturesPwd := loadFixturesCmd.String("password", "", "When set, an account is created with this password for every student lacking one.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || (*addUserUname == "" && *addUserEmail == "") {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "loadfixtures":
		if err := loadFixturesCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.loadFixtures(*loadFixturesDir, *loadFixturesPwd)

	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
