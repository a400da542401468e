package fixtures

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/attendance"
	"github.com/trezcool/classcue/core/student"
	"github.com/trezcool/classcue/core/user"
)

// Imported counts what Import wrote.
type Imported struct {
	Students int `json:"students"`
	Classes  int `json:"classes"`
	Accounts int `json:"accounts"`
}

// Import writes the fixture students and classes to the database in one transaction.
// Existing students keep their profile; existing classes get their marks replaced.
func Import(ctx context.Context, db core.DB, studentRepo student.Repository, attRepo attendance.Repository, data *Data) (Imported, error) {
	err := core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
		if err := studentRepo.SaveStudents(ctx, data.Students, tx); err != nil {
			return errors.Wrap(err, "saving students")
		}
		if err := attRepo.SaveClasses(ctx, data.Classes, tx); err != nil {
			return errors.Wrap(err, "saving classes")
		}
		return nil
	})
	if err != nil {
		return Imported{}, err
	}
	return Imported{Students: len(data.Students), Classes: len(data.Classes)}, nil
}

// ImportAccounts creates a student account for every fixture student lacking one.
// The username is the enrollment number; `password` is shared by every new account.
func ImportAccounts(ctx context.Context, db core.DB, usrRepo user.Repository, students []student.Student, password string) (int, error) {
	var created int
	err := core.RunInTx(ctx, db, func(tx core.DBExecutor) error {
		for _, s := range students {
			if s.StudentID == "" {
				continue
			}
			_, err := usrRepo.GetUser(ctx, user.GetFilter{Username: s.StudentID}, tx)
			if err == nil {
				continue
			}
			if err != user.ErrNotFound {
				return errors.Wrapf(err, "finding account of %s", s.StudentID)
			}

			now := time.Now().UTC()
			usr := user.User{
				Name:      s.Name,
				Username:  s.StudentID,
				Roles:     []string{user.RoleStudent},
				Theme:     user.ThemeLight,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if s.Email != "" {
				// an email already taken is left out of the new account
				switch err = usrRepo.CheckUsernameUniqueness(ctx, "", s.Email, nil, tx); err {
				case nil:
					usr.Email = core.CleanString(s.Email, true /* lower */)
				case user.ErrEmailExists, user.ErrUsernameExists:
				default:
					return errors.Wrapf(err, "checking email of %s", s.StudentID)
				}
			}
			usr.SetActive(true)
			if err = usr.SetPassword(password); err != nil {
				return errors.Wrap(err, "hashing password")
			}
			if _, err = usrRepo.CreateUser(ctx, usr, tx); err != nil {
				return errors.Wrapf(err, "creating account of %s", s.StudentID)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}
