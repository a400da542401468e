package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/core"
	"github.com/trezcool/classcue/core/user"
)

var roleFlags = map[string][]string{
	"student": {user.RoleStudent},
	"faculty": {user.RoleFaculty},
	"admin":   user.AllRoles,
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	roles, ok := roleFlags[core.CleanString(role, true /* lower */)]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	switch {
	case roles[0] == user.RoleStudent && !user.IsEnrollmentNumber(uname):
		return errors.New("students need their 12 digit enrollment number as username")
	case roles[0] == user.RoleFaculty && email == "":
		return errors.New("faculty members need an email address")
	}

	lookup := uname
	if lookup == "" {
		lookup = email
	}
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: lookup})
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			Theme:     user.ThemeLight,
			CreatedAt: now,
		}
	}
	if email != "" && usr.Email == "" {
		usr.Email = email
	}
	usr.Name = name
	usr.Roles = roles
	usr.UpdatedAt = time.Now().UTC()
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	cli.stdLogger.Printf("user %q saved with roles %v", usr.Name, usr.Roles)
	return nil
}
