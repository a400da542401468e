package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/classcue/storage/fixtures"
)

// loadFixtures imports the students and classes found in `dir`, and creates the missing student accounts when `pwd`
// is set.
func (cli *commandLine) loadFixtures(dir, pwd string) error {
	ctx := context.Background()

	fsys, err := fixtures.Source(dir)
	if err != nil {
		return err
	}
	data, err := fixtures.Load(ctx, fsys, cli.logger)
	if err != nil {
		return errors.Wrap(err, "loading fixtures")
	}

	imported, err := fixtures.Import(ctx, cli.db, cli.studentRepo, cli.attRepo, data)
	if err != nil {
		return errors.Wrap(err, "importing fixtures")
	}
	if pwd != "" {
		if imported.Accounts, err = fixtures.ImportAccounts(ctx, cli.db, cli.usrRepo, data.Students, pwd); err != nil {
			return errors.Wrap(err, "creating student accounts")
		}
	}

	cli.stdLogger.Printf("imported %d students, %d classes and %d accounts", imported.Students, imported.Classes, imported.Accounts)
	return nil
}
