package main

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, cli.conf.Database.Engine, cli.stdLogger, args[0], args[1:]...)
}
