package main

import (
	"errors"

	"github.com/pressly/goose/v3"

	appfs "github.com/shulebox/backend/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations require the postgres engine")
	}
	var arguments []string
	if len(args) > 1 {
		arguments = args[1:]
	}
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseRunFunc(args[0], cli.db.DB, "migrations", arguments...)
}
