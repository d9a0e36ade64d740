package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/storage/database"
	dynamorepos "github.com/shulebox/backend/storage/database/dynamo"
	inmemdb "github.com/shulebox/backend/storage/database/inmem"
	sqlxrepos "github.com/shulebox/backend/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	cli, cleanup, err := setUpCLI()
	errAndDie(err)
	defer cleanup()

	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func setUpCLI() (*commandLine, func(), error) {
	noop := func() {}

	switch core.Conf.Database.Engine {
	case core.EnginePostgres:
		if err := database.CreateIfNotExist(core.Conf); err != nil {
			return nil, noop, err
		}
		db, err := database.Open(core.Conf)
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() {
			if err := db.Close(); err != nil {
				logger.Printf("closing database: %v", err)
			}
		}
		return &commandLine{db: db, teachers: sqlxrepos.NewTeacherRepository(db)}, cleanup, nil

	case core.EngineDynamoDB:
		db, err := dynamorepos.Open(context.Background(), core.Conf.Database)
		if err != nil {
			return nil, noop, err
		}
		return &commandLine{teachers: dynamorepos.NewTeacherRepository(db)}, noop, nil

	case core.EngineInMem:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, noop, err
		}
		return &commandLine{teachers: inmemdb.NewTeacherRepository(db)}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown database engine %q", core.Conf.Database.Engine)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

