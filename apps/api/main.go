package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/shulebox/backend/apps/api/echo"
	"github.com/shulebox/backend/core"
	"github.com/shulebox/backend/core/game"
	"github.com/shulebox/backend/core/roster"
	"github.com/shulebox/backend/core/student"
	"github.com/shulebox/backend/core/teacher"
	emailsvc "github.com/shulebox/backend/services/email"
	logsvc "github.com/shulebox/backend/services/logger"
	"github.com/shulebox/backend/storage/database"
	dynamorepos "github.com/shulebox/backend/storage/database/dynamo"
	inmemdb "github.com/shulebox/backend/storage/database/inmem"
	sqlxrepos "github.com/shulebox/backend/storage/database/sqlx"
)

type repositories struct {
	students student.Repository
	teachers teacher.Repository
	games    game.Repository
	close    func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	if err := core.Conf.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		core.Conf,
	)
	logger.Enable(!core.Conf.Debug)

	repos, err := setUpRepositories()
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	studentSvc := student.NewService(repos.students)
	teacherSvc := teacher.NewService(repos.teachers, mailSvc)
	gameSvc := game.NewService(repos.games)
	rosterSvc := roster.NewService(repos.students, repos.teachers, repos.games, mailSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", core.Conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	teacher.RegisterValidators(validate, translator)

	// =========================================================================
	// Start API Service

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:    core.Conf.Server.Address(),
		StudentSvc: studentSvc,
		TeacherSvc: teacherSvc,
		GameSvc:    gameSvc,
		RosterSvc:  rosterSvc,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		SignalShutdown: func() {
			shutdownCh <- syscall.SIGTERM
		},
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdownCh
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), core.Conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpRepositories() (*repositories, error) {
	noClose := func() error { return nil }

	switch core.Conf.Database.Engine {
	case core.EnginePostgres:
		if err := database.CreateIfNotExist(core.Conf); err != nil {
			return nil, err
		}
		db, err := database.Open(core.Conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return &repositories{
			students: sqlxrepos.NewStudentRepository(db),
			teachers: sqlxrepos.NewTeacherRepository(db),
			games:    sqlxrepos.NewGameRepository(db),
			close:    db.Close,
		}, nil

	case core.EngineDynamoDB:
		db, err := dynamorepos.Open(context.Background(), core.Conf.Database)
		if err != nil {
			return nil, err
		}
		return &repositories{
			students: dynamorepos.NewStudentRepository(db),
			teachers: dynamorepos.NewTeacherRepository(db),
			games:    dynamorepos.NewGameRepository(db),
			close:    noClose,
		}, nil

	case core.EngineInMem:
		db, err := inmemdb.Open()
		if err != nil {
			return nil, err
		}
		return &repositories{
			students: inmemdb.NewStudentRepository(db),
			teachers: inmemdb.NewTeacherRepository(db),
			games:    inmemdb.NewGameRepository(db),
			close:    noClose,
		}, nil
	}
	return nil, fmt.Errorf("unknown database engine %q", core.Conf.Database.Engine)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
