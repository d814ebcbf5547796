package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/sekolah-app/sekolah/apps/api/echo"
	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
	cachesvc "github.com/sekolah-app/sekolah/services/cache"
	emailsvc "github.com/sekolah-app/sekolah/services/email"
	logsvc "github.com/sekolah-app/sekolah/services/logger"
	"github.com/sekolah-app/sekolah/storage/database"
	"github.com/sekolah-app/sekolah/storage/database/sqlxrepo"
)

const dbSetupTimeout = 30 * time.Second

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// CacheCloser releases the cache connection, if any.
type CacheCloser func() error

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	DB            *sqlx.DB
	Tokens        *auth.TokenService
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	SchoolSvc     school.Service
	ScheduleSvc   schedule.Service
	AttendanceSvc attendance.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
		defer cancel()

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newCache(conf *core.Config, logger core.Logger) (core.Cache, CacheCloser) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cache, closeFn := cachesvc.New(ctx, conf, logger)
	return cache, closeFn
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newValidator returns a validator with every custom rule and translation registered.
func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

func newTokenService(conf *core.Config) (*auth.TokenService, error) {
	return auth.NewTokenService([]byte(conf.SecretKey), conf.JWTExpiration)
}

func newSchoolService(repo school.Repository, cache core.Cache, conf *core.Config, logger core.Logger) school.Service {
	return school.NewService(repo, cache, conf.CacheTTL, logger)
}

func newScheduleService(repo schedule.Repository, schoolSvc school.Service, usrSvc user.Service, conf *core.Config) schedule.Service {
	return schedule.NewService(repo, schoolSvc, usrSvc, conf.Location())
}

func newAttendanceService(repo attendance.Repository, scheduleSvc schedule.Service, conf *core.Config) attendance.Service {
	return attendance.NewService(repo, scheduleSvc, conf.Location())
}

func newServer(p serverParams) echoapi.Server {
	return echoapi.NewServer(echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		DB:            p.DB,
		Tokens:        p.Tokens,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		SchoolSvc:     p.SchoolSvc,
		ScheduleSvc:   p.ScheduleSvc,
		AttendanceSvc: p.AttendanceSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newTokenService))

	must(c.Provide(sqlxrepo.NewUserRepository))
	must(c.Provide(sqlxrepo.NewSchoolRepository))
	must(c.Provide(sqlxrepo.NewScheduleRepository))
	must(c.Provide(sqlxrepo.NewAttendanceRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(newSchoolService))
	must(c.Provide(newScheduleService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
