package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/sekolah-app/sekolah/core"
	"github.com/sekolah-app/sekolah/core/attendance"
	"github.com/sekolah-app/sekolah/core/auth"
	"github.com/sekolah-app/sekolah/core/schedule"
	"github.com/sekolah-app/sekolah/core/school"
	"github.com/sekolah-app/sekolah/core/user"
)

type (
	Deps struct {
		Conf          *core.Config
		Logger        core.Logger
		DB            core.Pinger
		Tokens        *auth.TokenService
		Validate      *validator.Validate
		Translator    ut.Translator
		UserSvc       user.Service
		SchoolSvc     school.Service
		ScheduleSvc   schedule.Service
		AttendanceSvc attendance.Service

		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     Deps
		app      *echo.Echo
		metrics  *metrics
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps Deps) Server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		metrics:  newMetrics(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.app.Use(s.metrics.middleware)
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     conf.Server.CORSAllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", s.metrics.handler())

	api := s.app.Group("/api")
	authed := authMiddleware(s.deps.Tokens)

	registerAuthAPI(api, authed, s.loginLimiter(), &authApi{
		usrSvc:       s.deps.UserSvc,
		tokens:       s.deps.Tokens,
		validate:     s.deps.Validate,
		cookieSecure: conf.Server.CookieSecure,
	})
	registerUserAPI(api, authed, &userApi{svc: s.deps.UserSvc, validate: s.deps.Validate})
	registerSchoolAPI(api, authed, &schoolApi{svc: s.deps.SchoolSvc, validate: s.deps.Validate})
	registerScheduleAPI(api, authed, &scheduleApi{svc: s.deps.ScheduleSvc, validate: s.deps.Validate})
	registerAttendanceAPI(api, authed, &attendanceApi{
		svc:         s.deps.AttendanceSvc,
		scheduleSvc: s.deps.ScheduleSvc,
		validate:    s.deps.Validate,
	})
}

// loginLimiter throttles login attempts per client IP; nil when disabled.
func (s *server) loginLimiter() echo.MiddlewareFunc {
	limit := s.deps.Conf.Server.LoginRateLimit
	if limit <= 0 {
		return nil
	}
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(ctx echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many login attempts, try again later")
		},
	})
}

func (s *server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Address)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *server) health(ctx echo.Context) error {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check: database unreachable", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"success": false, "message": "database unreachable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"success": true, "build": s.deps.Conf.Build})
}
