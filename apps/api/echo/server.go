package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/smartsched/console/core"
	"github.com/smartsched/console/core/schedule"
	"github.com/smartsched/console/core/timetable"
	"github.com/smartsched/console/core/user"
)

type (
	ServerDeps struct {
		Logger      core.Logger
		UserSvc     *user.Service
		ScheduleSvc *schedule.Service
		DraftStore  timetable.Store

		DisableReqLogs bool
	}

	Server struct {
		deps       ServerDeps
		app        *echo.Echo
		errCh      chan error
		shutdownCh chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:       deps,
		app:        echo.New(),
		errCh:      make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownCh, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig())

	registerAuthAPI(v1, jwt, s.deps.UserSvc)
	registerUserAPI(v1, jwt, s.deps.UserSvc)
	registerTimetableAPI(v1, jwt, s.deps.DraftStore, s.deps.ScheduleSvc)
	registerScheduleAPI(v1, jwt, s.deps.ScheduleSvc, s.deps.UserSvc)
}

func (s *Server) Start() {
	s.errCh <- s.app.Start(core.Conf.Server.Address())
}

// Errors receives the server's fatal startup/runtime error, if any.
func (s *Server) Errors() <-chan error {
	return s.errCh
}

// ShutdownSignal receives SIGINT/SIGTERM.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownCh
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+core.Conf.AppName+" API!")
}
