// Package api serves the daemon's status and control endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/api/handlers"
	apimw "github.com/seadexarr/seadexarr/internal/api/middleware"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/scheduler/tasks"
)

// RunHistory exposes recent sync summaries.
type RunHistory interface {
	History() []orchestrator.Summary
	LastRun() (orchestrator.Summary, bool)
}

// LedgerStore is the ledger surface the API reads and edits.
type LedgerStore interface {
	List(ctx context.Context) ([]ledger.Entry, error)
	Forget(ctx context.Context, key ledger.Key) (bool, error)
}

// Deps groups the services the server exposes.
type Deps struct {
	Runs     RunHistory
	Ledger   LedgerStore
	Tasks    handlers.TaskRunner
	Logs     LogsProvider
	LogFile  string
	Started  time.Time
	DryRun   bool
	Schedule string
}

// Server handles HTTP requests for the daemon API.
type Server struct {
	echo   *echo.Echo
	deps   Deps
	tasks  *handlers.TasksHandler
	logger zerolog.Logger
}

// NewServer creates the echo server with middleware and routes installed.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if deps.Started.IsZero() {
		deps.Started = time.Now()
	}

	s := &Server{
		echo:   e,
		deps:   deps,
		tasks:  handlers.NewTasksHandler(deps.Tasks),
		logger: logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.getStatus)

	api.GET("/runs", s.listRuns)
	api.GET("/runs/latest", s.latestRun)
	api.POST("/sync", s.triggerSync)
	api.POST("/mappings/refresh", s.refreshMappings)

	api.GET("/ledger", s.listLedger)
	api.DELETE("/ledger/:key", s.forgetLedgerEntry)

	s.tasks.RegisterRoutes(api.Group("/tasks"))
	if s.deps.Logs != nil {
		NewLogsHandlers(s.deps.Logs, s.deps.LogFile).RegisterRoutes(api.Group("/logs"))
	}
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted or exercised directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// --- Handler implementations ---

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type runOverview struct {
	RunID      string              `json:"runId"`
	FinishedAt time.Time           `json:"finishedAt"`
	Duration   string              `json:"duration"`
	Cancelled  bool                `json:"cancelled"`
	Counts     orchestrator.Counts `json:"counts"`
	Writes     int                 `json:"ledgerWrites"`
}

func (s *Server) getStatus(c echo.Context) error {
	status := map[string]interface{}{
		"version":   config.Version,
		"startTime": s.deps.Started.Format(time.RFC3339),
		"dryRun":    s.deps.DryRun,
		"schedule":  s.deps.Schedule,
		"tasks":     s.deps.Tasks.ListTasks(),
	}
	if last, ok := s.deps.Runs.LastRun(); ok {
		status["lastRun"] = runOverview{
			RunID:      last.RunID,
			FinishedAt: last.FinishedAt,
			Duration:   last.Duration().Round(time.Millisecond).String(),
			Cancelled:  last.Cancelled,
			Counts:     last.Counts,
			Writes:     len(last.LedgerWrites),
		}
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) listRuns(c echo.Context) error {
	runs := s.deps.Runs.History()
	if runs == nil {
		runs = []orchestrator.Summary{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) latestRun(c echo.Context) error {
	last, ok := s.deps.Runs.LastRun()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no sync has run yet")
	}
	return c.JSON(http.StatusOK, last)
}

func (s *Server) triggerSync(c echo.Context) error {
	return s.tasks.Trigger(c, tasks.SyncTaskID)
}

func (s *Server) refreshMappings(c echo.Context) error {
	return s.tasks.Trigger(c, tasks.MappingsRefreshTaskID)
}

func (s *Server) listLedger(c echo.Context) error {
	entries, err := s.deps.Ledger.List(c.Request().Context())
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) forgetLedgerEntry(c echo.Context) error {
	key, err := ledger.ParseKey(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	removed, err := s.deps.Ledger.Forget(c.Request().Context(), key)
	if err != nil {
		return err
	}
	if !removed {
		return echo.NewHTTPError(http.StatusNotFound, "no ledger entry for "+key.String())
	}
	return c.NoContent(http.StatusNoContent)
}
