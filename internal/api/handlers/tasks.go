package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/seadexarr/seadexarr/internal/scheduler"
)

// TaskRunner is the part of the scheduler the handlers use.
type TaskRunner interface {
	ListTasks() []scheduler.TaskInfo
	GetTask(taskID string) (*scheduler.TaskInfo, error)
	RunNow(taskID string) error
}

// TasksHandler handles scheduled task API requests.
type TasksHandler struct {
	scheduler TaskRunner
}

// NewTasksHandler creates a new tasks handler.
func NewTasksHandler(sched TaskRunner) *TasksHandler {
	return &TasksHandler{scheduler: sched}
}

// RegisterRoutes registers task routes on the given group.
func (h *TasksHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/run", h.RunTask)
}

// ListTasks returns all scheduled tasks.
// GET /api/v1/tasks
func (h *TasksHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns information about a specific task.
// GET /api/v1/tasks/:id
func (h *TasksHandler) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask manually triggers a task to run.
// POST /api/v1/tasks/:id/run
func (h *TasksHandler) RunTask(c echo.Context) error {
	return h.Trigger(c, c.Param("id"))
}

// Trigger starts taskID and answers 202, 404 for an unknown task or 409 while
// the task is still running.
func (h *TasksHandler) Trigger(c echo.Context, taskID string) error {
	if err := h.scheduler.RunNow(taskID); err != nil {
		switch {
		case errors.Is(err, scheduler.ErrTaskNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		case errors.Is(err, scheduler.ErrTaskRunning):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return err
		}
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}
