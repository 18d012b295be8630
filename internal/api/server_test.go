package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/logger"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/scheduler"
	"github.com/seadexarr/seadexarr/internal/scheduler/tasks"
	"github.com/seadexarr/seadexarr/internal/testutil"
)

type fakeRuns struct{ runs []orchestrator.Summary }

func (f *fakeRuns) History() []orchestrator.Summary { return f.runs }

func (f *fakeRuns) LastRun() (orchestrator.Summary, bool) {
	if len(f.runs) == 0 {
		return orchestrator.Summary{}, false
	}
	return f.runs[0], true
}

type fakeTasks struct {
	running map[string]bool
	started []string
}

func (f *fakeTasks) ListTasks() []scheduler.TaskInfo {
	return []scheduler.TaskInfo{{ID: tasks.SyncTaskID, Name: "Library Sync", Cron: "0 */6 * * *"}}
}

func (f *fakeTasks) GetTask(id string) (*scheduler.TaskInfo, error) {
	for _, task := range f.ListTasks() {
		if task.ID == id {
			return &task, nil
		}
	}
	return nil, scheduler.ErrTaskNotFound
}

func (f *fakeTasks) RunNow(id string) error {
	if id != tasks.SyncTaskID && id != tasks.MappingsRefreshTaskID {
		return scheduler.ErrTaskNotFound
	}
	if f.running[id] {
		return scheduler.ErrTaskRunning
	}
	f.started = append(f.started, id)
	return nil
}

type testServer struct {
	*Server
	runs   *fakeRuns
	tasks  *fakeTasks
	ledger *ledger.Ledger
	logs   *logger.RecentLogs
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		runs:   &fakeRuns{},
		tasks:  &fakeTasks{running: map[string]bool{}},
		ledger: ledger.New(ledger.NewMemoryStore(), zerolog.Nop()),
		logs:   logger.NewRecentLogs(10),
	}
	ts.Server = NewServer(Deps{
		Runs:     ts.runs,
		Ledger:   ts.ledger,
		Tasks:    ts.tasks,
		Logs:     ts.logs,
		Schedule: "0 */6 * * *",
	}, zerolog.Nop())
	return ts
}

func (ts *testServer) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestGetStatus(t *testing.T) {
	ts := setupTestServer(t)
	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	ts.runs.runs = []orchestrator.Summary{{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Counts:     orchestrator.Counts{Resolved: 3, ChosenAuto: 2},
	}}

	rec := ts.do(http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var response struct {
		Version string                `json:"version"`
		Tasks   []scheduler.TaskInfo `json:"tasks"`
		LastRun struct {
			RunID    string              `json:"runId"`
			Duration string              `json:"duration"`
			Counts   orchestrator.Counts `json:"counts"`
		} `json:"lastRun"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, config.Version, response.Version)
	assert.Len(t, response.Tasks, 1)
	assert.Equal(t, "run-1", response.LastRun.RunID)
	assert.Equal(t, "1.5s", response.LastRun.Duration)
	assert.Equal(t, 2, response.LastRun.Counts.ChosenAuto)
}

func TestRuns(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/v1/runs/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.runs.runs = []orchestrator.Summary{{RunID: "b"}, {RunID: "a"}}
	rec = ts.do(http.MethodGet, "/api/v1/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)

	var latest orchestrator.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, "b", latest.RunID)
}

func TestTriggerSync(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/sync")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{tasks.SyncTaskID}, ts.tasks.started)

	ts.tasks.running[tasks.SyncTaskID] = true
	rec = ts.do(http.MethodPost, "/api/v1/sync")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/mappings/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/tasks/unknown/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	ctx := context.Background()

	title := testutil.Series("sonarr:1", "Frieren", 154587)
	episode := media.EpisodeRef{Title: title, Season: 1, Episode: 3}
	_, _, err := ts.ledger.Record(ctx, episode, testutil.Candidate("t1", 154587, "Okay-Subs"))
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/v1/ledger")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ledger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "sonarr:1", entries[0].LibraryID)
	assert.Equal(t, "t1", entries[0].ReleaseIndexID)

	rec = ts.do(http.MethodDelete, "/api/v1/ledger/sonarr:1:1:3")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/ledger/sonarr:1:1:3")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/v1/ledger/garbage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogs(t *testing.T) {
	ts := setupTestServer(t)
	log := zerolog.New(ts.logs)
	log.Info().Msg("first")
	log.Warn().Msg("second")

	rec := ts.do(http.MethodGet, "/api/v1/logs?level=warn")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []logger.LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Message)

	rec = ts.do(http.MethodGet, "/api/v1/logs?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/logs/download")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
