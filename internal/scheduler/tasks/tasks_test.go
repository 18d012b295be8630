package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/scheduler"
)

type fakeApp struct {
	synced    chan struct{}
	refreshed chan struct{}
}

func (f *fakeApp) Sync(context.Context) (*orchestrator.Summary, error) {
	f.synced <- struct{}{}
	return &orchestrator.Summary{}, nil
}

func (f *fakeApp) RefreshMappings(context.Context) error {
	f.refreshed <- struct{}{}
	return nil
}

func TestRegisteredTasksRunThroughScheduler(t *testing.T) {
	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	app := &fakeApp{synced: make(chan struct{}, 1), refreshed: make(chan struct{}, 1)}
	require.NoError(t, RegisterSyncTask(sched, app, "0 */6 * * *", true))
	require.NoError(t, RegisterMappingsRefreshTask(sched, app, ""))
	require.NoError(t, sched.Start())

	select {
	case <-app.synced:
	case <-time.After(time.Second):
		t.Fatal("sync task did not run on start")
	}

	require.NoError(t, sched.RunNow(MappingsRefreshTaskID))
	select {
	case <-app.refreshed:
	case <-time.After(time.Second):
		t.Fatal("mappings refresh did not run")
	}

	ids := []string{}
	for _, task := range sched.ListTasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{MappingsRefreshTaskID, SyncTaskID}, ids)
}
