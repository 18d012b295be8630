// Package tasks registers the daemon's scheduled jobs.
package tasks

import (
	"context"

	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/scheduler"
)

const (
	SyncTaskID            = "sync"
	MappingsRefreshTaskID = "mappings-refresh"
)

// Syncer runs one sync pass.
type Syncer interface {
	Sync(ctx context.Context) (*orchestrator.Summary, error)
}

// MappingsRefresher re-downloads the ID mapping tables.
type MappingsRefresher interface {
	RefreshMappings(ctx context.Context) error
}

// RegisterSyncTask registers the library sync on cronExpr.
func RegisterSyncTask(sched *scheduler.Scheduler, syncer Syncer, cronExpr string, runOnStart bool) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          SyncTaskID,
		Name:        "Library Sync",
		Description: "Resolve library titles against SeaDex and acquire the best releases",
		Cron:        cronExpr,
		RunOnStart:  runOnStart,
		Func: func(ctx context.Context) error {
			_, err := syncer.Sync(ctx)
			return err
		},
	})
}

// RegisterMappingsRefreshTask registers the mapping table refresh. An empty
// cronExpr leaves it manual-only.
func RegisterMappingsRefreshTask(sched *scheduler.Scheduler, refresher MappingsRefresher, cronExpr string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          MappingsRefreshTaskID,
		Name:        "Mappings Refresh",
		Description: "Re-download the Kometa and AniDB ID mapping tables",
		Cron:        cronExpr,
		Func:        refresher.RefreshMappings,
	})
}
