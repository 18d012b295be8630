package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/database"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/media"
	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/testutil"
)

type cliTestEnv struct {
	configPath string
	ledgerPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.yaml"),
		ledgerPath: filepath.Join(base, "ledger.db"),
	}

	contents := strings.Join([]string{
		"sonarr:",
		"  url: http://127.0.0.1:1",
		"  api_key: test",
		"ledger:",
		"  path: " + env.ledgerPath,
		"sync:",
		"  lock_path: " + filepath.Join(base, "seadexarr.lock"),
		"logging:",
		"  level: error",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(env.configPath, []byte(contents), 0o600))
	return env
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (env *cliTestEnv) record(t *testing.T, season, episode int) {
	t.Helper()
	db, err := database.New(env.ledgerPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	l := ledger.New(ledger.NewSQLiteStore(db.Conn()), zerolog.Nop())
	title := testutil.Series("sonarr:1", "Frieren", 154587)
	_, _, err = l.Record(context.Background(), media.EpisodeRef{Title: title, Season: season, Episode: episode},
		testutil.Candidate("t1", 154587, "Okay-Subs"))
	require.NoError(t, err)
}

func TestVersionSkipsConfig(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "seadexarr "+config.Version+"\n", out.String())
}

func TestLedgerListAndForget(t *testing.T) {
	env := setupCLITestEnv(t)
	env.record(t, 1, 3)

	out, err := env.run(t, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sonarr:1:1:3")
	assert.Contains(t, out, "S01E03")
	assert.Contains(t, out, "Okay-Subs")

	out, err = env.run(t, "ledger", "list", "--library-id", "radarr:9")
	require.NoError(t, err)
	assert.Contains(t, out, "No acquisitions recorded")

	out, err = env.run(t, "ledger", "forget", "sonarr:1:1:3", "sonarr:1:1:4")
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot sonarr:1:1:3")
	assert.Contains(t, out, "No entry for sonarr:1:1:4")

	out, err = env.run(t, "ledger", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No acquisitions recorded")
}

func TestLedgerForgetRejectsBadKey(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "ledger", "forget", "not-a-key")
	assert.ErrorIs(t, err, ledger.ErrInvalidKey)
}

func TestNotifyTestWithoutNotifiers(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "notify", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "No notifiers configured")
}

func TestSyncRefusesWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := acquireLock(filepath.Join(filepath.Dir(env.configPath), "seadexarr.lock"))
	require.NoError(t, err)
	defer func() { _ = lock.Unlock() }()

	_, err = env.run(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestSyncFlagsOverrideConfig(t *testing.T) {
	cfg := &config.Config{Sync: config.SyncConfig{Concurrency: 1}}
	cmd := newSyncCommand(newCommandContext(new(string)))
	require.NoError(t, cmd.Flags().Parse([]string{"--dry-run", "--max", "2", "--concurrency", "4", "-i"}))

	opts := syncOptions{dryRun: true, max: 2, concurrency: 4, interactive: true}
	require.NoError(t, opts.apply(cmd, cfg))
	assert.True(t, cfg.Sync.DryRun)
	assert.True(t, cfg.Filter.Interactive)
	assert.Equal(t, 2, cfg.Filter.MaxAcquisitionsPerRun)
	assert.Equal(t, 4, cfg.Sync.Concurrency)

	bad := newSyncCommand(newCommandContext(new(string)))
	require.NoError(t, bad.Flags().Parse([]string{"--max=-1"}))
	assert.ErrorIs(t, syncOptions{max: -1}.apply(bad, cfg), config.ErrInvalidConfig)
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	release := &media.Candidate{ID: "t1", ReleaseGroup: "Okay-Subs", Tracker: "Nyaa", Size: 3 << 30}
	summary := &orchestrator.Summary{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		DryRun:     true,
		Counts:     orchestrator.Counts{Resolved: 2, ChosenAuto: 1, NothingToDo: 1},
		Titles: []orchestrator.TitleResult{
			{Title: "Frieren", Status: orchestrator.StatusChosenAuto, Episodes: []orchestrator.EpisodeResult{
				{Key: "sonarr:1:1:1", Episode: "Frieren S01E01", Status: orchestrator.StatusWouldAcquire, Release: release},
				{Key: "sonarr:1:1:2", Episode: "Frieren S01E02", Status: orchestrator.StatusWouldAcquire, Release: release},
			}},
			{Title: "Quiet Show", Status: orchestrator.StatusNoEpisodes},
		},
	}

	out := renderSummary(summary, false)
	assert.Contains(t, out, "Frieren")
	assert.Contains(t, out, "S01E01 S01E02")
	assert.Contains(t, out, "Okay-Subs (Nyaa, 3.0 GiB)")
	assert.NotContains(t, out, "Quiet Show")
	assert.Contains(t, out, "Run run-1 finished in 2s (dry run)")

	assert.Contains(t, renderSummary(summary, true), "Quiet Show")
}
