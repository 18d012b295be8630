// Package app wires configuration into the services a sync run needs. The
// CLI and the daemon both drive syncs through an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/database"
	"github.com/seadexarr/seadexarr/internal/downloader"
	"github.com/seadexarr/seadexarr/internal/downloader/qbittorrent"
	"github.com/seadexarr/seadexarr/internal/ledger"
	"github.com/seadexarr/seadexarr/internal/library"
	"github.com/seadexarr/seadexarr/internal/library/radarr"
	"github.com/seadexarr/seadexarr/internal/library/sonarr"
	"github.com/seadexarr/seadexarr/internal/logger"
	"github.com/seadexarr/seadexarr/internal/mapping"
	"github.com/seadexarr/seadexarr/internal/notification"
	"github.com/seadexarr/seadexarr/internal/notification/discord"
	"github.com/seadexarr/seadexarr/internal/notification/webhook"
	"github.com/seadexarr/seadexarr/internal/orchestrator"
	"github.com/seadexarr/seadexarr/internal/ratelimit"
	"github.com/seadexarr/seadexarr/internal/retry"
	"github.com/seadexarr/seadexarr/internal/seadex"
	"github.com/seadexarr/seadexarr/internal/selection"
)

// ErrSyncRunning is returned when a sync is requested while another is in progress.
var ErrSyncRunning = errors.New("a sync is already running")

// App owns the long-lived services shared by consecutive sync runs.
type App struct {
	cfg       *config.Config
	db        *database.DB
	ledger    *ledger.Ledger
	loader    *mapping.Loader
	index     orchestrator.Index
	library   library.Provider
	submitter downloader.Submitter
	notifier  *notification.Service
	chooser   selection.Chooser
	history   *logger.RingBuffer[orchestrator.Summary]
	base      zerolog.Logger
	logger    zerolog.Logger

	running sync.Mutex
}

// New opens the ledger database and builds every collaborator from cfg.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.New(cfg.Ledger.Path, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	historySize := cfg.Sync.HistorySize
	if historySize <= 0 {
		historySize = 20
	}

	a := &App{
		cfg:      cfg,
		db:       db,
		ledger:   ledger.New(ledger.NewSQLiteStore(db.Conn()), log),
		loader:   newLoader(cfg, log),
		index:    newIndex(cfg, log),
		library:  newLibrary(cfg, log),
		notifier: newNotifier(cfg, log),
		history:  logger.NewRingBuffer[orchestrator.Summary](historySize),
		base:     log,
		logger:   log.With().Str("component", "app").Logger(),
	}
	if cfg.QBittorrent.Enabled() {
		a.submitter = qbittorrent.New(qbittorrent.Config{
			URL:      cfg.QBittorrent.URL,
			Username: cfg.QBittorrent.Username,
			Password: cfg.QBittorrent.Password,
			Logger:   log,
		})
	} else if !cfg.Sync.DryRun {
		a.logger.Warn().Msg("no torrent client configured, syncs run as dry runs")
	}
	return a, nil
}

func newLoader(cfg *config.Config, log zerolog.Logger) *mapping.Loader {
	return mapping.NewLoader(mapping.LoaderConfig{
		CacheDir:      cfg.Mappings.CacheDir,
		CacheDays:     cfg.Mappings.CacheDays,
		AnimeIDsURL:   cfg.Mappings.AnimeIDsURL,
		AniDBListURL:  cfg.Mappings.AniDBListURL,
		OverridesPath: cfg.Mappings.OverridesPath,
		Logger:        log,
	})
}

func newIndex(cfg *config.Config, log zerolog.Logger) *seadex.Client {
	gateCfg := ratelimit.DefaultConfig(log)
	gateCfg.RestInterval = cfg.SeaDex.RestInterval
	gateCfg.IsRateLimited = seadex.IsRateLimited

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.SeaDex.MaxAttempts

	return seadex.NewClient(seadex.ClientConfig{
		BaseURL: cfg.SeaDex.BaseURL,
		Timeout: cfg.SeaDex.Timeout,
		Gate:    ratelimit.NewIntervalGate(gateCfg),
		Retry:   retryCfg,
		Logger:  log,
	})
}

func newLibrary(cfg *config.Config, log zerolog.Logger) library.Provider {
	var providers library.Multi
	if cfg.Sonarr.Enabled() {
		providers = append(providers, sonarr.New(library.ClientConfig{
			URL:    cfg.Sonarr.URL,
			APIKey: cfg.Sonarr.APIKey,
			Logger: log,
		}, cfg.Sonarr.AnimeOnly))
	}
	if cfg.Radarr.Enabled() {
		providers = append(providers, radarr.New(library.ClientConfig{
			URL:    cfg.Radarr.URL,
			APIKey: cfg.Radarr.APIKey,
			Logger: log,
		}))
	}
	return providers
}

func newNotifier(cfg *config.Config, log zerolog.Logger) *notification.Service {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	var notifiers []notification.Notifier
	if cfg.Discord.WebhookURL != "" {
		notifiers = append(notifiers, discord.New("discord", discord.Settings{
			WebhookURL: cfg.Discord.WebhookURL,
			Username:   cfg.Discord.Username,
		}, httpClient, log))
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, webhook.New("webhook", webhook.Settings{
			URL:      cfg.Webhook.URL,
			Method:   cfg.Webhook.Method,
			Username: cfg.Webhook.Username,
			Password: cfg.Webhook.Password,
			Headers:  cfg.Webhook.Headers,
		}, httpClient, log))
	}

	events := make([]notification.EventType, 0, len(cfg.Notify.Events))
	for _, e := range cfg.Notify.Events {
		events = append(events, notification.EventType(e))
	}
	return notification.NewService(log, events, notifiers...)
}

// SetChooser sets the interactive tie-breaker used by subsequent runs.
func (a *App) SetChooser(c selection.Chooser) {
	a.chooser = c
}

// Ledger returns the acquisition ledger.
func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}

// Notifier returns the notification fan-out.
func (a *App) Notifier() *notification.Service {
	return a.notifier
}

// Sync loads the mapping tables and performs one orchestrator run. Only one
// sync runs at a time; a second caller gets ErrSyncRunning.
func (a *App) Sync(ctx context.Context) (*orchestrator.Summary, error) {
	if !a.running.TryLock() {
		return nil, ErrSyncRunning
	}
	defer a.running.Unlock()

	tables, err := a.loader.Load(ctx, false)
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(orchestrator.Config{
		Filter:               a.cfg.Filter,
		Concurrency:          a.cfg.Sync.Concurrency,
		DryRun:               a.cfg.Sync.DryRun,
		MonitoredOnly:        a.cfg.Sync.MonitoredOnly,
		IgnoreMoviesInRadarr: a.cfg.Sonarr.IgnoreMoviesInRadarr,
		Categories: map[library.App]string{
			library.AppSonarr: a.cfg.Sonarr.Category,
			library.AppRadarr: a.cfg.Radarr.Category,
		},
	}, a.library, mapping.NewMapper(tables, a.base), a.index, a.ledger, a.submitter, a.base)
	orch.SetNotifier(a.notifier)
	if a.cfg.Filter.Interactive {
		orch.SetChooser(a.chooser)
	}

	summary, err := orch.Run(ctx)
	if err != nil {
		return nil, err
	}
	a.history.Push(*summary)
	return summary, nil
}

// RefreshMappings re-downloads every remote mapping table regardless of age.
func (a *App) RefreshMappings(ctx context.Context) error {
	if _, err := a.loader.Load(ctx, true); err != nil {
		return fmt.Errorf("refresh mappings: %w", err)
	}
	return nil
}

// History returns recent run summaries, newest first.
func (a *App) History() []orchestrator.Summary {
	return a.history.Newest(0)
}

// LastRun returns the most recent summary, if any.
func (a *App) LastRun() (orchestrator.Summary, bool) {
	return a.history.Last()
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}
