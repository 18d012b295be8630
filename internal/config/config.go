package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Sonarr      ArrConfig         `mapstructure:"sonarr"`
	Radarr      ArrConfig         `mapstructure:"radarr"`
	QBittorrent QBittorrentConfig `mapstructure:"qbittorrent"`
	Discord     DiscordConfig     `mapstructure:"discord"`
	Webhook     WebhookConfig     `mapstructure:"webhook"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	SeaDex      SeaDexConfig      `mapstructure:"seadex"`
	Mappings    MappingsConfig    `mapstructure:"mappings"`
	Filter      FilterConfig      `mapstructure:"filter"`
	Sync        SyncConfig        `mapstructure:"sync"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Server      ServerConfig      `mapstructure:"server"`
}

// ArrConfig holds connection details for a Sonarr or Radarr instance.
type ArrConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
	// Category is the torrent category used for releases acquired for this app.
	Category string `mapstructure:"category"`
	// AnimeOnly limits Sonarr to series typed "anime". Ignored for Radarr.
	AnimeOnly bool `mapstructure:"anime_only"`
	// IgnoreMoviesInRadarr skips Sonarr specials whose mapping names a movie
	// Radarr already lists. Ignored for Radarr.
	IgnoreMoviesInRadarr bool `mapstructure:"ignore_movies_in_radarr"`
}

// Enabled reports whether the instance is configured.
func (a ArrConfig) Enabled() bool {
	return a.URL != "" && a.APIKey != ""
}

// QBittorrentConfig holds qBittorrent Web UI credentials.
type QBittorrentConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether a torrent client is configured.
func (q QBittorrentConfig) Enabled() bool {
	return q.URL != ""
}

// DiscordConfig holds the Discord webhook used for notifications.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// WebhookConfig holds a generic JSON webhook target.
type WebhookConfig struct {
	URL      string            `mapstructure:"url"`
	Method   string            `mapstructure:"method"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Headers  map[string]string `mapstructure:"headers"`
}

// NotifyConfig selects which events are sent. Empty means all.
type NotifyConfig struct {
	Events []string `mapstructure:"events"`
}

// SeaDexConfig holds release index client settings.
type SeaDexConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RestInterval is the pause inserted between consecutive release index calls.
	RestInterval time.Duration `mapstructure:"rest_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

// MappingsConfig controls where the ID mapping tables come from.
type MappingsConfig struct {
	CacheDir      string `mapstructure:"cache_dir"`
	CacheDays     int    `mapstructure:"cache_days"`
	AnimeIDsURL   string `mapstructure:"anime_ids_url"`
	AniDBListURL  string `mapstructure:"anidb_list_url"`
	OverridesPath string `mapstructure:"overrides_path"`
	// RefreshSchedule is the daemon cron for re-downloading expired tables.
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

// FilterConfig holds the user's release filtering preferences. It is read-only
// once loaded.
type FilterConfig struct {
	IncludeTrackers []string `mapstructure:"include_trackers"`
	ExcludeTrackers []string `mapstructure:"exclude_trackers"`
	PublicOnly      bool     `mapstructure:"public_only"`
	PreferDualAudio bool     `mapstructure:"prefer_dual_audio"`
	WantBest        bool     `mapstructure:"want_best"`
	Interactive     bool     `mapstructure:"interactive"`
	// MaxAcquisitionsPerRun caps submissions per run. Zero means no cap.
	MaxAcquisitionsPerRun int `mapstructure:"max_acquisitions_per_run"`
}

// SyncConfig holds orchestration settings.
type SyncConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	DryRun      bool   `mapstructure:"dry_run"`
	Schedule    string `mapstructure:"schedule"`
	LockPath    string `mapstructure:"lock_path"`
	// MonitoredOnly skips episodes the library app does not monitor.
	MonitoredOnly bool `mapstructure:"monitored_only"`
	// HistorySize is the number of run summaries the daemon keeps in memory.
	HistorySize int `mapstructure:"history_size"`
}

// LedgerConfig holds the acquisition ledger location.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ServerConfig holds the daemon status API configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults.
// Keys that do not map onto Config are rejected.
func Load(configPath string) (*Config, error) {
	// A missing .env file is the normal case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.seadexarr")
	}

	v.SetEnvPrefix("SEADEXARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Filter.IncludeTrackers = normalizeTrackers(cfg.Filter.IncludeTrackers)
	cfg.Filter.ExcludeTrackers = normalizeTrackers(cfg.Filter.ExcludeTrackers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("sonarr.url", "")
	v.SetDefault("sonarr.api_key", "")
	v.SetDefault("sonarr.category", "sonarr")
	v.SetDefault("sonarr.anime_only", true)
	v.SetDefault("sonarr.ignore_movies_in_radarr", false)
	v.SetDefault("radarr.url", "")
	v.SetDefault("radarr.api_key", "")
	v.SetDefault("radarr.category", "radarr")
	v.SetDefault("radarr.anime_only", false)
	v.SetDefault("radarr.ignore_movies_in_radarr", false)

	v.SetDefault("qbittorrent.url", "")
	v.SetDefault("qbittorrent.username", "")
	v.SetDefault("qbittorrent.password", "")

	v.SetDefault("discord.webhook_url", "")
	v.SetDefault("discord.username", "SeaDexArr")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.method", "POST")
	v.SetDefault("webhook.username", "")
	v.SetDefault("webhook.password", "")
	v.SetDefault("webhook.headers", map[string]string{})

	v.SetDefault("notify.events", []string{})

	v.SetDefault("seadex.base_url", "https://releases.moe")
	v.SetDefault("seadex.timeout", 30*time.Second)
	v.SetDefault("seadex.rest_interval", 2*time.Second)
	v.SetDefault("seadex.max_attempts", 3)

	v.SetDefault("mappings.cache_dir", "./data/mappings")
	v.SetDefault("mappings.cache_days", 1)
	v.SetDefault("mappings.anime_ids_url", "https://raw.githubusercontent.com/Kometa-Team/Anime-IDs/refs/heads/master/anime_ids.json")
	v.SetDefault("mappings.anidb_list_url", "https://raw.githubusercontent.com/Anime-Lists/anime-lists/refs/heads/master/anime-list-master.xml")
	v.SetDefault("mappings.overrides_path", "")
	v.SetDefault("mappings.refresh_schedule", "30 3 * * *")

	v.SetDefault("filter.include_trackers", []string{})
	v.SetDefault("filter.exclude_trackers", []string{})
	v.SetDefault("filter.public_only", true)
	v.SetDefault("filter.prefer_dual_audio", true)
	v.SetDefault("filter.want_best", true)
	v.SetDefault("filter.interactive", false)
	v.SetDefault("filter.max_acquisitions_per_run", 0)

	v.SetDefault("sync.concurrency", 1)
	v.SetDefault("sync.dry_run", false)
	v.SetDefault("sync.schedule", "0 */6 * * *")
	v.SetDefault("sync.lock_path", "./data/seadexarr.lock")
	v.SetDefault("sync.monitored_only", false)
	v.SetDefault("sync.history_size", 20)

	v.SetDefault("ledger.path", "./data/ledger.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8787)
}

func normalizeTrackers(trackers []string) []string {
	out := make([]string, 0, len(trackers))
	for _, t := range trackers {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
