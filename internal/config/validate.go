package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration once at load time.
func (c *Config) Validate() error {
	var problems []string

	if !c.Sonarr.Enabled() && !c.Radarr.Enabled() {
		problems = append(problems, "at least one of sonarr or radarr must have url and api_key")
	}
	if (c.Sonarr.URL == "") != (c.Sonarr.APIKey == "") {
		problems = append(problems, "sonarr.url and sonarr.api_key must be set together")
	}
	if (c.Radarr.URL == "") != (c.Radarr.APIKey == "") {
		problems = append(problems, "radarr.url and radarr.api_key must be set together")
	}
	if c.SeaDex.BaseURL == "" {
		problems = append(problems, "seadex.base_url is required")
	}
	if c.SeaDex.MaxAttempts < 1 {
		problems = append(problems, "seadex.max_attempts must be at least 1")
	}
	if c.SeaDex.RestInterval < 0 {
		problems = append(problems, "seadex.rest_interval must not be negative")
	}
	if c.Mappings.CacheDays < 0 {
		problems = append(problems, "mappings.cache_days must not be negative")
	}
	if c.Sync.Concurrency < 1 {
		problems = append(problems, "sync.concurrency must be at least 1")
	}
	if c.Ledger.Path == "" {
		problems = append(problems, "ledger.path is required")
	}
	for _, e := range c.Notify.Events {
		switch e {
		case "title_chosen", "title_skipped", "run_summary":
		default:
			problems = append(problems, fmt.Sprintf("notify.events: unknown event %q", e))
		}
	}
	problems = append(problems, c.Filter.problems()...)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the filter preferences on their own.
func (f FilterConfig) Validate() error {
	if problems := f.problems(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (f FilterConfig) problems() []string {
	var problems []string
	if f.MaxAcquisitionsPerRun < 0 {
		problems = append(problems, "filter.max_acquisitions_per_run must not be negative")
	}
	for _, inc := range f.IncludeTrackers {
		for _, exc := range f.ExcludeTrackers {
			if strings.EqualFold(inc, exc) {
				problems = append(problems, fmt.Sprintf("tracker %q is both included and excluded", inc))
			}
		}
	}
	return problems
}

// HasCap reports whether a per-run acquisition cap is configured.
func (f FilterConfig) HasCap() bool {
	return f.MaxAcquisitionsPerRun > 0
}
