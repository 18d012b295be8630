package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/seadexarr/seadexarr/internal/app"
	"github.com/seadexarr/seadexarr/internal/config"
	"github.com/seadexarr/seadexarr/internal/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// newLogger builds the process logger. Console output goes to stderr so
// command output on stdout stays clean.
func (c *commandContext) newLogger(cfg *config.Config, tee io.Writer) *logger.Logger {
	return logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Output:     os.Stderr,
		Tee:        tee,
	})
}

// withApp opens the app, runs fn and closes everything again.
func (c *commandContext) withApp(fn func(*config.Config, *app.App, *logger.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	log := c.newLogger(cfg, nil)
	defer log.Close()

	a, err := app.New(cfg, log.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cfg, a, log)
}

// acquireLock takes the single-instance lock so a manual sync never overlaps
// a running daemon.
func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another seadexarr sync or daemon is already running (lock " + path + ")")
	}
	return lock, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
