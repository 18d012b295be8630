// Package ratelimit provides the process-wide gate every release index call
// passes through.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Gate serializes calls to a rate-limited upstream.
type Gate interface {
	// Do blocks until the gate admits the caller, runs fn, and releases the gate.
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopGate admits every call immediately. Used in tests.
type NopGate struct{}

func (NopGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Config configures an IntervalGate.
type Config struct {
	// RestInterval is the minimum pause between the end of one call and the start of the next.
	RestInterval time.Duration
	// MaxPenalty caps the extra delay added after rate-limited responses.
	MaxPenalty time.Duration
	// RecoveryCalls is the number of clean calls before the penalty is halved.
	RecoveryCalls int
	// IsRateLimited classifies errors that should grow the penalty. Optional.
	IsRateLimited func(error) bool
	Logger        zerolog.Logger
}

// DefaultConfig returns the defaults used for the release index.
func DefaultConfig(logger zerolog.Logger) Config {
	return Config{
		RestInterval:  2 * time.Second,
		MaxPenalty:    30 * time.Second,
		RecoveryCalls: 5,
		Logger:        logger,
	}
}

// IntervalGate admits one call at a time and inserts a fixed rest interval
// between consecutive calls regardless of their outcome. Rate-limited responses
// add a penalty on top of the rest interval that decays after clean calls.
type IntervalGate struct {
	slot chan struct{}

	mu            sync.Mutex
	lastCall      time.Time
	penalty       time.Duration
	consecutiveOK int

	cfg    Config
	logger zerolog.Logger
}

// NewIntervalGate creates a new gate.
func NewIntervalGate(cfg Config) *IntervalGate {
	if cfg.RecoveryCalls <= 0 {
		cfg.RecoveryCalls = 5
	}
	return &IntervalGate{
		slot:   make(chan struct{}, 1),
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "rate-gate").Logger(),
	}
}

// Do implements Gate.
func (g *IntervalGate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	if err := g.rest(ctx); err != nil {
		return err
	}

	err := fn(ctx)
	g.record(err)
	return err
}

func (g *IntervalGate) rest(ctx context.Context) error {
	g.mu.Lock()
	last := g.lastCall
	delay := g.cfg.RestInterval + g.penalty
	g.mu.Unlock()

	if last.IsZero() || delay <= 0 {
		return nil
	}

	wait := delay - time.Since(last)
	if wait <= 0 {
		return nil
	}

	g.logger.Trace().Dur("wait", wait).Msg("resting before release index call")

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *IntervalGate) record(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastCall = time.Now()

	if err != nil && g.cfg.IsRateLimited != nil && g.cfg.IsRateLimited(err) {
		old := g.penalty
		if g.penalty == 0 {
			g.penalty = time.Second
		} else {
			g.penalty *= 2
		}
		if g.cfg.MaxPenalty > 0 && g.penalty > g.cfg.MaxPenalty {
			g.penalty = g.cfg.MaxPenalty
		}
		g.consecutiveOK = 0
		g.logger.Warn().Dur("oldPenalty", old).Dur("newPenalty", g.penalty).Msg("rate limited: backing off")
		return
	}

	if err != nil {
		g.consecutiveOK = 0
		return
	}

	g.consecutiveOK++
	if g.penalty > 0 && g.consecutiveOK >= g.cfg.RecoveryCalls {
		g.penalty /= 2
		if g.penalty < time.Second {
			g.penalty = 0
		}
		g.consecutiveOK = 0
		g.logger.Debug().Dur("penalty", g.penalty).Msg("rate limit penalty recovered")
	}
}

// Penalty returns the current extra delay.
func (g *IntervalGate) Penalty() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.penalty
}
