// Daily Recap Pipeline
// SPDX-License-Identifier: AGPL-3.0-or-later

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dailyrecap/pipeline/internal/metrics"
)

// JobSpawner creates and enqueues the daily job (C2 + C3), returning the new
// job's ID.
type JobSpawner interface {
	SpawnDailyJob(ctx context.Context, forDay time.Time) (string, error)
}

// CredentialProbe checks collaborator connectivity; errors are logged, not
// fatal — the probe exists to surface outages early, not to gate the
// scheduler.
type CredentialProbe interface {
	Probe(ctx context.Context) error
}

// Config configures the Scheduler.
type Config struct {
	// DailyCron is a 5-field cron expression; defaults to "0 6 * * *" (06:00
	// UTC daily) when empty.
	DailyCron string
	// Timezone is the location the cron expression is evaluated in;
	// defaults to UTC.
	Timezone *time.Location
	// ProbeInterval runs CredentialProbe on a fixed interval; zero disables
	// the probe.
	ProbeInterval time.Duration
	// TickInterval is how often the scheduler checks whether the next cron
	// run is due; defaults to 30s.
	TickInterval time.Duration
}

// DefaultConfig holds the daily-UTC-time trigger plus an
// optional hourly credential probe.
func DefaultConfig() Config {
	return Config{
		DailyCron:     "0 6 * * *",
		Timezone:      time.UTC,
		ProbeInterval: time.Hour,
		TickInterval:  30 * time.Second,
	}
}

// Scheduler wakes the system at the configured daily UTC time and spawns
// the daily recap job; optionally runs a periodic collaborator credential
// probe.
type Scheduler struct {
	spawner JobSpawner
	probe   CredentialProbe
	cron    *Expression
	config  Config
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	nextRun time.Time
}

// New builds a Scheduler. probe may be nil to disable the credential probe
// regardless of config.ProbeInterval.
func New(spawner JobSpawner, probe CredentialProbe, config Config, logger zerolog.Logger) (*Scheduler, error) {
	if config.DailyCron == "" {
		config.DailyCron = DefaultConfig().DailyCron
	}
	if config.Timezone == nil {
		config.Timezone = time.UTC
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 30 * time.Second
	}

	cron, err := ParseCron(config.DailyCron)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	return &Scheduler{
		spawner: spawner,
		probe:   probe,
		cron:    cron,
		config:  config,
		logger:  logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start begins the scheduler loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.nextRun = s.cron.NextRun(time.Now().In(s.config.Timezone), s.config.Timezone)
	s.mu.Unlock()

	metrics.UpdateSchedulerNextRun(s.nextRun)
	s.logger.Info().Time("next_run", s.nextRun).Str("cron", s.config.DailyCron).Msg("scheduler starting")
	go s.run(ctx)
	return nil
}

// Stop halts the scheduler loop and waits for it to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	var probeTicker *time.Ticker
	var probeCh <-chan time.Time
	if s.probe != nil && s.config.ProbeInterval > 0 {
		probeTicker = time.NewTicker(s.config.ProbeInterval)
		defer probeTicker.Stop()
		probeCh = probeTicker.C
	}

	for {
		select {
		case <-ticker.C:
			s.checkDue(ctx)
		case <-probeCh:
			s.runProbe(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) checkDue(ctx context.Context) {
	now := time.Now().In(s.config.Timezone)

	s.mu.Lock()
	due := !now.Before(s.nextRun)
	s.mu.Unlock()
	if !due {
		return
	}

	forDay := now
	jobID, err := s.spawner.SpawnDailyJob(ctx, forDay)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to spawn daily job")
	} else {
		s.logger.Info().Str("job_id", jobID).Msg("spawned daily job")
	}
	metrics.RecordSchedulerRun("cron")

	s.mu.Lock()
	s.nextRun = s.cron.NextRun(now, s.config.Timezone)
	next := s.nextRun
	s.mu.Unlock()
	metrics.UpdateSchedulerNextRun(next)
}

func (s *Scheduler) runProbe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.probe.Probe(probeCtx); err != nil {
		s.logger.Warn().Err(err).Msg("credential probe failed")
	} else {
		s.logger.Debug().Msg("credential probe succeeded")
	}
}

// IsRunning reports whether the scheduler loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun reports the next scheduled daily-job time.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}
