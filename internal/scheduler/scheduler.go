// Package scheduler drives the settlement keeper and alert monitor on cron
// schedules for deployments without an external trigger.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/nawasena/options-api/internal/alerts"
	"github.com/nawasena/options-api/internal/keeper"
)

// Scheduler owns the cron runner and the two periodic jobs.
type Scheduler struct {
	cron    *cron.Cron
	keeper  *keeper.Service
	monitor *alerts.Monitor
	ctx     context.Context
}

// New creates a scheduler over the keeper and monitor.
func New(ctx context.Context, k *keeper.Service, m *alerts.Monitor) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		keeper:  k,
		monitor: m,
		ctx:     ctx,
	}
}

// Register adds the keeper and monitor jobs with their cron expressions.
func (s *Scheduler) Register(keeperSpec, monitorSpec string) error {
	if _, err := s.cron.AddFunc(keeperSpec, s.runKeeper); err != nil {
		return fmt.Errorf("register keeper job: %w", err)
	}
	if _, err := s.cron.AddFunc(monitorSpec, s.runMonitor); err != nil {
		return fmt.Errorf("register monitor job: %w", err)
	}
	return nil
}

// Start starts the cron runner.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("scheduler started")
}

// Stop stops the cron runner gracefully.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runKeeper() {
	result := s.keeper.Run(s.ctx)
	if !result.Success {
		log.Error().Str("error", result.Error).Msg("scheduled settlement run failed")
		return
	}
	if result.Settled > 0 {
		log.Info().Int("settled", result.Settled).Str("tx_hash", result.TxHash).Msg("scheduled settlement run completed")
	}
}

func (s *Scheduler) runMonitor() {
	result := s.monitor.Run(s.ctx)
	if !result.Success {
		log.Error().Msg("scheduled alert monitor run failed")
	}
}
