package sweeper

import (
	"context"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/bolthost/runtime/internal/logger"
)

// Scheduler drives RunAll on a cron schedule. Each tick gets a fresh
// request id so sweep log lines can be correlated per run.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	log     *zerolog.Logger
}

// NewScheduler builds a Scheduler that invokes sweeper.RunAll according to
// cronExpr (standard 5-field syntax, e.g. "*/5 * * * *").
func NewScheduler(sweeper *Sweeper, cronExpr string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		log:     logger.Component("sweeper-scheduler"),
	}
	if _, err := s.cron.AddFunc(cronExpr, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("recovered from panic in scheduled sweep")
		}
	}()

	requestID := "rt_" + uuid.NewString()
	count, err := s.sweeper.RunAll(context.Background(), requestID)
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduled bulk sweep failed")
		return
	}
	s.log.Debug().Int("actor_count", count).Msg("scheduled bulk sweep complete")
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for any in-flight tick to finish.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
