package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/housekeepd/internal/config"
	"github.com/dokzlo13/housekeepd/internal/housekeeping"
	"github.com/dokzlo13/housekeepd/internal/ledger"
	"github.com/dokzlo13/housekeepd/internal/metrics"
)

// HousekeepingService polls for due tasks and runs ledger retention.
type HousekeepingService struct {
	cfg     *config.Config
	keeper  *housekeeping.Keeper
	metrics *metrics.Metrics
	ledger  *ledger.Ledger
	cron    *cron.Cron
	now     func() time.Time
}

// NewHousekeepingService creates a new HousekeepingService. l may be nil
// when the ledger is disabled.
func NewHousekeepingService(
	cfg *config.Config,
	keeper *housekeeping.Keeper,
	m *metrics.Metrics,
	l *ledger.Ledger,
	c *cron.Cron,
) *HousekeepingService {
	return &HousekeepingService{
		cfg:     cfg,
		keeper:  keeper,
		metrics: m,
		ledger:  l,
		cron:    c,
		now:     time.Now,
	}
}

// Start runs overdue tasks once, then registers the poll on the cron.
func (s *HousekeepingService) Start(ctx context.Context) error {
	// Catch up on anything that fell due while we were down
	if _, err := s.RunDue(ctx); err != nil {
		log.Error().Err(err).Msg("Startup housekeeping run failed")
	}

	if _, err := s.cron.AddFunc(s.cfg.Housekeeping.Poll, func() {
		if _, err := s.RunDue(ctx); err != nil {
			log.Error().Err(err).Msg("Housekeeping run failed")
		}
	}); err != nil {
		return err
	}
	log.Info().Str("poll", s.cfg.Housekeeping.Poll).Msg("Housekeeping poll scheduled")

	if s.ledger != nil {
		go s.runLedgerCleanup(ctx)
	}
	return nil
}

// RunDue executes due tasks and records the outcome.
func (s *HousekeepingService) RunDue(ctx context.Context) (housekeeping.RunReport, error) {
	report, err := s.keeper.RunDue(ctx)
	if err != nil {
		return report, err
	}

	s.metrics.ObserveRun(report, s.now().Unix())

	event := log.Debug()
	if report.Executed > 0 || report.Failed > 0 || report.Reset {
		event = log.Info()
	}
	event.
		Str("run_id", report.RunID).
		Int("executed", report.Executed).
		Int("failed", report.Failed).
		Int("remaining", report.Remaining).
		Bool("reset", report.Reset).
		Msg("Housekeeping run finished")

	return report, nil
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *HousekeepingService) runLedgerCleanup(ctx context.Context) {
	retention := s.cfg.Ledger.RetentionPeriod.Duration()
	interval := s.cfg.Ledger.RetentionInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(ctx, retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
