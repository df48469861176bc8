package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/mandi/internal/config"
	"github.com/mamadbah2/mandi/internal/domain/models"
	"github.com/mamadbah2/mandi/internal/observability/metrics"
	"github.com/mamadbah2/mandi/internal/service/billing"
)

const digestTimeout = 2 * time.Minute

// DigestBuilder produces and persists the daily settlement digest.
type DigestBuilder interface {
	DailyDigest(ctx context.Context, day time.Time) (models.DailySettlement, error)
}

// CommitteeNotifier delivers the digest text to the committee.
type CommitteeNotifier interface {
	NotifyCommittee(ctx context.Context, message string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	digests  DigestBuilder
	notifier CommitteeNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler running in the configured market timezone.
func NewScheduler(cfg config.SettlementConfig, digests DigestBuilder, notifier CommitteeNotifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		schedule: cfg.CronSchedule,
		digests:  digests,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("settlement_schedule", s.schedule))

	if _, err := s.cron.AddFunc(s.schedule, s.runDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest %q: %w", s.schedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runDailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if err := s.SendDailyDigest(ctx); err != nil {
		s.logger.Error("daily digest failed", zap.Error(err))
	}
}

// SendDailyDigest builds today's digest and messages it to the committee.
func (s *Scheduler) SendDailyDigest(ctx context.Context) (err error) {
	defer func() { metrics.IncDigestRun(err) }()

	s.logger.Info("generating daily settlement digest")
	digest, err := s.digests.DailyDigest(ctx, s.now())
	if err != nil {
		return fmt.Errorf("build daily digest: %w", err)
	}

	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.NotifyCommittee(ctx, billing.DigestMessage(digest)); err != nil {
		return fmt.Errorf("send daily digest: %w", err)
	}

	s.logger.Info("daily digest sent",
		zap.Time("day", digest.Date),
		zap.Int("lots_traded", digest.LotsTraded),
		zap.Float64("gross_sales", digest.GrossSales))
	return nil
}
