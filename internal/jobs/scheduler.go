package jobs

import (
	"context"
	"fmt"
	"time"

	"music-ledger-go/internal/database"
	"music-ledger-go/internal/metrics"
	"music-ledger-go/internal/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	jobVipSweep       = "vip_sweep"
	jobReconcile      = "reconcile"
	jobLimiterCleanup = "limiter_cleanup"

	limiterCleanupSchedule = "@every 5m"
	limiterMaxIdle         = 10 * time.Minute
	jobTimeout             = 5 * time.Minute
)

type VipExpirer interface {
	ExpireVip(ctx context.Context, now time.Time) (int64, error)
}

type Reconciler interface {
	ReconcileAll(ctx context.Context) (*database.ReconcileResult, error)
}

type LimiterSweeper interface {
	Cleanup(maxIdle time.Duration) int
}

type scheduledJob struct {
	name     string
	schedule string
	run      func()
}

// Scheduler runs the ledger's periodic maintenance on cron schedules.
// Reconciliation only reports; it never touches balances.
type Scheduler struct {
	cron       *cron.Cron
	vip        VipExpirer
	reconciler Reconciler
	limiter    LimiterSweeper
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers the configured jobs. An empty schedule disables that job;
// a nil limiter disables limiter cleanup.
func NewScheduler(cfg models.JobsConfig, vip VipExpirer, reconciler Reconciler, limiter LimiterSweeper) (*Scheduler, error) {
	logger := cronLogger{zap.S().Named("cron")}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		vip:        vip,
		reconciler: reconciler,
		limiter:    limiter,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	jobs := []scheduledJob{
		{jobVipSweep, cfg.VipSweepSchedule, s.runVipSweep},
		{jobReconcile, cfg.ReconcileSchedule, s.runReconcile},
	}
	if limiter != nil {
		jobs = append(jobs, scheduledJob{jobLimiterCleanup, limiterCleanupSchedule, s.runLimiterCleanup})
	}

	for _, job := range jobs {
		if job.schedule == "" {
			zap.L().Info("Job disabled", zap.String("job", job.name))
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q for job %s: %w", job.schedule, job.name, err)
		}
		zap.L().Debug("Job registered", zap.String("job", job.name), zap.String("schedule", job.schedule))
	}

	return s, nil
}

// Jobs reports how many jobs are scheduled.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	zap.L().Info("Starting job scheduler", zap.Int("jobs", s.Jobs()))
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	zap.L().Info("Stopping job scheduler")
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
	zap.L().Info("Job scheduler stopped")
}

func (s *Scheduler) runVipSweep() {
	s.track(jobVipSweep, func(ctx context.Context) error {
		expired, err := s.vip.ExpireVip(ctx, s.now())
		if err != nil {
			return err
		}
		if expired > 0 {
			zap.L().Info("Expired VIP entitlements", zap.Int64("users", expired))
		}
		return nil
	})
}

func (s *Scheduler) runReconcile() {
	s.track(jobReconcile, func(ctx context.Context) error {
		result, err := s.reconciler.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		metrics.SetReconcileMismatches(len(result.Mismatched))
		if len(result.Mismatched) > 0 {
			zap.L().Error("Balance reconciliation found mismatches",
				zap.Int("checked", result.Checked),
				zap.Strings("user_ids", result.Mismatched))
		}
		return nil
	})
}

func (s *Scheduler) runLimiterCleanup() {
	s.track(jobLimiterCleanup, func(ctx context.Context) error {
		if removed := s.limiter.Cleanup(limiterMaxIdle); removed > 0 {
			zap.L().Debug("Dropped idle rate limiters", zap.Int("removed", removed))
		}
		return nil
	})
}

func (s *Scheduler) track(job string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.RecordJobRun(job, time.Since(start), err == nil)
	if err != nil {
		zap.L().Error("Job failed", zap.String("job", job), zap.Error(err))
	}
}

// cronLogger routes cron's internal logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
