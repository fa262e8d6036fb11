package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// ErrLockNotAcquired is returned by [Scheduler.RunOnce] when another
// process holds the sweep lock. The run is skipped, not retried.
var ErrLockNotAcquired = errors.New("reconcile: sweep lock held elsewhere")

// SweepFunc performs one reconciliation pass and returns the number of
// index entries it removed.
type SweepFunc func(ctx context.Context) (int, error)

// Config controls a [Scheduler].
type Config struct {
	// Interval between scheduled sweeps. Must be at least one second.
	Interval time.Duration
	// LockKey enables the cross-process lock when non-empty.
	LockKey string
	// LockTTL bounds how long a crashed holder can block other processes.
	// Zero uses Interval.
	LockTTL time.Duration
	Logger  *slog.Logger
	// OnRun, if set, is called after every attempted run, including runs
	// skipped because the lock was busy.
	OnRun func(swept int, err error)
}

// Scheduler runs a sweep on a fixed interval. Overlapping runs are skipped.
type Scheduler struct {
	cfg    Config
	sweep  SweepFunc
	logger *slog.Logger
	rs     *redsync.Redsync
	cron   *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once
}

// New builds a stopped scheduler. client is only used when cfg.LockKey is
// set and may be nil otherwise.
func New(client redis.UniversalClient, cfg Config, sweep SweepFunc) (*Scheduler, error) {
	if sweep == nil {
		return nil, errors.New("reconcile: sweep func is required")
	}
	if cfg.Interval < time.Second {
		return nil, errors.New("reconcile: interval must be >= 1s")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		cfg:    cfg,
		sweep:  sweep,
		logger: logger.With("component", "reconcile"),
	}

	if cfg.LockKey != "" {
		if client == nil {
			return nil, errors.New("reconcile: lock requires a redis client")
		}
		s.rs = redsync.New(goredis.NewPool(client))
	}

	cl := cronLogger{l: s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := fmt.Sprintf("@every %s", cfg.Interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("reconcile: schedule %q: %w", spec, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Start begins scheduled sweeps. Calling it more than once has no effect.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.cron.Start()
		s.logger.Info("cleanup scheduled", "interval", s.cfg.Interval, "locked", s.rs != nil)
	})
}

// Stop cancels any in-flight sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.cron.Stop().Done()
	})
}

// RunOnce performs a single sweep, taking the lock first when one is
// configured.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	if s.rs == nil {
		return s.sweep(ctx)
	}

	mutex := s.rs.NewMutex(s.cfg.LockKey,
		redsync.WithTries(1),
		redsync.WithExpiry(s.cfg.LockTTL),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %v", ErrLockNotAcquired, err)
	}
	// An unreleased lock expires after LockTTL.
	defer func() { _, _ = mutex.Unlock() }()

	return s.sweep(ctx)
}

func (s *Scheduler) tick() {
	start := time.Now()
	swept, err := s.RunOnce(s.ctx)

	switch {
	case errors.Is(err, ErrLockNotAcquired):
		s.logger.Debug("cleanup skipped, lock busy")
	case err != nil:
		s.logger.Warn("cleanup failed", "error", err)
	default:
		s.logger.Info("cleanup finished", "swept", swept, "took", time.Since(start))
	}

	if s.cfg.OnRun != nil {
		s.cfg.OnRun(swept, err)
	}
}

// cronLogger routes cron's internal logging to slog. Cron's Info chatter is
// demoted to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
