// Package scheduler runs the periodic re-validation of tracked posts.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/metrics"
	"github.com/postwatch-io/postwatch/internal/monitor"
)

// Scheduler sweeps every tracked (user, URL) pair on a fixed interval,
// removes posts the checker reports inactive (or with an invalid URL), and
// notifies the owner's webhook once per removal. Overlap policy: if a sweep
// is still in progress when the next tick fires, the tick is skipped —
// sweeps are idempotent re-checks, so skipping loses nothing.
type Scheduler struct {
	posts    monitor.PostStore
	users    monitor.UserStore
	checker  monitor.StatusChecker
	notifier monitor.Notifier
	clock    monitor.Clock
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New constructs a Scheduler.
func New(
	posts monitor.PostStore,
	users monitor.UserStore,
	checker monitor.StatusChecker,
	notifier monitor.Notifier,
	clock monitor.Clock,
	interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Scheduler{
		posts:    posts,
		users:    users,
		checker:  checker,
		notifier: notifier,
		clock:    clock,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the periodic sweep and returns immediately. The scheduler
// stops itself when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already started")
	}
	if s.interval <= 0 {
		return fmt.Errorf("invalid scheduler interval %v", s.interval)
	}

	cronLog := &cronLogger{logger: s.logger.Named("cron")}
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("monitor scheduler started", zap.Duration("interval", s.interval))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts the schedule and returns only after any in-flight sweep has
// finished. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil || !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info("monitor scheduler stopped")
}

// IsRunning reports whether the schedule is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunOnce performs a single sweep over every tracked pair. Failures are
// isolated per pair: a checker or store error for one post never aborts the
// rest of the sweep, and nothing here panics the process.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := s.clock.Now()
	pairs, err := s.posts.ListAll(ctx)
	if err != nil {
		s.logger.Error("sweep aborted: listing tracked posts failed", zap.Error(err))
		return
	}

	var removed int
	for _, pair := range pairs {
		if ctx.Err() != nil {
			s.logger.Info("sweep abandoned: shutdown in progress")
			return
		}
		if s.checkPair(ctx, pair) {
			removed++
		}
	}

	elapsed := s.clock.Now().Sub(start)
	metrics.ObserveRunDuration(elapsed)
	s.logger.Info("sweep finished",
		zap.Int("checked", len(pairs)),
		zap.Int("removed", removed),
		zap.Duration("elapsed", elapsed),
	)
}

// checkPair re-validates one tracked pair and reports whether it was removed.
func (s *Scheduler) checkPair(ctx context.Context, pair monitor.TrackedPost) bool {
	status, err := s.checker.CheckStatus(ctx, pair.URL)
	switch {
	case errors.Is(err, monitor.ErrInvalidPostURL):
		// Unparseable URLs can never come back; treat like inactive.
		metrics.ObserveCheck("invalid")
	case err != nil:
		metrics.ObserveCheck("error")
		s.logger.Warn("status check failed, keeping post",
			zap.String("user_id", pair.UserID),
			zap.String("url", pair.URL),
			zap.Error(err),
		)
		return false
	case status == monitor.StatusActive:
		metrics.ObserveCheck("active")
		return false
	default:
		metrics.ObserveCheck("inactive")
	}

	s.logger.Info("inactive post detected, removing",
		zap.String("user_id", pair.UserID),
		zap.String("url", pair.URL),
	)
	removed, err := s.posts.Remove(ctx, pair.UserID, pair.URL)
	if err != nil {
		s.logger.Error("failed to remove inactive post",
			zap.String("user_id", pair.UserID),
			zap.String("url", pair.URL),
			zap.Error(err),
		)
		return false
	}
	if removed {
		metrics.ObservePostRemoved()
		s.notifyOwner(ctx, pair)
	}
	return removed
}

// notifyOwner delivers at most one webhook POST for a removed post.
func (s *Scheduler) notifyOwner(ctx context.Context, pair monitor.TrackedPost) {
	webhookURL, err := s.users.Webhook(ctx, pair.UserID)
	if err != nil {
		if !errors.Is(err, monitor.ErrNotFound) {
			s.logger.Error("webhook lookup failed",
				zap.String("user_id", pair.UserID),
				zap.Error(err),
			)
		}
		return
	}
	if err := s.notifier.NotifyInactive(ctx, webhookURL, pair.URL); err != nil {
		metrics.ObserveWebhookDelivery("failed")
		s.logger.Error("webhook delivery failed",
			zap.String("user_id", pair.UserID),
			zap.String("webhook", webhookURL),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveWebhookDelivery("delivered")
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	logger *zap.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Sugar().Infow(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
