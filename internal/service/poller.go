package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"homework-watcher/internal/alerting"
	"homework-watcher/internal/homework"
	"homework-watcher/internal/metrics"
	"homework-watcher/internal/scheduler"
)

// Locker guards against two pollers announcing the same change.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Options configure the poll loop.
type Options struct {
	// Interval is both the pacing between cycles and the overlap window
	// subtracted from the current time to build the cursor.
	Interval time.Duration
	// TrackServerDate moves the cursor to the current_date acknowledged by
	// the API instead of now-Interval once one has been seen.
	TrackServerDate bool
	// LockKey is the advisory lock key; zero disables locking.
	LockKey int64
}

// Poller owns the cursor and is the error boundary of the system: nothing
// that happens inside a cycle stops the next one from running.
type Poller struct {
	opts      Options
	scheduler *scheduler.Scheduler
	cycle     CycleRunner
	notifier  alerting.Notifier
	locker    Locker
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	cursor     int64
	serverDate int64
}

// NewPoller validates and assembles the poll loop. sched may be nil when only
// Poll is used; locker and m may be nil.
func NewPoller(opts Options, sched *scheduler.Scheduler, cycle CycleRunner, notifier alerting.Notifier, locker Locker, m *metrics.Metrics, logger zerolog.Logger) (*Poller, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	if cycle == nil {
		return nil, errors.New("poll cycle not configured")
	}
	if notifier == nil {
		return nil, errors.New("notifier not configured")
	}
	return &Poller{
		opts:      opts,
		scheduler: sched,
		cycle:     cycle,
		notifier:  notifier,
		locker:    locker,
		metrics:   m,
		logger:    logger.With().Str("component", "poller").Logger(),
	}, nil
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return p.scheduler.Run(ctx, p.Tick)
}

// Tick is the scheduler callback. It always returns nil: failures are
// reported through the notifier, not up the stack.
func (p *Poller) Tick(ctx context.Context, now time.Time) error {
	p.Poll(ctx, now, true)
	return nil
}

// Poll advances the cursor and runs one cycle. When report is set, failed
// cycles are announced in chat once.
func (p *Poller) Poll(ctx context.Context, now time.Time, report bool) Outcome {
	unlock, proceed, err := p.acquireLock(ctx)
	if err != nil {
		out := failed(KindInternal, fmt.Errorf("acquire poll lock: %w", err))
		p.finish(ctx, out, report)
		return out
	}
	if !proceed {
		p.logger.Debug().Time("tick", now).Msg("skip cycle because advisory lock held elsewhere")
		return Outcome{State: StateNoChange}
	}
	if unlock != nil {
		defer unlock()
	}

	since := p.advanceCursor(now)
	out := p.runCycle(ctx, since)
	if out.CurrentDate > 0 {
		p.serverDate = out.CurrentDate
	}

	p.finish(ctx, out, report)
	return out
}

// Cursor returns the from_date used by the most recent cycle.
func (p *Poller) Cursor() int64 {
	return p.cursor
}

func (p *Poller) advanceCursor(now time.Time) int64 {
	// Round up so a sub-second interval still overlaps the previous cycle.
	window := int64((p.opts.Interval + time.Second - 1) / time.Second)
	since := now.Unix() - window
	if p.opts.TrackServerDate && p.serverDate > 0 {
		since = p.serverDate
	}
	p.cursor = since
	p.metrics.SetCursor(since)
	return since
}

func (p *Poller) runCycle(ctx context.Context, since int64) (out Outcome) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("cycle panicked: %v", r)
			p.logger.Error().Err(err).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			out = failed(KindInternal, err)
			p.metrics.ObserveCycle(string(out.State), string(out.Kind), time.Since(started))
		}
	}()
	return p.cycle.Run(ctx, since)
}

func (p *Poller) finish(ctx context.Context, out Outcome, report bool) {
	event := p.logger.Info()
	if out.Failed() {
		event = p.logger.Warn().Str("kind", string(out.Kind)).Str("error", out.Message)
	}
	event.Str("outcome", string(out.State)).Int64("cursor", p.cursor).Msg("cycle finished")

	if !report || !out.Reportable() {
		return
	}
	if ctx.Err() != nil {
		p.logger.Debug().Msg("context cancelled, failure not reported")
		return
	}

	err := p.notifier.Send(ctx, homework.FailureMessage(out.Message))
	p.metrics.ObserveNotification(err)
	if err != nil {
		p.logger.Error().Err(err).Str("kind", string(out.Kind)).Msg("failure report not delivered")
		return
	}
	p.logger.Info().Str("kind", string(out.Kind)).Msg("failure reported")
}

func (p *Poller) acquireLock(ctx context.Context) (func(), bool, error) {
	if p.opts.LockKey == 0 || p.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := p.locker.TryAdvisoryLock(ctx, p.opts.LockKey)
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
