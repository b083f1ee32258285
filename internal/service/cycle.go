package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"homework-watcher/internal/alerting"
	"homework-watcher/internal/fetcher"
	"homework-watcher/internal/homework"
	"homework-watcher/internal/metrics"
)

// CycleRunner executes one fetch, validate, notify pass.
type CycleRunner interface {
	Run(ctx context.Context, since int64) Outcome
}

// Cycle is the production CycleRunner.
type Cycle struct {
	fetcher  fetcher.StatusFetcher
	notifier alerting.Notifier
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewCycle wires the collaborators of a poll cycle. m may be nil.
func NewCycle(f fetcher.StatusFetcher, n alerting.Notifier, m *metrics.Metrics, logger zerolog.Logger) *Cycle {
	return &Cycle{
		fetcher:  f,
		notifier: n,
		metrics:  m,
		logger:   logger.With().Str("component", "cycle").Logger(),
	}
}

// Run fetches statuses changed since the cursor and announces the newest one.
// It never retries; the next scheduled cycle is the retry.
func (c *Cycle) Run(ctx context.Context, since int64) Outcome {
	start := time.Now()
	out := c.run(ctx, since)
	c.metrics.ObserveCycle(string(out.State), string(out.Kind), time.Since(start))
	return out
}

func (c *Cycle) run(ctx context.Context, since int64) Outcome {
	log := c.logger.With().Int64("from_date", since).Logger()
	log.Info().Msg("cycle started")

	raw, err := c.fetcher.FetchStatuses(ctx, since)
	if err != nil {
		err = fmt.Errorf("fetch homework statuses: %w", err)
		log.Error().Err(err).Msg("fetch failed")
		return failed(KindFetch, err)
	}

	payload, err := homework.Decode(raw)
	if err != nil {
		log.Error().Err(err).Msg("fetch returned malformed body")
		return failed(KindFetch, err)
	}
	log.Info().Int("bytes", len(raw)).Msg("fetch succeeded")

	currentDate, _ := homework.CurrentDate(payload)

	hw, err := homework.Validate(payload)
	if errors.Is(err, homework.ErrEmptyQueue) {
		log.Info().Msg("no status changes")
		return Outcome{State: StateNoChange, CurrentDate: currentDate}
	}
	if err != nil {
		err = fmt.Errorf("validate response: %w", err)
		log.Error().Err(err).Str("kind", string(homework.KindOf(err))).Msg("validation failed")
		out := failed(validationKind(err), err)
		out.CurrentDate = currentDate
		return out
	}
	log.Info().Str("homework", hw.Name).Str("status", string(hw.Status)).Msg("validation passed")

	text := homework.Format(hw)
	err = c.notifier.Send(ctx, text)
	c.metrics.ObserveNotification(err)
	if err != nil {
		err = fmt.Errorf("send notification: %w", err)
		log.Error().Err(err).Msg("notify failed")
		out := failed(KindNotify, err)
		out.Text = text
		out.CurrentDate = currentDate
		return out
	}
	log.Info().Str("homework", hw.Name).Msg("notification sent")

	return Outcome{State: StateNotified, Text: text, CurrentDate: currentDate}
}

var _ CycleRunner = (*Cycle)(nil)
