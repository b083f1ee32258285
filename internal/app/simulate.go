package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homework-watcher/internal/fetcher"
	"homework-watcher/internal/homework"
	"homework-watcher/internal/service"
)

// SimulateOptions describe the fake record pushed through a cycle.
type SimulateOptions struct {
	Name   string
	Status string
}

// SimulateNotify runs one real cycle against a canned payload, so the
// configured chat receives exactly what a status change would produce.
func (a *App) SimulateNotify(ctx context.Context, opts SimulateOptions) (service.Outcome, error) {
	if !homework.Status(opts.Status).Valid() {
		return service.Outcome{}, fmt.Errorf("unknown status %q", opts.Status)
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return service.Outcome{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"homeworks":    []map[string]string{{"homework_name": opts.Name, "status": opts.Status}},
		"current_date": time.Now().Unix(),
	})
	if err != nil {
		return service.Outcome{}, err
	}

	cycle := service.NewCycle(&staticFetcher{payload: payload}, notifier, nil, a.Logger)
	out := cycle.Run(ctx, time.Now().Unix())
	if out.Failed() {
		return out, out.Err
	}
	return out, nil
}

type staticFetcher struct {
	payload json.RawMessage
}

func (s *staticFetcher) FetchStatuses(context.Context, int64) (json.RawMessage, error) {
	return s.payload, nil
}

var _ fetcher.StatusFetcher = (*staticFetcher)(nil)
