package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homework-watcher/internal/metrics"
	"homework-watcher/internal/scheduler"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
	limit  int
	cancel context.CancelFunc
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps++
	c.now = c.now.Add(d)
	done := c.sleeps >= c.limit
	c.mu.Unlock()
	if done {
		c.cancel()
	}
	return ctx.Err()
}

type cycleFunc func(ctx context.Context, since int64) Outcome

func (f cycleFunc) Run(ctx context.Context, since int64) Outcome { return f(ctx, since) }

type stubLocker struct {
	acquired bool
	err      error
	calls    int
	unlocked int
}

func (l *stubLocker) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	l.calls++
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.unlocked++ }, true, nil
}

var epoch = time.Unix(1_700_000_000, 0).UTC()

func runLoop(t *testing.T, iterations int, interval time.Duration, cycle CycleRunner, n *recordingNotifier) *fakeClock {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: epoch, limit: iterations, cancel: cancel}
	sched := scheduler.New(scheduler.Options{Interval: interval, Clock: clock}, zerolog.Nop())
	p, err := NewPoller(Options{Interval: interval}, sched, cycle, n, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	err = p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	return clock
}

func TestPollerFailureIsolation(t *testing.T) {
	const iterations = 5
	n := &recordingNotifier{}
	calls := 0
	cycle := cycleFunc(func(context.Context, int64) Outcome {
		calls++
		return failed(KindFetch, errors.New("api unavailable"))
	})

	clock := runLoop(t, iterations, time.Minute, cycle, n)

	assert.Equal(t, iterations, calls)
	assert.Equal(t, iterations, n.count())
	assert.Equal(t, iterations, clock.sleeps)
	for _, text := range n.sent {
		assert.Equal(t, "Bot failure: api unavailable", text)
	}
}

func TestPollerScenarioDFetchFailureContinues(t *testing.T) {
	f := &stubFetcher{err: errors.New("503 service unavailable")}
	n := &recordingNotifier{}
	p, err := NewPoller(Options{Interval: 10 * time.Minute}, nil, newTestCycle(f, n), n, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, true)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, KindFetch, out.Kind)
	require.Equal(t, 1, n.count())
	assert.True(t, strings.HasPrefix(n.sent[0], "Bot failure: "))
	assert.Contains(t, n.sent[0], "503 service unavailable")

	// The next cycle still runs.
	f2 := &stubFetcher{err: errors.New("503 service unavailable")}
	n2 := &recordingNotifier{}
	runLoop(t, 2, 10*time.Minute, newTestCycle(f2, n2), n2)
	assert.Len(t, f2.calls, 2)
	assert.Equal(t, 2, n2.count())
}

func TestPollerNoChangeIsQuiet(t *testing.T) {
	f := &stubFetcher{body: `{"homeworks": [], "current_date": 1000}`}
	n := &recordingNotifier{}

	runLoop(t, 3, time.Minute, newTestCycle(f, n), n)

	assert.Len(t, f.calls, 3)
	assert.Zero(t, n.count())
}

func TestPollerNotifyFailureIsNotResent(t *testing.T) {
	f := &stubFetcher{body: `{"homeworks": [{"homework_name":"hw1","status":"approved"}], "current_date": 1000}`}
	n := &recordingNotifier{err: errors.New("telegram down")}
	p, err := NewPoller(Options{Interval: time.Minute}, nil, newTestCycle(f, n), n, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, true)
	assert.Equal(t, KindNotify, out.Kind)
	assert.Equal(t, 1, n.count(), "delivery failure must not trigger a second message")
}

func TestPollerRecoversPanics(t *testing.T) {
	n := &recordingNotifier{}
	cycle := cycleFunc(func(context.Context, int64) Outcome { panic("nil map") })

	clock := runLoop(t, 3, time.Minute, cycle, n)

	assert.Equal(t, 3, clock.sleeps)
	require.Equal(t, 3, n.count())
	assert.Equal(t, "Bot failure: cycle panicked: nil map", n.sent[0])
}

func TestPollerCountsPanickedCycles(t *testing.T) {
	reg := prometheus.NewRegistry()
	cycle := cycleFunc(func(context.Context, int64) Outcome { panic("boom") })
	p, err := NewPoller(Options{Interval: time.Minute}, nil, cycle, &recordingNotifier{}, nil, metrics.New(reg), zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, true)
	require.Equal(t, KindInternal, out.Kind)

	expected := `
# HELP hwwatcher_cycles_total Poll cycles by outcome and error kind
# TYPE hwwatcher_cycles_total counter
hwwatcher_cycles_total{kind="internal",outcome="failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "hwwatcher_cycles_total"))
}

func TestPollerSubSecondIntervalStillOverlaps(t *testing.T) {
	var seen []int64
	cycle := cycleFunc(func(_ context.Context, since int64) Outcome {
		seen = append(seen, since)
		return Outcome{State: StateNoChange}
	})
	p, err := NewPoller(Options{Interval: 500 * time.Millisecond}, nil, cycle, &recordingNotifier{}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	p.Poll(context.Background(), epoch, true)

	assert.Equal(t, []int64{epoch.Unix() - 1}, seen)
}

func TestPollerCursorOverlapWindow(t *testing.T) {
	var seen []int64
	cycle := cycleFunc(func(_ context.Context, since int64) Outcome {
		seen = append(seen, since)
		return Outcome{State: StateNoChange, CurrentDate: 42}
	})
	p, err := NewPoller(Options{Interval: 10 * time.Minute}, nil, cycle, &recordingNotifier{}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	p.Poll(context.Background(), epoch, true)
	p.Poll(context.Background(), epoch.Add(10*time.Minute), true)

	assert.Equal(t, []int64{epoch.Unix() - 600, epoch.Unix()}, seen)
	assert.Equal(t, epoch.Unix(), p.Cursor())
}

func TestPollerCursorTracksServerDate(t *testing.T) {
	var seen []int64
	cycle := cycleFunc(func(_ context.Context, since int64) Outcome {
		seen = append(seen, since)
		return Outcome{State: StateNoChange, CurrentDate: since + 1}
	})
	p, err := NewPoller(Options{Interval: time.Minute, TrackServerDate: true}, nil, cycle, &recordingNotifier{}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	p.Poll(context.Background(), epoch, true)
	p.Poll(context.Background(), epoch.Add(time.Hour), true)

	assert.Equal(t, []int64{epoch.Unix() - 60, epoch.Unix() - 59}, seen)
}

func TestPollerSkipsWhenLockHeld(t *testing.T) {
	n := &recordingNotifier{}
	ran := false
	cycle := cycleFunc(func(context.Context, int64) Outcome {
		ran = true
		return Outcome{State: StateNotified}
	})
	locker := &stubLocker{acquired: false}
	p, err := NewPoller(Options{Interval: time.Minute, LockKey: 7}, nil, cycle, n, locker, nil, zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, true)
	assert.Equal(t, StateNoChange, out.State)
	assert.False(t, ran)
	assert.Equal(t, 1, locker.calls)
	assert.Zero(t, n.count())
}

func TestPollerReleasesLock(t *testing.T) {
	locker := &stubLocker{acquired: true}
	cycle := cycleFunc(func(context.Context, int64) Outcome { return Outcome{State: StateNoChange} })
	p, err := NewPoller(Options{Interval: time.Minute, LockKey: 7}, nil, cycle, &recordingNotifier{}, locker, nil, zerolog.Nop())
	require.NoError(t, err)

	p.Poll(context.Background(), epoch, true)
	assert.Equal(t, 1, locker.unlocked)
}

func TestPollerReportsLockErrors(t *testing.T) {
	n := &recordingNotifier{}
	locker := &stubLocker{err: errors.New("db down")}
	cycle := cycleFunc(func(context.Context, int64) Outcome { return Outcome{State: StateNoChange} })
	p, err := NewPoller(Options{Interval: time.Minute, LockKey: 7}, nil, cycle, n, locker, nil, zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, true)
	assert.Equal(t, KindInternal, out.Kind)
	require.Equal(t, 1, n.count())
	assert.Contains(t, n.sent[0], "db down")
}

func TestPollWithoutReport(t *testing.T) {
	n := &recordingNotifier{}
	cycle := cycleFunc(func(context.Context, int64) Outcome { return failed(KindFetch, errors.New("x")) })
	p, err := NewPoller(Options{Interval: time.Minute}, nil, cycle, n, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	out := p.Poll(context.Background(), epoch, false)
	assert.True(t, out.Failed())
	assert.Zero(t, n.count())
}

func TestNewPollerValidation(t *testing.T) {
	cycle := cycleFunc(func(context.Context, int64) Outcome { return Outcome{} })
	n := &recordingNotifier{}

	_, err := NewPoller(Options{}, nil, cycle, n, nil, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewPoller(Options{Interval: time.Minute}, nil, nil, n, nil, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewPoller(Options{Interval: time.Minute}, nil, cycle, nil, nil, nil, zerolog.Nop())
	assert.Error(t, err)

	p, err := NewPoller(Options{Interval: time.Minute}, nil, cycle, n, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Error(t, p.Run(context.Background()), "Run needs a scheduler")
}
