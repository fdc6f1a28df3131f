package sim_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telemon/internal/sim"
)

// recordingClock reports every wait the loop schedules. The timer is
// registered before the wait is reported so a test can safely advance the
// mock right after receiving it.
type recordingClock struct {
	*clock.Mock
	waits chan time.Duration
}

func newRecordingClock() *recordingClock {
	return &recordingClock{Mock: clock.NewMock(), waits: make(chan time.Duration, 16)}
}

func (c *recordingClock) After(d time.Duration) <-chan time.Time {
	ch := c.Mock.After(d)
	c.waits <- d
	return ch
}

type fakeModel struct {
	mu      sync.Mutex
	inits   int
	ticks   int
	initErr error
	// panicOn lists tick numbers (1-based) that panic.
	panicOn map[int]bool
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Initialize(sim.Rand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	return m.initErr
}

func (m *fakeModel) Tick(sim.Rand) sim.Aggregate {
	m.mu.Lock()
	m.ticks++
	n := m.ticks
	m.mu.Unlock()
	if m.panicOn[n] {
		panic("boom")
	}
	return sim.Aggregate{"ticks": float64(n)}
}

func (m *fakeModel) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits, m.ticks
}

type countingGuard struct {
	mu    sync.Mutex
	calls int
}

func (g *countingGuard) Update(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	fn()
}

func runLoop(t *testing.T, l *sim.Loop) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return cancel, done
}

func nextWait(t *testing.T, c *recordingClock) time.Duration {
	t.Helper()
	select {
	case d := <-c.waits:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("loop never scheduled a wait")
		return 0
	}
}

func TestLoop_TicksOnIntervalAndInitializesOnce(t *testing.T) {
	t.Parallel()

	m := &fakeModel{}
	clk := newRecordingClock()
	guard := &countingGuard{}
	l := &sim.Loop{
		Model: m, Guard: guard, Rand: sim.NewRand(1), Clock: clk,
		Interval: 5 * time.Second, Backoff: 10 * time.Second,
		Enabled: true, Logger: zaptest.NewLogger(t),
	}
	require.NoError(t, l.Init())

	cancel, done := runLoop(t, l)
	for i := 0; i < 3; i++ {
		require.Equal(t, 5*time.Second, nextWait(t, clk))
		clk.Add(5 * time.Second)
	}
	require.Equal(t, 5*time.Second, nextWait(t, clk))
	cancel()
	require.NoError(t, <-done)

	inits, ticks := m.counts()
	require.Equal(t, 1, inits)
	require.Equal(t, 4, ticks)
	guard.mu.Lock()
	require.Equal(t, 5, guard.calls)
	guard.mu.Unlock()
}

func TestLoop_BacksOffAfterPanic(t *testing.T) {
	t.Parallel()

	m := &fakeModel{panicOn: map[int]bool{2: true}}
	clk := newRecordingClock()
	l := &sim.Loop{
		Model: m, Rand: sim.NewRand(1), Clock: clk,
		Interval: 5 * time.Second, Backoff: 10 * time.Second,
		Enabled: true, Logger: zaptest.NewLogger(t),
	}

	cancel, done := runLoop(t, l)
	require.Equal(t, 5*time.Second, nextWait(t, clk))
	clk.Add(5 * time.Second)
	require.Equal(t, 10*time.Second, nextWait(t, clk), "failed tick must use the back-off")
	clk.Add(10 * time.Second)
	require.Equal(t, 5*time.Second, nextWait(t, clk), "loop must recover after a failed tick")
	cancel()
	require.NoError(t, <-done)

	_, ticks := m.counts()
	require.Equal(t, 3, ticks)
}

func TestLoop_DisabledNeverTicks(t *testing.T) {
	t.Parallel()

	m := &fakeModel{}
	clk := newRecordingClock()
	l := &sim.Loop{Model: m, Rand: sim.NewRand(1), Clock: clk, Enabled: false}

	require.NoError(t, l.Run(context.Background()))
	clk.Add(100 * time.Second)

	inits, ticks := m.counts()
	require.Equal(t, 1, inits)
	require.Zero(t, ticks)
	require.Empty(t, clk.waits)
}

func TestLoop_InitErrorIsReturnedOnce(t *testing.T) {
	t.Parallel()

	m := &fakeModel{initErr: errors.New("duplicate codec")}
	l := &sim.Loop{Model: m, Rand: sim.NewRand(1), Enabled: true}

	err := l.Init()
	require.ErrorContains(t, err, "initialize fake")
	require.ErrorIs(t, l.Run(context.Background()), m.initErr)

	inits, ticks := m.counts()
	require.Equal(t, 1, inits)
	require.Zero(t, ticks)
}
