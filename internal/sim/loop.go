package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultBackoff  = 10 * time.Second
)

// Guard serializes model updates against concurrent readers.
type Guard interface {
	Update(fn func())
}

// Loop drives one model on a fixed interval.
type Loop struct {
	Model    Model
	Guard    Guard
	Rand     Rand
	Clock    clock.Clock
	Interval time.Duration
	Backoff  time.Duration
	// Enabled false seeds the model and never ticks it.
	Enabled bool
	Logger  *zap.Logger

	initOnce sync.Once
	initErr  error
}

// Init initializes the model. Repeated calls return the first result.
func (l *Loop) Init() error {
	l.initOnce.Do(func() {
		l.guard(func() {
			l.initErr = l.Model.Initialize(l.Rand)
		})
		if l.initErr != nil {
			l.initErr = fmt.Errorf("initialize %s: %w", l.Model.Name(), l.initErr)
		}
	})
	return l.initErr
}

// Run initializes the model and ticks it until ctx is done. A failed tick
// is logged and followed by the back-off wait; it never ends the loop.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Init(); err != nil {
		return err
	}
	logger := l.logger()
	if !l.Enabled {
		logger.Info("simulation disabled, series keep their seeded values")
		return nil
	}

	clk := l.Clock
	if clk == nil {
		clk = clock.New()
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	logger.Info("simulation started", zap.Duration("interval", interval))
	for {
		wait := interval
		if err := l.tick(); err != nil {
			logger.Error("tick failed", zap.Error(err), zap.Duration("backoff", backoff))
			wait = backoff
		} else {
			logger.Debug("tick complete")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-clk.After(wait):
		}
	}
}

func (l *Loop) tick() (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s: %v", l.Model.Name(), rec)
		}
	}()
	l.guard(func() {
		l.Model.Tick(l.Rand)
	})
	return nil
}

func (l *Loop) guard(fn func()) {
	if l.Guard == nil {
		fn()
		return
	}
	l.Guard.Update(fn)
}

func (l *Loop) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger.With(zap.String("model", l.Model.Name()))
}
