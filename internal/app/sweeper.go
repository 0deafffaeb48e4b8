package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/flowrun/pkg/schema"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweep once a minute.
const DefaultSweepSchedule = "@every 1m"

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Sweeper evicts expired tasks from an Application on a cron schedule.
type Sweeper struct {
	app      *Application
	schedule cron.Schedule
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewSweeper parses spec (standard five-field cron or a descriptor such as
// "@every 5m").
func NewSweeper(app *Application, spec string, logger *slog.Logger) (*Sweeper, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid sweep schedule %q", spec).WithCause(err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{app: app, schedule: sched, logger: logger}, nil
}

// NextRun returns the first sweep after from.
func (s *Sweeper) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background loop.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already started")
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(sweepCtx, s.done)
	s.logger.Info("task sweeper started")
	return nil
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		timer := time.NewTimer(time.Until(s.schedule.Next(time.Now())))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.app.Sweep()
		}
	}
}

// Stop shuts the loop down and waits for it to exit.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("task sweeper stopped")
	return nil
}
