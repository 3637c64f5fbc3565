// Package schedule runs harvest cycles on a time-of-day adaptive
// interval: tight during business hours, coarse overnight.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Band maps a half-open minute-of-day range to a sleep interval.
type Band struct {
	FromMinute int
	ToMinute   int
	Interval   time.Duration
}

// Table is an ordered set of bands; the first match wins.
type Table struct {
	Bands   []Band
	Default time.Duration
}

// DefaultTable mirrors the operating pattern the portals expect: frequent
// polling while transfers flow, hourly overnight.
func DefaultTable() Table {
	return Table{
		Bands: []Band{
			{FromMinute: 8 * 60, ToMinute: 11 * 60, Interval: 5 * time.Minute},
			{FromMinute: 11 * 60, ToMinute: 18*60 + 1, Interval: 20 * time.Minute},
			{FromMinute: 18*60 + 1, ToMinute: 24 * 60, Interval: 5 * time.Minute},
			{FromMinute: 0, ToMinute: 1, Interval: 5 * time.Minute},
			{FromMinute: 1, ToMinute: 8 * 60, Interval: 58 * time.Minute},
		},
		Default: 5 * time.Minute,
	}
}

// IntervalAt returns the sleep interval for the wall-clock moment.
func (t Table) IntervalAt(now time.Time) time.Duration {
	minute := now.Hour()*60 + now.Minute()
	for _, b := range t.Bands {
		if minute >= b.FromMinute && minute < b.ToMinute {
			return b.Interval
		}
	}
	return t.Default
}

// CycleFunc runs all configured workers once. It must swallow worker
// failures; the scheduler only cares that the cycle returns.
type CycleFunc func(ctx context.Context)

// Scheduler is a single cooperative loop. It never terminates on a
// cycle's failure; only context cancellation ends it, and cancellation
// interrupts the sleep immediately rather than after the longest band.
type Scheduler struct {
	cycle CycleFunc
	table Table
	log   zerolog.Logger
	now   func() time.Time
}

func New(cycle CycleFunc, table Table, log zerolog.Logger) *Scheduler {
	return &Scheduler{cycle: cycle, table: table, log: log, now: time.Now}
}

// Run executes cycles until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.runCycle(ctx)

		interval := s.table.IntervalAt(s.now())
		s.log.Info().Dur("sleep", interval).Msg("cycle complete, sleeping until next run")

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runCycle isolates the cycle so a panicking browser library cannot take
// the loop down with it.
func (s *Scheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("cycle panicked, continuing")
		}
	}()
	s.cycle(ctx)
}
