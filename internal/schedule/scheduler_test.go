package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.January, 15, hour, minute, 0, 0, time.Local)
}

func TestDefaultTableIntervals(t *testing.T) {
	table := DefaultTable()

	cases := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{"business morning", at(8, 0), 5 * time.Minute},
		{"late morning boundary", at(10, 59), 5 * time.Minute},
		{"midday", at(11, 0), 20 * time.Minute},
		{"afternoon", at(15, 30), 20 * time.Minute},
		{"end of midday band", at(18, 0), 20 * time.Minute},
		{"evening", at(18, 1), 5 * time.Minute},
		{"just before midnight", at(23, 59), 5 * time.Minute},
		{"midnight", at(0, 0), 5 * time.Minute},
		{"overnight", at(3, 0), 58 * time.Minute},
		{"pre-dawn", at(7, 59), 58 * time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, table.IntervalAt(tc.now))
		})
	}
}

func TestTableDefaultFallback(t *testing.T) {
	table := Table{Default: 7 * time.Minute}
	assert.Equal(t, 7*time.Minute, table.IntervalAt(at(12, 0)))
}

func TestRunStopsOnCancel(t *testing.T) {
	var cycles atomic.Int32
	table := Table{Default: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(func(ctx context.Context) {
		if cycles.Add(1) >= 3 {
			cancel()
		}
	}, table, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, cycles.Load(), int32(3))
}

func TestRunSurvivesPanickingCycle(t *testing.T) {
	var cycles atomic.Int32
	table := Table{Default: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(func(ctx context.Context) {
		if cycles.Add(1) >= 2 {
			cancel()
			return
		}
		panic("browser exploded")
	}, table, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not survive the panic")
	}
	assert.GreaterOrEqual(t, cycles.Load(), int32(2))
}

func TestRunCancelInterruptsSleep(t *testing.T) {
	table := Table{Default: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	s := New(func(ctx context.Context) {}, table, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cancellation did not interrupt the sleep")
	}
}
