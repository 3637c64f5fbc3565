// Package worker composes session control, pagination and normalization
// into one end-to-end run per site/account, wrapped in bounded retry with
// lockout-aware cool-downs.
package worker

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

type RunState string

const (
	StateIdle       RunState = "idle"
	StateLoggingIn  RunState = "logging_in"
	StateExtracting RunState = "extracting"
	StateExporting  RunState = "exporting"
	StateDone       RunState = "done"
	StateRetrying   RunState = "retrying"
	StateAborted    RunState = "aborted"
)

// RunResult carries the run's records and, after retry exhaustion, the
// last error. An empty result means "try again next cycle", never a hard
// process failure.
type RunResult struct {
	Records []bank.Transfer
	Err     error
}

// AttemptFunc performs one full session attempt: open, login, navigate,
// extract, normalize, teardown. It returns bank.ErrSecurityBlocked when
// the portal locked the session out.
type AttemptFunc func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error)

// SinkFunc hands a finished batch to the persistence collaborator.
type SinkFunc func(ctx context.Context, records []bank.Transfer) error

type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Cool-down bounds after a security lockout. Minutes, not seconds;
	// immediate retries are what escalate blocks.
	CooldownMin time.Duration
	CooldownMax time.Duration

	// MinAvailableMemory pauses run starts below this many free bytes.
	MinAvailableMemory uint64
	MemoryRecheck      time.Duration
	MaxMemoryWaits     int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		BackoffBase:        3 * time.Second,
		BackoffCap:         5 * time.Second,
		CooldownMin:        8 * time.Minute,
		CooldownMax:        15 * time.Minute,
		MinAvailableMemory: 1 << 30, // 1 GiB
		MemoryRecheck:      5 * time.Minute,
		MaxMemoryWaits:     3,
	}
}

// Worker runs one account against one site. Workers never share state;
// the same account is never run by two workers at once.
type Worker struct {
	Name    string
	Account bank.Account

	attempt   AttemptFunc
	sink      SinkFunc
	cfg       Config
	log       zerolog.Logger
	heartbeat func()
	availMem  func() (uint64, error)

	state RunState
}

func New(name string, acct bank.Account, attempt AttemptFunc, sink SinkFunc, cfg Config, log zerolog.Logger) *Worker {
	return &Worker{
		Name:      name,
		Account:   acct,
		attempt:   attempt,
		sink:      sink,
		cfg:       cfg,
		log:       log.With().Str("worker", name).Logger(),
		heartbeat: func() {},
		availMem:  availableMemory,
		state:     StateIdle,
	}
}

// WithHeartbeat wires the supervisor's liveness registry.
func (w *Worker) WithHeartbeat(beat func()) *Worker {
	if beat != nil {
		w.heartbeat = beat
	}
	return w
}

func (w *Worker) State() RunState { return w.state }

// RunOnce performs one supervised run: memory guard, up to MaxRetries
// attempts with capped exponential backoff, extended cool-down on
// lockout. After exhaustion it logs the last error and returns an empty
// result rather than propagating.
func (w *Worker) RunOnce(ctx context.Context) RunResult {
	w.heartbeat()

	if !w.waitForMemory(ctx) {
		w.state = StateIdle
		return RunResult{}
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			w.state = StateIdle
			return RunResult{Err: ctx.Err()}
		}

		w.heartbeat()
		w.state = StateLoggingIn
		records, err := w.attempt(ctx, w.Account)
		if err == nil {
			w.state = StateExporting
			w.export(ctx, records)
			w.state = StateDone
			w.log.Info().Int("records", len(records)).Int("attempt", attempt).Msg("run complete")
			return RunResult{Records: records}
		}

		lastErr = err
		w.state = StateRetrying

		if errors.Is(err, bank.ErrSecurityBlocked) {
			cooldown := w.cooldown()
			w.log.Warn().Dur("cooldown", cooldown).Int("attempt", attempt).Msg("security lockout, entering cool-down")
			if !sleepCtx(ctx, cooldown) {
				w.state = StateIdle
				return RunResult{Err: ctx.Err()}
			}
			continue
		}

		backoff := w.backoff(attempt)
		w.log.Warn().Err(err).Int("attempt", attempt).Int("max", w.cfg.MaxRetries).
			Dur("backoff", backoff).Msg("run attempt failed")
		if !sleepCtx(ctx, backoff) {
			w.state = StateIdle
			return RunResult{Err: ctx.Err()}
		}
	}

	w.state = StateAborted
	w.log.Error().Err(lastErr).Msg("retries exhausted, deferring to next cycle")
	return RunResult{Err: lastErr}
}

// export hands records to the sink. Sink failures are logged only; the
// normalized records stay in the result either way.
func (w *Worker) export(ctx context.Context, records []bank.Transfer) {
	if w.sink == nil || len(records) == 0 {
		return
	}
	if err := w.sink(ctx, records); err != nil {
		w.log.Error().Err(err).Msg("sink rejected batch")
	}
}

// backoff is exponential from BackoffBase, capped at BackoffCap, with up
// to one second of jitter.
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BackoffBase << (attempt - 1)
	if d > w.cfg.BackoffCap {
		d = w.cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(2 * time.Second)))
	d += jitter - time.Second
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (w *Worker) cooldown() time.Duration {
	span := w.cfg.CooldownMax - w.cfg.CooldownMin
	if span <= 0 {
		return w.cfg.CooldownMin
	}
	return w.cfg.CooldownMin + time.Duration(rand.Int63n(int64(span)))
}

// waitForMemory pauses the run start while available system memory sits
// under the configured floor. Bounded; a starved host defers to the next
// cycle instead of blocking it forever.
func (w *Worker) waitForMemory(ctx context.Context) bool {
	if w.cfg.MinAvailableMemory == 0 {
		return true
	}
	for waits := 0; ; waits++ {
		avail, err := w.availMem()
		if err != nil {
			w.log.Warn().Err(err).Msg("memory probe failed, proceeding")
			return true
		}
		if avail >= w.cfg.MinAvailableMemory {
			return true
		}
		if waits >= w.cfg.MaxMemoryWaits {
			w.log.Warn().Uint64("available", avail).Msg("memory still low, skipping run this cycle")
			return false
		}
		w.log.Warn().Uint64("available", avail).Uint64("floor", w.cfg.MinAvailableMemory).
			Msg("low memory, pausing run start")
		if !sleepCtx(ctx, w.cfg.MemoryRecheck) {
			return false
		}
	}
}

func availableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
