package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

func fastConfig() Config {
	return Config{
		MaxRetries:         3,
		BackoffBase:        time.Millisecond,
		BackoffCap:         2 * time.Millisecond,
		CooldownMin:        time.Millisecond,
		CooldownMax:        2 * time.Millisecond,
		MinAvailableMemory: 0,
	}
}

func testAccount() bank.Account {
	return bank.Account{Site: bank.SiteEstado, CompanyID: "77469173-1", PersonID: "12345678-5", Label: "STS CRISTOBAL"}
}

func record(op string) bank.Transfer {
	t := bank.Transfer{OperationID: op, DetectedAt: "15/01/2026", Amount: 500, PayerTaxID: "12345678-5", CompanyLabel: "STS CRISTOBAL"}
	t.ContentHash = bank.ContentHash(t)
	return t
}

func TestRunOnceSuccess(t *testing.T) {
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		return []bank.Transfer{record("op1"), record("op2")}, nil
	}

	var sunk []bank.Transfer
	sink := func(ctx context.Context, records []bank.Transfer) error {
		sunk = records
		return nil
	}

	w := New("test", testAccount(), attempt, sink, fastConfig(), zerolog.Nop())
	res := w.RunOnce(context.Background())

	require.NoError(t, res.Err)
	assert.Len(t, res.Records, 2)
	assert.Len(t, sunk, 2)
	assert.Equal(t, StateDone, w.State())
}

func TestRunOnceRetriesThenSucceeds(t *testing.T) {
	calls := 0
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient portal error")
		}
		return []bank.Transfer{record("op1")}, nil
	}

	w := New("test", testAccount(), attempt, nil, fastConfig(), zerolog.Nop())
	res := w.RunOnce(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, 3, calls)
	assert.Len(t, res.Records, 1)
}

func TestRunOnceExhaustionDefersNotFails(t *testing.T) {
	boom := errors.New("portal down")
	calls := 0
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		calls++
		return nil, boom
	}

	w := New("test", testAccount(), attempt, nil, fastConfig(), zerolog.Nop())
	res := w.RunOnce(context.Background())

	assert.Equal(t, 3, calls)
	assert.Empty(t, res.Records)
	assert.True(t, errors.Is(res.Err, boom))
	assert.Equal(t, StateAborted, w.State())
}

func TestRunOnceLockoutCoolsDownAndRetries(t *testing.T) {
	calls := 0
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("%w: 77469173-1", bank.ErrSecurityBlocked)
		}
		return []bank.Transfer{record("op1")}, nil
	}

	w := New("test", testAccount(), attempt, nil, fastConfig(), zerolog.Nop())
	res := w.RunOnce(context.Background())

	require.NoError(t, res.Err)
	assert.Equal(t, 2, calls)
	assert.Len(t, res.Records, 1)
}

func TestRunOnceSinkFailureIsNotFatal(t *testing.T) {
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		return []bank.Transfer{record("op1")}, nil
	}
	sink := func(ctx context.Context, records []bank.Transfer) error {
		return errors.New("disk full")
	}

	w := New("test", testAccount(), attempt, sink, fastConfig(), zerolog.Nop())
	res := w.RunOnce(context.Background())

	require.NoError(t, res.Err)
	assert.Len(t, res.Records, 1)
	assert.Equal(t, StateDone, w.State())
}

func TestRunOnceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		t.Fatal("attempt must not run after cancellation")
		return nil, nil
	}

	w := New("test", testAccount(), attempt, nil, fastConfig(), zerolog.Nop())
	res := w.RunOnce(ctx)

	assert.True(t, errors.Is(res.Err, context.Canceled))
}

func TestRunOnceHeartbeats(t *testing.T) {
	beats := 0
	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		return nil, nil
	}

	w := New("test", testAccount(), attempt, nil, fastConfig(), zerolog.Nop()).
		WithHeartbeat(func() { beats++ })
	w.RunOnce(context.Background())

	assert.GreaterOrEqual(t, beats, 2)
}

func TestRunOnceSkipsWhenMemoryStaysLow(t *testing.T) {
	cfg := fastConfig()
	cfg.MinAvailableMemory = 1 << 30
	cfg.MemoryRecheck = time.Millisecond
	cfg.MaxMemoryWaits = 2

	attempt := func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		t.Fatal("attempt must not run while memory is low")
		return nil, nil
	}

	w := New("test", testAccount(), attempt, nil, cfg, zerolog.Nop())
	w.availMem = func() (uint64, error) { return 1 << 20, nil }

	res := w.RunOnce(context.Background())
	assert.Empty(t, res.Records)
	assert.NoError(t, res.Err)
}

func TestBackoffCappedWithJitter(t *testing.T) {
	cfg := DefaultConfig()
	w := New("test", testAccount(), nil, nil, cfg, zerolog.Nop())

	for attempt := 1; attempt <= 5; attempt++ {
		d := w.backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, cfg.BackoffCap+time.Second)
	}
}

func TestCooldownWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	w := New("test", testAccount(), nil, nil, cfg, zerolog.Nop())

	for i := 0; i < 20; i++ {
		d := w.cooldown()
		assert.GreaterOrEqual(t, d, cfg.CooldownMin)
		assert.Less(t, d, cfg.CooldownMax)
	}
}

// Three accounts harvested concurrently must never produce colliding
// content hashes for distinct operations.
func TestConcurrentWorkersDistinctHashes(t *testing.T) {
	var (
		mu     sync.Mutex
		hashes = map[string]int{}
		wg     sync.WaitGroup
	)

	for i := 0; i < 3; i++ {
		acct := testAccount()
		acct.Label = fmt.Sprintf("company-%d", i)
		attempt := func(ctx context.Context, a bank.Account) ([]bank.Transfer, error) {
			var out []bank.Transfer
			for j := 0; j < 5; j++ {
				r := bank.Transfer{OperationID: fmt.Sprintf("op-%d", j), DetectedAt: "15/01/2026", Amount: 500, CompanyLabel: a.Label}
				r.ContentHash = bank.ContentHash(r)
				out = append(out, r)
			}
			return out, nil
		}

		w := New(fmt.Sprintf("w%d", i), acct, attempt, nil, fastConfig(), zerolog.Nop())
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := w.RunOnce(context.Background())
			mu.Lock()
			defer mu.Unlock()
			for _, r := range res.Records {
				hashes[r.ContentHash]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, hashes, 15)
	for h, n := range hashes {
		assert.Equal(t, 1, n, h)
	}
}
