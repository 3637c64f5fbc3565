// Package extract walks a paginated transfers table and yields its raw
// rows. The loop holds no cross-call state; restarting means re-invoking
// with a fresh pager over a fresh frame.
package extract

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
)

// Pager abstracts one rendered table page and its "Next" control. The rod
// implementation lives in pager.go; tests drive the loop with fakes.
type Pager interface {
	// WaitTable blocks until the table is visible or the timeout lapses.
	// A table that never appears is a valid terminal state, not an error.
	WaitTable(timeout time.Duration) bool

	// Rows returns the current page's raw rows.
	Rows() ([]bank.RawRow, error)

	// NextAvailable reports whether a usable Next control exists:
	// present, visible and not carrying a disabled attribute.
	NextAvailable() (bool, error)

	// ClickNext advances to the next page. The caller waits the settle
	// delay before reading again.
	ClickNext() error
}

// Cursor tracks pagination progress. Never persisted; its only job is to
// detect a non-advancing Next click.
type Cursor struct {
	PageNumber        int
	FirstRowSignature string
}

type Options struct {
	// MaxPages is the hard safety ceiling. Termination must come from
	// the signature/Next checks; this only bounds a pathological pager.
	MaxPages int

	// MinColumns drops malformed rows short of the expected cell count.
	MinColumns int

	// SignatureColumn indexes the cell used as the first-row signature.
	SignatureColumn int

	SettleDelay  time.Duration
	TableTimeout time.Duration

	Log zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxPages:        50,
		MinColumns:      7,
		SignatureColumn: 0,
		SettleDelay:     3 * time.Second,
		TableTimeout:    15 * time.Second,
	}
}

// All drains the table across pages until a termination condition fires:
// the table never appears, a page repeats the previous first-row
// signature, the Next control is unusable, or the page ceiling is hit.
// Partial results are always preferred over total failure.
func All(ctx context.Context, p Pager, opts Options) []bank.RawRow {
	var acc []bank.RawRow
	cursor := Cursor{}

	for {
		if ctx.Err() != nil {
			return acc
		}
		cursor.PageNumber++

		if !p.WaitTable(opts.TableTimeout) {
			opts.Log.Debug().Int("page", cursor.PageNumber).Msg("table did not appear, ending pagination")
			return acc
		}

		rows, err := p.Rows()
		if err != nil {
			opts.Log.Warn().Err(err).Int("page", cursor.PageNumber).Msg("row extraction failed, returning rows so far")
			return acc
		}

		usable := rows[:0:0]
		for _, row := range rows {
			if len(row) < opts.MinColumns {
				opts.Log.Warn().Int("cells", len(row)).Int("page", cursor.PageNumber).Msg("skipping short row")
				continue
			}
			usable = append(usable, row)
		}
		if len(usable) == 0 {
			return acc
		}

		sig := usable[0][opts.SignatureColumn]
		if cursor.FirstRowSignature != "" && sig == cursor.FirstRowSignature {
			// Next click did not advance the table; stop before
			// emitting the same page twice.
			opts.Log.Debug().Int("page", cursor.PageNumber).Msg("first-row signature unchanged, ending pagination")
			return acc
		}
		cursor.FirstRowSignature = sig
		acc = append(acc, usable...)

		if cursor.PageNumber >= opts.MaxPages {
			opts.Log.Warn().Int("max_pages", opts.MaxPages).Msg("pagination safety ceiling reached")
			return acc
		}

		ok, err := p.NextAvailable()
		if err != nil || !ok {
			return acc
		}
		if err := p.ClickNext(); err != nil {
			opts.Log.Warn().Err(err).Msg("next click failed, ending pagination")
			return acc
		}

		select {
		case <-ctx.Done():
			return acc
		case <-time.After(opts.SettleDelay):
		}
	}
}
