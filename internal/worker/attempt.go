package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/browser"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/extract"
)

// AttemptConfig tunes one rod-backed site attempt.
type AttemptConfig struct {
	Browser      browser.Config
	Extraction   extract.Options
	Normalize    bank.NormalizeContext
	LookbackDays int
	Catalog      []browser.Fingerprint
}

// NewSiteAttempt builds the AttemptFunc for one playbook: a fresh
// fingerprint and browser per invocation, guaranteed teardown, lockout
// surfaced as bank.ErrSecurityBlocked.
func NewSiteAttempt(pb bank.SitePlaybook, cfg AttemptConfig, log zerolog.Logger) AttemptFunc {
	catalog := cfg.Catalog
	if len(catalog) == 0 {
		catalog = browser.DefaultCatalog()
	}

	return func(ctx context.Context, acct bank.Account) ([]bank.Transfer, error) {
		fp := browser.Pick(catalog)
		ctrl := browser.NewController(pb, fp, cfg.Browser, log)

		session, err := ctrl.Open(ctx)
		if err != nil {
			return nil, err
		}
		// Exactly one teardown on every exit path, cancellation included.
		defer ctrl.Close(session)

		state, err := ctrl.Login(ctx, session, acct)
		if err != nil {
			return nil, err
		}
		if state == bank.StateSecurityBlocked {
			// Clear cookies and reload before the caller's cool-down,
			// so the next attempt starts from a clean slate.
			if rerr := ctrl.RecoverFromLockout(session); rerr != nil {
				log.Debug().Err(rerr).Msg("lockout recovery reload failed")
			}
			return nil, fmt.Errorf("%w: %s", bank.ErrSecurityBlocked, acct.CompanyID)
		}

		if err := ctrl.RunNavigation(ctx, session); err != nil {
			return nil, err
		}

		frame, err := ctrl.ResolveDataFrame(ctx, session)
		if err != nil {
			return nil, err
		}

		if prep, ok := pb.(browser.QueryPreparer); ok {
			if err := prep.PrepareQuery(ctx, session.Page(), frame, time.Now(), cfg.LookbackDays); err != nil {
				return nil, fmt.Errorf("prepare query: %w", err)
			}
		}

		opts := cfg.Extraction
		opts.MinColumns = pb.MinColumns()
		opts.SignatureColumn = pb.Columns().OperationID
		opts.Log = log

		pager := extract.NewFramePager(frame, pb.Extraction(), log)
		raws := extract.All(ctx, pager, opts)

		records := make([]bank.Transfer, 0, len(raws))
		for _, raw := range raws {
			t, err := bank.Normalize(raw, pb.Columns(), cfg.Normalize)
			if err != nil {
				if errors.Is(err, bank.ErrUnparseableRow) {
					log.Warn().Err(err).Msg("dropping unparseable row")
					continue
				}
				return records, err
			}
			records = append(records, t)
		}

		ctrl.Logout(ctx, session, frame)
		return records, nil
	}
}
