// Command harvester runs the incoming-transfer harvesting engine:
// scheduled scraping cycles across the configured portal accounts,
// content-hash deduplicated persistence and per-company exports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/grez-lucas/transfer-harvester/internal/config"
	"github.com/grez-lucas/transfer-harvester/internal/logging"
	"github.com/grez-lucas/transfer-harvester/internal/schedule"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/bank"
	_ "github.com/grez-lucas/transfer-harvester/internal/scraper/bank/bci"
	_ "github.com/grez-lucas/transfer-harvester/internal/scraper/bank/estado"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/browser"
	"github.com/grez-lucas/transfer-harvester/internal/scraper/extract"
	"github.com/grez-lucas/transfer-harvester/internal/store"
	"github.com/grez-lucas/transfer-harvester/internal/supervise"
	"github.com/grez-lucas/transfer-harvester/internal/worker"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "harvester",
		Short: "Harvests incoming transfer records from bank portals",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "harvester.yaml", "path to config file")

	root.AddCommand(runCmd(), onceCmd(), superviseCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run harvest cycles on the adaptive schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signalContext()
			defer stop()

			go app.watchHeartbeats(ctx)

			sched := schedule.New(app.cycle, app.table, app.log)
			app.log.Info().Int("accounts", len(app.accounts)).Msg("scheduler starting")
			sched.Run(ctx)
			app.log.Info().Msg("scheduler stopped")
			return nil
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single harvest cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup()
			if err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signalContext()
			defer stop()

			app.cycle(ctx)
			return nil
		},
	}
}

func superviseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Keep the harvester process alive and reclaim orphaned browsers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log := logging.Setup(cfg.Logging).With().Str("component", "supervisor").Logger()

			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			specs := []supervise.ProcessSpec{{
				Name:   "harvester",
				Marker: "harvester run",
				Cmd:    self,
				Args:   []string{"run", "--config", configPath},
			}}

			ctx, stop := signalContext()
			defer stop()

			sup := supervise.New(specs, supervise.Config{
				PollInterval:    cfg.Supervisor.PollInterval,
				CleanupInterval: cfg.Supervisor.CleanupInterval,
				ErrorSleep:      cfg.Supervisor.ErrorSleep,
			}, log)
			log.Info().Msg("supervisor starting")
			sup.Run(ctx)
			return nil
		},
	}
}

// app bundles the long-lived collaborators one process needs.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	accounts []bank.Account
	db       *store.Store
	registry *supervise.Registry
	table    schedule.Table
}

func setup() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logging.Setup(cfg.Logging)

	accounts, err := cfg.ResolveAccounts()
	if err != nil {
		return nil, err
	}
	// Fail at startup, not once per cycle, on a site nothing implements.
	for _, acct := range accounts {
		if _, err := bank.PlaybookFor(acct.Site); err != nil {
			return nil, err
		}
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	table := schedule.DefaultTable()
	if len(cfg.Schedule) > 0 {
		table = schedule.Table{Default: 5 * time.Minute}
		for _, b := range cfg.Schedule {
			table.Bands = append(table.Bands, schedule.Band{
				FromMinute: b.FromMinute, ToMinute: b.ToMinute, Interval: b.Interval,
			})
		}
	}

	return &app{
		cfg:      cfg,
		log:      log,
		accounts: accounts,
		db:       db,
		registry: supervise.NewRegistry(),
		table:    table,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn().Err(err).Msg("database close failed")
	}
}

// cycle runs every account concurrently, persists the merged batch and
// exports one workbook per company label.
func (a *app) cycle(ctx context.Context) {
	a.log.Info().Msg("harvest cycle starting")
	start := time.Now()

	var (
		mu      sync.Mutex
		batch   []bank.Transfer
		wg      sync.WaitGroup
		brwCfg  = a.browserConfig()
		extOpts = a.extractionOptions()
	)

	for _, acct := range a.accounts {
		pb, err := bank.PlaybookFor(acct.Site)
		if err != nil {
			a.log.Error().Err(err).Str("site", string(acct.Site)).Msg("no playbook for account")
			continue
		}

		name := fmt.Sprintf("%s/%s", acct.Site, acct.PersonID)
		wlog := a.log.With().Str("site", string(acct.Site)).Str("company", acct.Label).Logger()

		attempt := worker.NewSiteAttempt(pb, worker.AttemptConfig{
			Browser:      brwCfg,
			Extraction:   extOpts,
			Normalize:    a.normalizeContext(acct),
			LookbackDays: a.cfg.Extraction.LookbackDays,
		}, wlog)

		w := worker.New(name, acct, attempt, nil, a.workerConfig(), wlog).
			WithHeartbeat(func() { a.registry.Beat(name) })

		wg.Add(1)
		go func() {
			defer wg.Done()
			res := w.RunOnce(ctx)
			if len(res.Records) > 0 {
				mu.Lock()
				batch = append(batch, res.Records...)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(batch) > 0 {
		res, err := a.db.InsertBatch(ctx, batch)
		if err != nil {
			a.log.Error().Err(err).Msg("persisting batch failed")
		} else {
			a.log.Info().Int("inserted", res.Inserted).Int("duplicates", res.Duplicates).Msg("batch persisted")
			a.exportAll(ctx)
		}
	}

	a.log.Info().Dur("elapsed", time.Since(start)).Int("records", len(batch)).Msg("harvest cycle finished")
}

// exportAll writes one workbook of uninvoiced transfers per company.
func (a *app) exportAll(ctx context.Context) {
	if err := os.MkdirAll(a.cfg.Store.ExportDir, 0o755); err != nil {
		a.log.Error().Err(err).Msg("creating export directory failed")
		return
	}
	for _, name := range a.cfg.Billing.Labels {
		records, err := a.db.Uninvoiced(ctx, name)
		if err != nil {
			a.log.Error().Err(err).Str("company", name).Msg("querying uninvoiced failed")
			continue
		}
		if len(records) == 0 {
			continue
		}
		path := filepath.Join(a.cfg.Store.ExportDir, fmt.Sprintf("%s.xlsx", name))
		if err := store.ExportXLSX(path, records); err != nil {
			a.log.Error().Err(err).Str("company", name).Msg("export failed")
			continue
		}
		a.log.Info().Str("path", path).Int("records", len(records)).Msg("workbook exported")
	}
}

// watchHeartbeats flags workers whose last heartbeat is older than twice
// the longest schedule interval; a wedged rod session beats nothing.
func (a *app) watchHeartbeats(ctx context.Context) {
	maxAge := 2 * time.Hour
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range a.registry.Stale(maxAge) {
				a.log.Warn().Str("worker", name).Msg("worker heartbeat is stale")
			}
		}
	}
}

func (a *app) browserConfig() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.Headless = a.cfg.Browser.Headless
	if a.cfg.Browser.NavTimeout > 0 {
		cfg.NavTimeout = a.cfg.Browser.NavTimeout
	}
	return cfg
}

func (a *app) extractionOptions() extract.Options {
	opts := extract.DefaultOptions()
	if a.cfg.Extraction.MaxPages > 0 {
		opts.MaxPages = a.cfg.Extraction.MaxPages
	}
	if a.cfg.Extraction.SettleDelay > 0 {
		opts.SettleDelay = a.cfg.Extraction.SettleDelay
	}
	if a.cfg.Extraction.TableTimeout > 0 {
		opts.TableTimeout = a.cfg.Extraction.TableTimeout
	}
	return opts
}

func (a *app) normalizeContext(acct bank.Account) bank.NormalizeContext {
	label := a.cfg.Billing.Labels[acct.CompanyID]
	if label == "" {
		label = acct.Label
	}
	return bank.NormalizeContext{
		CompanyTaxID:     acct.CompanyID,
		CompanyLabel:     label,
		BillingThreshold: a.cfg.Billing.Threshold,
	}
}

func (a *app) workerConfig() worker.Config {
	cfg := worker.DefaultConfig()
	if a.cfg.Retry.MaxRetries > 0 {
		cfg.MaxRetries = a.cfg.Retry.MaxRetries
	}
	if a.cfg.Retry.BackoffBase > 0 {
		cfg.BackoffBase = a.cfg.Retry.BackoffBase
	}
	if a.cfg.Retry.BackoffCap > 0 {
		cfg.BackoffCap = a.cfg.Retry.BackoffCap
	}
	if a.cfg.Retry.CooldownMin > 0 {
		cfg.CooldownMin = a.cfg.Retry.CooldownMin
	}
	if a.cfg.Retry.CooldownMax > 0 {
		cfg.CooldownMax = a.cfg.Retry.CooldownMax
	}
	cfg.MinAvailableMemory = a.cfg.Memory.MinAvailableBytes
	if a.cfg.Memory.Recheck > 0 {
		cfg.MemoryRecheck = a.cfg.Memory.Recheck
	}
	if a.cfg.Memory.MaxWaits > 0 {
		cfg.MaxMemoryWaits = a.cfg.Memory.MaxWaits
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
