// Package app wires storage, historical indices, resolvers and the batch
// engine into one identifier-resolution run.
package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/metric"

	"github.com/dmitrijs2005/gophid/internal/config"
	"github.com/dmitrijs2005/gophid/internal/csvio"
	"github.com/dmitrijs2005/gophid/internal/distlock"
	"github.com/dmitrijs2005/gophid/internal/engine"
	"github.com/dmitrijs2005/gophid/internal/export"
	"github.com/dmitrijs2005/gophid/internal/index"
	"github.com/dmitrijs2005/gophid/internal/logging"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophid/internal/resolver"
	"github.com/dmitrijs2005/gophid/internal/sequence"
	"github.com/dmitrijs2005/gophid/internal/similarity"
)

type App struct {
	config *config.Config
	logger logging.Logger
	// newUploader is swapped in tests.
	newUploader func(ctx context.Context, cfg export.S3Config) (export.Uploader, error)
}

func NewApp(c *config.Config, logger logging.Logger) *App {
	return &App{
		config: c,
		logger: logger,
		newUploader: func(ctx context.Context, cfg export.S3Config) (export.Uploader, error) {
			return export.NewS3Uploader(ctx, cfg)
		},
	}
}

// Summary reports a finished run.
type Summary struct {
	Accounts     int
	Primary      map[resolver.Outcome]int
	Secondary    map[resolver.Outcome]int
	Failed       int
	NotProcessed int

	// Resolutions are the engine counters, keyed "kind/outcome".
	Resolutions map[string]int64
	Output      export.Location
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run resolves every account of the input file. A signal or the configured
// deadline stops submission; the accounts resolved so far are still written.
func (app *App) Run(ctx context.Context) (*Summary, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	app.logger.Info(ctx, "Starting run...", "input", app.config.Input.Path, "workers", app.config.Workers)

	db, m, err := repomanager.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	accounts, table, err := app.readInput()
	if err != nil {
		return nil, err
	}
	for _, w := range table.Warnings {
		app.logger.Warn(ctx, "input row", "row", w.Row, "warning", w.Message)
	}

	mp, reader := newMeterProvider()
	defer func() { _ = mp.Shutdown(context.WithoutCancel(ctx)) }()

	eng, closeFn, err := app.buildEngine(ctx, db, m, mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	defer closeFn()

	runCtx := ctx
	if app.config.Deadline > 0 {
		var cancelRun context.CancelFunc
		runCtx, cancelRun = context.WithTimeout(ctx, app.config.Deadline)
		defer cancelRun()
	}

	results, runErr := eng.Run(runCtx, accounts)
	if runErr != nil {
		app.logger.Warn(ctx, "run cut short", "error", runErr)
	}

	summary := summarize(results)
	if summary.Resolutions, err = collectResolutions(context.WithoutCancel(ctx), reader); err != nil {
		app.logger.Warn(ctx, "failed to collect metrics", "error", err)
	}

	var buf bytes.Buffer
	extra := []string{app.config.Primary.Field, app.config.Primary.SearchField, app.config.Secondary.Field}
	if err := csvio.Write(&buf, table.Header, extra, accounts); err != nil {
		return summary, err
	}

	exp, err := app.exporter(ctx)
	if err != nil {
		return summary, err
	}
	// the export runs even when the run was interrupted
	loc, err := exp.Export(context.WithoutCancel(ctx), buf.Bytes())
	if err != nil {
		return summary, err
	}
	summary.Output = loc

	app.logger.Info(ctx, "run summary",
		"accounts", summary.Accounts,
		"primary", summary.Primary,
		"secondary", summary.Secondary,
		"failed", summary.Failed,
		"not_processed", summary.NotProcessed,
		"resolutions", summary.Resolutions,
	)
	return summary, nil
}

func (app *App) readInput() ([]*models.Account, *csvio.Table, error) {
	in := app.config.Input
	f, err := os.Open(in.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return csvio.ReadAccounts(f, csvio.AccountOptions{
		SourceID:   in.SourceID,
		SourceName: in.SourceName,
		IDColumn:   in.IDColumn,
		NameColumn: in.NameColumn,
	})
}

// buildEngine seeds both historical indices and wires the resolvers. The
// returned func releases the lock client, if any.
func (app *App) buildEngine(ctx context.Context, db *sql.DB, m repomanager.RepositoryManager, meter metric.Meter) (*engine.Engine, func(), error) {
	cfg := app.config
	store := m.Accounts(db)
	closeFn := func() {}

	primaryIx := index.New(index.Primary)
	if _, err := index.Seed(ctx, primaryIx, store, index.SeedSpec{
		SourceID: cfg.Primary.TargetSourceID,
		IDField:  cfg.Primary.Field,
		KeyField: cfg.Primary.SearchField,
	}, app.logger); err != nil {
		return nil, closeFn, err
	}

	secondaryIx := index.New(index.Secondary)
	if _, err := index.Seed(ctx, secondaryIx, store, index.SeedSpec{
		SourceID: cfg.Secondary.TargetSourceID,
		IDField:  cfg.Secondary.Field,
		KeyField: cfg.Primary.Field,
	}, app.logger); err != nil {
		return nil, closeFn, err
	}

	scorer, err := similarity.ByName(cfg.Primary.Scorer)
	if err != nil {
		return nil, closeFn, err
	}
	opts := []resolver.Option{resolver.WithLogger(app.logger), resolver.WithScorer(scorer)}

	if cfg.RedisURL != "" {
		locker, err := distlock.NewRedisLocker(distlock.RedisOptions{URL: cfg.RedisURL, TTL: cfg.LockTTL}, app.logger)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { _ = locker.Close() }
		opts = append(opts, resolver.WithLocker(locker, store))
	}

	seq := sequence.NewAllocator(db, m.Metadata, m.TxOptions(), cfg.Primary.SequenceStart)

	primary, err := resolver.NewPrimary(cfg.PrimaryResolver(), primaryIx, store, seq, opts...)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	secondary, err := resolver.NewSecondary(cfg.SecondaryResolver(), secondaryIx, store, opts...)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}

	eng, err := engine.New(primary, secondary, engine.WithWorkers(cfg.Workers), engine.WithLogger(app.logger), engine.WithMeter(meter))
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return eng, closeFn, nil
}

func (app *App) exporter(ctx context.Context) (*export.Exporter, error) {
	var up export.Uploader
	if s3 := app.config.S3; s3.Bucket != "" {
		u, err := app.newUploader(ctx, export.S3Config{
			Region:       s3.Region,
			AccessKey:    s3.User,
			SecretKey:    s3.Password,
			BaseEndpoint: s3.BaseEndpoint,
			Bucket:       s3.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		up = u
	}
	return export.NewExporter(app.config.OutputPath, up, app.logger), nil
}

func summarize(results []engine.Result) *Summary {
	s := &Summary{
		Accounts:  len(results),
		Primary:   map[resolver.Outcome]int{},
		Secondary: map[resolver.Outcome]int{},
	}
	for _, r := range results {
		switch {
		case errors.Is(r.Err, engine.ErrNotProcessed):
			s.NotProcessed++
			continue
		case r.Err != nil:
			s.Failed++
		}
		if r.Outcome.Primary != "" {
			s.Primary[r.Outcome.Primary]++
		}
		if r.Outcome.Secondary != "" {
			s.Secondary[r.Outcome.Secondary]++
		}
	}
	return s
}
