package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dmitrijs2005/gophid/internal/csvio"
	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/index"
	"github.com/dmitrijs2005/gophid/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophid/internal/resolver"
	"github.com/dmitrijs2005/gophid/internal/sequence"
)

// ImportHistory loads lidsFile and uvidsFile into the primary and secondary
// target sources and raises the primary sequence to the highest numeric
// primary identifier stored, so new identifiers continue after it.
func (app *App) ImportHistory(ctx context.Context, lidsFile, uvidsFile string) error {
	cfg := app.config

	db, m, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := m.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	specs := []struct {
		path string
		spec csvio.HistorySpec
	}{
		{lidsFile, csvio.HistorySpec{SourceID: cfg.Primary.TargetSourceID, IDColumn: cfg.Primary.Field, KeyColumn: cfg.Primary.SearchField}},
		{uvidsFile, csvio.HistorySpec{SourceID: cfg.Secondary.TargetSourceID, IDColumn: cfg.Secondary.Field, KeyColumn: cfg.Primary.Field}},
	}

	for _, s := range specs {
		n, err := importFile(ctx, db, m, s.path, s.spec)
		if err != nil {
			return err
		}
		app.logger.Info(ctx, "history imported", "file", filepath.Base(s.path), "source", s.spec.SourceID, "records", n)
	}

	records, err := m.Accounts(db).ListBySource(ctx, cfg.Primary.TargetSourceID)
	if err != nil {
		return err
	}
	var highest int64
	for _, r := range records {
		if v, err := strconv.ParseInt(r.Attr(cfg.Primary.Field), 10, 64); err == nil && v > highest {
			highest = v
		}
	}
	if highest == 0 {
		return nil
	}

	seq := sequence.NewAllocator(db, m.Metadata, m.TxOptions(), cfg.Primary.SequenceStart)
	if err := seq.Raise(ctx, resolver.SequenceName(index.Primary), highest); err != nil {
		return err
	}
	app.logger.Info(ctx, "primary sequence raised", "value", highest)
	return nil
}

func importFile(ctx context.Context, db dbx.TxBeginner, m repomanager.RepositoryManager, path string, spec csvio.HistorySpec) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	return csvio.ImportHistory(ctx, db, m.Accounts, f, spec)
}
