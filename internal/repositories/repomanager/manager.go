package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/repositories/accounts"
	"github.com/dmitrijs2005/gophid/internal/repositories/metadata"
	"github.com/pressly/goose/v3"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Metadata(db dbx.DBTX) metadata.Repository
	// TxOptions are used for read-modify-write units of work.
	TxOptions() *sql.TxOptions
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Open connects to dsn and returns the manager for its backend.
// postgres:// and postgresql:// URLs select PostgreSQL; anything else is an
// SQLite path or URI, with an optional sqlite:// prefix.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		driver string
		m      RepositoryManager
	)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		driver, m = "pgx", NewPostgresRepositoryManager()
	default:
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		driver, m = "sqlite", NewSQLiteRepositoryManager()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == "sqlite" {
		// one writer; also keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, m, nil
}
