// Package sequence allocates values of named, persisted counters stored in
// the metadata repository.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/repositories/metadata"
)

// Allocator hands out start, start+1, ... per name. Each call is one
// transaction, so values survive restarts and are never handed out twice.
type Allocator struct {
	db       dbx.TxBeginner
	metadata func(dbx.DBTX) metadata.Repository
	opts     *sql.TxOptions
	start    int64
}

func NewAllocator(db dbx.TxBeginner, repo func(dbx.DBTX) metadata.Repository, opts *sql.TxOptions, start int64) *Allocator {
	return &Allocator{db: db, metadata: repo, opts: opts, start: start}
}

func (a *Allocator) Next(ctx context.Context, name string) (int64, error) {
	var n int64
	err := dbx.WithTx(ctx, a.db, a.opts, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.metadata(tx)

		raw, err := repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if raw == nil {
			n = a.start
		} else {
			prev, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt sequence %s: %w", name, err)
			}
			n = prev + 1
		}

		return repo.Set(ctx, name, []byte(strconv.FormatInt(n, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s: %w", name, err)
	}
	return n, nil
}

// Raise makes sure the next value handed out for name is above floor.
// It is used after importing history that already consumed values.
func (a *Allocator) Raise(ctx context.Context, name string, floor int64) error {
	return dbx.WithTx(ctx, a.db, a.opts, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.metadata(tx)

		raw, err := repo.Get(ctx, name)
		if err != nil {
			return err
		}
		if raw != nil {
			cur, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt sequence %s: %w", name, err)
			}
			if cur >= floor {
				return nil
			}
		}
		return repo.Set(ctx, name, []byte(strconv.FormatInt(floor, 10)))
	})
}
