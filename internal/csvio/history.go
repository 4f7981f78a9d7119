package csvio

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/dmitrijs2005/gophid/internal/dbx"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/repositories/accounts"
)

// HistorySpec maps a history file (lids.csv, uvids.csv) onto stored records.
type HistorySpec struct {
	SourceID string
	// IDColumn holds the identifier; it becomes the native identity.
	IDColumn string
	// KeyColumn holds the lookup key.
	KeyColumn string
}

// ImportHistory stores every row of r with a key and an identifier as an
// account of spec.SourceID, in one transaction. It returns the number of
// records created; rows missing either column are skipped.
func ImportHistory(ctx context.Context, db dbx.TxBeginner, repo func(dbx.DBTX) accounts.Repository, r io.Reader, spec HistorySpec) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("failed to read history: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return 0, err
	}
	if err := t.require(spec.IDColumn, spec.KeyColumn); err != nil {
		return 0, err
	}

	n := 0
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		store := repo(tx)
		for i := range t.Rows {
			attrs := t.Record(i)
			id, key := attrs[spec.IDColumn], attrs[spec.KeyColumn]
			if id == "" || key == "" {
				continue
			}
			rec := models.NewAccount("", attrs)
			rec.NativeIdentity = id
			rec.Name = id
			rec.LookupKey = key
			if _, err := store.CreateAccount(ctx, rec, spec.SourceID); err != nil {
				return fmt.Errorf("row %d: %w", i+2, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (t *Table) require(cols ...string) error {
	for _, c := range cols {
		if !slices.Contains(t.Header, c) {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}
