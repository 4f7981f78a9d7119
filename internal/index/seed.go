package index

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophid/internal/logging"
	"github.com/dmitrijs2005/gophid/internal/models"
)

// Lister is the bulk read used once at startup.
type Lister interface {
	ListBySource(ctx context.Context, sourceID string) ([]*models.Account, error)
}

// SeedSpec tells Seed how to read key and identifier from stored records.
type SeedSpec struct {
	SourceID string
	// IDField is the attribute holding the identifier.
	IDField string
	// KeyField is read when a record has no lookup key column value.
	KeyField string
}

// Seed loads every record of spec.SourceID into ix and returns how many
// entries were registered. Records without key or identifier are skipped;
// for duplicate keys the first record wins.
func Seed(ctx context.Context, ix *Index, lister Lister, spec SeedSpec, log logging.Logger) (int, error) {
	records, err := lister.ListBySource(ctx, spec.SourceID)
	if err != nil {
		return 0, fmt.Errorf("error loading %s history from source %s: %w", ix.kind, spec.SourceID, err)
	}

	loaded := 0
	err = ix.Do(func(v *View) error {
		for _, r := range records {
			key := r.LookupKey
			if key == "" && spec.KeyField != "" {
				key = r.Attr(spec.KeyField)
			}
			id := r.Attr(spec.IDField)
			if id == "" {
				id = r.NativeIdentity
			}
			if key == "" || id == "" {
				log.Warn(ctx, "skipping historical record without key or identifier", "kind", ix.kind, "record", r.ID)
				continue
			}
			if prev, ok := v.Lookup(key); ok {
				if prev != id {
					log.Warn(ctx, "duplicate historical key, keeping first", "kind", ix.kind, "key", key, "kept", prev, "dropped", id)
				}
				continue
			}
			if err := v.Put(key, id); err != nil {
				return err
			}
			loaded++
		}
		return nil
	})
	if err != nil {
		return loaded, err
	}

	log.Info(ctx, "historical index seeded", "kind", ix.kind, "source", spec.SourceID, "records", len(records), "entries", loaded)
	return loaded, nil
}
