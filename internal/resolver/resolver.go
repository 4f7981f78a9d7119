// Package resolver assigns primary and secondary identifiers to accounts,
// reusing historical identifiers where a match exists and minting, persisting
// and registering new ones otherwise.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/distlock"
	"github.com/dmitrijs2005/gophid/internal/index"
	"github.com/dmitrijs2005/gophid/internal/logging"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/similarity"
)

// Outcome tells how an account got its identifier.
type Outcome string

const (
	OutcomeExact   Outcome = "exact"
	OutcomeFuzzy   Outcome = "fuzzy"
	OutcomeStore   Outcome = "store"
	OutcomeMinted  Outcome = "minted"
	OutcomeSkipped Outcome = "skipped"
)

// Store persists minted identifier records.
type Store interface {
	CreateAccount(ctx context.Context, record *models.Account, targetSourceID string) (*models.Account, error)
}

// Finder reads back records another process may have persisted. It returns
// common.ErrorNotFound on a miss.
type Finder interface {
	FindByLookupKey(ctx context.Context, sourceID, key string) (*models.Account, error)
}

// Sequence hands out the next value of a named counter.
type Sequence interface {
	Next(ctx context.Context, name string) (int64, error)
}

type Resolver interface {
	Resolve(ctx context.Context, account *models.Account) (Outcome, error)
}

type options struct {
	log    logging.Logger
	locker distlock.Locker
	finder Finder
	scorer similarity.Scorer
}

type Option func(*options)

func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithLocker makes the resolver hold a cross-process lock around its
// critical section and consult finder on an index miss before minting.
func WithLocker(l distlock.Locker, finder Finder) Option {
	return func(o *options) {
		o.locker = l
		o.finder = finder
	}
}

func WithScorer(s similarity.Scorer) Option {
	return func(o *options) { o.scorer = s }
}

func buildOptions(opts []Option) options {
	o := options{log: logging.Discard(), scorer: similarity.Default}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// core carries what both resolvers share: the index, the optional lock and
// the store re-check.
type core struct {
	index    *index.Index
	store    Store
	targetID string
	options
}

func (c *core) lock(ctx context.Context) (func(), error) {
	if c.locker == nil {
		return func() {}, nil
	}
	unlock, err := c.locker.Lock(ctx, string(c.index.Kind()))
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s index: %w", c.index.Kind(), err)
	}
	return unlock, nil
}

// recheck looks key up in the store when a Finder is configured and
// registers a hit. The returned id is "" on a miss.
func (c *core) recheck(ctx context.Context, v *index.View, key, idField string) (string, error) {
	if c.finder == nil {
		return "", nil
	}
	rec, err := c.finder.FindByLookupKey(ctx, c.targetID, key)
	if errors.Is(err, common.ErrorNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to re-check %s store: %w", c.index.Kind(), err)
	}
	id := rec.Attr(idField)
	if id == "" {
		id = rec.NativeIdentity
	}
	if id == "" {
		return "", nil
	}
	if err := v.Put(key, id); err != nil {
		return "", err
	}
	return id, nil
}

// persist creates the record; the caller registers the index entry only on
// success.
func (c *core) persist(ctx context.Context, account, record *models.Account) error {
	if _, err := c.store.CreateAccount(ctx, record, c.targetID); err != nil {
		c.log.Error(ctx, "failed to create historical entry", "kind", c.index.Kind(), "account", account.ID, "error", err)
		return fmt.Errorf("account %s: %w: %v", account.ID, common.ErrPersistence, err)
	}
	return nil
}
