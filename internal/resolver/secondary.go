package resolver

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/index"
	"github.com/dmitrijs2005/gophid/internal/matchkey"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/uniqueid"
)

type SecondaryConfig struct {
	Field string
	// PrimaryField holds the primary identifier the index is keyed by.
	PrimaryField   string
	TargetSourceID string
	Mappings       matchkey.Table
	Builder        uniqueid.Config
}

func (c SecondaryConfig) Validate() error {
	if c.Field == "" || c.PrimaryField == "" {
		return fmt.Errorf("%w: secondary field and primary field are required", common.ErrInvalidConfig)
	}
	if err := c.Mappings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return nil
}

// Secondary resolves the human-facing identifier of an account whose
// primary identifier is already known.
type Secondary struct {
	core
	cfg      SecondaryConfig
	mappings matchkey.Table
	builder  *uniqueid.Builder
}

func NewSecondary(cfg SecondaryConfig, ix *index.Index, store Store, opts ...Option) (*Secondary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	b, err := uniqueid.New(cfg.Builder, uniqueid.WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	return &Secondary{
		core:     core{index: ix, store: store, targetID: cfg.TargetSourceID, options: o},
		cfg:      cfg,
		mappings: cfg.Mappings.WithoutIdentityOnly(),
		builder:  b,
	}, nil
}

// Resolve sets the secondary identifier on account. It fails with
// common.ErrMissingPrecondition when the account has no primary identifier.
func (r *Secondary) Resolve(ctx context.Context, account *models.Account) (Outcome, error) {
	primary := account.Attr(r.cfg.PrimaryField)
	if primary == "" {
		return "", fmt.Errorf("account %s: %w", account.ID, common.ErrMissingPrecondition)
	}

	unlock, err := r.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	var outcome Outcome
	err = r.index.Do(func(v *index.View) error {
		if id, ok := v.Lookup(primary); ok {
			account.SetAttr(r.cfg.Field, id)
			outcome = OutcomeExact
			return nil
		}

		id, err := r.recheck(ctx, v, primary, r.cfg.Field)
		if err != nil {
			return err
		}
		if id != "" {
			account.SetAttr(r.cfg.Field, id)
			outcome = OutcomeStore
			return nil
		}

		params := uniqueid.Params{Account: account, Mappings: r.mappings, IncludeMapped: true}
		base, err := r.builder.Base(ctx, params)
		if err != nil {
			return err
		}
		related := uniqueid.NewSet(v.WithPrefix(base)...)
		// a truncated candidate can fall outside the prefix set, so the
		// whole index is still consulted
		params.AlreadyUsed = usedFunc(func(id string) bool {
			return related.Has(id) || v.Has(id)
		})
		id, err = r.builder.Build(ctx, params)
		if err != nil {
			return err
		}

		attrs := matchkey.Build(account, r.mappings)
		record := newRecord(id, primary, attrs)
		record.SetAttr(r.cfg.Field, id)
		record.SetAttr(r.cfg.PrimaryField, primary)
		if err := r.persist(ctx, account, record); err != nil {
			return err
		}
		if err := v.Put(primary, id); err != nil {
			return err
		}

		account.SetAttr(r.cfg.Field, id)
		r.log.Info(ctx, "secondary identifier minted", "account", account.ID, "id", id, "base", base)
		outcome = OutcomeMinted
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

type usedFunc func(string) bool

func (f usedFunc) Has(id string) bool { return f(id) }
