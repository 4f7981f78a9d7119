package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophid/internal/common"
	"github.com/dmitrijs2005/gophid/internal/index"
	"github.com/dmitrijs2005/gophid/internal/matchkey"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/uniqueid"
)

// SequenceVar is the reserved template variable carrying the next value of
// the primary sequence.
const SequenceVar = "sequence"

type PrimaryConfig struct {
	// Field is the account attribute receiving the identifier.
	Field string
	// SearchField is the attribute receiving the lookup value on mint.
	SearchField    string
	TargetSourceID string
	Mappings       matchkey.Table
	// Threshold is the fuzzy acceptance score, 0–100, compared strictly.
	Threshold      float64
	SequenceDigits int
	Builder        uniqueid.Config
}

func (c PrimaryConfig) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: primary field is empty", common.ErrInvalidConfig)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("%w: primary threshold %v outside 0..100", common.ErrInvalidConfig, c.Threshold)
	}
	if c.SequenceDigits < 0 {
		return fmt.Errorf("%w: negative sequence digits", common.ErrInvalidConfig)
	}
	if err := c.Mappings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return nil
}

// Primary resolves the canonical deduplication identifier.
type Primary struct {
	core
	cfg      PrimaryConfig
	mappings matchkey.Table
	builder  *uniqueid.Builder
	seq      Sequence
}

// NewPrimary wires a primary resolver over ix. seq may be nil when the
// template does not reference the sequence variable.
func NewPrimary(cfg PrimaryConfig, ix *index.Index, store Store, seq Sequence, opts ...Option) (*Primary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	b, err := uniqueid.New(cfg.Builder, uniqueid.WithLogger(o.log))
	if err != nil {
		return nil, err
	}
	if b.Uses(SequenceVar) && seq == nil {
		return nil, fmt.Errorf("%w: primary template uses $%s but no sequence is configured", common.ErrInvalidConfig, SequenceVar)
	}
	return &Primary{
		core:     core{index: ix, store: store, targetID: cfg.TargetSourceID, options: o},
		cfg:      cfg,
		mappings: cfg.Mappings.WithoutIdentityOnly(),
		builder:  b,
		seq:      seq,
	}, nil
}

// Resolve sets the primary identifier on account. An account for which no
// lookup value can be derived is left unmodified and reported as skipped.
func (r *Primary) Resolve(ctx context.Context, account *models.Account) (Outcome, error) {
	attrs := matchkey.Build(account, r.mappings)
	search := attrs.SearchField()

	unlock, err := r.lock(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	var outcome Outcome
	err = r.index.Do(func(v *index.View) error {
		if id, ok := v.Lookup(search); ok {
			account.SetAttr(r.cfg.Field, id)
			outcome = OutcomeExact
			return nil
		}
		if m, ok := v.BestMatch(r.scorer, search, r.cfg.Threshold); ok {
			r.log.Debug(ctx, "fuzzy match", "account", account.ID, "search", search, "matched", m.Key, "score", m.Score)
			account.SetAttr(r.cfg.Field, m.ID)
			outcome = OutcomeFuzzy
			return nil
		}

		lookup := attrs.LookupValue(r.mappings)
		if lookup == "" {
			r.log.Error(ctx, "failed to create historical primary entry",
				"account", account.ID, "error", common.ErrMissingLookupValue)
			outcome = OutcomeSkipped
			return nil
		}

		id, err := r.recheck(ctx, v, lookup, r.cfg.Field)
		if err != nil {
			return err
		}
		if id != "" {
			account.SetAttr(r.cfg.Field, id)
			outcome = OutcomeStore
			return nil
		}

		id, err = r.mint(ctx, v, account)
		if err != nil {
			return err
		}

		record := newRecord(id, lookup, attrs)
		record.SetAttr(r.cfg.Field, id)
		if r.cfg.SearchField != "" {
			record.SetAttr(r.cfg.SearchField, lookup)
		}
		if err := r.persist(ctx, account, record); err != nil {
			return err
		}
		if err := v.Put(lookup, id); err != nil {
			return err
		}

		account.SetAttr(r.cfg.Field, id)
		if r.cfg.SearchField != "" {
			account.SetAttr(r.cfg.SearchField, lookup)
		}
		r.log.Info(ctx, "primary identifier minted", "account", account.ID, "id", id)
		outcome = OutcomeMinted
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// mint prefers an identifier already carried by the account.
func (r *Primary) mint(ctx context.Context, v *index.View, account *models.Account) (string, error) {
	if id := account.Attr(r.cfg.Field); id != "" {
		return id, nil
	}

	extra := map[string]string{}
	if r.builder.Uses(SequenceVar) {
		n, err := r.seq.Next(ctx, SequenceName(index.Primary))
		if err != nil {
			return "", fmt.Errorf("failed to allocate primary sequence: %w", err)
		}
		extra[SequenceVar] = padInt(n, r.cfg.SequenceDigits)
	}

	return r.builder.Build(ctx, uniqueid.Params{
		Account:       account,
		Mappings:      r.mappings,
		IncludeMapped: true,
		AlreadyUsed:   v,
		Extra:         extra,
	})
}

// SequenceName is the metadata key of a kind's sequence.
func SequenceName(kind index.Kind) string {
	return "sequence:" + string(kind)
}

func padInt(n int64, digits int) string {
	s := strconv.FormatInt(n, 10)
	if pad := digits - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return s
}

// newRecord builds the backing record for a minted identifier.
func newRecord(id, lookup string, attrs *matchkey.Attributes) *models.Account {
	rec := models.NewAccount("", attrs.Map())
	rec.NativeIdentity = id
	rec.Name = id
	rec.LookupKey = lookup
	return rec
}
