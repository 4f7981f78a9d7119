// Package engine drives a batch of accounts through the primary and
// secondary resolvers on a bounded worker pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/gophid/internal/logging"
	"github.com/dmitrijs2005/gophid/internal/models"
	"github.com/dmitrijs2005/gophid/internal/resolver"
)

// ErrNotProcessed marks accounts left unsubmitted when the run context ended.
var ErrNotProcessed = errors.New("account not processed")

type Outcome struct {
	Primary   resolver.Outcome
	Secondary resolver.Outcome
}

// Result is the per-account report of a run. Err is set when either
// resolution failed; the account keeps whatever was assigned before.
type Result struct {
	Account *models.Account
	Outcome Outcome
	Err     error
}

type Engine struct {
	primary   resolver.Resolver
	secondary resolver.Resolver
	workers   int
	log       logging.Logger
	meter     metric.Meter
	metrics   *metrics
}

type Option func(*Engine)

func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMeter(m metric.Meter) Option {
	return func(e *Engine) { e.meter = m }
}

// New builds an engine. secondary may be nil to assign primary identifiers
// only.
func New(primary, secondary resolver.Resolver, opts ...Option) (*Engine, error) {
	if primary == nil {
		return nil, errors.New("engine needs a primary resolver")
	}
	e := &Engine{
		primary:   primary,
		secondary: secondary,
		workers:   1,
		log:       logging.Discard(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.meter == nil {
		e.meter = otel.Meter("github.com/dmitrijs2005/gophid/internal/engine")
	}

	m, err := newMetrics(e.meter)
	if err != nil {
		return nil, err
	}
	e.metrics = m
	return e, nil
}

// Run resolves every account and returns one Result per account, in input
// order. When ctx ends, no further accounts are started, accounts already
// started run to completion, and the returned error is the context's.
func (e *Engine) Run(ctx context.Context, accounts []*models.Account) ([]Result, error) {
	results := make([]Result, len(accounts))
	work := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	started := time.Now()
	stopped := -1
	for i, a := range accounts {
		if ctx.Err() != nil {
			stopped = i
			break
		}
		g.Go(func() error {
			results[i] = e.resolve(work, a)
			return nil
		})
	}
	// workers record failures in results and always return nil
	_ = g.Wait()

	var runErr error
	if stopped >= 0 {
		runErr = context.Cause(ctx)
		for i := stopped; i < len(accounts); i++ {
			results[i] = Result{Account: accounts[i], Err: fmt.Errorf("%w: %w", ErrNotProcessed, runErr)}
		}
		e.log.Warn(ctx, "run stopped before all accounts were submitted", "submitted", stopped, "total", len(accounts))
	}

	e.log.Info(ctx, "run finished", "accounts", len(accounts), "duration", time.Since(started).String())
	return results, runErr
}

func (e *Engine) resolve(ctx context.Context, a *models.Account) Result {
	res := Result{Account: a}

	out, err := e.observe(ctx, "primary", a, e.primary)
	res.Outcome.Primary = out
	if err != nil {
		res.Err = err
		return res
	}
	if e.secondary == nil {
		return res
	}
	if out == resolver.OutcomeSkipped {
		res.Outcome.Secondary = resolver.OutcomeSkipped
		return res
	}

	out, err = e.observe(ctx, "secondary", a, e.secondary)
	res.Outcome.Secondary = out
	res.Err = err
	return res
}

func (e *Engine) observe(ctx context.Context, kind string, a *models.Account, r resolver.Resolver) (resolver.Outcome, error) {
	start := time.Now()
	out, err := r.Resolve(ctx, a)
	e.metrics.record(ctx, kind, out, err, time.Since(start))
	if err != nil {
		e.log.Error(ctx, "resolution failed", "kind", kind, "account", a.ID, "error", err)
	}
	return out, err
}
