// Package ingest turns a batch of policy rows into persisted entities.
//
// A run coerces the rows once, resolves the four independent entity kinds
// (agents, categories, carriers, users) against the store, creates what is
// missing, then links accounts and policies in two ordered passes. Every
// insert tolerates natural-key collisions, so concurrent runs over
// overlapping batches converge on one record per key.
//
// There is no rollback: records written before a fatal store error stay.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/polingest/internal/rows"
	"github.com/vvka-141/polingest/internal/store"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// Observer is told about every finished run. sum is nil when err is not.
type Observer interface {
	ObserveRun(sum *Summary, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(*Summary, time.Duration, error) {}

// Pipeline runs ingestion batches against one store. It holds no per-run
// state and is safe for concurrent use.
type Pipeline struct {
	store           store.Store
	logger          polingest.Logger
	observer        Observer
	defaultUserType string
	now             func() time.Time
}

type Option func(*Pipeline)

// WithObserver registers o to be told about every run.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithDefaultUserType sets the user type given to rows without one.
func WithDefaultUserType(t string) Option {
	return func(p *Pipeline) { p.defaultUserType = t }
}

// New creates a pipeline. Panics if s or logger is nil.
func New(s store.Store, logger polingest.Logger, opts ...Option) *Pipeline {
	if s == nil {
		panic("store cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}

	p := &Pipeline{
		store:           s,
		logger:          logger,
		observer:        nopObserver{},
		defaultUserType: polingest.DefaultUserType,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunFile loads path and runs it. A file that cannot be loaded fails the run
// with a *rows.ParseError before anything is written.
func (p *Pipeline) RunFile(ctx context.Context, path string) (*Summary, error) {
	start := p.now()
	batch, err := rows.LoadFile(path)
	if err != nil {
		p.observer.ObserveRun(nil, p.now().Sub(start), err)
		p.logger.Error("Load %s: %v", path, err)
		return nil, err
	}
	p.logger.Verbose("Loaded %d rows from %s", len(batch), path)
	return p.Run(ctx, batch)
}

// Run ingests batch and returns its summary, or the first fatal error.
func (p *Pipeline) Run(ctx context.Context, batch []rows.Row) (*Summary, error) {
	start := p.now()
	sum, err := p.run(ctx, batch)
	elapsed := p.now().Sub(start)

	if err != nil {
		p.observer.ObserveRun(nil, elapsed, err)
		p.logger.Error("Ingestion failed: %v", err)
		return nil, err
	}
	sum.Duration = Duration(elapsed)
	p.observer.ObserveRun(sum, elapsed, nil)
	sum.Log(p.logger)
	return sum, nil
}

func (p *Pipeline) run(ctx context.Context, batch []rows.Row) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString(), Rows: len(batch)}
	cs := candidates(batch, p.defaultUserType)

	lk, pd, err := p.resolve(ctx, cs, sum)
	if err != nil {
		return nil, err
	}
	if err := p.write(ctx, lk, pd, sum); err != nil {
		return nil, err
	}
	if err := p.linkAccounts(ctx, cs, lk, sum); err != nil {
		return nil, err
	}
	if err := p.linkPolicies(ctx, cs, lk, sum); err != nil {
		return nil, err
	}
	return sum, nil
}
