// Package worker runs ingestion files off the caller's goroutine.
//
// A request is a file path and its reply is a single Result delivered on a
// one-shot channel. Runs are detached from the submitter's cancellation: once
// a file is accepted it is ingested to completion or to its first fatal
// error, even if the submitter stops waiting.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vvka-141/polingest/internal/ingest"
	"github.com/vvka-141/polingest/pkg/polingest"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool is closed")

// Runner ingests one file. *ingest.Pipeline implements it.
type Runner interface {
	RunFile(ctx context.Context, path string) (*ingest.Summary, error)
}

type job struct {
	ctx  context.Context
	path string
	done chan Result
}

// Pool runs files on a fixed number of goroutines.
type Pool struct {
	runner Runner
	logger polingest.Logger
	jobs   chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines. Panics if runner or logger is nil or
// workers is not positive.
func NewPool(runner Runner, workers int, logger polingest.Logger) *Pool {
	if runner == nil {
		panic("runner cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if workers < 1 {
		panic(fmt.Sprintf("workers must be positive, got %d", workers))
	}

	p := &Pool{
		runner: runner,
		logger: logger,
		jobs:   make(chan job, workers),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.done <- p.run(j)
	}
}

func (p *Pool) run(j job) (res Result) {
	res.Path = j.path
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Ingestion of %s panicked: %v", j.path, r)
			res.Summary = nil
			res.Err = fmt.Errorf("ingestion panicked: %v", r)
		}
	}()
	res.Summary, res.Err = p.runner.RunFile(j.ctx, j.path)
	return res
}

// Submit queues path and returns the channel its Result will arrive on.
// It blocks while the queue is full; ctx bounds only that wait. Values
// carried by ctx reach the run, its cancellation does not.
func (p *Pool) Submit(ctx context.Context, path string) (<-chan Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	j := job{ctx: context.WithoutCancel(ctx), path: path, done: make(chan Result, 1)}
	select {
	case p.jobs <- j:
		return j.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits path and waits for its Result. If ctx ends first, Do returns
// ctx.Err() and the run continues in the background.
func (p *Pool) Do(ctx context.Context, path string) (Result, error) {
	done, err := p.Submit(ctx, path)
	if err != nil {
		return Result{}, err
	}
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		p.logger.Verbose("Stopped waiting for %s: %v", path, ctx.Err())
		return Result{}, ctx.Err()
	}
}

// Close stops accepting files and waits for queued runs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
