// Package dispatch serializes work onto one worker goroutine.
//
// The symbol repository forbids concurrent use, and every repository call
// happens underneath SQLite while a statement runs. A Dispatcher owns the
// only path into SQLite: callers submit jobs, a single worker locked to its
// OS thread runs them one at a time in submission order, and each caller
// waits on its own job's result slot.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// ErrStopped is returned for jobs submitted after Close, and for queued
// jobs that never started because the dispatcher was closed.
var ErrStopped = errors.New("dispatch: stopped")

// Result is the outcome of one statement.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Executor runs one statement. It is only ever called from the worker.
type Executor interface {
	Execute(ctx context.Context, query string) (*Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, query string) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, query string) (*Result, error) {
	return f(ctx, query)
}

// Job is one unit of submitted work and its result slot.
type Job struct {
	ID    uuid.UUID
	Query string

	run  func(ctx context.Context) (*Result, error)
	done chan struct{}
	res  *Result
	err  error
}

func (j *Job) finish(res *Result, err error) {
	j.res, j.err = res, err
	close(j.done)
}

// Done is closed once the job has a result.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job completes or ctx ends. A job that has started
// still runs to completion when the caller stops waiting.
func (j *Job) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-j.done:
		return j.res, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Dispatcher is a FIFO queue drained by exactly one worker.
type Dispatcher struct {
	exec   Executor
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Job
	closed  bool
	stopped chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for job tracing. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New starts a dispatcher whose worker runs statements with exec.
func New(exec Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		exec:    exec,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cond = sync.NewCond(&d.mu)
	go d.work()
	return d
}

// Submit enqueues a statement.
func (d *Dispatcher) Submit(query string) (*Job, error) {
	return d.enqueue(query, func(ctx context.Context) (*Result, error) {
		return d.exec.Execute(ctx, query)
	})
}

// SubmitFunc enqueues arbitrary work that must run on the worker, such as
// direct repository calls. label names the job in logs.
func (d *Dispatcher) SubmitFunc(label string, fn func(ctx context.Context) (*Result, error)) (*Job, error) {
	return d.enqueue(label, fn)
}

// Run submits query and waits for its result.
func (d *Dispatcher) Run(ctx context.Context, query string) (*Result, error) {
	job, err := d.Submit(query)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// Do runs fn on the worker and waits for it.
func (d *Dispatcher) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	job, err := d.SubmitFunc(label, func(ctx context.Context) (*Result, error) {
		return nil, fn(ctx)
	})
	if err != nil {
		return err
	}
	_, err = job.Wait(ctx)
	return err
}

func (d *Dispatcher) enqueue(query string, run func(ctx context.Context) (*Result, error)) (*Job, error) {
	job := &Job{ID: uuid.New(), Query: query, run: run, done: make(chan struct{})}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrStopped
	}
	d.queue = append(d.queue, job)
	d.cond.Signal()
	return job, nil
}

// Pending reports how many jobs are queued and not yet started.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Close stops intake, lets the running job finish, fails every queued job
// with ErrStopped and waits for the worker to exit. It is safe to call more
// than once.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.stopped
	return nil
}

func (d *Dispatcher) work() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(d.stopped)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			rest := d.queue
			d.queue = nil
			d.mu.Unlock()
			for _, job := range rest {
				job.finish(nil, ErrStopped)
			}
			if len(rest) > 0 {
				d.logger.Debug("dispatch: dropped queued jobs", "count", len(rest))
			}
			return
		}
		job := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.runJob(job)
	}
}

func (d *Dispatcher) runJob(job *Job) {
	d.logger.Debug("dispatch: job start", "job", job.ID, "query", job.Query)
	var (
		res *Result
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("dispatch: job %s panicked: %v", job.ID, p)
			}
		}()
		res, err = job.run(context.Background())
	}()
	if err != nil {
		d.logger.Debug("dispatch: job failed", "job", job.ID, "error", err)
	} else if res != nil {
		d.logger.Debug("dispatch: job done", "job", job.ID, "rows", len(res.Rows))
	}
	job.finish(res, err)
}
