package solver

import (
	"context"
	"sync"
)

// resolveJob is a unit of work for the worker pool.
type resolveJob struct {
	index int
	req   Request
}

// resolveResult carries an outcome back to its slot in the batch.
type resolveResult struct {
	index   int
	outcome Outcome
}

// resolveFunc resolves one request; Service.Resolve in production.
type resolveFunc func(ctx context.Context, req Request) (Outcome, error)

// WorkerPool manages a fixed number of goroutines for parallel resolution.
type WorkerPool struct {
	workers int
	resolve resolveFunc
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, resolve resolveFunc) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		resolve: resolve,
	}
}

// Run resolves every request and returns outcomes in request order with
// success and failure counts. Requests left unprocessed when ctx is cancelled
// fail with the context error.
func (wp *WorkerPool) Run(ctx context.Context, reqs []Request) ([]Outcome, int, int) {
	if len(reqs) == 0 {
		return nil, 0, 0
	}

	workers := min(wp.workers, len(reqs))
	jobs := make(chan resolveJob, workers*2)
	results := make(chan resolveResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out, _ := wp.resolve(ctx, job.req)
				select {
				case results <- resolveResult{index: job.index, outcome: out}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, req := range reqs {
			select {
			case jobs <- resolveJob{index: i, req: req}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]Outcome, len(reqs))
	filled := make([]bool, len(reqs))
	for r := range results {
		outcomes[r.index] = r.outcome
		filled[r.index] = true
	}

	var ok, failed int
	for i := range outcomes {
		if !filled[i] {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			outcomes[i] = Outcome{Label: reqs[i].Label, Err: err}
		}
		if outcomes[i].Err != nil {
			failed++
		} else {
			ok++
		}
	}
	return outcomes, ok, failed
}
