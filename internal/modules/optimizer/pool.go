package optimizer

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool manages a pool of worker goroutines for parallel solves
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// solveFunc solves one queued input. Errors travel inside the outcome.
type solveFunc func(ctx context.Context, in *solveInput) (*Response, error)

// Run solves every input in parallel and returns the outcomes in input order.
// Inputs that are nil (rejected during validation) are skipped and left zero.
func (wp *WorkerPool) Run(ctx context.Context, inputs []*solveInput, solve solveFunc) []outcome {
	numInputs := len(inputs)
	if numInputs == 0 {
		return []outcome{}
	}

	jobs := make(chan jobItem, numInputs)
	results := make(chan resultItem, numInputs)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numInputs < numActualWorkers {
		numActualWorkers = numInputs // Don't spawn more workers than inputs
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, solve)
		}()
	}

	for idx, in := range inputs {
		if in == nil {
			continue
		}
		jobs <- jobItem{index: idx, input: in}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make([]outcome, numInputs)
	for result := range results {
		outcomes[result.index] = result.outcome
	}

	return outcomes
}

// outcome is the result of one pooled solve.
type outcome struct {
	resp *Response
	err  error
}

type jobItem struct {
	index int
	input *solveInput
}

type resultItem struct {
	index   int
	outcome outcome
}

func worker(ctx context.Context, jobs <-chan jobItem, results chan<- resultItem, solve solveFunc) {
	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- resultItem{index: job.index, outcome: outcome{err: err}}
			continue
		}
		resp, err := solve(ctx, job.input)
		results <- resultItem{
			index:   job.index,
			outcome: outcome{resp: resp, err: err},
		}
	}
}
