package pipeline

import (
	"context"
	"sync"

	"github.com/ivritype/tirgum/internal/session"
)

// pageJob is one unit of work for the worker pool.
type pageJob struct {
	index int
}

// pageResult reports the outcome of one worker invocation.
type pageResult struct {
	index int
	err   error
}

// ProcessSync drives every runnable page of a session through the full
// chain with a bounded worker pool. Page failures are isolated: one failed
// page never aborts the others. The returned error reports context
// cancellation only.
func (p *Pipeline) ProcessSync(ctx context.Context, s *session.Session) error {
	return p.runPool(ctx, s, s.Runnable(), p.processPage)
}

// runPool fans the given page indexes out to opts.Concurrency workers and
// waits for all of them. The step callback does its own status claiming, so
// a page picked up after cancellation is a no-op.
func (p *Pipeline) runPool(ctx context.Context, s *session.Session, idxs []int, step func(context.Context, *session.Session, int) error) error {
	if len(idxs) == 0 {
		return nil
	}

	p.progress.OnStart(len(idxs))
	defer p.progress.OnComplete()

	jobs := make(chan pageJob, len(idxs))
	results := make(chan pageResult, len(idxs))

	workers := p.opts.Concurrency
	if workers > len(idxs) {
		workers = len(idxs)
	}

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job, ok := <-jobs:
					if !ok {
						return
					}
					err := step(ctx, s, job.index)
					select {
					case results <- pageResult{index: job.index, err: err}:
					case <-ctx.Done():
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, idx := range idxs {
			select {
			case jobs <- pageJob{index: idx}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	done := 0
	for res := range results {
		done++
		p.progress.OnProgress(done, len(idxs))
		if res.err != nil {
			p.progress.OnError(res.index, res.err)
		}
	}

	if err := ctx.Err(); err != nil {
		s.Cancel()
		return err
	}
	return nil
}
