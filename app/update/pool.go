package update

import (
	"context"
	"sync"
)

// Run executes worker over inputs with at most maxWorkers in flight and
// yields results on the returned channel as workers finish, in completion
// order rather than input order. New work is submitted only as slots free
// up, so a consumer that stops reading stalls further submissions instead
// of buffering the whole batch.
//
// Canceling ctx stops new submissions and discards results from work that
// is still in flight; the work itself runs to completion. The channel is
// closed once every submitted worker has returned, so the consumer must
// either drain it or cancel ctx.
func Run[T, R any](ctx context.Context, inputs []T, worker func(T) R, maxWorkers int) <-chan R {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	out := make(chan R)
	slots := make(chan struct{}, maxWorkers)

	go func() {
		var wg sync.WaitGroup

	submit:
		for _, input := range inputs {
			if ctx.Err() != nil {
				break
			}
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				break submit
			}

			wg.Add(1)
			go func(input T) {
				defer wg.Done()
				result := worker(input)
				select {
				case out <- result:
				case <-ctx.Done():
				}
				// Free the slot only after the result is handed off, so
				// submission pace follows consumption pace.
				<-slots
			}(input)
		}

		wg.Wait()
		close(out)
	}()

	return out
}
