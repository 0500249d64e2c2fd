package ops

import (
	"context"

	tg "github.com/randalmurphal/tensorgraph/pkg/tensorgraph"
)

// Async wraps a kernel so that it completes off the scheduler
// goroutine and delivers a deferred result. The dynamic scheduler
// keeps draining other ready work while the wrapped kernel runs;
// the static path rejects the deferred result with ErrDeferredResult.
//
// This is how operations backed by asynchronous sources (device
// readbacks, remote weights) plug into the engine.
func Async(fn tg.OpFunc) tg.OpFunc {
	return func(ctx context.Context, node *tg.Node, inputs []*tg.Tensor, ec *tg.ExecContext) (tg.OpResult, error) {
		ch := make(chan tg.OpOutcome, 1)
		go func() {
			res, err := fn(ctx, node, inputs, ec)
			if err != nil {
				ch <- tg.OpOutcome{Err: err}
				return
			}
			if res.IsPending() {
				// Flatten nested deferrals.
				ch <- <-res.Pending
				return
			}
			ch <- tg.OpOutcome{Tensors: res.Tensors}
		}()
		return tg.Deferred(ch), nil
	}
}
