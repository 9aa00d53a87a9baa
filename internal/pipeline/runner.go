package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxInFlight bounds concurrent frames when the caller does not pick
// a limit. It keeps a fast frame source from outrunning model inference and
// growing memory without bound.
const DefaultMaxInFlight = 4

// Run processes frames from the input channel concurrently, at most
// maxInFlight at a time, and delivers results on the returned channel.
// Processing is staged sequentially within a frame; only whole frames run
// in parallel, so results may arrive out of frame order.
//
// The result channel is closed after the input channel is drained or the
// context is canceled. Cancellation abandons unprocessed frames; it never
// leaves a partial gallery mutation because the query path does not mutate.
func (p *Pipeline) Run(ctx context.Context, frames <-chan Frame, maxInFlight int) <-chan FrameResult {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	results := make(chan FrameResult, maxInFlight)

	go func() {
		defer close(results)

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(maxInFlight)

		for {
			select {
			case <-ctx.Done():
				g.Wait()
				return
			case frame, ok := <-frames:
				if !ok {
					g.Wait()
					return
				}
				g.Go(func() error {
					result := p.ProcessFrame(ctx, frame)
					select {
					case results <- result:
					case <-ctx.Done():
					}
					return nil
				})
			}
		}
	}()

	return results
}
