package dataset

import (
	"context"
	"math/rand"
)

// shuffleStream keeps a bounded buffer of pending windows and yields a
// uniformly random element on each pull, backfilling from upstream. New
// arrivals keep reshuffling the pool — this is a continuous shuffle, not
// one static permutation per pass, which matters once the stream repeats
// indefinitely.
func shuffleStream(ctx context.Context, in <-chan []float32, size int, rng *rand.Rand) <-chan []float32 {
	if size <= 0 {
		return in
	}

	out := make(chan []float32)

	go func() {
		defer close(out)

		buffer := make([][]float32, 0, size)

		for window := range in {
			if len(buffer) < size {
				buffer = append(buffer, window)
				continue
			}

			idx := rng.Intn(len(buffer))

			select {
			case out <- buffer[idx]:
				buffer[idx] = window
			case <-ctx.Done():
				return
			}
		}

		// Upstream is exhausted for this pass; drain in random order.
		for len(buffer) > 0 {
			idx := rng.Intn(len(buffer))

			select {
			case out <- buffer[idx]:
				buffer[idx] = buffer[len(buffer)-1]
				buffer = buffer[:len(buffer)-1]
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
