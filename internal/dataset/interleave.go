package dataset

import (
	"context"
	"math/rand"
	"sync"

	log "github.com/sirupsen/logrus"

	"framefeed/internal/storage"
)

// interleave runs one epoch of the shard: up to cfg.CycleLength record
// streams are open concurrently, each worker slot keeping a single record
// in flight. Windows from different streams merge onto the returned
// channel in whatever order the slots produce them; one slow stream only
// ever stalls its own slot. Record files hold a single episode, so each
// stream emits one window per pass and stream rotation never exceeds
// cfg.BlockLength consecutive items; downstream backpressure is felt at
// the channel send.
//
// Per-item failures are dropped here: an unreadable or malformed record
// costs a warning, an episode shorter than the window length costs
// nothing at all.
func interleave(ctx context.Context, bucket storage.Bucket, shard []string, cfg Config, epoch int64) <-chan []float32 {
	out := make(chan []float32)
	keys := make(chan string)

	var wg sync.WaitGroup

	for slot := 0; slot < cfg.CycleLength; slot++ {
		wg.Add(1)

		rng := rand.New(rand.NewSource(slotSeed(cfg, epoch, slot)))

		go func() {
			defer wg.Done()

			for key := range keys {
				episode, err := readEpisode(ctx, bucket, key, cfg)

				if err != nil {
					if ctx.Err() != nil {
						return
					}

					log.WithError(err).WithField("key", key).Warn("dropping unreadable episode record")
					continue
				}

				if episode.SequenceLength < cfg.SeqLen {
					continue
				}

				window, err := sampleWindow(episode, cfg, rng)

				if err != nil {
					log.WithError(err).WithField("key", key).Warn("dropping unsampleable episode")
					continue
				}

				select {
				case out <- window:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(keys)

		for _, key := range shard {
			select {
			case keys <- key:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// slotSeed derives a distinct deterministic seed per (seed, rank, epoch,
// slot). The multipliers are primes chosen far apart so no two tuples in
// any realistic range share a seed; in particular the epoch stride dwarfs
// any plausible cycle length.
func slotSeed(cfg Config, epoch int64, slot int) int64 {
	return cfg.Seed + int64(cfg.Rank)*1_000_003 + epoch*72_089_573 + int64(slot)
}
