package dataset

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"framefeed/internal/storage"
)

// prefetchDepth bounds how many assembled batches wait ahead of the
// consumer; one is being built while up to two sit ready.
const prefetchDepth = 2

// ErrClosed is returned by Next once the loader is closed or its corpus
// cannot produce a single window.
var ErrClosed = errors.New("loader closed")

// Batch is per_process_batch_size windows, contiguous float32 values in
// [0,1], shape (batch, seq_len, h, w, c).
type Batch struct {
	Shape [5]int
	Data  []float32
}

// Loader serves an infinite stream of shuffled training batches from this
// rank's shard of the corpus. Construction validates configuration before
// any data is touched; batches are then assembled ahead of demand by a
// background pipeline with bounded buffers at every stage.
type Loader struct {
	cfg    Config
	bucket storage.Bucket
	shard  []string

	cancel  context.CancelFunc
	batches chan *Batch
}

func NewLoader(ctx context.Context, cfg Config, bucket storage.Bucket) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	l := &Loader{
		cfg:     cfg,
		bucket:  bucket,
		shard:   Shard(cfg.Paths, cfg.NumProcesses, cfg.Rank),
		cancel:  cancel,
		batches: make(chan *Batch, prefetchDepth),
	}

	log.WithFields(log.Fields{
		"rank":       cfg.Rank,
		"processes":  cfg.NumProcesses,
		"shard":      len(l.shard),
		"corpus":     len(cfg.Paths),
		"batch_size": cfg.PerProcessBatchSize(),
	}).Info("starting loader")

	go l.produce(ctx)

	return l, nil
}

func (l *Loader) PerProcessBatchSize() int {
	return l.cfg.PerProcessBatchSize()
}

// Next blocks until the next prefetched batch is ready. The stream never
// ends on its own; it stops only when the loader is closed or the passed
// context is done.
func (l *Loader) Next(ctx context.Context) (*Batch, error) {
	select {
	case batch, ok := <-l.batches:
		if !ok {
			return nil, ErrClosed
		}

		return batch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the background pipeline. In-flight work finishes its
// current item; nothing is interrupted mid-record.
func (l *Loader) Close() {
	l.cancel()
}

// produce runs epochs forever: interleave the shard, shuffle, group into
// fixed-size batches, and push them into the bounded prefetch channel.
// The channel send is the backpressure point for the whole pipeline.
func (l *Loader) produce(ctx context.Context) {
	defer close(l.batches)

	shuffleRng := rand.New(rand.NewSource(l.cfg.Seed + int64(l.cfg.Rank)))
	batchSize := l.cfg.PerProcessBatchSize()

	for epoch := int64(0); ; epoch++ {
		windows := interleave(ctx, l.bucket, l.shard, l.cfg, epoch)
		windows = shuffleStream(ctx, windows, l.cfg.ShuffleBufferSize, shuffleRng)

		produced := 0
		pending := make([][]float32, 0, batchSize)

		for window := range windows {
			produced++
			pending = append(pending, window)

			if len(pending) < batchSize {
				continue
			}

			select {
			case l.batches <- l.assemble(pending):
			case <-ctx.Done():
				return
			}

			pending = pending[:0]
		}

		if ctx.Err() != nil {
			return
		}

		// Trailing partial batch is dropped, never emitted.

		if produced == 0 {
			// Every episode was filtered or unreadable; repeating would
			// spin forever without yielding a batch.
			log.Error("corpus produced no usable windows, stopping loader")
			return
		}

		log.WithFields(log.Fields{"epoch": epoch, "windows": produced}).Debug("epoch exhausted, restarting stream")
	}
}

func (l *Loader) assemble(windows [][]float32) *Batch {
	batch := &Batch{
		Shape: [5]int{len(windows), l.cfg.SeqLen, l.cfg.ImageH, l.cfg.ImageW, l.cfg.ImageC},
		Data:  make([]float32, 0, len(windows)*l.cfg.windowSize()),
	}

	for _, window := range windows {
		batch.Data = append(batch.Data, window...)
	}

	return batch
}
