package dataset

import (
	"math/rand"

	"github.com/pkg/errors"

	"framefeed/internal/record"
)

// sampleWindow draws one fixed-length window from a qualifying episode:
// a uniformly random start offset in [0, length-seqLen], pixels rescaled
// into [0,1]. The rng is the caller's; the sampler keeps no state.
func sampleWindow(episode *record.Episode, cfg Config, rng *rand.Rand) ([]float32, error) {
	if episode.SequenceLength < cfg.SeqLen {
		return nil, errors.Errorf("episode of %d frames is shorter than the %d frame window",
			episode.SequenceLength, cfg.SeqLen)
	}

	frameSize := cfg.ImageH * cfg.ImageW * cfg.ImageC
	start := rng.Intn(episode.SequenceLength - cfg.SeqLen + 1)
	raw := episode.RawVideo[start*frameSize : (start+cfg.SeqLen)*frameSize]

	window := make([]float32, cfg.windowSize())

	// The output shape is pinned to (seqLen, h, w, c) by construction:
	// windowSize is derived from the config, never from the episode.
	if len(raw) != len(window) {
		return nil, errors.Errorf("window slice is %d bytes, want %d", len(raw), len(window))
	}

	for i, b := range raw {
		window[i] = float32(b) / 255.0
	}

	return window, nil
}
