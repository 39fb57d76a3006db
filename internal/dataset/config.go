package dataset

import (
	"github.com/pkg/errors"
)

// ErrConfig marks fatal pre-flight configuration failures. The loader
// refuses to start (and touches no data) when validation fails.
var ErrConfig = errors.New("invalid loader configuration")

// Config mirrors the loader constructor arguments. Build it with
// DefaultConfig and override what the job needs; every field is required
// unless a default is noted.
type Config struct {
	// Paths are the episode record keys of the full corpus, identical
	// across all ranks.
	Paths []string

	SeqLen          int
	GlobalBatchSize int

	ImageH int
	ImageW int
	ImageC int

	// ShuffleBufferSize 0 disables shuffling. Default 1000.
	ShuffleBufferSize int

	// Seed drives window sampling and shuffling. Default 42.
	Seed int64

	// CycleLength is how many record streams are read concurrently,
	// default 4. BlockLength is how many consecutive windows one stream
	// may emit before rotating, default 1.
	CycleLength int
	BlockLength int

	// NumProcesses and Rank place this loader in the parallel consumer
	// group. Default 1 process, rank 0.
	NumProcesses int
	Rank         int
}

func DefaultConfig(paths []string, seqLen, globalBatchSize, imageH, imageW, imageC int) Config {
	return Config{
		Paths:             paths,
		SeqLen:            seqLen,
		GlobalBatchSize:   globalBatchSize,
		ImageH:            imageH,
		ImageW:            imageW,
		ImageC:            imageC,
		ShuffleBufferSize: 1000,
		Seed:              42,
		CycleLength:       4,
		BlockLength:       1,
		NumProcesses:      1,
		Rank:              0,
	}
}

func (c Config) Validate() error {
	if len(c.Paths) == 0 {
		return errors.Wrap(ErrConfig, "corpus path list cannot be empty")
	}

	if c.SeqLen <= 0 {
		return errors.Wrapf(ErrConfig, "seq_len must be positive, got %d", c.SeqLen)
	}

	if c.ImageH <= 0 || c.ImageW <= 0 || c.ImageC <= 0 {
		return errors.Wrapf(ErrConfig, "frame geometry %dx%dx%d must be positive", c.ImageH, c.ImageW, c.ImageC)
	}

	if c.NumProcesses <= 0 {
		return errors.Wrapf(ErrConfig, "process count must be positive, got %d", c.NumProcesses)
	}

	if c.Rank < 0 || c.Rank >= c.NumProcesses {
		return errors.Wrapf(ErrConfig, "rank %d out of range for %d processes", c.Rank, c.NumProcesses)
	}

	if c.GlobalBatchSize <= 0 {
		return errors.Wrapf(ErrConfig, "global batch size must be positive, got %d", c.GlobalBatchSize)
	}

	if c.GlobalBatchSize%c.NumProcesses != 0 {
		return errors.Wrapf(ErrConfig, "global batch size %d must be divisible by the %d consumer processes",
			c.GlobalBatchSize, c.NumProcesses)
	}

	if c.ShuffleBufferSize < 0 {
		return errors.Wrapf(ErrConfig, "shuffle buffer size cannot be negative, got %d", c.ShuffleBufferSize)
	}

	if c.CycleLength <= 0 {
		return errors.Wrapf(ErrConfig, "cycle length must be positive, got %d", c.CycleLength)
	}

	// Record files hold one episode and each stream emits one window per
	// pass, so every positive block length behaves identically. Validated
	// anyway to reject nonsense configurations up front.
	if c.BlockLength <= 0 {
		return errors.Wrapf(ErrConfig, "block length must be positive, got %d", c.BlockLength)
	}

	return nil
}

// PerProcessBatchSize is the exact share of the global batch served to
// each rank.
func (c Config) PerProcessBatchSize() int {
	return c.GlobalBatchSize / c.NumProcesses
}

func (c Config) windowSize() int {
	return c.SeqLen * c.ImageH * c.ImageW * c.ImageC
}
