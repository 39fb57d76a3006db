package bench

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"framefeed/internal/command/root"
	"framefeed/internal/dataset"
	"framefeed/internal/metric"
	"framefeed/internal/signal"
)

var (
	logger = log.WithFields(log.Fields{
		"app":     "bench",
		"version": "dev",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.PersistentFlags().String("records", "", "Key prefix of the episode records in the bucket")
	cmd.PersistentFlags().Int("seq-len", 16, "Window length in frames")
	cmd.PersistentFlags().Int("global-batch-size", 8, "Batch size across all consumer processes")
	cmd.PersistentFlags().Int("image-h", 90, "Frame height")
	cmd.PersistentFlags().Int("image-w", 160, "Frame width")
	cmd.PersistentFlags().Int("image-c", 3, "Frame channels")
	cmd.PersistentFlags().Int("shuffle-buffer", 1000, "Shuffle buffer size (0 disables shuffling)")
	cmd.PersistentFlags().Int64("seed", 42, "Sampling seed")
	cmd.PersistentFlags().Int("cycle-length", 4, "Concurrent record streams")
	cmd.PersistentFlags().Int("block-length", 1, "Consecutive windows per stream")
	cmd.PersistentFlags().Int("processes", 1, "Total consumer processes")
	cmd.PersistentFlags().Int("rank", 0, "This process rank")
	cmd.PersistentFlags().Int("batches", 100, "Batches to pull (0 = until interrupted)")
	cmd.PersistentFlags().String("config", "", "YAML loader configuration file (overrides flags)")

	// Viper keys are process-global, so every subcommand binds its flags
	// under its own prefix to keep same-named flags apart.
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if err := viper.BindPFlag("bench-"+flag.Name, flag); err != nil {
			logger.WithError(err).Fatal("flag binding failed")
		}
	})
}

var cmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the training data loader",
	Long:  `Framefeed Bench: pull batches from the loader the way a training process would and report throughput`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("starting bench")

		cmpt := root.GetComponent(true, true)

		os.Exit(run(cmpt))
	},
}

// fileConfig is the optional YAML override of the loader flags.
type fileConfig struct {
	SeqLen            *int   `yaml:"seqLen"`
	GlobalBatchSize   *int   `yaml:"globalBatchSize"`
	ImageH            *int   `yaml:"imageH"`
	ImageW            *int   `yaml:"imageW"`
	ImageC            *int   `yaml:"imageC"`
	ShuffleBufferSize *int   `yaml:"shuffleBufferSize"`
	Seed              *int64 `yaml:"seed"`
	CycleLength       *int   `yaml:"cycleLength"`
	BlockLength       *int   `yaml:"blockLength"`
}

func loaderConfig(paths []string) (dataset.Config, error) {
	cfg := dataset.DefaultConfig(
		paths,
		viper.GetInt("bench-seq-len"),
		viper.GetInt("bench-global-batch-size"),
		viper.GetInt("bench-image-h"),
		viper.GetInt("bench-image-w"),
		viper.GetInt("bench-image-c"),
	)

	cfg.ShuffleBufferSize = viper.GetInt("bench-shuffle-buffer")
	cfg.Seed = viper.GetInt64("bench-seed")
	cfg.CycleLength = viper.GetInt("bench-cycle-length")
	cfg.BlockLength = viper.GetInt("bench-block-length")
	cfg.NumProcesses = viper.GetInt("bench-processes")
	cfg.Rank = viper.GetInt("bench-rank")

	configPath := viper.GetString("bench-config")

	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)

	if err != nil {
		return cfg, errors.Wrapf(err, "unable to read config file '%s'", configPath)
	}

	var overrides fileConfig

	if err = yaml.Unmarshal(data, &overrides); err != nil {
		return cfg, errors.Wrapf(err, "unable to parse config file '%s'", configPath)
	}

	apply(&cfg, overrides)

	return cfg, nil
}

func apply(cfg *dataset.Config, overrides fileConfig) {
	if overrides.SeqLen != nil {
		cfg.SeqLen = *overrides.SeqLen
	}

	if overrides.GlobalBatchSize != nil {
		cfg.GlobalBatchSize = *overrides.GlobalBatchSize
	}

	if overrides.ImageH != nil {
		cfg.ImageH = *overrides.ImageH
	}

	if overrides.ImageW != nil {
		cfg.ImageW = *overrides.ImageW
	}

	if overrides.ImageC != nil {
		cfg.ImageC = *overrides.ImageC
	}

	if overrides.ShuffleBufferSize != nil {
		cfg.ShuffleBufferSize = *overrides.ShuffleBufferSize
	}

	if overrides.Seed != nil {
		cfg.Seed = *overrides.Seed
	}

	if overrides.CycleLength != nil {
		cfg.CycleLength = *overrides.CycleLength
	}

	if overrides.BlockLength != nil {
		cfg.BlockLength = *overrides.BlockLength
	}
}

func run(cmpt *root.Component) int {
	ctx := signal.WatchInterrupt(context.Background(), 25*time.Second)

	go cmpt.Metric.Ticker(ctx, 1*time.Second)

	keys, err := cmpt.Bucket.List(ctx, viper.GetString("bench-records"))

	if err != nil {
		logger.WithError(err).Error("unable to list episode records")
		return 1
	}

	var paths []string

	for _, key := range keys {
		if strings.HasSuffix(key, ".rec") {
			paths = append(paths, key)
		}
	}

	cfg, err := loaderConfig(paths)

	if err != nil {
		logger.WithError(err).Error("unable to build loader configuration")
		return 1
	}

	loader, err := dataset.NewLoader(ctx, cfg, cmpt.Bucket)

	if err != nil {
		logger.WithError(err).Error("unable to start loader")
		return 1
	}

	defer loader.Close()

	hostname, _ := os.Hostname()

	batchesMetric := &metric.CounterMetric{
		RowMetric: metric.RowMetric{Name: "framefeed_bench_batches_total", Tags: metric.Tags{"hostname": hostname}},
	}

	rateMetric := &metric.GaugeMetric{
		RowMetric: metric.RowMetric{Name: "framefeed_bench_batches_per_second", Tags: metric.Tags{"hostname": hostname}},
	}

	cmpt.Metric.Add(batchesMetric)
	cmpt.Metric.Add(rateMetric)

	limit := viper.GetInt("bench-batches")
	started := time.Now()

	for pulled := 0; limit == 0 || pulled < limit; pulled++ {
		batchStarted := time.Now()

		batch, err := loader.Next(ctx)

		if err == context.Canceled {
			logger.Info("interrupted, stop pulling")
			break
		}

		if err != nil {
			logger.WithError(err).Error("loader stopped")
			return 1
		}

		batchesMetric.Counter++
		rateMetric.Gauge = float64(batchesMetric.Counter) / time.Since(started).Seconds()

		logger.WithFields(log.Fields{
			"batch":   pulled,
			"shape":   batch.Shape,
			"latency": time.Since(batchStarted),
		}).Debug("pulled batch")
	}

	elapsed := time.Since(started)

	fmt.Printf("Pulled %d batches in %s (%.2f batches/s)\n",
		batchesMetric.Counter, elapsed, float64(batchesMetric.Counter)/elapsed.Seconds())

	return 0
}
