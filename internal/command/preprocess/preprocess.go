package preprocess

import (
	"context"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"framefeed/internal/command/root"
	"framefeed/internal/ingest"
	"framefeed/internal/metric"
	"framefeed/internal/signal"
)

var (
	logger = log.WithFields(log.Fields{
		"app":     "preprocess",
		"version": "dev",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.PersistentFlags().String("input", "data/videos", "Raw video directory")
	cmd.PersistentFlags().String("output", "data/corpus", "Normalized corpus root")
	cmd.PersistentFlags().Int("width", 160, "Target frame width")
	cmd.PersistentFlags().Int("height", 90, "Target frame height")
	cmd.PersistentFlags().Int("fps", 10, "Target frame rate")
	cmd.PersistentFlags().Int("workers", 0, "Transcoding workers (0 = CPU count)")
	cmd.PersistentFlags().Bool("upload", false, "Mirror normalized episodes to the configured bucket")

	// Viper keys are process-global, so every subcommand binds its flags
	// under its own prefix to keep same-named flags apart.
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if err := viper.BindPFlag("preprocess-"+flag.Name, flag); err != nil {
			logger.WithError(err).Fatal("flag binding failed")
		}
	})
}

var cmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Normalize raw videos and index the corpus",
	Long:  `Framefeed Preprocess: transcode every raw video to fixed-geometry episodes, then build the metadata index`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("starting preprocess")

		upload := viper.GetBool("preprocess-upload")
		cmpt := root.GetComponent(upload, true)

		os.Exit(run(cmpt))
	},
}

func run(cmpt *root.Component) int {
	ctx := signal.WatchInterrupt(context.Background(), 25*time.Second)

	go cmpt.Metric.Ticker(ctx, 1*time.Second)

	hostname, _ := os.Hostname()

	tasksMetric := &metric.CounterMetric{
		RowMetric: metric.RowMetric{Name: "framefeed_preprocess_tasks_total", Tags: metric.Tags{"hostname": hostname}},
	}

	errorsMetric := &metric.CounterMetric{
		RowMetric: metric.RowMetric{Name: "framefeed_preprocess_tasks_errors", Tags: metric.Tags{"hostname": hostname}},
	}

	cmpt.Metric.Add(tasksMetric)
	cmpt.Metric.Add(errorsMetric)

	job := ingest.NewJob(
		viper.GetString("preprocess-input"),
		viper.GetString("preprocess-output"),
		viper.GetInt("preprocess-width"),
		viper.GetInt("preprocess-height"),
		viper.GetInt("preprocess-fps"),
	)
	job.Workers = viper.GetInt("preprocess-workers")
	job.Bucket = cmpt.Bucket

	logger.WithFields(log.Fields{
		"input":   job.InputDir,
		"output":  job.OutputDir,
		"workers": job.Workers,
	}).Info("converting videos to normalized episodes")

	started := time.Now()

	outcomes, err := job.Run(ctx)

	if err != nil {
		logger.WithError(err).Error("preprocess job failed")
		return 1
	}

	summary := ingest.Summarize(outcomes)
	tasksMetric.Counter = int64(summary.Total)
	errorsMetric.Counter = int64(summary.Failed)

	if err = ingest.WriteManifest(job.OutputDir, outcomes); err != nil {
		logger.WithError(err).Error("unable to write failure manifest")
		return 1
	}

	fmt.Printf("Number of failed videos: %d\n", summary.Failed)
	fmt.Printf("Number of successful videos: %d\n", summary.Succeeded)
	fmt.Printf("Number of total videos: %d\n", summary.Total)

	if summary.Failed > 0 {
		logger.Warnf("%d of %d videos failed, see %s", summary.Failed, summary.Total, ingest.ManifestName)
	}

	logger.Info("creating metadata index")

	index, err := ingest.BuildIndex(job.OutputDir, viper.GetInt("preprocess-workers"))

	if err != nil {
		logger.WithError(err).Error("unable to build metadata index")
		return 1
	}

	if err = ingest.WriteIndex(job.OutputDir, index); err != nil {
		logger.WithError(err).Error("unable to write metadata index")
		return 1
	}

	durationMetric := &metric.DurationMetric{
		RowMetric: metric.RowMetric{Name: "framefeed_preprocess_duration", Tags: metric.Tags{"hostname": hostname}},
		Duration:  time.Since(started),
	}
	cmpt.Metric.Send(durationMetric.Metric())

	logger.WithFields(log.Fields{
		"episodes": len(index),
		"elapsed":  time.Since(started),
	}).Info("preprocess finished")

	return summary.ExitCode()
}
