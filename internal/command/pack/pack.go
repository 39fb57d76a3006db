package pack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"framefeed/internal/command/root"
	"framefeed/internal/ingest"
	"framefeed/internal/npy"
	"framefeed/internal/record"
	"framefeed/internal/signal"
	"framefeed/internal/util"
)

var (
	logger = log.WithFields(log.Fields{
		"app":     "pack",
		"version": "dev",
	})
)

func init() {
	root.Cmd.AddCommand(cmd)

	cmd.PersistentFlags().String("input", "data/corpus/10fps_160x90", "Normalized corpus directory")
	cmd.PersistentFlags().String("output", "data/records", "Episode record directory")
	cmd.PersistentFlags().Bool("upload", false, "Mirror episode records to the configured bucket")

	// Viper keys are process-global, so every subcommand binds its flags
	// under its own prefix to keep same-named flags apart.
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		if err := viper.BindPFlag("pack-"+flag.Name, flag); err != nil {
			logger.WithError(err).Fatal("flag binding failed")
		}
	})
}

var cmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack normalized episodes into training records",
	Long:  `Framefeed Pack: convert normalized npy episodes into the serialized records the loader consumes`,
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("starting pack")

		upload := viper.GetBool("pack-upload")
		cmpt := root.GetComponent(upload, false)

		os.Exit(run(cmpt))
	},
}

func run(cmpt *root.Component) int {
	ctx := signal.WatchInterrupt(context.Background(), 25*time.Second)

	inputDir := viper.GetString("pack-input")
	outputDir := viper.GetString("pack-output")

	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		logger.WithError(err).Errorf("unable to create output directory '%s'", outputDir)
		return 1
	}

	entries, err := os.ReadDir(inputDir)

	if err != nil {
		logger.WithError(err).Errorf("unable to list corpus directory '%s'", inputDir)
		return 1
	}

	summary := ingest.Summary{}

	for _, entry := range entries {
		name := entry.Name()

		if entry.IsDir() || !strings.HasSuffix(name, ".npy") || name == ingest.IndexName {
			continue
		}

		summary.Total++

		if err := packOne(ctx, cmpt, filepath.Join(inputDir, name), outputDir); err != nil {
			summary.Failed++
			logger.WithError(err).WithField("episode", name).Error("unable to pack episode")
			continue
		}

		summary.Succeeded++
	}

	fmt.Printf("Number of failed episodes: %d\n", summary.Failed)
	fmt.Printf("Number of packed episodes: %d\n", summary.Succeeded)
	fmt.Printf("Number of total episodes: %d\n", summary.Total)

	return summary.ExitCode()
}

func packOne(ctx context.Context, cmpt *root.Component, inputPath, outputDir string) error {
	shape, data, err := npy.ReadFile(inputPath)

	if err != nil {
		return err
	}

	if len(shape) != 4 {
		return errors.Errorf("episode '%s' has shape %v, want 4 dimensions", inputPath, shape)
	}

	episode := &record.Episode{
		Height:         shape[1],
		Width:          shape[2],
		Channels:       shape[3],
		SequenceLength: shape[0],
		RawVideo:       data,
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), ".npy")
	outputPath := filepath.Join(outputDir, base+".rec")

	if err = record.WriteFile(outputPath, episode); err != nil {
		return err
	}

	logger.WithFields(log.Fields{
		"output": outputPath,
		"frames": episode.SequenceLength,
	}).Info("packed episode record")

	if cmpt.Bucket != nil {
		if err = util.Upload(ctx, cmpt.Bucket, base+".rec", outputPath); err != nil {
			return errors.Wrap(err, "unable to mirror record to bucket")
		}
	}

	return nil
}
