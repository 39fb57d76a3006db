package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"framefeed/internal/npy"
	"framefeed/internal/storage"
	"framefeed/internal/transcode"
	"framefeed/internal/util"
)

const ManifestName = "failed_videos.json"

// TranscodeFunc turns one raw video into packed rgb24 frames.
type TranscodeFunc func(ctx context.Context, inputPath string) (frames []byte, count int, err error)

// Outcome tags one input with success or failure; failures carry the cause
// but never escape the job.
type Outcome struct {
	Input string
	OK    bool
	Err   error
}

type Summary struct {
	Failed    int
	Succeeded int
	Total     int
}

// ExitCode maps a summary to the process exit status: partial failure is
// visible in the manifest but not the exit code, a run that produced
// nothing at all is a hard failure.
func (s Summary) ExitCode() int {
	if s.Total > 0 && s.Succeeded == 0 {
		return 1
	}

	return 0
}

// Job transcodes every video in InputDir into the normalized corpus at
// OutputDir. One worker-pool task per video; a failed or panicking task is
// recorded and never aborts its siblings.
type Job struct {
	InputDir  string
	OutputDir string
	Width     int
	Height    int
	Workers   int

	// Mirror successful outputs to a bucket when set.
	Bucket    storage.Bucket
	LayoutDir string

	Transcode TranscodeFunc
}

func NewJob(inputDir, outputRoot string, width, height, fps int) *Job {
	trans := transcode.New(width, height, fps)

	return &Job{
		InputDir:  inputDir,
		OutputDir: filepath.Join(outputRoot, trans.LayoutDir()),
		Width:     width,
		Height:    height,
		Workers:   runtime.NumCPU(),
		LayoutDir: trans.LayoutDir(),
		Transcode: trans.Transcode,
	}
}

// ListVideos returns the raw inputs of a directory, sorted by name.
func ListVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to list input directory '%s'", dir)
	}

	var videos []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		if strings.HasSuffix(name, ".mp4") || strings.HasSuffix(name, ".webm") {
			videos = append(videos, filepath.Join(dir, name))
		}
	}

	return videos, nil
}

// Run processes every input and returns the per-input outcomes in input
// order. The only error returned is a setup failure; per-item failures are
// in the outcomes.
func (j *Job) Run(ctx context.Context) ([]Outcome, error) {
	videos, err := ListVideos(j.InputDir)

	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(j.OutputDir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "unable to create output directory '%s'", j.OutputDir)
	}

	workers := j.Workers

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	outcomes := make([]Outcome, len(videos))
	tasks := make(chan int)

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for idx := range tasks {
				outcomes[idx] = j.processOne(ctx, videos[idx])
			}
		}()
	}

	for idx := range videos {
		tasks <- idx
	}

	close(tasks)
	wg.Wait() // join barrier: the manifest covers every task

	return outcomes, nil
}

func (j *Job) processOne(ctx context.Context, input string) (outcome Outcome) {
	outcome = Outcome{Input: input}

	// A panicking decode must stay a per-task failure.
	defer func() {
		if r := recover(); r != nil {
			outcome.OK = false
			outcome.Err = errors.Errorf("panic while transcoding '%s': %v", input, r)
			log.WithField("input", input).Errorf("transcode task panicked: %v", r)
		}
	}()

	log.WithField("input", input).Info("processing video")

	frames, count, err := j.Transcode(ctx, input)

	if err != nil {
		log.WithError(err).WithField("input", input).Error("unable to transcode video")
		outcome.Err = err
		return outcome
	}

	outputPath := j.episodePath(input)

	if err = npy.WriteFile(outputPath, []int{count, j.Height, j.Width, 3}, frames); err != nil {
		log.WithError(err).WithField("input", input).Error("unable to write normalized episode")
		outcome.Err = err
		return outcome
	}

	log.WithFields(log.Fields{
		"input":  input,
		"output": outputPath,
		"frames": count,
	}).Info("saved normalized episode")

	if j.Bucket != nil {
		key := j.LayoutDir + "/" + filepath.Base(outputPath)

		if err = util.Upload(ctx, j.Bucket, key, outputPath); err != nil {
			log.WithError(err).WithField("key", key).Error("unable to mirror episode to bucket")
			outcome.Err = err
			return outcome
		}
	}

	outcome.OK = true
	return outcome
}

func (j *Job) episodePath(input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(j.OutputDir, base+".npy")
}

// WriteManifest persists the failure manifest as ordered [path, false]
// pairs, matching what downstream tooling expects.
func WriteManifest(dir string, outcomes []Outcome) error {
	failed := make([][2]interface{}, 0)

	for _, outcome := range outcomes {
		if !outcome.OK {
			failed = append(failed, [2]interface{}{outcome.Input, false})
		}
	}

	data, err := json.Marshal(failed)

	if err != nil {
		return errors.Wrap(err, "unable to marshal failure manifest")
	}

	path := filepath.Join(dir, ManifestName)

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "unable to write '%s'", path)
}

func Summarize(outcomes []Outcome) Summary {
	summary := Summary{Total: len(outcomes)}

	for _, outcome := range outcomes {
		if outcome.OK {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	return summary
}
