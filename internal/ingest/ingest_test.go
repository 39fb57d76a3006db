package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("raw"), 0o644))
	}
}

func fakeTranscode(width, height, frames int) TranscodeFunc {
	return func(ctx context.Context, inputPath string) ([]byte, int, error) {
		data := make([]byte, frames*height*width*3)

		for i := range data {
			data[i] = byte(i % 7)
		}

		return data, frames, nil
	}
}

func newTestJob(t *testing.T, inputDir string) *Job {
	t.Helper()

	job := NewJob(inputDir, t.TempDir(), 16, 9, 10)
	job.Workers = 2
	job.Transcode = fakeTranscode(16, 9, 5)

	return job
}

func TestJobFailureIsolation(t *testing.T) {
	inputDir := t.TempDir()
	writeInputs(t, inputDir, "a.mp4", "b.mp4", "corrupt.mp4", "d.webm", "e.mp4")

	job := newTestJob(t, inputDir)
	good := job.Transcode
	job.Transcode = func(ctx context.Context, inputPath string) ([]byte, int, error) {
		if strings.Contains(inputPath, "corrupt") {
			return nil, 0, errors.New("unsupported codec")
		}

		return good(ctx, inputPath)
	}

	outcomes, err := job.Run(context.Background())
	require.NoError(t, err)

	summary := Summarize(outcomes)
	assert.Equal(t, Summary{Failed: 1, Succeeded: 4, Total: 5}, summary)
	assert.Equal(t, 0, summary.ExitCode())

	for _, name := range []string{"a.npy", "b.npy", "d.npy", "e.npy"} {
		assert.FileExists(t, filepath.Join(job.OutputDir, name))
	}

	assert.NoFileExists(t, filepath.Join(job.OutputDir, "corrupt.npy"))

	require.NoError(t, WriteManifest(job.OutputDir, outcomes))

	data, err := os.ReadFile(filepath.Join(job.OutputDir, ManifestName))
	require.NoError(t, err)

	var failed [][2]interface{}
	require.NoError(t, json.Unmarshal(data, &failed))
	require.Len(t, failed, 1)
	assert.Equal(t, filepath.Join(inputDir, "corrupt.mp4"), failed[0][0])
	assert.Equal(t, false, failed[0][1])
}

func TestJobPanicIsolated(t *testing.T) {
	inputDir := t.TempDir()
	writeInputs(t, inputDir, "a.mp4", "b.mp4")

	job := newTestJob(t, inputDir)
	good := job.Transcode
	job.Transcode = func(ctx context.Context, inputPath string) ([]byte, int, error) {
		if strings.Contains(inputPath, "a.mp4") {
			panic("decoder blew up")
		}

		return good(ctx, inputPath)
	}

	outcomes, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Failed: 1, Succeeded: 1, Total: 2}, Summarize(outcomes))
}

func TestJobIdempotent(t *testing.T) {
	inputDir := t.TempDir()
	writeInputs(t, inputDir, "a.mp4")

	job := newTestJob(t, inputDir)

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	first, err := os.ReadFile(filepath.Join(job.OutputDir, "a.npy"))
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	require.NoError(t, err)

	second, err := os.ReadFile(filepath.Join(job.OutputDir, "a.npy"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestJobIgnoresNonVideoFiles(t *testing.T) {
	inputDir := t.TempDir()
	writeInputs(t, inputDir, "a.mp4", "notes.txt", "cover.png")

	videos, err := ListVideos(inputDir)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, filepath.Join(inputDir, "a.mp4"), videos[0])
}

func TestSummaryExitCode(t *testing.T) {
	assert.Equal(t, 0, Summary{Total: 3, Succeeded: 3}.ExitCode())
	assert.Equal(t, 0, Summary{Total: 3, Succeeded: 2, Failed: 1}.ExitCode())
	assert.Equal(t, 1, Summary{Total: 3, Failed: 3}.ExitCode())
	assert.Equal(t, 0, Summary{}.ExitCode())
}

func TestWriteManifestEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteManifest(dir, []Outcome{{Input: "a", OK: true}}))

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}
