package transcode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"framefeed/internal/executor"
)

// Transcoder normalizes one raw video into packed 8-bit RGB frames at a
// fixed resolution and frame rate, in a single ffmpeg pass.
type Transcoder struct {
	Width  int
	Height int
	FPS    int

	exec *executor.Executor
}

func New(width, height, fps int) *Transcoder {
	return &Transcoder{
		Width:  width,
		Height: height,
		FPS:    fps,
		exec:   executor.NewExecutor(io.Discard),
	}
}

// LayoutDir is the corpus sub-directory for this normalization, e.g.
// "10fps_160x90".
func (t *Transcoder) LayoutDir() string {
	return fmt.Sprintf("%dfps_%dx%d", t.FPS, t.Width, t.Height)
}

func (t *Transcoder) FrameSize() int {
	return t.Height * t.Width * 3
}

type metadata struct {
	Format format `json:"format"`
}

type format struct {
	Duration string `json:"duration"`
}

// Probe returns the input duration in seconds, used only for progress.
func (t *Transcoder) Probe(ctx context.Context, inputPath string) (float64, error) {
	var outb bytes.Buffer
	var meta metadata

	cmd := &executor.Cmd{Binary: "ffprobe"}
	cmd.Add("-i", inputPath)
	cmd.Add("-print_format", "json")
	cmd.Add("-show_format", "-show_error")

	if err := t.exec.Run(ctx, cmd, &outb); err != nil {
		return 0, errors.Wrapf(err, "ffprobe %s failed", strings.Join(cmd.Command(), " "))
	}

	if err := json.Unmarshal(outb.Bytes(), &meta); err != nil {
		return 0, errors.Wrapf(err, "unable to parse ffprobe output for '%s'", inputPath)
	}

	duration, _ := strconv.ParseFloat(meta.Format.Duration, 64)

	return duration, nil
}

// Transcode decodes, resamples and resizes the input in one pass and
// returns the packed rgb24 bytes plus the derived frame count. The byte
// count must be an exact multiple of one frame; anything else means the
// decode went wrong and is reported as an error, never truncated.
func (t *Transcoder) Transcode(ctx context.Context, inputPath string) ([]byte, int, error) {
	duration, err := t.Probe(ctx, inputPath)

	if err != nil {
		return nil, 0, err
	}

	cmd := &executor.Cmd{Binary: "ffmpeg"}
	cmd.Add("-hide_banner", "-nostdin")
	cmd.Add("-i", inputPath)
	cmd.Add("-filter:v", fmt.Sprintf("fps=%d:round=up,scale=%d:%d", t.FPS, t.Width, t.Height))
	cmd.Add("-f", "rawvideo")
	cmd.Add("-pix_fmt", "rgb24")
	cmd.Add("pipe:1")

	var out bytes.Buffer

	errStream, done, err := t.exec.RunPipe(ctx, cmd, &out)

	if err != nil {
		return nil, 0, errors.Wrapf(err, "unable to start ffmpeg for '%s'", inputPath)
	}

	watchProgress(errStream, inputPath, duration)

	if err = <-done; err != nil {
		return nil, 0, errors.Wrapf(err, "ffmpeg failed on '%s'", inputPath)
	}

	frames, err := t.FrameCount(out.Len())

	if err != nil {
		return nil, 0, errors.Wrapf(err, "bad ffmpeg output for '%s'", inputPath)
	}

	return out.Bytes(), frames, nil
}

// FrameCount derives the number of frames from a raw byte count.
func (t *Transcoder) FrameCount(byteCount int) (int, error) {
	if byteCount == 0 {
		return 0, errors.New("no frames decoded")
	}

	if byteCount%t.FrameSize() != 0 {
		return 0, errors.Errorf("%d bytes is not a multiple of the %d byte frame size", byteCount, t.FrameSize())
	}

	return byteCount / t.FrameSize(), nil
}

var progressSpaces = regexp.MustCompile(`=\s+`)

// watchProgress drains ffmpeg's stderr, logging frame/time/speed lines.
func watchProgress(stream io.ReadCloser, inputPath string, duration float64) {
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := scanner.Text()

		frame, timeSec, speed, ok := parseProgressLine(line)

		if !ok {
			continue
		}

		entry := log.WithFields(log.Fields{
			"input": inputPath,
			"frame": frame,
			"speed": speed,
		})

		if duration > 0 {
			entry = entry.WithField("progress", fmt.Sprintf("%05.2f%%", timeSec*100/duration))
		}

		entry.Debug("transcoding")
	}
}

func parseProgressLine(line string) (frame string, timeSec float64, speed string, ok bool) {
	if !strings.Contains(line, "frame=") || !strings.Contains(line, "time=") {
		return "", 0, "", false
	}

	for _, field := range strings.Fields(progressSpaces.ReplaceAllString(line, "=")) {
		parts := strings.SplitN(field, "=", 2)

		if len(parts) != 2 {
			continue
		}

		switch parts[0] {
		case "frame":
			frame = parts[1]
		case "time":
			timeSec = durationToSec(parts[1])
		case "speed":
			speed = parts[1]
		}
	}

	return frame, timeSec, speed, true
}

// durationToSec converts ffmpeg's HH:MM:SS.ss notation.
func durationToSec(value string) float64 {
	parts := strings.Split(value, ":")

	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.ParseFloat(parts[0], 64)
	minutes, _ := strconv.ParseFloat(parts[1], 64)
	seconds, _ := strconv.ParseFloat(parts[2], 64)

	return hours*3600 + minutes*60 + seconds
}

// ffmpeg terminates progress lines with \r, regular output with \n.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[0:i], nil
	}

	if i := bytes.IndexByte(data, '\r'); i >= 0 {
		return i + 1, data[0:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}
