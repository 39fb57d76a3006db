package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutDir(t *testing.T) {
	assert.Equal(t, "10fps_160x90", New(160, 90, 10).LayoutDir())
}

func TestFrameCount(t *testing.T) {
	trans := New(160, 90, 10)

	frames, err := trans.FrameCount(7 * 160 * 90 * 3)
	require.NoError(t, err)
	assert.Equal(t, 7, frames)
}

func TestFrameCountRejectsPartialFrame(t *testing.T) {
	trans := New(160, 90, 10)

	_, err := trans.FrameCount(160*90*3 + 1)
	assert.Error(t, err)

	_, err = trans.FrameCount(0)
	assert.Error(t, err)
}

func TestParseProgressLine(t *testing.T) {
	line := "frame=  245 fps= 61 q=-0.0 size=  103680kB time=00:00:24.50 bitrate=34670.0kbits/s speed=6.08x"

	frame, timeSec, speed, ok := parseProgressLine(line)
	require.True(t, ok)
	assert.Equal(t, "245", frame)
	assert.InDelta(t, 24.5, timeSec, 0.001)
	assert.Equal(t, "6.08x", speed)
}

func TestParseProgressLineIgnoresOtherOutput(t *testing.T) {
	_, _, _, ok := parseProgressLine("Stream #0:0(und): Video: h264")
	assert.False(t, ok)
}

func TestDurationToSec(t *testing.T) {
	assert.InDelta(t, 3725.25, durationToSec("01:02:05.25"), 0.001)
	assert.Zero(t, durationToSec("nonsense"))
}
