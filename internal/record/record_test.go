package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	e := &Episode{
		Height:         9,
		Width:          16,
		Channels:       3,
		SequenceLength: 5,
		RawVideo:       make([]byte, 5*9*16*3),
	}

	for i := range e.RawVideo {
		e.RawVideo[i] = byte(i)
	}

	data, err := Marshal(e)
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestMarshalRejectsBlobMismatch(t *testing.T) {
	e := &Episode{Height: 2, Width: 2, Channels: 3, SequenceLength: 4, RawVideo: make([]byte, 10)}

	_, err := Marshal(e)
	assert.Error(t, err)
}

func TestUnmarshalRejectsDeclaredShapeMismatch(t *testing.T) {
	e := &Episode{Height: 2, Width: 2, Channels: 3, SequenceLength: 2, RawVideo: make([]byte, 24)}

	data, err := Marshal(e)
	require.NoError(t, err)

	// Chop one byte off the blob: the declared shape no longer matches.
	_, err = Unmarshal(data[:len(data)-1])
	assert.Error(t, err)
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	_, err := Unmarshal([]byte("XXXX\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"))
	assert.Error(t, err)

	_, err = Unmarshal([]byte("FF"))
	assert.Error(t, err)
}
