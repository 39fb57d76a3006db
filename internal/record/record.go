package record

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// An Episode record is the self-describing unit of the training corpus:
// a fixed header with the frame geometry followed by the packed RGB frames.
//
//	magic "FFR1" | u32 height | u32 width | u32 channels | u32 sequence_length | raw_video
//
// All integers little-endian. len(raw_video) must equal
// sequence_length*height*width*channels or the record is rejected.

const Magic = "FFR1"

const headerSize = 4 + 4*4

type Episode struct {
	Height         int
	Width          int
	Channels       int
	SequenceLength int
	RawVideo       []byte
}

func (e *Episode) frameSize() int {
	return e.Height * e.Width * e.Channels
}

// Marshal encodes the episode, validating the blob length first.
func Marshal(e *Episode) ([]byte, error) {
	if len(e.RawVideo) != e.SequenceLength*e.frameSize() {
		return nil, errors.Errorf("raw video is %d bytes, want %d for %d frames of %dx%dx%d",
			len(e.RawVideo), e.SequenceLength*e.frameSize(), e.SequenceLength, e.Height, e.Width, e.Channels)
	}

	buf := make([]byte, headerSize+len(e.RawVideo))

	copy(buf, Magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(e.Height))
	binary.LittleEndian.PutUint32(buf[8:], uint32(e.Width))
	binary.LittleEndian.PutUint32(buf[12:], uint32(e.Channels))
	binary.LittleEndian.PutUint32(buf[16:], uint32(e.SequenceLength))
	copy(buf[headerSize:], e.RawVideo)

	return buf, nil
}

// Unmarshal decodes one episode record. A declared shape that disagrees
// with the blob length is a hard parse error, never a silent coercion.
func Unmarshal(data []byte) (*Episode, error) {
	if len(data) < headerSize {
		return nil, errors.Errorf("record too short: %d bytes", len(data))
	}

	if string(data[:4]) != Magic {
		return nil, errors.Errorf("bad record magic %q", data[:4])
	}

	e := &Episode{
		Height:         int(binary.LittleEndian.Uint32(data[4:])),
		Width:          int(binary.LittleEndian.Uint32(data[8:])),
		Channels:       int(binary.LittleEndian.Uint32(data[12:])),
		SequenceLength: int(binary.LittleEndian.Uint32(data[16:])),
		RawVideo:       data[headerSize:],
	}

	if len(e.RawVideo) != e.SequenceLength*e.frameSize() {
		return nil, errors.Errorf("declared %d frames of %dx%dx%d but raw video is %d bytes",
			e.SequenceLength, e.Height, e.Width, e.Channels, len(e.RawVideo))
	}

	return e, nil
}

func WriteFile(path string, e *Episode) error {
	data, err := Marshal(e)

	if err != nil {
		return err
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "unable to write record '%s'", path)
}

func ReadFile(path string) (*Episode, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to read record '%s'", path)
	}

	return Unmarshal(data)
}
