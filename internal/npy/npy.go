package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Codec for NumPy ".npy" files, format version 1.0, little-endian, C order.
// Only what the pipeline needs: uint8 frame arrays of arbitrary shape, a
// header-only shape read, and the structured {path, length} metadata index.

var magic = []byte("\x93NUMPY\x01\x00")

const headerAlign = 64

func formatShape(shape []int) string {
	if len(shape) == 1 {
		return fmt.Sprintf("(%d,)", shape[0])
	}

	parts := make([]string, len(shape))
	for i, dim := range shape {
		parts[i] = strconv.Itoa(dim)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

func writeHeader(w io.Writer, descr string, shape []int) error {
	dict := fmt.Sprintf("{'descr': %s, 'fortran_order': False, 'shape': %s, }", descr, formatShape(shape))

	// Pad with spaces so magic+length+header is a multiple of 64 bytes,
	// newline last, same as numpy itself.
	padded := len(magic) + 2 + len(dict) + 1
	if padded%headerAlign != 0 {
		padded += headerAlign - padded%headerAlign
	}

	headerLen := padded - len(magic) - 2
	raw := make([]byte, headerLen)

	for i := copy(raw, dict); i < headerLen-1; i++ {
		raw[i] = ' '
	}

	raw[headerLen-1] = '\n'

	if _, err := w.Write(magic); err != nil {
		return err
	}

	if err := binary.Write(w, binary.LittleEndian, uint16(headerLen)); err != nil {
		return err
	}

	_, err := w.Write(raw)
	return err
}

type header struct {
	descr string
	shape []int
}

func readHeader(r io.Reader) (*header, error) {
	buf := make([]byte, len(magic))

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "unable to read npy magic")
	}

	if !bytes.Equal(buf, magic) {
		return nil, errors.Errorf("bad npy magic %q", buf)
	}

	var headerLen uint16

	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, errors.Wrap(err, "unable to read npy header length")
	}

	raw := make([]byte, headerLen)

	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, errors.Wrap(err, "unable to read npy header")
	}

	dict := string(raw)

	descr, err := dictValue(dict, "descr")

	if err != nil {
		return nil, err
	}

	order, err := dictValue(dict, "fortran_order")

	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(order) != "False" {
		return nil, errors.New("fortran order arrays are not supported")
	}

	shapeValue, err := dictValue(dict, "shape")

	if err != nil {
		return nil, err
	}

	shape, err := parseShape(shapeValue)

	if err != nil {
		return nil, err
	}

	return &header{descr: descr, shape: shape}, nil
}

func dictValue(dict, key string) (string, error) {
	idx := strings.Index(dict, "'"+key+"'")

	if idx < 0 {
		return "", errors.Errorf("npy header missing key '%s'", key)
	}

	rest := dict[idx+len(key)+2:]
	colon := strings.Index(rest, ":")

	if colon < 0 {
		return "", errors.Errorf("malformed npy header at key '%s'", key)
	}

	rest = rest[colon+1:]

	// Value ends at the next top-level comma; shape tuples and record
	// descrs carry commas of their own, so track nesting depth.
	depth := 0
	for i, c := range rest {
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(rest[:i]), nil
			}
		case '}':
			if depth == 0 {
				return strings.TrimSpace(rest[:i]), nil
			}
		}
	}

	return strings.TrimSpace(rest), nil
}

func parseShape(value string) ([]int, error) {
	value = strings.TrimSpace(value)

	if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
		return nil, errors.Errorf("malformed npy shape %q", value)
	}

	var shape []int

	for _, part := range strings.Split(value[1:len(value)-1], ",") {
		part = strings.TrimSpace(part)

		if part == "" {
			continue
		}

		dim, err := strconv.Atoi(part)

		if err != nil {
			return nil, errors.Wrapf(err, "malformed npy shape %q", value)
		}

		shape = append(shape, dim)
	}

	return shape, nil
}

func product(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// Write writes a uint8 array of the given shape.
func Write(w io.Writer, shape []int, data []byte) error {
	if product(shape) != len(data) {
		return errors.Errorf("shape %v does not match %d data bytes", shape, len(data))
	}

	if err := writeHeader(w, "'|u1'", shape); err != nil {
		return errors.Wrap(err, "unable to write npy header")
	}

	_, err := w.Write(data)
	return errors.Wrap(err, "unable to write npy data")
}

func WriteFile(path string, shape []int, data []byte) error {
	file, err := os.Create(path)

	if err != nil {
		return errors.Wrapf(err, "unable to create '%s'", path)
	}

	defer file.Close()

	buffered := bufio.NewWriter(file)

	if err = Write(buffered, shape, data); err != nil {
		return err
	}

	return buffered.Flush()
}

// Read reads a full uint8 array.
func Read(r io.Reader) (shape []int, data []byte, err error) {
	hdr, err := readHeader(r)

	if err != nil {
		return nil, nil, err
	}

	if hdr.descr != "'|u1'" && hdr.descr != "'u1'" {
		return nil, nil, errors.Errorf("unsupported npy dtype %s, expect uint8", hdr.descr)
	}

	data = make([]byte, product(hdr.shape))

	if _, err = io.ReadFull(r, data); err != nil {
		return nil, nil, errors.Wrap(err, "unable to read npy data")
	}

	return hdr.shape, data, nil
}

func ReadFile(path string) (shape []int, data []byte, err error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, nil, errors.Wrapf(err, "unable to open '%s'", path)
	}

	defer file.Close()

	return Read(bufio.NewReader(file))
}

// ReadShape parses only the header of an npy file, so looking up an
// episode's frame count never loads the frames themselves.
func ReadShape(path string) ([]int, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to open '%s'", path)
	}

	defer file.Close()

	hdr, err := readHeader(bufio.NewReader(file))

	if err != nil {
		return nil, errors.Wrapf(err, "unable to read npy header of '%s'", path)
	}

	return hdr.shape, nil
}

// MetadataEntry is one row of the corpus index: a normalized episode file
// and its frame count.
type MetadataEntry struct {
	Path   string
	Length int64
}

// WriteMetadata writes entries as a structured record array
// [('path', 'S<n>'), ('length', '<i8')] readable by numpy without pickling.
func WriteMetadata(w io.Writer, entries []MetadataEntry) error {
	width := 1

	for _, entry := range entries {
		if len(entry.Path) > width {
			width = len(entry.Path)
		}
	}

	descr := fmt.Sprintf("[('path', '|S%d'), ('length', '<i8')]", width)

	if err := writeHeader(w, descr, []int{len(entries)}); err != nil {
		return errors.Wrap(err, "unable to write metadata header")
	}

	row := make([]byte, width+8)

	for _, entry := range entries {
		for i := range row {
			row[i] = 0
		}

		copy(row, entry.Path)
		binary.LittleEndian.PutUint64(row[width:], uint64(entry.Length))

		if _, err := w.Write(row); err != nil {
			return errors.Wrap(err, "unable to write metadata row")
		}
	}

	return nil
}

// ReadMetadata reads an index written by WriteMetadata.
func ReadMetadata(r io.Reader) ([]MetadataEntry, error) {
	hdr, err := readHeader(r)

	if err != nil {
		return nil, err
	}

	width, err := pathWidth(hdr.descr)

	if err != nil {
		return nil, err
	}

	if len(hdr.shape) != 1 {
		return nil, errors.Errorf("metadata index must be one-dimensional, got shape %v", hdr.shape)
	}

	entries := make([]MetadataEntry, 0, hdr.shape[0])
	row := make([]byte, width+8)

	for i := 0; i < hdr.shape[0]; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, errors.Wrap(err, "unable to read metadata row")
		}

		path := row[:width]

		if nul := bytes.IndexByte(path, 0); nul >= 0 {
			path = path[:nul]
		}

		entries = append(entries, MetadataEntry{
			Path:   string(path),
			Length: int64(binary.LittleEndian.Uint64(row[width:])),
		})
	}

	return entries, nil
}

func ReadMetadataFile(path string) ([]MetadataEntry, error) {
	file, err := os.Open(path)

	if err != nil {
		return nil, errors.Wrapf(err, "unable to open '%s'", path)
	}

	defer file.Close()

	return ReadMetadata(bufio.NewReader(file))
}

func pathWidth(descr string) (int, error) {
	idx := strings.Index(descr, "S")

	if idx < 0 {
		return 0, errors.Errorf("unsupported metadata dtype %s", descr)
	}

	end := idx + 1

	for end < len(descr) && descr[end] >= '0' && descr[end] <= '9' {
		end++
	}

	width, err := strconv.Atoi(descr[idx+1 : end])

	if err != nil {
		return 0, errors.Wrapf(err, "unsupported metadata dtype %s", descr)
	}

	return width, nil
}
